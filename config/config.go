package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Registry      RegistryConfig
	OpenFoodFacts OpenFoodFactsConfig `mapstructure:"openfoodfacts"`
	Storefront    StorefrontConfig
	Cache         CacheConfig
	Matching      MatchingConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DatabaseConfig holds the SQLite database location
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// RegistryConfig holds the government barcode registry API configuration
type RegistryConfig struct {
	APIKey   string `mapstructure:"api_key"`
	BaseURL  string `mapstructure:"base_url"`
	PageSize int    `mapstructure:"page_size"`
}

// OpenFoodFactsConfig holds the open food database API configuration
type OpenFoodFactsConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// StorefrontConfig holds the scraped storefront catalog location
type StorefrontConfig struct {
	CatalogPath string `mapstructure:"catalog_path"`
}

// CacheConfig holds external-lookup cache configuration
type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// MatchingConfig holds resolution engine tuning. Source overrides are
// keyed by source name and may set either threshold, inheriting the
// global value for the other.
type MatchingConfig struct {
	CandidateCap    int                          `mapstructure:"candidate_cap"`
	CandidateFloor  int                          `mapstructure:"candidate_floor"`
	SimilarityFloor float64                      `mapstructure:"similarity_floor"`
	AutoThreshold   float64                      `mapstructure:"auto_threshold"`
	ReviewThreshold float64                      `mapstructure:"review_threshold"`
	SourceOverrides map[string]ThresholdOverride `mapstructure:"source_overrides"`
	RecordTimeout   time.Duration                `mapstructure:"record_timeout"`
}

// ThresholdOverride is a per-source threshold adjustment. Zero means
// inherit the global threshold.
type ThresholdOverride struct {
	Auto   float64 `mapstructure:"auto"`
	Review float64 `mapstructure:"review"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/nutritrack/")

	// Environment variable settings
	v.SetEnvPrefix("NUTRITRACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; using environment variables and defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Database defaults
	v.SetDefault("database.path", "data/nutritrack.db")

	// Registry defaults. The empty api_key default registers the key
	// so AutomaticEnv can populate it.
	v.SetDefault("registry.api_key", "")
	v.SetDefault("registry.base_url", "http://openapi.foodsafetykorea.go.kr/api")
	v.SetDefault("registry.page_size", 1000)

	// Open food database defaults
	v.SetDefault("openfoodfacts.base_url", "https://world.openfoodfacts.org/api/v2")

	// Storefront defaults
	v.SetDefault("storefront.catalog_path", "data/convenience_products.json")

	// Cache defaults
	v.SetDefault("cache.ttl", "24h")

	// Matching defaults. The open food database carries weaker Korean
	// coverage, so its automatic threshold sits slightly lower.
	v.SetDefault("matching.candidate_cap", 50)
	v.SetDefault("matching.candidate_floor", 5)
	v.SetDefault("matching.similarity_floor", 0.3)
	v.SetDefault("matching.auto_threshold", 0.85)
	v.SetDefault("matching.review_threshold", 0.65)
	v.SetDefault("matching.source_overrides.openfoodfacts.auto", 0.80)
	v.SetDefault("matching.record_timeout", "30s")
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Registry.APIKey == "" {
		return fmt.Errorf("registry API key is required (set NUTRITRACK_REGISTRY_API_KEY)")
	}
	if config.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if config.Registry.PageSize <= 0 {
		return fmt.Errorf("registry page size must be positive, got: %d", config.Registry.PageSize)
	}

	m := config.Matching
	if m.CandidateFloor <= 0 || m.CandidateCap < m.CandidateFloor {
		return fmt.Errorf("candidate cap/floor must satisfy 0 < floor <= cap, got: %d/%d", m.CandidateCap, m.CandidateFloor)
	}
	if m.SimilarityFloor < 0 || m.SimilarityFloor >= 1 {
		return fmt.Errorf("similarity floor must be in [0, 1), got: %g", m.SimilarityFloor)
	}
	if err := validateThresholds(m.AutoThreshold, m.ReviewThreshold); err != nil {
		return err
	}
	for source, o := range m.SourceOverrides {
		auto, review := o.Auto, o.Review
		if auto == 0 {
			auto = m.AutoThreshold
		}
		if review == 0 {
			review = m.ReviewThreshold
		}
		if err := validateThresholds(auto, review); err != nil {
			return fmt.Errorf("source %q: %w", source, err)
		}
	}

	return nil
}

func validateThresholds(auto, review float64) error {
	if review < 0 || auto > 1 || review > auto {
		return fmt.Errorf("thresholds must satisfy 0 <= review <= auto <= 1, got auto=%g review=%g", auto, review)
	}
	return nil
}
