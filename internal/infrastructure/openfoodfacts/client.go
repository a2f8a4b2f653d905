package openfoodfacts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/nutritrack/backend/internal/domain"
)

// Product is an open food database entry mapped to domain terms,
// complete enough to register a canonical product from.
type Product struct {
	Record      domain.ExternalRecord
	Nutrition   domain.NutritionFacts
	ServingSize string
}

// Client handles communication with the open food database API.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	rateLimiter *rate.Limiter
	logger      *slog.Logger
}

// NewClient creates an open food database client. The public API asks
// for polite request rates; the limiter enforces that.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL:     baseURL,
		rateLimiter: rate.NewLimiter(rate.Limit(5), 5),
		logger:      logger,
	}
}

type productResponse struct {
	Status  int         `json:"status"`
	Product *offProduct `json:"product"`
}

type offProduct struct {
	ProductNameKo string     `json:"product_name_ko"`
	ProductNameKr string     `json:"product_name_kr"`
	ProductName   string     `json:"product_name"`
	Brands        string     `json:"brands"`
	ServingSize   string     `json:"serving_size"`
	ImageURL      string     `json:"image_url"`
	Nutriments    nutriments `json:"nutriments"`
}

type nutriments struct {
	EnergyKcal100g    float64 `json:"energy-kcal_100g"`
	Proteins100g      float64 `json:"proteins_100g"`
	Fat100g           float64 `json:"fat_100g"`
	Carbohydrates100g float64 `json:"carbohydrates_100g"`
	Sugars100g        float64 `json:"sugars_100g"`
	Sodium100g        float64 `json:"sodium_100g"`
}

// FetchProduct looks one barcode up. An unknown barcode (HTTP 404 or
// status 0 in the body) yields domain.ErrProductNotFound; an
// unreachable database yields domain.ErrSourceUnavailable.
func (c *Client) FetchProduct(ctx context.Context, barcode string) (*Product, error) {
	if barcode == "" {
		return nil, fmt.Errorf("%w: empty barcode", domain.ErrInvalidRequest)
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	reqURL := fmt.Sprintf("%s/product/%s", c.baseURL, url.PathEscape(barcode))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "NutriTrack/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.ErrProductNotFound
	}
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: status %d, body: %s", domain.ErrSourceUnavailable, resp.StatusCode, string(raw))
	}

	var body productResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if body.Status != 1 || body.Product == nil {
		return nil, domain.ErrProductNotFound
	}

	product := mapProduct(barcode, body.Product)
	c.logger.Debug("open food database hit", "barcode", barcode, "name", product.Record.Name)
	return product, nil
}

// mapProduct translates a raw database entry. Korean name fields win
// over the default name; sodium arrives in grams per 100g and is stored
// in milligrams.
func mapProduct(barcode string, p *offProduct) *Product {
	name := p.ProductNameKo
	if name == "" {
		name = p.ProductNameKr
	}
	if name == "" {
		name = p.ProductName
	}

	serving := p.ServingSize
	if serving == "" {
		serving = "100g"
	}

	return &Product{
		Record: domain.ExternalRecord{
			Source:       domain.SourceOpenFoodFacts,
			Name:         strings.TrimSpace(name),
			Manufacturer: strings.TrimSpace(p.Brands),
			Barcode:      barcode,
			ImageURL:     p.ImageURL,
		},
		Nutrition: domain.NutritionFacts{
			Calories:     p.Nutriments.EnergyKcal100g,
			Protein:      p.Nutriments.Proteins100g,
			Fat:          p.Nutriments.Fat100g,
			Carbohydrate: p.Nutriments.Carbohydrates100g,
			Sugar:        p.Nutriments.Sugars100g,
			Sodium:       p.Nutriments.Sodium100g * 1000,
		},
		ServingSize: serving,
	}
}
