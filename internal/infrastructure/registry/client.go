package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/nutritrack/backend/internal/domain"
)

// serviceName identifies the barcode dataset on the government food
// safety API. Request URLs embed it between the key and the format.
const serviceName = "I2570"

// resultCodeOK is the registry's success code. Anything else in the
// RESULT block means the query produced no usable rows.
const resultCodeOK = "INFO-000"

// Client handles communication with the government barcode registry.
type Client struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	rateLimiter *rate.Limiter
	logger      *slog.Logger
}

// NewClient creates a registry client. The registry tolerates a few
// requests per second; the limiter keeps bulk runs under that.
func NewClient(apiKey, baseURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		apiKey:      apiKey,
		baseURL:     baseURL,
		rateLimiter: rate.NewLimiter(rate.Limit(2), 5),
		logger:      logger,
	}
}

type envelope struct {
	Service *serviceBody `json:"I2570"`
	Result  *resultBody  `json:"RESULT"`
}

type serviceBody struct {
	TotalCount json.Number   `json:"total_count"`
	Row        []registryRow `json:"row"`
	Result     *resultBody   `json:"RESULT"`
}

type registryRow struct {
	Barcode      string `json:"BRCD_NO"`
	Name         string `json:"PRDT_NM"`
	Manufacturer string `json:"CMPNY_NM"`
	ReportNo     string `json:"PRDLST_REPORT_NO"`
}

type resultBody struct {
	Code    string `json:"CODE"`
	Message string `json:"MSG"`
}

// LookupBarcode fetches the registry row for one barcode. A barcode the
// registry does not know yields domain.ErrProductNotFound; an
// unreachable registry yields domain.ErrSourceUnavailable.
func (c *Client) LookupBarcode(ctx context.Context, barcode string) (*domain.ExternalRecord, error) {
	if barcode == "" {
		return nil, fmt.Errorf("%w: empty barcode", domain.ErrInvalidRequest)
	}

	reqURL := fmt.Sprintf("%s/%s/%s/json/1/5/BRCD_NO=%s",
		c.baseURL, c.apiKey, serviceName, url.PathEscape(barcode))

	body, err := c.fetch(ctx, reqURL)
	if err != nil {
		return nil, err
	}
	if len(body.Row) == 0 {
		return nil, domain.ErrProductNotFound
	}

	record := body.Row[0].toRecord()
	record.Barcode = barcode
	return &record, nil
}

// SearchByName fetches registry rows matching a product name, up to
// maxResults.
func (c *Client) SearchByName(ctx context.Context, name string, maxResults int) ([]domain.ExternalRecord, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty product name", domain.ErrInvalidRequest)
	}
	if maxResults <= 0 {
		maxResults = 10
	}

	reqURL := fmt.Sprintf("%s/%s/%s/json/1/%d/PRDT_NM=%s",
		c.baseURL, c.apiKey, serviceName, maxResults, url.PathEscape(name))

	body, err := c.fetch(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	out := make([]domain.ExternalRecord, 0, len(body.Row))
	for _, row := range body.Row {
		out = append(out, row.toRecord())
	}
	return out, nil
}

// FetchPage fetches one page of the bulk barcode dump, rows start
// through end inclusive, 1-based per the registry's convention. The
// returned total is the registry-side row count for pagination.
func (c *Client) FetchPage(ctx context.Context, start, end int) ([]domain.ExternalRecord, int, error) {
	if start < 1 || end < start {
		return nil, 0, fmt.Errorf("%w: invalid page range %d-%d", domain.ErrInvalidRequest, start, end)
	}

	reqURL := fmt.Sprintf("%s/%s/%s/json/%d/%d",
		c.baseURL, c.apiKey, serviceName, start, end)

	body, err := c.fetch(ctx, reqURL)
	if err != nil {
		return nil, 0, err
	}

	total, err := body.TotalCount.Int64()
	if err != nil && body.TotalCount != "" {
		return nil, 0, fmt.Errorf("%w: bad total_count %q", domain.ErrSourceUnavailable, body.TotalCount)
	}

	out := make([]domain.ExternalRecord, 0, len(body.Row))
	for _, row := range body.Row {
		out = append(out, row.toRecord())
	}
	return out, int(total), nil
}

// fetch executes one registry query with rate limiting and up to 3
// attempts for transient failures.
func (c *Client) fetch(ctx context.Context, reqURL string) (*serviceBody, error) {
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		body, err := c.doRequest(ctx, reqURL)
		if err != nil {
			if errors.Is(err, domain.ErrProductNotFound) {
				return nil, err
			}
			c.logger.Warn("registry request failed", "attempt", attempt, "error", err)
			lastErr = err
			if ctx.Err() != nil {
				return nil, lastErr
			}
			time.Sleep(time.Duration(attempt*500) * time.Millisecond)
			continue
		}
		return body, nil
	}
	return nil, lastErr
}

func (c *Client) doRequest(ctx context.Context, reqURL string) (*serviceBody, error) {
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

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", domain.ErrSourceUnavailable, err)
	}
	if env.Service == nil {
		// No-data responses arrive as a bare RESULT block without the
		// service wrapper.
		if env.Result != nil {
			c.logger.Debug("registry returned no data",
				"code", env.Result.Code, "message", env.Result.Message)
			return &serviceBody{}, nil
		}
		return nil, fmt.Errorf("%w: response missing %s block", domain.ErrSourceUnavailable, serviceName)
	}
	if env.Service.Result != nil && env.Service.Result.Code != resultCodeOK {
		c.logger.Debug("registry returned no data",
			"code", env.Service.Result.Code, "message", env.Service.Result.Message)
		return &serviceBody{TotalCount: env.Service.TotalCount}, nil
	}
	return env.Service, nil
}

func (r registryRow) toRecord() domain.ExternalRecord {
	return domain.ExternalRecord{
		Source:       domain.SourceRegistry,
		Name:         trimmed(r.Name),
		Manufacturer: trimmed(r.Manufacturer),
		Barcode:      trimmed(r.Barcode),
		ReportID:     trimmed(r.ReportNo),
	}
}
