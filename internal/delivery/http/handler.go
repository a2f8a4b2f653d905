package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nutritrack/backend/internal/domain"
	"github.com/nutritrack/backend/internal/infrastructure/openfoodfacts"
	"github.com/nutritrack/backend/internal/infrastructure/store"
	"github.com/nutritrack/backend/internal/infrastructure/storefront"
	"github.com/nutritrack/backend/internal/usecase"
)

// RegistryLookup is the single-barcode view of the government registry
// client.
type RegistryLookup interface {
	LookupBarcode(ctx context.Context, barcode string) (*domain.ExternalRecord, error)
}

// FoodDatabase is the single-barcode view of the open food database
// client.
type FoodDatabase interface {
	FetchProduct(ctx context.Context, barcode string) (*openfoodfacts.Product, error)
}

// Catalog is the scraped convenience-store view: searched directly by
// clients and used to enrich scan responses with price and image
// metadata.
type Catalog interface {
	Match(ctx context.Context, name, manufacturer string) (*storefront.CatalogProduct, error)
	Search(ctx context.Context, query string, limit int) ([]storefront.CatalogProduct, error)
}

// Cache holds external lookup results between scans of the same
// barcode.
type Cache interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// AuditLog lists the match decisions recorded during a reconciliation
// run, so REVIEW and FAIL records can be confirmed afterwards.
type AuditLog interface {
	AuditByRun(ctx context.Context, runID string, limit int) ([]store.AuditEntry, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	store      domain.CanonicalStore
	resolver   *usecase.ResolutionService
	reconciler *usecase.Reconciler
	registry   RegistryLookup
	foodDB     FoodDatabase
	catalog    Catalog
	cache      Cache
	auditLog   AuditLog
	cacheTTL   time.Duration
	logger     *slog.Logger
}

// Deps bundles the handler's collaborators. Registry, FoodDB, Catalog,
// Cache and AuditLog may be nil; the paths that use them degrade to
// whatever is wired.
type Deps struct {
	Store      domain.CanonicalStore
	Resolver   *usecase.ResolutionService
	Reconciler *usecase.Reconciler
	Registry   RegistryLookup
	FoodDB     FoodDatabase
	Catalog    Catalog
	Cache      Cache
	AuditLog   AuditLog
	CacheTTL   time.Duration
	Logger     *slog.Logger
}

// NewHandler creates a new HTTP handler.
func NewHandler(deps Deps) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:      deps.Store,
		resolver:   deps.Resolver,
		reconciler: deps.Reconciler,
		registry:   deps.Registry,
		foodDB:     deps.FoodDB,
		catalog:    deps.Catalog,
		cache:      deps.Cache,
		auditLog:   deps.AuditLog,
		cacheTTL:   deps.CacheTTL,
		logger:     logger,
	}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "nutritrack-backend",
		"version": "1.0.0",
	})
}

// GetProduct returns one canonical product by id.
func (h *Handler) GetProduct(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return
	}

	product, err := h.store.FindByID(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

type registerRequest struct {
	Name         string                `json:"name" binding:"required"`
	Manufacturer string                `json:"manufacturer"`
	Barcode      string                `json:"barcode"`
	ServingSize  string                `json:"servingSize"`
	Nutrition    domain.NutritionFacts `json:"nutrition"`
}

// RegisterProduct creates a canonical product. Derived fields are
// recomputed by the store; a barcode already held by another product is
// rejected.
func (h *Handler) RegisterProduct(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	product := &domain.CanonicalProduct{
		Name:         req.Name,
		Manufacturer: req.Manufacturer,
		Barcode:      req.Barcode,
		ServingSize:  req.ServingSize,
		Nutrition:    req.Nutrition,
	}
	if err := h.store.CreateProduct(c.Request.Context(), product); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

// UpdateProduct rewrites a product's editable fields. The barcode is not
// editable here; barcodes only move through the resolution pipeline.
func (h *Handler) UpdateProduct(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return
	}

	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	product := &domain.CanonicalProduct{
		ID:           id,
		Name:         req.Name,
		Manufacturer: req.Manufacturer,
		ServingSize:  req.ServingSize,
		Nutrition:    req.Nutrition,
	}
	if err := h.store.UpdateProduct(c.Request.Context(), product); err != nil {
		h.writeError(c, err)
		return
	}

	updated, err := h.store.FindByID(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

type resolveRequest struct {
	Source       string `json:"source"`
	Name         string `json:"name" binding:"required"`
	Manufacturer string `json:"manufacturer"`
	Barcode      string `json:"barcode"`
	Apply        bool   `json:"apply"`
}

// ResolveRecord resolves one external record against the canonical
// catalog and returns the classified match. With apply set, an AUTO
// match is also reconciled into the store.
func (h *Handler) ResolveRecord(c *gin.Context) {
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	source := domain.Source(req.Source)
	if req.Source == "" {
		source = domain.SourceRegistry
	}
	if !source.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown source: " + req.Source})
		return
	}

	record := &domain.ExternalRecord{
		Source:       source,
		Name:         req.Name,
		Manufacturer: req.Manufacturer,
		Barcode:      req.Barcode,
	}

	result, err := h.resolver.Resolve(c.Request.Context(), record)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response := gin.H{"match": result}
	if req.Apply {
		outcome, err := h.reconciler.Apply(c.Request.Context(), record, result)
		if err != nil {
			h.writeError(c, err)
			return
		}
		response["outcome"] = outcome
	}
	c.JSON(http.StatusOK, response)
}

// scanLookup is the cached portion of a scan: the external record and
// whatever nutrition came with it.
type scanLookup struct {
	Record      domain.ExternalRecord `json:"record"`
	Nutrition   domain.NutritionFacts `json:"nutrition"`
	ServingSize string                `json:"servingSize"`
}

// ScanBarcode is the interactive lookup path. A barcode already in the
// catalog returns its product; otherwise the external sources are
// queried, the record resolved, and an AUTO match applied on the spot.
// REVIEW and FAIL matches come back unapplied for the client to
// confirm or register.
func (h *Handler) ScanBarcode(c *gin.Context) {
	barcode := c.Param("barcode")
	ctx := c.Request.Context()

	if product, err := h.store.FindByBarcode(ctx, barcode); err == nil {
		c.JSON(http.StatusOK, gin.H{"resolved": true, "product": product})
		return
	} else if !errors.Is(err, domain.ErrProductNotFound) {
		h.writeError(c, err)
		return
	}

	lookup, err := h.lookupExternal(ctx, barcode)
	if err != nil {
		h.writeError(c, err)
		return
	}

	result, err := h.resolver.Resolve(ctx, &lookup.Record)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response := gin.H{
		"resolved": false,
		"external": lookup,
		"match":    result,
	}

	if h.catalog != nil {
		entry, err := h.catalog.Match(ctx, lookup.Record.Name, lookup.Record.Manufacturer)
		switch {
		case err == nil:
			response["storefront"] = entry
		case !errors.Is(err, domain.ErrProductNotFound):
			h.logger.Warn("storefront match failed", "barcode", barcode, "error", err)
		}
	}

	if result.Tier == domain.TierAuto {
		outcome, err := h.reconciler.Apply(ctx, &lookup.Record, result)
		if err != nil {
			h.writeError(c, err)
			return
		}
		response["outcome"] = outcome
		if outcome == domain.OutcomeApplied || outcome == domain.OutcomeAlreadyResolved {
			if product, err := h.store.FindByBarcode(ctx, barcode); err == nil {
				response["resolved"] = true
				response["product"] = product
			}
		}
	}
	c.JSON(http.StatusOK, response)
}

// lookupExternal queries the registry first and the open food database
// second, caching whichever answered.
func (h *Handler) lookupExternal(ctx context.Context, barcode string) (*scanLookup, error) {
	if barcode == "" {
		return nil, domain.ErrInvalidRequest
	}

	cacheKey := "scan:" + barcode
	if h.cache != nil {
		var cached scanLookup
		if err := h.cache.Get(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	var lookup *scanLookup
	if h.registry != nil {
		record, err := h.registry.LookupBarcode(ctx, barcode)
		switch {
		case err == nil:
			lookup = &scanLookup{Record: *record}
		case !errors.Is(err, domain.ErrProductNotFound):
			return nil, err
		}
	}

	if lookup == nil && h.foodDB != nil {
		product, err := h.foodDB.FetchProduct(ctx, barcode)
		switch {
		case err == nil:
			lookup = &scanLookup{
				Record:      product.Record,
				Nutrition:   product.Nutrition,
				ServingSize: product.ServingSize,
			}
		case !errors.Is(err, domain.ErrProductNotFound):
			return nil, err
		}
	}

	if lookup == nil {
		return nil, domain.ErrProductNotFound
	}

	if h.cache != nil {
		if err := h.cache.Set(ctx, cacheKey, lookup, h.cacheTTL); err != nil {
			h.logger.Warn("scan cache write failed", "barcode", barcode, "error", err)
		}
	}
	return lookup, nil
}

// SearchCatalog searches the scraped convenience-store catalog by name.
func (h *Handler) SearchCatalog(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter q is required"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}

	results := []storefront.CatalogProduct{}
	if h.catalog != nil {
		found, err := h.catalog.Search(c.Request.Context(), query, limit)
		if err != nil {
			h.writeError(c, err)
			return
		}
		results = append(results, found...)
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// AuditTrail lists the match decisions of one reconciliation run. An
// unknown run id yields an empty list, not an error.
func (h *Handler) AuditTrail(c *gin.Context) {
	runID := c.Param("runId")
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}

	entries := []store.AuditEntry{}
	if h.auditLog != nil {
		found, err := h.auditLog.AuditByRun(c.Request.Context(), runID, limit)
		if err != nil {
			h.writeError(c, err)
			return
		}
		entries = append(entries, found...)
	}
	c.JSON(http.StatusOK, gin.H{"runId": runID, "entries": entries})
}

// writeError maps domain errors to HTTP statuses.
func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrProductNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
	case errors.Is(err, domain.ErrInvalidRequest), errors.Is(err, domain.ErrMalformedRecord):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrBarcodeConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrSourceUnavailable):
		c.JSON(http.StatusBadGateway, gin.H{"error": "external source unavailable"})
	default:
		h.logger.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
