package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"city-stats-platform/internal/models"
	"city-stats-platform/internal/services"
	"city-stats-platform/pkg/logging"
	"city-stats-platform/pkg/metrics"
)

// ProgressReporter reports how far the pipeline is through the roster
type ProgressReporter interface {
	Progress(ctx context.Context) (*services.ProgressStatus, error)
}

// CityHandler handles city statistics API endpoints
type CityHandler struct {
	cityService  *services.CityService
	statsService *services.StatisticsService
	progress     ProgressReporter
	swaggerPage  []byte
	logger       *logging.StructuredLogger
	metrics      *metrics.Collector
}

// NewCityHandler creates a new city handler
func NewCityHandler(
	cityService *services.CityService,
	statsService *services.StatisticsService,
	progress ProgressReporter,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *CityHandler {
	return &CityHandler{
		cityService:  cityService,
		statsService: statsService,
		progress:     progress,
		logger:       logger,
		metrics:      metricsCollector,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// PaginatedResponse represents a paginated API response
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int         `json:"total"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	TotalPages int         `json:"total_pages"`
}

// StatsResponse wraps the aggregated city summaries
type StatsResponse struct {
	Data  []models.CityStatsSummary `json:"data"`
	Count int                       `json:"count"`
}

// GetCityStats handles GET /api/cities/stats
func (h *CityHandler) GetCityStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		h.metrics.APIRequestDuration.WithLabelValues("/api/cities/stats").Observe(time.Since(startTime).Seconds())
	}()

	var category *models.AQCategory
	if raw := r.URL.Query().Get("category"); raw != "" {
		c, ok := models.ParseAQCategory(raw)
		if !ok {
			h.sendError(w, r, "invalid category, expected Good, Moderate or Unhealthy", http.StatusBadRequest)
			return
		}
		category = &c
	}

	summaries, err := h.statsService.ComputeCityStats(ctx)
	if err != nil {
		h.logger.Error(ctx, "[API_GET_CITY_STATS_ERROR] Failed to compute city statistics", logging.Fields{}, err)
		h.metrics.RecordAPIError("internal_error", "/api/cities/stats")
		h.sendError(w, r, "failed to compute city statistics", http.StatusInternalServerError)
		return
	}

	if category != nil {
		summaries = services.FilterByCategory(summaries, *category)
	}
	if summaries == nil {
		summaries = []models.CityStatsSummary{}
	}

	h.metrics.RecordAPIRequest("/api/cities/stats", "GET", "200")
	h.sendJSON(w, StatsResponse{Data: summaries, Count: len(summaries)}, http.StatusOK)
}

// GetCities handles GET /api/cities
func (h *CityHandler) GetCities(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		h.metrics.APIRequestDuration.WithLabelValues("/api/cities").Observe(time.Since(startTime).Seconds())
	}()

	page, limit := parsePagination(r)
	opts := models.CityListOptions{
		Country: strings.TrimSpace(r.URL.Query().Get("country")),
		Limit:   limit,
		Offset:  (page - 1) * limit,
	}

	cities, total, err := h.cityService.ListCities(ctx, opts)
	if err != nil {
		h.logger.Error(ctx, "[API_GET_CITIES_ERROR] Failed to list cities", logging.Fields{
			"country": opts.Country,
			"page":    page,
		}, err)
		h.metrics.RecordAPIError("internal_error", "/api/cities")
		h.sendError(w, r, "failed to retrieve cities", http.StatusInternalServerError)
		return
	}
	if cities == nil {
		cities = []*models.City{}
	}

	response := PaginatedResponse{
		Data:       cities,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + limit - 1) / limit,
	}

	h.metrics.RecordAPIRequest("/api/cities", "GET", "200")
	h.sendJSON(w, response, http.StatusOK)
}

// GetProgress handles GET /api/progress
func (h *CityHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status, err := h.progress.Progress(ctx)
	if err != nil {
		h.logger.Error(ctx, "[API_GET_PROGRESS_ERROR] Failed to read progress", logging.Fields{}, err)
		h.metrics.RecordAPIError("internal_error", "/api/progress")
		h.sendError(w, r, "failed to read progress", http.StatusInternalServerError)
		return
	}

	h.metrics.RecordAPIRequest("/api/progress", "GET", "200")
	h.sendJSON(w, status, http.StatusOK)
}

// HealthCheck handles GET /health
func (h *CityHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	code := http.StatusOK

	if err := h.cityService.HealthCheck(ctx); err != nil {
		h.logger.Warn(ctx, "[HEALTH_CHECK_FAILED] Store is unreachable", logging.Fields{
			"error": err.Error(),
		})
		status["status"] = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	h.logger.Debug(ctx, "[HEALTH_CHECK] Health check requested", logging.Fields{})
	h.sendJSON(w, status, code)
}

func parsePagination(r *http.Request) (page, limit int) {
	page, limit = 1, 100

	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 && l <= 1000 {
		limit = l
	}
	return page, limit
}

// sendJSON sends a JSON response
func (h *CityHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// sendError sends an error response
func (h *CityHandler) sendError(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	h.metrics.RecordAPIRequest(r.URL.Path, r.Method, strconv.Itoa(statusCode))

	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}

	h.sendJSON(w, response, statusCode)
}

// RegisterRoutes registers all city API routes
func (h *CityHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/cities", h.GetCities).Methods("GET")
	router.HandleFunc("/api/cities/stats", h.GetCityStats).Methods("GET")
	router.HandleFunc("/api/progress", h.GetProgress).Methods("GET")
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
	router.HandleFunc(openAPIPath, h.OpenAPISpec).Methods("GET").Name(openAPIRoute)
	router.HandleFunc("/api/docs", h.SwaggerUI).Methods("GET")

	h.swaggerPage = swaggerPage(router)
}
