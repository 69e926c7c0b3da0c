package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/infinviz/rate-service/internal/metrics"
	"github.com/infinviz/rate-service/internal/model"
	"github.com/infinviz/rate-service/internal/service"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// RateService is the service surface the HTTP layer depends on
type RateService interface {
	GetRates(ctx context.Context, from, to string, fromDate, toDate time.Time) ([]model.FxRate, error)
	ListPairs(ctx context.Context) ([]model.TrackingPair, error)
	SyncAll(ctx context.Context) (*service.SyncReport, error)
	Health(ctx context.Context) error
}

// HTTPHandler handles HTTP requests
type HTTPHandler struct {
	rateService RateService
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

// NewHTTPHandler creates a new HTTPHandler. Metrics may be nil in tests.
func NewHTTPHandler(rateService RateService, m *metrics.Metrics, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{
		rateService: rateService,
		metrics:     m,
		logger:      logger,
	}
}

func (h *HTTPHandler) countRateQuery(status string) {
	if h.metrics != nil {
		h.metrics.RateQueriesTotal.WithLabelValues(status).Inc()
	}
}

// SetupRoutes configures the HTTP routes
func (h *HTTPHandler) SetupRoutes(r *gin.Engine) {
	// Health checks
	r.GET("/health", h.Health)
	r.GET("/ready", h.Ready)

	api := r.Group("/api")
	{
		api.GET("/rates/:from/:to", h.GetRates)
		api.GET("/pairs", h.GetPairs)
		api.POST("/sync", h.TriggerSync)
	}
}

// Health returns the health status
func (h *HTTPHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "rate-service",
	})
}

// Ready reports readiness, including database connectivity
func (h *HTTPHandler) Ready(c *gin.Context) {
	if err := h.rateService.Health(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "ready",
		"service": "rate-service",
	})
}

// rateResponse is the JSON shape of one stored rate row
type rateResponse struct {
	Date             string `json:"date"`
	CurrencyCodeFrom string `json:"currencyCodeFrom"`
	CurrencyCodeTo   string `json:"currencyCodeTo"`
	Rate             string `json:"rate"`
}

// GetRates serves the stored rate history for a pair.
// from_date/to_date query params bound the range; the default window is the
// last 30 days.
func (h *HTTPHandler) GetRates(c *gin.Context) {
	from := c.Param("from")
	to := c.Param("to")

	if len(from) != 3 || len(to) != 3 {
		h.countRateQuery("bad_request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid currency code format"})
		return
	}

	now := time.Now().UTC()
	fromDate := now.AddDate(0, 0, -30)
	toDate := now

	var err error
	if raw := c.Query("from_date"); raw != "" {
		if fromDate, err = time.ParseInLocation(dateLayout, raw, time.UTC); err != nil {
			h.countRateQuery("bad_request")
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid from_date, expected YYYY-MM-DD"})
			return
		}
	}
	if raw := c.Query("to_date"); raw != "" {
		if toDate, err = time.ParseInLocation(dateLayout, raw, time.UTC); err != nil {
			h.countRateQuery("bad_request")
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid to_date, expected YYYY-MM-DD"})
			return
		}
	}
	if fromDate.After(toDate) {
		h.countRateQuery("bad_request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "from_date must not be after to_date"})
		return
	}

	rates, err := h.rateService.GetRates(c.Request.Context(), from, to, fromDate, toDate)
	if err != nil {
		h.countRateQuery("error")
		h.logger.Error("Failed to get rates", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load rates"})
		return
	}
	h.countRateQuery("ok")

	out := make([]rateResponse, 0, len(rates))
	for _, r := range rates {
		out = append(out, rateResponse{
			Date:             r.Date.Format(dateLayout),
			CurrencyCodeFrom: r.CurrencyCodeFrom,
			CurrencyCodeTo:   r.CurrencyCodeTo,
			Rate:             r.Rate.String(),
		})
	}

	c.JSON(http.StatusOK, gin.H{"rates": out})
}

// GetPairs returns the tracked pairs with their sync state
func (h *HTTPHandler) GetPairs(c *gin.Context) {
	pairs, err := h.rateService.ListPairs(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list tracking pairs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load tracking pairs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"pairs": pairs})
}

// TriggerSync runs one sync cycle and reports the outcome
func (h *HTTPHandler) TriggerSync(c *gin.Context) {
	report, err := h.rateService.SyncAll(c.Request.Context())
	if err != nil {
		h.logger.Error("Manual sync failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Sync failed"})
		return
	}
	c.JSON(http.StatusOK, report)
}
