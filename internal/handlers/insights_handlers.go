package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/quantfolio/insights/internal/models"
	"github.com/quantfolio/insights/internal/repository"
	"github.com/quantfolio/insights/internal/services"
)

// InsightsHandler handles portfolio insights endpoints
type InsightsHandler struct {
	insightsSvc *services.InsightsService
}

// NewInsightsHandler creates a new InsightsHandler
func NewInsightsHandler(insightsSvc *services.InsightsService) *InsightsHandler {
	return &InsightsHandler{
		insightsSvc: insightsSvc,
	}
}

// GetInsights handles GET /portfolios/:id/insights
// @Summary Portfolio insights
// @Description Historical valuation, performance, risk, benchmark comparison and allocation analytics for one portfolio. Numeric fields are fixed-point strings; parse them as decimals, not floats.
// @Tags insights
// @Produce json
// @Param id path int true "Portfolio ID"
// @Param period query string false "Lookback period" Enums(1m, 3m, 6m, ytd, 1y, all) default(1y)
// @Param benchmark query string false "Benchmark symbol to compare against"
// @Success 200 {object} models.PortfolioInsights
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Failure 504 {object} models.ErrorResponse
// @Router /portfolios/{id}/insights [get]
func (h *InsightsHandler) GetInsights(c *gin.Context) {
	portfolioID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "bad_request",
			Message: "portfolio id must be an integer",
		})
		return
	}

	period, err := models.ParsePeriod(c.DefaultQuery("period", string(models.Period1Y)))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "bad_request",
			Message: err.Error(),
		})
		return
	}

	benchmark := c.Query("benchmark")

	result, err := h.insightsSvc.GetPortfolioInsights(c.Request.Context(), portfolioID, period, benchmark)
	if err != nil {
		respondInsightsError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetValueSeries handles GET /portfolios/:id/value-series
// @Summary Portfolio daily value series
// @Description Daily portfolio values over the period, one point per trading day, in the portfolio's base currency.
// @Tags insights
// @Produce json
// @Param id path int true "Portfolio ID"
// @Param period query string false "Lookback period" Enums(1m, 3m, 6m, ytd, 1y, all) default(1y)
// @Success 200 {array} models.ValueSeriesPoint
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /portfolios/{id}/value-series [get]
func (h *InsightsHandler) GetValueSeries(c *gin.Context) {
	portfolioID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "bad_request",
			Message: "portfolio id must be an integer",
		})
		return
	}

	period, err := models.ParsePeriod(c.DefaultQuery("period", string(models.Period1Y)))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "bad_request",
			Message: err.Error(),
		})
		return
	}

	result, err := h.insightsSvc.GetPortfolioInsights(c.Request.Context(), portfolioID, period, "")
	if err != nil {
		respondInsightsError(c, err)
		return
	}

	c.JSON(http.StatusOK, result.ValueSeries)
}

func respondInsightsError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrPortfolioNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "not_found",
			Message: "portfolio not found",
		})
	case errors.Is(err, services.ErrBenchmarkNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "not_found",
			Message: "benchmark not found",
		})
	case errors.Is(err, services.ErrNoActivity), errors.Is(err, services.ErrNoPriceableHoldings):
		c.JSON(http.StatusUnprocessableEntity, models.ErrorResponse{
			Error:   "insufficient_data",
			Message: err.Error(),
		})
	case errors.Is(err, services.ErrLookupTimeout):
		c.JSON(http.StatusGatewayTimeout, models.ErrorResponse{
			Error:   "partial_data",
			Message: "market data provider timed out; period could not be fully valued",
		})
	default:
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "internal_error",
			Message: err.Error(),
		})
	}
}
