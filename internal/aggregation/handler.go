package aggregation

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	coreagg "github.com/salescope-lab/salescope/internal/core/aggregation"
	httperr "github.com/salescope-lab/salescope/internal/core/errors"
	"github.com/salescope-lab/salescope/internal/core/period"
	"github.com/salescope-lab/salescope/internal/core/storage"
)

// monthQuery binds ?year=&month=&collection=. Year and month stay strings so
// non-numeric input maps to a clean 400 instead of gin's type-binding error.
type monthQuery struct {
	Year       string `form:"year" binding:"required"`
	Month      string `form:"month" binding:"required"`
	Collection string `form:"collection"`
}

// SalesByMonthHandler handles GET /aggregate/sales_by_month.
func (s *Service) SalesByMonthHandler(c *gin.Context) {
	s.aggregateHandler(c, coreagg.FieldRevenue, "total_sales")
}

// VolumeByMonthHandler handles GET /aggregate/volume_by_month.
func (s *Service) VolumeByMonthHandler(c *gin.Context) {
	s.aggregateHandler(c, coreagg.FieldVolume, "total_volume")
}

func (s *Service) aggregateHandler(c *gin.Context, field coreagg.Field, totalKey string) {
	var query monthQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidRequestError,
			Message:   "year and month query parameters are required",
			Details:   err.Error(),
		})
		return
	}

	p, err := parsePeriod(query.Year, query.Month)
	if err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidRequestError,
			Message:   "Invalid year/month",
			Details:   err.Error(),
		})
		return
	}

	collection := query.Collection
	if collection == "" {
		collection = s.defaultCollection
	}

	res, err := s.engine.SumMonth(c.Request.Context(), collection, p, field)
	if err != nil {
		if errors.Is(err, storage.ErrUnavailable) {
			slog.Error("Aggregation backend unavailable", "collection", collection, "period", p.String(), "error", err)
			c.JSON(http.StatusBadGateway, httperr.ErrorResponse{
				ErrorType: httperr.HttpBackendUnavailable,
				Message:   "Vector store unreachable",
				Details:   err.Error(),
			})
			return
		}
		slog.Error("Aggregation failed", "collection", collection, "period", p.String(), "error", err)
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Internal error during aggregation",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"collection":         collection,
		"year":               p.Year,
		"month":              int(p.Month),
		"records_aggregated": res.RecordsAggregated,
		"records_skipped":    res.RecordsSkipped,
		// json.Number keeps the exact decimal rendering without quotes.
		totalKey: json.Number(res.Total.String()),
	})
}

func parsePeriod(yearStr, monthStr string) (period.Period, error) {
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return period.Period{}, errors.New("year must be numeric")
	}
	month, err := strconv.Atoi(monthStr)
	if err != nil {
		return period.Period{}, errors.New("month must be numeric")
	}
	return period.New(year, month)
}
