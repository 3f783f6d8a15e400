// Package aggregation is the HTTP layer over the deterministic monthly
// aggregation engine in internal/core/aggregation.
package aggregation

import (
	"context"

	coreagg "github.com/salescope-lab/salescope/internal/core/aggregation"
	"github.com/salescope-lab/salescope/internal/core/period"
	"github.com/gin-gonic/gin"
)

// Engine is the summation surface the handlers depend on.
type Engine interface {
	SumMonth(ctx context.Context, collection string, p period.Period, field coreagg.Field) (coreagg.Result, error)
}

type Service struct {
	engine            Engine
	defaultCollection string
}

func NewService(engine Engine, defaultCollection string) *Service {
	if engine == nil {
		panic("aggregation: engine must not be nil")
	}
	return &Service{engine: engine, defaultCollection: defaultCollection}
}

// RegisterRoutes registers the aggregation query routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.GET("/aggregate/sales_by_month", s.SalesByMonthHandler)
	r.GET("/aggregate/volume_by_month", s.VolumeByMonthHandler)
}
