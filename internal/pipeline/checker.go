package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/globe-observer-qa/internal/domain"
	"github.com/couchcryptid/globe-observer-qa/internal/observability"
)

// FlagChecker implements QualityChecker using the domain flag rules with an
// optional land checker for the water rule.
type FlagChecker struct {
	land    domain.LandChecker
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewChecker creates a FlagChecker. Pass a nil land checker to disable the
// water rule.
func NewChecker(land domain.LandChecker, metrics *observability.Metrics, logger *slog.Logger) *FlagChecker {
	return &FlagChecker{
		land:    land,
		metrics: metrics,
		logger:  logger,
	}
}

func (c *FlagChecker) Check(ctx context.Context, obs []domain.Observation) ([]domain.Flagged, error) {
	flagged, err := domain.QualityCheck(ctx, obs, c.land, c.logger)
	if err != nil {
		return nil, err
	}
	for code, n := range domain.FlagCounts(flagged) {
		c.metrics.QualityFlags.WithLabelValues(code).Add(float64(n))
	}
	c.logger.Info("quality check finished",
		"checked", len(flagged),
		"flagged", domain.CountFlaggedObservations(flagged),
		"land_check", c.land != nil,
	)
	return flagged, nil
}
