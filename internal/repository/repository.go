package repository

import (
	"context"
	"time"

	"github.com/infinviz/rate-service/internal/model"
)

// RateRepository defines the storage operations for rate history and
// sync tracking.
type RateRepository interface {
	// SaveRates upserts a batch of rate rows; replaying a date range is safe
	SaveRates(ctx context.Context, rates []model.FxRate) error

	// GetRates returns the stored rates for a pair within the inclusive
	// date range, ordered by date
	GetRates(ctx context.Context, from, to string, fromDate, toDate time.Time) ([]model.FxRate, error)

	// ListTrackingPairs returns every tracked pair with its sync state
	ListTrackingPairs(ctx context.Context) ([]model.TrackingPair, error)

	// UpdateSyncState stamps the outcome of a sync attempt. lastRateDate
	// advances the pair's rate watermark and is left untouched when nil.
	UpdateSyncState(ctx context.Context, from, to string, status model.SyncStatus, lastRateDate *time.Time) error

	// Health checks if the repository is reachable
	Health(ctx context.Context) error
}

// ErrNotFound is returned when a requested item does not exist
type ErrNotFound struct {
	Key string
}

func (e ErrNotFound) Error() string {
	return "not found: " + e.Key
}
