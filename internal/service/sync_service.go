package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/infinviz/rate-service/internal/config"
	"github.com/infinviz/rate-service/internal/metrics"
	"github.com/infinviz/rate-service/internal/model"
	"github.com/infinviz/rate-service/internal/provider"
	"github.com/infinviz/rate-service/internal/repository"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// SyncService keeps the tracked currency pairs in sync with their configured
// rate sources and serves queries over the stored history.
type SyncService struct {
	config     *config.Config
	repository repository.RateRepository
	sources    map[string]provider.RateSource
	metrics    *metrics.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// SyncReport summarizes one sync cycle
type SyncReport struct {
	RunID  string `json:"runId"`
	Pairs  int    `json:"pairs"`
	Synced int    `json:"synced"`
	Empty  int    `json:"empty"`
	Failed int    `json:"failed"`
}

// NewSyncService creates a new SyncService with dependency injection.
// Sources are addressed by name from each pair's sources_config; metrics may
// be nil in tests.
func NewSyncService(
	cfg *config.Config,
	repo repository.RateRepository,
	sources []provider.RateSource,
	m *metrics.Metrics,
	logger *zap.Logger,
) *SyncService {
	byName := make(map[string]provider.RateSource, len(sources))
	for _, src := range sources {
		byName[src.Name()] = src
	}

	return &SyncService{
		config:     cfg,
		repository: repo,
		sources:    byName,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
	}
}

// Run drives periodic sync cycles until the context is canceled.
// One cycle runs immediately on start.
func (s *SyncService) Run(ctx context.Context) {
	interval := time.Duration(s.config.SyncIntervalSeconds) * time.Second

	if _, err := s.SyncAll(ctx); err != nil {
		s.logger.Error("Initial sync cycle failed", zap.Error(err))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SyncAll(ctx); err != nil {
				s.logger.Error("Sync cycle failed", zap.Error(err))
			}
		}
	}
}

// SyncAll runs one sync cycle over every tracked pair
func (s *SyncService) SyncAll(ctx context.Context) (*SyncReport, error) {
	tracer := otel.Tracer("rate-service/sync")
	ctx, span := tracer.Start(ctx, "sync.cycle")
	defer span.End()

	report := &SyncReport{RunID: uuid.New().String()}
	span.SetAttributes(attribute.String("sync.run_id", report.RunID))
	started := s.now()

	s.logger.Info("Starting sync cycle", zap.String("runId", report.RunID))

	pairs, err := s.repository.ListTrackingPairs(ctx)
	if err != nil {
		s.countCycle("failed")
		return nil, fmt.Errorf("failed to list tracking pairs: %w", err)
	}
	report.Pairs = len(pairs)

	for _, pair := range pairs {
		status, err := s.syncPair(ctx, pair)
		if s.metrics != nil {
			s.metrics.SyncPairsTotal.WithLabelValues(string(status)).Inc()
		}

		switch status {
		case model.SyncStatusOK:
			report.Synced++
		case model.SyncStatusEmpty:
			report.Empty++
		case model.SyncStatusFailed:
			report.Failed++
			s.logger.Error("Pair sync failed",
				zap.String("runId", report.RunID),
				zap.String("from", pair.CurrencyCodeFrom),
				zap.String("to", pair.CurrencyCodeTo),
				zap.Error(err),
			)
		}
	}

	if s.metrics != nil {
		s.metrics.SyncCycleDuration.Observe(s.now().Sub(started).Seconds())
	}
	if report.Failed > 0 {
		s.countCycle("failed")
	} else {
		s.countCycle("ok")
		if s.metrics != nil {
			s.metrics.LastSyncSuccessTS.SetToCurrentTime()
		}
	}

	s.logger.Info("Sync cycle finished",
		zap.String("runId", report.RunID),
		zap.Int("pairs", report.Pairs),
		zap.Int("synced", report.Synced),
		zap.Int("empty", report.Empty),
		zap.Int("failed", report.Failed),
	)

	return report, nil
}

// syncPair fetches and persists the missing rate window for one pair.
// Sources are tried in the pair's configured order; the first source that
// supports the pair and returns rows wins. Schema and parse errors mark the
// pair failed and are never persisted as empty history.
func (s *SyncService) syncPair(ctx context.Context, pair model.TrackingPair) (model.SyncStatus, error) {
	tracer := otel.Tracer("rate-service/sync")
	ctx, span := tracer.Start(ctx, "sync.pair")
	span.SetAttributes(
		attribute.String("pair.from", pair.CurrencyCodeFrom),
		attribute.String("pair.to", pair.CurrencyCodeTo),
	)
	defer span.End()

	from := strings.ToUpper(pair.CurrencyCodeFrom)
	to := strings.ToUpper(pair.CurrencyCodeTo)

	today := dateOnly(s.now().UTC())
	start := today.AddDate(0, 0, -s.config.SyncLookbackDays)
	if !pair.LastRateDate.IsZero() {
		start = dateOnly(pair.LastRateDate).AddDate(0, 0, 1)
	}
	if start.After(today) {
		// Watermark already at today, nothing to fetch
		if err := s.repository.UpdateSyncState(ctx, from, to, model.SyncStatusOK, nil); err != nil {
			return model.SyncStatusFailed, err
		}
		return model.SyncStatusOK, nil
	}

	for _, name := range pair.Sources {
		source, ok := s.sources[name]
		if !ok {
			s.logger.Warn("Unknown rate source in tracking pair",
				zap.String("source", name),
				zap.String("from", from),
				zap.String("to", to),
			)
			continue
		}
		if !source.SupportsPair(from, to) {
			continue
		}

		table, err := s.fetch(ctx, source, from, to, start, today)
		if err != nil {
			if stateErr := s.repository.UpdateSyncState(ctx, from, to, model.SyncStatusFailed, nil); stateErr != nil {
				s.logger.Error("Failed to record sync failure", zap.Error(stateErr))
			}
			return model.SyncStatusFailed, err
		}

		rows, maxDate := clampToWindow(table, start, today)
		if len(rows) == 0 {
			continue
		}

		if err := s.repository.SaveRates(ctx, rows); err != nil {
			if stateErr := s.repository.UpdateSyncState(ctx, from, to, model.SyncStatusFailed, nil); stateErr != nil {
				s.logger.Error("Failed to record sync failure", zap.Error(stateErr))
			}
			return model.SyncStatusFailed, fmt.Errorf("failed to persist rates for %s/%s: %w", from, to, err)
		}

		if err := s.repository.UpdateSyncState(ctx, from, to, model.SyncStatusOK, &maxDate); err != nil {
			return model.SyncStatusFailed, err
		}

		s.logger.Info("Pair synced",
			zap.String("from", from),
			zap.String("to", to),
			zap.String("source", name),
			zap.Int("rows", len(rows)),
			zap.Time("lastRateDate", maxDate),
		)
		return model.SyncStatusOK, nil
	}

	if err := s.repository.UpdateSyncState(ctx, from, to, model.SyncStatusEmpty, nil); err != nil {
		return model.SyncStatusFailed, err
	}
	return model.SyncStatusEmpty, nil
}

// fetch calls one source and records provider metrics around the call
func (s *SyncService) fetch(ctx context.Context, source provider.RateSource, from, to string, fromDate, toDate time.Time) (provider.RateTable, error) {
	started := s.now()
	table, err := source.GetExchangeRates(ctx, from, to, fromDate, toDate)
	elapsed := s.now().Sub(started)

	if s.metrics != nil {
		s.metrics.ProviderRequestDuration.WithLabelValues(source.Name()).Observe(elapsed.Seconds())
		switch {
		case err != nil:
			s.metrics.ProviderRequestsTotal.WithLabelValues(source.Name(), "error").Inc()
		case len(table) == 0:
			s.metrics.ProviderRequestsTotal.WithLabelValues(source.Name(), "empty").Inc()
		default:
			s.metrics.ProviderRequestsTotal.WithLabelValues(source.Name(), "ok").Inc()
			s.metrics.ProviderRowsFetched.WithLabelValues(source.Name()).Add(float64(len(table)))
		}
	}

	return table, err
}

// GetRates returns the stored rates for a pair within the inclusive range
func (s *SyncService) GetRates(ctx context.Context, from, to string, fromDate, toDate time.Time) ([]model.FxRate, error) {
	return s.repository.GetRates(ctx, strings.ToUpper(from), strings.ToUpper(to), fromDate, toDate)
}

// ListPairs returns every tracked pair with its sync state
func (s *SyncService) ListPairs(ctx context.Context) ([]model.TrackingPair, error) {
	return s.repository.ListTrackingPairs(ctx)
}

// Health checks if the service and its dependencies are healthy
func (s *SyncService) Health(ctx context.Context) error {
	return s.repository.Health(ctx)
}

func (s *SyncService) countCycle(status string) {
	if s.metrics != nil {
		s.metrics.SyncCyclesTotal.WithLabelValues(status).Inc()
	}
}

// clampToWindow converts provider rows to storage rows, dropping anything
// outside the requested window. Sources like Alphavantage return their full
// daily history regardless of the asked range.
func clampToWindow(table provider.RateTable, fromDate, toDate time.Time) ([]model.FxRate, time.Time) {
	rows := make([]model.FxRate, 0, len(table))
	var maxDate time.Time
	for _, r := range table {
		if r.Date.Before(fromDate) || r.Date.After(toDate) {
			continue
		}
		rows = append(rows, model.FxRate{
			Date:             r.Date,
			CurrencyCodeFrom: r.CurrencyFrom,
			CurrencyCodeTo:   r.CurrencyTo,
			Rate:             r.Rate,
		})
		if r.Date.After(maxDate) {
			maxDate = r.Date
		}
	}
	return rows, maxDate
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
