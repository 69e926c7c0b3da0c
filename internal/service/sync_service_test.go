package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/infinviz/rate-service/internal/config"
	"github.com/infinviz/rate-service/internal/model"
	"github.com/infinviz/rate-service/internal/provider"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// mockRepository implements repository.RateRepository for testing
type mockRepository struct {
	ListTrackingPairsFunc func(ctx context.Context) ([]model.TrackingPair, error)
	SaveRatesFunc         func(ctx context.Context, rates []model.FxRate) error
	UpdateSyncStateFunc   func(ctx context.Context, from, to string, status model.SyncStatus, lastRateDate *time.Time) error
	GetRatesFunc          func(ctx context.Context, from, to string, fromDate, toDate time.Time) ([]model.FxRate, error)
	HealthFunc            func(ctx context.Context) error

	savedRates   [][]model.FxRate
	syncStatuses []model.SyncStatus
	lastRateArg  *time.Time
}

func (m *mockRepository) ListTrackingPairs(ctx context.Context) ([]model.TrackingPair, error) {
	if m.ListTrackingPairsFunc != nil {
		return m.ListTrackingPairsFunc(ctx)
	}
	return nil, nil
}

func (m *mockRepository) SaveRates(ctx context.Context, rates []model.FxRate) error {
	m.savedRates = append(m.savedRates, rates)
	if m.SaveRatesFunc != nil {
		return m.SaveRatesFunc(ctx, rates)
	}
	return nil
}

func (m *mockRepository) UpdateSyncState(ctx context.Context, from, to string, status model.SyncStatus, lastRateDate *time.Time) error {
	m.syncStatuses = append(m.syncStatuses, status)
	m.lastRateArg = lastRateDate
	if m.UpdateSyncStateFunc != nil {
		return m.UpdateSyncStateFunc(ctx, from, to, status, lastRateDate)
	}
	return nil
}

func (m *mockRepository) GetRates(ctx context.Context, from, to string, fromDate, toDate time.Time) ([]model.FxRate, error) {
	if m.GetRatesFunc != nil {
		return m.GetRatesFunc(ctx, from, to, fromDate, toDate)
	}
	return nil, nil
}

func (m *mockRepository) Health(ctx context.Context) error {
	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	return nil
}

// mockSource implements provider.RateSource for testing
type mockSource struct {
	name                 string
	supports             bool
	GetExchangeRatesFunc func(ctx context.Context, from, to string, fromDate, toDate time.Time) (provider.RateTable, error)

	calls int
}

func (m *mockSource) Name() string { return m.name }

func (m *mockSource) SupportsPair(from, to string) bool { return m.supports }

func (m *mockSource) GetExchangeRates(ctx context.Context, from, to string, fromDate, toDate time.Time) (provider.RateTable, error) {
	m.calls++
	if m.GetExchangeRatesFunc != nil {
		return m.GetExchangeRatesFunc(ctx, from, to, fromDate, toDate)
	}
	return provider.EmptyTable(), nil
}

func testConfig() *config.Config {
	return &config.Config{
		SyncIntervalSeconds: 3600,
		SyncLookbackDays:    30,
	}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func providerRow(date time.Time, from, to, rate string) provider.Rate {
	return provider.Rate{Date: date, CurrencyFrom: from, CurrencyTo: to, Rate: decimal.RequireFromString(rate)}
}

func newTestService(repo *mockRepository, sources ...provider.RateSource) *SyncService {
	svc := NewSyncService(testConfig(), repo, sources, nil, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2025, 12, 3, 12, 30, 0, 0, time.UTC) }
	return svc
}

func TestSyncAll_PersistsRatesAndAdvancesWatermark(t *testing.T) {
	repo := &mockRepository{
		ListTrackingPairsFunc: func(ctx context.Context) ([]model.TrackingPair, error) {
			return []model.TrackingPair{{
				CurrencyCodeFrom: "usd",
				CurrencyCodeTo:   "eur",
				Sources:          []string{"mock"},
				LastRateDate:     day(2025, 11, 30),
			}}, nil
		},
	}
	source := &mockSource{
		name:     "mock",
		supports: true,
		GetExchangeRatesFunc: func(ctx context.Context, from, to string, fromDate, toDate time.Time) (provider.RateTable, error) {
			if from != "USD" || to != "EUR" {
				t.Errorf("expected upper-cased codes, got %s/%s", from, to)
			}
			if !fromDate.Equal(day(2025, 12, 1)) {
				t.Errorf("expected window to start after the watermark, got %s", fromDate)
			}
			if !toDate.Equal(day(2025, 12, 3)) {
				t.Errorf("expected window to end today, got %s", toDate)
			}
			return provider.RateTable{
				providerRow(day(2025, 12, 1), "USD", "EUR", "0.86152"),
				providerRow(day(2025, 12, 2), "USD", "EUR", "0.85993"),
			}, nil
		},
	}

	report, err := newTestService(repo, source).SyncAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Pairs != 1 || report.Synced != 1 || report.Empty != 0 || report.Failed != 0 {
		t.Errorf("unexpected report: %+v", report)
	}

	if len(repo.savedRates) != 1 || len(repo.savedRates[0]) != 2 {
		t.Fatalf("expected one batch of 2 rows, got %v", repo.savedRates)
	}
	if got := repo.savedRates[0][0]; got.CurrencyCodeFrom != "USD" || !got.Rate.Equal(decimal.RequireFromString("0.86152")) {
		t.Errorf("unexpected stored row: %+v", got)
	}

	if len(repo.syncStatuses) != 1 || repo.syncStatuses[0] != model.SyncStatusOK {
		t.Errorf("expected one ok sync state, got %v", repo.syncStatuses)
	}
	if repo.lastRateArg == nil || !repo.lastRateArg.Equal(day(2025, 12, 2)) {
		t.Errorf("expected watermark 2025-12-02, got %v", repo.lastRateArg)
	}
}

func TestSyncAll_ClampsRowsToWindow(t *testing.T) {
	repo := &mockRepository{
		ListTrackingPairsFunc: func(ctx context.Context) ([]model.TrackingPair, error) {
			return []model.TrackingPair{{
				CurrencyCodeFrom: "eur",
				CurrencyCodeTo:   "usd",
				Sources:          []string{"mock"},
				LastRateDate:     day(2025, 12, 1),
			}}, nil
		},
	}
	// Full-history providers return rows far outside the asked window
	source := &mockSource{
		name:     "mock",
		supports: true,
		GetExchangeRatesFunc: func(ctx context.Context, from, to string, fromDate, toDate time.Time) (provider.RateTable, error) {
			return provider.RateTable{
				providerRow(day(2024, 1, 15), "EUR", "USD", "1.09"),
				providerRow(day(2025, 12, 1), "EUR", "USD", "1.15"),
				providerRow(day(2025, 12, 2), "EUR", "USD", "1.16"),
				providerRow(day(2025, 12, 4), "EUR", "USD", "1.17"),
			}, nil
		},
	}

	report, err := newTestService(repo, source).SyncAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Synced != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}

	if len(repo.savedRates) != 1 || len(repo.savedRates[0]) != 1 {
		t.Fatalf("expected exactly the in-window row to be saved, got %v", repo.savedRates)
	}
	if !repo.savedRates[0][0].Date.Equal(day(2025, 12, 2)) {
		t.Errorf("unexpected stored date: %s", repo.savedRates[0][0].Date)
	}
	if repo.lastRateArg == nil || !repo.lastRateArg.Equal(day(2025, 12, 2)) {
		t.Errorf("expected watermark 2025-12-02, got %v", repo.lastRateArg)
	}
}

func TestSyncAll_AllSourcesEmptyMarksPairEmpty(t *testing.T) {
	repo := &mockRepository{
		ListTrackingPairsFunc: func(ctx context.Context) ([]model.TrackingPair, error) {
			return []model.TrackingPair{{
				CurrencyCodeFrom: "usd",
				CurrencyCodeTo:   "rub",
				Sources:          []string{"first", "second"},
			}}, nil
		},
	}
	first := &mockSource{name: "first", supports: true}
	second := &mockSource{name: "second", supports: true}

	report, err := newTestService(repo, first, second).SyncAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Empty != 1 || report.Synced != 0 || report.Failed != 0 {
		t.Errorf("unexpected report: %+v", report)
	}
	if first.calls != 1 || second.calls != 1 {
		t.Errorf("expected both sources to be tried, got %d and %d calls", first.calls, second.calls)
	}
	if len(repo.savedRates) != 0 {
		t.Errorf("empty results must not be persisted, got %v", repo.savedRates)
	}
	if len(repo.syncStatuses) != 1 || repo.syncStatuses[0] != model.SyncStatusEmpty {
		t.Errorf("expected empty sync state, got %v", repo.syncStatuses)
	}
}

func TestSyncAll_SourceErrorMarksPairFailed(t *testing.T) {
	repo := &mockRepository{
		ListTrackingPairsFunc: func(ctx context.Context) ([]model.TrackingPair, error) {
			return []model.TrackingPair{{
				CurrencyCodeFrom: "usd",
				CurrencyCodeTo:   "eur",
				Sources:          []string{"broken", "healthy"},
			}}, nil
		},
	}
	broken := &mockSource{
		name:     "broken",
		supports: true,
		GetExchangeRatesFunc: func(ctx context.Context, from, to string, fromDate, toDate time.Time) (provider.RateTable, error) {
			return nil, provider.ErrSchemaChanged{Provider: "broken", Missing: "payload"}
		},
	}
	healthy := &mockSource{name: "healthy", supports: true}

	report, err := newTestService(repo, broken, healthy).SyncAll(context.Background())
	if err != nil {
		t.Fatalf("a failed pair must not fail the cycle: %v", err)
	}
	if report.Failed != 1 || report.Synced != 0 {
		t.Errorf("unexpected report: %+v", report)
	}
	// A schema error stops the pair instead of falling through to fallbacks
	if healthy.calls != 0 {
		t.Errorf("expected no fallback after a source error, got %d calls", healthy.calls)
	}
	if len(repo.syncStatuses) != 1 || repo.syncStatuses[0] != model.SyncStatusFailed {
		t.Errorf("expected failed sync state, got %v", repo.syncStatuses)
	}
}

func TestSyncAll_SkipsUnsupportedAndUnknownSources(t *testing.T) {
	repo := &mockRepository{
		ListTrackingPairsFunc: func(ctx context.Context) ([]model.TrackingPair, error) {
			return []model.TrackingPair{{
				CurrencyCodeFrom: "btc",
				CurrencyCodeTo:   "usd",
				Sources:          []string{"missing", "fiat_only", "crypto"},
			}}, nil
		},
	}
	fiatOnly := &mockSource{name: "fiat_only", supports: false}
	crypto := &mockSource{
		name:     "crypto",
		supports: true,
		GetExchangeRatesFunc: func(ctx context.Context, from, to string, fromDate, toDate time.Time) (provider.RateTable, error) {
			return provider.RateTable{providerRow(day(2025, 12, 2), "BTC", "USD", "93412.55")}, nil
		},
	}

	report, err := newTestService(repo, fiatOnly, crypto).SyncAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Synced != 1 {
		t.Errorf("unexpected report: %+v", report)
	}
	if fiatOnly.calls != 0 {
		t.Errorf("unsupported source must not be fetched, got %d calls", fiatOnly.calls)
	}
	if crypto.calls != 1 {
		t.Errorf("expected the supporting source to be fetched once, got %d calls", crypto.calls)
	}
}

func TestSyncAll_WatermarkAtTodaySkipsFetch(t *testing.T) {
	repo := &mockRepository{
		ListTrackingPairsFunc: func(ctx context.Context) ([]model.TrackingPair, error) {
			return []model.TrackingPair{{
				CurrencyCodeFrom: "usd",
				CurrencyCodeTo:   "eur",
				Sources:          []string{"mock"},
				LastRateDate:     day(2025, 12, 3),
			}}, nil
		},
	}
	source := &mockSource{name: "mock", supports: true}

	report, err := newTestService(repo, source).SyncAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Synced != 1 {
		t.Errorf("an up-to-date pair still counts as synced: %+v", report)
	}
	if source.calls != 0 {
		t.Errorf("expected no fetch for an up-to-date pair, got %d calls", source.calls)
	}
	if repo.lastRateArg != nil {
		t.Errorf("expected the watermark to be left untouched, got %v", repo.lastRateArg)
	}
}

func TestSyncAll_SaveFailureMarksPairFailed(t *testing.T) {
	repo := &mockRepository{
		ListTrackingPairsFunc: func(ctx context.Context) ([]model.TrackingPair, error) {
			return []model.TrackingPair{{
				CurrencyCodeFrom: "usd",
				CurrencyCodeTo:   "eur",
				Sources:          []string{"mock"},
			}}, nil
		},
		SaveRatesFunc: func(ctx context.Context, rates []model.FxRate) error {
			return errors.New("connection reset")
		},
	}
	source := &mockSource{
		name:     "mock",
		supports: true,
		GetExchangeRatesFunc: func(ctx context.Context, from, to string, fromDate, toDate time.Time) (provider.RateTable, error) {
			return provider.RateTable{providerRow(day(2025, 12, 2), "USD", "EUR", "0.86")}, nil
		},
	}

	report, err := newTestService(repo, source).SyncAll(context.Background())
	if err != nil {
		t.Fatalf("a failed pair must not fail the cycle: %v", err)
	}
	if report.Failed != 1 {
		t.Errorf("unexpected report: %+v", report)
	}
	if len(repo.syncStatuses) != 1 || repo.syncStatuses[0] != model.SyncStatusFailed {
		t.Errorf("expected failed sync state, got %v", repo.syncStatuses)
	}
}

func TestSyncAll_ListPairsFailureFailsCycle(t *testing.T) {
	repo := &mockRepository{
		ListTrackingPairsFunc: func(ctx context.Context) ([]model.TrackingPair, error) {
			return nil, errors.New("connection refused")
		},
	}

	if _, err := newTestService(repo).SyncAll(context.Background()); err == nil {
		t.Fatal("expected the cycle to fail when pairs cannot be listed")
	}
}

func TestGetRates_UppercasesCodes(t *testing.T) {
	var gotFrom, gotTo string
	repo := &mockRepository{
		GetRatesFunc: func(ctx context.Context, from, to string, fromDate, toDate time.Time) ([]model.FxRate, error) {
			gotFrom, gotTo = from, to
			return []model.FxRate{}, nil
		},
	}

	if _, err := newTestService(repo).GetRates(context.Background(), "usd", "eur", day(2025, 11, 1), day(2025, 12, 1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotFrom != "USD" || gotTo != "EUR" {
		t.Errorf("expected upper-cased codes, got %s/%s", gotFrom, gotTo)
	}
}
