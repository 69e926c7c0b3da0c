package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/infinviz/rate-service/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository implements RateRepository on top of a pgx pool
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a Postgres-backed repository
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const upsertRateQuery = `
INSERT INTO fx_rates (date, currency_code_from, currency_code_to, rate)
VALUES ($1, $2, $3, $4)
ON CONFLICT (date, currency_code_from, currency_code_to)
DO UPDATE SET rate = EXCLUDED.rate`

// SaveRates upserts the batch in one round trip
func (r *PostgresRepository) SaveRates(ctx context.Context, rates []model.FxRate) error {
	if len(rates) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, rate := range rates {
		batch.Queue(upsertRateQuery, rate.Date, rate.CurrencyCodeFrom, rate.CurrencyCodeTo, rate.Rate)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rates {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to save rates: %w", err)
		}
	}

	return nil
}

// GetRates returns the stored rates for a pair, ordered by date
func (r *PostgresRepository) GetRates(ctx context.Context, from, to string, fromDate, toDate time.Time) ([]model.FxRate, error) {
	rows, err := r.db.Query(ctx, `
		SELECT date, currency_code_from, currency_code_to, rate
		FROM fx_rates
		WHERE currency_code_from = $1 AND currency_code_to = $2
		  AND date BETWEEN $3 AND $4
		ORDER BY date`,
		from, to, fromDate, toDate)
	if err != nil {
		return nil, fmt.Errorf("failed to query rates: %w", err)
	}
	defer rows.Close()

	rates := make([]model.FxRate, 0)
	for rows.Next() {
		var rate model.FxRate
		if err := rows.Scan(&rate.Date, &rate.CurrencyCodeFrom, &rate.CurrencyCodeTo, &rate.Rate); err != nil {
			return nil, fmt.Errorf("failed to scan rate row: %w", err)
		}
		rates = append(rates, rate)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rate rows: %w", err)
	}

	return rates, nil
}

// ListTrackingPairs returns every tracked pair with its sync state
func (r *PostgresRepository) ListTrackingPairs(ctx context.Context) ([]model.TrackingPair, error) {
	rows, err := r.db.Query(ctx, `
		SELECT currency_code_from, currency_code_to, sources_config,
		       last_sync_date, last_sync_status, last_rate_date
		FROM fx_tracking_pairs
		ORDER BY currency_code_from, currency_code_to`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracking pairs: %w", err)
	}
	defer rows.Close()

	pairs := make([]model.TrackingPair, 0)
	for rows.Next() {
		var (
			pair         model.TrackingPair
			sourcesJSON  []byte
			lastSyncDate *time.Time
			lastStatus   *string
			lastRateDate *time.Time
		)
		if err := rows.Scan(&pair.CurrencyCodeFrom, &pair.CurrencyCodeTo, &sourcesJSON,
			&lastSyncDate, &lastStatus, &lastRateDate); err != nil {
			return nil, fmt.Errorf("failed to scan tracking pair: %w", err)
		}

		if len(sourcesJSON) > 0 {
			if err := json.Unmarshal(sourcesJSON, &pair.Sources); err != nil {
				return nil, fmt.Errorf("invalid sources_config for %s/%s: %w",
					pair.CurrencyCodeFrom, pair.CurrencyCodeTo, err)
			}
		}
		if lastSyncDate != nil {
			pair.LastSyncDate = *lastSyncDate
		}
		if lastStatus != nil {
			pair.LastSyncStatus = model.SyncStatus(*lastStatus)
		}
		if lastRateDate != nil {
			pair.LastRateDate = *lastRateDate
		}

		pairs = append(pairs, pair)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read tracking pairs: %w", err)
	}

	return pairs, nil
}

// UpdateSyncState stamps the latest sync outcome for a pair.
// A nil lastRateDate leaves the stored watermark untouched.
func (r *PostgresRepository) UpdateSyncState(ctx context.Context, from, to string, status model.SyncStatus, lastRateDate *time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE fx_tracking_pairs
		SET last_sync_date = now(),
		    last_sync_status = $3,
		    last_rate_date = COALESCE($4, last_rate_date)
		WHERE currency_code_from = $1 AND currency_code_to = $2`,
		from, to, string(status), lastRateDate)
	if err != nil {
		return fmt.Errorf("failed to update sync state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound{Key: from + "/" + to}
	}

	return nil
}

// Health checks database connectivity
func (r *PostgresRepository) Health(ctx context.Context) error {
	return r.db.Ping(ctx)
}
