package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// FxRate is one stored exchange rate, the persistence-side view of the
// canonical row schema. Date is a calendar date (UTC midnight).
type FxRate struct {
	Date             time.Time       `json:"date"`
	CurrencyCodeFrom string          `json:"currencyCodeFrom"`
	CurrencyCodeTo   string          `json:"currencyCodeTo"`
	Rate             decimal.Decimal `json:"rate"`
}

// SyncStatus is the recorded outcome of the latest sync attempt for a pair
type SyncStatus string

const (
	// SyncStatusOK means rates were fetched and persisted
	SyncStatusOK SyncStatus = "ok"
	// SyncStatusEmpty means every configured source returned no data
	SyncStatusEmpty SyncStatus = "empty"
	// SyncStatusFailed means a source reported a schema or parse error
	SyncStatusFailed SyncStatus = "failed"
)

// TrackingPair is one currency pair the service keeps in sync. Sources is
// the ordered list of rate-source names to try; the first source that
// supports the pair and returns data wins.
type TrackingPair struct {
	CurrencyCodeFrom string     `json:"currencyCodeFrom"`
	CurrencyCodeTo   string     `json:"currencyCodeTo"`
	Sources          []string   `json:"sources"`
	LastSyncDate     time.Time  `json:"lastSyncDate"`
	LastSyncStatus   SyncStatus `json:"lastSyncStatus"`
	// LastRateDate is the newest rate date already persisted for the pair;
	// zero when the pair has never synced.
	LastRateDate time.Time `json:"lastRateDate"`
}
