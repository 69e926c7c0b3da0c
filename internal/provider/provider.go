package provider

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Rate is one quoted exchange rate in the canonical schema.
// Date carries no time-of-day component (UTC midnight), currency codes are
// upper-case, and Rate keeps full decimal precision end to end.
type Rate struct {
	Date         time.Time
	CurrencyFrom string
	CurrencyTo   string
	Rate         decimal.Decimal
}

// RateTable is an ordered collection of canonical rate rows.
// An empty table is a first-class success value, distinct from an error:
// unsupported pairs, non-2xx provider responses and "no rows for this range"
// all normalize to it.
type RateTable []Rate

// EmptyTable returns a non-nil zero-row table
func EmptyTable() RateTable {
	return RateTable{}
}

// Invert produces a new table quoting the opposite direction: currency labels
// are swapped and every rate is replaced with its reciprocal, computed in
// decimal arithmetic. Rates must be strictly positive, which the payload
// normalizers enforce before any table reaches inversion. The receiver is
// not modified.
func (t RateTable) Invert() RateTable {
	one := decimal.NewFromInt(1)
	out := make(RateTable, len(t))
	for i, row := range t {
		out[i] = Rate{
			Date:         row.Date,
			CurrencyFrom: row.CurrencyTo,
			CurrencyTo:   row.CurrencyFrom,
			Rate:         one.Div(row.Rate),
		}
	}
	return out
}

// RateSource fetches historical exchange rates from one provider for one
// asset class. Implementations perform at most one outbound request per call
// and hold no mutable state after construction, so they are safe for
// concurrent use.
type RateSource interface {
	// GetExchangeRates returns the rates for the requested pair and date
	// range, in the requested direction. It never fails for "no data": an
	// unsupported pair, a non-2xx response or an empty provider result all
	// yield an empty table with a nil error. Schema mismatches and
	// unparsable rate values are returned as errors.
	GetExchangeRates(ctx context.Context, from, to string, fromDate, toDate time.Time) (RateTable, error)

	// SupportsPair reports whether this source is configured to quote the
	// pair, in the given direction, without a network call.
	SupportsPair(from, to string) bool

	// Name returns the source name used in tracking-pair configuration
	Name() string
}

// ErrSchemaChanged is returned when a successful provider response no longer
// carries the container the normalizer depends on. Callers must not treat it
// as "zero rates for the period".
type ErrSchemaChanged struct {
	Provider string
	Missing  string
}

func (e ErrSchemaChanged) Error() string {
	return "provider " + e.Provider + " response schema changed: missing " + e.Missing
}

// PairSupport is a per-source allow-list of directly quotable currency pairs.
// It is built once at source construction and read-only afterwards.
type PairSupport struct {
	pairs map[string]map[string]struct{}
}

// NewPairSupport builds the support matrix from a from-code to to-codes
// mapping. When mirrored is true every entry also gets its reverse, keeping
// the support check consistent with sources that serve the opposite
// direction through rate inversion.
func NewPairSupport(pairs map[string][]string, mirrored bool) PairSupport {
	m := make(map[string]map[string]struct{}, len(pairs))
	add := func(from, to string) {
		from, to = strings.ToLower(from), strings.ToLower(to)
		if m[from] == nil {
			m[from] = make(map[string]struct{})
		}
		m[from][to] = struct{}{}
	}
	for from, tos := range pairs {
		for _, to := range tos {
			add(from, to)
			if mirrored {
				add(to, from)
			}
		}
	}
	return PairSupport{pairs: m}
}

// Supports reports whether the pair is in the allow-list.
// Lookup is case-insensitive; an absent from-code is false, not an error.
func (p PairSupport) Supports(from, to string) bool {
	tos, ok := p.pairs[strings.ToLower(from)]
	if !ok {
		return false
	}
	_, ok = tos[strings.ToLower(to)]
	return ok
}

// expandTemplate substitutes {name} placeholders in a URL template
func expandTemplate(template string, vars map[string]string) string {
	oldnew := make([]string, 0, len(vars)*2)
	for name, value := range vars {
		oldnew = append(oldnew, "{"+name+"}", value)
	}
	return strings.NewReplacer(oldnew...).Replace(template)
}

const dateLayout = "2006-01-02"
