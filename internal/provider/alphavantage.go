package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/infinviz/rate-service/internal/currency"
	"github.com/shopspring/decimal"
)

// AlphavantageConfig holds the per-provider configuration for both
// Alphavantage sources. URL templates use {from}, {to}, {symbol}, {market}
// and {key} placeholders.
type AlphavantageConfig struct {
	FiatURLTemplate   string
	CryptoURLTemplate string
	APIKey            string
}

const (
	// timeSeriesPrefix names the mandatory container key of a daily
	// Alphavantage payload. A 2xx response without it is a schema change,
	// not an empty result.
	timeSeriesPrefix = "Time Series"
	closeField       = "4. close"
)

// AlphavantageFiatSource serves fiat/fiat pairs from the Alphavantage
// FX daily endpoint.
type AlphavantageFiatSource struct {
	config AlphavantageConfig
	client *http.Client
	pairs  PairSupport
}

// NewAlphavantageFiatSource creates the fiat source with its fixed pair
// allow-list.
func NewAlphavantageFiatSource(config AlphavantageConfig, client *http.Client) *AlphavantageFiatSource {
	return &AlphavantageFiatSource{
		config: config,
		client: client,
		pairs: NewPairSupport(map[string][]string{
			"usd": {"rub", "eur", "uzs", "amd", "thb", "aed", "rsd"},
			"eur": {"rub"},
		}, false),
	}
}

func (s *AlphavantageFiatSource) Name() string { return "alphavantage_fiat" }

func (s *AlphavantageFiatSource) SupportsPair(from, to string) bool {
	return s.pairs.Supports(from, to)
}

// GetExchangeRates fetches daily closes for the requested fiat pair.
// The date range is informational for this provider: the endpoint returns its
// full daily history and callers narrow it downstream.
func (s *AlphavantageFiatSource) GetExchangeRates(ctx context.Context, from, to string, fromDate, toDate time.Time) (RateTable, error) {
	url := expandTemplate(s.config.FiatURLTemplate, map[string]string{
		"from": from,
		"to":   to,
		"key":  s.config.APIKey,
	})
	return fetchAlphavantage(ctx, s.client, url, from, to)
}

// AlphavantageCryptoSource serves crypto pairs from the Alphavantage digital
// currency endpoint. The provider only quotes crypto as the base symbol, so
// fiat-to-crypto requests are fetched in the reverse direction and inverted.
type AlphavantageCryptoSource struct {
	config     AlphavantageConfig
	classifier *currency.Classifier
	client     *http.Client
	pairs      PairSupport
}

// NewAlphavantageCryptoSource creates the crypto source. The pair matrix is
// mirrored because either direction of a supported pair can be served.
func NewAlphavantageCryptoSource(config AlphavantageConfig, classifier *currency.Classifier, client *http.Client) *AlphavantageCryptoSource {
	return &AlphavantageCryptoSource{
		config:     config,
		classifier: classifier,
		client:     client,
		pairs: NewPairSupport(map[string][]string{
			"btc":  {"usd"},
			"eth":  {"usd"},
			"usdt": {"usd"},
		}, true),
	}
}

func (s *AlphavantageCryptoSource) Name() string { return "alphavantage_crypto" }

func (s *AlphavantageCryptoSource) SupportsPair(from, to string) bool {
	return s.pairs.Supports(from, to)
}

// GetExchangeRates routes by currency class before touching the network:
// crypto-to-fiat is fetched directly, fiat-to-crypto is fetched with the
// symbol and market arguments swapped and then inverted, anything else is an
// empty table with no request made.
func (s *AlphavantageCryptoSource) GetExchangeRates(ctx context.Context, from, to string, fromDate, toDate time.Time) (RateTable, error) {
	switch {
	case s.classifier.IsCrypto(from) && s.classifier.IsFiat(to):
		url := expandTemplate(s.config.CryptoURLTemplate, map[string]string{
			"symbol": from,
			"market": to,
			"key":    s.config.APIKey,
		})
		return fetchAlphavantage(ctx, s.client, url, from, to)

	case s.classifier.IsFiat(from) && s.classifier.IsCrypto(to):
		url := expandTemplate(s.config.CryptoURLTemplate, map[string]string{
			"symbol": to,
			"market": from,
			"key":    s.config.APIKey,
		})
		table, err := fetchAlphavantage(ctx, s.client, url, to, from)
		if err != nil {
			return nil, err
		}
		return table.Invert(), nil

	default:
		return EmptyTable(), nil
	}
}

// fetchAlphavantage issues the single GET both Alphavantage sources share and
// normalizes the payload. Non-2xx statuses are an empty table, not an error.
func fetchAlphavantage(ctx context.Context, client *http.Client, url, from, to string) (RateTable, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create alphavantage request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("alphavantage request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return EmptyTable(), nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read alphavantage response: %w", err)
	}

	return parseAlphavantage(body, from, to)
}

// parseAlphavantage maps a daily time-series payload to the canonical schema.
// The nested records map date strings to per-day fields; only the close is
// kept. A missing time-series key or an unparsable value fails the whole
// call so partially-correct history is never produced.
func parseAlphavantage(body []byte, from, to string) (RateTable, error) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode alphavantage response: %w", err)
	}

	var seriesRaw json.RawMessage
	found := false
	for key, raw := range payload {
		if strings.HasPrefix(key, timeSeriesPrefix) {
			seriesRaw = raw
			found = true
			break
		}
	}
	if !found {
		return nil, ErrSchemaChanged{Provider: "alphavantage", Missing: timeSeriesPrefix + " key"}
	}

	var series map[string]map[string]string
	if err := json.Unmarshal(seriesRaw, &series); err != nil {
		return nil, fmt.Errorf("failed to decode alphavantage time series: %w", err)
	}

	from, to = strings.ToUpper(from), strings.ToUpper(to)
	table := make(RateTable, 0, len(series))
	for dateStr, fields := range series {
		day, err := time.ParseInLocation(dateLayout, dateStr, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("invalid alphavantage record date %q: %w", dateStr, err)
		}

		closeStr, ok := fields[closeField]
		if !ok {
			return nil, ErrSchemaChanged{Provider: "alphavantage", Missing: closeField + " field"}
		}

		rate, err := decimal.NewFromString(closeStr)
		if err != nil {
			return nil, fmt.Errorf("invalid alphavantage rate %q on %s: %w", closeStr, dateStr, err)
		}
		// Rates must be strictly positive; a zero would blow up inversion
		if !rate.IsPositive() {
			return nil, fmt.Errorf("non-positive alphavantage rate %q on %s", closeStr, dateStr)
		}

		table = append(table, Rate{
			Date:         day,
			CurrencyFrom: from,
			CurrencyTo:   to,
			Rate:         rate,
		})
	}

	return table, nil
}
