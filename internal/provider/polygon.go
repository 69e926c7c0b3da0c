package provider

import (
	"bytes"
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

// PolygonConfig holds the per-provider configuration shared by both Polygon
// sources. The URL template uses {ticker}, {from_date}, {to_date} and {key}
// placeholders. IgnoreSpread permits serving a fiat-to-crypto request by
// inverting the crypto-based quote; with it disabled that direction is
// genuinely unavailable.
type PolygonConfig struct {
	URLTemplate  string
	APIKey       string
	IgnoreSpread bool
}

const (
	fiatTickerPrefix   = "C:"
	cryptoTickerPrefix = "X:"
)

// PolygonFiatSource serves fiat/fiat pairs from the Polygon aggregates
// endpoint. The provider accepts fiat tickers in either direction, so the
// ticker is built in the requested order and no inversion is needed.
type PolygonFiatSource struct {
	base  polygonClient
	pairs PairSupport
}

// NewPolygonFiatSource creates the fiat source with its fixed pair allow-list.
func NewPolygonFiatSource(config PolygonConfig, client *http.Client) *PolygonFiatSource {
	return &PolygonFiatSource{
		base: polygonClient{config: config, client: client},
		pairs: NewPairSupport(map[string][]string{
			"usd": {"rub", "eur", "uzs", "amd", "thb", "aed", "rsd"},
			"eur": {"rub"},
		}, false),
	}
}

func (s *PolygonFiatSource) Name() string { return "polygon_fiat" }

func (s *PolygonFiatSource) SupportsPair(from, to string) bool {
	return s.pairs.Supports(from, to)
}

func (s *PolygonFiatSource) GetExchangeRates(ctx context.Context, from, to string, fromDate, toDate time.Time) (RateTable, error) {
	ticker := fiatTickerPrefix + strings.ToUpper(from) + strings.ToUpper(to)
	return s.base.getExchangeRates(ctx, ticker, fromDate, toDate)
}

// PolygonCryptoSource serves crypto pairs from the Polygon aggregates
// endpoint. Polygon requires the crypto asset as the ticker base: a
// crypto-from request maps onto the ticker directly, while a fiat-from
// request is only served when IgnoreSpread is enabled, by querying the
// swapped ticker and inverting the result.
type PolygonCryptoSource struct {
	base       polygonClient
	classifier *currency.Classifier
	pairs      PairSupport
}

// NewPolygonCryptoSource creates the crypto source. With IgnoreSpread
// enabled the pair matrix is mirrored at construction so the support check
// agrees with the inversion routing.
func NewPolygonCryptoSource(config PolygonConfig, classifier *currency.Classifier, client *http.Client) *PolygonCryptoSource {
	return &PolygonCryptoSource{
		base:       polygonClient{config: config, client: client},
		classifier: classifier,
		pairs: NewPairSupport(map[string][]string{
			"btc":  {"usd"},
			"eth":  {"usd"},
			"usdt": {"usd"},
		}, config.IgnoreSpread),
	}
}

func (s *PolygonCryptoSource) Name() string { return "polygon_crypto" }

func (s *PolygonCryptoSource) SupportsPair(from, to string) bool {
	return s.pairs.Supports(from, to)
}

func (s *PolygonCryptoSource) GetExchangeRates(ctx context.Context, from, to string, fromDate, toDate time.Time) (RateTable, error) {
	switch {
	case s.classifier.IsFiat(from):
		if !s.base.config.IgnoreSpread {
			return EmptyTable(), nil
		}
		ticker := cryptoTickerPrefix + strings.ToUpper(to) + strings.ToUpper(from)
		table, err := s.base.getExchangeRates(ctx, ticker, fromDate, toDate)
		if err != nil {
			return nil, err
		}
		return table.Invert(), nil

	case s.classifier.IsCrypto(from):
		ticker := cryptoTickerPrefix + strings.ToUpper(from) + strings.ToUpper(to)
		return s.base.getExchangeRates(ctx, ticker, fromDate, toDate)

	default:
		return EmptyTable(), nil
	}
}

// polygonClient is the request/normalization core shared by both Polygon
// sources.
type polygonClient struct {
	config PolygonConfig
	client *http.Client
}

func (p polygonClient) getExchangeRates(ctx context.Context, ticker string, fromDate, toDate time.Time) (RateTable, error) {
	url := expandTemplate(p.config.URLTemplate, map[string]string{
		"ticker":    ticker,
		"from_date": fromDate.Format(dateLayout),
		"to_date":   toDate.Format(dateLayout),
		"key":       p.config.APIKey,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create polygon request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("polygon request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return EmptyTable(), nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read polygon response: %w", err)
	}

	return parsePolygon(body)
}

// polygonResponse mirrors the aggregates payload. Closes are decoded as
// json.Number so the literal is handed to the decimal parser without a
// float64 intermediate.
type polygonResponse struct {
	Ticker  string `json:"ticker"`
	Results []struct {
		Timestamp json.Number `json:"t"`
		Close     json.Number `json:"c"`
	} `json:"results"`
}

// parsePolygon maps an aggregates payload to the canonical schema. The row
// direction is read back from the ticker echoed in the response. An absent
// results array means no data for the range and yields an empty table;
// unlike the Alphavantage time-series key it is not a schema error.
func parsePolygon(body []byte) (RateTable, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var payload polygonResponse
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode polygon response: %w", err)
	}

	if len(payload.Results) == 0 {
		return EmptyTable(), nil
	}

	if len(payload.Ticker) < 8 {
		return nil, ErrSchemaChanged{Provider: "polygon", Missing: "currency pair ticker"}
	}
	// Codes are taken as 3 letters each, matching the varchar(3) storage
	// columns. A 4-letter base such as USDT splits as USD/TUSD, so tickers
	// built from longer codes do not round-trip.
	from := strings.ToUpper(payload.Ticker[2:5])
	to := strings.ToUpper(payload.Ticker[5:])

	table := make(RateTable, 0, len(payload.Results))
	for _, item := range payload.Results {
		millis, err := item.Timestamp.Int64()
		if err != nil {
			return nil, fmt.Errorf("invalid polygon timestamp %q: %w", item.Timestamp.String(), err)
		}
		day := time.UnixMilli(millis).UTC()
		day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)

		rate, err := decimal.NewFromString(item.Close.String())
		if err != nil {
			return nil, fmt.Errorf("invalid polygon close %q: %w", item.Close.String(), err)
		}
		// Rates must be strictly positive; a zero would blow up inversion
		if !rate.IsPositive() {
			return nil, fmt.Errorf("non-positive polygon close %q on %s", item.Close.String(), day.Format(dateLayout))
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
