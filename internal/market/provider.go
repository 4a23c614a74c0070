package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/MessaoudiOussama/market-analytics/internal/domain"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const dateLayout = "2006-01-02"

// HTTPProvider fetches prices from the market-data service. Calls are rate
// limited to stay inside the upstream quota and pass through a circuit
// breaker so a struggling provider fails fast instead of stalling the
// pipeline.
type HTTPProvider struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

func NewHTTPProvider(baseURL string, requestsPerSecond float64) *HTTPProvider {
	settings := gobreaker.Settings{
		Name:    "market-data",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// A window without a trading day is a valid answer, not a
		// provider failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrNoObservation)
		},
	}
	return &HTTPProvider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

type priceResponse struct {
	Symbol string  `json:"symbol"`
	Date   string  `json:"date"`
	Close  float64 `json:"close"`
}

// PriceNear returns the nearest observation on or forward from date within
// lookaheadDays. A 404 from the provider means no trading day in the window
// and maps to ErrNoObservation.
func (p *HTTPProvider) PriceNear(ctx context.Context, symbol string, date time.Time, lookaheadDays int) (domain.Observation, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return domain.Observation{}, fmt.Errorf("rate limiter: %w", err)
	}

	result, err := p.breaker.Execute(func() (any, error) {
		return p.fetch(ctx, symbol, date, lookaheadDays)
	})
	if err != nil {
		return domain.Observation{}, err
	}
	return result.(domain.Observation), nil
}

func (p *HTTPProvider) fetch(ctx context.Context, symbol string, date time.Time, lookaheadDays int) (domain.Observation, error) {
	query := url.Values{}
	query.Set("symbol", symbol)
	query.Set("date", date.Format(dateLayout))
	query.Set("lookahead_days", fmt.Sprintf("%d", lookaheadDays))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/prices?"+query.Encode(), nil)
	if err != nil {
		return domain.Observation{}, fmt.Errorf("build request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return domain.Observation{}, fmt.Errorf("fetch price for %s: %w", symbol, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusNotFound {
		return domain.Observation{}, fmt.Errorf("%s near %s: %w", symbol, date.Format(dateLayout), domain.ErrNoObservation)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.Observation{}, fmt.Errorf("market data returned %d for %s", resp.StatusCode, symbol)
	}

	var pr priceResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return domain.Observation{}, fmt.Errorf("decode price response: %w", err)
	}

	observed, err := time.Parse(dateLayout, pr.Date)
	if err != nil {
		return domain.Observation{}, fmt.Errorf("parse observation date %q: %w", pr.Date, err)
	}
	return domain.Observation{Symbol: pr.Symbol, Date: observed, Close: pr.Close}, nil
}
