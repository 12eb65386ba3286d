// Package refprice keeps a continuously available reference price per symbol
// by blending intermittent official quotes with a smooth synthetic walk.
package refprice

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/snowy615/alphaBook/internal/domain"
)

// UserAgent mirrors a browser to avoid bot detection on public quote APIs.
const UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Provider fetches one official quote for a symbol. Failures come back as
// *domain.ProviderError so callers can tell throttling from hard errors.
type Provider interface {
	Fetch(ctx context.Context, symbol string) (domain.Quote, error)
}

// finnhubQuote is the /quote response shape.
type finnhubQuote struct {
	Current float64 `json:"c"`
	Ts      int64   `json:"t"` // unix seconds
}

// FinnhubProvider pulls quotes from a Finnhub-compatible REST endpoint.
type FinnhubProvider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewFinnhubProvider creates a provider against baseURL (the real API when
// empty) with the given request timeout.
func NewFinnhubProvider(baseURL, apiKey string, timeout time.Duration) *FinnhubProvider {
	if baseURL == "" {
		baseURL = "https://finnhub.io/api/v1"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &FinnhubProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Fetch requests the current quote. A 429 status maps to a throttle signal;
// everything else that goes wrong is a generic provider error.
func (p *FinnhubProvider) Fetch(ctx context.Context, symbol string) (domain.Quote, error) {
	u := fmt.Sprintf("%s/quote?symbol=%s&token=%s", p.baseURL, url.QueryEscape(symbol), url.QueryEscape(p.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return domain.Quote{}, domain.NewProviderError("build request", err)
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return domain.Quote{}, domain.NewProviderError("fetch", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return domain.Quote{}, domain.NewThrottledError("fetch", fmt.Errorf("status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return domain.Quote{}, domain.NewProviderError("fetch", fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}

	var q finnhubQuote
	if err := json.NewDecoder(resp.Body).Decode(&q); err != nil {
		return domain.Quote{}, domain.NewProviderError("decode", err)
	}
	if q.Current <= 0 {
		return domain.Quote{}, domain.NewProviderError("decode", fmt.Errorf("no price for %s", symbol))
	}

	providerTs := time.Unix(q.Ts, 0)
	if q.Ts == 0 {
		providerTs = time.Now()
	}
	return domain.Quote{
		Symbol:     symbol,
		Price:      decimal.NewFromFloat(q.Current),
		Source:     "finnhub",
		ProviderTs: providerTs,
		FetchedAt:  time.Now(),
	}, nil
}

// SyntheticProvider is the zero-configuration offline fallback: a bounded
// random walk around the last value, seeded per symbol. It never fails.
type SyntheticProvider struct {
	mu    sync.Mutex
	last  map[string]decimal.Decimal
	seeds map[string]decimal.Decimal
	rng   *rand.Rand
}

// NewSyntheticProvider creates a walk seeded from the given per-symbol
// prices; unknown symbols start at 100.
func NewSyntheticProvider(seeds map[string]decimal.Decimal) *SyntheticProvider {
	return &SyntheticProvider{
		last:  make(map[string]decimal.Decimal),
		seeds: seeds,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Fetch returns the next step of the walk: last * (1 ± up to 10 bps).
func (p *SyntheticProvider) Fetch(_ context.Context, symbol string) (domain.Quote, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	last, ok := p.last[symbol]
	if !ok {
		if seed, ok := p.seeds[symbol]; ok && seed.Sign() > 0 {
			last = seed
		} else {
			last = decimal.NewFromInt(100)
		}
	}

	drift := decimal.NewFromFloat((p.rng.Float64()*2 - 1) * 0.001)
	next := last.Mul(decimal.NewFromInt(1).Add(drift)).Round(4)
	if next.Sign() <= 0 {
		next = last
	}
	p.last[symbol] = next

	now := time.Now()
	return domain.Quote{
		Symbol:     symbol,
		Price:      next,
		Source:     "synthetic",
		ProviderTs: now,
		FetchedAt:  now,
	}, nil
}
