package refprice

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/snowy615/alphaBook/internal/domain"
	"github.com/snowy615/alphaBook/internal/infra"
)

const (
	defaultRotatePeriod = 15 * time.Second
	defaultTickInterval = 250 * time.Millisecond
	defaultFetchTimeout = 10 * time.Second
	defaultHintTTL      = 30 * time.Second
	defaultMaxMoveBps   = 20
	defaultNoiseBps     = 5

	bootstrapBaseDelay = 1 * time.Second
	bootstrapMaxDelay  = 30 * time.Second
	throttleDelay      = 60 * time.Second
)

var defaultSeed = decimal.NewFromInt(100)

// Config tunes the engine's loops and the synthetic walk.
type Config struct {
	Symbols      []string
	Seeds        map[string]decimal.Decimal
	RotatePeriod time.Duration
	TickInterval time.Duration
	FetchTimeout time.Duration

	OfficialWeight decimal.Decimal // blend weight of the official price
	HintWeight     decimal.Decimal // blend weight of the book mid hint
	MeanReversion  decimal.Decimal // fraction of the distance covered per tick
	MaxMoveBps     int64           // per-tick move cap, basis points
	NoiseBps       int64           // symmetric random noise, basis points
	HintTTL        time.Duration   // how long a mid hint counts as recent
}

func (c *Config) applyDefaults() {
	if c.RotatePeriod <= 0 {
		c.RotatePeriod = defaultRotatePeriod
	}
	if c.TickInterval <= 0 {
		c.TickInterval = defaultTickInterval
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = defaultFetchTimeout
	}
	if c.OfficialWeight.Sign() <= 0 && c.HintWeight.Sign() <= 0 {
		c.OfficialWeight = decimal.RequireFromString("0.7")
		c.HintWeight = decimal.RequireFromString("0.3")
	}
	if c.MeanReversion.Sign() <= 0 {
		c.MeanReversion = decimal.RequireFromString("0.1")
	}
	if c.MaxMoveBps <= 0 {
		c.MaxMoveBps = defaultMaxMoveBps
	}
	if c.NoiseBps < 0 {
		c.NoiseBps = defaultNoiseBps
	}
	if c.HintTTL <= 0 {
		c.HintTTL = defaultHintTTL
	}
}

// symbolState holds one symbol's price cells. Each loop writes disjoint
// fields; the narrow mutex only guards copy/replace, never I/O.
type symbolState struct {
	mu sync.RWMutex

	official   decimal.Decimal
	officialOK bool
	source     string
	providerTs time.Time
	fetchedAt  time.Time

	synthetic   decimal.Decimal
	syntheticOK bool

	hintMid decimal.Decimal
	hintOK  bool
	hintAt  time.Time

	bootstrapped bool
}

func (s *symbolState) setOfficial(q domain.Quote, seedSynthetic bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.official = q.Price
	s.officialOK = true
	s.source = q.Source
	s.providerTs = q.ProviderTs
	s.fetchedAt = q.FetchedAt
	if seedSynthetic || !s.syntheticOK {
		s.synthetic = q.Price
		s.syntheticOK = true
	}
	s.bootstrapped = true
}

// Engine tracks one reference price per symbol through three cooperating
// loops: per-symbol bootstrap, a rotator refreshing official quotes one
// symbol at a time, and a fast synthetic tick nudging every symbol toward a
// blended target.
type Engine struct {
	cfg      Config
	provider Provider

	mu     sync.Mutex
	states map[string]*symbolState

	rngMu sync.Mutex
	rng   *rand.Rand

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine builds the engine and seeds each configured symbol's synthetic
// price with its static fallback, so a reference price is available from the
// first call.
func NewEngine(provider Provider, cfg Config) *Engine {
	cfg.applyDefaults()
	e := &Engine{
		cfg:      cfg,
		provider: provider,
		states:   make(map[string]*symbolState),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, sym := range cfg.Symbols {
		st := &symbolState{synthetic: e.seedFor(sym), syntheticOK: true}
		e.states[sym] = st
	}
	return e
}

func (e *Engine) seedFor(symbol string) decimal.Decimal {
	if seed, ok := e.cfg.Seeds[symbol]; ok && seed.Sign() > 0 {
		return seed
	}
	return defaultSeed
}

// Start launches the three loops. They stop together when ctx is canceled or
// Stop is called.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)

	for _, sym := range e.cfg.Symbols {
		e.wg.Add(1)
		go func(sym string) {
			defer e.wg.Done()
			e.bootstrap(ctx, sym)
		}(sym)
	}

	e.wg.Add(2)
	go func() {
		defer e.wg.Done()
		e.rotate(ctx)
	}()
	go func() {
		defer e.wg.Done()
		e.tick(ctx)
	}()

	slog.Info("reference price engine started",
		slog.Int("symbols", len(e.cfg.Symbols)),
		slog.Duration("rotate_period", e.cfg.RotatePeriod),
		slog.Duration("tick_interval", e.cfg.TickInterval))
}

// Stop cancels the loops and waits for them to finish.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
		e.wg.Wait()
	}
}

// bootstrap fetches the first official quote for one symbol, backing off
// exponentially on generic errors and waiting longer on a throttle signal.
func (e *Engine) bootstrap(ctx context.Context, symbol string) {
	delay := bootstrapBaseDelay
	for {
		q, err := e.fetch(ctx, symbol)
		if err == nil {
			e.stateFor(symbol).setOfficial(q, true)
			slog.Info("reference price bootstrapped",
				slog.String("symbol", symbol),
				slog.String("price", q.Price.String()),
				slog.String("source", q.Source))
			return
		}
		if ctx.Err() != nil {
			return
		}

		wait := delay
		if domain.IsThrottled(err) {
			wait = throttleDelay
		} else {
			delay *= 2
			if delay > bootstrapMaxDelay {
				delay = bootstrapMaxDelay
			}
		}
		slog.Warn("bootstrap fetch failed",
			slog.String("symbol", symbol),
			slog.Duration("retry_in", wait),
			slog.Any("error", err))

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// rotate refreshes official prices one symbol per period. The period itself
// throttles request rate, so failures are just logged and retried next cycle.
func (e *Engine) rotate(ctx context.Context) {
	if len(e.cfg.Symbols) == 0 {
		return
	}
	ticker := time.NewTicker(e.cfg.RotatePeriod)
	defer ticker.Stop()

	idx := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			symbol := e.cfg.Symbols[idx%len(e.cfg.Symbols)]
			idx++

			q, err := e.fetch(ctx, symbol)
			if err != nil {
				slog.Warn("rotator fetch failed",
					slog.String("symbol", symbol), slog.Any("error", err))
				continue
			}
			e.stateFor(symbol).setOfficial(q, false)
		}
	}
}

// tick advances every symbol's synthetic price toward its blended target.
func (e *Engine) tick(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, st := range e.snapshotStates() {
				e.step(st)
			}
		}
	}
}

func (e *Engine) snapshotStates() []*symbolState {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*symbolState, 0, len(e.states))
	for _, st := range e.states {
		out = append(out, st)
	}
	return out
}

// step applies one synthetic tick: mean reversion toward the blended target,
// clamped to MaxMoveBps, plus bounded symmetric noise, floored above zero.
func (e *Engine) step(st *symbolState) {
	st.mu.Lock()
	defer st.mu.Unlock()

	hintFresh := st.hintOK && time.Since(st.hintAt) <= e.cfg.HintTTL

	var target decimal.Decimal
	switch {
	case st.officialOK && hintFresh:
		target = st.official.Mul(e.cfg.OfficialWeight).Add(st.hintMid.Mul(e.cfg.HintWeight))
	case st.officialOK:
		target = st.official
	case hintFresh:
		target = st.hintMid
	default:
		// No signal: the synthetic price stays where it is.
		return
	}

	if !st.syntheticOK {
		st.synthetic = target
		st.syntheticOK = true
		return
	}

	move := target.Sub(st.synthetic).Mul(e.cfg.MeanReversion)
	maxMove := st.synthetic.Mul(decimal.NewFromInt(e.cfg.MaxMoveBps)).Div(decimal.NewFromInt(10000))
	if move.GreaterThan(maxMove) {
		move = maxMove
	} else if move.LessThan(maxMove.Neg()) {
		move = maxMove.Neg()
	}

	noise := st.synthetic.
		Mul(decimal.NewFromInt(e.cfg.NoiseBps)).
		Div(decimal.NewFromInt(10000)).
		Mul(e.randomUnit())

	next := st.synthetic.Add(move).Add(noise)
	if next.Sign() <= 0 {
		next = st.synthetic // never let the walk go non-positive
	}
	st.synthetic = next
}

// randomUnit returns a uniform decimal in [-1, 1].
func (e *Engine) randomUnit() decimal.Decimal {
	e.rngMu.Lock()
	f := e.rng.Float64()*2 - 1
	e.rngMu.Unlock()
	return decimal.NewFromFloat(f)
}

func (e *Engine) fetch(ctx context.Context, symbol string) (domain.Quote, error) {
	fctx, cancel := context.WithTimeout(ctx, e.cfg.FetchTimeout)
	defer cancel()
	q, err := e.provider.Fetch(fctx, symbol)
	if err != nil {
		infra.GlobalMetrics.RecordQuoteError()
		return domain.Quote{}, err
	}
	infra.GlobalMetrics.RecordQuoteFetch()
	return q, nil
}

// stateFor returns the symbol's state, creating an unseeded one on first use
// so untracked symbols can still carry hints.
func (e *Engine) stateFor(symbol string) *symbolState {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.states[symbol]
	if !ok {
		st = &symbolState{}
		e.states[symbol] = st
	}
	return st
}

// RefPrice returns the freshest reference price: synthetic, else official,
// else a recent mid hint, else nothing. Provider failures never surface here.
func (e *Engine) RefPrice(symbol string) (decimal.Decimal, bool) {
	e.mu.Lock()
	st, ok := e.states[symbol]
	e.mu.Unlock()
	if !ok {
		return decimal.Zero, false
	}

	st.mu.RLock()
	defer st.mu.RUnlock()
	switch {
	case st.syntheticOK:
		return st.synthetic, true
	case st.officialOK:
		return st.official, true
	case st.hintOK:
		return st.hintMid, true
	default:
		return decimal.Zero, false
	}
}

// SetHintMid records the latest book mid-price for a symbol. Fire and
// forget: it only replaces a last-value cell read by the fast tick.
func (e *Engine) SetHintMid(symbol string, mid decimal.Decimal) {
	if mid.Sign() <= 0 {
		return
	}
	st := e.stateFor(symbol)
	st.mu.Lock()
	st.hintMid = mid
	st.hintOK = true
	st.hintAt = time.Now()
	st.mu.Unlock()
}

// Bootstrapped reports whether the first official quote has landed.
func (e *Engine) Bootstrapped(symbol string) bool {
	e.mu.Lock()
	st, ok := e.states[symbol]
	e.mu.Unlock()
	if !ok {
		return false
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.bootstrapped
}

// Provenance returns the source label and timestamps of the last official
// quote, if any.
func (e *Engine) Provenance(symbol string) (source string, providerTs, fetchedAt time.Time, ok bool) {
	e.mu.Lock()
	st, found := e.states[symbol]
	e.mu.Unlock()
	if !found {
		return "", time.Time{}, time.Time{}, false
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	if !st.officialOK {
		return "", time.Time{}, time.Time{}, false
	}
	return st.source, st.providerTs, st.fetchedAt, true
}
