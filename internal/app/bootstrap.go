// Package app assembles the venue from its parts: configuration, logging,
// the journal, the reference price engine and the symbol registry.
package app

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/snowy615/alphaBook/internal/api"
	"github.com/snowy615/alphaBook/internal/infra"
	"github.com/snowy615/alphaBook/internal/journal"
	"github.com/snowy615/alphaBook/internal/refprice"
	"github.com/snowy615/alphaBook/internal/venue"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config   *infra.Config
	Journal  *journal.Journal
	Hub      *venue.Hub
	Engine   *refprice.Engine
	Registry *venue.Registry
	Server   *api.Server
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize builds every component and wires them together. Nothing is
// started yet; main owns the lifecycle.
func (b *Bootstrap) Initialize(configPath string) error {
	slog.Info("🚀 Bootstrapping alphaBook...")

	// 1. Load Config
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	// 3. Open the trade journal
	jnl, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	b.Journal = jnl
	slog.Info("✅ Journal initialized", slog.String("path", cfg.Journal.Path))

	// 4. Reference price engine
	seeds, err := cfg.SeedPrices()
	if err != nil {
		return err
	}
	provider, err := buildProvider(cfg, seeds)
	if err != nil {
		return err
	}
	b.Engine = refprice.NewEngine(provider, refprice.Config{
		Symbols:        cfg.Market.Symbols,
		Seeds:          seeds,
		RotatePeriod:   time.Duration(cfg.RefPrice.RotatePeriodSec) * time.Second,
		TickInterval:   time.Duration(cfg.RefPrice.TickIntervalMS) * time.Millisecond,
		FetchTimeout:   time.Duration(cfg.Provider.TimeoutSec) * time.Second,
		OfficialWeight: cfg.OfficialWeight(),
		HintWeight:     cfg.HintWeight(),
		MeanReversion:  cfg.MeanReversion(),
		MaxMoveBps:     cfg.RefPrice.MaxMoveBps,
		NoiseBps:       cfg.RefPrice.NoiseBps,
		HintTTL:        time.Duration(cfg.RefPrice.HintTTLSec) * time.Second,
	})
	slog.Info("✅ Reference price engine ready", slog.String("provider", cfg.Provider.Name))

	// 5. Hub and registry
	b.Hub = venue.NewHub()
	b.Registry = venue.NewRegistry(b.Hub,
		venue.WithSymbols(cfg.Market.Symbols),
		venue.WithDepth(cfg.Market.SnapshotDepth),
		venue.WithJournal(b.Journal),
		venue.WithHintSink(b.Engine),
	)

	// 6. HTTP/WebSocket surface
	b.Server = api.NewServer(b.Registry, b.Hub, b.Engine)

	return nil
}

// Close releases resources opened by Initialize.
func (b *Bootstrap) Close() {
	if b.Engine != nil {
		b.Engine.Stop()
	}
	if b.Journal != nil {
		if err := b.Journal.Close(); err != nil {
			slog.Warn("journal close failed", slog.Any("error", err))
		}
	}
}

func buildProvider(cfg *infra.Config, seeds map[string]decimal.Decimal) (refprice.Provider, error) {
	switch cfg.Provider.Name {
	case infra.ProviderFinnhub:
		return refprice.NewFinnhubProvider(
			cfg.Provider.BaseURL,
			cfg.Provider.APIKey,
			time.Duration(cfg.Provider.TimeoutSec)*time.Second,
		), nil
	case infra.ProviderSynthetic:
		return refprice.NewSyntheticProvider(seeds), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider.Name)
	}
}
