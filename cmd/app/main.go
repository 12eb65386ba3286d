package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/snowy615/alphaBook/internal/app"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	flag.Parse()

	// 1. Pprof Server (for performance profiling)
	go func() {
		// Localhost only for security
		slog.Info("🕵️ Pprof server started on localhost:6060")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			slog.Error("Pprof server failed", slog.Any("error", err))
		}
	}()

	// 2. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(*configPath); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.Close()

	// 3. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Reference price loops (bootstrap fetch, rotator, fast tick)
	bootstrap.Engine.Start(ctx)
	slog.InfoContext(ctx, "✅ Reference price engine started",
		slog.Int("symbols", len(bootstrap.Config.Market.Symbols)))

	slog.InfoContext(ctx, "✨ alphaBook venue operational. Press Ctrl+C to exit.")

	// 5. Serve until the shutdown signal lands
	if err := bootstrap.Server.Start(ctx, bootstrap.Config.HTTP.Addr); err != nil {
		slog.Error("❌ HTTP server failed", slog.Any("error", err))
		os.Exit(1)
	}

	slog.InfoContext(ctx, "👋 Shutting down gracefully...")
}
