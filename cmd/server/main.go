package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/amirasaad/ledgersync/infra/initializer"
	"github.com/amirasaad/ledgersync/pkg/config"
	"github.com/amirasaad/ledgersync/webapi"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	deps, err := initializer.InitializeDependencies(cfg)
	if err != nil {
		slog.Error("failed to initialize dependencies", "error", err)
		os.Exit(1)
	}

	app := webapi.NewApp(webapi.Services{
		Ledger: deps.Ledger,
		Trips:  deps.Trips,
		Sync:   deps.Coordinator,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	deps.Logger.Info("starting server", "addr", addr)
	if err := app.Listen(addr); err != nil {
		deps.Logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
