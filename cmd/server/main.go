package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"trackwire/internal/config"
	"trackwire/internal/httpapi"
	"trackwire/internal/store"
)

func main() {
	cfg, err := config.LoadServer()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st := store.New(cfg.HistoryLimit)
	go st.RunSweeper(ctx, cfg.SweepInterval)

	server := httpapi.NewServer(":"+cfg.Port, cfg.PublicBaseURL, st, cfg.AllowedOrigins)
	if err := server.Run(ctx); err != nil {
		slog.Error("server exited with error", "error", err)
		os.Exit(1)
	}

	slog.Info("server shut down cleanly")
}
