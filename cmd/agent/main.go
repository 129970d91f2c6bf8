package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"trackwire/internal/agent"
	"trackwire/internal/config"
	"trackwire/internal/enrich"
	"trackwire/internal/media"
	"trackwire/internal/media/spotify"
	"trackwire/internal/presence"
	"trackwire/internal/sessionapi"
)

func main() {
	cfg, err := config.LoadAgent()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	})))
	log := slog.Default()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sources := []media.Source{
		spotify.NewSource(ctx, cfg.Spotify.ClientID, cfg.Spotify.ClientSecret, cfg.Spotify.RefreshToken),
	}

	loop := agent.New(
		sources,
		sessionapi.NewClient(cfg.ServerURL),
		presence.NewDiscord(cfg.DiscordAppID, log),
		enrich.NewClient(),
		cfg.User,
		log,
	)

	loop.Run(ctx)
	log.Info("agent shut down cleanly")
}
