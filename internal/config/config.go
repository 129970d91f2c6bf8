package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Server holds the session store configuration.
type Server struct {
	Port           string
	AllowedOrigins []string
	PublicBaseURL  string
	LogLevel       slog.Level
	HistoryLimit   int
	SweepInterval  time.Duration
}

// Agent holds the polling agent configuration.
type Agent struct {
	ServerURL    string
	User         string
	DiscordAppID string
	LogLevel     slog.Level
	Spotify      struct {
		ClientID     string
		ClientSecret string
		RefreshToken string
	}
}

// LoadServer loads the session store configuration from environment variables.
func LoadServer() (*Server, error) {
	loadDotEnv()

	cfg := &Server{}

	cfg.Port = os.Getenv("SERVER_PORT")
	if cfg.Port == "" {
		cfg.Port = "3000"
	}

	cfg.PublicBaseURL = os.Getenv("PUBLIC_BASE_URL")
	if cfg.PublicBaseURL == "" {
		cfg.PublicBaseURL = "http://localhost:" + cfg.Port
	}

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins != "" {
		cfg.AllowedOrigins = strings.Split(allowedOrigins, ",")
	}

	cfg.HistoryLimit = 50
	if raw := os.Getenv("HISTORY_LIMIT"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid HISTORY_LIMIT %q", raw)
		}
		cfg.HistoryLimit = n
	}

	cfg.SweepInterval = time.Minute
	if raw := os.Getenv("SWEEP_INTERVAL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid SWEEP_INTERVAL %q", raw)
		}
		cfg.SweepInterval = d
	}

	cfg.LogLevel = logLevel()

	return cfg, nil
}

// LoadAgent loads the agent configuration from environment variables.
func LoadAgent() (*Agent, error) {
	loadDotEnv()

	cfg := &Agent{}

	cfg.Spotify.ClientID = os.Getenv("SPOTIFY_CLIENT_ID")
	cfg.Spotify.ClientSecret = os.Getenv("SPOTIFY_CLIENT_SECRET")
	cfg.Spotify.RefreshToken = os.Getenv("SPOTIFY_REFRESH_TOKEN")

	if cfg.Spotify.ClientID == "" || cfg.Spotify.ClientSecret == "" || cfg.Spotify.RefreshToken == "" {
		return nil, fmt.Errorf("spotify credentials are not set")
	}

	cfg.ServerURL = os.Getenv("SESSION_SERVER_URL")
	if cfg.ServerURL == "" {
		cfg.ServerURL = "http://localhost:3000"
	}

	cfg.User = os.Getenv("TRACKWIRE_USER")
	cfg.DiscordAppID = os.Getenv("DISCORD_APP_ID")

	cfg.LogLevel = logLevel()

	return cfg, nil
}

func loadDotEnv() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, using environment variables")
	}
}

func logLevel() slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
