package config

import (
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Load reads configuration from the environment. When env file paths are
// given the first one that loads wins; otherwise the default .env is tried
// and silently skipped if absent.
func Load(envFilePath ...string) (*App, error) {
	logger := slog.Default()

	loaded := false
	for _, path := range envFilePath {
		if err := godotenv.Load(path); err != nil {
			logger.Debug("environment file not loaded", "path", path, "error", err)
			continue
		}
		logger.Info("environment loaded from file", "path", path)
		loaded = true
		break
	}
	if !loaded {
		if err := godotenv.Load(); err != nil {
			logger.Debug("no .env file found, using system environment")
		}
	}
	return loadFromEnv()
}

func loadFromEnv() (*App, error) {
	var cfg App
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}

	logger := slog.Default()
	logger.Info("app config loaded",
		"env", cfg.Env,
		"db", maskValue(cfg.DB.Url),
		"sync_user", cfg.Sync.UserID,
		"sync_remote", cfg.Sync.RemoteURL,
		"sync_quiet", cfg.Sync.Quiet,
		"cursor_backend", cfg.Sync.CursorBackend,
	)
	return &cfg, nil
}

func maskValue(key string) string {
	if len(key) <= 6 {
		return "****"
	}
	return key[:2] + "****" + key[len(key)-4:]
}
