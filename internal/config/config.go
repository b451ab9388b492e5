// /internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	DiscordToken      string `env:"DISCORD_TOKEN,required,notEmpty"`
	DiscordBotAccount bool   `env:"DISCORD_BOT_ACCOUNT" envDefault:"false"`
	MessageCacheSize  int    `env:"MESSAGE_CACHE_SIZE" envDefault:"100"`

	StoragePath            string        `env:"STORAGE_PATH" envDefault:"datastore.json"`
	SettingsReloadInterval time.Duration `env:"SETTINGS_RELOAD_INTERVAL" envDefault:"5s"`
	SettingsAddr           string        `env:"SETTINGS_ADDR"`

	DefaultTargetServerID string `env:"TARGET_SERVER_ID" envDefault:"500074231544152074"`
	DefaultBotID          string `env:"BOT_ID" envDefault:"1279925176422633522"`
	DefaultEnabled        bool   `env:"AUTOBLOCK_ENABLED" envDefault:"true"`

	BrowserProfileDir string `env:"BROWSER_PROFILE_DIR" envDefault:".browser-profile"`
	BrowserHeadless   bool   `env:"BROWSER_HEADLESS" envDefault:"false"`
	DiscordWebURL     string `env:"DISCORD_WEB_URL" envDefault:"https://discord.com"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`
}

// New loads .env (if present) and parses the environment.
func New() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("No .env file found, falling back to system environment variables")
	}
	return Parse()
}

// Parse reads the process environment without touching .env files.
func Parse() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.MessageCacheSize < 1 {
		return nil, fmt.Errorf("MESSAGE_CACHE_SIZE must be positive, got %d", cfg.MessageCacheSize)
	}
	return &cfg, nil
}
