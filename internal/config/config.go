package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":8080"`
	DBPath       string        `env:"DB_PATH" envDefault:"data/expedition.db"`
	LogLevel     slog.Level    `env:"LOG_LEVEL" envDefault:"INFO"`
	AppEnv       string        `env:"APP_ENV" envDefault:"development"`
	PartyOpenTTL time.Duration `env:"PARTY_OPEN_TTL" envDefault:"24h"`
	AtlasPath    string        `env:"ATLAS_PATH"`
	SeedDemo     bool          `env:"SEED_DEMO" envDefault:"false"`

	Storage Storage `envPrefix:"STORAGE_"`
	S3      S3      `envPrefix:"S3_"`
	Redis   Redis   `envPrefix:"REDIS_"`
	Discord Discord `envPrefix:"DISCORD_"`

	ImageCacheTTL time.Duration `env:"IMAGE_CACHE_TTL" envDefault:"10m"`
}

type Storage struct {
	Driver    string `env:"DRIVER" envDefault:"fs"`
	Dir       string `env:"DIR" envDefault:"data/assets"`
	PublicURL string `env:"PUBLIC_URL" envDefault:"/assets"`
}

type S3 struct {
	Endpoint        string `env:"ENDPOINT"`
	Bucket          string `env:"BUCKET"`
	Region          string `env:"REGION" envDefault:"auto"`
	AccessKeyID     string `env:"ACCESS_KEY_ID"`
	SecretAccessKey string `env:"SECRET_ACCESS_KEY"`
}

// Redis is optional; an empty URL selects the in-process image cache.
type Redis struct {
	URL string `env:"URL"`
}

// Discord is optional; an empty token keeps threads in the local log.
type Discord struct {
	Token     string `env:"TOKEN"`
	ChannelID string `env:"CHANNEL_ID"`
	GuildID   string `env:"GUILD_ID"`
	APIURL    string `env:"API_URL"`
}

// Production reports whether error details must be withheld from clients.
func (c *Config) Production() bool { return c.AppEnv == "production" }

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case "fs":
	case "s3":
		if c.S3.Endpoint == "" || c.S3.Bucket == "" {
			return fmt.Errorf("STORAGE_DRIVER=s3 needs S3_ENDPOINT and S3_BUCKET")
		}
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage.Driver)
	}
	if c.Discord.Token != "" && c.Discord.ChannelID == "" {
		return fmt.Errorf("DISCORD_TOKEN needs DISCORD_CHANNEL_ID")
	}
	return nil
}
