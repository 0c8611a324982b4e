package config

import (
	"fmt"

	env "github.com/caarlos0/env/v11"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required"`
	JWTSecret   string `env:"JWT_SECRET,required"`
	Port        int    `env:"PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv      string `env:"APP_ENV" envDefault:"production"`

	// Card rail (inline checkout, HMAC-SHA512 signed webhooks).
	CardRailBaseURL string `env:"CARD_RAIL_BASE_URL" envDefault:"https://api.cardrail.example"`
	CardRailSecret  string `env:"CARD_RAIL_SECRET,required"`

	// Crypto rail (redirect invoices, header-token webhooks).
	CryptoRailBaseURL       string `env:"CRYPTO_RAIL_BASE_URL" envDefault:"https://api.cryptorail.example"`
	CryptoRailAPIKey        string `env:"CRYPTO_RAIL_API_KEY,required"`
	CryptoRailWebhookSecret string `env:"CRYPTO_RAIL_WEBHOOK_SECRET,required"`

	// KYC verifiers and the auth backend used for identity compensation.
	RegistryBaseURL   string `env:"REGISTRY_BASE_URL" envDefault:"https://api.cac-registry.example"`
	RegistryAPIKey    string `env:"REGISTRY_API_KEY" envDefault:""`
	NINLookupBaseURL  string `env:"NIN_LOOKUP_BASE_URL" envDefault:"https://api.nin-lookup.example"`
	NINLookupAPIKey   string `env:"NIN_LOOKUP_API_KEY" envDefault:""`
	AuthAdminBaseURL  string `env:"AUTH_ADMIN_BASE_URL" envDefault:"http://auth:9090"`
	AuthAdminAPIKey   string `env:"AUTH_ADMIN_API_KEY" envDefault:""`

	ReplayCacheTTLHours int `env:"REPLAY_CACHE_TTL_HOURS" envDefault:"24"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}
