package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/dig"

	"github.com/davidbz/uniai/internal/domain"
	"github.com/davidbz/uniai/internal/observability"
	"github.com/davidbz/uniai/internal/provider/baidu"
	"github.com/davidbz/uniai/internal/provider/iflytek"
	"github.com/davidbz/uniai/internal/provider/midjourney"
	"github.com/davidbz/uniai/internal/provider/openai"
	"github.com/davidbz/uniai/internal/provider/transport"
	"github.com/davidbz/uniai/internal/store"
)

// Config represents the gateway configuration.
type Config struct {
	Server    ServerConfig
	CORS      CORSConfig
	Gateway   GatewayConfig
	Logger    observability.LoggerConfig
	Store     store.Config
	Providers ProvidersConfig
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port         int `env:"SERVER_PORT"          envDefault:"8080"`
	ReadTimeout  int `env:"SERVER_READ_TIMEOUT"  envDefault:"30"`
	WriteTimeout int `env:"SERVER_WRITE_TIMEOUT" envDefault:"0"`
}

// CORSConfig contains CORS policy settings.
type CORSConfig struct {
	AllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS"   envSeparator:"," envDefault:"*"`
	AllowedMethods   []string `env:"CORS_ALLOWED_METHODS"   envSeparator:"," envDefault:"GET,POST,OPTIONS"`
	AllowedHeaders   []string `env:"CORS_ALLOWED_HEADERS"   envSeparator:"," envDefault:"Content-Type,Authorization"`
	AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS"                  envDefault:"true"`
	MaxAge           int      `env:"CORS_MAX_AGE"                            envDefault:"86400"`
}

// GatewayConfig contains dispatcher settings.
type GatewayConfig struct {
	DefaultProvider string `env:"UNIAI_DEFAULT_PROVIDER" envDefault:"openai"`
}

// OtherConfig configures the self-hosted OpenAI-compatible provider.
type OtherConfig struct {
	transport.Settings

	// API is the endpoint; PROXY is accepted as an alias.
	API string `env:"API"`
}

// ProvidersConfig holds one block per provider, each under its own prefix.
type ProvidersConfig struct {
	OpenAI     openai.Config      `envPrefix:"OPENAI_"`
	DeepSeek   transport.Settings `envPrefix:"DEEPSEEK_"`
	Google     transport.Settings `envPrefix:"GOOGLE_"`
	GLM        transport.Settings `envPrefix:"GLM_"`
	IFlyTek    iflytek.Config     `envPrefix:"IFLYTEK_"`
	Baidu      baidu.Config       `envPrefix:"BAIDU_"`
	MoonShot   transport.Settings `envPrefix:"MOONSHOT_"`
	AliYun     transport.Settings `envPrefix:"ALIYUN_"`
	XAI        transport.Settings `envPrefix:"XAI_"`
	Other      OtherConfig        `envPrefix:"OTHER_"`
	MidJourney midjourney.Config  `envPrefix:"MIDJOURNEY_"`
	Stability  transport.Settings `envPrefix:"STABILITY_"`
}

// Endpoint returns the settings of the other provider with API applied.
func (o OtherConfig) Endpoint() transport.Settings {
	s := o.Settings
	if o.API != "" {
		s.Proxy = o.API
	}
	return s
}

// DepConfig is used for dependency injection with dig.
type DepConfig struct {
	dig.Out
	*ServerConfig
	*CORSConfig
	*observability.LoggerConfig
	*store.Config
	*ProvidersConfig
	DefaultProvider domain.DefaultProvider
}

// Load loads environment files and parses configuration.
func Load() (*Config, error) {
	for _, file := range []string{".env"} {
		_ = godotenv.Load(file)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	return &cfg, nil
}

// ParseDependenciesConfig returns pointers to sub-configs for dependency injection.
func ParseDependenciesConfig(cfg *Config) DepConfig {
	return DepConfig{
		dig.Out{},
		&cfg.Server,
		&cfg.CORS,
		&cfg.Logger,
		&cfg.Store,
		&cfg.Providers,
		domain.DefaultProvider(cfg.Gateway.DefaultProvider),
	}
}
