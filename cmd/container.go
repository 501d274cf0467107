package main

import (
	"context"
	"fmt"
	"log"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/davidbz/uniai/internal/catalog"
	"github.com/davidbz/uniai/internal/config"
	"github.com/davidbz/uniai/internal/domain"
	"github.com/davidbz/uniai/internal/http"
	"github.com/davidbz/uniai/internal/http/middleware"
	"github.com/davidbz/uniai/internal/observability"
	"github.com/davidbz/uniai/internal/provider/baidu"
	"github.com/davidbz/uniai/internal/provider/compat"
	"github.com/davidbz/uniai/internal/provider/gemini"
	"github.com/davidbz/uniai/internal/provider/iflytek"
	"github.com/davidbz/uniai/internal/provider/midjourney"
	"github.com/davidbz/uniai/internal/provider/openai"
	"github.com/davidbz/uniai/internal/provider/registry"
	"github.com/davidbz/uniai/internal/provider/stability"
	"github.com/davidbz/uniai/internal/store"
)

func buildContainer() *dig.Container {
	container := dig.New()

	// Configuration
	if err := container.Provide(config.Load); err != nil {
		log.Fatalf("Failed to provide config: %v", err)
	}
	if err := container.Provide(config.ParseDependenciesConfig); err != nil {
		log.Fatalf("Failed to provide config dependencies: %v", err)
	}

	// Observability
	if err := container.Provide(observability.InitLogger); err != nil {
		log.Fatalf("Failed to provide logger: %v", err)
	}
	if err := container.Provide(func(logger *zap.Logger) domain.EventPublisher {
		return observability.NewEventBus(logger)
	}); err != nil {
		log.Fatalf("Failed to provide event bus: %v", err)
	}

	// Task side-store
	if err := container.Provide(func(cfg *store.Config) (domain.KeyValueStore, error) {
		return store.New(context.Background(), cfg)
	}); err != nil {
		log.Fatalf("Failed to provide task store: %v", err)
	}

	// Model catalog
	if err := container.Provide(catalog.Default); err != nil {
		log.Fatalf("Failed to provide model catalog: %v", err)
	}

	// Provider Registry
	if err := container.Provide(func(kv domain.KeyValueStore, cfg *config.ProvidersConfig) (domain.ProviderRegistry, error) {
		reg := registry.NewRegistry()
		if err := registerProviders(context.Background(), reg, cfg, kv); err != nil {
			return nil, err
		}
		return reg, nil
	}); err != nil {
		log.Fatalf("Failed to provide registry: %v", err)
	}

	// Domain Services
	if err := container.Provide(domain.NewGatewayService); err != nil {
		log.Fatalf("Failed to provide gateway service: %v", err)
	}

	// HTTP Layer
	if err := container.Provide(middleware.BuildMiddlewareChain); err != nil {
		log.Fatalf("Failed to provide middleware chain: %v", err)
	}
	if err := container.Provide(http.NewHandler); err != nil {
		log.Fatalf("Failed to provide HTTP handler: %v", err)
	}
	if err := container.Provide(http.NewServer); err != nil {
		log.Fatalf("Failed to provide HTTP server: %v", err)
	}

	return container
}

// registerProviders binds every provider. Providers without credentials are
// still registered; their calls fail with a configuration error.
func registerProviders(
	ctx context.Context,
	reg domain.ProviderRegistry,
	cfg *config.ProvidersConfig,
	kv domain.KeyValueStore,
) error {
	providers := []domain.Provider{
		openai.NewProvider(cfg.OpenAI, kv),
		compat.Bind(compat.DeepSeek, cfg.DeepSeek),
		gemini.NewProvider(cfg.Google),
		compat.Bind(compat.GLM, cfg.GLM),
		iflytek.NewProvider(cfg.IFlyTek, kv),
		baidu.NewProvider(cfg.Baidu),
		compat.Bind(compat.MoonShot, cfg.MoonShot),
		compat.Bind(compat.AliYun, cfg.AliYun),
		compat.Bind(compat.XAI, cfg.XAI),
		compat.Bind(compat.Other, cfg.Other.Endpoint()),
		midjourney.NewProvider(cfg.MidJourney),
		stability.NewProvider(cfg.Stability, kv),
	}

	for _, p := range providers {
		if err := reg.Register(ctx, p); err != nil {
			return fmt.Errorf("failed to register %s provider: %w", p.Name(), err)
		}
	}

	observability.FromContext(ctx).Info("providers registered", observability.Int("count", len(providers)))
	return nil
}
