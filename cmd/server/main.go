package main

import (
	"log"
	"net/http"
	"os"
	"time"

	"educraft/internal/app"
	"educraft/internal/config"
	"educraft/internal/ratelimit"
	"educraft/internal/server"
	"educraft/internal/util"
	"educraft/pkg/ai"
	"educraft/pkg/storage"
	"educraft/pkg/store"
	"educraft/pkg/token"
)

func main() {
	cfg, err := config.Load(os.Getenv("EDUCRAFT_CONFIG"))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	jwtLeeway, err := config.ParseJWTLeeway(cfg.JWTLeeway)
	if err != nil {
		log.Fatalf("failed to parse jwt leeway: %v", err)
	}
	issuer, err := token.New(token.Config{
		Secret:   cfg.JWTSecret,
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		Leeway:   jwtLeeway,
	})
	if err != nil {
		log.Fatalf("failed to init token issuer: %v", err)
	}

	// The persistent backend is optional: without it (or when it is down)
	// every operation lands on the in-memory store.
	var persistent *store.GormStore
	if cfg.DatabaseURL != "" {
		persistent, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			logger.Warn("postgres unavailable, serving from memory only", "error", err)
			persistent = nil
		}
	} else {
		logger.Warn("no databaseURL configured, serving from memory only")
	}
	dataStore := store.NewFallbackStore(persistent, store.NewMemoryStore(), logger)

	providers := buildProviders(cfg)
	dispatcher := ai.NewDispatcher(cfg.DefaultProvider, logger, providers...)

	objects, uploadsDir, err := buildObjectStore(cfg)
	if err != nil {
		log.Fatalf("failed to init storage: %v", err)
	}

	appCore, err := app.New(app.Config{
		Store:   dataStore,
		Tokens:  issuer,
		AI:      dispatcher,
		Objects: objects,
		Logger:  logger,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	trustedProxies, err := util.NewTrustedProxies(cfg.TrustedProxyCIDRs)
	if err != nil {
		log.Fatalf("failed to parse trusted proxies: %v", err)
	}

	limiters, err := buildLimiters(cfg)
	if err != nil {
		log.Fatalf("failed to init rate limiters: %v", err)
	}

	httpServer, err := server.New(server.Config{
		App:            appCore,
		Limiters:       limiters,
		TrustedProxies: trustedProxies,
		CORSOrigin:     cfg.CORSOrigin,
		MaxUploadBytes: cfg.MaxUploadBytes,
		UploadsDir:     uploadsDir,
		UploadsPrefix:  cfg.Storage.URLPrefix,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	logger.Info("server listening", "addr", addr, "default_provider", cfg.DefaultProvider)
	if err := srv.ListenAndServe(); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}

// buildProviders constructs the configured provider adapters. The mock
// provider is always registered by the dispatcher itself.
func buildProviders(cfg config.FileConfig) []ai.Provider {
	providers := make([]ai.Provider, 0, len(cfg.Providers))
	for name, pc := range cfg.Providers {
		switch name {
		case "mock":
			continue
		case "ollama":
			providers = append(providers, ai.NewOllamaProvider(pc.BaseURL, pc.TextModel))
		case "gemini":
			if gp, err := ai.NewGeminiProvider(pc.APIKey, pc.TextModel); err == nil {
				providers = append(providers, gp)
			}
		default:
			// Anything else is treated as an OpenAI-compatible endpoint.
			providers = append(providers, ai.NewOpenAICompatProvider(name, pc.BaseURL, pc.APIKey, pc.TextModel, pc.ImageModel))
		}
	}
	return providers
}

func buildObjectStore(cfg config.FileConfig) (storage.ObjectStore, string, error) {
	if cfg.Storage.Backend == "minio" {
		objects, err := storage.NewMinioStore(
			cfg.Storage.MinioEndpoint,
			cfg.Storage.MinioAccessKey,
			cfg.Storage.MinioSecretKey,
			cfg.Storage.MinioBucket,
			cfg.Storage.MinioUseSSL,
		)
		return objects, "", err
	}
	objects, err := storage.NewLocalStore(cfg.Storage.LocalDir, cfg.Storage.URLPrefix)
	if err != nil {
		return nil, "", err
	}
	return objects, objects.Root(), nil
}

func buildLimiters(cfg config.FileConfig) (server.Limiters, error) {
	var limiters server.Limiters
	var err error
	if cfg.RegisterRateLimitPerMinute > 0 {
		limiters.Register, err = ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, "educraft:ratelimit:register", cfg.RegisterRateLimitPerMinute, time.Minute)
		if err != nil {
			return limiters, err
		}
	}
	if cfg.LoginRateLimitPerMinute > 0 {
		limiters.Login, err = ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, "educraft:ratelimit:login", cfg.LoginRateLimitPerMinute, time.Minute)
		if err != nil {
			return limiters, err
		}
	}
	if cfg.GenerationRateLimitPerMinute > 0 {
		limiters.Generation, err = ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, "educraft:ratelimit:generation", cfg.GenerationRateLimitPerMinute, time.Minute)
		if err != nil {
			return limiters, err
		}
	}
	return limiters, nil
}
