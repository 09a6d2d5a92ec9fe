package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"LineRelay/middleware"
	"LineRelay/pkg/cache"
	"LineRelay/pkg/config"
	"LineRelay/pkg/database"
	"LineRelay/pkg/feed"
	"LineRelay/pkg/line"
	"LineRelay/pkg/logger"
	"LineRelay/pkg/relay"
	"LineRelay/pkg/services"
	"LineRelay/pkg/store"
	"LineRelay/routes"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}

	db, err := database.Open(cfg.DBDriver, cfg.DBDSN, log)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("failed to open database")
	}
	defer func() { _ = database.Close(db) }()

	if created, err := database.SeedAdmin(db, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		log.Fatal().Err(err).Msg("failed to seed admin account")
	} else if created {
		log.Info().Str("username", cfg.AdminUsername).Msg("admin account created")
	}

	middleware.SetRateLimitConfig(time.Duration(cfg.RateLimitWindowSeconds)*time.Second, cfg.RateLimitCapacity, cfg.UserConcurrencyLimit)

	c := cache.New(cfg.CacheMaxItems, time.Minute)
	defer c.Close()
	// event ids must outlive EVENT_DEDUP_TTL, so this one is bounded by TTL only
	seen := cache.New(0, time.Minute)
	defer seen.Close()

	st := store.New(db, log)
	gen := services.NewResponseGenerator(newBackend(cfg, log), cfg.LLMTimeout, log)
	hub := feed.NewHub(64)

	if cfg.LineChannelSecret == "" {
		log.Warn().Msg("LINE_CHANNEL_SECRET is empty, every webhook will be rejected")
	}
	dispatcher := relay.NewDispatcher(relay.Options{
		Store:           st,
		Builder:         services.NewContextBuilder(cfg.SystemPrompt, cfg.ContextWindow),
		Generator:       gen,
		Line:            line.NewClient(cfg.LineAPIBase, cfg.LineChannelAccessToken),
		Cache:           c,
		Seen:            seen,
		Feed:            hub,
		Slots:           middleware.AcquireUserSlot,
		Logger:          log,
		EventDedupTTL:   cfg.EventDedupTTL,
		ProfileCacheTTL: cfg.ProfileCacheTTL,
	})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(log), middleware.AccessLog(log))

	// CORS configuration
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.RegisterRoutes(r, routes.Deps{
		DB:            db,
		Store:         st,
		Dispatcher:    dispatcher,
		Hub:           hub,
		Log:           log,
		ChannelSecret: cfg.LineChannelSecret,
		JWTSecret:     cfg.JWTSecret,
		CORSOrigins:   cfg.CORSOrigins,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("addr", srv.Addr).Str("env", cfg.AppEnv).Str("model", gen.Model()).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	// in-flight webhooks may still be waiting on the model
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.LLMTimeout+10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	st.Wait()
	log.Info().Msg("bye")
}

// newBackend picks the language model backend. Without credentials the relay
// still runs with offline replies.
func newBackend(cfg *config.Config, log zerolog.Logger) services.Completer {
	switch cfg.LLMProvider {
	case "openai":
		if cfg.OpenAIAPIKey != "" || cfg.OpenAIBaseURL != "" {
			return services.NewOpenAIService(services.OpenAIConfig{
				APIKey:      cfg.OpenAIAPIKey,
				BaseURL:     cfg.OpenAIBaseURL,
				Model:       cfg.OpenAIModel,
				Temperature: cfg.LLMTemperature,
				MaxTokens:   cfg.LLMMaxTokens,
			})
		}
	case "gemini":
		if cfg.GeminiAPIKey != "" {
			return services.NewGeminiService(services.GeminiConfig{
				APIKey:      cfg.GeminiAPIKey,
				Model:       cfg.GeminiModel,
				Temperature: cfg.LLMTemperature,
				MaxTokens:   cfg.LLMMaxTokens,
			})
		}
	case "local":
		return services.LocalService{}
	}
	log.Warn().Str("provider", cfg.LLMProvider).Msg("no API key configured, using offline replies")
	return services.LocalService{}
}
