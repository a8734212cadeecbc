// Command gateway runs the form turn orchestrator: a queue consumer that
// resumes each user's place in a multi-step form, applies the new answer,
// and publishes the next question, alongside a small ops HTTP server for
// health probes and metrics.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/convoforms/go-form-gateway/internal/cache"
	"github.com/convoforms/go-form-gateway/internal/clients"
	"github.com/convoforms/go-form-gateway/internal/config"
	"github.com/convoforms/go-form-gateway/internal/forms"
	httpapi "github.com/convoforms/go-form-gateway/internal/http"
	"github.com/convoforms/go-form-gateway/internal/observability"
	"github.com/convoforms/go-form-gateway/internal/queue"
	"github.com/convoforms/go-form-gateway/internal/repo"
	"github.com/convoforms/go-form-gateway/internal/services"
	"github.com/convoforms/go-form-gateway/internal/sysutil"
)

const version = "1.0.0"

func main() {
	_ = godotenv.Load()
	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		if err := shutdownOTel(context.Background()); err != nil {
			log.Warn().Err(err).Msg("otel shutdown failed")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("database open failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("database migration failed")
	}

	lastMsgCache, err := cache.NewLastMessageCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.CachePrefix)
	if err != nil {
		log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis connect failed")
	}
	defer lastMsgCache.Close()
	rdb := lastMsgCache.RDB

	httpClient := &http.Client{Timeout: cfg.Services.Timeout}
	producer := &queue.Producer{RDB: rdb}

	emitter := &services.TelemetryEmitter{
		DB:             db,
		Cache:          lastMsgCache,
		Publisher:      producer,
		Dispatch:       &clients.TelemetryDispatch{BaseURL: cfg.Services.TelemetryDispatchURL, Client: httpClient},
		Topic:          cfg.Redis.TelemetryTopic,
		ProducerID:     cfg.ProducerID,
		SystemSenderID: cfg.SystemSenderID,
	}

	turns := &services.TurnService{
		DB:       db,
		Engine:   &forms.HTTPEngine{BaseURL: cfg.Services.EngineURL, Client: httpClient},
		State:    &services.StateAccessor{DB: db},
		Recorder: &services.Recorder{DB: db, Telemetry: emitter},
		Profiles: &clients.ProfileService{BaseURL: cfg.Services.ProfileURL, Client: httpClient},
		Directory: &clients.DirectoryService{
			BaseURL: cfg.Services.DirectoryURL,
			Client:  httpClient,
		},
		Uploader:       &clients.UploadService{BaseURL: cfg.Services.UploadURL, Client: httpClient},
		FormsDir:       cfg.FormsDir,
		ResetAnswer:    cfg.ResetAnswer,
		SelectionPath:  cfg.SelectionPath,
		SelectionField: cfg.SelectionField,
	}

	consumer := &queue.Consumer{
		RDB:           rdb,
		DB:            db,
		Processor:     turns,
		Out:           producer,
		Stream:        cfg.Redis.InboundStream,
		Group:         cfg.Redis.ConsumerGroup,
		Name:          cfg.Redis.ConsumerName,
		OutboundTopic: cfg.Redis.OutboundTopic,
		DedupTTL:      cfg.DedupTTL,
		Limiter:       rate.NewLimiter(rate.Limit(cfg.RateRPS), cfg.RateBurst),
	}

	gin.SetMode(cfg.GinMode)
	engine := gin.New()
	httpapi.RegisterRoutes(engine, db, rdb)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
	go func() {
		log.Info().Str("port", cfg.Port).Msg("ops server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("ops server failed")
		}
	}()

	if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("consumer stopped")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("ops server shutdown failed")
	}
	log.Info().Msg("gateway stopped")
}
