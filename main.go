package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/railfleet/capacity-engine/internal/allocations"
	"github.com/railfleet/capacity-engine/internal/config"
	v1 "github.com/railfleet/capacity-engine/internal/controllers/v1"
	"github.com/railfleet/capacity-engine/internal/history"
	"github.com/railfleet/capacity-engine/internal/ledger"
	"github.com/railfleet/capacity-engine/internal/models"
	"github.com/railfleet/capacity-engine/internal/notify"
	"github.com/railfleet/capacity-engine/internal/router"
	"github.com/railfleet/capacity-engine/internal/transitions"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Msg(err.Error())
	}

	// gin uses debug as the default mode, we use release for
	// security reasons
	if cfg.GinMode == "" {
		gin.SetMode("release")
	} else {
		gin.SetMode(cfg.GinMode)
	}

	setupLogging(cfg)

	if err := connect(cfg.Database); err != nil {
		log.Fatal().Msg(err.Error())
	}
	models.AtRiskThreshold = cfg.Engine.AtRiskThreshold

	broker := notify.NewBroker()
	publishers := []notify.Publisher{}

	var capacity ledger.Reader = ledger.New(models.DB, ledger.Options{DefaultCapacity: cfg.Engine.DefaultCapacity})
	if cfg.Notifier.RedisURL != "" {
		client, err := notify.NewRedisClient(context.Background(), cfg.Notifier.RedisURL)
		if err != nil {
			log.Fatal().Msg(err.Error())
		}
		defer client.Close()

		// The cache evicts rows before subscribers learn about a change
		cache := ledger.NewCachedReader(capacity, client, cfg.Notifier.CapacityCacheTTL, cfg.Notifier.RedisChannel)
		capacity = cache
		publishers = append(publishers, cache, notify.NewRedisPublisher(client, cfg.Notifier.RedisChannel))
		log.Info().Str("prefix", cfg.Notifier.RedisChannel).Msg("publishing change events to redis")
	}

	if cfg.Notifier.AMQPURL != "" {
		amqp, err := notify.NewAMQPPublisher(cfg.Notifier.AMQPURL, cfg.Notifier.AMQPExchange)
		if err != nil {
			log.Fatal().Msg(err.Error())
		}
		defer amqp.Close()

		publishers = append(publishers, amqp)
		log.Info().Str("exchange", cfg.Notifier.AMQPExchange).Msg("publishing change events to amqp")
	}

	emitter := notify.NewEmitter(cfg.Notifier.Buffer, append(publishers, broker)...)

	l := ledger.New(models.DB, ledger.Options{
		DefaultCapacity:    cfg.Engine.DefaultCapacity,
		OvercommitFraction: &cfg.Engine.OvercommitFraction,
		Notifier:           emitter,
	})

	manager := allocations.New(models.DB, allocations.Options{
		Ledger:   l,
		Log:      transitions.New(models.DB, allocations.AssignmentGuard{}),
		Notifier: emitter,
		History:  history.New(models.DB),
	})

	co := v1.NewController(manager, broker)
	co.Capacity = capacity

	r, teardown, err := router.Config(cfg.APIURL, router.Options{
		CORSOrigins: cfg.CORSOrigins,
		EnablePprof: cfg.EnablePprof,
	})
	if err != nil {
		log.Fatal().Msg(err.Error())
	}
	defer teardown()

	router.AttachRoutes(co, r.Group("/"))

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Str("url", cfg.APIURL.String()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Msg(err.Error())
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Event streams never end on their own, close them first
	broker.Close()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}

	emitter.Close()
	log.Info().Msg("server stopped")
}

// setupLogging configures the global logger.
//
// Log format can be explicitly set.
// If it is not set, it defaults to human readable for development
// and JSON for release
func setupLogging(cfg config.Config) {
	output := io.Writer(os.Stdout)
	if (cfg.LogFormat == "" && gin.IsDebugging()) || cfg.LogFormat == "human" {
		output = zerolog.ConsoleWriter{Out: os.Stdout}
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if gin.IsDebugging() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	if cfg.LogLevel != "" {
		level, err := zerolog.ParseLevel(cfg.LogLevel)
		if err != nil {
			log.Warn().Str("level", cfg.LogLevel).Msg("unknown log level, keeping default")
		} else {
			zerolog.SetGlobalLevel(level)
		}
	}

	log.Logger = log.Output(output).With().Timestamp().Logger()
}

func connect(cfg config.Database) error {
	models.LockTimeout = cfg.LockTimeout

	if cfg.Postgres() {
		return models.ConnectPostgres(cfg.DSN())
	}

	// Create data directory
	if err := os.MkdirAll(filepath.Dir(cfg.Path), os.ModePerm); err != nil {
		return err
	}

	return models.Connect(cfg.Path)
}
