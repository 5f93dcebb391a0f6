package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"fleet-monitor/realtime/internal/alert"
	"fleet-monitor/realtime/internal/config"
	"fleet-monitor/realtime/internal/hub"
	"fleet-monitor/realtime/internal/membership"
	"fleet-monitor/realtime/internal/notify"
	"fleet-monitor/realtime/internal/pipeline"
	"fleet-monitor/realtime/internal/state"
	"fleet-monitor/realtime/internal/store"
	httptransport "fleet-monitor/realtime/internal/transport/http"
	"fleet-monitor/realtime/internal/transport/kafka"
	"fleet-monitor/realtime/internal/zone"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Info("no .env file found, using system environment variables")
	}

	cfg := config.Load()
	log := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pg, err := store.NewPostgresStore(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("postgres connection failed")
	}
	defer pg.Close()

	var redisStore *store.RedisStore
	if cfg.RedisAddr != "" {
		redisStore, err = store.NewRedisStore(ctx, cfg)
		if err != nil {
			log.WithError(err).Fatal("redis connection failed")
		}
		defer redisStore.Close()
	}

	zones := zone.NewIndex(pg, time.Duration(cfg.ZoneRefreshSeconds)*time.Second, log)
	go zones.Run(ctx)

	vehicles := state.NewStore(time.Duration(cfg.InactiveAfterSeconds) * time.Second)
	engine := membership.NewEngine()
	h := hub.New(cfg.HubBufferSize, log)

	publishers := []alert.Publisher{notify.NewHubPublisher(h)}
	if cfg.AMQPURL != "" {
		conn, err := amqp.Dial(cfg.AMQPURL)
		if err != nil {
			log.WithError(err).Fatal("amqp connection failed")
		}
		defer conn.Close()

		amqpPub, err := notify.NewAMQPPublisher(conn)
		if err != nil {
			log.WithError(err).Fatal("amqp publisher setup failed")
		}
		defer amqpPub.Close()
		publishers = append(publishers, amqpPub)
	}

	cooldown := time.Duration(cfg.AlertCooldownSeconds) * time.Second
	alerts := alert.NewDispatcher(pg, cooldown, log, publishers...)

	opts := pipeline.Options{
		Workers:      cfg.PipelineWorkers,
		QueueSize:    cfg.PipelineQueueSize,
		MaxOccupancy: cfg.MaxOccupancy,
	}
	if redisStore != nil {
		opts.Mirror = redisStore
	}
	proc := pipeline.NewProcessor(vehicles, zones, engine, alerts, h, log, opts)
	go proc.Run(ctx)

	if len(cfg.KafkaBrokers) > 0 {
		consumer := kafka.NewConsumer(cfg, proc, log)
		defer consumer.Close()
		go consumer.Run(ctx)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	clientCfg := hub.ClientConfig{
		PingInterval: time.Duration(cfg.PingIntervalSeconds) * time.Second,
		PongGrace:    time.Duration(cfg.PongGraceSeconds) * time.Second,
	}
	httptransport.NewHandler(proc, vehicles, h, pg, clientCfg, log).Register(router)

	var redisPinger httptransport.Pinger
	if redisStore != nil {
		redisPinger = redisStore
	}
	httptransport.NewHealthChecker(pg, redisPinger).Register(router)

	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: router,
	}

	go func() {
		log.WithField("port", cfg.HTTPPort).Info("realtime service listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("http shutdown failed")
	}
}

func newLogger(cfg *config.Config) *logrus.Logger {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if cfg.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}
