package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BearBump/TrackDesk/config"
	"github.com/BearBump/TrackDesk/internal/api/trackhttp"
	"github.com/BearBump/TrackDesk/internal/broker/kafka"
	"github.com/BearBump/TrackDesk/internal/cache/rediscache"
	"github.com/BearBump/TrackDesk/internal/integrations/dhl"
	"github.com/BearBump/TrackDesk/internal/integrations/dhl/dhlhttp"
	"github.com/BearBump/TrackDesk/internal/integrations/dhl/fake"
	"github.com/BearBump/TrackDesk/internal/services/batch"
	"github.com/BearBump/TrackDesk/internal/services/export"
	"github.com/BearBump/TrackDesk/internal/services/tracking"
	"github.com/BearBump/TrackDesk/internal/storage/pgtracking"
)

type trackServerApp struct {
	ctx      context.Context
	cancel   context.CancelFunc
	opts     trackServerOpts
	handler  *trackhttp.Handler
	svc      *tracking.Service
	consumer *kafka.Consumer
	closeDB  func()
}

func mustBootstrapTrackServer() *trackServerApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}
	swaggerPath := os.Getenv("swaggerPath")
	if swaggerPath == "" {
		panic("swaggerPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("config parse failed, %v", err))
	}

	httpAddr := cfg.TrackDesk.ServerHTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	consumerGroup := cfg.TrackDesk.KafkaConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "track-server"
	}
	topic := cfg.Kafka.TrackingCheckedTopicName
	if topic == "" {
		topic = "tracking.checked"
	}
	exportDir := cfg.TrackDesk.ExportDir
	if exportDir == "" {
		exportDir = "exports"
	}
	resultTTL := time.Duration(cfg.TrackDesk.ResultTTLSeconds) * time.Second
	if resultTTL <= 0 {
		resultTTL = time.Hour
	}

	sslMode := cfg.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
	st := mustOpenPostgresWithRetry(connString, 60*time.Second)

	redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	rc := rediscache.New(redisAddr)
	rl := rediscache.NewRateLimiter(redisAddr)

	carrier := newCarrier(cfg)

	svc := tracking.New(st, st, rc, carrier, cfg.DHL.DailyLimit, resultTTL)
	batches := batch.New(st, st, carrier, rl, cfg.DHL.DailyLimit).
		WithSettings(
			cfg.DHL.BatchSize,
			time.Duration(cfg.DHL.BatchDelaySeconds)*time.Second,
			cfg.DHL.MaxRetries,
			time.Duration(cfg.DHL.RetryDelaySeconds)*time.Second,
			int64(cfg.DHL.RateLimitPerMinute),
		).
		WithReuseWindow(resultTTL)
	exports := export.New(st, exportDir)
	handler := trackhttp.New(svc, batches, exports, st, cfg.TrackDesk.MaxUploadBytes)

	brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
	consumer := kafka.NewConsumer(brokers, topic, consumerGroup)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	return &trackServerApp{
		ctx:    ctx,
		cancel: cancel,
		opts: trackServerOpts{
			httpAddr:      httpAddr,
			swaggerPath:   swaggerPath,
			topic:         topic,
			consumerGroup: consumerGroup,
		},
		handler:  handler,
		svc:      svc,
		consumer: consumer,
		closeDB:  st.Close,
	}
}

func newCarrier(cfg *config.Config) dhl.Client {
	if cfg.DHL.APIURL != "" && cfg.DHL.APIKey != "" {
		return dhlhttp.New(cfg.DHL.APIURL, cfg.DHL.APIKey)
	}
	return fake.New()
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pgtracking.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgtracking.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

func (a *trackServerApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.consumer != nil {
		_ = a.consumer.Close()
	}
	if a.closeDB != nil {
		a.closeDB()
	}
}

func (a *trackServerApp) Run() error {
	return runTrackServer(a.ctx, a.opts, a.handler, a.svc, a.consumer)
}
