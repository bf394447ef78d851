package main

import (
	"context"
	"fmt"
	"time"

	"github.com/BearBump/TrackDesk/config"
	"github.com/BearBump/TrackDesk/internal/broker/kafka"
	"github.com/BearBump/TrackDesk/internal/cache/rediscache"
	"github.com/BearBump/TrackDesk/internal/integrations/dhl"
	"github.com/BearBump/TrackDesk/internal/integrations/dhl/dhlhttp"
	"github.com/BearBump/TrackDesk/internal/integrations/dhl/fake"
	"github.com/BearBump/TrackDesk/internal/watcher"
)

type watcherFactories struct {
	newProducer    func(cfg *config.Config) watcher.Producer
	newRateLimiter func(cfg *config.Config) watcher.RateLimiter
	newCarrier     func(cfg *config.Config) dhl.Client
}

func defaultWatcherFactories() watcherFactories {
	return watcherFactories{
		newProducer: func(cfg *config.Config) watcher.Producer {
			brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
			return kafka.NewProducer(brokers)
		},
		newRateLimiter: func(cfg *config.Config) watcher.RateLimiter {
			redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
			return rediscache.NewRateLimiter(redisAddr)
		},
		newCarrier: func(cfg *config.Config) dhl.Client {
			if cfg.DHL.APIURL != "" && cfg.DHL.APIKey != "" {
				return dhlhttp.New(cfg.DHL.APIURL, cfg.DHL.APIKey)
			}
			return fake.New()
		},
	}
}

func newWatcher(cfg *config.Config, f watcherFactories) *watcher.Watcher {
	topic := cfg.Kafka.TrackingCheckedTopicName
	if topic == "" {
		topic = "tracking.checked"
	}
	dropDir := cfg.TrackDesk.DropDir
	if dropDir == "" {
		dropDir = "drop"
	}
	scanInterval := time.Duration(cfg.TrackDesk.ScanIntervalSeconds) * time.Second
	if scanInterval <= 0 {
		scanInterval = 30 * time.Second
	}
	rlPerMin := int64(cfg.DHL.RateLimitPerMinute)
	if rlPerMin <= 0 {
		rlPerMin = 60
	}

	return watcher.New(dropDir, f.newCarrier(cfg), f.newProducer(cfg), f.newRateLimiter(cfg), topic).
		WithSettings(scanInterval, rlPerMin)
}

func runTrackWatcher(ctx context.Context, cfg *config.Config, f watcherFactories) error {
	w := newWatcher(cfg, f)

	httpAddr := cfg.TrackDesk.WatcherHTTPAddr
	if httpAddr == "" {
		httpAddr = ":8082"
	}

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- runWatcherHTTPServer(ctx, watcherHTTPOpts{
			httpAddr: httpAddr,
			watcher:  w,
			cfg:      cfg,
		})
	}()

	runErr := make(chan error, 1)
	go func() {
		runErr <- w.Run(ctx)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-httpErr:
		return err
	case err := <-runErr:
		return err
	}
}
