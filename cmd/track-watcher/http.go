package main

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/BearBump/TrackDesk/config"
	"github.com/BearBump/TrackDesk/internal/watcher"
)

type watcherHTTPOpts struct {
	httpAddr string
	onListen func(httpAddr string)

	watcher *watcher.Watcher
	cfg     *config.Config
}

func runWatcherHTTPServer(ctx context.Context, opts watcherHTTPOpts) error {
	if opts.httpAddr == "" {
		opts.httpAddr = ":8082"
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.watcher == nil {
			_, _ = w.Write([]byte(`{"error":"watcher not wired"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(opts.watcher.Stats())
	})

	r.Get("/config", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.cfg == nil {
			_, _ = w.Write([]byte(`{"error":"config not wired"}`))
			return
		}
		// Avoid dumping secrets; show only operational watcher settings.
		out := map[string]any{
			"dropDir":             opts.cfg.TrackDesk.DropDir,
			"scanIntervalSeconds": opts.cfg.TrackDesk.ScanIntervalSeconds,
			"rateLimitPerMinute":  opts.cfg.DHL.RateLimitPerMinute,
			"topic":               opts.cfg.Kafka.TrackingCheckedTopicName,
		}
		_ = json.NewEncoder(w).Encode(out)
	})

	r.Post("/trigger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.watcher == nil {
			_, _ = w.Write([]byte(`{"error":"watcher not wired"}`))
			return
		}
		opts.watcher.Trigger()
		_, _ = w.Write([]byte(`{"triggered":true}`))
	})

	srv := &http.Server{Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = lis.Close()
	}()

	return srv.Serve(lis)
}
