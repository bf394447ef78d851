package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BearBump/TrackDesk/config"
	"github.com/BearBump/TrackDesk/internal/integrations/dhl"
	"github.com/BearBump/TrackDesk/internal/integrations/dhl/fake"
	"github.com/BearBump/TrackDesk/internal/watcher"
)

type memProducer struct {
	ch chan []byte
}

func (p *memProducer) Publish(ctx context.Context, topic string, key, value []byte) error {
	p.ch <- value
	return nil
}

func TestRunTrackWatcher_TriggerProcessesDropFile(t *testing.T) {
	dropDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dropDir, "bins.csv"),
		[]byte("waybill\n5859187246\n"), 0o644))

	producer := &memProducer{ch: make(chan []byte, 10)}
	cfg := &config.Config{}
	cfg.TrackDesk.DropDir = dropDir
	cfg.TrackDesk.WatcherHTTPAddr = "127.0.0.1:0"
	cfg.TrackDesk.ScanIntervalSeconds = 3600

	f := watcherFactories{
		newProducer:    func(*config.Config) watcher.Producer { return producer },
		newRateLimiter: func(*config.Config) watcher.RateLimiter { return nil },
		newCarrier:     func(*config.Config) dhl.Client { return fake.New() },
	}

	w := newWatcher(cfg, f)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addrCh := make(chan string, 1)
	httpErr := make(chan error, 1)
	go func() {
		httpErr <- runWatcherHTTPServer(ctx, watcherHTTPOpts{
			httpAddr: cfg.TrackDesk.WatcherHTTPAddr,
			onListen: func(addr string) { addrCh <- addr },
			watcher:  w,
			cfg:      cfg,
		})
	}()
	runErr := make(chan error, 1)
	go func() { runErr <- w.Run(ctx) }()

	var base string
	select {
	case addr := <-addrCh:
		base = "http://" + addr
	case err := <-httpErr:
		t.Fatalf("admin server exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("admin server did not start")
	}

	resp, err := http.Post(base+"/trigger", "application/json", strings.NewReader(""))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Contains(t, string(body), "triggered")

	select {
	case value := <-producer.ch:
		var msg map[string]any
		require.NoError(t, json.Unmarshal(value, &msg))
		require.Equal(t, "5859187246", msg["tracking_number"])
	case <-time.After(5 * time.Second):
		t.Fatal("no message published after trigger")
	}

	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/stats")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var st watcher.Stats
		if json.NewDecoder(resp.Body).Decode(&st) != nil {
			return false
		}
		return st.TotalWaybills == 1
	}, 5*time.Second, 50*time.Millisecond)

	resp, err = http.Get(base + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	<-httpErr
	<-runErr
}
