package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/BearBump/TrackDesk/internal/console"
)

type consoleOpts struct {
	httpAddr   string
	apiBaseURL string

	onListen func(httpAddr string)
}

func runConsole(ctx context.Context, opts consoleOpts) error {
	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	srv := console.NewServer(console.NewClient(opts.apiBaseURL))

	httpSrv := &http.Server{Handler: srv.Routes()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	slog.Info("console listening", "addr", lis.Addr().String(), "api", opts.apiBaseURL)
	if err := httpSrv.Serve(lis); err != nil && err != http.ErrServerClosed {
		return err
	}
	return ctx.Err()
}
