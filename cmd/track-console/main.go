package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/BearBump/TrackDesk/config"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("config parse failed, %v", err))
	}

	httpAddr := cfg.TrackDesk.ConsoleHTTPAddr
	if httpAddr == "" {
		httpAddr = ":8090"
	}
	apiBaseURL := cfg.TrackDesk.APIBaseURL
	if apiBaseURL == "" {
		apiBaseURL = "http://localhost:8080/api/v1"
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := runConsole(ctx, consoleOpts{
		httpAddr:   httpAddr,
		apiBaseURL: apiBaseURL,
	}); err != nil && err != context.Canceled {
		panic(err)
	}
}
