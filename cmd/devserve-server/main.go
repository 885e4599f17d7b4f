// Package main provides the entry point for the devserve daemon.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/devserve-run/devserve/internal/config"
	"github.com/devserve-run/devserve/internal/logging"
	"github.com/devserve-run/devserve/internal/server"
)

var (
	port     = flag.Int("port", 7321, "Daemon port")
	logLevel = flag.String("log-level", "INFO", "Log level (DEBUG|INFO|WARN|ERROR)")
	version  = flag.Bool("version", false, "Print version and exit")
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("devserve-server %s (%s)\n", Version, BuildTime)
		os.Exit(0)
	}

	logging.Init(logging.Config{Level: logging.ParseLevel(*logLevel)})

	appConfig, err := config.Load("")
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}

	srvCfg := server.DefaultConfig()
	srvCfg.Port = *port

	srv := server.New(srvCfg, appConfig, nil)

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Int("port", srvCfg.Port).Msg("devserve daemon listening")
		errCh <- srv.Start()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("daemon failed")
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.Error().Err(err).Msg("shutdown error")
		}
	}
}
