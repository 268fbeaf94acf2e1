// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/go-core-stack/transit-proxy/pkg/config"
	"github.com/go-core-stack/transit-proxy/pkg/proxy"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		listenAddr string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:          "transit-proxy",
		Short:        "Forward local transit endpoints to the CTA Bus Tracker and Metra APIs",
		SilenceUsage: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			if configPath != "" {
				if err := os.Setenv(config.EnvConfigFile, configPath); err != nil {
					return fmt.Errorf("set config path: %w", err)
				}
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			if listenAddr != "" {
				cfg.ListenAddr = listenAddr
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}

			return run(cfg)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML configuration file")
	cmd.Flags().StringVar(&listenAddr, "listen", "", "listen address (overrides TRANSIT_LISTEN_ADDR)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "log level (overrides TRANSIT_LOG_LEVEL)")

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(c *cobra.Command, _ []string) {
			c.Println(version)
		},
	})

	return cmd
}

func run(cfg config.Config) error {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	log.Logger = log.Level(level)

	if cfg.BusAPIKey == "" {
		log.Warn().Msg("BUS_API_KEY is not set; bus tracker requests will be rejected upstream")
	}
	if !cfg.MetraConfigured() {
		log.Warn().Msg("METRA_API_KEY/METRA_API_SECRET are not set; metra endpoints are disabled")
	}

	handler, err := proxy.New(cfg)
	if err != nil {
		return fmt.Errorf("construct proxy: %w", err)
	}

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      handler,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  cfg.ServerIdleTimeout,
	}

	go func() {
		log.Info().
			Str("listen_addr", cfg.ListenAddr).
			Str("bus_upstream", cfg.BusBaseURL.String()).
			Str("metra_upstream", cfg.MetraBaseURL.String()).
			Str("allowed_origin", cfg.AllowedOrigin).
			Str("version", version).
			Msg("starting transit proxy")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("proxy server exited unexpectedly")
		}
	}()

	waitForShutdown(context.Background(), server, cfg.GracefulShutdownTimeout)
	return nil
}

func waitForShutdown(ctx context.Context, srv *http.Server, timeout time.Duration) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop

	log.Info().Msg("shutting down transit proxy")

	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed; forcing close")
		if closeErr := srv.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("forced close failed")
		}
	}

	log.Info().Msg("proxy stopped")
}
