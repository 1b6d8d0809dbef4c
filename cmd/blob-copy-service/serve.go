package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/einyx/blob-copy-service/internal/api"
	"github.com/einyx/blob-copy-service/internal/transport"
)

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.flush()

	logrus.WithFields(logrus.Fields{
		"version": version,
		"commit":  commit,
		"date":    date,
		"num_cpu": runtime.NumCPU(),
	}).Info("Starting blob copy service")

	if listenAddr, _ := cmd.Flags().GetString("listen"); listenAddr != "" {
		a.cfg.Server.Listen = listenAddr
	}

	server := api.NewServer(a.cfg, api.Options{
		Copier:       a.copier,
		Enumerator:   a.enumerator,
		Secrets:      a.secrets,
		Metrics:      a.metrics,
		BuildVersion: version,
		LogLevel:     a.logLevel,
	})

	logrus.WithFields(logrus.Fields{
		"readTimeout":  a.cfg.Server.ReadTimeout,
		"writeTimeout": a.cfg.Server.WriteTimeout,
		"idleTimeout":  a.cfg.Server.IdleTimeout,
		"listen":       a.cfg.Server.Listen,
	}).Info("Starting HTTP server with configured timeouts")

	srv := &http.Server{
		Addr:              a.cfg.Server.Listen,
		Handler:           server,
		ReadTimeout:       a.cfg.Server.ReadTimeout,
		WriteTimeout:      a.cfg.Server.WriteTimeout,
		IdleTimeout:       a.cfg.Server.IdleTimeout,
		MaxHeaderBytes:    1 << 20,
		ReadHeaderTimeout: 2 * time.Second,

		ConnState: func(conn net.Conn, state http.ConnState) {
			if state == http.StateNew {
				if err := transport.SetAdaptiveTCPOptions(conn); err != nil {
					logrus.WithError(err).Debug("Failed to tune accepted connection")
				}
			}
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sig
		logrus.Info("Shutting down server...")
		server.SetShuttingDown()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logrus.WithError(err).Error("Failed to shutdown server gracefully")
		}
		cancel()
	}()

	logrus.WithField("addr", a.cfg.Server.Listen).Info("Server listening")
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	<-ctx.Done()
	logrus.Info("Server stopped")
	return nil
}
