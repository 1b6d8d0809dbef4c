package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/einyx/blob-copy-service/internal/config"
	"github.com/einyx/blob-copy-service/internal/copier"
	"github.com/einyx/blob-copy-service/internal/enumerate"
	"github.com/einyx/blob-copy-service/internal/logging"
	"github.com/einyx/blob-copy-service/internal/metrics"
	"github.com/einyx/blob-copy-service/internal/sas"
	"github.com/einyx/blob-copy-service/internal/secrets"
	"github.com/einyx/blob-copy-service/internal/storage"
)

// app holds the wired dependencies shared by every command.
type app struct {
	cfg        *config.Config
	logLevel   string
	secrets    secrets.Store
	metrics    *metrics.Metrics
	copier     *copier.Copier
	enumerator *enumerate.Enumerator
	flush      func()
}

func setup(cmd *cobra.Command) (*app, error) {
	logLevel, _ := cmd.Flags().GetString("log-level")
	logFormat, _ := cmd.Flags().GetString("log-format")
	if err := logging.Configure(os.Stderr, logLevel, logFormat); err != nil {
		return nil, err
	}

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	a := &app{cfg: cfg, logLevel: logLevel, flush: func() {}}

	if cfg.Sentry.Enabled {
		if err := initSentry(cfg); err != nil {
			logrus.WithError(err).Error("Failed to initialize Sentry")
		} else {
			a.flush = func() { sentry.Flush(2 * time.Second) }
			logging.InstallSentryHooks(cfg.Sentry.Debug || cfg.Sentry.MaxBreadcrumbs > 0)
			logrus.Info("Sentry initialized successfully")
		}
	}

	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}

	store, err := secrets.New(cfg.Secrets, cred)
	if err != nil {
		return nil, fmt.Errorf("failed to create secret store: %w", err)
	}

	blobs := storage.NewBlobService(cfg.Storage, cred)
	files := storage.NewFileService(cfg.Storage)

	a.secrets = store
	a.metrics = metrics.NewMetrics("")
	a.copier = copier.New(cfg, store, sas.NewDelegatedSigner(blobs), sas.NewSharedKeySigner(cfg.Storage), files, a.metrics)
	a.enumerator = enumerate.New(cfg, blobs, files, store, a.metrics)

	logrus.WithFields(logrus.Fields{
		"primary_location":   cfg.Locations.Primary,
		"secondary_location": cfg.Locations.Secondary,
		"secrets_provider":   cfg.Secrets.Provider,
		"environment":        cfg.App.Environment,
	}).Info("Configuration loaded")

	return a, nil
}

func initSentry(cfg *config.Config) error {
	options := sentry.ClientOptions{
		Dsn:              cfg.Sentry.DSN,
		Environment:      cfg.Sentry.Environment,
		Release:          cfg.Sentry.Release,
		SampleRate:       cfg.Sentry.SampleRate,
		TracesSampleRate: cfg.Sentry.TracesSampleRate,
		EnableTracing:    cfg.Sentry.TracesSampleRate > 0,
		AttachStacktrace: true,
		Debug:            cfg.Sentry.Debug,
		MaxBreadcrumbs:   cfg.Sentry.MaxBreadcrumbs,
		ServerName:       cfg.Sentry.ServerName,
	}

	if options.Release == "" {
		options.Release = fmt.Sprintf("blob-copy-service@%s", version)
	}

	if len(cfg.Sentry.IgnoreErrors) > 0 {
		options.BeforeSend = ignoreErrors(cfg.Sentry.IgnoreErrors)
	}

	options.Tags = map[string]string{
		"server.version":  version,
		"server.commit":   commit,
		"server.date":     date,
		"app.environment": cfg.App.Environment,
	}

	return sentry.Init(options)
}

// ignoreErrors drops events whose original error contains any of the given substrings.
func ignoreErrors(ignore []string) func(*sentry.Event, *sentry.EventHint) *sentry.Event {
	return func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
		if hint == nil || hint.OriginalException == nil {
			return event
		}
		msg := hint.OriginalException.Error()
		for _, s := range ignore {
			if strings.Contains(msg, s) {
				return nil
			}
		}
		return event
	}
}
