// Package logging configures logrus and forwards log entries to Sentry.
package logging

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

// Configure sets the level and formatter of the standard logger. Format is
// "json" (default) or "text".
func Configure(out io.Writer, level, format string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	logrus.SetLevel(lvl)

	switch format {
	case "", "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "text":
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("invalid log format: %s", format)
	}

	if out != nil {
		logrus.SetOutput(out)
	}
	return nil
}

// InstallSentryHooks forwards every log level to Sentry as events, and adds
// breadcrumbs when requested.
func InstallSentryHooks(breadcrumbs bool) {
	logrus.AddHook(NewSentryHook(logrus.AllLevels))
	if breadcrumbs {
		logrus.AddHook(NewBreadcrumbHook([]logrus.Level{
			logrus.InfoLevel,
			logrus.WarnLevel,
			logrus.ErrorLevel,
			logrus.DebugLevel,
			logrus.TraceLevel,
		}))
	}
}
