package logging

import (
	"fmt"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
)

// tagFields maps log fields to the Sentry tags they are reported under.
var tagFields = map[string]string{
	"method":              "http.method",
	"path":                "http.path",
	"source":              "copy.source",
	"destination":         "copy.destination",
	"source_account":      "storage.source_account",
	"destination_account": "storage.destination_account",
	"account":             "storage.account",
	"copy_status":         "copy.status",
	"component":           "component",
}

// breadcrumbFields are the log fields kept on breadcrumbs.
var breadcrumbFields = map[string]bool{
	"method":      true,
	"path":        true,
	"status":      true,
	"source":      true,
	"destination": true,
	"account":     true,
	"copy_status": true,
	"attempt":     true,
}

// SentryHook is a logrus hook that sends log entries to Sentry as events
type SentryHook struct {
	levels []logrus.Level
}

// NewSentryHook creates a new Sentry hook for logrus
func NewSentryHook(levels []logrus.Level) *SentryHook {
	if levels == nil {
		levels = []logrus.Level{
			logrus.PanicLevel,
			logrus.FatalLevel,
			logrus.ErrorLevel,
			logrus.WarnLevel,
		}
	}
	return &SentryHook{levels: levels}
}

// Fire is called when a log event is fired.
func (hook *SentryHook) Fire(entry *logrus.Entry) error {
	hub := sentry.CurrentHub()
	if hub == nil || hub.Client() == nil {
		return nil
	}

	hub.CaptureEvent(buildEvent(entry))
	return nil
}

func buildEvent(entry *logrus.Entry) *sentry.Event {
	event := sentry.NewEvent()
	event.Timestamp = entry.Time
	event.Message = entry.Message
	event.Level = logrusLevelToSentryLevel(entry.Level)
	event.Logger = "logrus"

	event.Extra = make(map[string]interface{}, len(entry.Data))
	event.Tags = make(map[string]string)
	for k, v := range entry.Data {
		if k == logrus.ErrorKey {
			continue
		}
		event.Extra[k] = v
		if tag, ok := tagFields[k]; ok {
			event.Tags[tag] = fmt.Sprint(v)
		}
	}

	if status, ok := entry.Data["status"].(int); ok {
		event.Tags["http.status_code"] = fmt.Sprintf("%d", status)
	}

	if err, ok := entry.Data[logrus.ErrorKey].(error); ok {
		event.Exception = []sentry.Exception{{
			Type:  fmt.Sprintf("%T", err),
			Value: err.Error(),
		}}
	}

	return event
}

// Levels returns the logging levels for which the hook is fired.
func (hook *SentryHook) Levels() []logrus.Level {
	return hook.levels
}

func logrusLevelToSentryLevel(level logrus.Level) sentry.Level {
	switch level {
	case logrus.PanicLevel, logrus.FatalLevel:
		return sentry.LevelFatal
	case logrus.ErrorLevel:
		return sentry.LevelError
	case logrus.WarnLevel:
		return sentry.LevelWarning
	case logrus.InfoLevel:
		return sentry.LevelInfo
	case logrus.DebugLevel, logrus.TraceLevel:
		return sentry.LevelDebug
	default:
		return sentry.LevelInfo
	}
}

// BreadcrumbHook records log entries as Sentry breadcrumbs
type BreadcrumbHook struct {
	levels []logrus.Level
}

// NewBreadcrumbHook creates a new breadcrumb hook for logrus
func NewBreadcrumbHook(levels []logrus.Level) *BreadcrumbHook {
	if levels == nil {
		levels = []logrus.Level{
			logrus.InfoLevel,
			logrus.WarnLevel,
			logrus.ErrorLevel,
		}
	}
	return &BreadcrumbHook{levels: levels}
}

// Fire is called when a log event is fired.
func (hook *BreadcrumbHook) Fire(entry *logrus.Entry) error {
	hub := sentry.CurrentHub()
	if hub == nil || hub.Client() == nil {
		return nil
	}

	hub.Scope().AddBreadcrumb(buildBreadcrumb(entry), 0)
	return nil
}

func buildBreadcrumb(entry *logrus.Entry) *sentry.Breadcrumb {
	breadcrumb := &sentry.Breadcrumb{
		Type:      "log",
		Category:  "logrus",
		Message:   entry.Message,
		Level:     logrusLevelToSentryLevel(entry.Level),
		Data:      make(map[string]interface{}),
		Timestamp: entry.Time,
	}
	for k, v := range entry.Data {
		if breadcrumbFields[k] {
			breadcrumb.Data[k] = v
		}
	}
	return breadcrumb
}

// Levels returns the logging levels for which the hook is fired.
func (hook *BreadcrumbHook) Levels() []logrus.Level {
	return hook.levels
}
