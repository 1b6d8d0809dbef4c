package logging

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEntry(level logrus.Level, msg string, fields logrus.Fields) *logrus.Entry {
	entry := logrus.NewEntry(logrus.New()).WithFields(fields)
	entry.Level = level
	entry.Message = msg
	entry.Time = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return entry
}

func TestBuildEvent(t *testing.T) {
	err := errors.New("copy failed")
	entry := newEntry(logrus.ErrorLevel, "Failed to copy from westeurope to swedencentral", logrus.Fields{
		"source":              "westeurope",
		"destination":         "swedencentral",
		"destination_account": "stfileswedencentral",
		"status":              500,
		"attempt":             3,
		logrus.ErrorKey:       err,
	})

	event := buildEvent(entry)

	assert.Equal(t, sentry.LevelError, event.Level)
	assert.Equal(t, "Failed to copy from westeurope to swedencentral", event.Message)
	assert.Equal(t, "westeurope", event.Tags["copy.source"])
	assert.Equal(t, "swedencentral", event.Tags["copy.destination"])
	assert.Equal(t, "stfileswedencentral", event.Tags["storage.destination_account"])
	assert.Equal(t, "500", event.Tags["http.status_code"])
	assert.Equal(t, 3, event.Extra["attempt"])
	assert.NotContains(t, event.Extra, logrus.ErrorKey)
	require.Len(t, event.Exception, 1)
	assert.Equal(t, "copy failed", event.Exception[0].Value)
}

func TestBuildBreadcrumb(t *testing.T) {
	entry := newEntry(logrus.InfoLevel, "Copy still pending", logrus.Fields{
		"source":  "westeurope",
		"attempt": 2,
		"secret":  "must-not-leak",
	})

	crumb := buildBreadcrumb(entry)

	assert.Equal(t, sentry.LevelInfo, crumb.Level)
	assert.Equal(t, "westeurope", crumb.Data["source"])
	assert.Equal(t, 2, crumb.Data["attempt"])
	assert.NotContains(t, crumb.Data, "secret")
}

func TestLevels(t *testing.T) {
	assert.Len(t, NewSentryHook(nil).Levels(), 4)
	assert.Len(t, NewBreadcrumbHook(nil).Levels(), 3)
	assert.Equal(t, []logrus.Level{logrus.ErrorLevel}, NewSentryHook([]logrus.Level{logrus.ErrorLevel}).Levels())
}

func TestLogrusLevelToSentryLevel(t *testing.T) {
	tests := map[logrus.Level]sentry.Level{
		logrus.PanicLevel: sentry.LevelFatal,
		logrus.FatalLevel: sentry.LevelFatal,
		logrus.ErrorLevel: sentry.LevelError,
		logrus.WarnLevel:  sentry.LevelWarning,
		logrus.InfoLevel:  sentry.LevelInfo,
		logrus.DebugLevel: sentry.LevelDebug,
		logrus.TraceLevel: sentry.LevelDebug,
	}
	for in, want := range tests {
		assert.Equal(t, want, logrusLevelToSentryLevel(in), in.String())
	}
}

func TestFireWithoutClientIsNoop(t *testing.T) {
	entry := newEntry(logrus.ErrorLevel, "boom", nil)

	assert.NoError(t, NewSentryHook(nil).Fire(entry))
	assert.NoError(t, NewBreadcrumbHook(nil).Fire(entry))
}

func TestConfigure(t *testing.T) {
	defer logrus.SetOutput(logrus.StandardLogger().Out)
	defer logrus.SetLevel(logrus.GetLevel())

	var buf bytes.Buffer
	require.NoError(t, Configure(&buf, "debug", "json"))
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())

	logrus.WithField("account", "stblobwesteurope").Debug("listing")
	assert.Contains(t, buf.String(), `"account":"stblobwesteurope"`)

	assert.Error(t, Configure(nil, "loud", "json"))
	assert.Error(t, Configure(nil, "info", "xml"))
}
