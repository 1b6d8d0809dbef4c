package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	origOut, origLevel, origFormatter := logrus.StandardLogger().Out, logrus.GetLevel(), logrus.StandardLogger().Formatter
	logrus.SetOutput(&buf)
	logrus.SetLevel(logrus.InfoLevel)
	logrus.SetFormatter(&logrus.JSONFormatter{})
	defer func() {
		logrus.SetOutput(origOut)
		logrus.SetLevel(origLevel)
		logrus.SetFormatter(origFormatter)
	}()

	handler := RequestLogger()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/copy/all" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("OK"))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/health", nil))
	if buf.Len() != 0 {
		t.Errorf("Expected health check to be logged at debug level, got %s", buf.String())
	}

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/copy?sourceLocation=westeurope", nil))
	if !strings.Contains(buf.String(), `"path":"/copy"`) || !strings.Contains(buf.String(), `"status":200`) {
		t.Errorf("Expected copy request in log, got %s", buf.String())
	}

	buf.Reset()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/copy/all", nil))
	if !strings.Contains(buf.String(), `"level":"warning"`) || !strings.Contains(buf.String(), `"status":500`) {
		t.Errorf("Expected failed request at warning level, got %s", buf.String())
	}
}
