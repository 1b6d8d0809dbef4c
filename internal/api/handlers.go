package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/einyx/blob-copy-service/internal/config"
	"github.com/einyx/blob-copy-service/internal/copier"
	"github.com/einyx/blob-copy-service/internal/middleware"
	"github.com/einyx/blob-copy-service/internal/models"
)

func (s *Server) redirectToHealth(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/health", http.StatusFound)
}

func (s *Server) healthCheck(w http.ResponseWriter, _ *http.Request) {
	if s.IsShuttingDown() {
		writeProblem(w, http.StatusServiceUnavailable, "Shutting down", "")
		return
	}
	writeJSON(w, http.StatusOK, models.StatusOK)
}

func (s *Server) healthConfig(w http.ResponseWriter, r *http.Request) {
	snapshot := s.appConfig(r)
	if snapshot.Evaluate() == models.StatusOK {
		writeJSON(w, http.StatusOK, snapshot)
		return
	}

	detail, err := json.Marshal(snapshot)
	if err != nil {
		detail = []byte(err.Error())
	}
	writeProblem(w, http.StatusInternalServerError, "Not healthy", string(detail))
}

// appConfig builds the health snapshot, probing the secret store for the key
// of the primary location's file share account.
func (s *Server) appConfig(r *http.Request) *models.AppConfig {
	cfg := s.config
	snapshot := &models.AppConfig{
		BuildVersion:                      s.buildVersion,
		EnvironmentName:                   cfg.App.Environment,
		LogLevel:                          s.logLevel,
		KeyVaultName:                      cfg.Secrets.KeyVaultName,
		SecretProvider:                    cfg.Secrets.Provider,
		PrivateConnectivityMethod:         cfg.App.PrivateConnectivityMethod,
		PrimaryLocation:                   cfg.Locations.Primary,
		SecondaryLocation:                 cfg.Locations.Secondary,
		BlobStorageAccountNamePrefix:      cfg.Storage.BlobAccountPrefix,
		FileShareStorageAccountNamePrefix: cfg.Storage.FileShareAccountPrefix,
		FileShareStorageAccountKeyLength:  -1,
	}

	account, err := cfg.Storage.AccountName(config.FileShareAccount, cfg.Locations.Primary)
	if err != nil || s.secrets == nil {
		return snapshot
	}

	key, err := s.secrets.GetSecret(r.Context(), cfg.Storage.KeySecretName(account))
	s.metrics.RecordSecretLookup(err)
	if err != nil {
		logrus.WithError(err).WithField("account", account).Warn("Health check could not read the file share account key")
		return snapshot
	}
	snapshot.FileShareStorageAccountKeyLength = len(key)
	return snapshot
}

func (s *Server) listBlobs(w http.ResponseWriter, r *http.Request) {
	contents, err := s.enumerator.ListBlobAccounts(r.Context())
	if err != nil {
		s.internalError(w, r, "Failed to list blobs", err)
		return
	}
	writeJSON(w, http.StatusOK, contents)
}

func (s *Server) listFiles(w http.ResponseWriter, r *http.Request) {
	contents, err := s.enumerator.ListFileShareAccounts(r.Context())
	if err != nil {
		s.internalError(w, r, "Failed to list files", err)
		return
	}
	writeJSON(w, http.StatusOK, contents)
}

func (s *Server) listAll(w http.ResponseWriter, r *http.Request) {
	contents, err := s.enumerator.ListAll(r.Context())
	if err != nil {
		s.internalError(w, r, "Failed to list storage accounts and their content", err)
		return
	}
	writeJSON(w, http.StatusOK, contents)
}

func (s *Server) copy(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	src := strings.TrimSpace(query.Get("sourceLocation"))
	dst := strings.TrimSpace(query.Get("destinationLocation"))

	var missing []string
	if src == "" {
		missing = append(missing, "sourceLocation")
	}
	if dst == "" {
		missing = append(missing, "destinationLocation")
	}
	if len(missing) > 0 {
		writeProblem(w, http.StatusBadRequest, "Invalid request", fmt.Sprintf("missing query parameters: %s", strings.Join(missing, ", ")))
		return
	}

	timeout, err := s.timeoutParam(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}

	result, err := s.copier.Copy(r.Context(), copier.CopyRequest{
		SourceLocation:      src,
		DestinationLocation: dst,
		Timeout:             timeout,
	})
	if err != nil {
		if errors.Is(err, copier.ErrInvalidRequest) {
			writeProblem(w, http.StatusBadRequest, "Invalid request", err.Error())
			return
		}
		s.internalError(w, r, "Failed to copy", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) copyAll(w http.ResponseWriter, r *http.Request) {
	timeout, err := s.timeoutParam(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}

	results, err := s.copier.CopyAll(r.Context(), timeout)
	if err != nil {
		s.internalError(w, r, "Failed to copy", err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// maxTimeoutSeconds is the largest timeout that fits in a time.Duration.
const maxTimeoutSeconds = math.MaxInt64 / int64(time.Second)

// timeoutParam reads timeoutInSeconds, falling back to the configured default.
func (s *Server) timeoutParam(r *http.Request) (time.Duration, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("timeoutInSeconds"))
	if raw == "" {
		return s.config.Copy.DefaultTimeout, nil
	}

	seconds, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || seconds < 0 {
		return 0, fmt.Errorf("timeoutInSeconds must be a non-negative integer, got %q", raw)
	}
	if seconds > maxTimeoutSeconds {
		return 0, fmt.Errorf("timeoutInSeconds must not exceed %d, got %q", maxTimeoutSeconds, raw)
	}
	return time.Duration(seconds) * time.Second, nil
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, title string, err error) {
	logrus.WithError(err).WithFields(logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
	}).Error(title)

	if s.config.Sentry.Enabled {
		middleware.CaptureError(r.Context(), err, map[string]string{"http.path": r.URL.Path})
	}
	writeProblem(w, http.StatusInternalServerError, title, err.Error())
}
