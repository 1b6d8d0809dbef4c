// Package copier orchestrates server side copies from the source blob of one
// location into the file share of another.
package copier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/einyx/blob-copy-service/internal/config"
	"github.com/einyx/blob-copy-service/internal/metrics"
	"github.com/einyx/blob-copy-service/internal/models"
	"github.com/einyx/blob-copy-service/internal/sas"
	"github.com/einyx/blob-copy-service/internal/secrets"
	"github.com/einyx/blob-copy-service/internal/security"
	"github.com/einyx/blob-copy-service/internal/storage"
)

// ErrInvalidRequest is returned for copy requests rejected before any remote call.
var ErrInvalidRequest = errors.New("invalid copy request")

// BlobSigner signs the copy source URL.
type BlobSigner interface {
	SignBlobURL(ctx context.Context, account, container, blob string, expiresAt time.Time, perms sas.BlobPermissions) (string, error)
}

// FileSigner signs the copy destination URL.
type FileSigner interface {
	SignFileURL(account, key, share, filePath string, expiresAt time.Time, perms sas.FilePermissions) (string, error)
}

// FileCopier starts copies into a file share and reads their progress.
type FileCopier interface {
	StartCopy(ctx context.Context, destinationURL, sourceURL string) (string, error)
	CopyStatus(ctx context.Context, target storage.FileTarget) (string, error)
}

// CopyRequest names the source and destination regions of a copy. A zero
// Timeout returns right after initiation without polling.
type CopyRequest struct {
	SourceLocation      string
	DestinationLocation string
	Timeout             time.Duration
}

// Copier runs copies. It holds no per-request state and is safe for concurrent use.
type Copier struct {
	cfg        *config.Config
	secrets    secrets.Store
	blobSigner BlobSigner
	fileSigner FileSigner
	files      FileCopier
	metrics    *metrics.Metrics
	now        func() time.Time
	logger     *logrus.Entry
}

// New creates a Copier. m may be nil.
func New(cfg *config.Config, store secrets.Store, blobSigner BlobSigner, fileSigner FileSigner, files FileCopier, m *metrics.Metrics) *Copier {
	return &Copier{
		cfg:        cfg,
		secrets:    store,
		blobSigner: blobSigner,
		fileSigner: fileSigner,
		files:      files,
		metrics:    m,
		now:        time.Now,
		logger:     logrus.WithField("component", "copier"),
	}
}

// Copy copies the configured source blob of req.SourceLocation into the file
// share of req.DestinationLocation.
//
// Only configuration problems and malformed requests are returned as errors.
// Every failure after that point is reported through the result.
func (c *Copier) Copy(ctx context.Context, req CopyRequest) (*models.CopyResult, error) {
	src := strings.TrimSpace(req.SourceLocation)
	dst := strings.TrimSpace(req.DestinationLocation)
	if err := c.cfg.Storage.CheckPrefixes(); err != nil {
		return nil, err
	}
	if src == "" || dst == "" {
		return nil, fmt.Errorf("%w: source and destination locations are required", ErrInvalidRequest)
	}
	if req.Timeout < 0 {
		return nil, fmt.Errorf("%w: timeout must not be negative", ErrInvalidRequest)
	}
	for _, loc := range []string{src, dst} {
		if err := security.ValidateLocation(loc); err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidRequest, loc, err)
		}
	}

	srcAccount, err := c.cfg.Storage.AccountName(config.BlobAccount, src)
	if err != nil {
		return nil, err
	}
	dstAccount, err := c.cfg.Storage.AccountName(config.FileShareAccount, dst)
	if err != nil {
		return nil, err
	}
	for _, account := range []string{srcAccount, dstAccount} {
		if err := security.ValidateAccountName(account); err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidRequest, account, err)
		}
	}

	destPath := c.cfg.Storage.DestinationFilePath(src)
	if err := security.ValidateSharePath(destPath); err != nil {
		return nil, fmt.Errorf("%w: destination path %q: %v", ErrInvalidRequest, destPath, err)
	}

	started := time.Now()
	result := models.NewCopyResult(src, dst)
	result.SourceStorageAccountName = srcAccount
	result.DestinationStorageAccountName = dstAccount

	log := c.logger.WithFields(logrus.Fields{
		"source":              src,
		"destination":         dst,
		"source_account":      srcAccount,
		"destination_account": dstAccount,
	})
	defer func() {
		c.metrics.RecordCopy(src, dst, string(result.CopyStatus), time.Since(started))
	}()

	secretName := c.cfg.Storage.KeySecretName(dstAccount)
	key, err := c.secrets.GetSecret(ctx, secretName)
	c.metrics.RecordSecretLookup(err)
	if err != nil {
		result.SetMessage("Failed to retrieve file share storage account key by secret name %s: %v", secretName, err)
		log.WithError(err).Warn(result.MessageOrEmpty())
		return result, nil
	}

	native, err := c.start(ctx, srcAccount, dstAccount, key, destPath)
	if err != nil {
		if code := storage.StatusCode(err); code != 0 {
			result.SetStatusCode(code)
		}
		result.SetMessage("Failed to copy from %s to %s: %v", src, dst, err)
		log.WithError(err).Error(result.MessageOrEmpty())
		return result, nil
	}

	// A start response without a copy status is read back from the destination.
	status := models.CopyStatusPending
	if strings.TrimSpace(native) != "" {
		status = models.TranslateCopyStatus(native)
	}
	var pollErr error
	if status == models.CopyStatusPending && req.Timeout > 0 {
		target := storage.FileTarget{
			Account: dstAccount,
			Key:     key,
			Share:   c.cfg.Storage.ShareName,
			Path:    destPath,
		}
		status, pollErr = c.poll(ctx, log, target, req.Timeout)
	}

	result.CopyStatus = status
	result.SetStatusCode(http.StatusCreated)
	switch {
	case pollErr != nil:
		result.SetMessage("Copy from %s to %s was started but reading its status failed: %v", src, dst, pollErr)
		log.WithError(pollErr).Warn(result.MessageOrEmpty())
	case status == models.CopyStatusPending && req.Timeout > 0:
		result.SetMessage("Copy from %s to %s is still pending after %s", src, dst, req.Timeout)
		log.Info(result.MessageOrEmpty())
	default:
		result.SetMessage("Copy operation appears successful or was successfully started")
		log.WithField("copy_status", status).Info(result.MessageOrEmpty())
	}
	return result, nil
}

func (c *Copier) start(ctx context.Context, srcAccount, dstAccount, key, destPath string) (string, error) {
	expiresAt := c.now().Add(c.cfg.Copy.SASValidity)

	sourceURL, err := c.blobSigner.SignBlobURL(ctx, srcAccount, c.cfg.Storage.ContainerName, c.cfg.Storage.BlobName, expiresAt,
		sas.BlobPermissions{Read: true, Write: true})
	if err != nil {
		return "", err
	}

	destinationURL, err := c.fileSigner.SignFileURL(dstAccount, key, c.cfg.Storage.ShareName, destPath, expiresAt,
		sas.FilePermissions{Create: true, Write: true})
	if err != nil {
		return "", err
	}

	return c.files.StartCopy(ctx, destinationURL, sourceURL)
}

// poll reads the destination copy status until it leaves pending or timeout
// elapses. Reads are issued back to back unless a poll interval is configured.
// It returns the last observed status, and the error that ended polling early.
func (c *Copier) poll(ctx context.Context, log *logrus.Entry, target storage.FileTarget, timeout time.Duration) (models.CopyStatus, error) {
	status := models.CopyStatusPending
	interval := c.cfg.Copy.PollInterval
	start := time.Now()

	for attempt := 1; !status.IsTerminal() && time.Since(start) < timeout; attempt++ {
		if err := ctx.Err(); err != nil {
			return status, err
		}

		native, err := c.files.CopyStatus(ctx, target)
		c.metrics.IncCopyPoll()
		if err != nil {
			return status, err
		}

		status = models.TranslateCopyStatus(native)
		if status.IsTerminal() {
			break
		}

		if log.Logger.IsLevelEnabled(logrus.DebugLevel) {
			log.WithFields(logrus.Fields{
				"attempt": attempt,
				"elapsed": time.Since(start).String(),
			}).Debug("Copy still pending")
		}

		if interval > 0 {
			timer := time.NewTimer(interval)
			select {
			case <-ctx.Done():
				timer.Stop()
				return status, ctx.Err()
			case <-timer.C:
			}
		}
	}
	return status, nil
}

// CopyLocations runs Copy between two configured locations.
func (c *Copier) CopyLocations(ctx context.Context, source, destination config.Location, timeout time.Duration) (*models.CopyResult, error) {
	src, err := c.cfg.Locations.Resolve(source)
	if err != nil {
		return nil, err
	}
	dst, err := c.cfg.Locations.Resolve(destination)
	if err != nil {
		return nil, err
	}
	return c.Copy(ctx, CopyRequest{SourceLocation: src, DestinationLocation: dst, Timeout: timeout})
}

// Pair is a source and destination location.
type Pair struct {
	Source      config.Location
	Destination config.Location
}

// AllPairs returns every source and destination combination, self pairs
// included, in result order.
func AllPairs() []Pair {
	pairs := make([]Pair, 0, len(config.AllLocations)*len(config.AllLocations))
	for _, src := range config.AllLocations {
		for _, dst := range config.AllLocations {
			pairs = append(pairs, Pair{Source: src, Destination: dst})
		}
	}
	return pairs
}

// CopyAll copies between every pair of locations and returns one result per
// pair in AllPairs order. A pair that fails becomes a failed result and does
// not stop the others. Missing configuration fails the whole batch up front.
func (c *Copier) CopyAll(ctx context.Context, timeout time.Duration) ([]models.CopyResult, error) {
	if _, err := c.cfg.Locations.Regions(); err != nil {
		return nil, err
	}
	if err := c.cfg.Storage.CheckPrefixes(); err != nil {
		return nil, err
	}

	pairs := AllPairs()
	results := make([]models.CopyResult, len(pairs))

	var g errgroup.Group
	if c.cfg.Copy.Sequential {
		g.SetLimit(1)
	}

	for i, pair := range pairs {
		g.Go(func() error {
			res, err := c.CopyLocations(ctx, pair.Source, pair.Destination, timeout)
			if err != nil {
				src, _ := c.cfg.Locations.Resolve(pair.Source)
				dst, _ := c.cfg.Locations.Resolve(pair.Destination)
				res = models.NewCopyResult(src, dst)
				res.SetMessage("Failed to copy from %s to %s: %v", src, dst, err)
				c.logger.WithError(err).WithFields(logrus.Fields{
					"source":      pair.Source.String(),
					"destination": pair.Destination.String(),
				}).Error("Copy combination failed")
			}
			results[i] = *res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
