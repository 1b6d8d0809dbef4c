// Package enumerate lists the contents of the blob and file share accounts of
// both configured locations.
package enumerate

import (
	"context"
	"fmt"
	"iter"

	"github.com/sirupsen/logrus"

	"github.com/einyx/blob-copy-service/internal/config"
	"github.com/einyx/blob-copy-service/internal/metrics"
	"github.com/einyx/blob-copy-service/internal/models"
	"github.com/einyx/blob-copy-service/internal/secrets"
	"github.com/einyx/blob-copy-service/internal/storage"
)

// EnumerationError aborts a listing. Partial results are never returned with it.
type EnumerationError struct {
	Account   string
	Container string
	Path      string
	Err       error
}

func (e *EnumerationError) Error() string {
	target := e.Account
	if e.Container != "" {
		target += "/" + e.Container
	}
	if e.Path != "" {
		target += "/" + e.Path
	}
	return fmt.Sprintf("failed to enumerate %s: %v", target, e.Err)
}

func (e *EnumerationError) Unwrap() error {
	return e.Err
}

// BlobLister lists containers and blobs of a blob account.
type BlobLister interface {
	ListContainers(ctx context.Context, account string) iter.Seq2[string, error]
	ListBlobs(ctx context.Context, account, container string) iter.Seq2[string, error]
}

// ShareOpener opens a reader over one file share.
type ShareOpener interface {
	OpenShare(account, key, share string) (storage.ShareReader, error)
}

// Enumerator lists containers, blobs and share files.
type Enumerator struct {
	cfg     *config.Config
	blobs   BlobLister
	shares  ShareOpener
	secrets secrets.Store
	metrics *metrics.Metrics
	logger  *logrus.Entry
}

// New creates an Enumerator. m may be nil.
func New(cfg *config.Config, blobs BlobLister, shares ShareOpener, store secrets.Store, m *metrics.Metrics) *Enumerator {
	return &Enumerator{
		cfg:     cfg,
		blobs:   blobs,
		shares:  shares,
		secrets: store,
		metrics: m,
		logger:  logrus.WithField("component", "enumerator"),
	}
}

// ListContainers yields the container names of account. Errors are yielded
// as *EnumerationError and end the sequence.
func (e *Enumerator) ListContainers(ctx context.Context, account string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for name, err := range e.blobs.ListContainers(ctx, account) {
			if err != nil {
				yield("", &EnumerationError{Account: account, Err: err})
				return
			}
			if !yield(name, nil) {
				return
			}
		}
	}
}

// ListObjects yields the blob names of container in account.
func (e *Enumerator) ListObjects(ctx context.Context, account, container string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for name, err := range e.blobs.ListBlobs(ctx, account, container) {
			if err != nil {
				yield("", &EnumerationError{Account: account, Container: container, Err: err})
				return
			}
			if !yield(name, nil) {
				return
			}
		}
	}
}

// ListFilesRecursive walks share depth first starting at root and returns the
// path of every file and directory below it. A directory's descendants always
// precede the directory itself. Siblings are visited in name order.
func (e *Enumerator) ListFilesRecursive(ctx context.Context, account, key, share, root string) ([]string, error) {
	reader, err := e.shares.OpenShare(account, key, share)
	if err != nil {
		return nil, &EnumerationError{Account: account, Container: share, Path: root, Err: err}
	}

	var paths []string
	if err := walk(ctx, reader, root, &paths); err != nil {
		return nil, &EnumerationError{Account: account, Container: share, Path: err.path, Err: err.err}
	}
	return paths, nil
}

type walkError struct {
	path string
	err  error
}

func walk(ctx context.Context, reader storage.ShareReader, dir string, paths *[]string) *walkError {
	if err := ctx.Err(); err != nil {
		return &walkError{path: dir, err: err}
	}

	entries, err := reader.ListEntries(ctx, dir)
	if err != nil {
		return &walkError{path: dir, err: err}
	}

	for _, entry := range entries {
		p := storage.JoinEntryPath(dir, entry.Name)
		if entry.IsDirectory {
			if werr := walk(ctx, reader, p, paths); werr != nil {
				return werr
			}
		}
		*paths = append(*paths, p)
	}
	return nil
}

// ListBlobAccounts lists every container and blob of the blob accounts of
// both locations, primary first.
func (e *Enumerator) ListBlobAccounts(ctx context.Context) ([]models.StorageAccountContent, error) {
	accounts, err := e.cfg.AccountNames(config.BlobAccount)
	if err != nil {
		return nil, err
	}

	contents := make([]models.StorageAccountContent, 0, len(accounts))
	for _, account := range accounts {
		content, err := e.listBlobAccount(ctx, account)
		if err != nil {
			return nil, err
		}
		contents = append(contents, content)
	}
	return contents, nil
}

func (e *Enumerator) listBlobAccount(ctx context.Context, account string) (models.StorageAccountContent, error) {
	log := e.logger.WithField("account", account)
	content := models.StorageAccountContent{
		StorageAccountName: account,
		BlobContainers:     []models.BlobContainer{},
	}

	var containers []string
	for name, err := range e.ListContainers(ctx, account) {
		if err != nil {
			e.metrics.RecordEnumeration(config.BlobAccount.String(), 0, err)
			return content, err
		}
		containers = append(containers, name)
	}

	items := 0
	for _, container := range containers {
		blobs := []string{}
		for name, err := range e.ListObjects(ctx, account, container) {
			if err != nil {
				e.metrics.RecordEnumeration(config.BlobAccount.String(), 0, err)
				return content, err
			}
			blobs = append(blobs, name)
		}
		items += len(blobs)
		content.BlobContainers = append(content.BlobContainers, models.BlobContainer{Name: container, Blobs: blobs})
	}

	e.metrics.RecordEnumeration(config.BlobAccount.String(), items, nil)
	log.WithFields(logrus.Fields{
		"containers": len(containers),
		"blobs":      items,
	}).Debug("Listed blob account")
	return content, nil
}

// ListFileShareAccounts lists the configured share of the file share accounts
// of both locations, primary first. The account key is read from the secret
// store on every call.
func (e *Enumerator) ListFileShareAccounts(ctx context.Context) ([]models.StorageAccountContent, error) {
	accounts, err := e.cfg.AccountNames(config.FileShareAccount)
	if err != nil {
		return nil, err
	}

	shareName := e.cfg.Storage.ShareName
	contents := make([]models.StorageAccountContent, 0, len(accounts))
	for _, account := range accounts {
		secretName := e.cfg.Storage.KeySecretName(account)
		key, err := e.secrets.GetSecret(ctx, secretName)
		e.metrics.RecordSecretLookup(err)
		if err != nil {
			e.metrics.RecordEnumeration(config.FileShareAccount.String(), 0, err)
			return nil, &EnumerationError{
				Account:   account,
				Container: shareName,
				Err:       fmt.Errorf("failed to retrieve storage account key by secret name %s: %w", secretName, err),
			}
		}

		files, err := e.ListFilesRecursive(ctx, account, key, shareName, "")
		e.metrics.RecordEnumeration(config.FileShareAccount.String(), len(files), err)
		if err != nil {
			return nil, err
		}
		if files == nil {
			files = []string{}
		}

		e.logger.WithFields(logrus.Fields{
			"account": account,
			"share":   shareName,
			"entries": len(files),
		}).Debug("Listed file share account")

		contents = append(contents, models.StorageAccountContent{
			StorageAccountName: account,
			FileShares:         []models.FileShare{{Name: shareName, Files: files}},
		})
	}
	return contents, nil
}

// ListAll returns the blob accounts followed by the file share accounts.
func (e *Enumerator) ListAll(ctx context.Context) ([]models.StorageAccountContent, error) {
	blobs, err := e.ListBlobAccounts(ctx)
	if err != nil {
		return nil, err
	}
	files, err := e.ListFileShareAccounts(ctx)
	if err != nil {
		return nil, err
	}
	return append(blobs, files...), nil
}
