// Package storage provides the Azure Blob Storage and Azure Files providers used by the copy service.
package storage

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/service"
	"github.com/sirupsen/logrus"

	"github.com/einyx/blob-copy-service/internal/config"
	"github.com/einyx/blob-copy-service/internal/transport"
)

// clientOptions builds the pipeline options shared by every storage client.
// Retries are disabled; the copy loop is the only place that repeats a call.
func clientOptions(requestTimeout time.Duration) azcore.ClientOptions {
	if requestTimeout <= 0 {
		requestTimeout = 60 * time.Second
	}

	return azcore.ClientOptions{
		Retry: policy.RetryOptions{
			MaxRetries: -1,
			TryTimeout: requestTimeout,
		},
		Transport: transport.NewHTTPClient(requestTimeout),
	}
}

// Option customises the pipeline of a storage client.
type Option func(*azcore.ClientOptions)

// WithTransport sends every request through t instead of the tuned HTTP client.
func WithTransport(t policy.Transporter) Option {
	return func(o *azcore.ClientOptions) {
		o.Transport = t
	}
}

func buildOptions(requestTimeout time.Duration, opts []Option) azcore.ClientOptions {
	options := clientOptions(requestTimeout)
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

// BlobService talks to the blob endpoints of the source accounts using the
// process identity. Clients are built per call since account names are derived
// from configuration on every request.
type BlobService struct {
	cfg     config.StorageConfig
	cred    azcore.TokenCredential
	options azcore.ClientOptions
	logger  *logrus.Entry
}

// NewBlobService creates a blob provider authenticating with cred.
func NewBlobService(cfg config.StorageConfig, cred azcore.TokenCredential, opts ...Option) *BlobService {
	return &BlobService{
		cfg:     cfg,
		cred:    cred,
		options: buildOptions(cfg.RequestTimeout, opts),
		logger:  logrus.WithField("component", "blob-service"),
	}
}

func (s *BlobService) client(account string) (*azblob.Client, error) {
	client, err := azblob.NewClient(s.cfg.BlobServiceURL(account), s.cred, &azblob.ClientOptions{
		ClientOptions: s.options,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create blob client for %s: %w", account, err)
	}
	return client, nil
}

// ListContainers yields every container name of account, page by page.
// Iteration stops at the first error, which is yielded with an empty name.
func (s *BlobService) ListContainers(ctx context.Context, account string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		client, err := s.client(account)
		if err != nil {
			yield("", err)
			return
		}

		pager := client.NewListContainersPager(nil)
		for pager.More() {
			page, err := pager.NextPage(ctx)
			if err != nil {
				yield("", wrapError("list containers", err))
				return
			}
			for _, item := range page.ContainerItems {
				if item == nil || item.Name == nil {
					continue
				}
				if !yield(*item.Name, nil) {
					return
				}
			}
		}
	}
}

// ListBlobs yields every blob name of container in account.
func (s *BlobService) ListBlobs(ctx context.Context, account, container string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		client, err := s.client(account)
		if err != nil {
			yield("", err)
			return
		}

		pager := client.NewListBlobsFlatPager(container, nil)
		for pager.More() {
			page, err := pager.NextPage(ctx)
			if err != nil {
				yield("", wrapError("list blobs", err))
				return
			}
			if page.Segment == nil {
				continue
			}
			for _, item := range page.Segment.BlobItems {
				if item == nil || item.Name == nil {
					continue
				}
				if !yield(*item.Name, nil) {
					return
				}
			}
		}
	}
}

// UserDelegationCredential requests a user delegation key for account valid
// between start and expiry.
func (s *BlobService) UserDelegationCredential(ctx context.Context, account string, start, expiry time.Time) (*service.UserDelegationCredential, error) {
	client, err := s.client(account)
	if err != nil {
		return nil, err
	}

	info := service.KeyInfo{
		Start:  toPtr(start.UTC().Format(sas.TimeFormat)),
		Expiry: toPtr(expiry.UTC().Format(sas.TimeFormat)),
	}

	udc, err := client.ServiceClient().GetUserDelegationCredential(ctx, info, nil)
	if err != nil {
		s.logger.WithError(err).WithField("account", account).Debug("User delegation key request failed")
		return nil, wrapError("get user delegation key", err)
	}
	return udc, nil
}

// BlobURL returns the unsigned URL of a blob.
func (s *BlobService) BlobURL(account, container, blob string) string {
	return runtime.JoinPaths(s.cfg.BlobServiceURL(account), container, blob)
}

func toPtr[T any](v T) *T {
	return &v
}
