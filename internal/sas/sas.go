// Package sas builds short lived signed URLs for the copy source blob and the
// copy destination file.
package sas

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	blobsas "github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/service"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azfile/file"
	filesas "github.com/Azure/azure-sdk-for-go/sdk/storage/azfile/sas"
	"github.com/sirupsen/logrus"

	"github.com/einyx/blob-copy-service/internal/config"
	"github.com/einyx/blob-copy-service/internal/storage"
)

// Kind classifies a CredentialError.
type Kind int

const (
	KindUnknown Kind = iota
	KindAuthorization
	KindNotFound
	KindInvalidCredential
)

func (k Kind) String() string {
	switch k {
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not found"
	case KindInvalidCredential:
		return "invalid credential"
	default:
		return "unknown"
	}
}

// CredentialError reports a failure to obtain signing material or to sign a URL.
type CredentialError struct {
	Kind    Kind
	Account string
	Err     error
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("credential error (%s) for account %s: %v", e.Kind, e.Account, e.Err)
}

func (e *CredentialError) Unwrap() error {
	return e.Err
}

// BlobPermissions are the permissions granted on the copy source.
type BlobPermissions struct {
	Read  bool
	Write bool
}

// FilePermissions are the permissions granted on the copy destination.
type FilePermissions struct {
	Create bool
	Write  bool
}

// DelegationKeySource issues user delegation keys for a blob account.
type DelegationKeySource interface {
	UserDelegationCredential(ctx context.Context, account string, start, expiry time.Time) (*service.UserDelegationCredential, error)
	BlobURL(account, container, blob string) string
}

// DelegatedSigner signs blob URLs with a user delegation key obtained through
// the process identity. No account key is ever held for the source account.
type DelegatedSigner struct {
	keys   DelegationKeySource
	now    func() time.Time
	logger *logrus.Entry
}

// NewDelegatedSigner creates a blob signer backed by keys.
func NewDelegatedSigner(keys DelegationKeySource) *DelegatedSigner {
	return &DelegatedSigner{
		keys:   keys,
		now:    time.Now,
		logger: logrus.WithField("component", "sas"),
	}
}

// SignBlobURL returns a blob SAS URL for account/container/blob expiring at expiresAt.
func (s *DelegatedSigner) SignBlobURL(ctx context.Context, account, container, blob string, expiresAt time.Time, perms BlobPermissions) (string, error) {
	udc, err := s.keys.UserDelegationCredential(ctx, account, s.now().Add(-time.Minute), expiresAt)
	if err != nil {
		return "", &CredentialError{Kind: classify(err), Account: account, Err: err}
	}

	values := blobsas.BlobSignatureValues{
		Protocol:      blobsas.ProtocolHTTPS,
		ExpiryTime:    expiresAt.UTC(),
		Permissions:   (&blobsas.BlobPermissions{Read: perms.Read, Write: perms.Write}).String(),
		ContainerName: container,
		BlobName:      blob,
	}

	qp, err := values.SignWithUserDelegation(udc)
	if err != nil {
		return "", &CredentialError{Kind: KindInvalidCredential, Account: account, Err: err}
	}

	s.logger.WithFields(logrus.Fields{
		"account":   account,
		"container": container,
		"blob":      blob,
		"expiry":    expiresAt.UTC().Format(time.RFC3339),
	}).Debug("Signed blob URL")

	return s.keys.BlobURL(account, container, blob) + "?" + qp.Encode(), nil
}

// SharedKeySigner signs file URLs with the destination account key.
type SharedKeySigner struct {
	cfg config.StorageConfig
}

// NewSharedKeySigner creates a file signer for accounts under cfg's endpoint suffix.
func NewSharedKeySigner(cfg config.StorageConfig) *SharedKeySigner {
	return &SharedKeySigner{cfg: cfg}
}

// SignFileURL returns a file SAS URL for share/filePath in account expiring at expiresAt.
func (s *SharedKeySigner) SignFileURL(account, key, share, filePath string, expiresAt time.Time, perms FilePermissions) (string, error) {
	cred, err := file.NewSharedKeyCredential(account, key)
	if err != nil {
		return "", &CredentialError{Kind: KindInvalidCredential, Account: account, Err: err}
	}

	values := filesas.SignatureValues{
		Protocol:    filesas.ProtocolHTTPS,
		ExpiryTime:  expiresAt.UTC(),
		Permissions: (&filesas.FilePermissions{Create: perms.Create, Write: perms.Write}).String(),
		ShareName:   share,
		FilePath:    filePath,
	}

	qp, err := values.SignWithSharedKey(cred)
	if err != nil {
		return "", &CredentialError{Kind: KindInvalidCredential, Account: account, Err: err}
	}

	return runtime.JoinPaths(s.cfg.FileServiceURL(account), share, filePath) + "?" + qp.Encode(), nil
}

func classify(err error) Kind {
	var provErr *storage.ProviderError
	if !errors.As(err, &provErr) {
		return KindUnknown
	}
	switch {
	case provErr.StatusCode == http.StatusUnauthorized, provErr.StatusCode == http.StatusForbidden:
		return KindAuthorization
	case provErr.NotFound():
		return KindNotFound
	default:
		return KindUnknown
	}
}
