// Package secrets provides the secret store used to look up storage account keys.
package secrets

import (
	"context"
	"errors"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"

	"github.com/einyx/blob-copy-service/internal/config"
)

var (
	// ErrSecretNotFound indicates that the secret does not exist in the store.
	ErrSecretNotFound = errors.New("secret not found")

	// ErrAccessDenied indicates the caller identity may not read the secret.
	ErrAccessDenied = errors.New("access denied")
)

// Store retrieves secrets by name. Values are never cached.
type Store interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// LookupError carries the store and secret name of a failed lookup.
type LookupError struct {
	Store string
	Name  string
	Err   error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("%s: failed to get secret %q: %v", e.Store, e.Name, e.Err)
}

func (e *LookupError) Unwrap() error {
	return e.Err
}

// New creates the store selected by cfg.Provider. cred is used by the Key Vault store.
func New(cfg config.SecretsConfig, cred azcore.TokenCredential) (Store, error) {
	switch cfg.Provider {
	case config.SecretProviderKeyVault:
		return NewKeyVaultStore(cfg.VaultURL(), cred)
	case config.SecretProviderVault:
		return NewVaultStore(cfg.Vault)
	case config.SecretProviderMemory:
		return NewMemoryStore(nil), nil
	default:
		return nil, fmt.Errorf("unsupported secrets provider: %s", cfg.Provider)
	}
}
