package secrets

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
	"github.com/sirupsen/logrus"
)

type secretGetter interface {
	GetSecret(ctx context.Context, name string, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error)
}

// KeyVaultStore reads secrets from Azure Key Vault using the process identity.
type KeyVaultStore struct {
	client   secretGetter
	vaultURL string
	logger   *logrus.Entry
}

// NewKeyVaultStore creates a store for the vault at vaultURL.
func NewKeyVaultStore(vaultURL string, cred azcore.TokenCredential) (*KeyVaultStore, error) {
	client, err := azsecrets.NewClient(vaultURL, cred, &azsecrets.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{MaxRetries: -1},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create key vault client: %w", err)
	}

	return &KeyVaultStore{
		client:   client,
		vaultURL: vaultURL,
		logger:   logrus.WithField("component", "keyvault"),
	}, nil
}

// GetSecret returns the latest version of the named secret.
func (s *KeyVaultStore) GetSecret(ctx context.Context, name string) (string, error) {
	resp, err := s.client.GetSecret(ctx, name, "", nil)
	if err != nil {
		s.logger.WithError(err).WithField("secret", name).Debug("Key vault lookup failed")
		return "", &LookupError{Store: "keyvault", Name: name, Err: classifyResponseError(err)}
	}
	if resp.Value == nil {
		return "", &LookupError{Store: "keyvault", Name: name, Err: ErrSecretNotFound}
	}
	return *resp.Value, nil
}

// classifyResponseError attaches the matching sentinel to Azure response errors.
func classifyResponseError(err error) error {
	var respErr *azcore.ResponseError
	if !errors.As(err, &respErr) {
		return err
	}

	switch respErr.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrSecretNotFound, respErr.ErrorCode)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrAccessDenied, respErr.ErrorCode)
	default:
		return err
	}
}
