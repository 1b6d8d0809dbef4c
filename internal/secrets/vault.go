package secrets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	vaultapi "github.com/hashicorp/vault/api"
	"github.com/sirupsen/logrus"

	"github.com/einyx/blob-copy-service/internal/config"
)

type kvReader interface {
	Get(ctx context.Context, secretPath string) (*vaultapi.KVSecret, error)
}

// VaultStore reads secrets from a HashiCorp Vault KV v2 mount. Each secret is
// stored at <prefix>/<name> and its value is read from a single field.
type VaultStore struct {
	kv             kvReader
	prefix         string
	valueField     string
	requestTimeout time.Duration
	logger         *logrus.Entry
}

// NewVaultStore creates a Vault backed store.
func NewVaultStore(cfg config.VaultConfig) (*VaultStore, error) {
	clientCfg := vaultapi.DefaultConfig()
	if cfg.Address != "" {
		clientCfg.Address = cfg.Address
	}
	clientCfg.MaxRetries = 0

	client, err := vaultapi.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}

	token, err := resolveVaultToken(cfg)
	if err != nil {
		return nil, err
	}
	client.SetToken(token)

	mount := strings.Trim(cfg.MountPath, "/")
	if mount == "" {
		mount = "secret"
	}

	store := newVaultStore(client.KVv2(mount), cfg)
	store.logger.WithFields(logrus.Fields{
		"address": clientCfg.Address,
		"mount":   mount,
	}).Info("Vault secret store initialized")
	return store, nil
}

func newVaultStore(kv kvReader, cfg config.VaultConfig) *VaultStore {
	field := cfg.ValueField
	if field == "" {
		field = "value"
	}
	return &VaultStore{
		kv:             kv,
		prefix:         strings.Trim(cfg.SecretPrefix, "/"),
		valueField:     field,
		requestTimeout: cfg.RequestTimeout,
		logger:         logrus.WithField("component", "vault-secrets"),
	}
}

func resolveVaultToken(cfg config.VaultConfig) (string, error) {
	if cfg.Token != "" {
		return cfg.Token, nil
	}

	if cfg.TokenFile != "" {
		data, err := os.ReadFile(cfg.TokenFile)
		if err != nil {
			return "", fmt.Errorf("failed to read Vault token file: %w", err)
		}
		token := strings.TrimSpace(string(data))
		if token == "" {
			return "", fmt.Errorf("vault token file is empty")
		}
		return token, nil
	}

	if token := os.Getenv("VAULT_TOKEN"); token != "" {
		return token, nil
	}

	return "", fmt.Errorf("vault token not provided")
}

// GetSecret reads the configured value field of the named secret.
func (s *VaultStore) GetSecret(ctx context.Context, name string) (string, error) {
	if s.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.requestTimeout)
		defer cancel()
	}

	secretPath := name
	if s.prefix != "" {
		secretPath = path.Join(s.prefix, name)
	}

	secret, err := s.kv.Get(ctx, secretPath)
	if err != nil {
		return "", &LookupError{Store: "vault", Name: name, Err: classifyVaultError(err)}
	}
	if secret == nil || secret.Data == nil {
		return "", &LookupError{Store: "vault", Name: name, Err: ErrSecretNotFound}
	}

	raw, ok := secret.Data[s.valueField]
	if !ok {
		return "", &LookupError{
			Store: "vault",
			Name:  name,
			Err:   fmt.Errorf("%w: missing field '%s'", ErrSecretNotFound, s.valueField),
		}
	}
	value, ok := raw.(string)
	if !ok || value == "" {
		return "", &LookupError{
			Store: "vault",
			Name:  name,
			Err:   fmt.Errorf("field '%s' is empty or not a string", s.valueField),
		}
	}

	return value, nil
}

func classifyVaultError(err error) error {
	if errors.Is(err, vaultapi.ErrSecretNotFound) {
		return fmt.Errorf("%w: %v", ErrSecretNotFound, err)
	}

	var respErr *vaultapi.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %v", ErrSecretNotFound, err)
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %v", ErrAccessDenied, err)
		}
	}
	return err
}
