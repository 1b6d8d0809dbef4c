// Package config provides configuration structures and loading functionality for the copy service
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

const (
	SecretProviderKeyVault = "keyvault"
	SecretProviderVault    = "vault"
	SecretProviderMemory   = "memory"
)

// Config represents the main configuration structure for the copy service
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Locations  LocationsConfig  `mapstructure:"locations"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Secrets    SecretsConfig    `mapstructure:"secrets"`
	Copy       CopyConfig       `mapstructure:"copy"`
	App        AppConfig        `mapstructure:"app"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Sentry     SentryConfig     `mapstructure:"sentry"`
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Listen       string        `mapstructure:"listen" envconfig:"SERVER_LISTEN"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" envconfig:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" envconfig:"SERVER_WRITE_TIMEOUT"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout" envconfig:"SERVER_IDLE_TIMEOUT"`
}

// LocationsConfig holds the two regions the storage accounts live in
type LocationsConfig struct {
	Primary   string `mapstructure:"primary" envconfig:"PRIMARY_LOCATION"`
	Secondary string `mapstructure:"secondary" envconfig:"SECONDARY_LOCATION"`
}

// StorageConfig describes how storage account names and copy targets are derived.
// DestinationFilePattern takes the source location as its only verb.
type StorageConfig struct {
	BlobAccountPrefix      string        `mapstructure:"blob_account_prefix" envconfig:"BLOB_STORAGE_ACCOUNT_NAME_PREFIX"`
	FileShareAccountPrefix string        `mapstructure:"file_share_account_prefix" envconfig:"FILE_SHARE_STORAGE_ACCOUNT_NAME_PREFIX"`
	BlobEndpointSuffix     string        `mapstructure:"blob_endpoint_suffix" envconfig:"BLOB_ENDPOINT_SUFFIX"`
	FileEndpointSuffix     string        `mapstructure:"file_endpoint_suffix" envconfig:"FILE_ENDPOINT_SUFFIX"`
	ContainerName          string        `mapstructure:"container_name" envconfig:"BLOB_CONTAINER_NAME"`
	BlobName               string        `mapstructure:"blob_name" envconfig:"BLOB_NAME"`
	ShareName              string        `mapstructure:"share_name" envconfig:"FILE_SHARE_NAME"`
	DestinationFilePattern string        `mapstructure:"destination_file_pattern" envconfig:"DESTINATION_FILE_PATTERN"`
	KeySecretSuffix        string        `mapstructure:"key_secret_suffix" envconfig:"STORAGE_ACCOUNT_KEY_SECRET_SUFFIX"`
	RequestTimeout         time.Duration `mapstructure:"request_timeout" envconfig:"STORAGE_REQUEST_TIMEOUT"`
}

// SecretsConfig selects and configures the secret store holding storage account keys
type SecretsConfig struct {
	Provider     string      `mapstructure:"provider" envconfig:"SECRETS_PROVIDER"`
	KeyVaultName string      `mapstructure:"key_vault_name" envconfig:"KEY_VAULT_NAME"`
	KeyVaultURL  string      `mapstructure:"key_vault_url" envconfig:"KEY_VAULT_URL"`
	Vault        VaultConfig `mapstructure:"vault"`
}

// VaultConfig contains HashiCorp Vault KV v2 settings
type VaultConfig struct {
	Address        string        `mapstructure:"address" envconfig:"VAULT_ADDR"`
	Token          string        `mapstructure:"token" envconfig:"VAULT_TOKEN"`
	TokenFile      string        `mapstructure:"token_file" envconfig:"VAULT_TOKEN_FILE"`
	MountPath      string        `mapstructure:"mount_path" envconfig:"VAULT_MOUNT_PATH"`
	SecretPrefix   string        `mapstructure:"secret_prefix" envconfig:"VAULT_SECRET_PREFIX"`
	ValueField     string        `mapstructure:"value_field" envconfig:"VAULT_VALUE_FIELD"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" envconfig:"VAULT_REQUEST_TIMEOUT"`
}

// CopyConfig contains copy orchestration settings
type CopyConfig struct {
	DefaultTimeout time.Duration `mapstructure:"default_timeout" envconfig:"COPY_DEFAULT_TIMEOUT"`
	SASValidity    time.Duration `mapstructure:"sas_validity" envconfig:"COPY_SAS_VALIDITY"`
	PollInterval   time.Duration `mapstructure:"poll_interval" envconfig:"COPY_POLL_INTERVAL"` // zero reads back to back
	Sequential     bool          `mapstructure:"sequential" envconfig:"COPY_ALL_SEQUENTIAL"`
}

// AppConfig holds descriptive settings surfaced by the health endpoint
type AppConfig struct {
	Environment               string `mapstructure:"environment" envconfig:"APP_ENVIRONMENT"`
	PrivateConnectivityMethod string `mapstructure:"private_connectivity_method" envconfig:"PRIVATE_CONNECTIVITY_METHOD"`
}

// MonitoringConfig contains monitoring and profiling configuration
type MonitoringConfig struct {
	MetricsDisabled bool `mapstructure:"metrics_disabled" envconfig:"MONITORING_METRICS_DISABLED"`
	PprofEnabled    bool `mapstructure:"pprof_enabled" envconfig:"MONITORING_PPROF_ENABLED"`
}

// SentryConfig contains Sentry error tracking configuration
type SentryConfig struct {
	Enabled          bool     `mapstructure:"enabled" envconfig:"SENTRY_ENABLED"`
	DSN              string   `mapstructure:"dsn" envconfig:"SENTRY_DSN"`
	Environment      string   `mapstructure:"environment" envconfig:"SENTRY_ENVIRONMENT"`
	SampleRate       float64  `mapstructure:"sample_rate" envconfig:"SENTRY_SAMPLE_RATE"`
	TracesSampleRate float64  `mapstructure:"traces_sample_rate" envconfig:"SENTRY_TRACES_SAMPLE_RATE"`
	Debug            bool     `mapstructure:"debug" envconfig:"SENTRY_DEBUG"`
	MaxBreadcrumbs   int      `mapstructure:"max_breadcrumbs" envconfig:"SENTRY_MAX_BREADCRUMBS"`
	IgnoreErrors     []string `mapstructure:"ignore_errors"`
	ServerName       string   `mapstructure:"server_name" envconfig:"SENTRY_SERVER_NAME"`
	Release          string   `mapstructure:"release" envconfig:"SENTRY_RELEASE"`
}

// Load reads and validates configuration from a file or environment variables.
// If configFile is empty, only environment variables are processed.
// Environment variables take precedence over file values; unset values fall back to defaults.
func Load(configFile string) (*Config, error) {
	cfg := &Config{}

	if configFile != "" {
		v := viper.New()
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := v.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to process env vars: %w", err)
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// SetDefaults fills every unset value with its default.
func (c *Config) SetDefaults() {
	setString(&c.Server.Listen, ":8080")
	setDuration(&c.Server.ReadTimeout, 60*time.Second)
	setDuration(&c.Server.WriteTimeout, 5*time.Minute)
	setDuration(&c.Server.IdleTimeout, 120*time.Second)

	setString(&c.Storage.BlobEndpointSuffix, "blob.core.windows.net")
	setString(&c.Storage.FileEndpointSuffix, "file.core.windows.net")
	setString(&c.Storage.ContainerName, "copytest")
	setString(&c.Storage.BlobName, "test.txt")
	setString(&c.Storage.ShareName, "copytest")
	setString(&c.Storage.DestinationFilePattern, "test-from-%s.txt")
	setString(&c.Storage.KeySecretSuffix, "StorageAccountKey")
	setDuration(&c.Storage.RequestTimeout, 60*time.Second)

	setString(&c.Secrets.Provider, SecretProviderKeyVault)
	setString(&c.Secrets.Vault.MountPath, "secret")
	setString(&c.Secrets.Vault.ValueField, "value")
	setDuration(&c.Secrets.Vault.RequestTimeout, 10*time.Second)

	setDuration(&c.Copy.DefaultTimeout, 30*time.Second)
	setDuration(&c.Copy.SASValidity, 15*time.Minute)

	setString(&c.App.Environment, "Production")

	setString(&c.Sentry.Environment, "production")
	if c.Sentry.SampleRate == 0 {
		c.Sentry.SampleRate = 1.0
	}
	if c.Sentry.MaxBreadcrumbs == 0 {
		c.Sentry.MaxBreadcrumbs = 30
	}
}

// Validate ensures that every setting required by the copy and listing paths is present.
func (c *Config) Validate() error {
	var missing []string

	if strings.TrimSpace(c.Locations.Primary) == "" {
		missing = append(missing, "PRIMARY_LOCATION")
	}
	if strings.TrimSpace(c.Locations.Secondary) == "" {
		missing = append(missing, "SECONDARY_LOCATION")
	}
	if strings.TrimSpace(c.Storage.BlobAccountPrefix) == "" {
		missing = append(missing, "BLOB_STORAGE_ACCOUNT_NAME_PREFIX")
	}
	if strings.TrimSpace(c.Storage.FileShareAccountPrefix) == "" {
		missing = append(missing, "FILE_SHARE_STORAGE_ACCOUNT_NAME_PREFIX")
	}

	switch c.Secrets.Provider {
	case SecretProviderKeyVault:
		if c.Secrets.KeyVaultName == "" && c.Secrets.KeyVaultURL == "" {
			missing = append(missing, "KEY_VAULT_NAME")
		}
	case SecretProviderVault:
		if c.Secrets.Vault.Address == "" {
			missing = append(missing, "VAULT_ADDR")
		}
	case SecretProviderMemory:
	default:
		return fmt.Errorf("unsupported secrets provider: %s", c.Secrets.Provider)
	}

	if len(missing) > 0 {
		return &ConfigurationError{Fields: missing}
	}

	if c.Copy.DefaultTimeout < 0 {
		return fmt.Errorf("copy default timeout must not be negative")
	}
	if c.Copy.SASValidity <= 0 {
		return fmt.Errorf("copy sas validity must be positive")
	}
	if err := validateFilePattern(c.Storage.DestinationFilePattern); err != nil {
		return err
	}

	return nil
}

// validateFilePattern requires exactly one %s and no other formatting verbs.
// A literal percent sign is written as %%.
func validateFilePattern(pattern string) error {
	bare := strings.ReplaceAll(pattern, "%%", "")
	if strings.Count(bare, "%s") != 1 || strings.Count(bare, "%") != 1 {
		return fmt.Errorf("destination file pattern %q must contain exactly one %%s and no other verbs", pattern)
	}
	return nil
}

// VaultURL returns the Key Vault URL, derived from the vault name unless set explicitly.
func (s SecretsConfig) VaultURL() string {
	if s.KeyVaultURL != "" {
		return s.KeyVaultURL
	}
	return fmt.Sprintf("https://%s.vault.azure.net", s.KeyVaultName)
}

func setString(field *string, def string) {
	if *field == "" {
		*field = def
	}
}

func setDuration(field *time.Duration, def time.Duration) {
	if *field == 0 {
		*field = def
	}
}

// MaskedToken returns the Vault token in a form safe for logging
func (v VaultConfig) MaskedToken() string {
	if v.Token == "" {
		return ""
	}
	return maskCredential(v.Token)
}

// maskCredential masks sensitive credential values for safe logging
func maskCredential(credential string) string {
	if len(credential) <= 4 {
		return "[REDACTED]"
	}
	return credential[:4] + "****"
}
