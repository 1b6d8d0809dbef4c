package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrConfiguration is matched by every ConfigurationError via errors.Is.
var ErrConfiguration = errors.New("configuration error")

// ConfigurationError reports required settings that are missing.
type ConfigurationError struct {
	Fields []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("missing required configuration: %s", strings.Join(e.Fields, ", "))
}

// Is makes errors.Is(err, ErrConfiguration) true for any ConfigurationError.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// Location selects one of the two configured regions.
type Location int

const (
	PrimaryLocation Location = iota
	SecondaryLocation
)

// AllLocations lists the locations in resolution order.
var AllLocations = []Location{PrimaryLocation, SecondaryLocation}

func (l Location) String() string {
	switch l {
	case PrimaryLocation:
		return "PrimaryLocation"
	case SecondaryLocation:
		return "SecondaryLocation"
	default:
		return fmt.Sprintf("Location(%d)", int(l))
	}
}

// Resolve returns the region string configured for l.
func (c LocationsConfig) Resolve(l Location) (string, error) {
	var region, field string
	switch l {
	case PrimaryLocation:
		region, field = c.Primary, "PRIMARY_LOCATION"
	case SecondaryLocation:
		region, field = c.Secondary, "SECONDARY_LOCATION"
	default:
		return "", fmt.Errorf("unknown location %d", int(l))
	}

	region = strings.TrimSpace(region)
	if region == "" {
		return "", &ConfigurationError{Fields: []string{field}}
	}
	return region, nil
}

// Regions resolves every location, failing on the first missing one.
func (c LocationsConfig) Regions() ([]string, error) {
	regions := make([]string, 0, len(AllLocations))
	for _, l := range AllLocations {
		region, err := c.Resolve(l)
		if err != nil {
			return nil, err
		}
		regions = append(regions, region)
	}
	return regions, nil
}

// AccountKind distinguishes blob accounts from file share accounts.
type AccountKind int

const (
	BlobAccount AccountKind = iota
	FileShareAccount
)

func (k AccountKind) String() string {
	if k == BlobAccount {
		return "blob"
	}
	return "fileshare"
}

// AccountName derives the storage account name for kind in region. Names are
// computed on every call so a reloaded configuration takes effect immediately.
func (s StorageConfig) AccountName(kind AccountKind, region string) (string, error) {
	prefix, field := s.BlobAccountPrefix, "BLOB_STORAGE_ACCOUNT_NAME_PREFIX"
	if kind == FileShareAccount {
		prefix, field = s.FileShareAccountPrefix, "FILE_SHARE_STORAGE_ACCOUNT_NAME_PREFIX"
	}

	if strings.TrimSpace(prefix) == "" {
		return "", &ConfigurationError{Fields: []string{field}}
	}
	if strings.TrimSpace(region) == "" {
		return "", fmt.Errorf("region is required to derive a %s account name", kind)
	}
	return prefix + region, nil
}

// CheckPrefixes fails when either account name prefix is missing.
func (s StorageConfig) CheckPrefixes() error {
	var missing []string
	if strings.TrimSpace(s.BlobAccountPrefix) == "" {
		missing = append(missing, "BLOB_STORAGE_ACCOUNT_NAME_PREFIX")
	}
	if strings.TrimSpace(s.FileShareAccountPrefix) == "" {
		missing = append(missing, "FILE_SHARE_STORAGE_ACCOUNT_NAME_PREFIX")
	}
	if len(missing) > 0 {
		return &ConfigurationError{Fields: missing}
	}
	return nil
}

// KeySecretName is the secret store name holding the shared key of account.
func (s StorageConfig) KeySecretName(account string) string {
	return account + s.KeySecretSuffix
}

// DestinationFilePath is the file path a copy from sourceRegion is written to.
func (s StorageConfig) DestinationFilePath(sourceRegion string) string {
	return fmt.Sprintf(s.DestinationFilePattern, sourceRegion)
}

// BlobServiceURL returns the blob endpoint of account.
func (s StorageConfig) BlobServiceURL(account string) string {
	return fmt.Sprintf("https://%s.%s/", account, s.BlobEndpointSuffix)
}

// FileServiceURL returns the file endpoint of account.
func (s StorageConfig) FileServiceURL(account string) string {
	return fmt.Sprintf("https://%s.%s/", account, s.FileEndpointSuffix)
}

// AccountNames returns the account names of kind for every configured location.
func (c *Config) AccountNames(kind AccountKind) ([]string, error) {
	regions, err := c.Locations.Regions()
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(regions))
	for _, region := range regions {
		name, err := c.Storage.AccountName(kind, region)
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}
