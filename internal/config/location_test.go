package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocationsConfig_Resolve(t *testing.T) {
	locs := LocationsConfig{Primary: "westeurope", Secondary: "swedencentral"}

	region, err := locs.Resolve(PrimaryLocation)
	require.NoError(t, err)
	assert.Equal(t, "westeurope", region)

	region, err = locs.Resolve(SecondaryLocation)
	require.NoError(t, err)
	assert.Equal(t, "swedencentral", region)

	_, err = locs.Resolve(Location(7))
	assert.Error(t, err)
}

func TestLocationsConfig_ResolveMissing(t *testing.T) {
	locs := LocationsConfig{Primary: "westeurope", Secondary: "  "}

	_, err := locs.Resolve(SecondaryLocation)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfiguration))

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, []string{"SECONDARY_LOCATION"}, cfgErr.Fields)

	_, err = locs.Regions()
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestStorageConfig_AccountName(t *testing.T) {
	s := StorageConfig{BlobAccountPrefix: "stblob", FileShareAccountPrefix: "stfile"}

	name, err := s.AccountName(BlobAccount, "westeurope")
	require.NoError(t, err)
	assert.Equal(t, "stblobwesteurope", name)

	name, err = s.AccountName(FileShareAccount, "swedencentral")
	require.NoError(t, err)
	assert.Equal(t, "stfileswedencentral", name)

	_, err = s.AccountName(BlobAccount, "")
	assert.Error(t, err)

	s.FileShareAccountPrefix = ""
	_, err = s.AccountName(FileShareAccount, "westeurope")
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.ErrorIs(t, s.CheckPrefixes(), ErrConfiguration)
}

func TestConfig_AccountNames(t *testing.T) {
	cfg := &Config{
		Locations: LocationsConfig{Primary: "westeurope", Secondary: "swedencentral"},
		Storage:   StorageConfig{BlobAccountPrefix: "stblob", FileShareAccountPrefix: "stfile"},
	}

	blobs, err := cfg.AccountNames(BlobAccount)
	require.NoError(t, err)
	assert.Equal(t, []string{"stblobwesteurope", "stblobswedencentral"}, blobs)

	files, err := cfg.AccountNames(FileShareAccount)
	require.NoError(t, err)
	assert.Equal(t, []string{"stfilewesteurope", "stfileswedencentral"}, files)
}

func TestStorageConfig_Derivations(t *testing.T) {
	cfg := &Config{}
	cfg.SetDefaults()
	s := cfg.Storage

	assert.Equal(t, "stfileswedencentralStorageAccountKey", s.KeySecretName("stfileswedencentral"))
	assert.Equal(t, "test-from-westeurope.txt", s.DestinationFilePath("westeurope"))
	assert.Equal(t, "https://acct.blob.core.windows.net/", s.BlobServiceURL("acct"))
	assert.Equal(t, "https://acct.file.core.windows.net/", s.FileServiceURL("acct"))
}

func TestLocation_String(t *testing.T) {
	assert.Equal(t, "PrimaryLocation", PrimaryLocation.String())
	assert.Equal(t, "SecondaryLocation", SecondaryLocation.String())
	assert.Equal(t, "Location(5)", Location(5).String())
}
