package models

import "strings"

const (
	StatusOK    = "OK"
	StatusNotOK = "NOK"
)

// AppConfig is a read-only snapshot of the running configuration used by the
// health endpoint. FileShareStorageAccountKeyLength is -1 when the key lookup failed.
type AppConfig struct {
	BuildVersion                      string `json:"buildVersion"`
	EnvironmentName                   string `json:"environmentName"`
	LogLevel                          string `json:"logLevel"`
	KeyVaultName                      string `json:"keyVaultName"`
	SecretProvider                    string `json:"secretProvider"`
	PrivateConnectivityMethod         string `json:"privateConnectivityMethod"`
	PrimaryLocation                   string `json:"primaryLocation"`
	SecondaryLocation                 string `json:"secondaryLocation"`
	BlobStorageAccountNamePrefix      string `json:"blobStorageAccountNamePrefix"`
	FileShareStorageAccountNamePrefix string `json:"fileShareStorageAccountNamePrefix"`
	FileShareStorageAccountKeyLength  int    `json:"fileShareStorageAccountKeyLength"`
	Status                            string `json:"status"`
}

// Evaluate derives Status from the snapshot fields.
func (c *AppConfig) Evaluate() string {
	c.Status = StatusOK
	if blank(c.BlobStorageAccountNamePrefix) ||
		blank(c.FileShareStorageAccountNamePrefix) ||
		blank(c.PrimaryLocation) ||
		blank(c.SecondaryLocation) ||
		c.FileShareStorageAccountKeyLength <= 0 {
		c.Status = StatusNotOK
	}
	if c.SecretProvider == "keyvault" && blank(c.KeyVaultName) {
		c.Status = StatusNotOK
	}
	return c.Status
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
