// Package models contains the value types returned by the copy and listing operations.
package models

import (
	"fmt"
	"strings"
)

// CopyStatus is the uniform copy state reported to callers.
type CopyStatus string

const (
	CopyStatusPending CopyStatus = "pending"
	CopyStatusSuccess CopyStatus = "success"
	CopyStatusAborted CopyStatus = "aborted"
	CopyStatusFailed  CopyStatus = "failed"
)

// TranslateCopyStatus maps the destination's native copy status to a CopyStatus.
// Unknown values are kept for display as "unhandled status (<value>)".
func TranslateCopyStatus(native string) CopyStatus {
	switch strings.ToLower(strings.TrimSpace(native)) {
	case "pending":
		return CopyStatusPending
	case "success":
		return CopyStatusSuccess
	case "aborted":
		return CopyStatusAborted
	case "failed":
		return CopyStatusFailed
	default:
		return CopyStatus(fmt.Sprintf("unhandled status (%s)", native))
	}
}

// IsTerminal reports whether no further state change is expected.
func (s CopyStatus) IsTerminal() bool {
	return s != CopyStatusPending
}

// CopyResult describes the outcome of a single blob to file share copy.
type CopyResult struct {
	SourceLocation                string     `json:"sourceLocation"`
	SourceStorageAccountName      string     `json:"sourceStorageAccountName"`
	DestinationLocation           string     `json:"destinationLocation"`
	DestinationStorageAccountName string     `json:"destinationStorageAccountName"`
	CopyStatus                    CopyStatus `json:"copyStatus"`
	StatusCode                    *int       `json:"statusCode"`
	Message                       *string    `json:"message"`
}

// NewCopyResult returns a result in its default Failed state.
func NewCopyResult(sourceLocation, destinationLocation string) *CopyResult {
	return &CopyResult{
		SourceLocation:      sourceLocation,
		DestinationLocation: destinationLocation,
		CopyStatus:          CopyStatusFailed,
	}
}

// SetMessage sets the human readable message.
func (r *CopyResult) SetMessage(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	r.Message = &msg
}

// SetStatusCode records the HTTP status code associated with the result.
func (r *CopyResult) SetStatusCode(code int) {
	r.StatusCode = &code
}

// MessageOrEmpty returns the message or "" when unset.
func (r *CopyResult) MessageOrEmpty() string {
	if r.Message == nil {
		return ""
	}
	return *r.Message
}

// BlobContainer lists the blobs found in one container.
type BlobContainer struct {
	Name  string   `json:"blobContainerName"`
	Blobs []string `json:"blobs"`
}

// FileShare lists the file paths found in one share.
type FileShare struct {
	Name  string   `json:"fileShareName"`
	Files []string `json:"files"`
}

// StorageAccountContent is the listing of one storage account. Either list may be
// nil depending on which enumeration produced it.
type StorageAccountContent struct {
	StorageAccountName string          `json:"storageAccountName"`
	BlobContainers     []BlobContainer `json:"blobContainers,omitempty"`
	FileShares         []FileShare     `json:"fileShares,omitempty"`
}
