package storage

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
)

// ProviderError describes a failed call to a storage service.
type ProviderError struct {
	Op         string
	StatusCode int
	ErrorCode  string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	if e.ErrorCode != "" {
		return fmt.Sprintf("%s: status %d (%s): %v", e.Op, e.StatusCode, e.ErrorCode, e.Err)
	}
	return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NotFound reports whether the remote resource does not exist.
func (e *ProviderError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// wrapError converts err into a ProviderError, carrying the HTTP status and
// service error code when err is an Azure response error.
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}

	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return err
	}

	pe := &ProviderError{Op: op, Err: err}
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		pe.StatusCode = respErr.StatusCode
		pe.ErrorCode = respErr.ErrorCode
	}
	return pe
}

// StatusCode returns the HTTP status carried by err, or 0 when there is none.
func StatusCode(err error) int {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.StatusCode
	}
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return respErr.StatusCode
	}
	return 0
}
