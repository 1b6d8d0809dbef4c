// Package security validates caller supplied names before they are turned
// into storage account names and share paths.
package security

import (
	"errors"
	"strings"
)

var (
	ErrPathTraversal   = errors.New("path contains traversal sequences")
	ErrInvalidPath     = errors.New("path contains invalid characters")
	ErrAbsolutePath    = errors.New("absolute paths not allowed")
	ErrEmptyPath       = errors.New("path cannot be empty")
	ErrInvalidLocation = errors.New("location must contain only lowercase letters and digits")
	ErrInvalidAccount  = errors.New("storage account name must be 3 to 24 lowercase letters and digits")
)

// ValidateSharePath rejects file share paths that are empty, absolute, contain
// traversal segments or control characters.
func ValidateSharePath(p string) error {
	if p == "" {
		return ErrEmptyPath
	}

	if strings.ContainsRune(p, 0) {
		return ErrInvalidPath
	}

	if strings.HasPrefix(p, "/") || strings.HasPrefix(p, "\\") {
		return ErrAbsolutePath
	}

	for _, segment := range strings.FieldsFunc(p, func(r rune) bool { return r == '/' || r == '\\' }) {
		if segment == ".." {
			return ErrPathTraversal
		}
	}

	for _, char := range p {
		if char < 32 || char == 127 {
			return ErrInvalidPath
		}
	}

	return nil
}

// ValidateLocation checks that a region name can be appended to an account
// name prefix.
func ValidateLocation(location string) error {
	if location == "" {
		return ErrInvalidLocation
	}
	for _, char := range location {
		if !isLowerAlnum(char) {
			return ErrInvalidLocation
		}
	}
	return nil
}

// ValidateAccountName applies the Azure storage account naming rules.
func ValidateAccountName(name string) error {
	if len(name) < 3 || len(name) > 24 {
		return ErrInvalidAccount
	}
	for _, char := range name {
		if !isLowerAlnum(char) {
			return ErrInvalidAccount
		}
	}
	return nil
}

func isLowerAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
}
