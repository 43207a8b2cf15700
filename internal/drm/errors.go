package drm

import (
	"errors"
	"fmt"
)

var (
	// ErrFormat indicates a malformed encryption descriptor or encrypted-entry
	// header (bad lengths, truncated data).
	ErrFormat = errors.New("drm: malformed encrypted data")

	// ErrIntegrity indicates the HMAC over the ciphertext did not match.
	// The input is treated as corrupted or tampered and is never decrypted.
	ErrIntegrity = errors.New("drm: integrity check failed")

	// ErrKeyFormat indicates the license key could not be base64-decoded or
	// is shorter than the 32 bytes AES-256 requires.
	ErrKeyFormat = errors.New("drm: invalid license key")
)

// EntryError reports a decryption failure for a specific archive entry.
// The whole container rewrite is aborted when one is returned.
type EntryError struct {
	Entry string
	Err   error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("drm: decrypt entry %s: %v", e.Entry, e.Err)
}

func (e *EntryError) Unwrap() error { return e.Err }
