package feedback

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("feedback entry not found")
	ErrAlreadySynced = errors.New("feedback entry already synced")
)

// StorageError is a local persistence failure. It is never retried: it
// signals local corruption, not network state.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// TransportError is a network-level failure (unreachable host, timeout).
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RemoteRejectionError is a non-2xx reply from the server. Transient server
// errors are indistinguishable from permanent ones at this layer, so these
// are retried up to the attempt cap.
type RemoteRejectionError struct {
	StatusCode int
	Message    string
}

func (e *RemoteRejectionError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server rejected request: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("server rejected request: status %d", e.StatusCode)
}

// DuplicateLookupError is a failed duplicate check. The resolver fails open
// on it, so it never blocks a submission.
type DuplicateLookupError struct {
	Err error
}

func (e *DuplicateLookupError) Error() string {
	return fmt.Sprintf("duplicate lookup failed: %v", e.Err)
}

func (e *DuplicateLookupError) Unwrap() error { return e.Err }

// IsRetryable reports whether the sync engine may schedule another attempt
// after this error. Storage faults are programming-level and excluded.
func IsRetryable(err error) bool {
	var storageErr *StorageError
	if errors.As(err, &storageErr) {
		return false
	}
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return true
	}
	var rejectionErr *RemoteRejectionError
	if errors.As(err, &rejectionErr) {
		return true
	}
	return false
}
