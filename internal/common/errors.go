package common

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Error taxonomy shared by every stage. Classify with errors.Is.
var (
	// ErrTransientIO marks network and timeout failures that are retried and then deferred
	ErrTransientIO = errors.New("transient I/O failure")

	// ErrDataIntegrity marks a filing whose immutable fields changed under the same ID
	ErrDataIntegrity = errors.New("data integrity violation")

	// ErrMalformedResponse marks a collaborator reply that could not be parsed or validated
	ErrMalformedResponse = errors.New("malformed response")

	// ErrConfiguration marks missing or invalid configuration; fatal at startup
	ErrConfiguration = errors.New("configuration error")

	// ErrNotFound is returned by storages when a key does not exist
	ErrNotFound = errors.New("not found")
)

// DataIntegrityError describes a conflicting write for an existing filing ID.
type DataIntegrityError struct {
	FilingID string
	Field    string
	Stored   string
	Incoming string
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("filing %s: immutable field %s changed (stored %q, incoming %q)",
		e.FilingID, e.Field, e.Stored, e.Incoming)
}

func (e *DataIntegrityError) Unwrap() error {
	return ErrDataIntegrity
}

// ConfigurationError describes a single invalid configuration value.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

// HTTPStatusError is returned by HTTP collaborators for unexpected status codes.
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// Unwrap reports ErrTransientIO for statuses worth retrying (408, 429, 5xx).
func (e *HTTPStatusError) Unwrap() error {
	if IsRetryableStatus(e.StatusCode) {
		return ErrTransientIO
	}
	return nil
}

// IsRetryableStatus reports whether an HTTP status code is worth retrying.
func IsRetryableStatus(code int) bool {
	return code == 408 || code == 429 || code >= 500
}

// Transient wraps err so that errors.Is(err, ErrTransientIO) holds.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTransientIO) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTransientIO, err)
}

// Malformed wraps a parse failure description as ErrMalformedResponse.
func Malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformedResponse, fmt.Sprintf(format, args...))
}

// IsTransient reports whether err should be retried later rather than treated as final.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransientIO) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	var opErr *net.OpError
	return errors.As(err, &opErr)
}
