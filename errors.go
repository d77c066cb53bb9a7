package slapdtest

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for the harness's failure classes. These provide a
// stable API for error classification with errors.Is.
var (
	// Lifecycle errors
	ErrConfigInvalid     = errors.New("slapdtest: configuration test failed")
	ErrExitedBeforeReady = errors.New("slapdtest: slapd exited before becoming ready")
	ErrStartupTimeout    = errors.New("slapdtest: timed out waiting for slapd to become ready")
	ErrServerClosed      = errors.New("slapdtest: server has been closed")

	// Tool invocation errors
	ErrOperationFailed = errors.New("slapdtest: ldap tool operation failed")

	// LDIF decode errors
	ErrExpectedVersion = errors.New("slapdtest: expected 'version: 1' marker")
	ErrMissingDN       = errors.New("slapdtest: first attribute of record is not dn")
	ErrBadLine         = errors.New("slapdtest: bad LDIF line")
)

// HarnessError is an enhanced error with context for harness operations.
// It wraps underlying errors while recording which operation failed and
// against which server instance.
type HarnessError struct {
	// Op is the operation name (e.g., "Start", "ldapadd")
	Op string
	// URI is the LDAP URI of the instance involved
	URI string
	// DN is the distinguished name involved in the operation (if applicable)
	DN string
	// Err is the underlying error
	Err error
	// Timestamp indicates when the error occurred
	Timestamp time.Time
}

// Error implements the error interface, providing a formatted error message.
func (e *HarnessError) Error() string {
	if e.DN != "" {
		return fmt.Sprintf("slapdtest %s failed for DN %q on %q: %v", e.Op, e.DN, e.URI, e.Err)
	}
	return fmt.Sprintf("slapdtest %s failed on %q: %v", e.Op, e.URI, e.Err)
}

// Unwrap implements the Go 1.13+ error unwrapping interface.
func (e *HarnessError) Unwrap() error {
	return e.Err
}

// Is implements the Go 1.13+ error comparison interface for compatibility
// with errors.Is.
func (e *HarnessError) Is(target error) bool {
	if he, ok := target.(*HarnessError); ok {
		return e.Op == he.Op
	}
	return errors.Is(e.Err, target)
}

// WithDN adds a distinguished name to the error context.
func (e *HarnessError) WithDN(dn string) *HarnessError {
	e.DN = dn
	return e
}

// wrapHarnessError wraps an error with operation context. Errors that are
// already HarnessError instances pass through unchanged so the original
// operation name is preserved.
func wrapHarnessError(op, uri string, err error) error {
	if err == nil {
		return nil
	}
	var he *HarnessError
	if errors.As(err, &he) {
		return err
	}
	return &HarnessError{
		Op:        op,
		URI:       uri,
		Err:       err,
		Timestamp: time.Now(),
	}
}

// operationError classifies a non-zero tool exit as ErrOperationFailed,
// tagged with the tool name.
func operationError(op, uri string, err error) error {
	return &HarnessError{
		Op:        op,
		URI:       uri,
		Err:       fmt.Errorf("%w: %v", ErrOperationFailed, err),
		Timestamp: time.Now(),
	}
}
