package repositories

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Sentinel errors returned by repositories. Handlers classify errors
// with errors.Is against these values, so repository implementations
// must wrap them (fmt.Errorf with %w) rather than invent new strings.
var (
	// ErrNotFound is returned when no row matches the given barcode.
	ErrNotFound = errors.New("product not found")

	// ErrDuplicateBarcode is returned by Create when the barcode is
	// already taken. The existing row is left untouched.
	ErrDuplicateBarcode = errors.New("barcode already exists")

	// ErrInvalidInput is returned when an argument is unusable, e.g.
	// an empty barcode or an adjustment rejected by the stock policy.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnavailable marks transient storage failures. Callers may
	// retry reads safely; mutations only with idempotency care.
	ErrUnavailable = errors.New("storage unavailable")

	// ErrAccountNotFound is returned when no staff account matches.
	ErrAccountNotFound = errors.New("account not found")

	// ErrDuplicateAccount is returned when a username or email is
	// already registered.
	ErrDuplicateAccount = errors.New("account already exists")
)

// IsTransient reports whether err is a retryable storage failure
// (timeout, cancellation, or an explicitly transient error) rather
// than a definitive outcome like NotFound or Conflict.
func IsTransient(err error) bool {
	return errors.Is(err, ErrUnavailable) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}

// classifyStorageError maps connection-level failures (dead pool
// connection, closed handle, unreachable server) onto ErrUnavailable
// so they surface as retryable rather than as internal errors. Any
// other error passes through unchanged.
func classifyStorageError(err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.As(err, &netErr) ||
		strings.Contains(err.Error(), "database is closed") ||
		strings.Contains(err.Error(), "connection refused") {
		return fmt.Errorf("%v: %w", err, ErrUnavailable)
	}
	return err
}
