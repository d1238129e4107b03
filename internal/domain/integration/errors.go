package integration

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// ---------------------------------------------------------------------------
// Error kinds
// ---------------------------------------------------------------------------

var (
	// ErrSync is the kind of every expected synchronization error. The order is
	// rolled back and the run continues.
	ErrSync = errors.New("integration: synchronization error")
	// ErrFatal is the kind of errors that abort the whole run
	ErrFatal = errors.New("integration: fatal error")
)

// SyncError is an expected failure while processing one record. Values holds
// the computed amounts that led to the failure.
type SyncError struct {
	OrderID string
	Msg     string
	Values  map[string]string
	Err     error
}

// NewSyncError creates a sync error for an order
func NewSyncError(orderID, msg string) *SyncError {
	return &SyncError{OrderID: orderID, Msg: msg}
}

// SyncErrorf creates a sync error with a formatted message
func SyncErrorf(orderID, format string, args ...any) *SyncError {
	return &SyncError{OrderID: orderID, Msg: fmt.Sprintf(format, args...)}
}

// With records a computed value
func (e *SyncError) With(key string, value any) *SyncError {
	if e.Values == nil {
		e.Values = make(map[string]string)
	}
	e.Values[key] = fmt.Sprint(value)
	return e
}

// Wrap attaches the underlying cause
func (e *SyncError) Wrap(err error) *SyncError {
	e.Err = err
	return e
}

// Error implements the error interface
func (e *SyncError) Error() string {
	var sb strings.Builder
	if e.OrderID != "" {
		sb.WriteString("order ")
		sb.WriteString(e.OrderID)
		sb.WriteString(": ")
	}
	sb.WriteString(e.Msg)
	if len(e.Values) > 0 {
		sb.WriteString(" (")
		for i, k := range slices.Sorted(maps.Keys(e.Values)) {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(k)
			sb.WriteString("=")
			sb.WriteString(e.Values[k])
		}
		sb.WriteString(")")
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

// Is reports ErrSync as the error kind
func (e *SyncError) Is(target error) bool {
	return target == ErrSync
}

// Unwrap returns the underlying cause
func (e *SyncError) Unwrap() error {
	return e.Err
}

// FatalError aborts a run: missing accounts, bad configuration or a store outage
type FatalError struct {
	Msg string
	Err error
}

// NewFatalError creates a fatal error
func NewFatalError(msg string, err error) *FatalError {
	return &FatalError{Msg: msg, Err: err}
}

// Error implements the error interface
func (e *FatalError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

// Is reports ErrFatal as the error kind
func (e *FatalError) Is(target error) bool {
	return target == ErrFatal
}

// Unwrap returns the underlying cause
func (e *FatalError) Unwrap() error {
	return e.Err
}

// IsSyncError returns true if err is an expected synchronization error
func IsSyncError(err error) bool {
	return errors.Is(err, ErrSync)
}

// IsFatal returns true if err must abort the run
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal)
}
