package errors

import (
	stderrors "errors"
	"fmt"

	"go.uber.org/multierr"
)

// ErrNotFound is matched by every NotFoundError via errors.Is
var ErrNotFound = stderrors.New("not found")

// IOError represents an unreadable file or invalid path
type IOError struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Cause error  `json:"cause,omitempty"`
}

func (e *IOError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Cause)
	}
	return fmt.Sprintf("%s %s", e.Op, e.Path)
}

func (e *IOError) Unwrap() error {
	return e.Cause
}

// ResolveError represents a failure inside the symbol resolver
type ResolveError struct {
	Path  string `json:"path"`
	Cause error  `json:"cause,omitempty"`
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("resolve %s: %v", e.Path, e.Cause)
}

func (e *ResolveError) Unwrap() error {
	return e.Cause
}

// NotFoundError means the position is not on an identifier or the name is undeclared
type NotFoundError struct {
	Name   string `json:"name,omitempty"`
	Reason string `json:"reason"`
}

func (e *NotFoundError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s: %s", e.Name, e.Reason)
	}
	return e.Reason
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ScanError aggregates the per-file failures skipped during a multi-file scan
type ScanError struct {
	err error
}

func (e *ScanError) Error() string {
	files := multierr.Errors(e.err)
	if len(files) == 1 {
		return fmt.Sprintf("scan skipped 1 file: %v", files[0])
	}
	return fmt.Sprintf("scan skipped %d files: %v", len(files), e.err)
}

func (e *ScanError) Unwrap() []error {
	return multierr.Errors(e.err)
}

// Skipped returns every IOError collected by the scan
func (e *ScanError) Skipped() []*IOError {
	var out []*IOError
	for _, err := range multierr.Errors(e.err) {
		var ioErr *IOError
		if stderrors.As(err, &ioErr) {
			out = append(out, ioErr)
		}
	}
	return out
}

// Len reports how many files were skipped
func (e *ScanError) Len() int {
	return len(multierr.Errors(e.err))
}

// Error constructors

// NewIOError creates a new IOError for the given operation and path
func NewIOError(op, path string, cause error) *IOError {
	return &IOError{Op: op, Path: path, Cause: cause}
}

// NewResolveError creates a new ResolveError for a file
func NewResolveError(path string, cause error) *ResolveError {
	return &ResolveError{Path: path, Cause: cause}
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(name, reason string) *NotFoundError {
	return &NotFoundError{Name: name, Reason: reason}
}

// ScanCollector accumulates skipped files during a scan. The zero value is ready to use.
type ScanCollector struct {
	err error
}

// Add records one skipped file; nil errors are ignored
func (c *ScanCollector) Add(err error) {
	c.err = multierr.Append(c.err, err)
}

// Err returns a *ScanError when anything was skipped, nil otherwise
func (c *ScanCollector) Err() error {
	if c.err == nil {
		return nil
	}
	return &ScanError{err: c.err}
}

// Error classification functions

// IsNotFound checks if the error is a NotFoundError
func IsNotFound(err error) bool {
	return stderrors.Is(err, ErrNotFound)
}

// IsIOError checks if the error is or wraps an IOError
func IsIOError(err error) bool {
	var target *IOError
	return stderrors.As(err, &target)
}

// IsResolveError checks if the error is or wraps a ResolveError
func IsResolveError(err error) bool {
	var target *ResolveError
	return stderrors.As(err, &target)
}

// AsScanError extracts a ScanError from err
func AsScanError(err error) (*ScanError, bool) {
	var target *ScanError
	if stderrors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// GetErrorCategory returns a category string for error classification
func GetErrorCategory(err error) string {
	switch {
	case err == nil:
		return "none"
	case IsNotFound(err):
		return "not_found"
	case IsResolveError(err):
		return "resolve"
	default:
		if _, ok := AsScanError(err); ok {
			return "scan"
		}
		if IsIOError(err) {
			return "io"
		}
		return "general"
	}
}
