package bisync

import (
	"errors"

	perrors "github.com/pkg/errors"
)

// Severity classifies how the entry point should react to a failure.
type Severity int

const (
	// SevInfo is a per-file or informational condition with no flow
	// effect; nothing in this package returns an error at this level,
	// it exists so callers can classify logged-but-non-fatal conditions.
	SevInfo Severity = iota
	// SevAbort means the run is rerunnable: snapshots stay intact and
	// the operator addresses the cause before trying again.
	SevAbort
	// SevCritical means the on-disk state can no longer be trusted
	// against the snapshots; the caller must invalidate them.
	SevCritical
)

type severityError struct {
	severity Severity
	err      error
}

func (e *severityError) Error() string { return e.err.Error() }
func (e *severityError) Cause() error  { return e.err }
func (e *severityError) Unwrap() error { return e.err }

func wrapOrNew(err error, msg string) error {
	if err == nil {
		return perrors.New(msg)
	}
	return perrors.Wrap(err, msg)
}

// Abort wraps err as a rerunnable failure. err may be nil, in which case
// msg alone describes the condition (e.g. a guard tripping with no
// underlying I/O error).
func Abort(err error, msg string) error {
	return &severityError{severity: SevAbort, err: wrapOrNew(err, msg)}
}

// Critical wraps err as a failure that requires first-sync to recover
// from. err may be nil, in which case msg alone describes the condition.
func Critical(err error, msg string) error {
	return &severityError{severity: SevCritical, err: wrapOrNew(err, msg)}
}

// SeverityOf inspects err (unwrapping github.com/pkg/errors causes) to
// find its Severity; a plain error not produced by Abort/Critical is
// treated as SevCritical, the conservative default. There is no
// "unknown failure, carry on" case.
func SeverityOf(err error) Severity {
	if err == nil {
		return SevInfo
	}
	var se *severityError
	if errors.As(err, &se) {
		return se.severity
	}
	return SevCritical
}
