package snap

import (
	"errors"
	"fmt"
)

// Failure kinds. Every error returned by ValidateNpmSnap matches exactly one
// of these with errors.Is (ErrLocalizationCoverage and ErrLocalizationOrphan
// also match ErrLocalization).
var (
	ErrMissingArtifact      = errors.New("missing artifact")
	ErrSchemaValidation     = errors.New("schema validation failed")
	ErrCrossReference       = errors.New("cross-reference mismatch")
	ErrIconValidation       = errors.New("invalid icon")
	ErrLocalization         = errors.New("invalid localization")
	ErrLocalizationCoverage = fmt.Errorf("%w: missing translation", ErrLocalization)
	ErrLocalizationOrphan   = fmt.Errorf("%w: orphaned translation", ErrLocalization)
	ErrCancelled            = errors.New("validation cancelled")
)

// Reason narrows a cross-reference failure down to the field that disagrees.
type Reason string

const (
	ReasonNone                Reason = ""
	ReasonNameMismatch        Reason = "name-mismatch"
	ReasonVersionMismatch     Reason = "version-mismatch"
	ReasonRepositoryMismatch  Reason = "repository-mismatch"
	ReasonShasumMismatch      Reason = "shasum-mismatch"
	ReasonPathMismatch        Reason = "path-mismatch"
	ReasonUndeclaredFile      Reason = "undeclared-file"
	ReasonMissingDeclaredFile Reason = "missing-declared-file"
)

// Error is a rejected validation run. Msg is the display text; Kind and
// Reason are the machine-readable classification and survive Prefix.
type Error struct {
	Kind     error
	Stage    Stage
	Reason   Reason
	Field    string
	Expected string
	Actual   string
	Msg      string
	Err      error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return e.Msg
}

func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Fixable reports whether the failure can be repaired by rewriting the
// manifest from the package's own contents.
func (e *Error) Fixable() bool {
	switch e.Reason {
	case ReasonNameMismatch, ReasonVersionMismatch, ReasonRepositoryMismatch, ReasonShasumMismatch:
		return true
	}
	return false
}

// Prefix returns err with errorPrefix prepended to its message. The kind,
// stage and cause of an *Error are kept, so callers can still classify the
// failure after wrapping.
func Prefix(err error, errorPrefix string) error {
	if err == nil {
		return nil
	}

	if se, ok := err.(*Error); ok {
		out := *se
		out.Msg = errorPrefix + se.Msg
		return &out
	}

	if errorPrefix == "" {
		return err
	}
	return fmt.Errorf("%s%w", errorPrefix, err)
}

func missingFile(stage Stage, name string) *Error {
	return &Error{
		Kind:  ErrMissingArtifact,
		Stage: stage,
		Field: name,
		Msg:   fmt.Sprintf("Missing file %q.", name),
	}
}

func mismatch(reason Reason, field, expected, actual, format string, args ...any) *Error {
	return &Error{
		Kind:     ErrCrossReference,
		Stage:    StageCrossReference,
		Reason:   reason,
		Field:    field,
		Expected: expected,
		Actual:   actual,
		Msg:      fmt.Sprintf(format, args...),
	}
}

func cancelled(stage Stage, cause error) *Error {
	return &Error{
		Kind:  ErrCancelled,
		Stage: stage,
		Msg:   fmt.Sprintf("Validation cancelled: %v.", cause),
		Err:   cause,
	}
}
