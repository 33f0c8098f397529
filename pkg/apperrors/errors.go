package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrInvalidRole      = errors.New("invalid role")
	ErrReleaseNotFound  = fmt.Errorf("release %w", ErrNotFound)
	ErrNodeNotFound     = fmt.Errorf("node %w", ErrNotFound)
	ErrParentNotFound   = fmt.Errorf("parent node %w", ErrNotFound)
	ErrBatchNotFound    = fmt.Errorf("batch %w", ErrNotFound)
	ErrLockNotFound     = fmt.Errorf("lock %w", ErrNotFound)
	ErrUserNotFound     = fmt.Errorf("user %w", ErrNotFound)
	ErrDuplicateVersion = fmt.Errorf("version already exists: %w", ErrConflict)
	ErrDuplicateNode    = fmt.Errorf("node uid already exists in release: %w", ErrConflict)
	ErrLockExpired      = fmt.Errorf("lock expired: %w", ErrConflict)
	ErrNotLockOwner     = errors.New("not lock owner")
	ErrNoCurrentBatch   = fmt.Errorf("no current batch for source: %w", ErrNotFound)
	ErrNoLinksToRebase  = fmt.Errorf("release has no links for source: %w", ErrNotFound)
)

// ValidationError marks caller input that is structurally invalid for the
// operation regardless of current state.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Validation builds a ValidationError from a format string.
func Validation(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ReleaseNotEditableError is returned when a mutation targets a release that
// is not in DRAFT status. Carries the current status so callers can act.
type ReleaseNotEditableError struct {
	Version string
	Status  string
}

func (e *ReleaseNotEditableError) Error() string {
	return fmt.Sprintf("release %s is %s; only DRAFT is editable", e.Version, e.Status)
}

func (e *ReleaseNotEditableError) Is(target error) bool { return target == ErrConflict }

// LockConflictError is returned when a resource is locked by another user.
type LockConflictError struct {
	HolderID   string
	HolderName string
}

func (e *LockConflictError) Error() string {
	switch {
	case e.HolderName != "":
		return fmt.Sprintf("locked by %s", e.HolderName)
	case e.HolderID != "":
		return fmt.Sprintf("locked by %s", e.HolderID)
	default:
		return "resource is not locked by caller"
	}
}

func (e *LockConflictError) Is(target error) bool { return target == ErrConflict }
