package availability

import (
	"errors"
	"fmt"

	"rentdesk/internal/domain/shared/daterange"
	"rentdesk/internal/domain/units"
)

// Sentinels matched through errors.Is by the transport layer.
var (
	ErrNotFound   = errors.New("calendar: not found")
	ErrValidation = errors.New("calendar: validation failed")
	ErrConflict   = errors.New("calendar: slot unavailable")
)

type NotFoundError struct {
	Entity string
	ID     string
}

func NotFound(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ValidationError carries a reason safe to show to staff.
type ValidationError struct {
	Reason string
}

func Invalid(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string { return e.Reason }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ConflictError names the unit and range only; never guest data.
type ConflictError struct {
	UnitID units.UnitID
	Range  daterange.DateRange
	Kind   EntryKind
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("unit %s is unavailable for %s: overlaps an existing %s", e.UnitID, e.Range, e.Kind)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }
