package compare

import (
	"errors"
	"fmt"
)

// ErrDuplicateColumnName is matched by errors.Is when an input schema
// declares the same column name twice.
var ErrDuplicateColumnName = errors.New("duplicate column name")

// ErrInvalidPolicy is returned when a tolerance policy has a negative or
// non-finite epsilon.
var ErrInvalidPolicy = errors.New("invalid tolerance policy")

// Side identifies one of the two compared inputs.
type Side string

const (
	Left  Side = "left"
	Right Side = "right"
)

// DuplicateColumnError reports a repeated column name in one schema.
type DuplicateColumnError struct {
	Side Side
	Name string
}

func (e *DuplicateColumnError) Error() string {
	return fmt.Sprintf("%s schema: %s %q", e.Side, ErrDuplicateColumnName, e.Name)
}

// Is makes DuplicateColumnError match ErrDuplicateColumnName.
func (e *DuplicateColumnError) Is(target error) bool {
	return target == ErrDuplicateColumnName
}

// RowSourceError wraps an I/O or decoding failure raised by a row source
// mid-stream. The comparison is aborted and no report is produced.
type RowSourceError struct {
	Side    Side
	Ordinal uint64
	Err     error
}

func (e *RowSourceError) Error() string {
	return fmt.Sprintf("%s row source failed at row %d: %v", e.Side, e.Ordinal, e.Err)
}

func (e *RowSourceError) Unwrap() error {
	return e.Err
}
