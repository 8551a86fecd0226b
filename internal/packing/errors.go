package packing

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrNoStructuredItems means the document has no expandable lines.
	ErrNoStructuredItems = errors.New("packing: document has no structured items")
	// ErrListNotFound means no packing list exists for the given id.
	ErrListNotFound = errors.New("packing: list not found")
	// errDuplicateDocument signals a concurrent create for the same document.
	errDuplicateDocument = errors.New("packing: duplicate document")
)

// InvalidFormulaError names the component whose capacity or rule
// expression failed validation, so the operator knows what to fix.
type InvalidFormulaError struct {
	ComponentID   uuid.UUID
	ComponentName string
	Expr          string
	Err           error
}

func (e *InvalidFormulaError) Error() string {
	return fmt.Sprintf("packing: invalid formula %q for component %s (%s): %v",
		e.Expr, e.ComponentName, e.ComponentID, e.Err)
}

func (e *InvalidFormulaError) Unwrap() error { return e.Err }

// UnresolvedLineError reports a dispatch row that matched no required line.
type UnresolvedLineError struct {
	LineID      uuid.UUID
	ComponentID uuid.UUID
}

func (e *UnresolvedLineError) Error() string {
	return fmt.Sprintf("packing: dispatch row resolves to no line (line %s, component %s)", e.LineID, e.ComponentID)
}
