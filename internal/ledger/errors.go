package ledger

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrEntryNotFound indicates a missing stock entry aggregate.
var ErrEntryNotFound = errors.New("ledger: stock entry not found")

// ErrTxnNotFound indicates a missing transaction record.
var ErrTxnNotFound = errors.New("ledger: transaction not found")

// InsufficientStockError reports a request that exceeds total remaining
// stock. The request is never partially fulfilled.
type InsufficientStockError struct {
	ComponentID uuid.UUID
	VariantKey  string
	Requested   float64
	Available   float64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("ledger: insufficient stock for %s/%s: requested %.3f, available %.3f",
		e.ComponentID, e.VariantKey, e.Requested, e.Available)
}

// InsufficientStockAtLocationError reports enough stock globally but not at
// the requested location. Consumption does not spill to other locations when
// a location constraint is given.
type InsufficientStockAtLocationError struct {
	ComponentID uuid.UUID
	VariantKey  string
	LocationID  uuid.UUID
	Requested   float64
	Available   float64
}

func (e *InsufficientStockAtLocationError) Error() string {
	return fmt.Sprintf("ledger: insufficient stock for %s/%s at location %s: requested %.3f, available %.3f",
		e.ComponentID, e.VariantKey, e.LocationID, e.Requested, e.Available)
}
