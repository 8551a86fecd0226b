// Package ledger tracks physical on-hand stock per component and variant
// bucket. Cuttable components hold lots with a remaining length; discrete
// components hold countable batches per location. Every mutation flows
// through the allocation engine and appends to the transaction log.
package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/suryaepc/suryaepc/internal/catalog"
)

// LotConsumption records a cut taken from a lot by one transaction.
type LotConsumption struct {
	LotID uuid.UUID `json:"lot_id"`
	TxnID uuid.UUID `json:"txn_id,omitempty"`
	Ft    float64   `json:"ft"`
	At    time.Time `json:"at,omitempty"`
}

// Lot is a tracked piece of cuttable stock.
// Invariant: 0 <= RemainingFt <= OriginalFt.
type Lot struct {
	ID           uuid.UUID        `json:"id"`
	OriginalFt   float64          `json:"original_ft"`
	RemainingFt  float64          `json:"remaining_ft"`
	LocationID   uuid.UUID        `json:"location_id"`
	CreatedBy    string           `json:"created_by"`
	CreatedAt    time.Time        `json:"created_at"`
	Consumptions []LotConsumption `json:"consumptions,omitempty"`
	UsedByTxnIDs []uuid.UUID      `json:"used_by_txn_ids,omitempty"`
}

// Batch is a tracked group of discrete units at one location.
// Invariant: RemainingQty >= 0. Zero batches are pruned from active state
// but their ids stay referenced by transaction history.
type Batch struct {
	ID           uuid.UUID   `json:"id"`
	LocationID   uuid.UUID   `json:"location_id"`
	RemainingQty float64     `json:"remaining_qty"`
	CreatedBy    string      `json:"created_by"`
	CreatedAt    time.Time   `json:"created_at"`
	SourceTxnID  uuid.UUID   `json:"source_txn_id,omitempty"`
	UsedByTxnIDs []uuid.UUID `json:"used_by_txn_ids,omitempty"`
}

// StockEntry is the aggregate for one component x variant bucket. Legacy
// records may carry only a flat on-hand quantity or a per-location
// breakdown; Normalize upgrades those shapes on read.
type StockEntry struct {
	ComponentID       uuid.UUID          `json:"component_id"`
	VariantKey        string             `json:"variant_key"`
	IsCuttable        bool               `json:"is_cuttable"`
	Lots              []Lot              `json:"lots,omitempty"`
	Batches           []Batch            `json:"batches,omitempty"`
	LegacyOnHand      *float64           `json:"on_hand_qty,omitempty"`
	LocationBreakdown map[string]float64 `json:"location_breakdown,omitempty"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// OnHand derives the aggregate quantity. It is never stored truth: lots and
// batches win, the legacy breakdown only counts when neither exists.
func (e StockEntry) OnHand() float64 {
	if e.IsCuttable && len(e.Lots) > 0 {
		total := 0.0
		for _, lot := range e.Lots {
			total += lot.RemainingFt
		}
		return total
	}
	if len(e.Batches) > 0 {
		total := 0.0
		for _, b := range e.Batches {
			total += b.RemainingQty
		}
		return total
	}
	if len(e.LocationBreakdown) > 0 {
		total := 0.0
		for _, qty := range e.LocationBreakdown {
			total += qty
		}
		return total
	}
	if e.LegacyOnHand != nil {
		return *e.LegacyOnHand
	}
	return 0
}

// OnHandAt sums remaining stock at one location.
func (e StockEntry) OnHandAt(locationID uuid.UUID) float64 {
	total := 0.0
	if e.IsCuttable {
		for _, lot := range e.Lots {
			if lot.LocationID == locationID {
				total += lot.RemainingFt
			}
		}
		return total
	}
	for _, b := range e.Batches {
		if b.LocationID == locationID {
			total += b.RemainingQty
		}
	}
	return total
}

// NewStockEntry constructs an empty entry with explicit defaults.
func NewStockEntry(componentID uuid.UUID, variantKey string, isCuttable bool) StockEntry {
	if variantKey == "" {
		variantKey = catalog.DefaultVariantKey
	}
	return StockEntry{
		ComponentID: componentID,
		VariantKey:  variantKey,
		IsCuttable:  isCuttable,
		UpdatedAt:   time.Now().UTC(),
	}
}

// legacyActor tags lots/batches synthesised from pre-migration records.
const legacyActor = "migration"

// Normalize upgrades legacy stock shapes into the batch/lot model. It is a
// pure function: callers decide whether the upgraded entry is persisted.
// Application logic must only ever branch on IsCuttable, never on which
// historical shape a record arrived in.
func Normalize(e StockEntry, now time.Time) StockEntry {
	if e.VariantKey == "" {
		e.VariantKey = catalog.DefaultVariantKey
	}
	if e.IsCuttable && len(e.Lots) > 0 {
		e.LegacyOnHand = nil
		e.LocationBreakdown = nil
		return e
	}
	if !e.IsCuttable && len(e.Batches) > 0 {
		e.LegacyOnHand = nil
		e.LocationBreakdown = nil
		return e
	}

	breakdown := e.LocationBreakdown
	if len(breakdown) == 0 && e.LegacyOnHand != nil && *e.LegacyOnHand > 0 {
		breakdown = map[string]float64{uuid.Nil.String(): *e.LegacyOnHand}
	}
	for locKey, qty := range breakdown {
		if qty <= 0 {
			continue
		}
		locID, err := uuid.Parse(locKey)
		if err != nil {
			locID = uuid.Nil
		}
		if e.IsCuttable {
			e.Lots = append(e.Lots, Lot{
				ID:          uuid.New(),
				OriginalFt:  qty,
				RemainingFt: qty,
				LocationID:  locID,
				CreatedBy:   legacyActor,
				CreatedAt:   now,
			})
		} else {
			e.Batches = append(e.Batches, Batch{
				ID:           uuid.New(),
				LocationID:   locID,
				RemainingQty: qty,
				CreatedBy:    legacyActor,
				CreatedAt:    now,
			})
		}
	}
	e.LegacyOnHand = nil
	e.LocationBreakdown = nil
	return e
}

// IntegrityProblems reports violations of the ledger invariants: negative
// remaining stock and lots exceeding their original length.
func (e StockEntry) IntegrityProblems() []string {
	var problems []string
	for _, lot := range e.Lots {
		if lot.RemainingFt < 0 {
			problems = append(problems, fmt.Sprintf("lot %s has negative remaining %.3f ft", lot.ID, lot.RemainingFt))
		}
		if lot.RemainingFt > lot.OriginalFt {
			problems = append(problems, fmt.Sprintf("lot %s remaining %.3f ft exceeds original %.3f ft", lot.ID, lot.RemainingFt, lot.OriginalFt))
		}
	}
	for _, b := range e.Batches {
		if b.RemainingQty < 0 {
			problems = append(problems, fmt.Sprintf("batch %s has negative remaining %.3f", b.ID, b.RemainingQty))
		}
	}
	return problems
}

// pruneZeroBatches drops batches with nothing remaining from active state.
func pruneZeroBatches(batches []Batch) []Batch {
	out := batches[:0]
	for _, b := range batches {
		if b.RemainingQty > 0 {
			out = append(out, b)
		}
	}
	return out
}

// markUsed appends a transaction usage mark if not already present.
func markUsed(ids []uuid.UUID, txnID uuid.UUID) []uuid.UUID {
	for _, id := range ids {
		if id == txnID {
			return ids
		}
	}
	return append(ids, txnID)
}

// unmark removes a transaction usage mark.
func unmark(ids []uuid.UUID, txnID uuid.UUID) []uuid.UUID {
	out := ids[:0]
	for _, id := range ids {
		if id != txnID {
			out = append(out, id)
		}
	}
	return out
}
