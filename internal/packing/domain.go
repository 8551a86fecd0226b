// Package packing tracks fulfillment of a sales document's bill of
// materials across multiple dispatch trips. One packing list exists per
// document; each dispatch appends to its log and advances per-line
// counters until every line is satisfied.
package packing

import (
	"time"

	"github.com/google/uuid"

	"github.com/suryaepc/suryaepc/internal/catalog"
)

// Status of a packing list as a whole.
type Status string

const (
	StatusActive   Status = "active"
	StatusComplete Status = "complete"
)

// RequiredItem is one line of the packing list. Which counters matter
// depends on the line's mode, frozen at creation time:
// fixed_qty and capacity_qty track quantity (or length for cuttables),
// rule_fulfillment tracks dispatched wattage against a target, and
// unfixed_manual only logs what was taken.
type RequiredItem struct {
	LineID        uuid.UUID               `json:"line_id"`
	ComponentID   uuid.UUID               `json:"component_id"`
	ComponentName string                  `json:"component_name"`
	VariantID     *uuid.UUID              `json:"variant_id,omitempty"`
	Mode          catalog.FulfillmentMode `json:"mode"`
	IsCuttable    bool                    `json:"is_cuttable"`

	RequiredQty   float64 `json:"required_qty,omitempty"`
	DispatchedQty float64 `json:"dispatched_qty,omitempty"`
	RequiredFt    float64 `json:"required_ft,omitempty"`
	DispatchedFt  float64 `json:"dispatched_ft,omitempty"`

	TargetWp           float64            `json:"target_wp,omitempty"`
	DispatchedWp       float64            `json:"dispatched_wp,omitempty"`
	OverbuildPct       float64            `json:"overbuild_pct,omitempty"`
	VariantWpBreakdown map[string]float64 `json:"variant_wp_breakdown,omitempty"`
	Fulfilled          bool               `json:"fulfilled,omitempty"`

	ManualNote string `json:"manual_note,omitempty"`
}

// PendingQty is the remaining quantity (or length) on a quantity-tracked
// line. Rule and manual lines always report zero.
func (it RequiredItem) PendingQty() float64 {
	switch it.Mode {
	case catalog.ModeFixedQty, catalog.ModeCapacityQty:
		var pending float64
		if it.IsCuttable {
			pending = it.RequiredFt - it.DispatchedFt
		} else {
			pending = it.RequiredQty - it.DispatchedQty
		}
		if pending < 0 {
			return 0
		}
		return pending
	default:
		return 0
	}
}

// Satisfied reports whether the line needs no further dispatches.
func (it RequiredItem) Satisfied() bool {
	switch it.Mode {
	case catalog.ModeFixedQty, catalog.ModeCapacityQty:
		return it.PendingQty() <= 0
	case catalog.ModeRuleFulfillment:
		return it.Fulfilled
	default:
		// Manual lines never gate completion.
		return true
	}
}

// DispatchItem is one row of a dispatch call, already resolved to
// quantities by the caller.
type DispatchItem struct {
	LineID      uuid.UUID  `json:"line_id,omitempty"`
	ComponentID uuid.UUID  `json:"component_id,omitempty"`
	VariantID   *uuid.UUID `json:"variant_id,omitempty"`
	Qty         float64    `json:"qty,omitempty"`
	Ft          float64    `json:"ft,omitempty"`
	Wp          float64    `json:"wp,omitempty"`
	ManualNote  string     `json:"manual_note,omitempty"`
}

// DispatchLogEntry records one trip against the list.
type DispatchLogEntry struct {
	ChallanID string         `json:"challan_id"`
	At        time.Time      `json:"at"`
	Items     []DispatchItem `json:"items"`
}

// PackingList is the per-document fulfillment aggregate.
type PackingList struct {
	ID            uuid.UUID          `json:"id"`
	DocumentID    string             `json:"document_id"`
	SystemKwp     float64            `json:"system_kwp"`
	RequiredItems []RequiredItem     `json:"required_items"`
	DispatchLog   []DispatchLogEntry `json:"dispatch_log,omitempty"`
	Status        Status             `json:"status"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// recomputeStatus marks the list complete when every line is satisfied.
func (l *PackingList) recomputeStatus() {
	for _, it := range l.RequiredItems {
		if !it.Satisfied() {
			l.Status = StatusActive
			return
		}
	}
	l.Status = StatusComplete
}

// Document is the structured input from a sales document.
type Document struct {
	ID                string
	SystemCapacityKwp float64
	Lines             []DocumentLine
}

// DocumentLine is one structured line of a sales document.
type DocumentLine struct {
	Type      LineType
	RefID     uuid.UUID
	Qty       float64
	Unit      string
	VariantID *uuid.UUID
}

// LineType distinguishes kit references from direct component lines.
type LineType string

const (
	LineKit       LineType = "kit"
	LineComponent LineType = "component"
)
