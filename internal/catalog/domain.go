package catalog

import (
	"time"

	"github.com/google/uuid"
)

// DefaultVariantKey is the bucket key for components without variants.
const DefaultVariantKey = "default"

// Component represents a stockable item in the price list.
type Component struct {
	ID               uuid.UUID `json:"id"`
	Code             string    `json:"code"`
	Name             string    `json:"name"`
	Category         string    `json:"category"`
	HSNCode          string    `json:"hsn_code"`
	Unit             string    `json:"unit"`
	IsCuttable       bool      `json:"is_cuttable"`
	HasVariants      bool      `json:"has_variants"`
	StandardLengthFt float64   `json:"standard_length_ft"`
	MinIssueLengthFt float64   `json:"min_issue_length_ft"`
	Archived         bool      `json:"archived"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// VariantKeyFor returns the stock bucket key for a variant id, falling back
// to the default bucket for variant-less components.
func VariantKeyFor(variantID *uuid.UUID) string {
	if variantID == nil || *variantID == uuid.Nil {
		return DefaultVariantKey
	}
	return variantID.String()
}

// Variant belongs to exactly one component.
type Variant struct {
	ID          uuid.UUID `json:"id"`
	ComponentID uuid.UUID `json:"component_id"`
	Name        string    `json:"name"`
	WattageWp   float64   `json:"wattage_wp"`
	Brand       string    `json:"brand"`
	Model       string    `json:"model"`
	Archived    bool      `json:"archived"`
	CreatedAt   time.Time `json:"created_at"`
}

// Location is a storage location.
type Location struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Archived  bool      `json:"archived"`
	CreatedAt time.Time `json:"created_at"`
}

// FulfillmentMode drives how a BOM line's requirement is derived and tracked.
type FulfillmentMode string

const (
	// ModeFixedQty is a flat multiplier per kit.
	ModeFixedQty FulfillmentMode = "fixed_qty"
	// ModeCapacityQty derives quantity from a formula or slab table over kwp.
	ModeCapacityQty FulfillmentMode = "capacity_qty"
	// ModeRuleFulfillment targets a total wattage met by any variant mix.
	ModeRuleFulfillment FulfillmentMode = "rule_fulfillment"
	// ModeUnfixedManual defers quantity to dispatch time.
	ModeUnfixedManual FulfillmentMode = "unfixed_manual"
)

// CapacitySlab maps a kwp range to a quantity.
type CapacitySlab struct {
	MinKwp float64 `json:"min_kwp"`
	MaxKwp float64 `json:"max_kwp"`
	Qty    float64 `json:"qty"`
}

// BOMLine is a kit's per-component requirement.
type BOMLine struct {
	ComponentID     uuid.UUID       `json:"component_id"`
	Mode            FulfillmentMode `json:"mode"`
	Qty             float64         `json:"qty,omitempty"`
	Formula         string          `json:"formula,omitempty"`
	Slabs           []CapacitySlab  `json:"slabs,omitempty"`
	TargetWpFormula string          `json:"target_wp_formula,omitempty"`
	OverbuildPct    float64         `json:"overbuild_pct,omitempty"`
	Note            string          `json:"note,omitempty"`
}

// Kit groups component lines dispatched together for a system build.
type Kit struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Lines     []BOMLine `json:"lines"`
	Archived  bool      `json:"archived"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// QtyForKwp resolves a capacity slab table for a system size.
func QtyForKwp(slabs []CapacitySlab, kwp float64) (float64, bool) {
	for _, s := range slabs {
		if kwp >= s.MinKwp && (s.MaxKwp == 0 || kwp <= s.MaxKwp) {
			return s.Qty, true
		}
	}
	return 0, false
}
