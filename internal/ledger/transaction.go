package ledger

import (
	"time"

	"github.com/google/uuid"
)

// TxnType enumerates stock movements.
type TxnType string

const (
	// TxnIn is an inbound movement.
	TxnIn TxnType = "IN"
	// TxnOut is an outbound movement.
	TxnOut TxnType = "OUT"
	// TxnMove relocates stock between locations.
	TxnMove TxnType = "MOVE"
)

// Purpose is the inferred business reason for a transaction.
type Purpose string

const (
	// PurposeProcurement marks supplier receipts.
	PurposeProcurement Purpose = "procurement_in"
	// PurposeTransfer marks internal relocations.
	PurposeTransfer Purpose = "internal_transfer"
	// PurposeDispatch marks customer deliveries.
	PurposeDispatch Purpose = "customer_dispatch"
	// PurposeAdjustment is the fallback for manual corrections.
	PurposeAdjustment Purpose = "manual_adjustment"
)

// BatchConsumption records units drawn from one batch.
type BatchConsumption struct {
	BatchID    uuid.UUID `json:"batch_id"`
	LocationID uuid.UUID `json:"location_id"`
	Qty        float64   `json:"qty"`
}

// LocationConsumption aggregates units drawn per location.
type LocationConsumption struct {
	LocationID uuid.UUID `json:"location_id"`
	Qty        float64   `json:"qty"`
}

// Transaction is the immutable intent record for one stock movement.
// Quantity effects are never edited in place: corrections are new
// transactions or explicit void markers, with field-level edits going to
// the sidecar log.
type Transaction struct {
	ID          uuid.UUID `json:"id"`
	Type        TxnType   `json:"type"`
	ComponentID uuid.UUID `json:"component_id"`
	VariantKey  string    `json:"variant_key"`
	Qty         float64   `json:"qty"`
	IsCuttable  bool      `json:"is_cuttable"`
	Purpose     Purpose   `json:"purpose"`
	RefType     string    `json:"ref_type,omitempty"`
	RefID       string    `json:"ref_id,omitempty"`
	CustomerID  string    `json:"customer_id,omitempty"`

	LocationID     uuid.UUID `json:"location_id,omitempty"`
	FromLocationID uuid.UUID `json:"from_location_id,omitempty"`
	ToLocationID   uuid.UUID `json:"to_location_id,omitempty"`

	LotConsumptions      []LotConsumption      `json:"lot_consumptions,omitempty"`
	BatchConsumptions    []BatchConsumption    `json:"batch_consumptions,omitempty"`
	LocationConsumptions []LocationConsumption `json:"location_consumptions,omitempty"`

	CreatedBy      string    `json:"created_by"`
	CreatedByAdmin bool      `json:"created_by_admin"`
	CreatedAt      time.Time `json:"created_at"`

	Archived        bool       `json:"archived,omitempty"`
	Voided          bool       `json:"voided,omitempty"`
	ReversesTxnID   *uuid.UUID `json:"reverses_txn_id,omitempty"`
	ReversedByTxnID *uuid.UUID `json:"reversed_by_txn_id,omitempty"`
}

// Active reports whether the transaction still counts against stock state.
func (t Transaction) Active() bool {
	return !t.Voided && !t.Archived && t.ReversedByTxnID == nil
}

// refTypesProcurement are reference documents implying supplier receipts.
var refTypesProcurement = map[string]bool{
	"grn":            true,
	"purchase":       true,
	"purchase_order": true,
}

// refTypesDispatch are reference documents implying customer deliveries.
var refTypesDispatch = map[string]bool{
	"challan":          true,
	"delivery_challan": true,
	"invoice":          true,
}

// InferPurpose resolves the business purpose once at insert time: an
// explicit tag wins, then type and reference heuristics, then the manual
// adjustment default. The result is persisted so later heuristic changes
// do not rewrite history.
func InferPurpose(t Transaction) Purpose {
	if t.Purpose != "" {
		return t.Purpose
	}
	switch t.Type {
	case TxnMove:
		return PurposeTransfer
	case TxnIn:
		if refTypesProcurement[t.RefType] {
			return PurposeProcurement
		}
	case TxnOut:
		if t.CustomerID != "" || refTypesDispatch[t.RefType] {
			return PurposeDispatch
		}
	}
	return PurposeAdjustment
}

// TransactionEdit is one field-level correction in the audit sidecar.
type TransactionEdit struct {
	ID       int64     `json:"id"`
	TxnID    uuid.UUID `json:"txn_id"`
	Field    string    `json:"field"`
	OldValue string    `json:"old_value"`
	NewValue string    `json:"new_value"`
	EditedBy string    `json:"edited_by"`
	EditedAt time.Time `json:"edited_at"`
}
