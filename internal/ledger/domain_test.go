package ledger

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestNormalizeUpgradesFlatOnHand(t *testing.T) {
	qty := 12.0
	entry := StockEntry{ComponentID: uuid.New(), LegacyOnHand: &qty}

	got := Normalize(entry, time.Now().UTC())
	require.Equal(t, "default", got.VariantKey)
	require.Len(t, got.Batches, 1)
	require.InDelta(t, 12.0, got.Batches[0].RemainingQty, 1e-9)
	require.Nil(t, got.LegacyOnHand)
	require.InDelta(t, 12.0, got.OnHand(), 1e-9)
}

func TestNormalizeUpgradesLocationBreakdown(t *testing.T) {
	locA := uuid.New()
	locB := uuid.New()
	entry := StockEntry{
		ComponentID: uuid.New(),
		VariantKey:  "default",
		LocationBreakdown: map[string]float64{
			locA.String(): 4,
			locB.String(): 6,
		},
	}

	got := Normalize(entry, time.Now().UTC())
	require.Len(t, got.Batches, 2)
	require.Nil(t, got.LocationBreakdown)
	require.InDelta(t, 10.0, got.OnHand(), 1e-9)
	require.InDelta(t, 4.0, got.OnHandAt(locA), 1e-9)
	require.InDelta(t, 6.0, got.OnHandAt(locB), 1e-9)
}

func TestNormalizeUpgradesCuttableToLots(t *testing.T) {
	loc := uuid.New()
	entry := StockEntry{
		ComponentID:       uuid.New(),
		VariantKey:        "default",
		IsCuttable:        true,
		LocationBreakdown: map[string]float64{loc.String(): 300},
	}

	got := Normalize(entry, time.Now().UTC())
	require.Len(t, got.Lots, 1)
	require.InDelta(t, 300.0, got.Lots[0].RemainingFt, 1e-9)
	require.InDelta(t, 300.0, got.Lots[0].OriginalFt, 1e-9)
	require.Equal(t, loc, got.Lots[0].LocationID)
}

func TestNormalizeLeavesModernShapeAlone(t *testing.T) {
	stale := 99.0
	batch := Batch{ID: uuid.New(), LocationID: uuid.New(), RemainingQty: 7, CreatedAt: time.Now()}
	entry := StockEntry{
		ComponentID:  uuid.New(),
		VariantKey:   "default",
		Batches:      []Batch{batch},
		LegacyOnHand: &stale,
	}

	got := Normalize(entry, time.Now().UTC())
	require.Len(t, got.Batches, 1)
	require.Equal(t, batch.ID, got.Batches[0].ID)
	// Batches win over any stale legacy figure.
	require.Nil(t, got.LegacyOnHand)
	require.InDelta(t, 7.0, got.OnHand(), 1e-9)
}

func TestOnHandFallsBackToBreakdownOnRead(t *testing.T) {
	entry := StockEntry{
		ComponentID:       uuid.New(),
		VariantKey:        "default",
		LocationBreakdown: map[string]float64{uuid.New().String(): 5, uuid.New().String(): 2},
	}
	require.InDelta(t, 7.0, entry.OnHand(), 1e-9)
}

func TestInferPurpose(t *testing.T) {
	cases := []struct {
		name string
		txn  Transaction
		want Purpose
	}{
		{"explicit wins", Transaction{Type: TxnOut, Purpose: PurposeProcurement}, PurposeProcurement},
		{"move is transfer", Transaction{Type: TxnMove}, PurposeTransfer},
		{"in with grn", Transaction{Type: TxnIn, RefType: "grn"}, PurposeProcurement},
		{"out with customer", Transaction{Type: TxnOut, CustomerID: "CUST-7"}, PurposeDispatch},
		{"out with challan", Transaction{Type: TxnOut, RefType: "challan"}, PurposeDispatch},
		{"bare in defaults", Transaction{Type: TxnIn}, PurposeAdjustment},
		{"bare out defaults", Transaction{Type: TxnOut}, PurposeAdjustment},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, InferPurpose(tc.txn))
		})
	}
}

func TestIntegrityProblems(t *testing.T) {
	clean := StockEntry{
		Lots:    []Lot{{ID: uuid.New(), OriginalFt: 10, RemainingFt: 4}},
		Batches: []Batch{{ID: uuid.New(), RemainingQty: 3}},
	}
	require.Empty(t, clean.IntegrityProblems())

	broken := StockEntry{
		Lots:    []Lot{{ID: uuid.New(), OriginalFt: 10, RemainingFt: 11}},
		Batches: []Batch{{ID: uuid.New(), RemainingQty: -1}},
	}
	require.Len(t, broken.IntegrityProblems(), 2)
}
