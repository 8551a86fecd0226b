package ledger

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func lotAt(t time.Time, ft float64) Lot {
	return Lot{ID: uuid.New(), OriginalFt: ft, RemainingFt: ft, CreatedAt: t}
}

func TestConsumeCuttableFIFO(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	first := lotAt(base, 5)
	second := lotAt(base.Add(time.Hour), 5)
	third := lotAt(base.Add(2*time.Hour), 5)

	alloc := ConsumeCuttable([]Lot{third, first, second}, 8)
	require.True(t, alloc.OK)
	require.Len(t, alloc.Consumption, 2)
	require.Equal(t, first.ID, alloc.Consumption[0].LotID)
	require.InDelta(t, 5.0, alloc.Consumption[0].Ft, 1e-9)
	require.Equal(t, second.ID, alloc.Consumption[1].LotID)
	require.InDelta(t, 3.0, alloc.Consumption[1].Ft, 1e-9)

	remaining := map[uuid.UUID]float64{}
	for _, lot := range alloc.Lots {
		remaining[lot.ID] = lot.RemainingFt
	}
	require.InDelta(t, 0.0, remaining[first.ID], 1e-9)
	require.InDelta(t, 2.0, remaining[second.ID], 1e-9)
	require.InDelta(t, 5.0, remaining[third.ID], 1e-9)
}

func TestConsumeCuttableAllOrNothing(t *testing.T) {
	base := time.Now().UTC()
	lots := []Lot{lotAt(base, 4), lotAt(base.Add(time.Minute), 3)}

	alloc := ConsumeCuttable(lots, 10)
	require.False(t, alloc.OK)
	require.InDelta(t, 3.0, alloc.ShortfallFt, 1e-9)
	// No mutation on shortfall.
	require.InDelta(t, 4.0, alloc.Lots[0].RemainingFt, 1e-9)
	require.InDelta(t, 3.0, alloc.Lots[1].RemainingFt, 1e-9)
	require.Empty(t, alloc.Consumption)
}

func TestConsumePlannedCutsDirected(t *testing.T) {
	base := time.Now().UTC()
	chosen := lotAt(base, 20)
	other := lotAt(base.Add(time.Minute), 100)

	lots, consumption := ConsumePlannedCuts([]Lot{chosen, other}, []PlannedCut{
		{LotID: chosen.ID, Count: 3, CutLengthFt: 10},
	})
	// 30 ft wanted, lot holds 20: stop at exhaustion, no fallback.
	require.Len(t, consumption, 1)
	require.Equal(t, chosen.ID, consumption[0].LotID)
	require.InDelta(t, 20.0, consumption[0].Ft, 1e-9)
	for _, lot := range lots {
		if lot.ID == other.ID {
			require.InDelta(t, 100.0, lot.RemainingFt, 1e-9)
		}
	}
}

func discreteEntry(batches ...Batch) StockEntry {
	return StockEntry{ComponentID: uuid.New(), VariantKey: "default", Batches: batches}
}

func TestConsumeDiscreteLocationPreference(t *testing.T) {
	locA := uuid.New()
	locB := uuid.New()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	entry := discreteEntry(
		Batch{ID: uuid.New(), LocationID: locA, RemainingQty: 3, CreatedAt: base},
		Batch{ID: uuid.New(), LocationID: locB, RemainingQty: 10, CreatedAt: base.Add(time.Hour)},
	)

	_, err := ConsumeDiscrete(entry, 5, &locA)
	var atLoc *InsufficientStockAtLocationError
	require.ErrorAs(t, err, &atLoc)
	require.Equal(t, locA, atLoc.LocationID)
	require.InDelta(t, 3.0, atLoc.Available, 1e-9)

	alloc, err := ConsumeDiscrete(entry, 5, nil)
	require.NoError(t, err)
	require.Len(t, alloc.Locations, 2)
	require.Equal(t, locA, alloc.Locations[0].LocationID)
	require.InDelta(t, 3.0, alloc.Locations[0].Qty, 1e-9)
	require.Equal(t, locB, alloc.Locations[1].LocationID)
	require.InDelta(t, 2.0, alloc.Locations[1].Qty, 1e-9)
}

func TestConsumeDiscreteInsufficientTotal(t *testing.T) {
	entry := discreteEntry(Batch{ID: uuid.New(), LocationID: uuid.New(), RemainingQty: 2, CreatedAt: time.Now()})

	_, err := ConsumeDiscrete(entry, 5, nil)
	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.InDelta(t, 2.0, insufficient.Available, 1e-9)
}

func TestConsumeDiscretePrunesZeroBatches(t *testing.T) {
	loc := uuid.New()
	base := time.Now().UTC()
	drained := Batch{ID: uuid.New(), LocationID: loc, RemainingQty: 2, CreatedAt: base}
	survivor := Batch{ID: uuid.New(), LocationID: loc, RemainingQty: 4, CreatedAt: base.Add(time.Minute)}
	entry := discreteEntry(drained, survivor)

	alloc, err := ConsumeDiscrete(entry, 3, nil)
	require.NoError(t, err)
	require.Len(t, alloc.Entry.Batches, 1)
	require.Equal(t, survivor.ID, alloc.Entry.Batches[0].ID)
	require.InDelta(t, 3.0, alloc.Entry.Batches[0].RemainingQty, 1e-9)
	// The drained batch id stays referenced by the trace.
	require.Equal(t, drained.ID, alloc.Batches[0].BatchID)
}

func TestConsumeDiscreteDeterministicTieBreak(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	locLow := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	locHigh := uuid.MustParse("22222222-2222-2222-2222-222222222222")
	entry := discreteEntry(
		Batch{ID: uuid.New(), LocationID: locHigh, RemainingQty: 5, CreatedAt: at},
		Batch{ID: uuid.New(), LocationID: locLow, RemainingQty: 5, CreatedAt: at},
	)

	for i := 0; i < 5; i++ {
		alloc, err := ConsumeDiscrete(entry, 5, nil)
		require.NoError(t, err)
		require.Equal(t, locLow, alloc.Batches[0].LocationID)
	}
}
