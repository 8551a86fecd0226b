package ledger

import (
	"sort"

	"github.com/google/uuid"
)

// qtyEpsilon guards float comparisons on quantities and lengths.
const qtyEpsilon = 1e-9

// DiscreteAllocation is the trace of one discrete consumption.
type DiscreteAllocation struct {
	Entry     StockEntry
	Batches   []BatchConsumption
	Locations []LocationConsumption
}

// ConsumeDiscrete draws qty units from the entry's batches, oldest first.
// Ordering is deterministic: batches at the preferred location sort first,
// then creation time ascending, then location id. When a preferred location
// is given and lacks enough quantity the call fails without touching other
// locations. The returned entry has zero batches pruned.
func ConsumeDiscrete(entry StockEntry, qty float64, preferred *uuid.UUID) (DiscreteAllocation, error) {
	total := 0.0
	atPreferred := 0.0
	for _, b := range entry.Batches {
		total += b.RemainingQty
		if preferred != nil && b.LocationID == *preferred {
			atPreferred += b.RemainingQty
		}
	}
	if total+qtyEpsilon < qty {
		return DiscreteAllocation{}, &InsufficientStockError{
			ComponentID: entry.ComponentID,
			VariantKey:  entry.VariantKey,
			Requested:   qty,
			Available:   total,
		}
	}
	if preferred != nil && atPreferred+qtyEpsilon < qty {
		return DiscreteAllocation{}, &InsufficientStockAtLocationError{
			ComponentID: entry.ComponentID,
			VariantKey:  entry.VariantKey,
			LocationID:  *preferred,
			Requested:   qty,
			Available:   atPreferred,
		}
	}

	batches := make([]Batch, len(entry.Batches))
	copy(batches, entry.Batches)
	sort.SliceStable(batches, func(i, j int) bool {
		if preferred != nil {
			pi := batches[i].LocationID == *preferred
			pj := batches[j].LocationID == *preferred
			if pi != pj {
				return pi
			}
		}
		if !batches[i].CreatedAt.Equal(batches[j].CreatedAt) {
			return batches[i].CreatedAt.Before(batches[j].CreatedAt)
		}
		return batches[i].LocationID.String() < batches[j].LocationID.String()
	})

	remaining := qty
	var consumed []BatchConsumption
	perLocation := map[uuid.UUID]float64{}
	var locationOrder []uuid.UUID
	for i := range batches {
		if remaining <= qtyEpsilon {
			break
		}
		draw := batches[i].RemainingQty
		if draw > remaining {
			draw = remaining
		}
		if draw <= 0 {
			continue
		}
		batches[i].RemainingQty -= draw
		remaining -= draw
		consumed = append(consumed, BatchConsumption{
			BatchID:    batches[i].ID,
			LocationID: batches[i].LocationID,
			Qty:        draw,
		})
		if _, seen := perLocation[batches[i].LocationID]; !seen {
			locationOrder = append(locationOrder, batches[i].LocationID)
		}
		perLocation[batches[i].LocationID] += draw
	}

	entry.Batches = pruneZeroBatches(batches)
	var locations []LocationConsumption
	for _, loc := range locationOrder {
		locations = append(locations, LocationConsumption{LocationID: loc, Qty: perLocation[loc]})
	}
	return DiscreteAllocation{Entry: entry, Batches: consumed, Locations: locations}, nil
}

// CuttableAllocation is the trace of one FIFO length consumption.
type CuttableAllocation struct {
	Lots        []Lot
	Consumption []LotConsumption
	OK          bool
	ShortfallFt float64
}

// ConsumeCuttable draws requiredFt across lots FIFO by creation time, with
// partial cuts across lots. All-or-nothing: when total available falls
// short the input lots are returned unchanged with the shortfall reported.
func ConsumeCuttable(lots []Lot, requiredFt float64) CuttableAllocation {
	available := 0.0
	for _, lot := range lots {
		available += lot.RemainingFt
	}
	if available+qtyEpsilon < requiredFt {
		return CuttableAllocation{Lots: lots, OK: false, ShortfallFt: requiredFt - available}
	}

	ordered := make([]Lot, len(lots))
	copy(ordered, lots)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	remaining := requiredFt
	var consumption []LotConsumption
	for i := range ordered {
		if remaining <= qtyEpsilon {
			break
		}
		draw := ordered[i].RemainingFt
		if draw > remaining {
			draw = remaining
		}
		if draw <= 0 {
			continue
		}
		ordered[i].RemainingFt -= draw
		remaining -= draw
		consumption = append(consumption, LotConsumption{LotID: ordered[i].ID, Ft: draw})
	}
	return CuttableAllocation{Lots: ordered, Consumption: consumption, OK: true}
}

// PlannedCut names an exact lot and cut plan chosen by an operator.
type PlannedCut struct {
	LotID       uuid.UUID `json:"lot_id"`
	Count       int       `json:"count"`
	CutLengthFt float64   `json:"cut_length_ft"`
}

// ConsumePlannedCuts draws count*cutLength from each named lot only,
// stopping early when that lot is exhausted. There is no fallback to other
// lots and no shortfall error: this is a directed variant of FIFO
// consumption for operator-chosen cuts.
func ConsumePlannedCuts(lots []Lot, cuts []PlannedCut) ([]Lot, []LotConsumption) {
	out := make([]Lot, len(lots))
	copy(out, lots)
	index := map[uuid.UUID]int{}
	for i, lot := range out {
		index[lot.ID] = i
	}

	var consumption []LotConsumption
	for _, cut := range cuts {
		i, ok := index[cut.LotID]
		if !ok {
			continue
		}
		want := float64(cut.Count) * cut.CutLengthFt
		if want <= 0 {
			continue
		}
		draw := out[i].RemainingFt
		if draw > want {
			draw = want
		}
		if draw <= qtyEpsilon {
			continue
		}
		out[i].RemainingFt -= draw
		consumption = append(consumption, LotConsumption{LotID: cut.LotID, Ft: draw})
	}
	return out, consumption
}
