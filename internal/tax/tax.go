// Package tax splits a tax-inclusive gross amount into basic and GST
// portions per a resolved tax profile. It is a pure calculation; invoice
// surfaces live outside the core.
package tax

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Mode selects between a single-rate profile and a share-split profile.
type Mode string

const (
	// ModeSingle applies one rate to the full gross.
	ModeSingle Mode = "single"
	// ModeSplit distributes the gross across slabs by share percentage.
	ModeSplit Mode = "split"
)

// Slab defines one share of the gross taxed at a rate.
type Slab struct {
	SharePct float64
	RatePct  float64
}

// Profile is a resolved tax profile.
type Profile struct {
	Mode  Mode
	Slabs []Slab
}

// SlabAmount carries the computed amounts for one slab.
type SlabAmount struct {
	SharePct   float64
	RatePct    float64
	BaseAmount float64
	GSTAmount  float64
}

// Breakdown is the result of splitting a gross amount.
type Breakdown struct {
	BasicTotal float64
	Slabs      []SlabAmount
	GSTTotal   float64
}

// ErrInvalidProfile indicates slab shares that do not sum to 100%.
var ErrInvalidProfile = errors.New("tax: slab shares must sum to 100")

var hundred = decimal.NewFromInt(100)

// ComputeBreakdown splits grossInclTax by the profile. Per-slab amounts are
// rounded to 2 decimals; any remainder against round(gross, 2) is absorbed
// into the last slab's GST amount so BasicTotal + GSTTotal reconstructs the
// gross exactly.
func ComputeBreakdown(grossInclTax float64, profile Profile) (Breakdown, error) {
	slabs := profile.Slabs
	if profile.Mode == ModeSingle {
		rate := 0.0
		if len(slabs) > 0 {
			rate = slabs[0].RatePct
		}
		slabs = []Slab{{SharePct: 100, RatePct: rate}}
	}
	if len(slabs) == 0 {
		return Breakdown{}, fmt.Errorf("%w: no slabs", ErrInvalidProfile)
	}

	shareTotal := decimal.Zero
	for _, s := range slabs {
		shareTotal = shareTotal.Add(decimal.NewFromFloat(s.SharePct))
	}
	if !shareTotal.Round(6).Equal(hundred) {
		return Breakdown{}, fmt.Errorf("%w: got %s", ErrInvalidProfile, shareTotal)
	}

	gross := decimal.NewFromFloat(grossInclTax).Round(2)
	out := Breakdown{Slabs: make([]SlabAmount, 0, len(slabs))}
	basicTotal := decimal.Zero
	gstTotal := decimal.Zero

	for _, s := range slabs {
		share := decimal.NewFromFloat(s.SharePct).Div(hundred)
		rate := decimal.NewFromFloat(s.RatePct).Div(hundred)
		slabGross := gross.Mul(share)
		base := slabGross.Div(decimal.NewFromInt(1).Add(rate)).Round(2)
		gst := base.Mul(rate).Round(2)
		basicTotal = basicTotal.Add(base)
		gstTotal = gstTotal.Add(gst)
		out.Slabs = append(out.Slabs, SlabAmount{
			SharePct:   s.SharePct,
			RatePct:    s.RatePct,
			BaseAmount: base.InexactFloat64(),
			GSTAmount:  gst.InexactFloat64(),
		})
	}

	// Rounded slabs rarely reconstruct the gross exactly; the drift lands in
	// the last slab's GST.
	remainder := gross.Sub(basicTotal.Add(gstTotal))
	if !remainder.IsZero() {
		last := &out.Slabs[len(out.Slabs)-1]
		adjusted := decimal.NewFromFloat(last.GSTAmount).Add(remainder)
		last.GSTAmount = adjusted.InexactFloat64()
		gstTotal = gstTotal.Add(remainder)
	}

	out.BasicTotal = basicTotal.InexactFloat64()
	out.GSTTotal = gstTotal.InexactFloat64()
	return out, nil
}
