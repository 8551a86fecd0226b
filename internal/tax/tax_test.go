package tax

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func reconstructed(b Breakdown) float64 {
	return decimal.NewFromFloat(b.BasicTotal).Add(decimal.NewFromFloat(b.GSTTotal)).InexactFloat64()
}

func TestSplitProfileReconcilesExactly(t *testing.T) {
	profile := Profile{Mode: ModeSplit, Slabs: []Slab{
		{SharePct: 70, RatePct: 5},
		{SharePct: 30, RatePct: 18},
	}}

	breakdown, err := ComputeBreakdown(108900, profile)
	require.NoError(t, err)
	require.Len(t, breakdown.Slabs, 2)
	require.InDelta(t, 108900.00, reconstructed(breakdown), 1e-9)
}

func TestSingleProfile(t *testing.T) {
	profile := Profile{Mode: ModeSingle, Slabs: []Slab{{SharePct: 100, RatePct: 12}}}

	breakdown, err := ComputeBreakdown(1120, profile)
	require.NoError(t, err)
	require.InDelta(t, 1000.00, breakdown.BasicTotal, 0.01)
	require.InDelta(t, 120.00, breakdown.GSTTotal, 0.01)
	require.InDelta(t, 1120.00, reconstructed(breakdown), 1e-9)
}

func TestSharesMustSumToHundred(t *testing.T) {
	profile := Profile{Mode: ModeSplit, Slabs: []Slab{
		{SharePct: 70, RatePct: 5},
		{SharePct: 20, RatePct: 18},
	}}

	_, err := ComputeBreakdown(50000, profile)
	require.ErrorIs(t, err, ErrInvalidProfile)
}

func TestRoundingDriftAbsorbedByLastSlab(t *testing.T) {
	profile := Profile{Mode: ModeSplit, Slabs: []Slab{
		{SharePct: 33.33, RatePct: 5},
		{SharePct: 33.33, RatePct: 12},
		{SharePct: 33.34, RatePct: 18},
	}}

	for _, gross := range []float64{99999.99, 108900, 123456.78, 0.03} {
		breakdown, err := ComputeBreakdown(gross, profile)
		require.NoError(t, err)
		require.InDelta(t, decimal.NewFromFloat(gross).Round(2).InexactFloat64(), reconstructed(breakdown), 1e-9)
	}
}