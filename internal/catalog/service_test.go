package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/suryaepc/suryaepc/internal/formula"
	"github.com/suryaepc/suryaepc/internal/shared"
)

type memoryRepo struct {
	components map[uuid.UUID]Component
	variants   map[uuid.UUID]Variant
	locations  map[uuid.UUID]Location
	kits       map[uuid.UUID]Kit
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		components: make(map[uuid.UUID]Component),
		variants:   make(map[uuid.UUID]Variant),
		locations:  make(map[uuid.UUID]Location),
		kits:       make(map[uuid.UUID]Kit),
	}
}

func (r *memoryRepo) GetComponent(ctx context.Context, id uuid.UUID) (Component, error) {
	c, ok := r.components[id]
	if !ok {
		return Component{}, shared.ErrNotFound
	}
	return c, nil
}

func (r *memoryRepo) ListComponents(ctx context.Context, includeArchived bool) ([]Component, error) {
	var out []Component
	for _, c := range r.components {
		if includeArchived || !c.Archived {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *memoryRepo) SaveComponent(ctx context.Context, c Component) error {
	r.components[c.ID] = c
	return nil
}

func (r *memoryRepo) GetVariant(ctx context.Context, id uuid.UUID) (Variant, error) {
	v, ok := r.variants[id]
	if !ok {
		return Variant{}, shared.ErrNotFound
	}
	return v, nil
}

func (r *memoryRepo) ListVariants(ctx context.Context, componentID uuid.UUID) ([]Variant, error) {
	var out []Variant
	for _, v := range r.variants {
		if v.ComponentID == componentID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (r *memoryRepo) SaveVariant(ctx context.Context, v Variant) error {
	r.variants[v.ID] = v
	return nil
}

func (r *memoryRepo) GetLocation(ctx context.Context, id uuid.UUID) (Location, error) {
	l, ok := r.locations[id]
	if !ok {
		return Location{}, shared.ErrNotFound
	}
	return l, nil
}

func (r *memoryRepo) ListLocations(ctx context.Context, includeArchived bool) ([]Location, error) {
	var out []Location
	for _, l := range r.locations {
		if includeArchived || !l.Archived {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *memoryRepo) SaveLocation(ctx context.Context, l Location) error {
	r.locations[l.ID] = l
	return nil
}

func (r *memoryRepo) GetKit(ctx context.Context, id uuid.UUID) (Kit, error) {
	k, ok := r.kits[id]
	if !ok {
		return Kit{}, shared.ErrNotFound
	}
	return k, nil
}

func (r *memoryRepo) ListKits(ctx context.Context, includeArchived bool) ([]Kit, error) {
	var out []Kit
	for _, k := range r.kits {
		if includeArchived || !k.Archived {
			out = append(out, k)
		}
	}
	return out, nil
}

func (r *memoryRepo) SaveKit(ctx context.Context, k Kit) error {
	r.kits[k.ID] = k
	return nil
}

func TestSaveKitValidatesFormulas(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	_, err := svc.SaveKit(ctx, Kit{Name: "3kW On-Grid", Lines: []BOMLine{
		{ComponentID: uuid.New(), Mode: ModeCapacityQty, Formula: "kwp * (2"},
	}})
	require.ErrorIs(t, err, formula.ErrMismatchedParentheses)

	kit, err := svc.SaveKit(ctx, Kit{Name: "3kW On-Grid", Lines: []BOMLine{
		{ComponentID: uuid.New(), Mode: ModeCapacityQty, Formula: "kwp * 2"},
		{ComponentID: uuid.New(), Mode: ModeRuleFulfillment, TargetWpFormula: "kwp * 1000", OverbuildPct: 5},
		{ComponentID: uuid.New(), Mode: ModeFixedQty, Qty: 1},
		{ComponentID: uuid.New(), Mode: ModeUnfixedManual, Note: "fasteners as needed"},
	}})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, kit.ID)
}

func TestArchiveComponentKeepsRecord(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	c, err := svc.CreateComponent(ctx, Component{Name: "AC Cable 4sqmm", Unit: "ft", IsCuttable: true, StandardLengthFt: 300})
	require.NoError(t, err)

	require.NoError(t, svc.ArchiveComponent(ctx, c.ID))

	got, err := svc.GetComponent(ctx, c.ID)
	require.NoError(t, err)
	require.True(t, got.Archived)
}

func TestVariantRequiresVariantComponent(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	plain, err := svc.CreateComponent(ctx, Component{Name: "Earthing Rod"})
	require.NoError(t, err)

	_, err = svc.CreateVariant(ctx, Variant{ComponentID: plain.ID, Name: "545Wp Mono"})
	require.Error(t, err)

	panel, err := svc.CreateComponent(ctx, Component{Name: "Solar Module", HasVariants: true})
	require.NoError(t, err)

	v, err := svc.CreateVariant(ctx, Variant{ComponentID: panel.ID, Name: "545Wp Mono", WattageWp: 545})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, v.ID)
}

func TestQtyForKwpSlabs(t *testing.T) {
	slabs := []CapacitySlab{
		{MinKwp: 0, MaxKwp: 3, Qty: 1},
		{MinKwp: 3.01, MaxKwp: 6, Qty: 2},
		{MinKwp: 6.01, Qty: 3},
	}

	qty, ok := QtyForKwp(slabs, 2.5)
	require.True(t, ok)
	require.Equal(t, 1.0, qty)

	qty, ok = QtyForKwp(slabs, 10)
	require.True(t, ok)
	require.Equal(t, 3.0, qty)

	_, ok = QtyForKwp(nil, 5)
	require.False(t, ok)
}

func TestVariantKeyFor(t *testing.T) {
	require.Equal(t, DefaultVariantKey, VariantKeyFor(nil))
	id := uuid.New()
	require.Equal(t, id.String(), VariantKeyFor(&id))
}
