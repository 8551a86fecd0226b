package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/suryaepc/suryaepc/internal/shared"
)

// Repository persists catalog reference data.
type Repository interface {
	GetComponent(ctx context.Context, id uuid.UUID) (Component, error)
	ListComponents(ctx context.Context, includeArchived bool) ([]Component, error)
	SaveComponent(ctx context.Context, c Component) error
	GetVariant(ctx context.Context, id uuid.UUID) (Variant, error)
	ListVariants(ctx context.Context, componentID uuid.UUID) ([]Variant, error)
	SaveVariant(ctx context.Context, v Variant) error
	GetLocation(ctx context.Context, id uuid.UUID) (Location, error)
	ListLocations(ctx context.Context, includeArchived bool) ([]Location, error)
	SaveLocation(ctx context.Context, l Location) error
	GetKit(ctx context.Context, id uuid.UUID) (Kit, error)
	ListKits(ctx context.Context, includeArchived bool) ([]Kit, error)
	SaveKit(ctx context.Context, k Kit) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs the pgx-backed repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) GetComponent(ctx context.Context, id uuid.UUID) (Component, error) {
	var c Component
	err := r.db.QueryRow(ctx, `SELECT id, code, name, category, hsn_code, unit, is_cuttable, has_variants, standard_length_ft, min_issue_length_ft, archived, created_at, updated_at FROM components WHERE id = $1`, id).
		Scan(&c.ID, &c.Code, &c.Name, &c.Category, &c.HSNCode, &c.Unit, &c.IsCuttable, &c.HasVariants, &c.StandardLengthFt, &c.MinIssueLengthFt, &c.Archived, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Component{}, shared.ErrNotFound
	}
	return c, err
}

func (r *repository) ListComponents(ctx context.Context, includeArchived bool) ([]Component, error) {
	rows, err := r.db.Query(ctx, `SELECT id, code, name, category, hsn_code, unit, is_cuttable, has_variants, standard_length_ft, min_issue_length_ft, archived, created_at, updated_at FROM components WHERE ($1 OR NOT archived) ORDER BY name ASC`, includeArchived)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Component
	for rows.Next() {
		var c Component
		if err := rows.Scan(&c.ID, &c.Code, &c.Name, &c.Category, &c.HSNCode, &c.Unit, &c.IsCuttable, &c.HasVariants, &c.StandardLengthFt, &c.MinIssueLengthFt, &c.Archived, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *repository) SaveComponent(ctx context.Context, c Component) error {
	if c.ID == uuid.Nil {
		return shared.ErrMissingIdentity
	}
	now := time.Now().UTC()
	_, err := r.db.Exec(ctx, `INSERT INTO components (id, code, name, category, hsn_code, unit, is_cuttable, has_variants, standard_length_ft, min_issue_length_ft, archived, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, COALESCE($12, NOW()), $13)
ON CONFLICT (id) DO UPDATE SET code=EXCLUDED.code, name=EXCLUDED.name, category=EXCLUDED.category, hsn_code=EXCLUDED.hsn_code, unit=EXCLUDED.unit, is_cuttable=EXCLUDED.is_cuttable, has_variants=EXCLUDED.has_variants, standard_length_ft=EXCLUDED.standard_length_ft, min_issue_length_ft=EXCLUDED.min_issue_length_ft, archived=EXCLUDED.archived, updated_at=EXCLUDED.updated_at`,
		c.ID, c.Code, c.Name, c.Category, c.HSNCode, c.Unit, c.IsCuttable, c.HasVariants, c.StandardLengthFt, c.MinIssueLengthFt, c.Archived, c.CreatedAt, now)
	return shared.WrapPersistence("save component", err)
}

func (r *repository) GetVariant(ctx context.Context, id uuid.UUID) (Variant, error) {
	var v Variant
	err := r.db.QueryRow(ctx, `SELECT id, component_id, name, wattage_wp, brand, model, archived, created_at FROM variants WHERE id = $1`, id).
		Scan(&v.ID, &v.ComponentID, &v.Name, &v.WattageWp, &v.Brand, &v.Model, &v.Archived, &v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Variant{}, shared.ErrNotFound
	}
	return v, err
}

func (r *repository) ListVariants(ctx context.Context, componentID uuid.UUID) ([]Variant, error) {
	rows, err := r.db.Query(ctx, `SELECT id, component_id, name, wattage_wp, brand, model, archived, created_at FROM variants WHERE component_id = $1 ORDER BY created_at ASC`, componentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Variant
	for rows.Next() {
		var v Variant
		if err := rows.Scan(&v.ID, &v.ComponentID, &v.Name, &v.WattageWp, &v.Brand, &v.Model, &v.Archived, &v.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *repository) SaveVariant(ctx context.Context, v Variant) error {
	if v.ID == uuid.Nil || v.ComponentID == uuid.Nil {
		return shared.ErrMissingIdentity
	}
	_, err := r.db.Exec(ctx, `INSERT INTO variants (id, component_id, name, wattage_wp, brand, model, archived, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, NOW()))
ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, wattage_wp=EXCLUDED.wattage_wp, brand=EXCLUDED.brand, model=EXCLUDED.model, archived=EXCLUDED.archived`,
		v.ID, v.ComponentID, v.Name, v.WattageWp, v.Brand, v.Model, v.Archived, v.CreatedAt)
	return shared.WrapPersistence("save variant", err)
}

func (r *repository) GetLocation(ctx context.Context, id uuid.UUID) (Location, error) {
	var l Location
	err := r.db.QueryRow(ctx, `SELECT id, name, type, archived, created_at FROM locations WHERE id = $1`, id).
		Scan(&l.ID, &l.Name, &l.Type, &l.Archived, &l.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Location{}, shared.ErrNotFound
	}
	return l, err
}

func (r *repository) ListLocations(ctx context.Context, includeArchived bool) ([]Location, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, type, archived, created_at FROM locations WHERE ($1 OR NOT archived) ORDER BY name ASC`, includeArchived)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Location
	for rows.Next() {
		var l Location
		if err := rows.Scan(&l.ID, &l.Name, &l.Type, &l.Archived, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *repository) SaveLocation(ctx context.Context, l Location) error {
	if l.ID == uuid.Nil {
		return shared.ErrMissingIdentity
	}
	_, err := r.db.Exec(ctx, `INSERT INTO locations (id, name, type, archived, created_at)
VALUES ($1, $2, $3, $4, COALESCE($5, NOW()))
ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, type=EXCLUDED.type, archived=EXCLUDED.archived`,
		l.ID, l.Name, l.Type, l.Archived, l.CreatedAt)
	return shared.WrapPersistence("save location", err)
}

func (r *repository) GetKit(ctx context.Context, id uuid.UUID) (Kit, error) {
	var k Kit
	var lines []byte
	err := r.db.QueryRow(ctx, `SELECT id, name, lines, archived, created_at, updated_at FROM kits WHERE id = $1`, id).
		Scan(&k.ID, &k.Name, &lines, &k.Archived, &k.CreatedAt, &k.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Kit{}, shared.ErrNotFound
	}
	if err != nil {
		return Kit{}, err
	}
	if err := json.Unmarshal(lines, &k.Lines); err != nil {
		return Kit{}, err
	}
	return k, nil
}

func (r *repository) ListKits(ctx context.Context, includeArchived bool) ([]Kit, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, lines, archived, created_at, updated_at FROM kits WHERE ($1 OR NOT archived) ORDER BY name ASC`, includeArchived)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Kit
	for rows.Next() {
		var k Kit
		var lines []byte
		if err := rows.Scan(&k.ID, &k.Name, &lines, &k.Archived, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(lines, &k.Lines); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func (r *repository) SaveKit(ctx context.Context, k Kit) error {
	if k.ID == uuid.Nil {
		return shared.ErrMissingIdentity
	}
	lines, err := json.Marshal(k.Lines)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = r.db.Exec(ctx, `INSERT INTO kits (id, name, lines, archived, created_at, updated_at)
VALUES ($1, $2, $3, $4, COALESCE($5, NOW()), $6)
ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, lines=EXCLUDED.lines, archived=EXCLUDED.archived, updated_at=EXCLUDED.updated_at`,
		k.ID, k.Name, lines, k.Archived, k.CreatedAt, now)
	return shared.WrapPersistence("save kit", err)
}
