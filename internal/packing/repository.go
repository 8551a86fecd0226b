package packing

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/suryaepc/suryaepc/internal/shared"
)

// RepositoryPort abstracts packing list persistence for the service.
type RepositoryPort interface {
	Get(ctx context.Context, id uuid.UUID) (PackingList, error)
	GetByDocument(ctx context.Context, documentID string) (PackingList, error)
	Insert(ctx context.Context, list PackingList) error
	Save(ctx context.Context, list PackingList) error
}

// Repository persists packing lists as JSONB aggregates. A unique index on
// document_id backs the create-once-per-document guarantee.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (PackingList, error) {
	return r.get(ctx, `SELECT payload FROM packing_lists WHERE id=$1`, id)
}

func (r *Repository) GetByDocument(ctx context.Context, documentID string) (PackingList, error) {
	return r.get(ctx, `SELECT payload FROM packing_lists WHERE document_id=$1`, documentID)
}

func (r *Repository) get(ctx context.Context, query string, arg any) (PackingList, error) {
	var payload []byte
	err := r.pool.QueryRow(ctx, query, arg).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return PackingList{}, ErrListNotFound
	}
	if err != nil {
		return PackingList{}, err
	}
	var list PackingList
	if err := json.Unmarshal(payload, &list); err != nil {
		return PackingList{}, err
	}
	return list, nil
}

// Insert creates the list, surfacing errDuplicateDocument when another
// writer created one for the same document first.
func (r *Repository) Insert(ctx context.Context, list PackingList) error {
	if list.ID == uuid.Nil || list.DocumentID == "" {
		return shared.ErrMissingIdentity
	}
	payload, err := json.Marshal(list)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `INSERT INTO packing_lists (id, document_id, status, payload, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $5)`,
		list.ID, list.DocumentID, string(list.Status), payload, list.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return errDuplicateDocument
	}
	return shared.WrapPersistence("insert packing list", err)
}

// Save replaces the whole aggregate.
func (r *Repository) Save(ctx context.Context, list PackingList) error {
	if list.ID == uuid.Nil {
		return shared.ErrMissingIdentity
	}
	payload, err := json.Marshal(list)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `UPDATE packing_lists SET status=$2, payload=$3, updated_at=NOW() WHERE id=$1`,
		list.ID, string(list.Status), payload)
	if err != nil {
		return shared.WrapPersistence("save packing list", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrListNotFound
	}
	return nil
}
