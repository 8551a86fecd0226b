package ledger

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

// RepositoryPort abstracts ledger persistence for the service. Aggregates
// load and save whole: there is no partial-record update API.
type RepositoryPort interface {
	GetEntry(ctx context.Context, componentID uuid.UUID, variantKey string) (StockEntry, error)
	ListEntriesByComponent(ctx context.Context, componentID uuid.UUID) ([]StockEntry, error)
	ListEntries(ctx context.Context) ([]StockEntry, error)
	SaveEntry(ctx context.Context, entry StockEntry) error
	InsertTransaction(ctx context.Context, txn Transaction) error
	GetTransaction(ctx context.Context, id uuid.UUID) (Transaction, error)
	UpdateTransactionMarkers(ctx context.Context, txn Transaction) error
	ListTransactionsSince(ctx context.Context, since time.Time) ([]Transaction, error)
	ListTransactionsByRef(ctx context.Context, refType, refID string) ([]Transaction, error)
	InsertEdit(ctx context.Context, edit TransactionEdit) error
	ListEdits(ctx context.Context, txnID uuid.UUID) ([]TransactionEdit, error)
}

// Repository persists ledger aggregates in PostgreSQL. Stock entries and
// transactions are JSONB documents with index columns pulled out for
// lookups; the payload is the source of truth and is written whole.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) GetEntry(ctx context.Context, componentID uuid.UUID, variantKey string) (StockEntry, error) {
	var payload []byte
	err := r.pool.QueryRow(ctx, `SELECT payload FROM stock_entries WHERE component_id=$1 AND variant_key=$2`, componentID, variantKey).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return StockEntry{}, ErrEntryNotFound
	}
	if err != nil {
		return StockEntry{}, err
	}
	var entry StockEntry
	if err := json.Unmarshal(payload, &entry); err != nil {
		return StockEntry{}, err
	}
	return entry, nil
}

func (r *Repository) ListEntriesByComponent(ctx context.Context, componentID uuid.UUID) ([]StockEntry, error) {
	return r.listEntries(ctx, `SELECT payload FROM stock_entries WHERE component_id=$1 ORDER BY variant_key ASC`, componentID)
}

func (r *Repository) ListEntries(ctx context.Context) ([]StockEntry, error) {
	return r.listEntries(ctx, `SELECT payload FROM stock_entries ORDER BY component_id ASC, variant_key ASC`)
}

func (r *Repository) listEntries(ctx context.Context, query string, args ...any) ([]StockEntry, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []StockEntry
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var entry StockEntry
		if err := json.Unmarshal(payload, &entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// SaveEntry replaces the whole aggregate for the bucket.
func (r *Repository) SaveEntry(ctx context.Context, entry StockEntry) error {
	if entry.ComponentID == uuid.Nil || entry.VariantKey == "" {
		return shared.ErrMissingIdentity
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `INSERT INTO stock_entries (component_id, variant_key, is_cuttable, payload, updated_at)
VALUES ($1, $2, $3, $4, NOW())
ON CONFLICT (component_id, variant_key) DO UPDATE SET is_cuttable=EXCLUDED.is_cuttable, payload=EXCLUDED.payload, updated_at=NOW()`,
		entry.ComponentID, entry.VariantKey, entry.IsCuttable, payload)
	return shared.WrapPersistence("save stock entry", err)
}

func (r *Repository) InsertTransaction(ctx context.Context, txn Transaction) error {
	if txn.ID == uuid.Nil {
		return shared.ErrMissingIdentity
	}
	payload, err := json.Marshal(txn)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `INSERT INTO ledger_txns (id, component_id, variant_key, txn_type, purpose, ref_type, ref_id, created_by, created_at, payload)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		txn.ID, txn.ComponentID, txn.VariantKey, string(txn.Type), string(txn.Purpose), txn.RefType, txn.RefID, txn.CreatedBy, txn.CreatedAt, payload)
	return shared.WrapPersistence("insert transaction", err)
}

func (r *Repository) GetTransaction(ctx context.Context, id uuid.UUID) (Transaction, error) {
	var payload []byte
	err := r.pool.QueryRow(ctx, `SELECT payload FROM ledger_txns WHERE id=$1`, id).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, ErrTxnNotFound
	}
	if err != nil {
		return Transaction{}, err
	}
	var txn Transaction
	if err := json.Unmarshal(payload, &txn); err != nil {
		return Transaction{}, err
	}
	return txn, nil
}

// UpdateTransactionMarkers rewrites only archival/void flags and reversal
// links. The quantity effect of a transaction is immutable.
func (r *Repository) UpdateTransactionMarkers(ctx context.Context, txn Transaction) error {
	if txn.ID == uuid.Nil {
		return shared.ErrMissingIdentity
	}
	payload, err := json.Marshal(txn)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `UPDATE ledger_txns SET payload=$2 WHERE id=$1`, txn.ID, payload)
	if err != nil {
		return shared.WrapPersistence("update transaction markers", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTxnNotFound
	}
	return nil
}

func (r *Repository) ListTransactionsSince(ctx context.Context, since time.Time) ([]Transaction, error) {
	return r.listTransactions(ctx, `SELECT payload FROM ledger_txns WHERE created_at >= $1 ORDER BY created_at ASC`, since)
}

func (r *Repository) ListTransactionsByRef(ctx context.Context, refType, refID string) ([]Transaction, error) {
	return r.listTransactions(ctx, `SELECT payload FROM ledger_txns WHERE ref_type=$1 AND ref_id=$2 ORDER BY created_at ASC`, refType, refID)
}

func (r *Repository) listTransactions(ctx context.Context, query string, args ...any) ([]Transaction, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var txns []Transaction
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var txn Transaction
		if err := json.Unmarshal(payload, &txn); err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}
	return txns, rows.Err()
}

func (r *Repository) InsertEdit(ctx context.Context, edit TransactionEdit) error {
	if edit.TxnID == uuid.Nil {
		return shared.ErrMissingIdentity
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO ledger_txn_edits (txn_id, field, old_value, new_value, edited_by, edited_at)
VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))`,
		edit.TxnID, edit.Field, edit.OldValue, edit.NewValue, edit.EditedBy, edit.EditedAt)
	return shared.WrapPersistence("insert transaction edit", err)
}

func (r *Repository) ListEdits(ctx context.Context, txnID uuid.UUID) ([]TransactionEdit, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, txn_id, field, old_value, new_value, edited_by, edited_at FROM ledger_txn_edits WHERE txn_id=$1 ORDER BY edited_at ASC, id ASC`, txnID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var edits []TransactionEdit
	for rows.Next() {
		var e TransactionEdit
		if err := rows.Scan(&e.ID, &e.TxnID, &e.Field, &e.OldValue, &e.NewValue, &e.EditedBy, &e.EditedAt); err != nil {
			return nil, err
		}
		edits = append(edits, e)
	}
	return edits, rows.Err()
}
