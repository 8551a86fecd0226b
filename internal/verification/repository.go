package verification

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/suryaepc/suryaepc/internal/shared"
)

// errDuplicateRecord signals a concurrent sync inserted the record first.
var errDuplicateRecord = errors.New("verification: duplicate record")

// RepositoryPort abstracts verification persistence for the service.
type RepositoryPort interface {
	GetByTxn(ctx context.Context, txnID uuid.UUID) (Record, error)
	Insert(ctx context.Context, record Record) error
	Save(ctx context.Context, record Record) error
	ListByStatus(ctx context.Context, statuses ...Status) ([]Record, error)
}

// Repository persists verification records in PostgreSQL. A unique index
// on txn_id backs the one-record-per-transaction guarantee.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const recordColumns = `id, txn_id, txn_type, txn_at, created_by, status, note, verifier_id, verified_at, created_at`

func (r *Repository) GetByTxn(ctx context.Context, txnID uuid.UUID) (Record, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM verification_records WHERE txn_id=$1`, txnID)
	record, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrRecordNotFound
	}
	return record, err
}

func (r *Repository) Insert(ctx context.Context, record Record) error {
	if record.ID == uuid.Nil || record.TxnID == uuid.Nil {
		return shared.ErrMissingIdentity
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO verification_records (`+recordColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		record.ID, record.TxnID, record.TxnType, record.TxnAt, record.CreatedBy,
		string(record.Status), record.Note, record.VerifierID, record.VerifiedAt, record.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return errDuplicateRecord
	}
	return shared.WrapPersistence("insert verification record", err)
}

func (r *Repository) Save(ctx context.Context, record Record) error {
	if record.ID == uuid.Nil {
		return shared.ErrMissingIdentity
	}
	tag, err := r.pool.Exec(ctx, `UPDATE verification_records
SET status=$2, note=$3, verifier_id=$4, verified_at=$5 WHERE id=$1`,
		record.ID, string(record.Status), record.Note, record.VerifierID, record.VerifiedAt)
	if err != nil {
		return shared.WrapPersistence("save verification record", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (r *Repository) ListByStatus(ctx context.Context, statuses ...Status) ([]Record, error) {
	args := make([]string, 0, len(statuses))
	for _, st := range statuses {
		args = append(args, string(st))
	}
	rows, err := r.pool.Query(ctx, `SELECT `+recordColumns+` FROM verification_records WHERE status = ANY($1) ORDER BY txn_at ASC`, args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func scanRecord(row pgx.Row) (Record, error) {
	var record Record
	var status string
	err := row.Scan(&record.ID, &record.TxnID, &record.TxnType, &record.TxnAt, &record.CreatedBy,
		&status, &record.Note, &record.VerifierID, &record.VerifiedAt, &record.CreatedAt)
	record.Status = Status(status)
	return record, err
}
