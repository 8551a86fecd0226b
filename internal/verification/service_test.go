package verification

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/suryaepc/suryaepc/internal/ledger"
)

type memoryRepo struct {
	byTxn map[uuid.UUID]Record
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{byTxn: map[uuid.UUID]Record{}}
}

func (r *memoryRepo) GetByTxn(ctx context.Context, txnID uuid.UUID) (Record, error) {
	record, ok := r.byTxn[txnID]
	if !ok {
		return Record{}, ErrRecordNotFound
	}
	return record, nil
}

func (r *memoryRepo) Insert(ctx context.Context, record Record) error {
	if _, ok := r.byTxn[record.TxnID]; ok {
		return errDuplicateRecord
	}
	r.byTxn[record.TxnID] = record
	return nil
}

func (r *memoryRepo) Save(ctx context.Context, record Record) error {
	if _, ok := r.byTxn[record.TxnID]; !ok {
		return ErrRecordNotFound
	}
	r.byTxn[record.TxnID] = record
	return nil
}

func (r *memoryRepo) ListByStatus(ctx context.Context, statuses ...Status) ([]Record, error) {
	var out []Record
	for _, record := range r.byTxn {
		for _, st := range statuses {
			if record.Status == st {
				out = append(out, record)
			}
		}
	}
	return out, nil
}

type stubSource struct {
	txns []ledger.Transaction
}

func (s *stubSource) TransactionsSince(ctx context.Context, since time.Time) ([]ledger.Transaction, error) {
	return s.txns, nil
}

func staffTxn() ledger.Transaction {
	return ledger.Transaction{
		ID:        uuid.New(),
		Type:      ledger.TxnOut,
		CreatedBy: "staff-1",
		CreatedAt: time.Now().UTC(),
	}
}

func TestSyncCreatesRecordsForNonAdminOnly(t *testing.T) {
	repo := newMemoryRepo()
	staff := staffTxn()
	admin := staffTxn()
	admin.CreatedByAdmin = true
	svc := NewService(repo, &stubSource{txns: []ledger.Transaction{staff, admin}}, nil, nil)

	created, err := svc.Sync(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Equal(t, 1, created)

	record, err := repo.GetByTxn(context.Background(), staff.ID)
	require.NoError(t, err)
	require.Equal(t, StatusNotVerified, record.Status)
	require.Equal(t, "staff-1", record.CreatedBy)
	require.Equal(t, "OUT", record.TxnType)

	_, err = repo.GetByTxn(context.Background(), admin.ID)
	require.ErrorIs(t, err, ErrRecordNotFound)
}

func TestSyncIsIdempotent(t *testing.T) {
	repo := newMemoryRepo()
	txn := staffTxn()
	svc := NewService(repo, &stubSource{txns: []ledger.Transaction{txn}}, nil, nil)
	ctx := context.Background()

	created, err := svc.Sync(ctx, time.Time{})
	require.NoError(t, err)
	require.Equal(t, 1, created)

	for i := 0; i < 3; i++ {
		created, err = svc.Sync(ctx, time.Time{})
		require.NoError(t, err)
		require.Zero(t, created)
	}
	require.Len(t, repo.byTxn, 1)
}

func TestReviewTransitions(t *testing.T) {
	repo := newMemoryRepo()
	txn := staffTxn()
	svc := NewService(repo, &stubSource{txns: []ledger.Transaction{txn}}, nil, nil)
	ctx := context.Background()

	_, err := svc.Sync(ctx, time.Time{})
	require.NoError(t, err)

	record, err := svc.Review(ctx, txn.ID, StatusNeedsClarification, "which site?", "admin-1")
	require.NoError(t, err)
	require.Equal(t, StatusNeedsClarification, record.Status)
	require.Equal(t, "admin-1", record.VerifierID)
	require.NotNil(t, record.VerifiedAt)

	record, err = svc.Review(ctx, txn.ID, StatusVerified, "", "admin-1")
	require.NoError(t, err)
	require.Equal(t, StatusVerified, record.Status)

	// Verified is terminal.
	_, err = svc.Review(ctx, txn.ID, StatusNeedsClarification, "", "admin-1")
	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, StatusVerified, invalid.From)
}

func TestReviewNeverReturnsToNotVerified(t *testing.T) {
	repo := newMemoryRepo()
	txn := staffTxn()
	svc := NewService(repo, &stubSource{txns: []ledger.Transaction{txn}}, nil, nil)
	ctx := context.Background()

	_, err := svc.Sync(ctx, time.Time{})
	require.NoError(t, err)
	_, err = svc.Review(ctx, txn.ID, StatusNeedsClarification, "?", "admin-1")
	require.NoError(t, err)

	_, err = svc.Review(ctx, txn.ID, StatusNotVerified, "", "admin-1")
	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
}

func TestPendingListsUnreviewed(t *testing.T) {
	repo := newMemoryRepo()
	first := staffTxn()
	second := staffTxn()
	svc := NewService(repo, &stubSource{txns: []ledger.Transaction{first, second}}, nil, nil)
	ctx := context.Background()

	_, err := svc.Sync(ctx, time.Time{})
	require.NoError(t, err)
	_, err = svc.Review(ctx, first.ID, StatusVerified, "", "admin-1")
	require.NoError(t, err)

	pending, err := svc.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, second.ID, pending[0].TxnID)
}
