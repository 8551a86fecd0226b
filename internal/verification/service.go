package verification

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/suryaepc/suryaepc/internal/ledger"
	"github.com/suryaepc/suryaepc/internal/shared"
)

// TransactionSource supplies the transactions the sync pass scans.
type TransactionSource interface {
	TransactionsSince(ctx context.Context, since time.Time) ([]ledger.Transaction, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service keeps the verification log in step with the transaction log and
// applies admin review decisions.
type Service struct {
	repo   RepositoryPort
	source TransactionSource
	audit  AuditPort
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, source TransactionSource, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, source: source, audit: audit, logger: logger}
}

// Sync creates a not_verified record for every transaction in the window
// created by a non-admin actor that has none yet. Idempotent: re-running
// the same window never duplicates records.
func (s *Service) Sync(ctx context.Context, since time.Time) (int, error) {
	txns, err := s.source.TransactionsSince(ctx, since)
	if err != nil {
		return 0, err
	}
	created := 0
	for _, txn := range txns {
		if txn.CreatedByAdmin {
			continue
		}
		_, err := s.repo.GetByTxn(ctx, txn.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrRecordNotFound) {
			return created, err
		}
		record := Record{
			ID:        uuid.New(),
			TxnID:     txn.ID,
			TxnType:   string(txn.Type),
			TxnAt:     txn.CreatedAt,
			CreatedBy: txn.CreatedBy,
			Status:    StatusNotVerified,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.repo.Insert(ctx, record); err != nil {
			if errors.Is(err, errDuplicateRecord) {
				continue
			}
			return created, err
		}
		created++
	}
	if created > 0 {
		s.logger.Info("verification sync", slog.Int("created", created))
	}
	return created, nil
}

// Review applies an admin decision on a record.
func (s *Service) Review(ctx context.Context, txnID uuid.UUID, to Status, note, verifierID string) (Record, error) {
	record, err := s.repo.GetByTxn(ctx, txnID)
	if err != nil {
		return Record{}, err
	}
	if !canTransition(record.Status, to) {
		return Record{}, &InvalidTransitionError{From: record.Status, To: to}
	}
	now := time.Now().UTC()
	record.Status = to
	record.Note = note
	record.VerifierID = verifierID
	record.VerifiedAt = &now
	if err := s.repo.Save(ctx, record); err != nil {
		return Record{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Actor:    verifierID,
			Action:   "verification:" + string(to),
			Entity:   "verification_record",
			EntityID: record.ID.String(),
			Meta:     map[string]any{"txn_id": txnID.String()},
		})
	}
	return record, nil
}

// Pending lists records awaiting review.
func (s *Service) Pending(ctx context.Context) ([]Record, error) {
	return s.repo.ListByStatus(ctx, StatusNotVerified, StatusNeedsClarification)
}
