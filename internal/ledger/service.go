package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/suryaepc/suryaepc/internal/catalog"
	"github.com/suryaepc/suryaepc/internal/shared"
)

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort guards retried mutations carrying a client key.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

const idempotencyModule = "ledger"

// Service coordinates all stock mutations. Callers never mutate entries
// directly: stock changes only through Receive, Dispatch, Transfer and
// ReverseDispatch, each of which holds the bucket lock for the whole
// read-mutate-write cycle.
type Service struct {
	repo     RepositoryPort
	locks    *shared.BucketLocks
	audit    AuditPort
	cache    *OnHandCache
	idem     IdempotencyPort
	logger   *slog.Logger
	validate *validator.Validate
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, cache *OnHandCache, idem IdempotencyPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		locks:    shared.NewBucketLocks(),
		audit:    audit,
		cache:    cache,
		idem:     idem,
		logger:   logger,
		validate: validator.New(),
	}
}

// claimKey registers a client idempotency key before a mutation runs.
// Returns a release func the caller invokes when the mutation fails, so a
// later retry can succeed.
func (s *Service) claimKey(ctx context.Context, key string) (func(), error) {
	if key == "" || s.idem == nil {
		return func() {}, nil
	}
	if err := s.idem.CheckAndInsert(ctx, key, idempotencyModule); err != nil {
		return nil, err
	}
	return func() { _ = s.idem.Delete(ctx, key) }, nil
}

// GetStock returns the normalized entry for a bucket. Reading never
// persists the upgraded shape; the next write does.
func (s *Service) GetStock(ctx context.Context, componentID uuid.UUID, variantKey string, isCuttable bool) (StockEntry, error) {
	if variantKey == "" {
		variantKey = catalog.DefaultVariantKey
	}
	entry, err := s.repo.GetEntry(ctx, componentID, variantKey)
	if errors.Is(err, ErrEntryNotFound) {
		return NewStockEntry(componentID, variantKey, isCuttable), nil
	}
	if err != nil {
		return StockEntry{}, err
	}
	return Normalize(entry, time.Now().UTC()), nil
}

// OnHand derives the aggregate quantity for a bucket, or across all
// variant buckets when variantKey is nil.
func (s *Service) OnHand(ctx context.Context, componentID uuid.UUID, variantKey *string, isCuttable bool) (float64, error) {
	cacheKey := "all"
	if variantKey != nil {
		cacheKey = *variantKey
	}
	return s.cache.Fetch(ctx, componentID.String(), cacheKey, func(ctx context.Context) (float64, error) {
		if variantKey != nil {
			entry, err := s.GetStock(ctx, componentID, *variantKey, isCuttable)
			if err != nil {
				return 0, err
			}
			return entry.OnHand(), nil
		}
		entries, err := s.repo.ListEntriesByComponent(ctx, componentID)
		if err != nil {
			return 0, err
		}
		total := 0.0
		now := time.Now().UTC()
		for _, entry := range entries {
			total += Normalize(entry, now).OnHand()
		}
		return total, nil
	})
}

// ReceiveInput describes an inbound receipt.
type ReceiveInput struct {
	ComponentID  uuid.UUID `validate:"required"`
	VariantKey   string
	IsCuttable   bool
	Qty          float64   `validate:"gt=0"`
	LocationID   uuid.UUID `validate:"required"`
	Actor        string    `validate:"required"`
	ActorIsAdmin bool
	RefType      string
	RefID        string
	Purpose      Purpose
	// IdempotencyKey, when set, rejects a retried call with
	// shared.ErrIdempotencyConflict instead of double-applying it.
	IdempotencyKey string
}

// ReceiveResult carries the created batch or lot and the IN transaction.
type ReceiveResult struct {
	Entry StockEntry
	Batch *Batch
	Lot   *Lot
	Txn   Transaction
}

// Receive creates a new batch (discrete) or lot (cuttable) at the location
// and appends an IN transaction.
func (s *Service) Receive(ctx context.Context, input ReceiveInput) (ReceiveResult, error) {
	if err := s.validate.Struct(input); err != nil {
		return ReceiveResult{}, fmt.Errorf("ledger: receive input: %w", err)
	}
	release, err := s.claimKey(ctx, input.IdempotencyKey)
	if err != nil {
		return ReceiveResult{}, err
	}
	variantKey := input.VariantKey
	if variantKey == "" {
		variantKey = catalog.DefaultVariantKey
	}
	unlock := s.locks.Acquire(input.ComponentID.String(), variantKey)
	defer unlock()

	entry, err := s.loadOrInit(ctx, input.ComponentID, variantKey, input.IsCuttable)
	if err != nil {
		release()
		return ReceiveResult{}, err
	}

	now := time.Now().UTC()
	txn := Transaction{
		ID:             uuid.New(),
		Type:           TxnIn,
		ComponentID:    input.ComponentID,
		VariantKey:     variantKey,
		Qty:            input.Qty,
		IsCuttable:     input.IsCuttable,
		Purpose:        input.Purpose,
		RefType:        input.RefType,
		RefID:          input.RefID,
		LocationID:     input.LocationID,
		CreatedBy:      input.Actor,
		CreatedByAdmin: input.ActorIsAdmin,
		CreatedAt:      now,
	}
	txn.Purpose = InferPurpose(txn)

	result := ReceiveResult{Txn: txn}
	if input.IsCuttable {
		lot := Lot{
			ID:          uuid.New(),
			OriginalFt:  input.Qty,
			RemainingFt: input.Qty,
			LocationID:  input.LocationID,
			CreatedBy:   input.Actor,
			CreatedAt:   now,
		}
		entry.Lots = append(entry.Lots, lot)
		result.Lot = &lot
	} else {
		batch := Batch{
			ID:           uuid.New(),
			LocationID:   input.LocationID,
			RemainingQty: input.Qty,
			CreatedBy:    input.Actor,
			CreatedAt:    now,
			SourceTxnID:  txn.ID,
		}
		entry.Batches = append(entry.Batches, batch)
		result.Batch = &batch
	}
	entry.UpdatedAt = now

	if err := s.commit(ctx, entry, txn); err != nil {
		release()
		return ReceiveResult{}, err
	}
	result.Entry = entry
	return result, nil
}

// DispatchInput describes an outbound consumption.
type DispatchInput struct {
	ComponentID         uuid.UUID `validate:"required"`
	VariantKey          string
	IsCuttable          bool
	Qty                 float64 `validate:"gt=0"`
	PreferredLocationID *uuid.UUID
	PlannedCuts         []PlannedCut
	Actor               string `validate:"required"`
	ActorIsAdmin        bool
	RefType             string
	RefID               string
	CustomerID          string
	Purpose             Purpose
	IdempotencyKey      string
}

// DispatchResult carries the mutated entry and the OUT transaction with
// its full consumption trace.
type DispatchResult struct {
	Entry StockEntry
	Txn   Transaction
}

// Dispatch consumes stock via the allocation engine and appends an OUT
// transaction carrying the trace so the movement can be reversed exactly.
func (s *Service) Dispatch(ctx context.Context, input DispatchInput) (DispatchResult, error) {
	if err := s.validate.Struct(input); err != nil {
		return DispatchResult{}, fmt.Errorf("ledger: dispatch input: %w", err)
	}
	release, err := s.claimKey(ctx, input.IdempotencyKey)
	if err != nil {
		return DispatchResult{}, err
	}
	variantKey := input.VariantKey
	if variantKey == "" {
		variantKey = catalog.DefaultVariantKey
	}
	unlock := s.locks.Acquire(input.ComponentID.String(), variantKey)
	defer unlock()

	entry, err := s.loadOrInit(ctx, input.ComponentID, variantKey, input.IsCuttable)
	if err != nil {
		release()
		return DispatchResult{}, err
	}

	now := time.Now().UTC()
	txn := Transaction{
		ID:             uuid.New(),
		Type:           TxnOut,
		ComponentID:    input.ComponentID,
		VariantKey:     variantKey,
		Qty:            input.Qty,
		IsCuttable:     input.IsCuttable,
		Purpose:        input.Purpose,
		RefType:        input.RefType,
		RefID:          input.RefID,
		CustomerID:     input.CustomerID,
		CreatedBy:      input.Actor,
		CreatedByAdmin: input.ActorIsAdmin,
		CreatedAt:      now,
	}
	txn.Purpose = InferPurpose(txn)

	if input.IsCuttable {
		entry, txn, err = s.dispatchCuttable(entry, txn, input, now)
	} else {
		entry, txn, err = s.dispatchDiscrete(entry, txn, input)
	}
	if err != nil {
		release()
		return DispatchResult{}, err
	}
	entry.UpdatedAt = now

	if err := s.commit(ctx, entry, txn); err != nil {
		release()
		return DispatchResult{}, err
	}
	return DispatchResult{Entry: entry, Txn: txn}, nil
}

func (s *Service) dispatchDiscrete(entry StockEntry, txn Transaction, input DispatchInput) (StockEntry, Transaction, error) {
	alloc, err := ConsumeDiscrete(entry, input.Qty, input.PreferredLocationID)
	if err != nil {
		return entry, txn, err
	}
	txn.BatchConsumptions = alloc.Batches
	txn.LocationConsumptions = alloc.Locations
	entry = alloc.Entry
	if txn.Purpose == PurposeDispatch {
		for _, bc := range alloc.Batches {
			for i := range entry.Batches {
				if entry.Batches[i].ID == bc.BatchID {
					entry.Batches[i].UsedByTxnIDs = markUsed(entry.Batches[i].UsedByTxnIDs, txn.ID)
				}
			}
		}
	}
	return entry, txn, nil
}

func (s *Service) dispatchCuttable(entry StockEntry, txn Transaction, input DispatchInput, now time.Time) (StockEntry, Transaction, error) {
	var lots []Lot
	var consumption []LotConsumption
	if len(input.PlannedCuts) > 0 {
		lots, consumption = ConsumePlannedCuts(entry.Lots, input.PlannedCuts)
		total := 0.0
		for _, lc := range consumption {
			total += lc.Ft
		}
		txn.Qty = total
	} else {
		alloc := ConsumeCuttable(entry.Lots, input.Qty)
		if !alloc.OK {
			return entry, txn, &InsufficientStockError{
				ComponentID: entry.ComponentID,
				VariantKey:  entry.VariantKey,
				Requested:   input.Qty,
				Available:   input.Qty - alloc.ShortfallFt,
			}
		}
		lots, consumption = alloc.Lots, alloc.Consumption
	}
	for i := range consumption {
		consumption[i].TxnID = txn.ID
		consumption[i].At = now
	}
	for _, lc := range consumption {
		for i := range lots {
			if lots[i].ID == lc.LotID {
				lots[i].Consumptions = append(lots[i].Consumptions, lc)
				if txn.Purpose == PurposeDispatch {
					lots[i].UsedByTxnIDs = markUsed(lots[i].UsedByTxnIDs, txn.ID)
				}
			}
		}
	}
	entry.Lots = lots
	txn.LotConsumptions = consumption
	return entry, txn, nil
}

// TransferInput describes a MOVE between locations.
type TransferInput struct {
	ComponentID    uuid.UUID `validate:"required"`
	VariantKey     string
	IsCuttable     bool
	Qty            float64   `validate:"gt=0"`
	FromLocationID uuid.UUID `validate:"required"`
	ToLocationID   uuid.UUID `validate:"required"`
	Actor          string    `validate:"required"`
	ActorIsAdmin   bool
	IdempotencyKey string
}

// Transfer relocates stock, consuming at the source location only and
// recreating the quantity at the destination. Appends a MOVE transaction.
func (s *Service) Transfer(ctx context.Context, input TransferInput) (DispatchResult, error) {
	if err := s.validate.Struct(input); err != nil {
		return DispatchResult{}, fmt.Errorf("ledger: transfer input: %w", err)
	}
	if input.FromLocationID == input.ToLocationID {
		return DispatchResult{}, errors.New("ledger: transfer requires distinct locations")
	}
	release, err := s.claimKey(ctx, input.IdempotencyKey)
	if err != nil {
		return DispatchResult{}, err
	}
	variantKey := input.VariantKey
	if variantKey == "" {
		variantKey = catalog.DefaultVariantKey
	}
	unlock := s.locks.Acquire(input.ComponentID.String(), variantKey)
	defer unlock()

	entry, err := s.loadOrInit(ctx, input.ComponentID, variantKey, input.IsCuttable)
	if err != nil {
		release()
		return DispatchResult{}, err
	}

	now := time.Now().UTC()
	txn := Transaction{
		ID:             uuid.New(),
		Type:           TxnMove,
		ComponentID:    input.ComponentID,
		VariantKey:     variantKey,
		Qty:            input.Qty,
		IsCuttable:     input.IsCuttable,
		Purpose:        PurposeTransfer,
		FromLocationID: input.FromLocationID,
		ToLocationID:   input.ToLocationID,
		CreatedBy:      input.Actor,
		CreatedByAdmin: input.ActorIsAdmin,
		CreatedAt:      now,
	}

	if input.IsCuttable {
		atSource := entry.OnHandAt(input.FromLocationID)
		if atSource+qtyEpsilon < input.Qty {
			release()
			return DispatchResult{}, &InsufficientStockAtLocationError{
				ComponentID: entry.ComponentID,
				VariantKey:  entry.VariantKey,
				LocationID:  input.FromLocationID,
				Requested:   input.Qty,
				Available:   atSource,
			}
		}
		var source, rest []Lot
		for _, lot := range entry.Lots {
			if lot.LocationID == input.FromLocationID {
				source = append(source, lot)
			} else {
				rest = append(rest, lot)
			}
		}
		alloc := ConsumeCuttable(source, input.Qty)
		for i := range alloc.Consumption {
			alloc.Consumption[i].TxnID = txn.ID
			alloc.Consumption[i].At = now
		}
		for _, lc := range alloc.Consumption {
			for i := range alloc.Lots {
				if alloc.Lots[i].ID == lc.LotID {
					alloc.Lots[i].Consumptions = append(alloc.Lots[i].Consumptions, lc)
				}
			}
		}
		txn.LotConsumptions = alloc.Consumption
		entry.Lots = append(rest, alloc.Lots...)
		entry.Lots = append(entry.Lots, Lot{
			ID:          uuid.New(),
			OriginalFt:  input.Qty,
			RemainingFt: input.Qty,
			LocationID:  input.ToLocationID,
			CreatedBy:   input.Actor,
			CreatedAt:   now,
		})
	} else {
		alloc, err := ConsumeDiscrete(entry, input.Qty, &input.FromLocationID)
		if err != nil {
			release()
			return DispatchResult{}, err
		}
		entry = alloc.Entry
		txn.BatchConsumptions = alloc.Batches
		txn.LocationConsumptions = alloc.Locations
		entry.Batches = append(entry.Batches, Batch{
			ID:           uuid.New(),
			LocationID:   input.ToLocationID,
			RemainingQty: input.Qty,
			CreatedBy:    input.Actor,
			CreatedAt:    now,
			SourceTxnID:  txn.ID,
		})
	}
	entry.UpdatedAt = now

	if err := s.commit(ctx, entry, txn); err != nil {
		release()
		return DispatchResult{}, err
	}
	return DispatchResult{Entry: entry, Txn: txn}, nil
}

// ReverseDispatch exactly undoes the physical effect of the given OUT
// transactions and clears their usage marks, appending a reversal IN
// transaction per source and linking the pair. Already-reversed or voided
// transactions are skipped.
func (s *Service) ReverseDispatch(ctx context.Context, sourceTxnIDs []uuid.UUID, actor string) ([]Transaction, error) {
	var reversals []Transaction
	for _, id := range sourceTxnIDs {
		source, err := s.repo.GetTransaction(ctx, id)
		if err != nil {
			return reversals, err
		}
		if source.Type != TxnOut || !source.Active() {
			continue
		}
		reversal, err := s.reverseOne(ctx, source, actor)
		if err != nil {
			return reversals, err
		}
		reversals = append(reversals, reversal)
	}
	return reversals, nil
}

func (s *Service) reverseOne(ctx context.Context, source Transaction, actor string) (Transaction, error) {
	unlock := s.locks.Acquire(source.ComponentID.String(), source.VariantKey)
	defer unlock()

	entry, err := s.loadOrInit(ctx, source.ComponentID, source.VariantKey, source.IsCuttable)
	if err != nil {
		return Transaction{}, err
	}

	now := time.Now().UTC()
	for _, lc := range source.LotConsumptions {
		for i := range entry.Lots {
			if entry.Lots[i].ID != lc.LotID {
				continue
			}
			entry.Lots[i].RemainingFt += lc.Ft
			if entry.Lots[i].RemainingFt > entry.Lots[i].OriginalFt {
				entry.Lots[i].RemainingFt = entry.Lots[i].OriginalFt
			}
			kept := entry.Lots[i].Consumptions[:0]
			for _, c := range entry.Lots[i].Consumptions {
				if c.TxnID != source.ID {
					kept = append(kept, c)
				}
			}
			entry.Lots[i].Consumptions = kept
		}
	}
	for _, bc := range source.BatchConsumptions {
		restored := false
		for i := range entry.Batches {
			if entry.Batches[i].ID == bc.BatchID {
				entry.Batches[i].RemainingQty += bc.Qty
				restored = true
				break
			}
		}
		if !restored {
			// The batch was pruned at zero; revive it under its original id
			// and creation time so FIFO ordering survives the round trip.
			entry.Batches = append(entry.Batches, Batch{
				ID:           bc.BatchID,
				LocationID:   bc.LocationID,
				RemainingQty: bc.Qty,
				CreatedBy:    actor,
				CreatedAt:    source.CreatedAt,
				SourceTxnID:  source.ID,
			})
		}
	}
	entry = s.clearUsageMarks(ctx, entry, source.ID)
	entry.UpdatedAt = now

	reversal := Transaction{
		ID:             uuid.New(),
		Type:           TxnIn,
		ComponentID:    source.ComponentID,
		VariantKey:     source.VariantKey,
		Qty:            source.Qty,
		IsCuttable:     source.IsCuttable,
		Purpose:        PurposeAdjustment,
		RefType:        "reversal",
		RefID:          source.ID.String(),
		CreatedBy:      actor,
		CreatedByAdmin: true,
		CreatedAt:      now,
		ReversesTxnID:  &source.ID,
	}

	if err := s.commit(ctx, entry, reversal); err != nil {
		return Transaction{}, err
	}

	source.ReversedByTxnID = &reversal.ID
	if err := s.repo.UpdateTransactionMarkers(ctx, source); err != nil {
		return Transaction{}, err
	}
	return reversal, nil
}

// clearUsageMarks removes the reversed transaction's marks and prunes any
// stale marks whose owning transaction is no longer an active customer
// dispatch. A lot or batch keeps its mark while any other live dispatch
// still references it.
func (s *Service) clearUsageMarks(ctx context.Context, entry StockEntry, reversedTxnID uuid.UUID) StockEntry {
	live := func(id uuid.UUID) bool {
		if id == reversedTxnID {
			return false
		}
		txn, err := s.repo.GetTransaction(ctx, id)
		if err != nil {
			return true
		}
		return txn.Active() && txn.Purpose == PurposeDispatch
	}
	for i := range entry.Lots {
		kept := entry.Lots[i].UsedByTxnIDs[:0]
		for _, id := range entry.Lots[i].UsedByTxnIDs {
			if live(id) {
				kept = append(kept, id)
			}
		}
		entry.Lots[i].UsedByTxnIDs = kept
	}
	for i := range entry.Batches {
		kept := entry.Batches[i].UsedByTxnIDs[:0]
		for _, id := range entry.Batches[i].UsedByTxnIDs {
			if live(id) {
				kept = append(kept, id)
			}
		}
		entry.Batches[i].UsedByTxnIDs = kept
	}
	return entry
}

// ReleaseUsageMarks clears usage marks for the given transactions without
// restoring quantities, for callers voiding a dispatch that never left the
// warehouse.
func (s *Service) ReleaseUsageMarks(ctx context.Context, txnIDs []uuid.UUID) error {
	for _, id := range txnIDs {
		txn, err := s.repo.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		unlock := s.locks.Acquire(txn.ComponentID.String(), txn.VariantKey)
		entry, err := s.loadOrInit(ctx, txn.ComponentID, txn.VariantKey, txn.IsCuttable)
		if err != nil {
			unlock()
			return err
		}
		entry = s.clearUsageMarks(ctx, entry, id)
		entry.UpdatedAt = time.Now().UTC()
		err = s.repo.SaveEntry(ctx, entry)
		unlock()
		if err != nil {
			return err
		}
	}
	return nil
}

// VoidTransaction marks a transaction voided. History is never removed.
func (s *Service) VoidTransaction(ctx context.Context, txnID uuid.UUID, actor string) error {
	txn, err := s.repo.GetTransaction(ctx, txnID)
	if err != nil {
		return err
	}
	if txn.Voided {
		return nil
	}
	txn.Voided = true
	if err := s.repo.UpdateTransactionMarkers(ctx, txn); err != nil {
		return err
	}
	s.recordAudit(ctx, actor, "ledger:void", txn)
	return nil
}

// RecordEdit appends a field-level correction to the sidecar log.
func (s *Service) RecordEdit(ctx context.Context, txnID uuid.UUID, field, oldValue, newValue, actor string) error {
	if txnID == uuid.Nil {
		return shared.ErrMissingIdentity
	}
	return s.repo.InsertEdit(ctx, TransactionEdit{
		TxnID:    txnID,
		Field:    field,
		OldValue: oldValue,
		NewValue: newValue,
		EditedBy: actor,
		EditedAt: time.Now().UTC(),
	})
}

// TransactionsSince lists transactions created at or after the cutoff.
func (s *Service) TransactionsSince(ctx context.Context, since time.Time) ([]Transaction, error) {
	return s.repo.ListTransactionsSince(ctx, since)
}

// ListEntries exposes all stock entries for integrity scans.
func (s *Service) ListEntries(ctx context.Context) ([]StockEntry, error) {
	return s.repo.ListEntries(ctx)
}

func (s *Service) loadOrInit(ctx context.Context, componentID uuid.UUID, variantKey string, isCuttable bool) (StockEntry, error) {
	entry, err := s.repo.GetEntry(ctx, componentID, variantKey)
	if errors.Is(err, ErrEntryNotFound) {
		return NewStockEntry(componentID, variantKey, isCuttable), nil
	}
	if err != nil {
		return StockEntry{}, err
	}
	return Normalize(entry, time.Now().UTC()), nil
}

// commit persists the aggregate and appends the transaction. The entry
// write wins: a failed transaction insert is surfaced and logged, never
// swallowed.
func (s *Service) commit(ctx context.Context, entry StockEntry, txn Transaction) error {
	if err := s.repo.SaveEntry(ctx, entry); err != nil {
		s.logger.Error("save stock entry", slog.Any("error", err),
			slog.String("component", entry.ComponentID.String()), slog.String("variant", entry.VariantKey))
		return err
	}
	if err := s.repo.InsertTransaction(ctx, txn); err != nil {
		s.logger.Error("insert transaction", slog.Any("error", err), slog.String("txn", txn.ID.String()))
		return err
	}
	s.cache.Bump(ctx)
	s.recordAudit(ctx, txn.CreatedBy, fmt.Sprintf("ledger:%s", txn.Type), txn)
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actor, action string, txn Transaction) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Actor:    actor,
		Action:   action,
		Entity:   "ledger_txn",
		EntityID: txn.ID.String(),
		Meta: map[string]any{
			"component_id": txn.ComponentID.String(),
			"variant_key":  txn.VariantKey,
			"qty":          txn.Qty,
			"purpose":      string(txn.Purpose),
		},
	})
}
