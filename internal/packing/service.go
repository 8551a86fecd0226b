package packing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/suryaepc/suryaepc/internal/catalog"
	"github.com/suryaepc/suryaepc/internal/formula"
	"github.com/suryaepc/suryaepc/internal/ledger"
	"github.com/suryaepc/suryaepc/internal/shared"
)

// CatalogPort is the slice of the catalog the expander needs.
type CatalogPort interface {
	GetComponent(ctx context.Context, id uuid.UUID) (catalog.Component, error)
	GetKit(ctx context.Context, id uuid.UUID) (catalog.Kit, error)
}

// LedgerPort reverses the physical side of a cancelled dispatch.
type LedgerPort interface {
	ReverseDispatch(ctx context.Context, sourceTxnIDs []uuid.UUID, actor string) ([]ledger.Transaction, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service owns packing list lifecycle: creation from a sales document,
// dispatch accumulation and reversal.
type Service struct {
	repo    RepositoryPort
	catalog CatalogPort
	ledger  LedgerPort
	audit   AuditPort
	logger  *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, cat CatalogPort, led LedgerPort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, catalog: cat, ledger: led, audit: audit, logger: logger}
}

// CreateFromDocument expands a sales document into a packing list.
// Idempotent per document id: re-invocation returns the existing list.
func (s *Service) CreateFromDocument(ctx context.Context, doc Document) (PackingList, error) {
	if doc.ID == "" {
		return PackingList{}, shared.ErrMissingIdentity
	}
	existing, err := s.repo.GetByDocument(ctx, doc.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrListNotFound) {
		return PackingList{}, err
	}

	items, err := s.expand(ctx, doc)
	if err != nil {
		return PackingList{}, err
	}

	now := time.Now().UTC()
	list := PackingList{
		ID:            uuid.New(),
		DocumentID:    doc.ID,
		SystemKwp:     doc.SystemCapacityKwp,
		RequiredItems: items,
		Status:        StatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	list.recomputeStatus()

	if err := s.repo.Insert(ctx, list); err != nil {
		if errors.Is(err, errDuplicateDocument) {
			// Lost a concurrent create; the winner's list is the list.
			return s.repo.GetByDocument(ctx, doc.ID)
		}
		return PackingList{}, err
	}
	s.recordAudit(ctx, "system", "packing:create", list)
	return list, nil
}

func (s *Service) expand(ctx context.Context, doc Document) ([]RequiredItem, error) {
	if len(doc.Lines) == 0 {
		return nil, ErrNoStructuredItems
	}
	var items []RequiredItem
	for _, line := range doc.Lines {
		switch line.Type {
		case LineKit:
			kit, err := s.catalog.GetKit(ctx, line.RefID)
			if err != nil {
				return nil, fmt.Errorf("packing: kit %s: %w", line.RefID, err)
			}
			for _, bom := range kit.Lines {
				item, err := s.expandBOMLine(ctx, bom, line.Qty, doc.SystemCapacityKwp)
				if err != nil {
					return nil, err
				}
				items = append(items, item)
			}
		case LineComponent:
			comp, err := s.catalog.GetComponent(ctx, line.RefID)
			if err != nil {
				return nil, fmt.Errorf("packing: component %s: %w", line.RefID, err)
			}
			item := RequiredItem{
				LineID:        uuid.New(),
				ComponentID:   comp.ID,
				ComponentName: comp.Name,
				VariantID:     line.VariantID,
				Mode:          catalog.ModeFixedQty,
				IsCuttable:    comp.IsCuttable,
			}
			if comp.IsCuttable {
				item.RequiredFt = line.Qty
			} else {
				item.RequiredQty = line.Qty
			}
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return nil, ErrNoStructuredItems
	}
	return items, nil
}

func (s *Service) expandBOMLine(ctx context.Context, bom catalog.BOMLine, kitQty, kwp float64) (RequiredItem, error) {
	comp, err := s.catalog.GetComponent(ctx, bom.ComponentID)
	if err != nil {
		return RequiredItem{}, fmt.Errorf("packing: component %s: %w", bom.ComponentID, err)
	}
	item := RequiredItem{
		LineID:        uuid.New(),
		ComponentID:   comp.ID,
		ComponentName: comp.Name,
		Mode:          bom.Mode,
		IsCuttable:    comp.IsCuttable,
	}
	switch bom.Mode {
	case catalog.ModeFixedQty:
		item.setRequired(bom.Qty * kitQty)
	case catalog.ModeCapacityQty:
		var qty float64
		if bom.Formula != "" {
			qty, err = formula.Eval(bom.Formula, kwp)
			if err != nil {
				return RequiredItem{}, &InvalidFormulaError{
					ComponentID: comp.ID, ComponentName: comp.Name, Expr: bom.Formula, Err: err,
				}
			}
		} else {
			// No slab matching the system size means nothing is required.
			qty, _ = catalog.QtyForKwp(bom.Slabs, kwp)
		}
		item.setRequired(qty * kitQty)
	case catalog.ModeRuleFulfillment:
		target, err := formula.Eval(bom.TargetWpFormula, kwp)
		if err != nil {
			return RequiredItem{}, &InvalidFormulaError{
				ComponentID: comp.ID, ComponentName: comp.Name, Expr: bom.TargetWpFormula, Err: err,
			}
		}
		item.TargetWp = target * kitQty
		item.OverbuildPct = bom.OverbuildPct
		item.VariantWpBreakdown = map[string]float64{}
	case catalog.ModeUnfixedManual:
		item.ManualNote = bom.Note
	default:
		return RequiredItem{}, fmt.Errorf("packing: unknown fulfillment mode %q", bom.Mode)
	}
	return item, nil
}

func (it *RequiredItem) setRequired(amount float64) {
	if it.IsCuttable {
		it.RequiredFt = amount
	} else {
		it.RequiredQty = amount
	}
}

// ApplyDispatch accumulates one trip's rows onto the list and appends a
// single dispatch log entry. A row that resolves to no line is skipped and
// reported; the remaining rows still apply, so the returned error can be
// non-nil alongside a saved list.
func (s *Service) ApplyDispatch(ctx context.Context, listID uuid.UUID, challanID string, rows []DispatchItem, actor string) (PackingList, error) {
	if challanID == "" {
		return PackingList{}, shared.ErrMissingIdentity
	}
	if len(rows) == 0 {
		return PackingList{}, errors.New("packing: dispatch has no rows")
	}
	list, err := s.repo.Get(ctx, listID)
	if err != nil {
		return PackingList{}, err
	}

	var applied []DispatchItem
	var rowErrs []error
	for _, row := range rows {
		idx := list.resolveLine(row)
		if idx < 0 {
			rowErrs = append(rowErrs, &UnresolvedLineError{LineID: row.LineID, ComponentID: row.ComponentID})
			continue
		}
		list.RequiredItems[idx].accumulate(row)
		row.LineID = list.RequiredItems[idx].LineID
		applied = append(applied, row)
	}
	if len(applied) == 0 {
		return list, errors.Join(rowErrs...)
	}

	now := time.Now().UTC()
	list.DispatchLog = append(list.DispatchLog, DispatchLogEntry{
		ChallanID: challanID,
		At:        now,
		Items:     applied,
	})
	list.UpdatedAt = now
	list.recomputeStatus()

	if err := s.repo.Save(ctx, list); err != nil {
		return PackingList{}, err
	}
	s.recordAudit(ctx, actor, "packing:dispatch", list)
	return list, errors.Join(rowErrs...)
}

// resolveLine matches a dispatch row to a required line, preferring the
// explicit line id and falling back to the first component match.
func (l *PackingList) resolveLine(row DispatchItem) int {
	if row.LineID != uuid.Nil {
		for i := range l.RequiredItems {
			if l.RequiredItems[i].LineID == row.LineID {
				return i
			}
		}
	}
	if row.ComponentID != uuid.Nil {
		for i := range l.RequiredItems {
			if l.RequiredItems[i].ComponentID == row.ComponentID {
				return i
			}
		}
	}
	return -1
}

// accumulate applies a dispatch row to the line's counters per its mode.
func (it *RequiredItem) accumulate(row DispatchItem) {
	switch it.Mode {
	case catalog.ModeFixedQty, catalog.ModeCapacityQty:
		if it.IsCuttable {
			it.DispatchedFt += row.Ft
		} else {
			it.DispatchedQty += row.Qty
		}
	case catalog.ModeRuleFulfillment:
		it.DispatchedWp += row.Wp
		if it.VariantWpBreakdown == nil {
			it.VariantWpBreakdown = map[string]float64{}
		}
		it.VariantWpBreakdown[catalog.VariantKeyFor(row.VariantID)] += row.Wp
		it.Fulfilled = it.DispatchedWp >= it.TargetWp
	case catalog.ModeUnfixedManual:
		it.DispatchedQty += row.Qty
		it.DispatchedFt += row.Ft
		if row.ManualNote != "" {
			it.ManualNote = row.ManualNote
		}
	}
}

// subtract undoes a previously applied dispatch row, clamping at zero.
func (it *RequiredItem) subtract(row DispatchItem) {
	clamp := func(v float64) float64 {
		if v < 0 {
			return 0
		}
		return v
	}
	switch it.Mode {
	case catalog.ModeFixedQty, catalog.ModeCapacityQty:
		if it.IsCuttable {
			it.DispatchedFt = clamp(it.DispatchedFt - row.Ft)
		} else {
			it.DispatchedQty = clamp(it.DispatchedQty - row.Qty)
		}
	case catalog.ModeRuleFulfillment:
		it.DispatchedWp = clamp(it.DispatchedWp - row.Wp)
		key := catalog.VariantKeyFor(row.VariantID)
		if it.VariantWpBreakdown != nil {
			it.VariantWpBreakdown[key] = clamp(it.VariantWpBreakdown[key] - row.Wp)
			if it.VariantWpBreakdown[key] == 0 {
				delete(it.VariantWpBreakdown, key)
			}
		}
		it.Fulfilled = it.DispatchedWp >= it.TargetWp
	case catalog.ModeUnfixedManual:
		it.DispatchedQty = clamp(it.DispatchedQty - row.Qty)
		it.DispatchedFt = clamp(it.DispatchedFt - row.Ft)
	}
}

// ReverseDispatch undoes the list-side effect of a cancelled challan and
// reverses its ledger transactions. Both halves belong together: counters
// without the physical reversal, or the other way round, leave the ledger
// inconsistent.
func (s *Service) ReverseDispatch(ctx context.Context, listID uuid.UUID, challanID string, sourceTxnIDs []uuid.UUID, actor string) (PackingList, error) {
	if challanID == "" {
		return PackingList{}, shared.ErrMissingIdentity
	}
	list, err := s.repo.Get(ctx, listID)
	if err != nil {
		return PackingList{}, err
	}

	kept := list.DispatchLog[:0]
	for _, entry := range list.DispatchLog {
		if entry.ChallanID != challanID {
			kept = append(kept, entry)
			continue
		}
		for _, row := range entry.Items {
			if idx := list.resolveLine(row); idx >= 0 {
				list.RequiredItems[idx].subtract(row)
			}
		}
	}
	list.DispatchLog = kept
	list.UpdatedAt = time.Now().UTC()
	list.recomputeStatus()

	if err := s.repo.Save(ctx, list); err != nil {
		return PackingList{}, err
	}

	if s.ledger != nil && len(sourceTxnIDs) > 0 {
		if _, err := s.ledger.ReverseDispatch(ctx, sourceTxnIDs, actor); err != nil {
			s.logger.Error("reverse ledger transactions", slog.Any("error", err),
				slog.String("challan", challanID), slog.String("list", list.ID.String()))
			return list, err
		}
	}
	s.recordAudit(ctx, actor, "packing:reverse", list)
	return list, nil
}

// Get loads a packing list by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (PackingList, error) {
	return s.repo.Get(ctx, id)
}

// GetByDocument loads the packing list for a sales document.
func (s *Service) GetByDocument(ctx context.Context, documentID string) (PackingList, error) {
	return s.repo.GetByDocument(ctx, documentID)
}

func (s *Service) recordAudit(ctx context.Context, actor, action string, list PackingList) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Actor:    actor,
		Action:   action,
		Entity:   "packing_list",
		EntityID: list.ID.String(),
		Meta: map[string]any{
			"document_id": list.DocumentID,
			"status":      string(list.Status),
		},
	})
}
