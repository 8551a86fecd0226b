package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/suryaepc/suryaepc/internal/formula"
)

// Service coordinates catalog maintenance. Reference data is archived, never
// hard-deleted, because ledger history keeps pointing at it.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// CreateComponent validates and stores a component.
func (s *Service) CreateComponent(ctx context.Context, c Component) (Component, error) {
	if strings.TrimSpace(c.Name) == "" {
		return Component{}, errors.New("catalog: component name is required")
	}
	if c.IsCuttable && c.MinIssueLengthFt < 0 {
		return Component{}, errors.New("catalog: min issue length must be >= 0")
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if err := s.repo.SaveComponent(ctx, c); err != nil {
		return Component{}, err
	}
	return c, nil
}

// ArchiveComponent marks a component archived.
func (s *Service) ArchiveComponent(ctx context.Context, id uuid.UUID) error {
	c, err := s.repo.GetComponent(ctx, id)
	if err != nil {
		return err
	}
	c.Archived = true
	return s.repo.SaveComponent(ctx, c)
}

// CreateVariant validates and stores a variant.
func (s *Service) CreateVariant(ctx context.Context, v Variant) (Variant, error) {
	comp, err := s.repo.GetComponent(ctx, v.ComponentID)
	if err != nil {
		return Variant{}, fmt.Errorf("catalog: variant component: %w", err)
	}
	if !comp.HasVariants {
		return Variant{}, fmt.Errorf("catalog: component %s does not take variants", comp.Name)
	}
	if strings.TrimSpace(v.Name) == "" {
		return Variant{}, errors.New("catalog: variant name is required")
	}
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	if err := s.repo.SaveVariant(ctx, v); err != nil {
		return Variant{}, err
	}
	return v, nil
}

// CreateLocation stores a storage location.
func (s *Service) CreateLocation(ctx context.Context, l Location) (Location, error) {
	if strings.TrimSpace(l.Name) == "" {
		return Location{}, errors.New("catalog: location name is required")
	}
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	if err := s.repo.SaveLocation(ctx, l); err != nil {
		return Location{}, err
	}
	return l, nil
}

// ArchiveLocation marks a location archived.
func (s *Service) ArchiveLocation(ctx context.Context, id uuid.UUID) error {
	l, err := s.repo.GetLocation(ctx, id)
	if err != nil {
		return err
	}
	l.Archived = true
	return s.repo.SaveLocation(ctx, l)
}

// SaveKit validates BOM lines, including formula grammar, before storing.
func (s *Service) SaveKit(ctx context.Context, k Kit) (Kit, error) {
	if strings.TrimSpace(k.Name) == "" {
		return Kit{}, errors.New("catalog: kit name is required")
	}
	for i, line := range k.Lines {
		if line.ComponentID == uuid.Nil {
			return Kit{}, fmt.Errorf("catalog: kit line %d missing component", i)
		}
		switch line.Mode {
		case ModeFixedQty:
			if line.Qty <= 0 {
				return Kit{}, fmt.Errorf("catalog: kit line %d needs a positive qty", i)
			}
		case ModeCapacityQty:
			if line.Formula == "" && len(line.Slabs) == 0 {
				return Kit{}, fmt.Errorf("catalog: kit line %d needs a formula or slab table", i)
			}
			if line.Formula != "" {
				if err := formula.Validate(line.Formula); err != nil {
					return Kit{}, fmt.Errorf("catalog: kit line %d: %w", i, err)
				}
			}
		case ModeRuleFulfillment:
			if line.TargetWpFormula == "" {
				return Kit{}, fmt.Errorf("catalog: kit line %d needs a target wattage formula", i)
			}
			if err := formula.Validate(line.TargetWpFormula); err != nil {
				return Kit{}, fmt.Errorf("catalog: kit line %d: %w", i, err)
			}
			if line.OverbuildPct < 0 {
				return Kit{}, fmt.Errorf("catalog: kit line %d overbuild must be >= 0", i)
			}
		case ModeUnfixedManual:
			// Quantity decided at dispatch time.
		default:
			return Kit{}, fmt.Errorf("catalog: kit line %d has unknown mode %q", i, line.Mode)
		}
	}
	if k.ID == uuid.Nil {
		k.ID = uuid.New()
	}
	if k.CreatedAt.IsZero() {
		k.CreatedAt = time.Now().UTC()
	}
	if err := s.repo.SaveKit(ctx, k); err != nil {
		return Kit{}, err
	}
	return k, nil
}

// GetComponent fetches a component by id.
func (s *Service) GetComponent(ctx context.Context, id uuid.UUID) (Component, error) {
	return s.repo.GetComponent(ctx, id)
}

// GetKit fetches a kit by id.
func (s *Service) GetKit(ctx context.Context, id uuid.UUID) (Kit, error) {
	return s.repo.GetKit(ctx, id)
}

// GetVariant fetches a variant by id.
func (s *Service) GetVariant(ctx context.Context, id uuid.UUID) (Variant, error) {
	return s.repo.GetVariant(ctx, id)
}

// ListLocations lists active locations.
func (s *Service) ListLocations(ctx context.Context) ([]Location, error) {
	return s.repo.ListLocations(ctx, false)
}
