package bracket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"gttbracket/internal/gateway/broker"
)

// ErrPlanNotFound is returned for operations on an unknown plan identifier.
var ErrPlanNotFound = errors.New("plan not found")

// PlanStore persists plans between restarts.
type PlanStore interface {
	Get(ctx context.Context, id string) (*Plan, error)
	Save(ctx context.Context, p *Plan) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*Plan, error)
}

// OpsRecorder appends one row per state-changing operation to the audit
// trail. Recording failures are logged by the implementation and never fail
// the operation itself.
type OpsRecorder interface {
	Record(ctx context.Context, planID, action, detail string)
}

// Service is the single entry point for plan mutation. It serializes all
// operations on the same plan so placement, scans, and manual overrides
// never interleave.
type Service struct {
	store PlanStore
	orch  *Orchestrator
	eng   *Engine
	ops   OpsRecorder

	locks sync.Map // plan id -> *sync.Mutex
}

func NewService(store PlanStore, gw broker.Gateway, placeDelay time.Duration, ops OpsRecorder) *Service {
	return &Service{
		store: store,
		orch:  NewOrchestrator(gw, placeDelay),
		eng:   NewEngine(gw),
		ops:   ops,
	}
}

func (s *Service) lock(id string) func() {
	mu, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

// CreateRequest carries the user's plan definition. Leg statuses are
// ignored; a new plan always starts NOT_PLACED.
type CreateRequest struct {
	Symbol        string
	Exchange      string
	Side          Side
	EntryPrice    float64
	TotalQuantity int
	Stops         []Leg
	Targets       []Leg
	ProductType   string
	Remarks       string
}

// Create validates and persists a new plan. Warnings (quantity-sum
// mismatches) come back alongside the plan; they never block creation.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Plan, []string, error) {
	p, warnings, err := NewPlan(req.Symbol, req.Exchange, req.Side, req.EntryPrice, req.TotalQuantity, req.Stops, req.Targets)
	if err != nil {
		return nil, nil, err
	}
	p.ProductType = req.ProductType
	p.Remarks = req.Remarks
	if err := s.store.Save(ctx, p); err != nil {
		return nil, nil, fmt.Errorf("saving plan: %w", err)
	}
	s.ops.Record(ctx, p.ID, "create", fmt.Sprintf("%s %s x%d", p.Side, p.Symbol, p.TotalQuantity))
	return p, warnings, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Plan, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]*Plan, error) {
	return s.store.List(ctx)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	defer s.lock(id)()
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.ops.Record(ctx, id, "delete", "")
	return nil
}

// Place runs a full placement of the plan's legs with the broker.
func (s *Service) Place(ctx context.Context, id string) (*Plan, int, int, error) {
	defer s.lock(id)()
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, 0, 0, err
	}
	placed, failed, err := s.orch.PlaceAll(ctx, p)
	if saveErr := s.store.Save(ctx, p); saveErr != nil && err == nil {
		err = fmt.Errorf("saving plan after placement: %w", saveErr)
	}
	s.ops.Record(ctx, id, "place", fmt.Sprintf("placed=%d failed=%d", placed, failed))
	return p, placed, failed, err
}

// Scan reconciles the plan against the broker's pending-alert book.
func (s *Service) Scan(ctx context.Context, id string) (*Plan, *ScanReport, error) {
	defer s.lock(id)()
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	report, err := s.eng.Scan(ctx, p)
	if err != nil {
		return nil, nil, fmt.Errorf("scanning plan %s: %w", id, err)
	}
	if err := s.store.Save(ctx, p); err != nil {
		return nil, nil, fmt.Errorf("saving plan after scan: %w", err)
	}
	if detail, err := json.Marshal(report); err == nil {
		s.ops.Record(ctx, id, "scan", string(detail))
	}
	return p, report, nil
}

// ForceTrigger marks a leg triggered without touching the broker.
func (s *Service) ForceTrigger(ctx context.Context, id, label string) (*Plan, error) {
	defer s.lock(id)()
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	l, err := ForceTrigger(p, label)
	if err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("saving plan after force-trigger: %w", err)
	}
	s.ops.Record(ctx, id, "force_trigger", l.Label)
	return p, nil
}

// ForceCancel cancels one leg's alert on the user's behalf.
func (s *Service) ForceCancel(ctx context.Context, id, label string) (*Plan, error) {
	defer s.lock(id)()
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	l, err := s.eng.ForceCancel(ctx, p, label)
	if err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("saving plan after force-cancel: %w", err)
	}
	s.ops.Record(ctx, id, "force_cancel", fmt.Sprintf("%s -> %s", l.Label, l.Status))
	return p, nil
}

// CancelAll withdraws every live alert of the plan.
func (s *Service) CancelAll(ctx context.Context, id string) (*Plan, int, error) {
	defer s.lock(id)()
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	cancelled := s.eng.CancelAll(ctx, p)
	if err := s.store.Save(ctx, p); err != nil {
		return nil, 0, fmt.Errorf("saving plan after cancel-all: %w", err)
	}
	s.ops.Record(ctx, id, "cancel_all", fmt.Sprintf("cancelled=%d", cancelled))
	return p, cancelled, nil
}
