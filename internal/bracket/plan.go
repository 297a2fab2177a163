package bracket

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Side is the direction of the original position, not of the child legs.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Plan aggregates all stop and target legs protecting one open position.
// All mutation goes through the orchestrator, the reconciliation engine, or
// the manual overrides; callers must not interleave operations on the same
// plan (single-writer discipline, enforced by Service).
type Plan struct {
	ID       string `json:"id"`
	Symbol   string `json:"symbol"`
	Exchange string `json:"exchange"`
	Side     Side   `json:"side"`

	EntryPrice    float64 `json:"entry_price"`
	TotalQuantity int     `json:"total_quantity"`

	Stops   []Leg `json:"stops"`
	Targets []Leg `json:"targets"`

	ProductType string `json:"product_type,omitempty"`
	Remarks     string `json:"remarks,omitempty"`

	// ExitedQuantity is monotonically non-decreasing over the plan's
	// lifetime; only PlaceAll (a full re-placement) resets it.
	ExitedQuantity int        `json:"exited_quantity"`
	PlacedAt       *time.Time `json:"placed_at,omitempty"`
}

// NewPlan builds a plan from user input. Quantity-sum mismatches between the
// legs and the position size are reported as warnings, never as errors: the
// user may intentionally under- or over-protect.
func NewPlan(symbol, exchange string, side Side, entryPrice float64, totalQty int, stops, targets []Leg) (*Plan, []string, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, nil, fmt.Errorf("trading symbol is required")
	}
	if side != SideBuy && side != SideSell {
		return nil, nil, fmt.Errorf("side must be BUY or SELL, got %q", side)
	}
	if totalQty <= 0 {
		return nil, nil, fmt.Errorf("total quantity must be positive, got %d", totalQty)
	}
	if len(stops) == 0 && len(targets) == 0 {
		return nil, nil, fmt.Errorf("plan needs at least one stop or target leg")
	}
	seen := make(map[string]struct{}, len(stops)+len(targets))
	for i := range stops {
		if err := checkLeg(&stops[i], KindStop, seen); err != nil {
			return nil, nil, err
		}
	}
	for i := range targets {
		if err := checkLeg(&targets[i], KindTarget, seen); err != nil {
			return nil, nil, err
		}
	}
	p := &Plan{
		ID:            uuid.NewString(),
		Symbol:        symbol,
		Exchange:      strings.ToUpper(strings.TrimSpace(exchange)),
		Side:          side,
		EntryPrice:    entryPrice,
		TotalQuantity: totalQty,
		Stops:         stops,
		Targets:       targets,
	}
	var warnings []string
	if sum := legQuantitySum(stops); len(stops) > 0 && sum != totalQty {
		warnings = append(warnings, fmt.Sprintf("stop quantities sum to %d, position size is %d", sum, totalQty))
	}
	if sum := legQuantitySum(targets); len(targets) > 0 && sum != totalQty {
		warnings = append(warnings, fmt.Sprintf("target quantities sum to %d, position size is %d", sum, totalQty))
	}
	return p, warnings, nil
}

func checkLeg(l *Leg, kind LegKind, seen map[string]struct{}) error {
	l.Label = strings.TrimSpace(l.Label)
	if l.Label == "" {
		return fmt.Errorf("leg label is required")
	}
	key := strings.ToUpper(l.Label)
	if _, dup := seen[key]; dup {
		return fmt.Errorf("duplicate leg label %s", l.Label)
	}
	seen[key] = struct{}{}
	if l.Price <= 0 {
		return fmt.Errorf("leg %s: price must be positive", l.Label)
	}
	if l.Quantity < 0 {
		return fmt.Errorf("leg %s: quantity cannot be negative", l.Label)
	}
	l.Kind = kind
	if l.Status == "" {
		l.Status = StatusNotPlaced
	}
	return nil
}

func legQuantitySum(legs []Leg) int {
	sum := 0
	for i := range legs {
		sum += legs[i].Quantity
	}
	return sum
}

// Legs walks stops then targets as mutable pointers.
func (p *Plan) Legs() []*Leg {
	out := make([]*Leg, 0, len(p.Stops)+len(p.Targets))
	for i := range p.Stops {
		out = append(out, &p.Stops[i])
	}
	for i := range p.Targets {
		out = append(out, &p.Targets[i])
	}
	return out
}

// Leg finds a leg by its label.
func (p *Plan) Leg(label string) (*Leg, bool) {
	label = strings.TrimSpace(label)
	for _, l := range p.Legs() {
		if strings.EqualFold(l.Label, label) {
			return l, true
		}
	}
	return nil, false
}

// RemainingQuantity is the portion of the position not yet closed by
// triggered legs, floored at zero.
func (p *Plan) RemainingQuantity() int {
	remaining := p.TotalQuantity - p.ExitedQuantity
	if remaining < 0 {
		return 0
	}
	return remaining
}

// recordExit accounts a confirmed (or forced) leg exit. ExitedQuantity only
// ever grows here.
func (p *Plan) recordExit(qty int) {
	if qty > 0 {
		p.ExitedQuantity += qty
	}
}
