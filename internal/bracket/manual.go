package bracket

import (
	"context"
	"errors"
	"fmt"

	"gttbracket/internal/logger"
)

// ErrLegNotFound is returned for overrides naming an unknown leg label.
var ErrLegNotFound = errors.New("leg not found")

// ForceTrigger marks a leg as triggered by hand, for brokers whose pending
// list cannot be read or when the user closed the position themselves. It
// touches no broker state; the accounting is identical to an inferred
// trigger, so a following Scan applies the same downstream adjustments.
// Forcing an already-triggered leg is a no-op.
func ForceTrigger(p *Plan, label string) (*Leg, error) {
	l, ok := p.Leg(label)
	if !ok {
		return nil, fmt.Errorf("plan %s leg %q: %w", p.ID, label, ErrLegNotFound)
	}
	if l.Status == StatusTriggered {
		return l, nil
	}
	l.Status = StatusTriggered
	p.recordExit(l.Quantity)
	logger.Infof("leg %s force-marked triggered, exited %d/%d", l.Label, p.ExitedQuantity, p.TotalQuantity)
	return l, nil
}

// ForceCancel cancels a single leg's alert at the user's request. The
// resulting status is CANCELLED_BY_USER so manager-driven and user-driven
// cancellations stay distinguishable.
func (e *Engine) ForceCancel(ctx context.Context, p *Plan, label string) (*Leg, error) {
	l, ok := p.Leg(label)
	if !ok {
		return nil, fmt.Errorf("plan %s leg %q: %w", p.ID, label, ErrLegNotFound)
	}
	e.cancelLeg(ctx, l, StatusCancelledByUser)
	return l, nil
}

// CancelAll cancels every live leg of the plan and reports how many cancel
// requests succeeded. The plan itself stays in the store; the bracket can be
// re-placed later with PlaceAll.
func (e *Engine) CancelAll(ctx context.Context, p *Plan) int {
	cancelled := 0
	for _, l := range p.Legs() {
		if !l.Live() {
			continue
		}
		e.cancelLeg(ctx, l, StatusCancelledByManager)
		if l.Status == StatusCancelledByManager {
			cancelled++
		}
	}
	logger.Infof("cancel-all for %s: %d alerts cancelled", p.Symbol, cancelled)
	return cancelled
}
