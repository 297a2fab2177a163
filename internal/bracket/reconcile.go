package bracket

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"gttbracket/internal/gateway/broker"
	"gttbracket/internal/logger"
)

// Engine reconciles a plan against the broker's pending-alert book. The
// broker offers no trigger notification, so a live alert that vanished from
// the pending list is inferred to have fired.
type Engine struct {
	gw broker.Gateway
}

func NewEngine(gw broker.Gateway) *Engine {
	return &Engine{gw: gw}
}

// ScanReport summarizes one reconciliation pass by leg label.
type ScanReport struct {
	Triggered []string `json:"triggered,omitempty"`
	Kept      []string `json:"kept,omitempty"`
	Pruned    []string `json:"pruned,omitempty"`
	Swept     []string `json:"swept,omitempty"`
	Remaining int      `json:"remaining"`
}

// Scan runs one reconciliation pass: infer triggers from absence, re-fit the
// target ladder to the remaining exposure, and sweep every live leg once the
// position is flat. Only the pending-list fetch can fail the scan; cancel
// failures are absorbed into leg statuses so the pass always completes.
// Scanning an already-consistent plan is a no-op, so callers may re-run it
// freely.
func (e *Engine) Scan(ctx context.Context, p *Plan) (*ScanReport, error) {
	res, err := e.gw.List(ctx)
	if err != nil {
		return nil, err
	}
	active := broker.ActiveIDs(res)

	report := &ScanReport{}
	e.inferTriggers(p, active, report)
	e.fitTargets(ctx, p, report)
	e.sweepIfFlat(ctx, p, report)
	report.Remaining = p.RemainingQuantity()

	logger.Infof("scan %s: triggered=%d kept=%d pruned=%d swept=%d remaining=%d",
		p.Symbol, len(report.Triggered), len(report.Kept), len(report.Pruned), len(report.Swept), report.Remaining)
	return report, nil
}

// inferTriggers marks live legs whose alerts no longer appear in the pending
// book as triggered. KEEP legs are checked too: a kept target can fire
// between scans just like an active one. Each trigger is counted exactly
// once because a TRIGGERED leg is no longer live.
func (e *Engine) inferTriggers(p *Plan, active map[string]struct{}, report *ScanReport) {
	for _, l := range p.Legs() {
		if !l.Live() || l.AlertID == "" {
			continue
		}
		if _, pending := active[l.AlertID]; pending {
			continue
		}
		l.Status = StatusTriggered
		p.recordExit(l.Quantity)
		report.Triggered = append(report.Triggered, l.Label)
		logger.Infof("leg %s (alert %s) absent from pending book, inferred triggered", l.Label, l.AlertID)
	}
}

// fitTargets walks the target ladder in price order and keeps each live
// target whose quantity still fits the cumulative budget. Triggered targets
// earlier in the walk consume budget too: their quantity already left the
// position through the target side, so the ladder below them must shrink.
// The first live target that does not fit starts pruning: it and every live
// target after it are cancelled, even if a smaller later target would still
// have fit. Partial fills do not exist at this broker, so a half-fitting
// target must go entirely. KEEP targets are re-decided on every walk; a
// shrunken budget can evict a previously kept target.
func (e *Engine) fitTargets(ctx context.Context, p *Plan, report *ScanReport) {
	ordered := make([]*Leg, 0, len(p.Targets))
	for i := range p.Targets {
		ordered = append(ordered, &p.Targets[i])
	}
	// Highest price first for a BUY position, lowest first for a SELL.
	// Decimal comparison keeps float noise out of the ordering.
	sort.SliceStable(ordered, func(i, j int) bool {
		a := decimal.NewFromFloat(ordered[i].Price)
		b := decimal.NewFromFloat(ordered[j].Price)
		if p.Side == SideBuy {
			return a.GreaterThan(b)
		}
		return a.LessThan(b)
	})

	remaining := p.RemainingQuantity()
	cum := 0
	pruning := false
	for _, t := range ordered {
		switch {
		case t.Status == StatusTriggered:
			cum += t.Quantity
		case !t.Live():
			// Cancelled, failed, or never placed: no exposure, no budget.
		case !pruning && cum+t.Quantity <= remaining:
			t.Status = StatusKeep
			cum += t.Quantity
			report.Kept = append(report.Kept, t.Label)
		default:
			pruning = true
			e.cancelLeg(ctx, t, StatusCancelledByManager)
			report.Pruned = append(report.Pruned, t.Label)
		}
	}
}

// sweepIfFlat cancels every live leg once nothing of the position remains.
func (e *Engine) sweepIfFlat(ctx context.Context, p *Plan, report *ScanReport) {
	if p.RemainingQuantity() != 0 {
		return
	}
	for _, l := range p.Legs() {
		if !l.Live() {
			continue
		}
		e.cancelLeg(ctx, l, StatusCancelledByManager)
		report.Swept = append(report.Swept, l.Label)
	}
}

// cancelLeg asks the broker to cancel the leg's alert. Any non-empty
// response counts as success; the broker answers cancel requests with
// inconsistent status fields, so presence of a body is the only reliable
// signal. A leg that never got an alert identifier reverts to NOT_PLACED.
func (e *Engine) cancelLeg(ctx context.Context, l *Leg, okStatus LegStatus) {
	if l.AlertID == "" {
		l.Status = StatusNotPlaced
		return
	}
	res, err := e.gw.Cancel(ctx, l.AlertID)
	if err != nil || res.Empty() {
		l.Status = StatusCancelFailed
		logger.Warnf("leg %s: cancel of alert %s failed: %v", l.Label, l.AlertID, err)
		return
	}
	l.LastBrokerResponse = res.Raw
	l.Status = okStatus
	logger.Debugf("leg %s: alert %s cancelled", l.Label, l.AlertID)
}
