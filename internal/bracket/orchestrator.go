package bracket

import (
	"context"
	"time"

	"gttbracket/internal/gateway/broker"
	"gttbracket/internal/logger"
)

// Orchestrator places plan legs with the broker one at a time, pacing the
// requests so the broker's rate limiter stays quiet.
type Orchestrator struct {
	gw    broker.Gateway
	delay time.Duration
}

func NewOrchestrator(gw broker.Gateway, delay time.Duration) *Orchestrator {
	return &Orchestrator{gw: gw, delay: delay}
}

// PlaceAll places every stop and target leg of the plan sequentially, stops
// first. A leg that the broker rejects is marked FAILED and placement moves
// on to the next leg; the only hard abort is context cancellation. The exit
// accounting is reset because PlaceAll means a fresh full-size bracket.
func (o *Orchestrator) PlaceAll(ctx context.Context, p *Plan) (placed, failed int, err error) {
	p.ExitedQuantity = 0
	now := time.Now().UTC()
	p.PlacedAt = &now

	legs := p.Legs()
	for i, l := range legs {
		if err := o.placeLeg(ctx, p, l); err != nil {
			return placed, failed, err
		}
		if l.Status == StatusActive {
			placed++
		} else {
			failed++
		}
		if i < len(legs)-1 {
			if err := o.pause(ctx); err != nil {
				return placed, failed, err
			}
		}
	}
	logger.Infof("placed bracket for %s: %d ok, %d failed", p.Symbol, placed, failed)
	return placed, failed, nil
}

// placeLeg returns an error only for context cancellation; broker-side
// failures land in the leg status.
func (o *Orchestrator) placeLeg(ctx context.Context, p *Plan, l *Leg) error {
	l.AlertID = ""
	l.LastBrokerResponse = nil

	payload, err := BuildPayload(p, l)
	if err != nil {
		l.Status = StatusFailed
		logger.Errorf("leg %s: %v", l.Label, err)
		return nil
	}
	res, err := o.gw.Place(ctx, payload)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		l.Status = StatusFailed
		logger.Warnf("leg %s: placement request failed: %v", l.Label, err)
		return nil
	}
	l.LastBrokerResponse = res.Raw
	id, ok := broker.AlertID(res)
	if !res.OK() || !ok {
		l.Status = StatusFailed
		logger.Warnf("leg %s: broker rejected placement: %s", l.Label, res.Raw)
		return nil
	}
	l.AlertID = id
	l.Status = StatusActive
	logger.Debugf("leg %s placed, alert %s", l.Label, id)
	return nil
}

func (o *Orchestrator) pause(ctx context.Context) error {
	if o.delay <= 0 {
		return nil
	}
	t := time.NewTimer(o.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
