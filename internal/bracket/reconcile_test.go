package bracket

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"gttbracket/internal/gateway/broker"
)

// ladderPlan is a BUY bracket with one full-size stop and a four-rung target
// ladder, all live at the broker.
func ladderPlan(t *testing.T) *Plan {
	t.Helper()
	p, _, err := NewPlan("TCS-EQ", "NSE", SideBuy, 100, 100,
		[]Leg{{Label: "SL", Price: 95, Quantity: 100}},
		[]Leg{
			{Label: "T10", Price: 104, Quantity: 10},
			{Label: "T20", Price: 106, Quantity: 20},
			{Label: "T30", Price: 108, Quantity: 30},
			{Label: "T40", Price: 110, Quantity: 40},
		})
	assert.NoError(t, err)
	for _, l := range p.Legs() {
		l.Status = StatusActive
		l.AlertID = "aid-" + l.Label
	}
	return p
}

func cancelOK(gw *MockGateway, labels ...string) {
	for _, label := range labels {
		gw.On("Cancel", mock.Anything, "aid-"+label).Return(result(`{"status":"SUCCESS"}`), nil).Once()
	}
}

func TestScanInfersTriggerFromAbsence(t *testing.T) {
	p := ladderPlan(t)
	gw := new(MockGateway)
	// T40 no longer pending: the broker fired it. Its quantity now counts
	// against the ladder budget, so the whole tail is pruned.
	gw.On("List", mock.Anything).Return(pendingBook("aid-SL", "aid-T10", "aid-T20", "aid-T30"), nil).Once()
	cancelOK(gw, "T30", "T20", "T10")

	report, err := NewEngine(gw).Scan(context.Background(), p)
	assert.NoError(t, err)
	assert.Equal(t, []string{"T40"}, report.Triggered)
	assert.Equal(t, []string{"T30", "T20", "T10"}, report.Pruned)
	assert.Equal(t, 40, p.ExitedQuantity)

	l, _ := p.Leg("T40")
	assert.Equal(t, StatusTriggered, l.Status)
	gw.AssertExpectations(t)
}

func TestScanGreedyKeepPrunesTail(t *testing.T) {
	p := ladderPlan(t)
	p.ExitedQuantity = 35 // remaining 65

	gw := new(MockGateway)
	gw.On("List", mock.Anything).Return(pendingBook("aid-SL", "aid-T10", "aid-T20", "aid-T30", "aid-T40"), nil).Once()
	cancelOK(gw, "T30", "T20", "T10")

	report, err := NewEngine(gw).Scan(context.Background(), p)
	assert.NoError(t, err)

	// Highest target first for a BUY: T40 (40 <= 65) is kept; T30 busts the
	// budget and starts the prune, taking T20 and T10 with it even though
	// either alone would still fit.
	assert.Equal(t, []string{"T40"}, report.Kept)
	assert.Equal(t, []string{"T30", "T20", "T10"}, report.Pruned)
	assert.Equal(t, 65, report.Remaining)

	for label, want := range map[string]LegStatus{
		"T40": StatusKeep,
		"T30": StatusCancelledByManager,
		"T20": StatusCancelledByManager,
		"T10": StatusCancelledByManager,
		"SL":  StatusActive,
	} {
		l, _ := p.Leg(label)
		assert.Equal(t, want, l.Status, label)
	}
	gw.AssertExpectations(t)
}

func TestScanIsIdempotent(t *testing.T) {
	p := ladderPlan(t)
	gw := new(MockGateway)
	// T40 fired; broker state then stays unchanged across both scans.
	gw.On("List", mock.Anything).Return(pendingBook("aid-SL", "aid-T10", "aid-T20", "aid-T30"), nil).Times(2)
	cancelOK(gw, "T30", "T20", "T10")
	eng := NewEngine(gw)

	first, err := eng.Scan(context.Background(), p)
	assert.NoError(t, err)
	assert.Equal(t, []string{"T40"}, first.Triggered)
	assert.Equal(t, []string{"T30", "T20", "T10"}, first.Pruned)
	assert.Equal(t, 40, p.ExitedQuantity)

	second, err := eng.Scan(context.Background(), p)
	assert.NoError(t, err)
	assert.Empty(t, second.Triggered, "a trigger is counted exactly once")
	assert.Empty(t, second.Pruned)
	assert.Equal(t, 40, p.ExitedQuantity)
	gw.AssertExpectations(t)
}

func TestScanDetectsKeptLegFiring(t *testing.T) {
	p := ladderPlan(t)
	t40, _ := p.Leg("T40")
	t40.Status = StatusKeep // kept by an earlier scan

	gw := new(MockGateway)
	gw.On("List", mock.Anything).Return(pendingBook("aid-SL", "aid-T10", "aid-T20", "aid-T30"), nil).Once()
	cancelOK(gw, "T30", "T20", "T10")

	report, err := NewEngine(gw).Scan(context.Background(), p)
	assert.NoError(t, err)
	assert.Equal(t, []string{"T40"}, report.Triggered, "a kept alert can still fire")
	assert.Equal(t, StatusTriggered, t40.Status)
	assert.Equal(t, 40, p.ExitedQuantity)
}

func TestScanSweepsWhenFlat(t *testing.T) {
	p := ladderPlan(t)
	p.ExitedQuantity = 60 // T40 and T20 already accounted in earlier scans
	for _, label := range []string{"T40", "T20"} {
		l, _ := p.Leg(label)
		l.Status = StatusTriggered
	}

	gw := new(MockGateway)
	// T30 and T10 fire together: exits reach 100, the position is flat.
	gw.On("List", mock.Anything).Return(pendingBook("aid-SL"), nil).Once()
	cancelOK(gw, "SL")

	report, err := NewEngine(gw).Scan(context.Background(), p)
	assert.NoError(t, err)
	assert.Equal(t, 0, report.Remaining)
	assert.Equal(t, []string{"SL"}, report.Swept)

	sl, _ := p.Leg("SL")
	assert.Equal(t, StatusCancelledByManager, sl.Status)
	gw.AssertExpectations(t)
}

func TestScanListFailureLeavesPlanUntouched(t *testing.T) {
	p := ladderPlan(t)
	gw := new(MockGateway)
	gw.On("List", mock.Anything).Return(broker.Result{}, fmt.Errorf("session expired")).Once()

	_, err := NewEngine(gw).Scan(context.Background(), p)
	assert.Error(t, err)
	assert.Equal(t, 0, p.ExitedQuantity)
	for _, l := range p.Legs() {
		assert.Equal(t, StatusActive, l.Status)
	}
}

func TestScanCancelFailureMarksLeg(t *testing.T) {
	p := ladderPlan(t)
	p.ExitedQuantity = 35

	gw := new(MockGateway)
	gw.On("List", mock.Anything).Return(pendingBook("aid-SL", "aid-T10", "aid-T20", "aid-T30", "aid-T40"), nil).Once()
	gw.On("Cancel", mock.Anything, "aid-T30").Return(broker.Result{}, fmt.Errorf("timeout")).Once()
	cancelOK(gw, "T20", "T10")

	_, err := NewEngine(gw).Scan(context.Background(), p)
	assert.NoError(t, err, "cancel failures do not fail the scan")

	t30, _ := p.Leg("T30")
	assert.Equal(t, StatusCancelFailed, t30.Status)
	t20, _ := p.Leg("T20")
	assert.Equal(t, StatusCancelledByManager, t20.Status)
}

func TestScanSellSideOrdersAscending(t *testing.T) {
	p, _, err := NewPlan("TCS-EQ", "NSE", SideSell, 100, 100,
		nil,
		[]Leg{
			{Label: "T90", Price: 90, Quantity: 40},
			{Label: "T96", Price: 96, Quantity: 30},
			{Label: "T93", Price: 93, Quantity: 30},
		})
	assert.NoError(t, err)
	for _, l := range p.Legs() {
		l.Status = StatusActive
		l.AlertID = "aid-" + l.Label
	}
	p.ExitedQuantity = 40 // remaining 60

	gw := new(MockGateway)
	gw.On("List", mock.Anything).Return(pendingBook("aid-T90", "aid-T96", "aid-T93"), nil).Once()
	cancelOK(gw, "T93", "T96")

	report, err := NewEngine(gw).Scan(context.Background(), p)
	assert.NoError(t, err)
	// A SELL ladder walks lowest price first: T90 (40 <= 60) is kept, T93
	// busts the budget, T96 goes with it.
	assert.Equal(t, []string{"T90"}, report.Kept)
	assert.Equal(t, []string{"T93", "T96"}, report.Pruned)
}
