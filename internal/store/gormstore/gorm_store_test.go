package gormstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"gttbracket/internal/bracket"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "plans.db"))
	assert.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func samplePlan(t *testing.T) *bracket.Plan {
	t.Helper()
	p, _, err := bracket.NewPlan("TCS-EQ", "NSE", bracket.SideBuy, 100, 100,
		[]bracket.Leg{{Label: "SL", Price: 95, Quantity: 100}},
		[]bracket.Leg{{Label: "T1", Price: 110, Quantity: 60}, {Label: "T2", Price: 120, Quantity: 40}})
	assert.NoError(t, err)
	return p
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	p := samplePlan(t)
	p.Stops[0].Status = bracket.StatusActive
	p.Stops[0].AlertID = "aid-1"

	assert.NoError(t, s.Save(ctx, p))

	got, err := s.Get(ctx, p.ID)
	assert.NoError(t, err)
	assert.Equal(t, p.Symbol, got.Symbol)
	assert.Equal(t, p.Side, got.Side)
	assert.Len(t, got.Stops, 1)
	assert.Len(t, got.Targets, 2)
	assert.Equal(t, bracket.StatusActive, got.Stops[0].Status)
	assert.Equal(t, "aid-1", got.Stops[0].AlertID)
}

func TestSaveUpserts(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	p := samplePlan(t)
	assert.NoError(t, s.Save(ctx, p))

	p.ExitedQuantity = 60
	p.Targets[0].Status = bracket.StatusTriggered
	assert.NoError(t, s.Save(ctx, p))

	got, err := s.Get(ctx, p.ID)
	assert.NoError(t, err)
	assert.Equal(t, 60, got.ExitedQuantity)
	assert.Equal(t, bracket.StatusTriggered, got.Targets[0].Status)

	plans, err := s.List(ctx)
	assert.NoError(t, err)
	assert.Len(t, plans, 1, "saving twice must not duplicate the row")
}

func TestGetMissingPlan(t *testing.T) {
	s := testStore(t)
	_, err := s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, bracket.ErrPlanNotFound)
}

func TestDelete(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	p := samplePlan(t)
	assert.NoError(t, s.Save(ctx, p))
	assert.NoError(t, s.Delete(ctx, p.ID))

	_, err := s.Get(ctx, p.ID)
	assert.ErrorIs(t, err, bracket.ErrPlanNotFound)

	assert.ErrorIs(t, s.Delete(ctx, p.ID), bracket.ErrPlanNotFound)
}
