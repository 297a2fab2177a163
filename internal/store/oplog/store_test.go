package oplog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "operations.db"))
	assert.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndList(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	s.Record(ctx, "plan-1", "create", "BUY TCS-EQ x100")
	s.Record(ctx, "plan-1", "place", "placed=3 failed=0")
	s.Record(ctx, "plan-2", "create", "")

	all, err := s.List(ctx, "", 0)
	assert.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, "create", all[0].Action, "newest first")
	assert.Equal(t, "plan-2", all[0].PlanID)

	one, err := s.List(ctx, "plan-1", 0)
	assert.NoError(t, err)
	assert.Len(t, one, 2)
	assert.Equal(t, "place", one[0].Action)
	assert.Equal(t, "placed=3 failed=0", one[0].Detail)

	limited, err := s.List(ctx, "", 1)
	assert.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestNewRequiresPath(t *testing.T) {
	_, err := New(" ")
	assert.Error(t, err)
}
