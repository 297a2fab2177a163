package bracket

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stretchr/testify/mock"

	"gttbracket/internal/gateway/broker"
)

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Place(ctx context.Context, payload map[string]string) (broker.Result, error) {
	args := m.Called(ctx, payload)
	return args.Get(0).(broker.Result), args.Error(1)
}

func (m *MockGateway) List(ctx context.Context) (broker.Result, error) {
	args := m.Called(ctx)
	return args.Get(0).(broker.Result), args.Error(1)
}

func (m *MockGateway) Cancel(ctx context.Context, alertID string) (broker.Result, error) {
	args := m.Called(ctx, alertID)
	return args.Get(0).(broker.Result), args.Error(1)
}

func result(raw string) broker.Result {
	return broker.Result{Raw: []byte(raw)}
}

// pendingBook renders a Definedge-shaped list response holding the given
// alert identifiers.
func pendingBook(ids ...string) broker.Result {
	entries := make([]map[string]string, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, map[string]string{"alert_id": id})
	}
	raw, _ := json.Marshal(map[string]any{
		"status":              "SUCCESS",
		"pendingGTTOrderBook": entries,
	})
	return broker.Result{Raw: raw}
}

func placeResponse(id string) broker.Result {
	return result(fmt.Sprintf(`{"status":"SUCCESS","alert_id":%q}`, id))
}
