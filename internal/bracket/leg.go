// Package bracket implements the multi-tier GTT bracket: the plan data
// model, broker payload construction, placement, reconciliation against the
// broker's pending-alert set, and manual overrides.
package bracket

import "encoding/json"

// LegKind distinguishes protective stops from profit targets.
type LegKind string

const (
	KindStop   LegKind = "STOP"
	KindTarget LegKind = "TARGET"
)

// LegStatus is the lifecycle state of a single conditional alert.
type LegStatus string

const (
	StatusNotPlaced          LegStatus = "NOT_PLACED"
	StatusActive             LegStatus = "ACTIVE"
	StatusTriggered          LegStatus = "TRIGGERED"
	StatusKeep               LegStatus = "KEEP"
	StatusCancelledByManager LegStatus = "CANCELLED_BY_MANAGER"
	StatusCancelledByUser    LegStatus = "CANCELLED_BY_USER"
	StatusCancelFailed       LegStatus = "CANCEL_FAILED"
	StatusFailed             LegStatus = "FAILED"
)

// Leg is one stop or target tier of a bracket plan. Price doubles as the
// alert trigger price and the child order limit price.
type Leg struct {
	Label    string    `json:"label"`
	Kind     LegKind   `json:"kind"`
	Price    float64   `json:"price"`
	Quantity int       `json:"quantity"`
	Status   LegStatus `json:"status"`
	AlertID  string    `json:"alert_id,omitempty"`

	// LastBrokerResponse keeps the raw broker payload for display and
	// debugging; control logic never reads it beyond identifier extraction
	// at placement time.
	LastBrokerResponse json.RawMessage `json:"last_broker_response,omitempty"`
}

// Live reports whether the leg still corresponds to a pending broker alert.
// KEEP legs are live: the engine has confirmed they fit the remaining
// exposure but the alert itself is untouched on the broker side.
func (l *Leg) Live() bool {
	return l.Status == StatusActive || l.Status == StatusKeep
}
