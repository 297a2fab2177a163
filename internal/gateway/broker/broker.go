// Package broker defines the conditional-alert gateway contract the bracket
// manager depends on, plus the bounded response-shape parsing shared by all
// broker adapters.
package broker

import (
	"context"
	"strings"

	"github.com/tidwall/gjson"
)

// Gateway is the broker-side surface for GTT conditional alerts. Every call
// is blocking; a non-nil error means the call itself failed (transport,
// auth, HTTP status), while a successful call with an unusable body is
// reported through the Result.
type Gateway interface {
	// Place submits one conditional-alert request. The payload is the flat
	// string map produced by the payload builder.
	Place(ctx context.Context, payload map[string]string) (Result, error)

	// List returns the broker's currently pending alerts in whatever shape
	// the broker uses; callers extract identifiers via ActiveIDs.
	List(ctx context.Context) (Result, error)

	// Cancel requests removal of a pending alert. A nil error with a
	// non-empty Result means the broker accepted the request; it does not
	// guarantee the alert is already gone.
	Cancel(ctx context.Context, alertID string) (Result, error)
}

// Result wraps a raw broker response body. The core never interprets the
// body beyond the probes below; the full bytes are retained per leg for
// diagnostics.
type Result struct {
	Raw []byte
}

// Empty reports whether the broker produced no usable payload at all.
func (r Result) Empty() bool {
	return len(r.Raw) == 0
}

// OK reports whether the response carries an explicit failure indicator.
// Responses without a status field count as OK; absence of an identifier is
// judged separately.
func (r Result) OK() bool {
	if r.Empty() {
		return false
	}
	root := gjson.ParseBytes(r.Raw)
	if !root.IsObject() {
		return true
	}
	for _, key := range statusKeys {
		field := root.Get(key)
		if !field.Exists() {
			continue
		}
		status := strings.ToUpper(strings.TrimSpace(field.String()))
		return status == "" || status == "SUCCESS" || status == "OK"
	}
	return true
}
