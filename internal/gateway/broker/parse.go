package broker

import (
	"strings"

	"github.com/tidwall/gjson"
)

// Recognized shapes are deliberately exhaustive and fixed here; anything
// else maps to "no data" rather than a guess.
var (
	// alertIDKeys is the ordered identifier probe used for both placement
	// responses and pending-list entries.
	alertIDKeys = []string{"alert_id", "alertId", "id", "alertID"}

	// listContainerKeys is the ordered probe for the array inside a
	// mapping-shaped list response. pendingGTTOrderBook comes first because
	// that is the key the Definedge order book actually uses.
	listContainerKeys = []string{
		"pendingGTTOrderBook",
		"data",
		"alerts",
		"alerts_list",
		"gtts",
		"items",
		"result",
	}

	statusKeys = []string{"status", "stat"}
)

// AlertID extracts the broker-assigned alert identifier from a placement
// response. A bare string or number response is itself the identifier.
func AlertID(r Result) (string, bool) {
	if r.Empty() {
		return "", false
	}
	root := gjson.ParseBytes(r.Raw)
	switch {
	case root.Type == gjson.String || root.Type == gjson.Number:
		return scalarID(root)
	case root.IsObject():
		return probeIDKeys(root)
	default:
		return "", false
	}
}

// ActiveIDs extracts the set of pending alert identifiers from a list
// response. The response may be a bare array or a mapping holding the array
// under one of the recognized keys; unrecognized shapes yield an empty set.
func ActiveIDs(r Result) map[string]struct{} {
	ids := make(map[string]struct{})
	if r.Empty() {
		return ids
	}
	root := gjson.ParseBytes(r.Raw)
	entries := listEntries(root)
	entries.ForEach(func(_, entry gjson.Result) bool {
		if entry.IsObject() {
			if id, ok := probeIDKeys(entry); ok {
				ids[id] = struct{}{}
			}
			return true
		}
		if id, ok := scalarID(entry); ok {
			ids[id] = struct{}{}
		}
		return true
	})
	return ids
}

func listEntries(root gjson.Result) gjson.Result {
	if root.IsArray() {
		return root
	}
	if !root.IsObject() {
		return gjson.Result{}
	}
	for _, key := range listContainerKeys {
		if arr := root.Get(key); arr.IsArray() {
			return arr
		}
	}
	// Last resort: some brokers wrap the array under a one-off key.
	var fallback gjson.Result
	root.ForEach(func(_, value gjson.Result) bool {
		if value.IsArray() {
			fallback = value
			return false
		}
		return true
	})
	return fallback
}

func probeIDKeys(obj gjson.Result) (string, bool) {
	for _, key := range alertIDKeys {
		field := obj.Get(key)
		if !field.Exists() {
			continue
		}
		if id := strings.TrimSpace(field.String()); id != "" {
			return id, true
		}
	}
	return "", false
}

func scalarID(v gjson.Result) (string, bool) {
	switch v.Type {
	case gjson.String, gjson.Number:
		id := strings.TrimSpace(v.String())
		return id, id != ""
	default:
		return "", false
	}
}
