package models

import "time"

// DecisionKind is the reason an incident is hidden from this device's queue
type DecisionKind string

// Decision kinds and the fixed storage keys that persist them.
const (
	DecisionIgnored DecisionKind = "ignored"
	DecisionFalse   DecisionKind = "false"

	StorageKeyIgnored = "police_ignored_incidents"
	StorageKeyFalse   = "police_false_incidents"
)

// StorageKey returns the durable key the kind is persisted under.
func (k DecisionKind) StorageKey() string {
	if k == DecisionFalse {
		return StorageKeyFalse
	}
	return StorageKeyIgnored
}

// DecisionFor returns the local decision a verdict records, if any.
func DecisionFor(v Verdict) (DecisionKind, bool) {
	switch v {
	case VerdictIgnore:
		return DecisionIgnored, true
	case VerdictFalse:
		return DecisionFalse, true
	}
	return "", false
}

// LocalDecision is a device-only record hiding an incident from the queue
type LocalDecision struct {
	IncidentID ID           `json:"incidentId"`
	Kind       DecisionKind `json:"kind"`
}

// DeviceItem is one durable key/value entry of a device's storage
type DeviceItem struct {
	DeviceID  string    `json:"deviceId" bson:"deviceId"`
	Key       string    `json:"key" bson:"key"`
	Value     string    `json:"value" bson:"value"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}
