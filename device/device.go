// Package device holds the per-device state model: the authoritative-plus-
// pending view of capability values, the central state registry and the
// coupled-capability rules.
package device

type (
	// ID is a device identity.
	ID string

	// Meta identifies a device within the platform.
	Meta struct {
		ID     ID     `json:"id"`
		Type   string `json:"type"`
		Name   string `json:"name"`
		HomeID string `json:"home"`
		RoomID string `json:"room"`
	}

	// Device is the wire representation returned by the platform API.
	// State keys are always a subset of Capabilities.
	Device struct {
		Meta
		Capabilities []string               `json:"capabilities"`
		State        map[string]interface{} `json:"state"`
		Consumption  *float64               `json:"consumption,omitempty"`
	}
)

// Activity values for the local, display-only activity status.
const (
	ActivityIdle      = "idle"
	ActivityScheduled = "scheduled"
	ActivityRunning   = "running"
)
