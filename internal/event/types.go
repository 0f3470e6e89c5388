// Package event defines the stored telemetry event and normalizes raw ingest
// envelopes into it.
package event

import "time"

// Defaults applied when an event or its envelope omits a field.
const (
	UnknownSession = "unknown-session"
	UnknownDevice  = "unknown-device"
	UnknownSource  = "unknown"
	UnknownType    = "unknown_event"
)

// Field limits. Truncated strings end with an ellipsis.
const (
	MaxEventsPerBatch = 1000
	MaxPayloadKeys    = 40
	MaxPayloadString  = 800
	MaxPayloadArray   = 30
	MaxPayloadDepth   = 4

	maxEventType = 120
	maxSource    = 80
	maxID        = 120
	maxTool      = 120
	maxName      = 120
	maxEmail     = 160
	maxIdentity  = 180
)

// User is the identity snapshot embedded in every event. Authenticated users
// carry UserID/Name/Email; anonymous users carry AnonymousID only.
type User struct {
	IsAuthenticated bool   `json:"isAuthenticated" cbor:"isAuthenticated"`
	UserID          string `json:"userId,omitempty" cbor:"userId,omitempty"`
	Name            string `json:"name,omitempty" cbor:"name,omitempty"`
	Email           string `json:"email,omitempty" cbor:"email,omitempty"`
	AnonymousID     string `json:"anonymousId,omitempty" cbor:"anonymousId,omitempty"`
	IdentitySource  string `json:"identitySource,omitempty" cbor:"identitySource,omitempty"`
}

// Identity returns the key that distinguishes this user in distinct counts.
func (u User) Identity() string {
	if u.IsAuthenticated {
		return u.UserID
	}
	return u.AnonymousID
}

// Event is the canonical stored telemetry document.
type Event struct {
	// ID is assigned by the store on insert.
	ID         string         `json:"eventId,omitempty"`
	SessionID  string         `json:"sessionId"`
	DeviceID   string         `json:"deviceId"`
	EventType  string         `json:"eventType"`
	EventAt    time.Time      `json:"eventAt"`
	ReceivedAt time.Time      `json:"receivedAt"`
	Source     string         `json:"source"`
	Tool       string         `json:"tool"`
	Payload    map[string]any `json:"payload"`
	User       User           `json:"user"`
	Runtime    map[string]any `json:"runtime,omitempty"`
	Plugin     map[string]any `json:"plugin,omitempty"`
}

// Batch is the result of normalizing one ingest envelope.
type Batch struct {
	Events []Event
	// Received is the number of events in the envelope before the batch cap.
	Received int
}

// Accepted is the number of events kept after the batch cap.
func (b Batch) Accepted() int {
	return len(b.Events)
}
