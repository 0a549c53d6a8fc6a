package socket

import "encoding/json"

// Roles a session can join the relay with. The same channel type serves
// both ends; the role decides which relay rules apply.
const (
	RoleDesktop = "desktop"
	RolePhone   = "phone"
)

// Envelope events. connect/disconnect are transport-level and carry no
// envelope of their own.
const (
	EventJoin             = "join"
	EventStatusUpdate     = "statusUpdate"
	EventCheckStatus      = "checkStatus"
	EventRequestStatus    = "requestStatus"
	EventStatusUpdated    = "statusUpdated"
	EventScanData         = "scanData"
	EventScanDataReceived = "scanDataReceived"
)

// Envelope is the single wire frame exchanged over the relay socket.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope marshals payload into an envelope. A nil payload produces an
// event-only frame.
func NewEnvelope(event string, payload interface{}) (Envelope, error) {
	env := Envelope{Event: event}
	if payload == nil {
		return env, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	env.Payload = raw
	return env, nil
}
