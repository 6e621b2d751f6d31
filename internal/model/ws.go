package model

import "encoding/json"

// --- WebSocket Messages ---

// Envelope is the frame exchanged with the server: an event name plus its raw payload.
type Envelope struct {
	Event EventName       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"` // decoded per event
}

// NewEnvelope marshals data into an envelope for the named event.
func NewEnvelope(event EventName, data any) (Envelope, error) {
	env := Envelope{Event: event}
	if data == nil {
		return env, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, err
	}
	env.Data = raw
	return env, nil
}

// Decode unmarshals the envelope payload into v.
func (e Envelope) Decode(v any) error {
	if len(e.Data) == 0 {
		return nil
	}
	return json.Unmarshal(e.Data, v)
}

type PrinterRegistration struct {
	PrinterID      string   `json:"printerId"`
	PrinterName    string   `json:"printerName"`
	PrinterType    string   `json:"printerType"`
	Location       string   `json:"location"`
	ConnectionType string   `json:"connectionType"`
	Capabilities   []string `json:"capabilities"`
	Status         string   `json:"status"`
	Timestamp      string   `json:"timestamp"`
	SessionID      string   `json:"sessionId,omitempty"`
}

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// RegistrationAck covers registration_success, registration_failed and registration_error.
type RegistrationAck struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

type HealthResponse struct {
	PrinterID        string `json:"printerId"`
	Status           string `json:"status"`
	DeviceConnected  bool   `json:"deviceConnected"`
	ActiveConnection bool   `json:"activeConnection"`
	Timestamp        string `json:"timestamp"`
}

// TimestampLayout is the wall-clock format used in outbound events.
const TimestampLayout = "2006-01-02 15:04:05"
