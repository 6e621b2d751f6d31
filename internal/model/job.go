package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// PrintJobEvent is the inbound print_job payload.
type PrintJobEvent struct {
	JobID       string  `json:"jobId"`
	PrinterID   string  `json:"printerId"`
	Template    string  `json:"template"`
	Data        Payload `json:"data"`
	Timestamp   string  `json:"timestamp,omitempty"`
	RequestedBy string  `json:"requestedBy,omitempty"`
}

// DecodePrintJob decodes a print_job body. A body that fails to decode still
// yields whatever identifying fields it carries, so the job can be answered.
func DecodePrintJob(raw json.RawMessage) (PrintJobEvent, error) {
	var ev PrintJobEvent
	if len(raw) == 0 {
		return ev, nil
	}
	err := json.Unmarshal(raw, &ev)
	if err == nil {
		return ev, nil
	}

	ev = PrintJobEvent{}
	var fields map[string]json.RawMessage
	if json.Unmarshal(raw, &fields) == nil {
		_ = json.Unmarshal(fields["jobId"], &ev.JobID)
		_ = json.Unmarshal(fields["printerId"], &ev.PrinterID)
		_ = json.Unmarshal(fields["template"], &ev.Template)
	}
	return ev, err
}

// Job is immutable once built from a PrintJobEvent.
type Job struct {
	ID          string
	PrinterID   string
	Template    string
	Payload     Payload
	RequestedBy string
	ReceivedAt  time.Time
	// PayloadErr is set when the event named a job but its body did not decode.
	PayloadErr error
}

func (e PrintJobEvent) Job(receivedAt time.Time) Job {
	payload := e.Data
	if payload == nil {
		payload = Payload{}
	}
	return Job{
		ID:          e.JobID,
		PrinterID:   e.PrinterID,
		Template:    e.Template,
		Payload:     payload,
		RequestedBy: e.RequestedBy,
		ReceivedAt:  receivedAt,
	}
}

// PrintResult is the body of a print_result_<jobId> event.
type PrintResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

const (
	CommandCompleted = "completed"
	CommandFailed    = "failed"
)

// PrinterCommandEvent carries raw device commands that bypass the template registry.
type PrinterCommandEvent struct {
	Command   string `json:"command"`
	Type      string `json:"type,omitempty"`
	PrinterID string `json:"printerId,omitempty"`
}

// CommandResult is the body of a command_result event.
type CommandResult struct {
	PrinterID     string `json:"printer_id"`
	CommandStatus string `json:"command_status"`
	Message       string `json:"message,omitempty"`
	Timestamp     string `json:"timestamp"`
}

// Payload holds the named job fields as decoded from JSON.
type Payload map[string]any

// String returns the first non-empty value among keys, formatted as text.
func (p Payload) String(keys ...string) (string, bool) {
	for _, k := range keys {
		v, ok := p[k]
		if !ok || v == nil {
			continue
		}
		s := formatScalar(v)
		if s != "" {
			return s, true
		}
	}
	return "", false
}

// StringOr is String with a fallback.
func (p Payload) StringOr(def string, keys ...string) string {
	if s, ok := p.String(keys...); ok {
		return s
	}
	return def
}

// Float returns the first numeric value among keys; strings are parsed. Missing or invalid yields 0.
func (p Payload) Float(keys ...string) float64 {
	for _, k := range keys {
		switch v := p[k].(type) {
		case float64:
			return v
		case int:
			return float64(v)
		case int64:
			return float64(v)
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return f
			}
		}
	}
	return 0
}

// Bool reports whether any of keys holds a truthy value.
func (p Payload) Bool(keys ...string) bool {
	for _, k := range keys {
		switch v := p[k].(type) {
		case bool:
			if v {
				return true
			}
		case string:
			if b, err := strconv.ParseBool(v); err == nil && b {
				return true
			}
		case float64:
			if v != 0 {
				return true
			}
		}
	}
	return false
}

// List returns the first key holding a list of objects.
func (p Payload) List(keys ...string) ([]Payload, bool) {
	for _, k := range keys {
		raw, ok := p[k].([]any)
		if !ok {
			continue
		}
		out := make([]Payload, 0, len(raw))
		for _, entry := range raw {
			if m, ok := entry.(map[string]any); ok {
				out = append(out, Payload(m))
			}
		}
		return out, true
	}
	return nil, false
}

func formatScalar(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}
