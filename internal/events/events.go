// Package events carries the live progress stream of a remote agent run:
// an in-process fan-out broadcaster keyed by investment id, plus the
// event vocabulary shared with SSE subscribers and the agent's progress
// push endpoint.
package events

import "encoding/json"

// Type identifies a stream event kind
type Type string

const (
	TypeConnected    Type = "connected"
	TypeThinking     Type = "thinking"
	TypeText         Type = "text"
	TypeToolStart    Type = "tool_start"
	TypeToolProgress Type = "tool_progress"
	TypeToolResult   Type = "tool_result"
	TypeStatus       Type = "status"
	TypeResult       Type = "result"
	TypeError        Type = "error"
	TypeDone         Type = "done"
)

// Event is one frame of the live progress stream
type Event struct {
	Type Type            `json:"type"`
	Data json.RawMessage `json:"data"`
}

// knownTypes gates what the progress-push endpoint will accept
var knownTypes = map[Type]struct{}{
	TypeConnected:    {},
	TypeThinking:     {},
	TypeText:         {},
	TypeToolStart:    {},
	TypeToolProgress: {},
	TypeToolResult:   {},
	TypeStatus:       {},
	TypeResult:       {},
	TypeError:        {},
	TypeDone:         {},
}

// ValidType reports whether t names a known event type
func ValidType(t Type) bool {
	_, ok := knownTypes[t]
	return ok
}

// Payload returns the event data, defaulting to an empty JSON object
func (e Event) Payload() json.RawMessage {
	if len(e.Data) == 0 {
		return json.RawMessage(`{}`)
	}
	return e.Data
}

func mustMarshal(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return data
}

// NewStatus builds a status event with a human-readable description
func NewStatus(description string) Event {
	return Event{Type: TypeStatus, Data: mustMarshal(map[string]string{"description": description})}
}

// NewResult builds the final result event of a run
func NewResult(text string) Event {
	return Event{Type: TypeResult, Data: mustMarshal(map[string]string{"text": text})}
}

// NewError builds an error event
func NewError(message string) Event {
	return Event{Type: TypeError, Data: mustMarshal(map[string]string{"message": message})}
}

// NewDone builds the end-of-run marker event
func NewDone() Event {
	return Event{Type: TypeDone, Data: json.RawMessage(`{}`)}
}
