package upstream

import "encoding/json"

// StreamEventKind discriminates the payload of a StreamEvent.
type StreamEventKind string

const (
	StreamContent StreamEventKind = "content"
	StreamDone    StreamEventKind = "done"
	StreamError   StreamEventKind = "error"
	StreamUnknown StreamEventKind = "unknown"
)

// StreamEvent is one interpreted occurrence from the upstream event
// stream, already filtered to the session a caller asked for.
type StreamEvent struct {
	Kind StreamEventKind

	Text string // StreamContent

	ErrorMessage string // StreamError

	EventType string // StreamUnknown
	RawData   string // StreamUnknown
}

// rawEvent is one (event, data) pair produced by the line-oriented SSE
// decoder, before session filtering or JSON interpretation.
type rawEvent struct {
	eventType string
	data      string
}

// sessionEnvelope is the minimal shape every upstream event body shares:
// enough to read its type and locate a session id for filtering.
type sessionEnvelope struct {
	Type       string `json:"type"`
	Properties struct {
		SessionID string `json:"sessionID"`
		Delta     string `json:"delta"`
		Part      struct {
			SessionID string `json:"sessionID"`
			Content   string `json:"content"`
		} `json:"part"`
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	} `json:"properties"`
}

func (e sessionEnvelope) sessionID() string {
	if e.Properties.SessionID != "" {
		return e.Properties.SessionID
	}
	return e.Properties.Part.SessionID
}

// interpret converts a raw SSE event into a StreamEvent, or returns ok=false
// if the event should be suppressed (wrong session, or empty delta/content
// on a part-update).
func interpret(raw rawEvent, sessionID string) (StreamEvent, bool) {
	var env sessionEnvelope
	if err := json.Unmarshal([]byte(raw.data), &env); err != nil {
		return StreamEvent{Kind: StreamUnknown, EventType: raw.eventType, RawData: raw.data}, true
	}

	if sid := env.sessionID(); sid != "" && sid != sessionID {
		return StreamEvent{}, false
	}

	switch env.Type {
	case "message.part.updated":
		if env.Properties.Delta != "" {
			return StreamEvent{Kind: StreamContent, Text: env.Properties.Delta}, true
		}
		if env.Properties.Part.Content != "" {
			return StreamEvent{Kind: StreamContent, Text: env.Properties.Part.Content}, true
		}
		return StreamEvent{}, false
	case "session.idle":
		return StreamEvent{Kind: StreamDone}, true
	case "session.error":
		msg := env.Properties.Error.Message
		if msg == "" {
			msg = raw.data
		}
		return StreamEvent{Kind: StreamError, ErrorMessage: msg}, true
	default:
		return StreamEvent{Kind: StreamUnknown, EventType: raw.eventType, RawData: raw.data}, true
	}
}
