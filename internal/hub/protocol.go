package hub

import "encoding/json"

// Frame types for the WebSocket protocol.
const (
	FrameTypeAction = "action"
	FrameTypeEvent  = "event"
)

// Client->server actions.
const (
	ActionJoin  = "join"
	ActionLeave = "leave"
)

// Server->client events.
const (
	EventMessageNew    = "message:new"
	EventSessionNew    = "session:new"
	EventSessionUpdate = "session:update"
)

// RoomSessions is the global room that receives session lifecycle events.
const RoomSessions = "sessions"

// SessionRoom returns the room name for one session's message stream.
func SessionRoom(sessionID string) string {
	return "session:" + sessionID
}

// Frame is the envelope for all WebSocket messages. The Type field
// discriminates between client actions and server events.
type Frame struct {
	Type string `json:"type"`

	// Action fields (client -> server)
	Action string `json:"action,omitempty"`
	Room   string `json:"room,omitempty"`

	// Event fields (server -> client)
	Event   string          `json:"event,omitempty"`
	Seq     int64           `json:"seq,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEvent creates an event frame.
func NewEvent(event string, payload any, seq int64) (Frame, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{
		Type:    FrameTypeEvent,
		Event:   event,
		Payload: raw,
		Seq:     seq,
	}, nil
}

// NewAction creates a join/leave action frame.
func NewAction(action, room string) Frame {
	return Frame{
		Type:   FrameTypeAction,
		Action: action,
		Room:   room,
	}
}
