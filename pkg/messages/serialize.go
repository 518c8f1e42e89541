package messages

import (
	"encoding/json"
	"fmt"
)

// ErrDecode is returned when an inbound message cannot be decoded.
// The message is dropped and reconciliation continues with the next one.
type ErrDecode struct {
	Reason string
}

func (e *ErrDecode) Error() string {
	return fmt.Sprintf("failed to decode message: %s", e.Reason)
}

func IsDecodeError(err error) bool {
	_, ok := err.(*ErrDecode)
	return ok
}

// UnmarshalJSON accepts both "map" and "currentmap" for the map field.
// Some senders of the original protocol used "currentmap" on update
// messages; "map" is canonical and is the only name this code emits.
func (u *Update) UnmarshalJSON(b []byte) error {
	type wireUpdate struct {
		Type       string `json:"type"`
		ID         string `json:"id"`
		X          int    `json:"x"`
		Y          int    `json:"y"`
		Map        string `json:"map"`
		CurrentMap string `json:"currentmap"`
	}
	var w wireUpdate
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	u.Type = w.Type
	u.ID = w.ID
	u.X = w.X
	u.Y = w.Y
	u.Map = w.Map
	if u.Map == "" {
		u.Map = w.CurrentMap
	}
	return nil
}

// SerializeMessage encodes a message for the wire.
func SerializeMessage(msg interface{}) ([]byte, error) {
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize message: %v", err)
	}
	return b, nil
}

// DeserializeMessage decodes a wire message into one of *Join, *Positions,
// *Update or *RequestPositions based on its "type" field.
func DeserializeMessage(b []byte) (interface{}, error) {
	var header struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(b, &header); err != nil {
		return nil, &ErrDecode{Reason: err.Error()}
	}

	switch header.Type {
	case MessageTypeJoin:
		msg := &Join{}
		if err := json.Unmarshal(b, msg); err != nil {
			return nil, &ErrDecode{Reason: err.Error()}
		}
		if msg.ID == "" {
			return nil, &ErrDecode{Reason: "join message missing id"}
		}
		return msg, nil
	case MessageTypePositions:
		msg := &Positions{}
		if err := json.Unmarshal(b, msg); err != nil {
			return nil, &ErrDecode{Reason: err.Error()}
		}
		return msg, nil
	case MessageTypeUpdate:
		msg := &Update{}
		if err := json.Unmarshal(b, msg); err != nil {
			return nil, &ErrDecode{Reason: err.Error()}
		}
		if msg.ID == "" {
			return nil, &ErrDecode{Reason: "update message missing id"}
		}
		return msg, nil
	case MessageTypeRequestPositions:
		msg := &RequestPositions{}
		if err := json.Unmarshal(b, msg); err != nil {
			return nil, &ErrDecode{Reason: err.Error()}
		}
		return msg, nil
	default:
		return nil, &ErrDecode{Reason: fmt.Sprintf("unknown message type: %q", header.Type)}
	}
}
