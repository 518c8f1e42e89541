package messages

// Message types
const (
	MessageTypeJoin             = "join"
	MessageTypePositions        = "positions"
	MessageTypeUpdate           = "update"
	MessageTypeRequestPositions = "request_positions"
)

// Join announces a new participant. Receivers respond by requesting a
// fresh positions snapshot from the relay.
type Join struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// PlayerEntry is one player's position and map inside a positions snapshot.
type PlayerEntry struct {
	X   int    `json:"x"`
	Y   int    `json:"y"`
	Map string `json:"map"`
}

// Positions is a full snapshot of every known player. It replaces the
// receiver's remote-player mapping.
type Positions struct {
	Type    string                 `json:"type"`
	Players map[string]PlayerEntry `json:"players"`
}

// Update is a single-player delta. It upserts one entry in the receiver's
// remote-player mapping.
type Update struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
	Map  string `json:"map"`
}

// RequestPositions asks the relay for a full positions snapshot.
type RequestPositions struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

func NewJoin(id string) *Join {
	return &Join{Type: MessageTypeJoin, ID: id}
}

func NewPositions(players map[string]PlayerEntry) *Positions {
	return &Positions{Type: MessageTypePositions, Players: players}
}

func NewUpdate(id string, x, y int, mapID string) *Update {
	return &Update{Type: MessageTypeUpdate, ID: id, X: x, Y: y, Map: mapID}
}

func NewRequestPositions(id string) *RequestPositions {
	return &RequestPositions{Type: MessageTypeRequestPositions, ID: id}
}
