package gamestate

// Position is a pair of map-local grid coordinates. Bounds are not
// enforced here; map-specific bounds checking belongs to the map layer.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// RemotePlayer is the last known position and map of one remote player.
type RemotePlayer struct {
	Position Position `json:"position"`
	Map      string   `json:"map"`
}

// GameState is the authoritative record of the local session: the local
// player's position and map, connection flags, and every remote player
// keyed by player id. The local player id never appears as a key in
// RemotePlayers.
type GameState struct {
	IsServer       bool                    `json:"isServer"`
	IsConnected    bool                    `json:"isConnected"`
	LocalPosition  Position                `json:"localPosition"`
	LocalMap       string                  `json:"localMap"`
	RemotePlayers  map[string]RemotePlayer `json:"remotePlayers"`
	RemotePeerName string                  `json:"remotePeerName,omitempty"`
}

// DefaultState returns the state of a fresh session on the given map.
func DefaultState(startMap string) GameState {
	return GameState{
		IsServer:      false,
		IsConnected:   false,
		LocalPosition: Position{X: 1, Y: 1},
		LocalMap:      startMap,
		RemotePlayers: make(map[string]RemotePlayer),
	}
}

// Copy returns a deep copy of the state.
func (g GameState) Copy() GameState {
	copied := g
	copied.RemotePlayers = make(map[string]RemotePlayer, len(g.RemotePlayers))
	for id, player := range g.RemotePlayers {
		copied.RemotePlayers[id] = player
	}
	return copied
}
