package session

import (
	"github.com/campusgrid/campusgrid/pkg/gamestate"
)

// Snapshot is everything a session persists across a suspend/resume
// boundary: the game state plus the transport connection descriptors
// needed to re-establish both links.
type Snapshot struct {
	State         gamestate.GameState `json:"state"`
	PeerDeviceID  string              `json:"peerDeviceId,omitempty"`
	PeerConnected bool                `json:"peerConnected,omitempty"`
}

// Serialize frames the snapshot with the game-state codec.
func (s Snapshot) Serialize() ([]byte, error) {
	return gamestate.EncodeSnapshot(s)
}

// RestoreSnapshot decodes a serialized snapshot. Callers must treat an
// error as non-fatal and fall back to a default session state.
func RestoreSnapshot(data []byte) (Snapshot, error) {
	snapshot := Snapshot{}
	if err := gamestate.DecodeSnapshot(data, &snapshot); err != nil {
		return Snapshot{}, err
	}
	if snapshot.State.RemotePlayers == nil {
		snapshot.State.RemotePlayers = make(map[string]gamestate.RemotePlayer)
	}
	return snapshot, nil
}
