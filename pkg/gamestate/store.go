package gamestate

import "sync"

// Store provides shared access to the game state. All mutations are
// atomic with respect to readers: a reader never observes a partially
// applied snapshot or delta.
type Store struct {
	lock    sync.RWMutex
	localID string
	state   GameState
}

// NewStore creates a store owned by the player with the given id.
func NewStore(localID string, initial GameState) *Store {
	if initial.RemotePlayers == nil {
		initial.RemotePlayers = make(map[string]RemotePlayer)
	}
	// the local player is never tracked through the remote map
	delete(initial.RemotePlayers, localID)
	return &Store{
		localID: localID,
		state:   initial,
	}
}

func (s *Store) LocalID() string {
	return s.localID
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() GameState {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.state.Copy()
}

func (s *Store) LocalPosition() Position {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.state.LocalPosition
}

func (s *Store) LocalMap() string {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.state.LocalMap
}

func (s *Store) IsConnected() bool {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.state.IsConnected
}

// RemotePlayers returns a copy of the remote-player mapping.
func (s *Store) RemotePlayers() map[string]RemotePlayer {
	s.lock.RLock()
	defer s.lock.RUnlock()
	players := make(map[string]RemotePlayer, len(s.state.RemotePlayers))
	for id, player := range s.state.RemotePlayers {
		players[id] = player
	}
	return players
}

func (s *Store) RemotePeerName() string {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.state.RemotePeerName
}

func (s *Store) SetLocalPosition(pos Position) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.state.LocalPosition = pos
}

func (s *Store) SetLocalMap(mapID string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.state.LocalMap = mapID
}

func (s *Store) SetConnectionFlags(isServer, isConnected bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.state.IsServer = isServer
	s.state.IsConnected = isConnected
}

func (s *Store) SetRemotePeerName(name string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.state.RemotePeerName = name
}

// Reset replaces the entire state, e.g. when restoring from a
// persisted snapshot. The local player id is stripped from the remote
// mapping if present.
func (s *Store) Reset(state GameState) {
	if state.RemotePlayers == nil {
		state.RemotePlayers = make(map[string]RemotePlayer)
	}
	delete(state.RemotePlayers, s.localID)

	s.lock.Lock()
	defer s.lock.Unlock()
	s.state = state
}

// ApplySnapshot replaces the entire remote-player mapping. Any entry
// keyed by the local player id is discarded.
func (s *Store) ApplySnapshot(players map[string]RemotePlayer) {
	replacement := make(map[string]RemotePlayer, len(players))
	for id, player := range players {
		if id == s.localID {
			continue
		}
		replacement[id] = player
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	s.state.RemotePlayers = replacement
}

// ApplyDelta upserts a single remote-player entry. Deltas for the local
// player id are ignored.
func (s *Store) ApplyDelta(id string, player RemotePlayer) {
	if id == s.localID {
		return
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	s.state.RemotePlayers[id] = player
}

// ClearRemotePlayersOnMap removes every remote player whose map equals
// mapID. Used when the local player leaves a map so that old overlays
// never leak into the new map's view.
func (s *Store) ClearRemotePlayersOnMap(mapID string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	for id, player := range s.state.RemotePlayers {
		if player.Map == mapID {
			delete(s.state.RemotePlayers, id)
		}
	}
}
