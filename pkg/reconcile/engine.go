package reconcile

import (
	"fmt"

	"github.com/campusgrid/campusgrid/pkg/gamestate"
	"github.com/campusgrid/campusgrid/pkg/messages"
)

// Engine merges inbound messages into the game state store. It enforces
// the identity invariants: the local player never appears in the remote
// mapping, and echoed copies of the local player's own updates are dropped.
type Engine struct {
	localID string
	store   *gamestate.Store
	seen    map[string]struct{}
}

func NewEngine(localID string, store *gamestate.Store) *Engine {
	return &Engine{
		localID: localID,
		store:   store,
		seen:    make(map[string]struct{}),
	}
}

// Apply dispatches one decoded inbound message. requestSnapshot reports
// that the caller should ask the relay for a fresh positions snapshot.
func (e *Engine) Apply(msg interface{}) (requestSnapshot bool, err error) {
	switch m := msg.(type) {
	case *messages.Join:
		return e.applyJoin(m), nil
	case *messages.Positions:
		e.applyPositions(m)
		return false, nil
	case *messages.Update:
		e.applyUpdate(m)
		return false, nil
	default:
		return false, fmt.Errorf("unexpected message type %T", msg)
	}
}

// applyJoin reports whether a positions snapshot should be requested.
// A newly seen participant implies the local view may be stale.
func (e *Engine) applyJoin(msg *messages.Join) bool {
	if msg.ID == e.localID {
		return false
	}
	if _, ok := e.seen[msg.ID]; ok {
		return false
	}
	e.seen[msg.ID] = struct{}{}
	return true
}

// applyPositions replaces the remote-player mapping with the snapshot's
// player set, minus the local player.
func (e *Engine) applyPositions(msg *messages.Positions) {
	players := make(map[string]gamestate.RemotePlayer, len(msg.Players))
	for id, entry := range msg.Players {
		if id == e.localID {
			continue
		}
		e.seen[id] = struct{}{}
		players[id] = gamestate.RemotePlayer{
			Position: gamestate.Position{X: entry.X, Y: entry.Y},
			Map:      entry.Map,
		}
	}
	e.store.ApplySnapshot(players)
}

// applyUpdate upserts one remote-player entry. An update echoing the
// local player id is discarded. Updates carry no sequence number, so a
// stale one arriving late overwrites a newer one for the same player;
// the relay delivers in order per connection, which bounds the damage.
func (e *Engine) applyUpdate(msg *messages.Update) {
	if msg.ID == e.localID {
		return
	}
	e.seen[msg.ID] = struct{}{}
	e.store.ApplyDelta(msg.ID, gamestate.RemotePlayer{
		Position: gamestate.Position{X: msg.X, Y: msg.Y},
		Map:      msg.Map,
	})
}

// ApplyPeerReport merges a peer-link position report. The short-range
// transport carries no map identifier, so the report is stamped with the
// local player's current map.
func (e *Engine) ApplyPeerReport(deviceName string, x, y int) {
	if deviceName == "" || deviceName == e.localID {
		return
	}
	e.seen[deviceName] = struct{}{}
	e.store.ApplyDelta(deviceName, gamestate.RemotePlayer{
		Position: gamestate.Position{X: x, Y: y},
		Map:      e.store.LocalMap(),
	})
}

// LocalUpdate encodes the local player's current position and map as an
// outbound update message.
func (e *Engine) LocalUpdate() ([]byte, error) {
	state := e.store.Snapshot()
	msg := messages.NewUpdate(e.localID, state.LocalPosition.X, state.LocalPosition.Y, state.LocalMap)
	return messages.SerializeMessage(msg)
}
