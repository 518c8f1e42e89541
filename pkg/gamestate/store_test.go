package gamestate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewStore_StripsLocalPlayer(t *testing.T) {
	initial := DefaultState("overworld")
	initial.RemotePlayers["player-1"] = RemotePlayer{Position: Position{X: 2, Y: 2}, Map: "overworld"}
	initial.RemotePlayers["player-2"] = RemotePlayer{Position: Position{X: 3, Y: 3}, Map: "overworld"}

	store := NewStore("player-1", initial)

	remotes := store.RemotePlayers()
	assert.NotContains(t, remotes, "player-1")
	assert.Contains(t, remotes, "player-2")
}

func TestStore_ApplySnapshot(t *testing.T) {
	tests := []struct {
		name     string
		existing map[string]RemotePlayer
		snapshot map[string]RemotePlayer
		want     map[string]RemotePlayer
	}{
		{
			name: "snapshot replaces all existing entries",
			existing: map[string]RemotePlayer{
				"stale": {Position: Position{X: 9, Y: 9}, Map: "overworld"},
			},
			snapshot: map[string]RemotePlayer{
				"player-2": {Position: Position{X: 3, Y: 4}, Map: "library"},
			},
			want: map[string]RemotePlayer{
				"player-2": {Position: Position{X: 3, Y: 4}, Map: "library"},
			},
		},
		{
			name: "empty snapshot clears everything",
			existing: map[string]RemotePlayer{
				"stale": {Position: Position{X: 9, Y: 9}, Map: "overworld"},
			},
			snapshot: map[string]RemotePlayer{},
			want:     map[string]RemotePlayer{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			initial := DefaultState("overworld")
			initial.RemotePlayers = tt.existing
			store := NewStore("player-1", initial)

			store.ApplySnapshot(tt.snapshot)

			assert.Equal(t, tt.want, store.RemotePlayers())
		})
	}
}

func TestStore_ApplyDelta(t *testing.T) {
	store := NewStore("player-1", DefaultState("overworld"))

	store.ApplyDelta("player-2", RemotePlayer{Position: Position{X: 1, Y: 1}, Map: "overworld"})
	store.ApplyDelta("player-2", RemotePlayer{Position: Position{X: 5, Y: 5}, Map: "library"})
	store.ApplyDelta("player-1", RemotePlayer{Position: Position{X: 7, Y: 7}, Map: "overworld"})

	remotes := store.RemotePlayers()
	assert.Equal(t, RemotePlayer{Position: Position{X: 5, Y: 5}, Map: "library"}, remotes["player-2"])
	assert.NotContains(t, remotes, "player-1")
}

func TestStore_ClearRemotePlayersOnMap(t *testing.T) {
	store := NewStore("player-1", DefaultState("overworld"))
	store.ApplyDelta("player-2", RemotePlayer{Position: Position{X: 1, Y: 1}, Map: "overworld"})
	store.ApplyDelta("player-3", RemotePlayer{Position: Position{X: 2, Y: 2}, Map: "library"})

	store.ClearRemotePlayersOnMap("overworld")

	remotes := store.RemotePlayers()
	assert.NotContains(t, remotes, "player-2")
	assert.Contains(t, remotes, "player-3")
}

func TestStore_Reset(t *testing.T) {
	store := NewStore("player-1", DefaultState("overworld"))
	store.ApplyDelta("player-2", RemotePlayer{Position: Position{X: 1, Y: 1}, Map: "overworld"})

	restored := GameState{
		IsConnected:   true,
		LocalPosition: Position{X: 4, Y: 5},
		LocalMap:      "library",
		RemotePlayers: map[string]RemotePlayer{
			"player-1": {Position: Position{X: 9, Y: 9}, Map: "library"},
			"player-3": {Position: Position{X: 2, Y: 2}, Map: "library"},
		},
	}
	store.Reset(restored)

	assert.Equal(t, Position{X: 4, Y: 5}, store.LocalPosition())
	assert.Equal(t, "library", store.LocalMap())
	remotes := store.RemotePlayers()
	assert.NotContains(t, remotes, "player-1")
	assert.Contains(t, remotes, "player-3")
	assert.NotContains(t, remotes, "player-2")
}

func TestStore_RemotePlayersReturnsCopy(t *testing.T) {
	store := NewStore("player-1", DefaultState("overworld"))
	store.ApplyDelta("player-2", RemotePlayer{Position: Position{X: 1, Y: 1}, Map: "overworld"})

	remotes := store.RemotePlayers()
	remotes["player-2"] = RemotePlayer{Position: Position{X: 9, Y: 9}, Map: "gym"}

	assert.Equal(t, RemotePlayer{Position: Position{X: 1, Y: 1}, Map: "overworld"}, store.RemotePlayers()["player-2"])
}
