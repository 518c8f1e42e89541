package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/campusgrid/campusgrid/pkg/gamestate"
	"github.com/campusgrid/campusgrid/pkg/messages"
	"github.com/campusgrid/campusgrid/pkg/queue"
	"github.com/campusgrid/campusgrid/pkg/repositories"
	"github.com/campusgrid/campusgrid/pkg/transition"
	"github.com/campusgrid/campusgrid/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second
const tick = 10 * time.Millisecond

// fakeRelay is a relay transport whose connect attempts are completed by
// the test. Sent frames are recorded for inspection.
type fakeRelay struct {
	lock     sync.Mutex
	attempts []chan transport.ConnectResult
	sent     [][]byte
}

func newFakeRelay() *fakeRelay {
	return &fakeRelay{}
}

func (r *fakeRelay) Connect(ctx context.Context) <-chan transport.ConnectResult {
	r.lock.Lock()
	defer r.lock.Unlock()
	ch := make(chan transport.ConnectResult, 1)
	r.attempts = append(r.attempts, ch)
	return ch
}

// complete finishes the nth connect attempt.
func (r *fakeRelay) complete(t *testing.T, n int, err error) {
	t.Helper()
	require.Eventually(t, func() bool {
		r.lock.Lock()
		defer r.lock.Unlock()
		return len(r.attempts) > n
	}, waitFor, tick, "connect attempt %d never started", n)

	r.lock.Lock()
	ch := r.attempts[n]
	r.lock.Unlock()
	ch <- transport.ConnectResult{Err: err}
}

func (r *fakeRelay) Send(data []byte) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	copied := make([]byte, len(data))
	copy(copied, data)
	r.sent = append(r.sent, copied)
	return nil
}

func (r *fakeRelay) sentFrames() []interface{} {
	r.lock.Lock()
	defer r.lock.Unlock()
	frames := make([]interface{}, 0, len(r.sent))
	for _, data := range r.sent {
		msg, err := messages.DeserializeMessage(data)
		if err != nil {
			continue
		}
		frames = append(frames, msg)
	}
	return frames
}

func (r *fakeRelay) IsConnected() bool {
	return true
}

func (r *fakeRelay) Close() error {
	return nil
}

// noticeRecorder collects OnNotice callbacks.
type noticeRecorder struct {
	lock    sync.Mutex
	notices []string
}

func (n *noticeRecorder) record(notice string) {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.notices = append(n.notices, notice)
}

func (n *noticeRecorder) count() int {
	n.lock.Lock()
	defer n.lock.Unlock()
	return len(n.notices)
}

func newTestTable() transition.PointTable {
	table := transition.PointTable{}
	table.AddPoint("overworld", gamestate.Position{X: 2, Y: 2}, "library")
	table.AddPoint("library", gamestate.Position{X: 0, Y: 0}, "hub")
	return table
}

type testSessionConfig struct {
	isServer     bool
	peerLink     transport.PeerLink
	peerDeviceID string
	repository   repositories.Repository
	callbacks    Callbacks
}

func newTestSession(t *testing.T, cfg testSessionConfig) (*Session, *fakeRelay, *queue.InMemoryQueue) {
	t.Helper()
	relay := newFakeRelay()
	messageQueue := queue.NewInMemoryQueue(100)

	sess, err := NewSession(NewSessionOptions{
		PlayerID:     "player-1",
		IsServer:     cfg.isServer,
		StartMap:     "overworld",
		HubMap:       "hub",
		ReturnMap:    "overworld",
		Table:        newTestTable(),
		Relay:        relay,
		PeerLink:     cfg.peerLink,
		PeerDeviceID: cfg.peerDeviceID,
		MessageQueue: messageQueue,
		Repository:   cfg.repository,
		Callbacks:    cfg.callbacks,
	})
	require.NoError(t, err)
	t.Cleanup(sess.Stop)
	return sess, relay, messageQueue
}

func TestSession_HostStartup(t *testing.T) {
	aQueue := queue.NewInMemoryQueue(100)
	hostLink, _ := transport.NewPipePair("host-device", "guest-device", aQueue, queue.NewInMemoryQueue(100))

	sess, relay, _ := newTestSession(t, testSessionConfig{isServer: true, peerLink: hostLink})
	require.NoError(t, sess.Start(context.Background()))

	relay.complete(t, 0, nil)

	require.Eventually(t, func() bool {
		return len(relay.sentFrames()) == 2
	}, waitFor, tick)
	assert.True(t, sess.IsConnected())

	frames := relay.sentFrames()
	assert.Equal(t, messages.NewJoin("player-1"), frames[0])
	assert.Equal(t, messages.NewRequestPositions("player-1"), frames[1])

	// peer hosting opens only after the relay connection is up
	require.Eventually(t, func() bool {
		return hostLink.ConnectionState() == transport.PeerStateHosting
	}, waitFor, tick)
}

func TestSession_RelayConnectFailure(t *testing.T) {
	notices := &noticeRecorder{}
	sess, relay, _ := newTestSession(t, testSessionConfig{
		isServer:  true,
		callbacks: Callbacks{OnNotice: notices.record},
	})
	require.NoError(t, sess.Start(context.Background()))

	relay.complete(t, 0, &transport.ErrConnectFailed{Transport: "relay", Reason: "refused"})

	require.Eventually(t, func() bool { return notices.count() > 0 }, waitFor, tick)
	assert.False(t, sess.IsConnected())
	assert.Empty(t, relay.sentFrames())
}

func TestSession_StaleConnectResultIgnored(t *testing.T) {
	sess, relay, _ := newTestSession(t, testSessionConfig{isServer: true})
	require.NoError(t, sess.Start(context.Background()))

	// a second attempt supersedes the first before it completes
	require.NoError(t, sess.ConnectRelay())

	relay.complete(t, 0, nil)
	relay.complete(t, 1, nil)

	require.Eventually(t, sess.IsConnected, waitFor, tick)

	// only the current attempt's completion ran the join sequence
	assert.Eventually(t, func() bool {
		return len(relay.sentFrames()) == 2
	}, waitFor, tick)
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, relay.sentFrames(), 2)
}

func TestSession_MoveBroadcastsUpdate(t *testing.T) {
	sess, relay, _ := newTestSession(t, testSessionConfig{isServer: true})
	require.NoError(t, sess.Start(context.Background()))
	relay.complete(t, 0, nil)
	require.Eventually(t, sess.IsConnected, waitFor, tick)

	require.NoError(t, sess.SetLocalPosition(gamestate.Position{X: 4, Y: 5}))

	require.Eventually(t, func() bool {
		return len(relay.sentFrames()) == 3
	}, waitFor, tick)
	assert.Equal(t, messages.NewUpdate("player-1", 4, 5, "overworld"), relay.sentFrames()[2])
	assert.Equal(t, gamestate.Position{X: 4, Y: 5}, sess.LocalPosition())
}

func TestSession_TransitionLifecycle(t *testing.T) {
	var lock sync.Mutex
	var pending, committed []string

	sess, relay, messageQueue := newTestSession(t, testSessionConfig{
		isServer: true,
		callbacks: Callbacks{
			OnTransitionPending: func(targetMap string) {
				lock.Lock()
				defer lock.Unlock()
				pending = append(pending, targetMap)
			},
			OnTransitionCommitted: func(newMap string) {
				lock.Lock()
				defer lock.Unlock()
				committed = append(committed, newMap)
			},
		},
	})
	require.NoError(t, sess.Start(context.Background()))
	relay.complete(t, 0, nil)
	require.Eventually(t, sess.IsConnected, waitFor, tick)

	// a player on the map being left and one on another map
	require.NoError(t, messageQueue.Enqueue(messages.NewUpdate("player-2", 3, 3, "overworld")))
	require.NoError(t, messageQueue.Enqueue(messages.NewUpdate("player-3", 1, 1, "library")))
	require.Eventually(t, func() bool {
		return len(sess.RemotePlayers()) == 2
	}, waitFor, tick)

	require.NoError(t, sess.SetLocalPosition(gamestate.Position{X: 2, Y: 2}))
	require.Eventually(t, func() bool {
		target, ok := sess.PendingTransition()
		return ok && target == "library"
	}, waitFor, tick)
	lock.Lock()
	assert.Equal(t, []string{"library"}, pending)
	lock.Unlock()

	require.NoError(t, sess.ConfirmTransition())
	require.Eventually(t, func() bool {
		return sess.CurrentMap() == "library"
	}, waitFor, tick)
	lock.Lock()
	assert.Equal(t, []string{"library"}, committed)
	lock.Unlock()

	// overlays from the map that was left are gone
	remotes := sess.RemotePlayers()
	assert.NotContains(t, remotes, "player-2")
	assert.Contains(t, remotes, "player-3")

	// the commit is announced with the new map
	frames := relay.sentFrames()
	assert.Equal(t, messages.NewUpdate("player-1", 2, 2, "library"), frames[len(frames)-1])

	_, ok := sess.PendingTransition()
	assert.False(t, ok)
}

func TestSession_InboundJoinTriggersSnapshotRequest(t *testing.T) {
	sess, relay, messageQueue := newTestSession(t, testSessionConfig{isServer: true})
	require.NoError(t, sess.Start(context.Background()))
	relay.complete(t, 0, nil)
	require.Eventually(t, sess.IsConnected, waitFor, tick)

	require.NoError(t, messageQueue.Enqueue(messages.NewJoin("player-2")))

	require.Eventually(t, func() bool {
		frames := relay.sentFrames()
		return len(frames) == 3 && assert.ObjectsAreEqual(messages.NewRequestPositions("player-1"), frames[2])
	}, waitFor, tick)
}

func TestSession_ConcurrentSnapshotAndPeerReport(t *testing.T) {
	aQueue := queue.NewInMemoryQueue(100)
	bQueue := queue.NewInMemoryQueue(100)
	hostLink, guestLink := transport.NewPipePair("host-device", "guest-device", aQueue, bQueue)
	require.NoError(t, hostLink.StartHosting())

	relay := newFakeRelay()
	sess, err := NewSession(NewSessionOptions{
		PlayerID:     "player-1",
		IsServer:     false,
		StartMap:     "overworld",
		HubMap:       "hub",
		ReturnMap:    "overworld",
		Table:        newTestTable(),
		Relay:        relay,
		PeerLink:     guestLink,
		PeerDeviceID: hostLink.Device().ID,
		MessageQueue: bQueue,
	})
	require.NoError(t, err)
	t.Cleanup(sess.Stop)
	require.NoError(t, sess.Start(context.Background()))

	require.Eventually(t, func() bool {
		return sess.RemotePeerName() == "host-device"
	}, waitFor, tick)

	require.NoError(t, sess.ConnectRelay())
	relay.complete(t, 0, nil)
	require.Eventually(t, sess.IsConnected, waitFor, tick)

	// a relay snapshot and a peer report interleave on the same queue
	require.NoError(t, bQueue.Enqueue(messages.NewPositions(map[string]messages.PlayerEntry{
		"player-2": {X: 3, Y: 4, Map: "library"},
	})))
	require.NoError(t, hostLink.SendPosition(6, 7))

	require.Eventually(t, func() bool {
		remotes := sess.RemotePlayers()
		_, hasSnapshot := remotes["player-2"]
		_, hasPeer := remotes["host-device"]
		return hasSnapshot && hasPeer
	}, waitFor, tick)

	remotes := sess.RemotePlayers()
	assert.Equal(t, gamestate.RemotePlayer{Position: gamestate.Position{X: 3, Y: 4}, Map: "library"}, remotes["player-2"])
	// the peer report carries no map and lands on the local map
	assert.Equal(t, gamestate.RemotePlayer{Position: gamestate.Position{X: 6, Y: 7}, Map: "overworld"}, remotes["host-device"])
}

func TestSession_SuspendResume(t *testing.T) {
	ctx := context.Background()
	repository := repositories.NewInMemoryRepository()

	sess, relay, _ := newTestSession(t, testSessionConfig{isServer: true, repository: repository})
	require.NoError(t, sess.Start(ctx))
	relay.complete(t, 0, nil)
	require.Eventually(t, sess.IsConnected, waitFor, tick)
	require.NoError(t, sess.SetLocalPosition(gamestate.Position{X: 4, Y: 5}))
	require.Eventually(t, func() bool {
		return sess.LocalPosition() == gamestate.Position{X: 4, Y: 5}
	}, waitFor, tick)

	data, err := sess.Suspend(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, data)
	assert.Error(t, sess.Move(1, 0), "session should be stopped after suspend")

	// a fresh session resumes from the repository
	resumed, resumedRelay, _ := newTestSession(t, testSessionConfig{isServer: true, repository: repository})
	require.NoError(t, resumed.Resume(ctx, nil))

	assert.Equal(t, gamestate.Position{X: 4, Y: 5}, resumed.LocalPosition())
	assert.Equal(t, "overworld", resumed.CurrentMap())
	assert.False(t, resumed.IsConnected(), "connection state is re-established, not restored")

	// it was connected at suspend, so a reconnect attempt starts
	resumedRelay.complete(t, 0, nil)
	require.Eventually(t, resumed.IsConnected, waitFor, tick)
}

func TestSession_ResumeWhileRunningLeavesStateIntact(t *testing.T) {
	ctx := context.Background()
	sess, relay, _ := newTestSession(t, testSessionConfig{isServer: true})
	require.NoError(t, sess.Start(ctx))
	relay.complete(t, 0, nil)
	require.Eventually(t, sess.IsConnected, waitFor, tick)

	require.NoError(t, sess.SetLocalPosition(gamestate.Position{X: 3, Y: 3}))
	require.Eventually(t, func() bool {
		return sess.LocalPosition() == gamestate.Position{X: 3, Y: 3}
	}, waitFor, tick)

	require.Error(t, sess.Resume(ctx, nil))

	assert.Equal(t, gamestate.Position{X: 3, Y: 3}, sess.LocalPosition())
	assert.True(t, sess.IsConnected())
}

func TestSession_ResumeWithCorruptSnapshotFallsBack(t *testing.T) {
	notices := &noticeRecorder{}
	sess, _, _ := newTestSession(t, testSessionConfig{
		isServer:  true,
		callbacks: Callbacks{OnNotice: notices.record},
	})

	require.NoError(t, sess.Resume(context.Background(), []byte("garbage")))

	assert.Equal(t, gamestate.Position{X: 1, Y: 1}, sess.LocalPosition())
	assert.Equal(t, "overworld", sess.CurrentMap())
	assert.Equal(t, 1, notices.count())
}

func TestSession_RelayDisconnectDegradesGracefully(t *testing.T) {
	notices := &noticeRecorder{}
	sess, relay, messageQueue := newTestSession(t, testSessionConfig{
		isServer:  true,
		callbacks: Callbacks{OnNotice: notices.record},
	})
	require.NoError(t, sess.Start(context.Background()))
	relay.complete(t, 0, nil)
	require.Eventually(t, sess.IsConnected, waitFor, tick)

	require.NoError(t, messageQueue.Enqueue(transport.RelayDisconnected{Err: assert.AnError}))

	require.Eventually(t, func() bool {
		return notices.count() == 1
	}, waitFor, tick)
	assert.False(t, sess.IsConnected())

	// local play continues while disconnected
	require.NoError(t, sess.Move(1, 0))
	require.Eventually(t, func() bool {
		return sess.LocalPosition() == gamestate.Position{X: 2, Y: 1}
	}, waitFor, tick)
}
