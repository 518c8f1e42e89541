package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/campusgrid/campusgrid/pkg/gamestate"
	"github.com/campusgrid/campusgrid/pkg/log"
	"github.com/campusgrid/campusgrid/pkg/messages"
	"github.com/campusgrid/campusgrid/pkg/queue"
	"github.com/campusgrid/campusgrid/pkg/reconcile"
	"github.com/campusgrid/campusgrid/pkg/repositories"
	"github.com/campusgrid/campusgrid/pkg/transition"
	"github.com/campusgrid/campusgrid/pkg/transport"
	"github.com/google/uuid"
)

// Callbacks are invoked on the session's owner goroutine. Handlers must
// not call back into blocking session methods.
type Callbacks struct {
	// OnTransitionPending fires when the local player lands on a
	// transition point for targetMap.
	OnTransitionPending func(targetMap string)
	// OnTransitionCommitted fires after a pending transition is confirmed.
	OnTransitionCommitted func(newMap string)
	// OnNotice surfaces transient user-visible conditions such as
	// connection failures.
	OnNotice func(notice string)
}

type NewSessionOptions struct {
	// PlayerID is the local player's stable identity for this session.
	PlayerID string
	// IsServer advertises this session as the peer-link host. Set once,
	// immutable for the session's lifetime.
	IsServer bool
	// StartMap is the map the session begins on.
	StartMap string
	// HubMap is the map id whose transitions commit to ReturnMap.
	HubMap string
	// ReturnMap is the value committed when a transition targets HubMap.
	ReturnMap string
	// InitialPosition overrides the default starting position.
	InitialPosition *gamestate.Position
	// Table resolves transition points per map.
	Table transition.Table
	// Relay is the server-mediated transport. Required.
	Relay transport.Relay
	// PeerLink is the short-range transport. Optional.
	PeerLink transport.PeerLink
	// PeerDeviceID is a preselected peer device to dial at startup
	// (guest role).
	PeerDeviceID string
	// MessageQueue receives inbound messages and transport events from
	// both adapters. Required.
	MessageQueue queue.Queue
	// Repository persists snapshots across suspend/resume. Optional.
	Repository repositories.Repository
	// SaveInterval enables periodic snapshot autosave when a repository
	// is configured. Zero disables it.
	SaveInterval time.Duration
	Callbacks    Callbacks
}

// Session owns the game state for one play session. It is the only
// writer: inbound messages from both transports and all local mutations
// are marshaled onto its single owner goroutine.
type Session struct {
	id           string
	playerID     string
	isServer     bool
	startMap     string
	peerDeviceID string

	store        *gamestate.Store
	engine       *reconcile.Engine
	machine      *transition.Machine
	relay        transport.Relay
	peerLink     transport.PeerLink
	messageQueue queue.Queue
	repository   repositories.Repository
	saveInterval time.Duration
	callbacks    Callbacks

	commands chan func()

	lifecycle sync.Mutex
	running   bool
	runCtx    context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	// owned by the run goroutine
	connectAttempt int
	peerLinked     bool
}

func NewSession(opts NewSessionOptions) (*Session, error) {
	if opts.PlayerID == "" {
		return nil, fmt.Errorf("player id is required")
	}
	if opts.Relay == nil {
		return nil, fmt.Errorf("relay transport is required")
	}
	if opts.MessageQueue == nil {
		return nil, fmt.Errorf("message queue is required")
	}

	table := opts.Table
	if table == nil {
		table = transition.PointTable{}
	}

	initial := gamestate.DefaultState(opts.StartMap)
	initial.IsServer = opts.IsServer
	if opts.InitialPosition != nil {
		initial.LocalPosition = *opts.InitialPosition
	}

	store := gamestate.NewStore(opts.PlayerID, initial)

	return &Session{
		id:           uuid.NewString(),
		playerID:     opts.PlayerID,
		isServer:     opts.IsServer,
		startMap:     opts.StartMap,
		peerDeviceID: opts.PeerDeviceID,
		store:        store,
		engine:       reconcile.NewEngine(opts.PlayerID, store),
		machine:      transition.NewMachine(table, opts.HubMap, opts.ReturnMap),
		relay:        opts.Relay,
		peerLink:     opts.PeerLink,
		messageQueue: opts.MessageQueue,
		repository:   opts.Repository,
		saveInterval: opts.SaveInterval,
		callbacks:    opts.Callbacks,
		commands:     make(chan func()),
	}, nil
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) PlayerID() string {
	return s.playerID
}

// sessionKey keys persisted snapshots. The player id is stable across
// suspend/resume; the session id is not.
func (s *Session) sessionKey() string {
	return s.playerID
}

// Start begins a fresh session. Host role connects to the relay and
// enables peer-link hosting once the relay connection succeeds. Guest
// role with a preselected peer device dials it immediately, independent
// of relay state.
func (s *Session) Start(ctx context.Context) error {
	if err := s.startLoop(ctx); err != nil {
		return err
	}

	s.post(func() {
		if s.isServer {
			s.beginRelayConnect()
		}
		if s.peerDeviceID != "" && s.peerLink != nil {
			if err := s.peerLink.Connect(s.peerDeviceID); err != nil {
				log.Error("Failed to start peer link connect: %v", err)
				s.notice("Peer link unavailable")
			}
		}
	})

	return nil
}

// Resume restores a session from a serialized snapshot and re-establishes
// whatever was connected when it was suspended. A nil snapshot is loaded
// from the repository; a missing or corrupt snapshot falls back to the
// default state. Reconnect failures are non-fatal and leave the session
// in disconnected mode.
func (s *Session) Resume(ctx context.Context, data []byte) error {
	if data == nil && s.repository != nil {
		loaded, err := s.repository.LoadSnapshot(ctx, s.sessionKey())
		if err != nil {
			if !repositories.IsNotFound(err) {
				log.Error("Failed to load snapshot: %v", err)
			}
		} else {
			data = loaded
		}
	}

	snapshot := Snapshot{State: s.defaultState()}
	if data != nil {
		restored, err := RestoreSnapshot(data)
		if err != nil {
			log.Warn("Falling back to default state: %v", err)
			s.notice("Could not restore previous session")
		} else {
			snapshot = restored
		}
	}

	wasConnected := snapshot.State.IsConnected
	snapshot.State.IsServer = s.isServer
	snapshot.State.IsConnected = false

	// a failed start must leave the store untouched
	if err := s.startLoop(ctx); err != nil {
		return err
	}
	s.store.Reset(snapshot.State)

	peerDeviceID := snapshot.PeerDeviceID
	peerWasConnected := snapshot.PeerConnected
	s.post(func() {
		if wasConnected {
			s.beginRelayConnect()
		}
		if peerWasConnected && peerDeviceID != "" && s.peerLink != nil {
			if err := s.peerLink.Connect(peerDeviceID); err != nil {
				log.Error("Failed to start peer link reconnect: %v", err)
				s.notice("Peer link unavailable")
			}
		}
	})

	return nil
}

func (s *Session) defaultState() gamestate.GameState {
	state := gamestate.DefaultState(s.startMap)
	state.IsServer = s.isServer
	return state
}

func (s *Session) startLoop(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.running {
		return fmt.Errorf("session is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.runCtx = runCtx
	s.cancel = cancel
	s.running = true

	s.wg.Add(1)
	go s.run(runCtx)

	return nil
}

// Suspend captures a snapshot of the full session state, persists it if
// a repository is configured, and stops the session. The returned bytes
// can be handed to Resume on a fresh session.
func (s *Session) Suspend(ctx context.Context) ([]byte, error) {
	type result struct {
		data []byte
		err  error
	}
	reply := make(chan result, 1)

	posted := s.post(func() {
		snapshot := s.buildSnapshot()
		data, err := snapshot.Serialize()
		reply <- result{data: data, err: err}
	})
	if !posted {
		return nil, fmt.Errorf("session is not running")
	}

	var res result
	select {
	case res = <-reply:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.err != nil {
		return nil, fmt.Errorf("failed to serialize session snapshot: %v", res.err)
	}

	if s.repository != nil {
		if err := s.repository.SaveSnapshot(ctx, s.sessionKey(), time.Now().UnixMilli(), res.data); err != nil {
			// persistence exhaustion is the one failure with no recovery path
			return nil, fmt.Errorf("failed to persist session snapshot: %v", err)
		}
	}

	s.Stop()
	return res.data, nil
}

// Stop ends the session and releases both transport adapters.
func (s *Session) Stop() {
	s.lifecycle.Lock()
	if !s.running {
		s.lifecycle.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.lifecycle.Unlock()

	cancel()
	if err := s.relay.Close(); err != nil {
		log.Warn("Failed to close relay: %v", err)
	}
	if s.peerLink != nil {
		if err := s.peerLink.Close(); err != nil {
			log.Warn("Failed to close peer link: %v", err)
		}
	}
	s.wg.Wait()

	if err := s.messageQueue.ClearQueue(); err != nil {
		log.Warn("Failed to clear message queue: %v", err)
	}
	log.Info("Session %s stopped", s.id)
}

// ConnectRelay asks the session to establish the relay connection. The
// host role does this automatically at Start.
func (s *Session) ConnectRelay() error {
	if !s.post(func() { s.beginRelayConnect() }) {
		return fmt.Errorf("session is not running")
	}
	return nil
}

// SetLocalPosition moves the local player. The change is broadcast to
// every connected transport and re-evaluates the map transition table.
func (s *Session) SetLocalPosition(pos gamestate.Position) error {
	if !s.post(func() { s.moveLocal(pos) }) {
		return fmt.Errorf("session is not running")
	}
	return nil
}

// Move shifts the local player by a grid delta.
func (s *Session) Move(dx, dy int) error {
	posted := s.post(func() {
		pos := s.store.LocalPosition()
		s.moveLocal(gamestate.Position{X: pos.X + dx, Y: pos.Y + dy})
	})
	if !posted {
		return fmt.Errorf("session is not running")
	}
	return nil
}

// ConfirmTransition commits the pending map transition, if any.
func (s *Session) ConfirmTransition() error {
	if !s.post(func() { s.confirmTransition() }) {
		return fmt.Errorf("session is not running")
	}
	return nil
}

// PendingTransition reports the current pending target map, if any.
func (s *Session) PendingTransition() (string, bool) {
	type result struct {
		target string
		ok     bool
	}
	reply := make(chan result, 1)
	if !s.post(func() {
		target, _, ok := s.machine.Pending()
		reply <- result{target: target, ok: ok}
	}) {
		return "", false
	}
	res := <-reply
	return res.target, res.ok
}

// Read-side accessors. The store is safe for concurrent reads; these do
// not go through the owner goroutine.

func (s *Session) LocalPosition() gamestate.Position {
	return s.store.LocalPosition()
}

func (s *Session) CurrentMap() string {
	return s.store.LocalMap()
}

func (s *Session) RemotePlayers() map[string]gamestate.RemotePlayer {
	return s.store.RemotePlayers()
}

func (s *Session) RemotePeerName() string {
	return s.store.RemotePeerName()
}

func (s *Session) IsConnected() bool {
	return s.store.IsConnected()
}

func (s *Session) State() gamestate.GameState {
	return s.store.Snapshot()
}

// post marshals fn onto the owner goroutine. It reports false when the
// session is not running.
func (s *Session) post(fn func()) bool {
	s.lifecycle.Lock()
	running := s.running
	runCtx := s.runCtx
	s.lifecycle.Unlock()
	if !running {
		return false
	}

	select {
	case s.commands <- fn:
		return true
	case <-runCtx.Done():
		return false
	}
}

func (s *Session) run(ctx context.Context) {
	defer s.wg.Done()

	var saveTick <-chan time.Time
	if s.repository != nil && s.saveInterval > 0 {
		ticker := time.NewTicker(s.saveInterval)
		defer ticker.Stop()
		saveTick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-s.commands:
			fn()
		case <-s.messageQueue.Ready():
			s.processInbound()
		case <-saveTick:
			s.autosave(ctx)
		}
	}
}

// beginRelayConnect starts an asynchronous relay connection attempt.
// Completions are tagged with the attempt number so that a late result
// from a superseded attempt is detected and ignored.
func (s *Session) beginRelayConnect() {
	s.connectAttempt++
	attempt := s.connectAttempt
	resultChan := s.relay.Connect(s.runCtx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		select {
		case res := <-resultChan:
			s.post(func() { s.finishRelayConnect(attempt, res) })
		case <-s.runCtx.Done():
		}
	}()
}

func (s *Session) finishRelayConnect(attempt int, res transport.ConnectResult) {
	if attempt != s.connectAttempt {
		staleErr := &transport.ErrStaleCallback{Operation: "relay connect"}
		log.Warn("%v", staleErr)
		return
	}

	if !res.Ok() {
		log.Error("Relay connect failed: %v", res.Err)
		s.store.SetConnectionFlags(s.isServer, false)
		s.notice("Could not connect to the online server")
		return
	}

	s.store.SetConnectionFlags(s.isServer, true)
	log.Info("Connected to relay as %s", s.playerID)

	if err := s.sendRelay(messages.NewJoin(s.playerID)); err != nil {
		log.Error("Failed to send join: %v", err)
	}
	if err := s.sendRelay(messages.NewRequestPositions(s.playerID)); err != nil {
		log.Error("Failed to request positions: %v", err)
	}

	// peer-link hosting is gated on relay success so a hosted session is
	// never orphaned from the authoritative relay
	if s.isServer && s.peerLink != nil {
		if err := s.peerLink.StartHosting(); err != nil {
			log.Error("Failed to start peer link hosting: %v", err)
			s.notice("Peer link hosting unavailable")
		}
	}
}

func (s *Session) sendRelay(msg interface{}) error {
	data, err := messages.SerializeMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to serialize message: %v", err)
	}
	if err := s.relay.Send(data); err != nil {
		return fmt.Errorf("failed to send message: %v", err)
	}
	return nil
}

func (s *Session) processInbound() {
	items, err := s.messageQueue.ReadAllMessages()
	if err != nil {
		log.Error("Failed to read inbound messages: %v", err)
		return
	}

	for _, item := range items {
		switch msg := item.(type) {
		case *messages.Join, *messages.Positions, *messages.Update:
			requestSnapshot, err := s.engine.Apply(msg)
			if err != nil {
				log.Error("Failed to apply message: %v", err)
				continue
			}
			if requestSnapshot && s.store.IsConnected() {
				if err := s.sendRelay(messages.NewRequestPositions(s.playerID)); err != nil {
					log.Error("Failed to request positions: %v", err)
				}
			}
		case transport.PeerPositionReport:
			s.engine.ApplyPeerReport(msg.Device.Name, msg.X, msg.Y)
		case transport.PeerLinkConnected:
			s.peerLinked = true
			s.store.SetRemotePeerName(msg.Device.Name)
			log.Info("Peer link established with %s", msg.Device.Name)
		case transport.PeerLinkConnectFailed:
			s.peerLinked = false
			log.Error("Peer link connect failed: %s", msg.Reason)
			s.notice("Could not connect to the peer device")
		case transport.PeerLinkDisconnected:
			s.peerLinked = false
			log.Info("Peer link with %s closed", msg.Device.Name)
		case transport.RelayDisconnected:
			s.store.SetConnectionFlags(s.isServer, false)
			log.Error("Relay connection lost: %v", msg.Err)
			s.notice("Lost connection to the online server")
		default:
			log.Warn("Dropping unexpected inbound item %T", item)
		}
	}
}

// moveLocal applies a local position change and immediately fans the
// update out: the relay whenever it is connected, the peer link whenever
// a peer session exists. The two are independent.
func (s *Session) moveLocal(pos gamestate.Position) {
	s.store.SetLocalPosition(pos)

	if s.store.IsConnected() {
		data, err := s.engine.LocalUpdate()
		if err != nil {
			log.Error("Failed to encode local update: %v", err)
		} else if err := s.relay.Send(data); err != nil {
			log.Error("Failed to send local update: %v", err)
		}
	}
	if s.peerLinked && s.peerLink != nil {
		if err := s.peerLink.SendPosition(pos.X, pos.Y); err != nil {
			log.Error("Failed to send peer position: %v", err)
		}
	}

	if target, entered := s.machine.Observe(s.store.LocalMap(), pos); entered {
		if s.callbacks.OnTransitionPending != nil {
			s.callbacks.OnTransitionPending(target)
		}
	}
}

func (s *Session) confirmTransition() {
	newMap, ok := s.machine.Confirm()
	if !ok {
		return
	}

	// teardown before the commit is visible: overlays from the map being
	// left must not leak into the new map's view
	oldMap := s.store.LocalMap()
	s.store.ClearRemotePlayersOnMap(oldMap)
	s.store.SetLocalMap(newMap)
	log.Info("Transitioned from %s to %s", oldMap, newMap)

	if s.store.IsConnected() {
		data, err := s.engine.LocalUpdate()
		if err != nil {
			log.Error("Failed to encode local update: %v", err)
		} else if err := s.relay.Send(data); err != nil {
			log.Error("Failed to send local update: %v", err)
		}
	}

	if s.callbacks.OnTransitionCommitted != nil {
		s.callbacks.OnTransitionCommitted(newMap)
	}
}

func (s *Session) buildSnapshot() Snapshot {
	snapshot := Snapshot{
		State:         s.store.Snapshot(),
		PeerConnected: s.peerLinked,
	}
	if s.peerLink != nil {
		if device, ok := s.peerLink.ConnectedDevice(); ok {
			snapshot.PeerDeviceID = device.ID
		}
	}
	if snapshot.PeerDeviceID == "" {
		snapshot.PeerDeviceID = s.peerDeviceID
	}
	return snapshot
}

func (s *Session) autosave(ctx context.Context) {
	snapshot := s.buildSnapshot()
	data, err := snapshot.Serialize()
	if err != nil {
		log.Error("Failed to serialize autosave snapshot: %v", err)
		return
	}
	if err := s.repository.SaveSnapshot(ctx, s.sessionKey(), time.Now().UnixMilli(), data); err != nil {
		log.Error("Failed to autosave snapshot: %v", err)
		s.notice("Could not save session progress")
	}
}

func (s *Session) notice(text string) {
	if s.callbacks.OnNotice != nil {
		s.callbacks.OnNotice(text)
	}
}
