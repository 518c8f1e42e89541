package transport

import (
	"sync"

	"github.com/campusgrid/campusgrid/pkg/log"
	"github.com/campusgrid/campusgrid/pkg/queue"
	"github.com/google/uuid"
)

// PipeLink is an in-process peer-link endpoint. Two linked endpoints
// behave like a paired short-range connection: position reports sent on
// one side arrive as PeerPositionReport events on the other side's queue.
// It backs tests and single-machine demos; a radio-backed implementation
// satisfies the same PeerLink interface.
type PipeLink struct {
	device       PeerDevice
	messageQueue queue.Queue

	lock   sync.Mutex
	remote *PipeLink
	state  PeerConnectionState
	peer   PeerDevice
	linked bool
}

// NewPipePair creates two linked peer-link endpoints with generated
// device ids. Each endpoint enqueues its events on its own queue.
func NewPipePair(aName, bName string, aQueue, bQueue queue.Queue) (*PipeLink, *PipeLink) {
	a := &PipeLink{
		device:       PeerDevice{ID: uuid.NewString(), Name: aName},
		messageQueue: aQueue,
		state:        PeerStateDisconnected,
	}
	b := &PipeLink{
		device:       PeerDevice{ID: uuid.NewString(), Name: bName},
		messageQueue: bQueue,
		state:        PeerStateDisconnected,
	}
	a.remote = b
	b.remote = a
	return a, b
}

// Device returns this endpoint's own identity.
func (p *PipeLink) Device() PeerDevice {
	return p.device
}

func (p *PipeLink) StartHosting() error {
	p.lock.Lock()
	defer p.lock.Unlock()

	if p.state == PeerStateConnected {
		return nil
	}
	p.state = PeerStateHosting
	return nil
}

// Connect attempts to reach the device with the given id. The outcome is
// delivered asynchronously on the endpoint's queue.
func (p *PipeLink) Connect(deviceID string) error {
	p.lock.Lock()
	if p.state == PeerStateConnected {
		p.lock.Unlock()
		return nil
	}
	p.state = PeerStateConnecting
	remote := p.remote
	p.lock.Unlock()

	go func() {
		if remote == nil || remote.device.ID != deviceID || !remote.accept(p.device) {
			p.lock.Lock()
			p.state = PeerStateDisconnected
			p.lock.Unlock()
			p.enqueue(PeerLinkConnectFailed{Reason: "device not found or not hosting"})
			return
		}

		p.lock.Lock()
		p.state = PeerStateConnected
		p.peer = remote.device
		p.linked = true
		p.lock.Unlock()
		p.enqueue(PeerLinkConnected{Device: remote.device})
	}()

	return nil
}

// accept completes the handshake on the hosting side.
func (p *PipeLink) accept(from PeerDevice) bool {
	p.lock.Lock()
	defer p.lock.Unlock()

	if p.state != PeerStateHosting {
		return false
	}
	p.state = PeerStateConnected
	p.peer = from
	p.linked = true

	// enqueue outside the remote's lock is not needed here: the queue has
	// its own lock and never calls back into the link
	if err := p.messageQueue.Enqueue(PeerLinkConnected{Device: from}); err != nil {
		log.Error("Failed to enqueue peer connect event: %v", err)
	}
	return true
}

func (p *PipeLink) SendPosition(x, y int) error {
	p.lock.Lock()
	remote := p.remote
	linked := p.linked
	p.lock.Unlock()

	if !linked || remote == nil {
		return &ErrNotConnected{Transport: "peer link"}
	}
	return remote.messageQueue.Enqueue(PeerPositionReport{Device: p.device, X: x, Y: y})
}

func (p *PipeLink) ConnectionState() PeerConnectionState {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.state
}

func (p *PipeLink) ConnectedDevice() (PeerDevice, bool) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if !p.linked {
		return PeerDevice{}, false
	}
	return p.peer, true
}

func (p *PipeLink) Close() error {
	p.lock.Lock()
	remote := p.remote
	wasLinked := p.linked
	device := p.device
	p.state = PeerStateDisconnected
	p.linked = false
	p.remote = nil
	p.lock.Unlock()

	if wasLinked && remote != nil {
		remote.dropPeer(device)
	}
	return nil
}

func (p *PipeLink) dropPeer(device PeerDevice) {
	p.lock.Lock()
	wasLinked := p.linked
	p.state = PeerStateDisconnected
	p.linked = false
	p.remote = nil
	p.lock.Unlock()

	if wasLinked {
		p.enqueue(PeerLinkDisconnected{Device: device})
	}
}

func (p *PipeLink) enqueue(event interface{}) {
	if err := p.messageQueue.Enqueue(event); err != nil {
		log.Error("Failed to enqueue peer link event: %v", err)
	}
}
