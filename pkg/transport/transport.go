package transport

import "context"

// ConnectResult is the outcome of an asynchronous connect attempt.
type ConnectResult struct {
	Err error
}

func (r ConnectResult) Ok() bool {
	return r.Err == nil
}

// Relay is the server-mediated transport through which all participants
// exchange state. Inbound messages are decoded and enqueued on the
// message queue the adapter was constructed with; they are never
// delivered on the caller's goroutine.
type Relay interface {
	// Connect starts an asynchronous connection attempt. The result is
	// delivered exactly once on the returned channel.
	Connect(ctx context.Context) <-chan ConnectResult
	Send(data []byte) error
	IsConnected() bool
	Close() error
}

// PeerConnectionState is the peer link's connection lifecycle state.
type PeerConnectionState int

const (
	PeerStateDisconnected PeerConnectionState = iota
	PeerStateConnecting
	PeerStateConnected
	PeerStateHosting
)

func (s PeerConnectionState) String() string {
	switch s {
	case PeerStateDisconnected:
		return "disconnected"
	case PeerStateConnecting:
		return "connecting"
	case PeerStateConnected:
		return "connected"
	case PeerStateHosting:
		return "hosting"
	}
	return "unknown"
}

// PeerDevice identifies a peer-link counterpart.
type PeerDevice struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PeerLink is the direct short-range transport between two devices.
// Connection outcomes and inbound position reports are enqueued on the
// message queue as PeerLinkConnected, PeerLinkConnectFailed,
// PeerLinkDisconnected and PeerPositionReport events.
type PeerLink interface {
	// Connect starts an asynchronous connection attempt to a specific device.
	Connect(deviceID string) error
	// StartHosting makes this endpoint accept an inbound peer connection.
	StartHosting() error
	// SendPosition reports the local player's position to the counterpart.
	SendPosition(x, y int) error
	ConnectionState() PeerConnectionState
	ConnectedDevice() (PeerDevice, bool)
	Close() error
}

// RelayDisconnected is enqueued when the relay connection drops.
type RelayDisconnected struct {
	Err error
}

// PeerLinkConnected is enqueued when a peer-link session is established.
type PeerLinkConnected struct {
	Device PeerDevice
}

// PeerLinkConnectFailed is enqueued when a peer-link connect attempt fails.
type PeerLinkConnectFailed struct {
	Reason string
}

// PeerLinkDisconnected is enqueued when an established peer-link session ends.
type PeerLinkDisconnected struct {
	Device PeerDevice
}

// PeerPositionReport is an inbound position report from the peer link.
// It carries no map identifier; the receiver stamps it with the local
// player's current map.
type PeerPositionReport struct {
	Device PeerDevice
	X      int
	Y      int
}
