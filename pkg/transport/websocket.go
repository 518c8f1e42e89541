package transport

import (
	"context"
	"sync"

	"github.com/campusgrid/campusgrid/pkg/log"
	"github.com/campusgrid/campusgrid/pkg/messages"
	"github.com/campusgrid/campusgrid/pkg/queue"
	"github.com/gorilla/websocket"
)

// WSRelay is a WebSocket relay transport adapter.
type WSRelay struct {
	serverAddr   string
	messageQueue queue.Queue

	lock      sync.Mutex
	conn      *websocket.Conn
	connected bool
	closed    bool
}

// NewWSRelay creates a relay adapter that dials the given ws:// address
// and enqueues decoded inbound messages on messageQueue.
func NewWSRelay(serverAddr string, messageQueue queue.Queue) *WSRelay {
	return &WSRelay{
		serverAddr:   serverAddr,
		messageQueue: messageQueue,
	}
}

// Connect dials the relay server without blocking the caller. The result
// is delivered exactly once on the returned channel.
func (r *WSRelay) Connect(ctx context.Context) <-chan ConnectResult {
	result := make(chan ConnectResult, 1)

	r.lock.Lock()
	if r.connected {
		r.lock.Unlock()
		// a second dial would orphan the live connection and its read loop
		result <- ConnectResult{Err: &ErrConnectFailed{Transport: "relay", Reason: "already connected"}}
		return result
	}
	r.lock.Unlock()

	go func() {
		log.Info("Connecting to relay server at %s", r.serverAddr)
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, r.serverAddr, nil)
		if err != nil {
			result <- ConnectResult{Err: &ErrConnectFailed{Transport: "relay", Reason: err.Error()}}
			return
		}

		r.lock.Lock()
		if r.closed {
			r.lock.Unlock()
			conn.Close()
			result <- ConnectResult{Err: &ErrConnectFailed{Transport: "relay", Reason: "relay adapter closed"}}
			return
		}
		r.conn = conn
		r.connected = true
		r.lock.Unlock()

		go r.readLoop(conn)
		result <- ConnectResult{}
	}()

	return result
}

func (r *WSRelay) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error("Error reading relay message: %v", err)
			}

			r.lock.Lock()
			wasClosed := r.closed
			r.connected = false
			r.lock.Unlock()

			if !wasClosed {
				if err := r.messageQueue.Enqueue(RelayDisconnected{Err: err}); err != nil {
					log.Error("Failed to enqueue relay disconnect event: %v", err)
				}
			}
			return
		}

		msg, err := messages.DeserializeMessage(data)
		if err != nil {
			// a malformed message is dropped; the stream continues
			log.Warn("Dropping undecodable relay message: %v", err)
			continue
		}

		switch msg.(type) {
		case *messages.Join, *messages.Positions, *messages.Update:
			if err := r.messageQueue.Enqueue(msg); err != nil {
				log.Error("Failed to enqueue relay message: %v", err)
			}
		default:
			log.Warn("Dropping unexpected relay message type %T", msg)
		}
	}
}

func (r *WSRelay) Send(data []byte) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if !r.connected || r.conn == nil {
		return &ErrNotConnected{Transport: "relay"}
	}
	return r.conn.WriteMessage(websocket.TextMessage, data)
}

func (r *WSRelay) IsConnected() bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.connected
}

func (r *WSRelay) Close() error {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.closed = true
	r.connected = false
	if r.conn == nil {
		return nil
	}
	return r.conn.Close()
}
