package transport

import "fmt"

// ErrConnectFailed is returned when a transport fails to connect.
// It is never fatal: the session continues in disconnected mode.
type ErrConnectFailed struct {
	Transport string
	Reason    string
}

func (e *ErrConnectFailed) Error() string {
	return fmt.Sprintf("%s failed to connect: %s", e.Transport, e.Reason)
}

// ErrNotConnected is returned when sending on a disconnected transport.
type ErrNotConnected struct {
	Transport string
}

func (e *ErrNotConnected) Error() string {
	return fmt.Sprintf("%s is not connected", e.Transport)
}

// ErrStaleCallback is reported when an asynchronous operation completes
// after the attempt it belonged to has ended. The completion is ignored
// and never mutates state.
type ErrStaleCallback struct {
	Operation string
}

func (e *ErrStaleCallback) Error() string {
	return fmt.Sprintf("stale %s completion ignored", e.Operation)
}
