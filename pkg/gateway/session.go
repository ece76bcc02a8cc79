// Package gateway implements the per-session acceptor of spec §4's
// Gateway layer: frames in, routed calls, framed replies out, over
// whichever transport the session arrived on.
package gateway

import (
	"sync/atomic"
)

// Transport abstracts the mechanics of delivering a single reply frame
// back to wherever a session's calls come from: a WebSocket connection,
// or a bridge keyed by container id (spec §6).
type Transport interface {
	// Send delivers a single raw JSON-RPC frame to the session.
	Send(frame []byte) error
	// Close tears down the underlying connection/channel.
	Close() error
}

// Kind identifies which concrete transport a Session uses.
type Kind int

const (
	KindWebSocket Kind = iota
	KindBridge
)

// Session is a connected client bound to an app identity and a specific
// transport (spec §3). It is created on connection accept, lives until
// the underlying transport closes, and owns exactly one app identity for
// its duration.
type Session struct {
	SessionID string
	AppID     string
	Kind      Kind
	// ContainerID is set only for Kind == KindBridge.
	ContainerID string

	transport Transport
	callID    atomic.Int64
}

// NewSession creates a session bound to transport. kind/containerID
// describe which transport this is, for CallContext.Protocol and the
// bridge's container-keyed routing.
func NewSession(sessionID, appID string, kind Kind, containerID string, transport Transport) *Session {
	return &Session{
		SessionID:   sessionID,
		AppID:       appID,
		Kind:        kind,
		ContainerID: containerID,
		transport:   transport,
	}
}

// NextCallID returns a monotonically increasing integer unique per
// session (spec §3 CallContext). It is not unique across sessions.
func (s *Session) NextCallID() int64 {
	return s.callID.Add(1)
}

// Send delivers frame to the session's transport. A session closure turns
// this into a no-op error rather than a panic or a block (spec §5
// Cancellation).
func (s *Session) Send(frame []byte) error {
	return s.transport.Send(frame)
}

// Protocol reports the session's transport name for CallContext.Protocol.
func (s *Session) Protocol() string {
	switch s.Kind {
	case KindBridge:
		return "bridge"
	default:
		return "websocket"
	}
}

// Close releases the session's transport.
func (s *Session) Close() error {
	return s.transport.Close()
}
