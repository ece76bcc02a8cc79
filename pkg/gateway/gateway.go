package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/rdkcentral/ripple-core/pkg/router"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// incomingFrame is a single JSON-RPC 2.0 request frame (spec §6).
type incomingFrame struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  jsoniter.RawMessage `json:"params"` // passed through to RpcRequest.Params as raw []byte
}

// Gateway accepts frames from sessions, resolves them through the router,
// and writes exactly one reply frame back to the originating transport
// (spec §4's Gateway layer, §6 Client-facing WebSocket / Bridge
// transport).
type Gateway struct {
	router   *router.State
	sessions sync.Map // sessionID -> *Session

	// bridgeSessions lets repeated ingress POSTs from the same container
	// reuse one Session (and so one monotonic CallID sequence) instead of
	// minting a new one per frame.
	bridgeSessions sync.Map // containerID -> *Session
}

// New creates a Gateway dispatching through state.
func New(state *router.State) *Gateway {
	return &Gateway{router: state}
}

// Register tracks a session so it can be looked up later, e.g. by the
// bridge transport delivering a container-addressed reply.
func (g *Gateway) Register(s *Session) {
	g.sessions.Store(s.SessionID, s)
}

// Unregister drops a session, e.g. on transport close.
func (g *Gateway) Unregister(s *Session) {
	g.sessions.Delete(s.SessionID)
}

// Session looks up a previously registered session by id.
func (g *Gateway) Session(sessionID string) (*Session, bool) {
	v, ok := g.sessions.Load(sessionID)
	if !ok {
		return nil, false
	}
	return v.(*Session), true
}

// NotifyApp pushes an id-less JSON-RPC notification for method to every
// session belonging to appID. It serves as the eventproc.Dispatcher for
// FireboltAppEvent-mode handlers (spec §4.4): one decoded event may fan out
// to several sessions of the same app (e.g. two tabs).
func (g *Gateway) NotifyApp(appID string, method string, value any) {
	frame := router.EncodeNotification(method, value)
	g.sessions.Range(func(_, v any) bool {
		s := v.(*Session)
		if s.AppID != appID {
			return true
		}
		if err := s.Send(frame); err != nil {
			slog.Warn("gateway: failed to deliver notification",
				slog.String("sessionID", s.SessionID),
				slog.String("appID", appID),
				slog.String("method", method),
				slog.String("error", err.Error()))
		}
		return true
	})
}

// HandleFrame parses raw as a single JSON-RPC request and routes it for
// session (spec §6 "each frame is a single JSON object"). The reply is
// delivered asynchronously to session's transport; HandleFrame itself
// does not block on the handler (spec §4.2.2).
func (g *Gateway) HandleFrame(ctx context.Context, session *Session, raw []byte) error {
	var frame incomingFrame
	if err := jsonAPI.Unmarshal(raw, &frame); err != nil {
		return fmt.Errorf("gateway: malformed frame: %w", err)
	}

	callCtx := router.CallContext{
		CallID:    session.NextCallID(),
		SessionID: session.SessionID,
		AppID:     session.AppID,
		Protocol:  session.Protocol(),
		RequestID: fmt.Sprint(frame.ID),
		RPCID:     frame.ID,
		Method:    frame.Method,
	}
	req := router.RpcRequest{
		Ctx:    callCtx,
		Method: frame.Method,
		Params: frame.Params,
	}
	ctx = router.WithAppID(ctx, session.AppID)

	g.router.Dispatch(ctx, req, func(msg router.ApiMessage) {
		if err := session.Send(msg.Payload); err != nil {
			slog.Warn("gateway: failed to deliver reply",
				slog.String("sessionID", session.SessionID),
				slog.String("method", frame.Method),
				slog.String("error", err.Error()))
		}
	})
	return nil
}
