package router

import (
	"context"
	"log/slog"
	"time"

	"github.com/rdkcentral/ripple-core/pkg/contracts"
)

// appIDContextKey carries the calling app's identity on the context passed
// to a HandlerFunc, for the handful of handlers (event subscription) that
// need it without widening every HandlerFunc signature.
type appIDContextKey struct{}

// WithAppID returns a context carrying appID for AppIDFromContext.
func WithAppID(ctx context.Context, appID string) context.Context {
	return context.WithValue(ctx, appIDContextKey{}, appID)
}

// AppIDFromContext returns the app id stored by WithAppID, if any.
func AppIDFromContext(ctx context.Context) (string, bool) {
	appID, ok := ctx.Value(appIDContextKey{}).(string)
	return appID, ok
}

// CallContext travels with every routed call (spec §3). CallID is unique
// per session, not globally: handlers must not assume cross-session
// uniqueness. RPCID is the caller's own JSON-RPC request id (whatever
// type it arrived as — number, string, or null) and must be echoed back
// verbatim in the reply frame (spec §6); it is distinct from CallID and
// from RequestID, which is the string correlation id used for extn bus
// bookkeeping, not the wire-visible JSON-RPC id.
type CallContext struct {
	CallID    int64
	SessionID string
	AppID     string
	Protocol  string
	RequestID string
	RPCID     any
	Method    string
}

// RpcRequest is a single JSON-RPC 2.0 call resolved against the method
// table.
type RpcRequest struct {
	Ctx    CallContext
	Method string
	Params []byte
}

// ApiMessage is the single response frame handed back to the originating
// transport (spec §4.2.2 step 5).
type ApiMessage struct {
	Protocol  string
	Payload   []byte
	RequestID string
}

// JSON-RPC 2.0 error codes used by this router.
const (
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// resolve runs the full single-dispatch pipeline of spec §4.2.2 against a
// snapshot of the method table and resource budget, writing exactly one
// JSON-RPC frame to the returned ApiMessage. It never holds the method
// table or budget lock across the handler invocation (spec §5): the
// snapshot is taken once, up front, and the handler only ever sees its
// sink channel.
func resolve(ctx context.Context, table *methodTable, budget *resourceBudget, req RpcRequest) ApiMessage {
	id := req.Ctx.RPCID
	sink := make(Sink, 1)

	entry, found := table.lookup(req.Method)
	if !found {
		return ApiMessage{
			Protocol:  req.Ctx.Protocol,
			Payload:   encodeError(id, CodeMethodNotFound, "method not found"),
			RequestID: req.Ctx.RequestID,
		}
	}

	guard, claimed := budget.claim(entry.Weights)
	if !claimed {
		// Intentional per spec §4.2.2 step 3 / §9: a refused resource claim
		// is reported as MethodNotFound, not as a distinct backpressure
		// error, so callers can't distinguish "absent" from "unroutable
		// under load". The refusal is only distinguished in the log line below.
		slog.Warn("router: resource claim refused, reporting as method not found",
			slog.String("method", req.Method))
		return ApiMessage{
			Protocol:  req.Ctx.Protocol,
			Payload:   encodeError(id, CodeMethodNotFound, "method not found"),
			RequestID: req.Ctx.RequestID,
		}
	}
	defer guard.Release()

	invoke(ctx, entry, id, req.Params, sink)

	select {
	case frame, ok := <-sink:
		if !ok || frame == nil {
			return ApiMessage{
				Protocol:  req.Ctx.Protocol,
				Payload:   encodeError(id, CodeInternalError, contracts.ErrInvalidOutput.Error()),
				RequestID: req.Ctx.RequestID,
			}
		}
		return ApiMessage{Protocol: req.Ctx.Protocol, Payload: frame, RequestID: req.Ctx.RequestID}
	case <-ctx.Done():
		return ApiMessage{
			Protocol:  req.Ctx.Protocol,
			Payload:   encodeError(id, CodeInternalError, contracts.ErrInvalidOutput.Error()),
			RequestID: req.Ctx.RequestID,
		}
	}
}

// invoke runs a handler, recovering a panic into an InvalidOutput frame
// rather than letting it escape the dispatch goroutine (spec §9: a panic
// during handler execution must still release the resource claim and
// produce a frame, never leak).
func invoke(ctx context.Context, entry MethodEntry, id any, params []byte, sink Sink) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("router: handler panicked", slog.Any("recover", r), slog.String("method", entry.Name))
			select {
			case sink <- encodeError(id, CodeInternalError, contracts.ErrInvalidOutput.Error()):
			default:
			}
		}
	}()
	switch entry.Kind {
	case Sync:
		entry.Handler(ctx, id, params, sink)
	case Async:
		entry.Handler(ctx, id, params, sink)
	}
}

// Dispatch resolves req against s and delivers the resulting ApiMessage to
// deliver. Every dispatch runs on its own goroutine; Dispatch itself never
// blocks on the handler (spec §4.2.2).
func (s *State) Dispatch(ctx context.Context, req RpcRequest, deliver func(ApiMessage)) {
	table, budget := s.snapshot()
	go func() {
		msg := resolve(ctx, table, budget, req)
		deliver(msg)
	}()
}

// DispatchFromExtn routes a request that arrived over the extn bus (spec
// §4.2.3). The reply path differs: instead of framing for a transport it
// wraps the result as an ExtnResponse value and sends it on the extn
// message's callback channel. If the handler produced a JSON-RPC error
// object, that object IS the value; if nothing was produced,
// ErrInvalidOutput is sent.
func (s *State) DispatchFromExtn(ctx context.Context, req RpcRequest, requestor string, target contracts.Contract, callback contracts.Callback) {
	if callback == nil {
		slog.Error("router: DispatchFromExtn with no callback", slog.String("method", req.Method))
		return
	}
	table, budget := s.snapshot()
	go func() {
		msg := resolve(ctx, table, budget, req)
		value := extractValue(msg.Payload)
		resp := contracts.ExtnMessage{
			ID:      req.Ctx.RequestID,
			Target:  target,
			Payload: contracts.NewResponsePayload(rawValueResponse{data: value}),
		}
		select {
		case callback <- resp:
		case <-time.After(2 * time.Second):
			slog.Warn("router: extn callback unresponsive, dropping response",
				slog.String("requestor", requestor), slog.String("method", req.Method))
		}
	}()
}
