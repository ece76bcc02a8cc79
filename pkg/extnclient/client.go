// Package extnclient implements the contract-addressed, in-process
// message bus described in spec §4.1: extensions register the set of
// contracts they fulfil, and callers address a contract rather than a
// concrete extension.
//
// Grounded on hivekit's msg.RnRChan correlation-channel pattern
// (Open/WaitForResponse/WaitWithCallback/HandleResponse/Close/CloseAll),
// generalized from a single response type to the contract-tagged
// ExtnPayload sum type, with a background reaper added for deadline
// enforcement (spec §4.1 Timeouts/Cancellation).
package extnclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rdkcentral/ripple-core/pkg/contracts"
	"github.com/teris-io/shortid"
)

// DefaultTimeout is used for a contract with no explicit deadline override.
const DefaultTimeout = 5 * time.Second

// pendingCall is one outstanding send_extn_request, held only in the
// Client's pendingMux-guarded table (spec §3 Ownership): handlers never
// see this table, only their own callback channel ends.
type pendingCall struct {
	reply    contracts.Callback
	deadline time.Time
}

// route is the routing entry for a declared contract: contract -> inbox.
type route struct {
	owner string
	inbox chan contracts.ExtnMessage
}

// Client is the extn message bus (the "Extn Client" of spec §4.1).
type Client struct {
	mux    sync.RWMutex
	routes map[contracts.Contract]*route

	pendingMux sync.Mutex
	pending    map[string]*pendingCall

	timeouts map[contracts.Contract]time.Duration

	// AllowDisplace controls the "last registration wins" policy for
	// duplicate contract providers (spec §9 Open Question). Default true,
	// matching observed behaviour; set false to instead keep the first
	// registrant and reject later ones.
	AllowDisplace bool

	reapInterval time.Duration
	stopReaper   chan struct{}
	reaperOnce   sync.Once
}

// New creates a bus with the given per-contract timeout overrides. Call
// StartReaper to begin expiring stale correlation entries.
func New(timeouts map[contracts.Contract]time.Duration) *Client {
	c := &Client{
		routes:        make(map[contracts.Contract]*route),
		pending:       make(map[string]*pendingCall),
		timeouts:      timeouts,
		AllowDisplace: true,
		reapInterval:  500 * time.Millisecond,
		stopReaper:    make(chan struct{}),
	}
	return c
}

// StartReaper launches the background goroutine that removes expired
// correlation entries and completes their one-shots with ErrTimeout (spec
// §4.1 Timeouts). Safe to call once; subsequent calls are no-ops.
func (c *Client) StartReaper() {
	c.reaperOnce.Do(func() {
		go c.reapLoop()
	})
}

// Stop ends the reaper goroutine. Outstanding pending calls are left for
// the caller's own context cancellation to resolve.
func (c *Client) Stop() {
	select {
	case <-c.stopReaper:
	default:
		close(c.stopReaper)
	}
}

func (c *Client) reapLoop() {
	ticker := time.NewTicker(c.reapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopReaper:
			return
		case now := <-ticker.C:
			c.reapExpired(now)
		}
	}
}

func (c *Client) reapExpired(now time.Time) {
	var expired []*pendingCall
	c.pendingMux.Lock()
	for id, call := range c.pending {
		if now.After(call.deadline) {
			expired = append(expired, call)
			delete(c.pending, id)
		}
	}
	c.pendingMux.Unlock()

	for _, call := range expired {
		select {
		case call.reply <- contracts.ExtnMessage{Payload: contracts.NewResponsePayload(timeoutValue{})}:
		default:
		}
		close(call.reply)
	}
}

// timeoutValue is a sentinel ExtnPayloadProvider used internally to signal
// a reaped deadline through the same reply channel a real response would
// use; SendExtnRequest translates it back to contracts.ErrTimeout.
type timeoutValue struct{}

func (timeoutValue) Contract() contracts.Contract          { return "" }
func (timeoutValue) GetExtnPayload() contracts.ExtnPayload { return contracts.ExtnPayload{} }

// Register declares the set of contracts an extension fulfils and returns
// its inbox receiver. When multiple extensions claim the same contract,
// the policy in AllowDisplace decides whether the new registration
// displaces the old one (spec §4.1, §9).
//
// A displaced extension is not notified: it simply stops receiving new
// traffic on that contract. It may still answer any request it already
// holds a callback for.
func (c *Client) Register(extnID string, fulfils []contracts.Contract) (<-chan contracts.ExtnMessage, error) {
	inbox := make(chan contracts.ExtnMessage, 64)
	c.mux.Lock()
	defer c.mux.Unlock()
	for _, contract := range fulfils {
		if existing, found := c.routes[contract]; found && !c.AllowDisplace {
			return nil, fmt.Errorf("extnclient: contract %q already claimed by %q", contract, existing.owner)
		}
		c.routes[contract] = &route{owner: extnID, inbox: inbox}
	}
	return inbox, nil
}

// lookup returns the current inbox for a contract under a short read lock,
// never held across any subsequent channel send (spec §5).
func (c *Client) lookup(target contracts.Contract) (chan contracts.ExtnMessage, bool) {
	c.mux.RLock()
	defer c.mux.RUnlock()
	r, ok := c.routes[target]
	if !ok {
		return nil, false
	}
	return r.inbox, true
}

func (c *Client) timeoutFor(target contracts.Contract) time.Duration {
	if d, ok := c.timeouts[target]; ok {
		return d
	}
	return DefaultTimeout
}

// SendExtnRequest sends payload to whichever extension fulfils its
// contract and awaits exactly one matched response (spec §4.1). The
// correlation id is allocated here and is unique per in-flight request.
//
// The call fails with ErrTimeout once the contract's deadline passes
// without a response, and the pending entry is removed at that point.
//
// The context's cancellation is honored: if ctx is done before the
// request reaches the extension's inbox, the pending entry is removed
// immediately; if it is done while awaiting the response, the one-shot
// send to the caller becomes a no-op and the pending entry is left for
// the reaper to collect — no request is ever orphaned forever.
func (c *Client) SendExtnRequest(ctx context.Context, requestor string, payload contracts.ExtnPayloadProvider) (contracts.ExtnPayload, error) {
	target := payload.Contract()
	inbox, ok := c.lookup(target)
	if !ok {
		return contracts.ExtnPayload{}, fmt.Errorf("extnclient: %w: %s", contracts.ErrNoContract, target)
	}

	id := shortid.MustGenerate()
	reply := make(contracts.Callback, 1)
	deadline := time.Now().Add(c.timeoutFor(target))

	c.pendingMux.Lock()
	c.pending[id] = &pendingCall{reply: reply, deadline: deadline}
	c.pendingMux.Unlock()

	// The callback channel IS the correlation entry's reply channel: an
	// extension may either write to it directly, or call Respond(id, ...)
	// which looks up this same channel by id. Both paths deliver exactly
	// once (spec §3, §4.1).
	msg := contracts.ExtnMessage{
		ID:        id,
		Requestor: requestor,
		Target:    target,
		Payload:   contracts.NewRequestPayload(payload),
		Callback:  reply,
	}

	select {
	case inbox <- msg:
	case <-ctx.Done():
		c.removePending(id)
		return contracts.ExtnPayload{}, fmt.Errorf("extnclient: %w", contracts.ErrSendFailure)
	}

	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	select {
	case resp, open := <-reply:
		// The entry is already gone if the extension answered via Respond
		// (which deletes it itself); this also covers an extension that
		// instead writes its response directly onto the callback channel,
		// a path Respond never sees, so the entry would otherwise sit in
		// the table until the reaper's deadline expires it. Either way the
		// outcome is known now, so the correlation entry is removed here
		// rather than left for the reaper (spec §4.1 "removed after").
		c.removePending(id)
		if !open {
			return contracts.ExtnPayload{}, fmt.Errorf("extnclient: %w", contracts.ErrCallbackClosed)
		}
		if _, isTimeout := contracts.GetFromPayload[timeoutValue](resp.Payload); isTimeout {
			return contracts.ExtnPayload{}, fmt.Errorf("extnclient: %w", contracts.ErrTimeout)
		}
		return resp.Payload, nil
	case <-timer.C:
		c.removePending(id)
		return contracts.ExtnPayload{}, fmt.Errorf("extnclient: %w", contracts.ErrTimeout)
	case <-ctx.Done():
		// Caller gave up; the reaper will clean up the pending entry.
		return contracts.ExtnPayload{}, fmt.Errorf("extnclient: %w", contracts.ErrSendFailure)
	}
}

func (c *Client) removePending(id string) {
	c.pendingMux.Lock()
	defer c.pendingMux.Unlock()
	if call, ok := c.pending[id]; ok {
		delete(c.pending, id)
		close(call.reply)
	}
}

// RequestTransient behaves like SendExtnRequest but discards the response,
// for events that are shaped as requests by the underlying transport
// (spec §4.1).
func (c *Client) RequestTransient(ctx context.Context, requestor string, payload contracts.ExtnPayloadProvider) error {
	_, err := c.SendExtnRequest(ctx, requestor, payload)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Event is a fire-and-forget broadcast to all receivers subscribed to the
// payload's contract (spec §4.1).
func (c *Client) Event(payload contracts.ExtnPayloadProvider) {
	target := payload.Contract()
	inbox, ok := c.lookup(target)
	if !ok {
		slog.Debug("extnclient: event has no subscriber", slog.String("contract", string(target)))
		return
	}
	msg := contracts.ExtnMessage{Target: target, Payload: contracts.NewEventPayload(payload)}
	select {
	case inbox <- msg:
	default:
		slog.Warn("extnclient: event dropped, inbox full", slog.String("contract", string(target)))
	}
}

// Respond delivers a response from an extension back to the bus. The bus
// looks up the one-shot channel by id, delivers, and removes the entry.
// A response whose id is unknown (already reaped, or simply wrong) is
// dropped with a warning — it is never answered (spec §3).
func (c *Client) Respond(id string, payload contracts.ExtnPayloadProvider) {
	c.pendingMux.Lock()
	call, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.pendingMux.Unlock()
	if !ok {
		slog.Warn("extnclient: response for unknown correlation id dropped", slog.String("id", id))
		return
	}
	resp := contracts.ExtnMessage{ID: id, Payload: contracts.NewResponsePayload(payload)}
	select {
	case call.reply <- resp:
	default:
		// Buffered with capacity 1 and only ever written once; this should
		// never happen, but never block the extension that is responding.
		slog.Error("extnclient: reply channel unexpectedly full", slog.String("id", id))
	}
	close(call.reply)
}

// PendingCount reports the number of outstanding correlation entries.
// Exposed for tests that verify invariant "exactly one outcome, then
// removed" (spec §8).
func (c *Client) PendingCount() int {
	c.pendingMux.Lock()
	defer c.pendingMux.Unlock()
	return len(c.pending)
}
