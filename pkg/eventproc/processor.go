// Package eventproc implements the device-event fan-out of spec §4.4:
// a subscription registry, a last-event de-duplication cache, and
// dispatch of decoded platform events to registered listeners.
//
// Grounded line-for-line on the original Rust ThunderEventProcessor
// (add_event_listener/remove_event_listener/check_last_event/
// add_last_event/callback_device_event), translated to Go's
// sync.RWMutex-guarded maps plus a per-event-name writer lock for the
// add/remove tie-break spec §4.4 requires.
package eventproc

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// CallbackMode selects how a decoded event is forwarded once it passes
// the handler's validity predicate (spec §3 "Event subscription").
type CallbackMode int

const (
	// FireboltAppEvent forwards the event as a Firebolt app notification.
	FireboltAppEvent CallbackMode = iota
	// ExtnEvent forwards the event as a plain extn bus event.
	ExtnEvent
)

// Handler is the per-event subscription record (spec §3).
type Handler struct {
	EventID      string
	Decode       func(raw json.RawMessage) (any, error)
	IsValid      func(value any) bool
	CallbackMode CallbackMode

	mux       sync.Mutex
	listeners map[string]struct{}
}

// NewHandler builds a Handler for use as the construct callback passed to
// HandleListener. decode turns a raw platform payload into a typed value;
// isValid may be nil to accept every decoded value.
func NewHandler(eventID string, decode func(json.RawMessage) (any, error), isValid func(any) bool, mode CallbackMode) *Handler {
	return newHandler(eventID, decode, isValid, mode)
}

func newHandler(eventID string, decode func(json.RawMessage) (any, error), isValid func(any) bool, mode CallbackMode) *Handler {
	return &Handler{
		EventID:      eventID,
		Decode:       decode,
		IsValid:      isValid,
		CallbackMode: mode,
		listeners:    make(map[string]struct{}),
	}
}

func (h *Handler) addListener(appID string) {
	h.mux.Lock()
	defer h.mux.Unlock()
	if h.listeners == nil {
		h.listeners = make(map[string]struct{})
	}
	h.listeners[appID] = struct{}{}
}

// removeListener removes appID and reports whether the listener set is
// now empty.
func (h *Handler) removeListener(appID string) (empty bool) {
	h.mux.Lock()
	defer h.mux.Unlock()
	delete(h.listeners, appID)
	return len(h.listeners) == 0
}

func (h *Handler) listenerIDs() []string {
	h.mux.Lock()
	defer h.mux.Unlock()
	ids := make([]string, 0, len(h.listeners))
	for id := range h.listeners {
		ids = append(ids, id)
	}
	return ids
}

// Dispatcher delivers a decoded, de-duplicated event to one listener.
// The gateway's NotifyApp serves FireboltAppEvent mode; the dispatcher
// bootstrap installs logs and drops ExtnEvent-mode events.
type Dispatcher func(appID string, eventID string, mode CallbackMode, value any)

// Processor holds one Handler per subscribable event name plus the
// last-event cache used to suppress identical consecutive emissions.
type Processor struct {
	// mux guards the handlers map itself (insert/delete of a whole
	// Handler). Each Handler guards its own listener set so concurrent
	// adds/removes on different event names never contend.
	mux      sync.RWMutex
	handlers map[string]*Handler

	// perEvent serializes HandleListener calls for the same event name so
	// a listen immediately followed by an unlisten from the same app
	// always collapses to "not listening" (spec §4.4 tie-break), rather
	// than racing on the handler's create-on-first-use path.
	perEvent sync.Map // event name -> *sync.Mutex

	lastEventMux sync.RWMutex
	lastEvent    map[string]string // event name -> raw payload bytes as received

	dispatch Dispatcher
}

// New creates a Processor that delivers de-duplicated events via dispatch.
func New(dispatch Dispatcher) *Processor {
	return &Processor{
		handlers:  make(map[string]*Handler),
		lastEvent: make(map[string]string),
		dispatch:  dispatch,
	}
}

func (p *Processor) eventLock(eventID string) *sync.Mutex {
	actual, _ := p.perEvent.LoadOrStore(eventID, &sync.Mutex{})
	return actual.(*sync.Mutex)
}

// HandleListener adds or removes appID from the handler's listener set.
//
// If listen is true it creates the handler on first use (construct must be
// provided to build it) and returns true so the caller knows to issue
// the underlying platform subscribe.
//
// If listen is false it removes appID and, if the set becomes empty,
// deletes the handler and returns true so the caller issues an
// unsubscribe. The return value therefore doubles as "platform-level
// change required" (spec §4.4).
func (p *Processor) HandleListener(eventID string, appID string, listen bool, construct func() *Handler) bool {
	lock := p.eventLock(eventID)
	lock.Lock()
	defer lock.Unlock()

	if listen {
		p.mux.Lock()
		h, exists := p.handlers[eventID]
		if !exists {
			h = construct()
			if h == nil {
				h = newHandler(eventID, nil, nil, FireboltAppEvent)
			}
			p.handlers[eventID] = h
		}
		p.mux.Unlock()
		h.addListener(appID)
		return !exists
	}

	p.mux.RLock()
	h, exists := p.handlers[eventID]
	p.mux.RUnlock()
	if !exists {
		return false
	}
	empty := h.removeListener(appID)
	if empty {
		p.mux.Lock()
		delete(p.handlers, eventID)
		p.mux.Unlock()
		return true
	}
	return false
}

// Process decodes raw via the handler's decoder, applies its validity
// predicate, de-duplicates against the last-event cache, and dispatches
// to every current listener (spec §4.4).
func (p *Processor) Process(eventID string, raw json.RawMessage) {
	p.mux.RLock()
	h, ok := p.handlers[eventID]
	p.mux.RUnlock()
	if !ok {
		slog.Debug("eventproc: no handler for event, dropping", slog.String("eventID", eventID))
		return
	}

	value, err := h.Decode(raw)
	if err != nil {
		slog.Warn("eventproc: decode failed, dropping", slog.String("eventID", eventID), slog.String("error", err.Error()))
		return
	}
	if h.IsValid != nil && !h.IsValid(value) {
		return
	}
	if !p.checkAndRecordLastEvent(eventID, raw) {
		slog.Debug("eventproc: duplicate payload suppressed", slog.String("eventID", eventID))
		return
	}
	for _, appID := range h.listenerIDs() {
		p.dispatch(appID, eventID, h.CallbackMode, value)
	}
}

// checkAndRecordLastEvent returns true (deliver) the first time a given
// encoded payload is seen for eventID, and false for any identical
// consecutive payload. It always records raw as the new last-seen value,
// so a changed-then-reverted payload (A, B, A) delivers all three times.
func (p *Processor) checkAndRecordLastEvent(eventID string, raw json.RawMessage) bool {
	encoded := string(raw)
	p.lastEventMux.Lock()
	defer p.lastEventMux.Unlock()
	if prev, seen := p.lastEvent[eventID]; seen && prev == encoded {
		return false
	}
	p.lastEvent[eventID] = encoded
	return true
}

// HasListeners reports whether eventID currently has any registered app.
func (p *Processor) HasListeners(eventID string) bool {
	p.mux.RLock()
	defer p.mux.RUnlock()
	_, ok := p.handlers[eventID]
	return ok
}
