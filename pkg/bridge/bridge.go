// Package bridge implements the container-addressed transport of spec §6:
// rather than a direct socket per app, frames are pushed to whichever
// container currently owns an app's session over a server-sent-events
// stream keyed by container id. SSE only carries server-to-client data, so
// the client-to-server half of the same conversation arrives separately,
// over the gateway's bridge ingress POST route (pkg/gateway/bridge.go).
//
// The event framing is written by hand rather than through an SSE client
// library: there is no off-the-shelf server-side SSE package in the
// dependency set this is grounded on, which itself hand-rolls the protocol
// connection-by-connection (ssesc's HiveotSseServerConnection.Serve).
package bridge

import (
	"fmt"
	"net/http"
	"sync"
)

// sseChanBuffer bounds how many unsent frames queue for a slow container
// before Send starts blocking. One outstanding reply per call is the
// common case, so a small buffer is enough to absorb a burst.
const sseChanBuffer = 8

// conn is one container's live SSE connection: a channel the HTTP handler
// goroutine drains and writes out as wire bytes, and a done channel closed
// when that goroutine returns so Send can stop enqueuing into a connection
// nobody is reading anymore.
type conn struct {
	frames chan []byte
	done   chan struct{}
}

// Bridge fronts one SSE connection per container and satisfies
// gateway.Transport per connected container, so the gateway can treat a
// bridge-routed session identically to a direct WebSocket one.
type Bridge struct {
	mux   sync.RWMutex
	conns map[string]*conn // containerID -> current connection
}

// New builds a Bridge. Handler() returns the http.Handler to mount for
// inbound SSE connections from containers.
func New() *Bridge {
	return &Bridge{conns: make(map[string]*conn)}
}

// Handler accepts a container's SSE connection, keyed by the container_id
// query parameter, and keeps it open until the client disconnects or the
// connection is replaced by a newer one for the same container.
func (b *Bridge) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		containerID := r.URL.Query().Get("container_id")
		if containerID == "" {
			http.Error(w, "missing container_id", http.StatusBadRequest)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "private, no-cache, no-store, must-revalidate, max-age=0, no-transform")
		w.Header().Set("Connection", "keep-alive")

		c := &conn{frames: make(chan []byte, sseChanBuffer), done: make(chan struct{})}
		b.mux.Lock()
		b.conns[containerID] = c
		b.mux.Unlock()
		defer func() {
			close(c.done)
			b.mux.Lock()
			if b.conns[containerID] == c {
				delete(b.conns, containerID)
			}
			b.mux.Unlock()
		}()

		// A ping lets the container confirm the stream is live before any
		// real reply is pending.
		fmt.Fprintf(w, "event: ping\ndata: {}\n\n")
		flusher.Flush()

		for {
			select {
			case frame, open := <-c.frames:
				if !open {
					return
				}
				if _, err := fmt.Fprintf(w, "event: frame\ndata: %s\n\n", frame); err != nil {
					return
				}
				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}
	}
}

// Transport returns a gateway.Transport that pushes frames to containerID
// over its current SSE connection.
func (b *Bridge) Transport(containerID string) *Transport {
	return &Transport{bridge: b, containerID: containerID}
}

// send fails fast rather than queuing indefinitely for an absent container
// (spec §6): there is no retry or backlog across reconnects.
func (b *Bridge) send(containerID string, frame []byte) error {
	b.mux.RLock()
	c, ok := b.conns[containerID]
	b.mux.RUnlock()
	if !ok {
		return fmt.Errorf("bridge: container %q not connected", containerID)
	}
	select {
	case c.frames <- frame:
		return nil
	case <-c.done:
		return fmt.Errorf("bridge: container %q disconnected", containerID)
	}
}

// Transport implements gateway.Transport over a single container's SSE
// connection. It has no dedicated close semantics of its own: the
// container's connection lifecycle is owned by Bridge.Handler.
type Transport struct {
	bridge      *Bridge
	containerID string
}

func (t *Transport) Send(frame []byte) error {
	return t.bridge.send(t.containerID, frame)
}

func (t *Transport) Close() error {
	return nil
}
