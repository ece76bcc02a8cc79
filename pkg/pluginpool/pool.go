// Package pluginpool implements the plugin pool and controller-plugin
// reconnect supervisor of spec §4.3: a fixed-size array of long-lived
// duplex connections to the native platform (Thunder/WPEFramework or a
// vendor distributor service), with connection 0 reserved for the
// controller.
//
// Grounded on the original Rust setup_thunder_pool_step.rs's exact
// sequencing (controller connection first and fail-fast; the remaining
// pool started only once the controller is up; ExtnStatus events
// bracketing pool health) and on hivekit's WssServerConnection's
// per-connection write-mutex discipline for "never hold the routing
// lock across a write" (spec §5).
package pluginpool

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rdkcentral/ripple-core/pkg/contracts"
)

// Conn is a single long-lived duplex connection to the native platform.
// Implementations (a Thunder JSON-RPC/WebSocket client, a distributor SDK
// client, ...) are supplied by the caller; the pool only manages their
// lifecycle and routing.
type Conn interface {
	// Send writes a request and returns its raw response.
	Send(ctx context.Context, method string, params []byte) ([]byte, error)
	// Close releases the connection's resources.
	Close() error
}

// Dialer opens a new Conn. index 0 is always the controller connection.
type Dialer func(ctx context.Context, index int) (Conn, error)

// Status mirrors Ripple's ExtnStatus: Ready once the pool can serve
// requests, Error while it cannot (spec §4.3 Bootstrap contract).
type Status int

const (
	StatusReady Status = iota
	StatusError
)

// slot is one pool member plus the mutex that enforces single-writer
// access to its connection (no lock is ever held across Conn.Send itself;
// the mutex only protects the swap of the Conn pointer on reconnect).
type slot struct {
	mux  sync.RWMutex
	conn Conn
}

func (s *slot) get() Conn {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return s.conn
}

func (s *slot) set(c Conn) {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.conn = c
}

// Pool multiplexes calls from any extension onto a fixed-size array of
// connections. Index 0 is the controller; 1..N-1 form the round-robin
// request/response pool.
type Pool struct {
	dial     Dialer
	slots    []*slot
	next     atomic.Int64 // round-robin cursor over the request pool
	status   atomic.Int32
	statusFn func(Status)

	reconnectDelay time.Duration
	stopCh         chan struct{}
	stopOnce       sync.Once
}

// Open establishes the controller connection and the request pool, in
// that order, per spec §4.3's bootstrap contract. size must be >= 2: one
// controller slot plus at least one request slot.
//
// If the controller connection fails to open, Open returns an error and
// the caller's bootstrap must fail (spec §4.3: "the whole bootstrap fails
// ... and the process exits"). If the request pool fails after the
// controller is up, Open still returns successfully but onStatus is
// invoked with StatusError, and the supervisor keeps retrying in the
// background until the pool recovers, at which point onStatus(StatusReady)
// fires again.
func Open(ctx context.Context, size int, dial Dialer, onStatus func(Status)) (*Pool, error) {
	if size < 2 {
		return nil, fmt.Errorf("pluginpool: pool size %d < 2: no dedicated connection for controller events", size)
	}
	if onStatus == nil {
		onStatus = func(Status) {}
	}
	p := &Pool{
		dial:           dial,
		statusFn:       onStatus,
		reconnectDelay: time.Second,
		stopCh:         make(chan struct{}),
	}
	p.slots = make([]*slot, size)
	for i := range p.slots {
		p.slots[i] = &slot{}
	}

	controllerConn, err := dial(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("pluginpool: controller connection failed: %w", err)
	}
	p.slots[0].set(controllerConn)
	go p.superviseSlot(0)

	g, gctx := errgroup.WithContext(ctx)
	for i := 1; i < size; i++ {
		i := i
		g.Go(func() error {
			conn, err := dial(gctx, i)
			if err != nil {
				return err
			}
			p.slots[i].set(conn)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		slog.Error("pluginpool: request pool failed to open, controller stays up", slog.String("error", err.Error()))
		p.status.Store(int32(StatusError))
		p.statusFn(StatusError)
	} else {
		p.status.Store(int32(StatusReady))
		p.statusFn(StatusReady)
	}
	for i := 1; i < size; i++ {
		go p.superviseSlot(i)
	}
	return p, nil
}

// Controller returns the reserved controller connection (slot 0).
func (p *Pool) Controller() Conn {
	return p.slots[0].get()
}

// Send routes a call round-robin across the request pool (slots 1..N-1),
// pinning it to the chosen connection for its full duration. If that
// connection is currently down, this fails fast with an error wrapping
// the standard SendFailure condition rather than blocking or silently
// retrying on a different slot mid-call (spec §4.3: "a call is pinned to
// a connection for its full duration").
func (p *Pool) Send(ctx context.Context, method string, params []byte) ([]byte, error) {
	if len(p.slots) < 2 {
		return nil, fmt.Errorf("pluginpool: no request slots configured")
	}
	n := p.next.Add(1) - 1
	idx := 1 + int(n%int64(len(p.slots)-1))
	conn := p.slots[idx].get()
	if conn == nil {
		return nil, fmt.Errorf("pluginpool: slot %d is down: %w", idx, contracts.ErrSendFailure)
	}
	resp, err := conn.Send(ctx, method, params)
	if err != nil {
		return nil, fmt.Errorf("pluginpool: send failed on slot %d: %w", idx, err)
	}
	return resp, nil
}

// CurrentStatus reports the pool's current health.
func (p *Pool) CurrentStatus() Status {
	return Status(p.status.Load())
}

// Close stops all supervisors and closes every open connection.
func (p *Pool) Close() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	for _, s := range p.slots {
		if c := s.get(); c != nil {
			_ = c.Close()
		}
	}
}

// superviseSlot reopens slot idx asynchronously whenever its connection
// drops, rejoining the pool on success (spec §4.3). It recomputes overall
// pool status as request slots come back up.
func (p *Pool) superviseSlot(idx int) {
	backoff := p.reconnectDelay
	for {
		select {
		case <-p.stopCh:
			return
		default:
		}
		if p.slots[idx].get() != nil {
			// slot still healthy; nothing to do until a caller observes a
			// send failure and clears it via MarkDown.
			select {
			case <-p.stopCh:
				return
			case <-time.After(backoff):
				continue
			}
		}
		conn, err := p.dial(context.Background(), idx)
		if err != nil {
			slog.Warn("pluginpool: reconnect failed", slog.Int("slot", idx), slog.String("error", err.Error()))
			select {
			case <-p.stopCh:
				return
			case <-time.After(backoff):
			}
			continue
		}
		p.slots[idx].set(conn)
		slog.Info("pluginpool: slot reconnected", slog.Int("slot", idx))
		if idx != 0 {
			p.recomputeStatus()
		}
	}
}

// MarkDown clears slot idx's connection, e.g. after the caller observes a
// send failure, so the supervisor picks it up for reconnect and
// subsequent Send calls fail fast instead of reusing a broken conn.
func (p *Pool) MarkDown(idx int) {
	if idx < 0 || idx >= len(p.slots) {
		return
	}
	if c := p.slots[idx].get(); c != nil {
		_ = c.Close()
	}
	p.slots[idx].set(nil)
	if idx != 0 {
		p.recomputeStatus()
	} else {
		p.status.Store(int32(StatusError))
		p.statusFn(StatusError)
	}
}

func (p *Pool) recomputeStatus() {
	for i := 1; i < len(p.slots); i++ {
		if p.slots[i].get() == nil {
			if Status(p.status.Load()) != StatusError {
				p.status.Store(int32(StatusError))
				p.statusFn(StatusError)
			}
			return
		}
	}
	if Status(p.status.Load()) != StatusReady {
		p.status.Store(int32(StatusReady))
		p.statusFn(StatusReady)
	}
}
