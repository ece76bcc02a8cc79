// Package bootstrap runs the fixed, ordered startup sequence of spec §6:
// set up the extn bus, start accepting plugin connections, then start the
// client-facing gateway. Each step either succeeds before the next one
// starts or the whole process aborts — there is no partial-success state.
//
// Grounded on boot.rs: SetupExtnClientStep -> StartWsStep ->
// FireboltGatewayStep, translated from Rust's chained `.step()` combinator
// into a Go slice of named steps run in a plain loop.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/grandcat/zeroconf"
	"golang.org/x/net/netutil"

	"github.com/rdkcentral/ripple-core/pkg/bridge"
	"github.com/rdkcentral/ripple-core/pkg/contracts"
	"github.com/rdkcentral/ripple-core/pkg/eventproc"
	"github.com/rdkcentral/ripple-core/pkg/extnclient"
	"github.com/rdkcentral/ripple-core/pkg/gateway"
	"github.com/rdkcentral/ripple-core/pkg/localization"
	"github.com/rdkcentral/ripple-core/pkg/pluginpool"
	"github.com/rdkcentral/ripple-core/pkg/router"
	"github.com/rdkcentral/ripple-core/pkg/storage"
)

// Exit codes (spec §6): 0 success, 1 a named step failed, 2 an
// unrecoverable runtime error after startup (e.g. listener died).
const (
	ExitOK             = 0
	ExitStepFailed     = 1
	ExitRuntimeFailure = 2
)

// AdvertiseConfig configures optional mDNS advertisement once the gateway
// is listening.
type AdvertiseConfig struct {
	Enabled     bool
	ServiceName string
	ServiceType string
}

// PluginConfig configures the plugin pool dialed during StartWs.
type PluginConfig struct {
	Size int
	Dial pluginpool.Dialer
}

// Config is everything a run of State needs to know; the three steps read
// from it in order and populate State's fields as they succeed.
type Config struct {
	ListenAddress  string
	MaxConnections int
	ResourceCaps   map[string]int
	AuthSecret     []byte
	Plugin         PluginConfig
	Advertise      AdvertiseConfig

	// StoragePath, if set, backs the Storage contract with a JSON file
	// instead of an in-memory map so app settings survive a restart.
	StoragePath string

	// EnableBridge mounts the container-addressed SSE bridge transport
	// (spec §6) alongside the WebSocket one. Off by default: most
	// deployments only ever see direct WebSocket apps.
	EnableBridge bool
}

// State accumulates what each step produces, so later steps (and the
// caller, once boot completes) can reach the wired-up components.
type State struct {
	Config Config

	Bus     *extnclient.Client
	Router  *router.State
	Pool    *pluginpool.Pool
	Gateway *gateway.Gateway
	Storage *storage.Store
	Events  *eventproc.Processor
	Bridge  *bridge.Bridge

	listener  net.Listener
	mdnsEntry *zeroconf.Server
}

type step struct {
	name string
	run  func(context.Context, *State) error
}

// Boot runs every step in order, aborting at the first failure (spec §6).
// It returns ExitOK on full success or ExitStepFailed naming the step that
// broke, wrapped in contracts.ErrBootstrapError.
func Boot(ctx context.Context, cfg Config) (*State, int, error) {
	st := &State{Config: cfg}
	steps := []step{
		{"SetupExtnClient", setupExtnClient},
		{"StartWs", startWs},
		{"StartFireboltGateway", startFireboltGateway},
	}
	for _, s := range steps {
		if err := s.run(ctx, st); err != nil {
			slog.Error("bootstrap: step failed", slog.String("step", s.name), slog.String("error", err.Error()))
			return st, ExitStepFailed, fmt.Errorf("bootstrap: step %s: %w: %v", s.name, contracts.ErrBootstrapError, err)
		}
		slog.Info("bootstrap: step completed", slog.String("step", s.name))
	}
	return st, ExitOK, nil
}

// Shutdown tears down whatever Boot brought up, in reverse order.
func (st *State) Shutdown() {
	if st.mdnsEntry != nil {
		st.mdnsEntry.Shutdown()
	}
	if st.Pool != nil {
		st.Pool.Close()
	}
	if st.listener != nil {
		_ = st.listener.Close()
	}
	if st.Bus != nil {
		st.Bus.Stop()
	}
}

// setupExtnClient initializes the extn bus and starts its reaper. This
// must succeed before anything else runs: every later step communicates
// with extensions over this bus.
//
// It also opens storage and registers the localization.* method table,
// since those have no dial-out dependency of their own and only need the
// bus and router this step already builds. The event dispatcher closes
// over st rather than st.Gateway directly, because the gateway itself
// isn't built until StartFireboltGateway; by the time any app actually
// listens for an event, Boot has already run that step.
func setupExtnClient(_ context.Context, st *State) error {
	st.Bus = extnclient.New(nil)
	st.Bus.StartReaper()
	st.Router = router.NewState(st.Config.ResourceCaps)

	if st.Config.StoragePath != "" {
		store, err := storage.Open(st.Config.StoragePath)
		if err != nil {
			return fmt.Errorf("storage: open %s: %w", st.Config.StoragePath, err)
		}
		st.Storage = store
	} else {
		st.Storage = storage.New()
	}

	st.Events = eventproc.New(func(appID string, eventID string, mode eventproc.CallbackMode, value any) {
		switch mode {
		case eventproc.FireboltAppEvent:
			if st.Gateway != nil {
				st.Gateway.NotifyApp(appID, eventID, value)
			}
		case eventproc.ExtnEvent:
			slog.Warn("bootstrap: extn-event dispatch not wired, dropping", slog.String("eventID", eventID))
		}
	})

	loc := localization.New(st.Storage, st.Bus, st.Events)
	if err := loc.Register(st.Router); err != nil {
		return fmt.Errorf("localization: %w", err)
	}
	return nil
}

// startWs opens the listener extensions/plugins dial into and brings up
// the plugin pool against it. A controller dial failure aborts bootstrap
// (pluginpool.Open already enforces this); a request-pool dial failure
// does not, per spec's plugin pool bootstrap contract.
func startWs(_ context.Context, st *State) error {
	ln, err := net.Listen("tcp", st.Config.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", st.Config.ListenAddress, err)
	}
	if st.Config.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, st.Config.MaxConnections)
	}
	st.listener = ln

	if st.Config.Plugin.Dial == nil {
		return nil
	}
	pool, err := pluginpool.Open(context.Background(), st.Config.Plugin.Size, st.Config.Plugin.Dial, func(status pluginpool.Status) {
		slog.Info("bootstrap: plugin pool status", slog.Any("status", status))
	})
	if err != nil {
		return fmt.Errorf("plugin pool: %w", err)
	}
	st.Pool = pool
	return nil
}

// startFireboltGateway wires the gateway HTTP handler onto the listener
// opened by startWs and, if configured, advertises it over mDNS so
// co-located apps can discover it without a fixed address.
func startFireboltGateway(_ context.Context, st *State) error {
	st.Gateway = gateway.New(st.Router)
	if st.Config.EnableBridge {
		st.Bridge = bridge.New()
	}

	auth := gateway.NewAuthenticator(st.Config.AuthSecret)
	tokenFromRequest := func(r *http.Request) string { return r.URL.Query().Get("token") }
	srv := &http.Server{Handler: gateway.NewRouter(st.Gateway, auth, tokenFromRequest, []string{"*"}, st.Bridge)}
	go func() {
		if err := srv.Serve(st.listener); err != nil && err != http.ErrServerClosed {
			slog.Error("bootstrap: gateway listener died", slog.String("error", err.Error()))
		}
	}()

	if !st.Config.Advertise.Enabled {
		return nil
	}
	_, portStr, err := net.SplitHostPort(st.listener.Addr().String())
	if err != nil {
		return fmt.Errorf("advertise: resolve listening port: %w", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("advertise: parse listening port: %w", err)
	}
	mdns, err := zeroconf.Register(st.Config.Advertise.ServiceName, st.Config.Advertise.ServiceType, "local.", port, nil, nil)
	if err != nil {
		return fmt.Errorf("advertise: %w", err)
	}
	st.mdnsEntry = mdns
	return nil
}
