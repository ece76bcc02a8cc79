package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"

	"github.com/rdkcentral/ripple-core/pkg/bridge"
)

// NewRouter builds the HTTP handler that fronts the gateway: CORS for
// browser-hosted apps, the WebSocket upgrade endpoint, the bridge
// transport's SSE egress and ingress endpoints, and a liveness probe
// (spec §6 "the gateway listens on a single HTTP port"). tokenFromRequest
// extracts the bearer token from an incoming request; see UpgradeHandler.
// br is nil when no bridge-routed containers are configured, in which case
// its two routes are simply not mounted.
func NewRouter(gw *Gateway, auth *Authenticator, tokenFromRequest func(*http.Request) string, allowedOrigins []string, br *bridge.Bridge) http.Handler {
	r := chi.NewRouter()

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowCredentials: true,
	})
	r.Use(c.Handler)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/jsonrpc", gw.UpgradeHandler(auth, tokenFromRequest))

	if br != nil {
		r.Get("/bridge/events", br.Handler())
		r.Post("/bridge/jsonrpc", gw.BridgeIngressHandler(br, auth, tokenFromRequest))
	}

	return r
}
