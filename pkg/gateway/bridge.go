package gateway

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/rdkcentral/ripple-core/pkg/bridge"
	"github.com/teris-io/shortid"
)

// maxBridgeFrameSize bounds a single ingress POST body, mirroring the
// WebSocket transport's read limit.
const maxBridgeFrameSize = 1 << 20

// bridgeSession returns the Session already handling containerID's bridge
// traffic, creating one backed by br's SSE-publishing Transport on first
// use. Every subsequent frame from the same container reuses it, so
// CallContext.CallID stays monotonic per container the way it is per
// WebSocket connection.
func (g *Gateway) bridgeSession(containerID, appID string, br *bridge.Bridge) *Session {
	if v, ok := g.bridgeSessions.Load(containerID); ok {
		return v.(*Session)
	}
	session := NewSession(shortid.MustGenerate(), appID, KindBridge, containerID, br.Transport(containerID))
	g.Register(session)
	g.bridgeSessions.Store(containerID, session)
	return session
}

// BridgeIngressHandler accepts a single JSON-RPC frame POSTed by a
// container on behalf of one of its bridge-routed apps (spec §6). The
// bridge is one-way for replies — HandleFrame's output is pushed later
// over the container's SSE stream (pkg/bridge), not in this response — so
// this handler only ever reports 202 Accepted or an auth/decode failure.
func (gw *Gateway) BridgeIngressHandler(br *bridge.Bridge, auth *Authenticator, tokenFromRequest func(*http.Request) string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := tokenFromRequest(r)
		appID, err := auth.AppIDFromToken(token)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		containerID := r.URL.Query().Get("container_id")
		if containerID == "" {
			http.Error(w, "missing container_id", http.StatusBadRequest)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxBridgeFrameSize))
		if err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		session := gw.bridgeSession(containerID, appID, br)
		if err := gw.HandleFrame(r.Context(), session, body); err != nil {
			slog.Warn("gateway: dropping malformed bridge frame",
				slog.String("containerID", containerID), slog.String("error", err.Error()))
			http.Error(w, "malformed frame", http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}
