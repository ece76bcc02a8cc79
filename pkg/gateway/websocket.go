package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/teris-io/shortid"
)

// wsUpgrader is shared across all upgrade requests; gorilla's upgrader is
// safe for concurrent use once configured.
var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsTransport implements Transport over a single gorilla/websocket
// connection, grounded on hivekit's WssServerConnection: reads run on
// their own goroutine, writes are serialized behind a mutex since gorilla
// connections permit only one concurrent writer.
type wsTransport struct {
	conn *websocket.Conn
	mux  sync.Mutex
}

func (t *wsTransport) Send(frame []byte) error {
	t.mux.Lock()
	defer t.mux.Unlock()
	return t.conn.WriteMessage(websocket.TextMessage, frame)
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}

// UpgradeHandler upgrades an HTTP request to a WebSocket, authenticates the
// caller, creates a Session, registers it with gw, and runs its read loop
// until the connection closes (spec §6). tokenFromRequest extracts the
// bearer token a concrete HTTP router makes available (query param, header,
// subprotocol, ...).
func (gw *Gateway) UpgradeHandler(auth *Authenticator, tokenFromRequest func(*http.Request) string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := tokenFromRequest(r)
		appID, err := auth.AppIDFromToken(token)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("gateway: websocket upgrade failed", slog.String("error", err.Error()))
			return
		}

		sessionID := shortid.MustGenerate()
		transport := &wsTransport{conn: conn}
		session := NewSession(sessionID, appID, KindWebSocket, "", transport)
		gw.Register(session)

		gw.readLoop(r.Context(), session, conn)
	}
}

// readLoop pumps frames off conn until it closes, handing each one to
// HandleFrame. A read error or a close frame ends the session; readLoop
// never returns early while the connection is healthy (spec §3: a session
// lives until its transport closes).
func (gw *Gateway) readLoop(ctx context.Context, session *Session, conn *websocket.Conn) {
	defer func() {
		gw.Unregister(session)
		_ = session.Close()
	}()

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Time{})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				slog.Warn("gateway: websocket read error",
					slog.String("sessionID", session.SessionID), slog.String("error", err.Error()))
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		if err := gw.HandleFrame(ctx, session, data); err != nil {
			slog.Warn("gateway: dropping malformed frame",
				slog.String("sessionID", session.SessionID), slog.String("error", err.Error()))
		}
	}
}
