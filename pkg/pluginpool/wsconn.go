package pluginpool

import (
	"context"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/teris-io/shortid"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// wsConn is a Conn implementation that dials a single JSON-RPC-over-
// WebSocket plugin connection and correlates requests with responses by
// id, grounded on hivekit's WssClient: a write-mutex-guarded send plus a
// read loop that completes a waiting caller by correlation id.
type wsConn struct {
	conn *websocket.Conn

	writeMux sync.Mutex

	pendingMux sync.Mutex
	pending    map[string]chan wsFrame

	closeOnce sync.Once
	closed    chan struct{}
}

type wsFrame struct {
	Result []byte
	Err    error
}

type wsRequestEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Method  string          `json:"method"`
	Params  jsoniter.RawMessage `json:"params,omitempty"`
}

type wsResponseEnvelope struct {
	ID     string              `json:"id"`
	Result jsoniter.RawMessage `json:"result"`
	Error  *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// DialWebSocket dials url and returns a Conn suitable for use as a
// pluginpool.Dialer target.
func DialWebSocket(ctx context.Context, url string) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("pluginpool: dial %s: %w", url, err)
	}
	c := &wsConn{
		conn:    conn,
		pending: make(map[string]chan wsFrame),
		closed:  make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *wsConn) readLoop() {
	defer func() {
		c.closeOnce.Do(func() { close(c.closed) })
		c.pendingMux.Lock()
		for id, ch := range c.pending {
			ch <- wsFrame{Err: fmt.Errorf("pluginpool: connection closed")}
			delete(c.pending, id)
		}
		c.pendingMux.Unlock()
	}()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var resp wsResponseEnvelope
		if err := jsonAPI.Unmarshal(data, &resp); err != nil {
			continue
		}
		c.pendingMux.Lock()
		ch, ok := c.pending[resp.ID]
		if ok {
			delete(c.pending, resp.ID)
		}
		c.pendingMux.Unlock()
		if !ok {
			continue
		}
		if resp.Error != nil {
			ch <- wsFrame{Err: fmt.Errorf("pluginpool: %s", resp.Error.Message)}
			continue
		}
		ch <- wsFrame{Result: resp.Result}
	}
}

func (c *wsConn) Send(ctx context.Context, method string, params []byte) ([]byte, error) {
	id := shortid.MustGenerate()
	reply := make(chan wsFrame, 1)
	c.pendingMux.Lock()
	c.pending[id] = reply
	c.pendingMux.Unlock()

	frame, err := jsonAPI.Marshal(wsRequestEnvelope{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("pluginpool: encode request: %w", err)
	}

	c.writeMux.Lock()
	err = c.conn.WriteMessage(websocket.TextMessage, frame)
	c.writeMux.Unlock()
	if err != nil {
		c.pendingMux.Lock()
		delete(c.pending, id)
		c.pendingMux.Unlock()
		return nil, fmt.Errorf("pluginpool: write: %w", err)
	}

	select {
	case result := <-reply:
		return result.Result, result.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.closed:
		return nil, fmt.Errorf("pluginpool: connection closed")
	}
}

func (c *wsConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return c.conn.Close()
}
