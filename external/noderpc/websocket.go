package noderpc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/availkit/go-node-client/entities"
)

// WSTransport is a persistent-connection transport. A single reader goroutine
// demultiplexes call responses (matched by request id) and subscription
// notifications (matched by subscription id). Safe for concurrent use.
type WSTransport struct {
	conn *websocket.Conn
	log  *zap.SugaredLogger

	writeMu sync.Mutex
	nextID  atomic.Uint64

	mu      sync.Mutex
	pending map[uint64]chan *rpcResponse
	subs    map[string]chan json.RawMessage

	done    chan struct{}
	doneErr error
}

// wsEnvelope covers both response and notification frames.
type wsEnvelope struct {
	ID     *uint64         `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcErrorBody   `json:"error"`
	Method string          `json:"method"`
	Params *struct {
		Subscription string          `json:"subscription"`
		Result       json.RawMessage `json:"result"`
	} `json:"params"`
}

func DialWS(ctx context.Context, url string, logger *zap.SugaredLogger) (*WSTransport, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, entities.NewTransportError(fmt.Errorf("dialing %s: %w", url, err))
	}
	t := &WSTransport{
		conn:    conn,
		log:     logger,
		pending: make(map[uint64]chan *rpcResponse),
		subs:    make(map[string]chan json.RawMessage),
		done:    make(chan struct{}),
	}
	go t.readLoop()
	return t, nil
}

func (t *WSTransport) Close() error {
	return t.conn.Close()
}

func (t *WSTransport) Call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	if params == nil {
		params = []any{}
	}
	id := t.nextID.Add(1)
	respCh := make(chan *rpcResponse, 1)

	t.mu.Lock()
	t.pending[id] = respCh
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		delete(t.pending, id)
		t.mu.Unlock()
	}()

	if err := t.write(rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params}); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.done:
		return nil, entities.NewTransportError(fmt.Errorf("connection closed: %w", t.doneErr))
	case resp := <-respCh:
		if resp.Error != nil {
			return nil, mapRPCError(method, resp.Error)
		}
		return resp.Result, nil
	}
}

// Subscribe starts a server-side subscription. The returned stream is closed
// when the connection drops or Unsubscribe is called.
func (t *WSTransport) Subscribe(ctx context.Context, method, unsubscribeMethod string, params []any) (*Subscription, error) {
	result, err := t.Call(ctx, method, params)
	if err != nil {
		return nil, err
	}
	var subID string
	if err := json.Unmarshal(result, &subID); err != nil {
		return nil, entities.NewDecodingError(fmt.Sprintf("subscription id for %s: %v", method, err))
	}

	ch := make(chan json.RawMessage, 16)
	t.mu.Lock()
	t.subs[subID] = ch
	t.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			t.mu.Lock()
			if live, ok := t.subs[subID]; ok {
				delete(t.subs, subID)
				close(live)
			}
			t.mu.Unlock()
			// Best effort; the node also drops the subscription when the
			// connection closes.
			if _, err := t.Call(context.Background(), unsubscribeMethod, []any{subID}); err != nil {
				t.log.Debugw("unsubscribe failed", "method", unsubscribeMethod, "error", err)
			}
		})
	}

	return &Subscription{C: ch, cancel: cancel}, nil
}

func (t *WSTransport) write(req rpcRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshalling rpc request: %v", err)
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if err := t.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return entities.NewTransportError(fmt.Errorf("writing %s: %w", req.Method, err))
	}
	return nil
}

func (t *WSTransport) readLoop() {
	for {
		_, raw, err := t.conn.ReadMessage()
		if err != nil {
			t.shutdown(err)
			return
		}

		var env wsEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			t.log.Warnw("dropping malformed frame", "error", err)
			continue
		}

		switch {
		case env.ID != nil:
			t.mu.Lock()
			respCh, ok := t.pending[*env.ID]
			t.mu.Unlock()
			if ok {
				respCh <- &rpcResponse{ID: *env.ID, Result: env.Result, Error: env.Error}
			}
		case env.Params != nil:
			// The send stays under t.mu: cancel closes the channel under the
			// same lock, and the non-blocking send cannot stall other holders.
			t.mu.Lock()
			dropped := false
			if subCh, ok := t.subs[env.Params.Subscription]; ok {
				select {
				case subCh <- env.Params.Result:
				default:
					dropped = true
				}
			}
			t.mu.Unlock()
			if dropped {
				// Slow consumer. Head watchers re-fetch by height, so a
				// missed notification only delays them one block.
				t.log.Warnw("dropping subscription notification", "subscription", env.Params.Subscription)
			}
		}
	}
}

func (t *WSTransport) shutdown(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.doneErr = err
	close(t.done)
	for id, ch := range t.subs {
		close(ch)
		delete(t.subs, id)
	}
}
