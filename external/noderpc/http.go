package noderpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/availkit/go-node-client/entities"
)

// HTTPTransport is the stateless transport: one POST per call, no
// subscriptions. Safe for concurrent use.
type HTTPTransport struct {
	url        string
	httpClient *http.Client
	nextID     atomic.Uint64
}

func NewHTTPTransport(url string, timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (t *HTTPTransport) Call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	if params == nil {
		params = []any{}
	}
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      t.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("marshalling rpc request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating rpc request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, entities.NewTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, entities.NewTransportError(fmt.Errorf("unexpected http status %d calling %s", resp.StatusCode, method))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, entities.NewTransportError(fmt.Errorf("reading rpc response: %w", err))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(raw, &rpcResp); err != nil {
		return nil, entities.NewDecodingError(fmt.Sprintf("malformed rpc response for %s: %v", method, err))
	}
	if rpcResp.Error != nil {
		return nil, mapRPCError(method, rpcResp.Error)
	}

	return rpcResp.Result, nil
}
