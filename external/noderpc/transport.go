// Package noderpc is the typed JSON-RPC client for the node. The wire dialect
// (method names, parameter shapes) is the node's fixed, pre-existing contract.
package noderpc

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/availkit/go-node-client/entities"
)

// Transport sends a single JSON-RPC request and returns the raw result.
// Implementations must return *entities.TransportError for connectivity level
// failures so the retry policy can distinguish them.
type Transport interface {
	Call(ctx context.Context, method string, params []any) (json.RawMessage, error)
}

// SubscriptionTransport is implemented by persistent-connection transports that
// can route server-initiated notifications.
type SubscriptionTransport interface {
	Transport
	Subscribe(ctx context.Context, method, unsubscribeMethod string, params []any) (*Subscription, error)
}

// Subscription is a live notification stream. C is closed when the
// subscription ends; Unsubscribe is idempotent.
type Subscription struct {
	C      <-chan json.RawMessage
	cancel func()
}

func (s *Subscription) Unsubscribe() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcErrorBody   `json:"error"`
}

type rpcErrorBody struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Author-interface error codes as defined by the node. 1010 carries the
// dispatch validity failure; 1016 means the pool dropped the extrinsic due to
// resource limits.
const (
	codeMethodNotFound     = -32601
	codeAuthorBadFormat    = 1001
	codeImmediatelyDropped = 1016
)

// mapRPCError converts a node error object into the library's taxonomy. Errors
// that are not clearly transport level are never retryable.
func mapRPCError(method string, e *rpcErrorBody) error {
	switch {
	case e.Code == codeMethodNotFound:
		return entities.NewUnsupportedOperation(method)
	case e.Code == codeImmediatelyDropped:
		return entities.NewResourceExhausted(e.Code, e.Message)
	case e.Code == codeAuthorBadFormat:
		return entities.NewDecodingError(e.Message)
	case exhaustsResources(e):
		return entities.NewResourceExhausted(e.Code, e.Message)
	default:
		return entities.NewRuntimeRejection(e.Code, e.Message)
	}
}

func exhaustsResources(e *rpcErrorBody) bool {
	if strings.Contains(e.Message, "Exhausts") || strings.Contains(e.Message, "too large") {
		return true
	}
	return strings.Contains(string(e.Data), "Exhausts")
}
