package entities

import (
	"errors"
	"fmt"
)

var ErrStoreEntityNotFound = errors.New("store resource not found")

// TransportError marks connectivity, timeout and TLS level failures. These are
// the only errors the retry policy is allowed to retry.
type TransportError struct {
	Err error
}

func NewTransportError(err error) *TransportError {
	return &TransportError{Err: err}
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// DecodingError marks malformed bytes or a response shape mismatch. Never retried.
type DecodingError struct {
	Msg string
}

func NewDecodingError(msg string) *DecodingError {
	return &DecodingError{Msg: msg}
}

func (e *DecodingError) Error() string {
	return "decoding: " + e.Msg
}

// RuntimeRejection is a node-side dispatch validity failure (stale or future
// nonce, insufficient balance, payment too low). Resubmitting identical bytes
// fails identically, so these are never retried.
type RuntimeRejection struct {
	Code    int
	Message string
}

func NewRuntimeRejection(code int, message string) *RuntimeRejection {
	return &RuntimeRejection{Code: code, Message: message}
}

func (e *RuntimeRejection) Error() string {
	return fmt.Sprintf("runtime rejection (code %d): %s", e.Code, e.Message)
}

// ResourceExhausted covers rejections caused by resource limits, e.g. an
// oversized extrinsic or a full transaction pool. Not retryable with the same bytes.
type ResourceExhausted struct {
	Code    int
	Message string
}

func NewResourceExhausted(code int, message string) *ResourceExhausted {
	return &ResourceExhausted{Code: code, Message: message}
}

func (e *ResourceExhausted) Error() string {
	return fmt.Sprintf("resource exhausted (code %d): %s", e.Code, e.Message)
}

// UnsupportedOperation means the node lacks the requested RPC method. The caller
// must fall back to a different query path; retrying cannot help.
type UnsupportedOperation struct {
	Method string
}

func NewUnsupportedOperation(method string) *UnsupportedOperation {
	return &UnsupportedOperation{Method: method}
}

func (e *UnsupportedOperation) Error() string {
	return fmt.Sprintf("unsupported operation: %s", e.Method)
}

// UserInputError marks malformed caller-supplied data (addresses, hashes,
// ranges). Fails fast, before any network call.
type UserInputError struct {
	Msg string
}

func NewUserInputError(msg string) *UserInputError {
	return &UserInputError{Msg: msg}
}

func (e *UserInputError) Error() string {
	return "invalid input: " + e.Msg
}

// IsRetryable reports whether an error may be retried with identical inputs.
// Only transport level failures qualify; everything else either cannot succeed
// on retry or requires the caller to rebuild the request.
func IsRetryable(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

func IsRuntimeRejection(err error) bool {
	var rr *RuntimeRejection
	return errors.As(err, &rr)
}

func IsUnsupported(err error) bool {
	var uo *UnsupportedOperation
	return errors.As(err, &uo)
}
