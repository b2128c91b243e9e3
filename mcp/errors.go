package mcp

import (
	"errors"
	"fmt"

	"github.com/esmcp/codec"
)

// ErrorKind classifies every failure the dispatcher can report. Tool-level
// failures are recovered at the dispatch boundary and become error envelopes;
// only framing corruption tears down a session.
type ErrorKind string

const (
	// Malformed envelope, unknown method, handshake violation.
	KindProtocol ErrorKind = "protocol"

	// Request named a tool not present in the registry.
	KindUnknownTool ErrorKind = "unknown_tool"

	// Arguments failed schema validation. Field names the first offender.
	KindInvalidArguments ErrorKind = "invalid_arguments"

	// The Elasticsearch call failed (network, auth, server-side rejection).
	KindUpstream ErrorKind = "upstream"

	// The owning session closed before the request completed. No response
	// is sent for this kind.
	KindSessionTerminated ErrorKind = "session_terminated"
)

type Error struct {
	Kind    ErrorKind
	Message string

	// Field is the first offending argument field, for KindInvalidArguments.
	Field string

	// Status is the upstream HTTP status, for KindUpstream, when known.
	Status int
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field %q)", e.Kind, e.Message, e.Field)
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Kind, e.Message, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func NewProtocolError(format string, args ...any) *Error {
	return &Error{Kind: KindProtocol, Message: fmt.Sprintf(format, args...)}
}

func NewUnknownToolError(name string) *Error {
	return &Error{Kind: KindUnknownTool, Message: fmt.Sprintf("unknown tool %q", name)}
}

func NewInvalidArgumentsError(field, message string) *Error {
	return &Error{Kind: KindInvalidArguments, Message: message, Field: field}
}

func NewUpstreamError(status int, format string, args ...any) *Error {
	return &Error{Kind: KindUpstream, Status: status, Message: fmt.Sprintf(format, args...)}
}

var ErrSessionTerminated = &Error{Kind: KindSessionTerminated, Message: "session terminated"}

// RPC converts the error into a JSON-RPC error object. The kind travels in
// the data member so clients can branch without parsing messages.
func (e *Error) RPC() *codec.RPCError {
	data := map[string]any{"kind": string(e.Kind)}
	if e.Field != "" {
		data["field"] = e.Field
	}
	if e.Status != 0 {
		data["status"] = e.Status
	}

	code := codec.InternalError
	switch e.Kind {
	case KindProtocol:
		code = codec.InvalidRequest
	case KindUnknownTool:
		code = codec.MethodNotFound
	case KindInvalidArguments:
		code = codec.InvalidParams
	case KindUpstream:
		code = codec.InternalError
	}
	return &codec.RPCError{Code: code, Message: e.Message, Data: data}
}

// AsError extracts an *Error from an error chain, wrapping foreign errors as
// internal upstream failures so nothing escapes the taxonomy.
func AsError(err error) *Error {
	var me *Error
	if errors.As(err, &me) {
		return me
	}
	return &Error{Kind: KindUpstream, Message: err.Error()}
}
