package codec

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	JsonRPCVersion = "2.0"

	// Protocol version offered by this server during the initialize handshake.
	DefaultProtocolVersion = "2025-03-26"
)

type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      any             `json:"id,omitempty"`
}

// IsNotification reports whether the request carries no id and therefore
// expects no response.
func (r *JSONRPCRequest) IsNotification() bool {
	return r.ID == nil
}

type JSONRPCResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	Result  any       `json:"result,omitempty"`
	Error   *RPCError `json:"error,omitempty"`
	ID      any       `json:"id"`
}

type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// Notification is a one-way message that does not expect a response.
type Notification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// JSON-RPC 2.0 standard error codes
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603
)

var rpcErrorMessages = map[int]string{
	ParseError:     "Parse error",
	InvalidRequest: "Invalid Request",
	MethodNotFound: "Method not found",
	InvalidParams:  "Invalid params",
	InternalError:  "Internal error",
}

// DecodeRequest parses one frame into a request envelope. The returned error
// distinguishes unparseable bytes (ParseError) from a structurally invalid
// envelope (InvalidRequest).
func DecodeRequest(frame []byte) (*JSONRPCRequest, *RPCError) {
	var req JSONRPCRequest
	if err := json.Unmarshal(frame, &req); err != nil {
		return nil, &RPCError{Code: ParseError, Message: rpcErrorMessages[ParseError] + ": " + err.Error()}
	}
	if req.JSONRPC != JsonRPCVersion {
		return nil, &RPCError{Code: InvalidRequest, Message: "invalid jsonrpc version"}
	}
	if req.Method == "" {
		return nil, &RPCError{Code: InvalidRequest, Message: "missing method"}
	}
	return &req, nil
}

func NewResponse(id any, result any) *JSONRPCResponse {
	return &JSONRPCResponse{
		JSONRPC: JsonRPCVersion,
		Result:  result,
		ID:      id,
	}
}

func NewErrorResponse(id any, code int, message string, data any) *JSONRPCResponse {
	if message == "" {
		message = rpcErrorMessages[code]
	}
	return &JSONRPCResponse{
		JSONRPC: JsonRPCVersion,
		Error: &RPCError{
			Code:    code,
			Message: message,
			Data:    data,
		},
		ID: id,
	}
}

// IDKey canonicalizes a request id for use as a map key. JSON ids may be
// strings or numbers; the type prefix keeps "1" and 1 distinct.
func IDKey(id any) (string, error) {
	switch v := id.(type) {
	case string:
		return "s:" + v, nil
	case float64:
		return fmt.Sprintf("n:%v", v), nil
	case int:
		return fmt.Sprintf("n:%v", float64(v)), nil
	case json.Number:
		return "n:" + v.String(), nil
	default:
		return "", errors.New("request id must be a string or a number")
	}
}
