package codec

import (
	"encoding/json"
	"net/http"
)

// ParseJSONRPCRequest decodes a single request envelope from an HTTP body.
func ParseJSONRPCRequest(r *http.Request) (*JSONRPCRequest, *RPCError) {
	var req JSONRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
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

func WriteJSONRPCResponse(w http.ResponseWriter, resp *JSONRPCResponse) error {
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(resp)
}

func WriteJSONRPCError(w http.ResponseWriter, code int, message string, id any) error {
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(NewErrorResponse(id, code, message, nil))
}
