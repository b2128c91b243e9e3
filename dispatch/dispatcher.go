// Package dispatch is the protocol state machine: it parses request
// envelopes, walks sessions through handshake and teardown, routes tool
// calls through the registry and guarantees exactly one response per open
// request id.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/esmcp/codec"
	"github.com/esmcp/mcp"
	"github.com/esmcp/tools"
	"github.com/esmcp/transport"
)

// Protocol versions this server can negotiate, oldest first.
var supportedVersions = []string{"2024-11-05", "2025-03-26"}

type Dispatcher struct {
	registry *tools.Registry
	info     mcp.ServerInfo
	log      zerolog.Logger
}

func New(registry *tools.Registry, info mcp.ServerInfo, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		info:     info,
		log:      log,
	}
}

// NewSession creates a session in the handshaking state.
func (d *Dispatcher) NewSession() *Session {
	return NewSession(d.log)
}

// Serve drives a stream transport until EOF. Frames are ingested strictly in
// order, but each request past the handshake runs in its own goroutine, so a
// slow Elasticsearch call never stalls the read loop and responses interleave
// in completion order. A framing error is fatal to the session; everything
// else is answered on the stream.
func (d *Dispatcher) Serve(ctx context.Context, t transport.Interface) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	// Deferred in this order so closing the session cancels in-flight
	// handlers before the final wait.
	sess := d.NewSession()
	defer sess.Close()

	for {
		frame, err := t.Receive(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				return nil
			}
			d.log.Error().Err(err).Str("session", sess.ID()).Msg("framing corrupted, terminating session")
			return err
		}

		// The handshake is handled inline so a pipelined second request
		// cannot observe the session before it is ready.
		if sess.State() == StateHandshaking {
			if resp := d.Handle(ctx, sess, frame); resp != nil {
				if err := t.Send(resp); err != nil {
					return err
				}
			}
			if sess.State() == StateClosing {
				return nil
			}
			continue
		}

		wg.Add(1)
		go func(frame []byte) {
			defer wg.Done()
			if resp := d.Handle(ctx, sess, frame); resp != nil {
				if err := t.Send(resp); err != nil {
					d.log.Warn().Err(err).Str("session", sess.ID()).Msg("dropped response: transport write failed")
				}
			}
		}(frame)
	}
}

// Handle processes one decoded frame for a session and returns the response
// envelope, or nil when none must be sent (notifications, and requests whose
// session terminated or was cancelled mid-flight). callerCtx additionally
// bounds the work for per-request transports like HTTP.
func (d *Dispatcher) Handle(callerCtx context.Context, sess *Session, frame []byte) *codec.JSONRPCResponse {
	req, rpcErr := codec.DecodeRequest(frame)
	if rpcErr != nil {
		// Malformed envelope: a protocol error for this message only.
		return &codec.JSONRPCResponse{JSONRPC: codec.JsonRPCVersion, Error: rpcErr, ID: nil}
	}

	if req.IsNotification() {
		d.handleNotification(sess, req)
		return nil
	}

	idKey, err := codec.IDKey(req.ID)
	if err != nil {
		return codec.NewErrorResponse(nil, codec.InvalidRequest, err.Error(), nil)
	}

	switch sess.State() {
	case StateClosing:
		// The transport is going away; the request is discarded.
		return nil

	case StateHandshaking:
		if req.Method != mcp.MethodInitialize {
			// Fatal for the session: the first message must be the handshake.
			sess.Close()
			e := mcp.NewProtocolError("expected %s as first request, got %q", mcp.MethodInitialize, req.Method)
			return &codec.JSONRPCResponse{JSONRPC: codec.JsonRPCVersion, Error: e.RPC(), ID: req.ID}
		}
		return d.handleInitialize(sess, req)

	default: // StateReady
		switch req.Method {
		case mcp.MethodInitialize:
			e := mcp.NewProtocolError("session already initialized")
			return &codec.JSONRPCResponse{JSONRPC: codec.JsonRPCVersion, Error: e.RPC(), ID: req.ID}
		case mcp.MethodPing:
			return codec.NewResponse(req.ID, map[string]any{})
		case mcp.MethodToolsList:
			return codec.NewResponse(req.ID, mcp.ListToolsResult{Tools: d.registry.List()})
		case mcp.MethodToolsCall:
			return d.handleToolsCall(callerCtx, sess, req, idKey)
		default:
			return codec.NewErrorResponse(req.ID, codec.MethodNotFound, "method not found: "+req.Method, nil)
		}
	}
}

func (d *Dispatcher) handleInitialize(sess *Session, req *codec.JSONRPCRequest) *codec.JSONRPCResponse {
	var params mcp.InitializeParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			sess.Close()
			e := mcp.NewProtocolError("malformed initialize params: %s", err)
			return &codec.JSONRPCResponse{JSONRPC: codec.JsonRPCVersion, Error: e.RPC(), ID: req.ID}
		}
	}

	// Echo the client's version when we support it, otherwise answer with
	// the latest we do; the client decides whether to continue.
	version := codec.DefaultProtocolVersion
	if slices.Contains(supportedVersions, params.ProtocolVersion) {
		version = params.ProtocolVersion
	}
	sess.markReady(params.ClientInfo, version)

	d.log.Info().
		Str("session", sess.ID()).
		Str("client", params.ClientInfo.Name).
		Str("protocol_version", version).
		Msg("handshake complete")

	return codec.NewResponse(req.ID, mcp.InitializeResult{
		ProtocolVersion: version,
		Capabilities:    mcp.ServerCapabilities{Tools: &mcp.ToolCapabilities{}},
		ServerInfo:      d.info,
		Instructions:    "Provides access to Elasticsearch",
	})
}

func (d *Dispatcher) handleToolsCall(callerCtx context.Context, sess *Session, req *codec.JSONRPCRequest, idKey string) *codec.JSONRPCResponse {
	var params mcp.CallToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return codec.NewErrorResponse(req.ID, codec.InvalidParams, "malformed tools/call params: "+err.Error(), nil)
	}
	if params.Name == "" {
		return codec.NewErrorResponse(req.ID, codec.InvalidParams, "missing tool name", nil)
	}

	reqCtx, err := sess.beginRequest(idKey)
	if err != nil {
		me := mcp.AsError(err)
		if me.Kind == mcp.KindSessionTerminated {
			return nil
		}
		return &codec.JSONRPCResponse{JSONRPC: codec.JsonRPCVersion, Error: me.RPC(), ID: req.ID}
	}

	// A per-request transport (HTTP) cancels the handler when its own
	// connection drops, not only when the whole session does.
	stop := context.AfterFunc(callerCtx, func() { sess.cancelRequest(idKey) })
	defer stop()

	result, callErr := d.registry.Call(reqCtx, params.Name, params.Arguments)

	cancelled := reqCtx.Err() != nil
	if !sess.endRequest(idKey) || cancelled {
		// Session gone or request cancelled: the response is abandoned, per
		// transport-close semantics.
		d.log.Debug().Str("session", sess.ID()).Str("tool", params.Name).Msg("request abandoned")
		return nil
	}

	if callErr != nil {
		me := mcp.AsError(callErr)
		d.log.Warn().
			Str("session", sess.ID()).
			Str("tool", params.Name).
			Str("kind", string(me.Kind)).
			Msg(me.Message)
		return &codec.JSONRPCResponse{JSONRPC: codec.JsonRPCVersion, Error: me.RPC(), ID: req.ID}
	}
	return codec.NewResponse(req.ID, result)
}

func (d *Dispatcher) handleNotification(sess *Session, req *codec.JSONRPCRequest) {
	switch req.Method {
	case mcp.NotificationInitialized:
		d.log.Debug().Str("session", sess.ID()).Msg("client reported initialized")

	case mcp.NotificationCancelled:
		var params mcp.CancelledParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return
		}
		key, err := codec.IDKey(params.RequestID)
		if err != nil {
			return
		}
		if sess.cancelRequest(key) {
			d.log.Debug().Str("session", sess.ID()).Str("reason", params.Reason).Msg("request cancelled by client")
		}

	default:
		// Unknown notifications are ignored, per JSON-RPC.
		d.log.Debug().Str("method", req.Method).Msg("ignoring unknown notification")
	}
}
