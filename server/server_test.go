package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esmcp/codec"
	"github.com/esmcp/dispatch"
	"github.com/esmcp/es"
	"github.com/esmcp/mcp"
	"github.com/esmcp/tools"
)

// newTestServer wires a real dispatcher over an in-memory echo tool plus the
// real Elasticsearch esql tool pointed at an unreachable address.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	client, err := es.NewClient(es.Config{Address: "http://127.0.0.1:1"})
	require.NoError(t, err)
	esTools := tools.NewElasticsearchTools(client, zerolog.Nop())

	descs := append([]tools.Descriptor{{
		Name:        "echo",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"value":{"type":"string"}},"required":["value"]}`),
		Handler: func(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
			return mcp.NewToolResult(mcp.NewTextContent(args["value"].(string))), nil
		},
	}}, esTools.Descriptors()...)

	reg, err := tools.NewRegistry(descs...)
	require.NoError(t, err)

	d := dispatch.New(reg, mcp.NewServerInfo("esmcp-test", "0.0.0"), zerolog.Nop())
	s := NewServer(DefaultConf("localhost:0"), d, zerolog.Nop())

	ts := httptest.NewServer(s.routes())
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, ts *httptest.Server, sid string, id any, method string, params any) (*http.Response, *codec.JSONRPCResponse) {
	t.Helper()

	var raw json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		require.NoError(t, err)
		raw = b
	}
	body, err := json.Marshal(codec.JSONRPCRequest{
		JSONRPC: codec.JsonRPCVersion,
		Method:  method,
		Params:  raw,
		ID:      id,
	})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/mcp", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if sid != "" {
		req.Header.Set(SessionHeader, sid)
	}

	res, err := ts.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { res.Body.Close() })

	if res.StatusCode == http.StatusAccepted || res.ContentLength == 0 {
		return res, nil
	}
	var envelope codec.JSONRPCResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&envelope))
	return res, &envelope
}

func handshake(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	res, envelope := post(t, ts, "", 0, mcp.MethodInitialize, mcp.InitializeParams{
		ProtocolVersion: "2025-03-26",
		ClientInfo:      mcp.ClientInfo{Name: "http-test", Version: "1.0"},
	})
	require.NotNil(t, envelope)
	require.Nil(t, envelope.Error)
	sid := res.Header.Get(SessionHeader)
	require.NotEmpty(t, sid)
	return sid
}

func TestHandshakeCreatesSession(t *testing.T) {
	ts := newTestServer(t)
	sid := handshake(t, ts)

	_, envelope := post(t, ts, sid, 1, mcp.MethodPing, nil)
	require.NotNil(t, envelope)
	assert.Nil(t, envelope.Error)
}

func TestFirstMessageMustBeHandshake(t *testing.T) {
	ts := newTestServer(t)

	res, envelope := post(t, ts, "", 1, mcp.MethodToolsList, nil)
	require.NotNil(t, envelope)
	require.NotNil(t, envelope.Error)
	assert.Empty(t, res.Header.Get(SessionHeader), "no session may survive a handshake violation")
}

func TestUnknownSessionRejected(t *testing.T) {
	ts := newTestServer(t)

	res, envelope := post(t, ts, "no-such-session", 1, mcp.MethodPing, nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	require.NotNil(t, envelope)
	assert.NotNil(t, envelope.Error)
}

func TestToolCallOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	sid := handshake(t, ts)

	_, envelope := post(t, ts, sid, 2, mcp.MethodToolsCall, mcp.CallToolParams{
		Name:      "echo",
		Arguments: json.RawMessage(`{"value":"hello"}`),
	})
	require.NotNil(t, envelope)
	require.Nil(t, envelope.Error)

	b, err := json.Marshal(envelope.Result)
	require.NoError(t, err)
	var result mcp.CallToolResult
	require.NoError(t, json.Unmarshal(b, &result))
	require.Len(t, result.Content, 1)
	assert.Equal(t, "hello", result.Content[0].Text)
}

func TestToolsListOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	sid := handshake(t, ts)

	_, envelope := post(t, ts, sid, 2, mcp.MethodToolsList, nil)
	require.NotNil(t, envelope)
	require.Nil(t, envelope.Error)

	b, err := json.Marshal(envelope.Result)
	require.NoError(t, err)
	var result mcp.ListToolsResult
	require.NoError(t, json.Unmarshal(b, &result))
	require.Len(t, result.Tools, 6)
	assert.Equal(t, "echo", result.Tools[0].Name)
	assert.Equal(t, "list_indices", result.Tools[1].Name)
}

func TestEsqlAgainstUnreachableCluster(t *testing.T) {
	ts := newTestServer(t)
	sid := handshake(t, ts)

	_, envelope := post(t, ts, sid, 2, mcp.MethodToolsCall, mcp.CallToolParams{
		Name:      "esql",
		Arguments: json.RawMessage(`{"query":"FROM logs-* | LIMIT 1"}`),
	})
	require.NotNil(t, envelope)
	require.NotNil(t, envelope.Error)

	data := envelope.Error.Data.(map[string]any)
	assert.Equal(t, string(mcp.KindUpstream), data["kind"])

	// The session stays ready and keeps accepting requests.
	_, envelope = post(t, ts, sid, 3, mcp.MethodPing, nil)
	require.NotNil(t, envelope)
	assert.Nil(t, envelope.Error)
}

func TestSearchMissingArgumentsMakesNoNetworkCall(t *testing.T) {
	ts := newTestServer(t)
	sid := handshake(t, ts)

	_, envelope := post(t, ts, sid, 3, mcp.MethodToolsCall, mcp.CallToolParams{
		Name:      "search",
		Arguments: json.RawMessage(`{}`),
	})
	require.NotNil(t, envelope)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, codec.InvalidParams, envelope.Error.Code)

	data := envelope.Error.Data.(map[string]any)
	assert.Equal(t, string(mcp.KindInvalidArguments), data["kind"])
	assert.Equal(t, "index", data["field"])
}

func TestDeleteEndsSession(t *testing.T) {
	ts := newTestServer(t)
	sid := handshake(t, ts)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/mcp", nil)
	require.NoError(t, err)
	req.Header.Set(SessionHeader, sid)
	res, err := ts.Client().Do(req)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusNoContent, res.StatusCode)

	// The session is gone for requests and repeat deletes alike.
	postRes, _ := post(t, ts, sid, 4, mcp.MethodPing, nil)
	assert.Equal(t, http.StatusNotFound, postRes.StatusCode)

	res, err = ts.Client().Do(req.Clone(context.Background()))
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestMalformedBodySurvivableError(t *testing.T) {
	ts := newTestServer(t)
	sid := handshake(t, ts)

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/mcp", bytes.NewReader([]byte(`{"jsonrpc":"2.0", garbage`)))
	require.NoError(t, err)
	req.Header.Set(SessionHeader, sid)
	res, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	var envelope codec.JSONRPCResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, codec.ParseError, envelope.Error.Code)

	// Only the request died, not the session.
	_, envelope2 := post(t, ts, sid, 5, mcp.MethodPing, nil)
	require.NotNil(t, envelope2)
	assert.Nil(t, envelope2.Error)
}

func TestNotificationHasNoBody(t *testing.T) {
	ts := newTestServer(t)
	sid := handshake(t, ts)

	res, envelope := post(t, ts, sid, nil, mcp.NotificationInitialized, nil)
	assert.Equal(t, http.StatusAccepted, res.StatusCode)
	assert.Nil(t, envelope)
}

func TestSessionManagerReapsIdleSessions(t *testing.T) {
	d := dispatch.New(nil, mcp.NewServerInfo("x", "0"), zerolog.Nop())

	m := newSessionManager(time.Minute)
	sess := d.NewSession()
	m.put(sess)
	require.Equal(t, 1, m.len())

	assert.Equal(t, 0, m.reap(time.Now()))
	assert.Equal(t, 1, m.reap(time.Now().Add(2*time.Minute)))
	assert.Equal(t, 0, m.len())
	assert.Equal(t, dispatch.StateClosing, sess.State())

	_, ok := m.get(sess.ID())
	assert.False(t, ok)
}
