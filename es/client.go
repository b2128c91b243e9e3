// Package es wraps the official Elasticsearch client: construction from
// configuration and response decoding with upstream-error mapping.
package es

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/esmcp/mcp"
)

type Config struct {
	Address  string
	APIKey   string
	Username string
	Password string

	// Transport overrides the HTTP round tripper, used by tests.
	Transport http.RoundTripper
}

func NewClient(cfg Config) (*elasticsearch.Client, error) {
	if cfg.Address == "" {
		return nil, errors.New("elasticsearch address is required")
	}
	u, err := url.Parse(cfg.Address)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("invalid elasticsearch address %q", cfg.Address)
	}
	if cfg.APIKey != "" && cfg.Username != "" {
		return nil, errors.New("api key and basic auth are mutually exclusive")
	}

	return elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.Address},
		APIKey:    cfg.APIKey,
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: cfg.Transport,
	})
}

// errorBody is the shape of an Elasticsearch error response.
type errorBody struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
	Status int `json:"status"`
}

// ReadJSON consumes an API response pair and decodes the body into T. Any
// failure -- transport error, non-2xx status, undecodable body -- comes back
// as an upstream error carrying the status when one was received.
func ReadJSON[T any](res *esapi.Response, err error) (T, error) {
	var out T
	if err != nil {
		return out, mcp.NewUpstreamError(0, "elasticsearch request failed: %s", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		var eb errorBody
		if json.Unmarshal(body, &eb) == nil && eb.Error.Reason != "" {
			return out, mcp.NewUpstreamError(res.StatusCode, "%s: %s", eb.Error.Type, eb.Error.Reason)
		}
		return out, mcp.NewUpstreamError(res.StatusCode, "elasticsearch returned %s", res.Status())
	}

	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return out, mcp.NewUpstreamError(res.StatusCode, "undecodable elasticsearch response: %s", err)
	}
	return out, nil
}
