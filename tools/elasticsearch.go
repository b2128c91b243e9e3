package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/rs/zerolog"

	"github.com/esmcp/es"
	"github.com/esmcp/mcp"
)

// ElasticsearchTools implements the five read-only tools over the shared
// Elasticsearch client. The client owns its connection pool and is safe for
// use from concurrent sessions.
type ElasticsearchTools struct {
	client *elasticsearch.Client
	log    zerolog.Logger
}

func NewElasticsearchTools(client *elasticsearch.Client, log zerolog.Logger) *ElasticsearchTools {
	return &ElasticsearchTools{client: client, log: log}
}

// Descriptors returns the registry entries for every Elasticsearch tool.
func (t *ElasticsearchTools) Descriptors() []Descriptor {
	return []Descriptor{
		{
			Name:        "list_indices",
			Description: "List all available Elasticsearch indices",
			InputSchema: listIndicesSchema,
			Annotations: &mcp.ToolAnnotations{Title: "List ES indices", ReadOnlyHint: true},
			Handler:     t.ListIndices,
		},
		{
			Name:        "get_mappings",
			Description: "Get field mappings for a specific Elasticsearch index",
			InputSchema: getMappingsSchema,
			Annotations: &mcp.ToolAnnotations{Title: "Get ES index mappings", ReadOnlyHint: true},
			Handler:     t.GetMappings,
		},
		{
			Name:        "search",
			Description: "Perform an Elasticsearch search with the provided query DSL.",
			InputSchema: searchSchema,
			Annotations: &mcp.ToolAnnotations{Title: "Elasticsearch search DSL query", ReadOnlyHint: true},
			Handler:     t.Search,
		},
		{
			Name:        "esql",
			Description: "Perform an Elasticsearch ES|QL query.",
			InputSchema: esqlSchema,
			Annotations: &mcp.ToolAnnotations{Title: "Elasticsearch ES|QL query", ReadOnlyHint: true},
			Handler:     t.Esql,
		},
		{
			Name:        "get_shards",
			Description: "Get shard information for all or specific indices.",
			InputSchema: getShardsSchema,
			Annotations: &mcp.ToolAnnotations{Title: "Get ES shard information", ReadOnlyHint: true},
			Handler:     t.GetShards,
		},
	}
}

//---------------------------------------------------------------------------
// list_indices

type catIndexRow struct {
	Index     string `json:"index"`
	Status    string `json:"status"`
	DocsCount string `json:"docs.count"`
}

func (t *ElasticsearchTools) ListIndices(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
	pattern := stringArg(args, "index_pattern")
	if pattern == "" {
		pattern = "*"
	}

	cat := t.client.Cat
	rows, err := es.ReadJSON[[]catIndexRow](cat.Indices(
		cat.Indices.WithContext(ctx),
		cat.Indices.WithIndex(pattern),
		cat.Indices.WithFormat("json"),
		cat.Indices.WithH("index", "status", "docs.count"),
	))
	if err != nil {
		return nil, err
	}

	body, err := mcp.NewJSONContent(rows)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResult(
		mcp.NewTextContent(fmt.Sprintf("Found %d indices:", len(rows))),
		body,
	), nil
}

//---------------------------------------------------------------------------
// get_mappings

func (t *ElasticsearchTools) GetMappings(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
	index := stringArg(args, "index")

	get := t.client.Indices.GetMapping
	byIndex, err := es.ReadJSON[map[string]json.RawMessage](get(
		get.WithContext(ctx),
		get.WithIndex(index),
	))
	if err != nil {
		return nil, err
	}
	if len(byIndex) == 0 {
		return nil, mcp.NewUpstreamError(0, "no mappings returned for index %q", index)
	}

	// The name may be a wildcard matching several indices; report the exact
	// match when present, otherwise the first one.
	mapping, ok := byIndex[index]
	if !ok {
		names := make([]string, 0, len(byIndex))
		for name := range byIndex {
			names = append(names, name)
		}
		sort.Strings(names)
		mapping = byIndex[names[0]]
	}

	body, err := mcp.NewJSONContent(mapping)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResult(
		mcp.NewTextContent(fmt.Sprintf("Mappings for index %s:", index)),
		body,
	), nil
}

//---------------------------------------------------------------------------
// search

type searchResult struct {
	Hits struct {
		Total *struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source json.RawMessage `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
	Aggregations map[string]json.RawMessage `json:"aggregations"`
}

func (t *ElasticsearchTools) Search(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
	index := stringArg(args, "index")
	queryBody, _ := args["query_body"].(map[string]any)
	if queryBody == nil {
		queryBody = map[string]any{}
	}

	// The extra fields parameter helps LLMs that don't know about _source
	// narrow down the returned data; merge it into an existing _source list.
	if fields := listArg(args, "fields"); len(fields) > 0 {
		if existing, ok := queryBody["_source"].([]any); ok {
			for _, f := range fields {
				existing = append(existing, f)
			}
			queryBody["_source"] = existing
		} else {
			queryBody["_source"] = fields
		}
	}

	payload, err := json.Marshal(queryBody)
	if err != nil {
		return nil, mcp.NewInvalidArgumentsError("query_body", fmt.Sprintf("unserializable query body: %s", err))
	}

	search := t.client.Search
	result, err := es.ReadJSON[searchResult](search(
		search.WithContext(ctx),
		search.WithIndex(index),
		search.WithBody(bytes.NewReader(payload)),
	))
	if err != nil {
		return nil, err
	}

	var contents []mcp.Content

	// Result stats are noise when the response is pure aggregations.
	if len(result.Aggregations) == 0 || len(result.Hits.Hits) > 0 {
		total := "unknown"
		if result.Hits.Total != nil {
			total = fmt.Sprintf("%d", result.Hits.Total.Value)
		}
		contents = append(contents, mcp.NewTextContent(
			fmt.Sprintf("Total results: %s, showing %d.", total, len(result.Hits.Hits))))
	}

	if len(result.Hits.Hits) > 0 {
		sources := make([]json.RawMessage, 0, len(result.Hits.Hits))
		for _, hit := range result.Hits.Hits {
			sources = append(sources, hit.Source)
		}
		body, err := mcp.NewJSONContent(sources)
		if err != nil {
			return nil, err
		}
		contents = append(contents, body)
	}

	if len(result.Aggregations) > 0 {
		body, err := mcp.NewJSONContent(result.Aggregations)
		if err != nil {
			return nil, err
		}
		contents = append(contents, mcp.NewTextContent("Aggregations results:"), body)
	}

	return mcp.NewToolResult(contents...), nil
}

//---------------------------------------------------------------------------
// esql

type esqlColumn struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type esqlResult struct {
	Columns []esqlColumn        `json:"columns"`
	Values  [][]json.RawMessage `json:"values"`
}

func (t *ElasticsearchTools) Esql(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
	query := stringArg(args, "query")

	payload, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return nil, err
	}

	esql := t.client.EsqlQuery
	result, err := es.ReadJSON[esqlResult](esql(
		strings.NewReader(string(payload)),
		esql.WithContext(ctx),
		esql.WithFormat("json"),
	))
	if err != nil {
		return nil, err
	}

	// Pivot the tabular columns/values response into one object per row.
	rows := make([]map[string]json.RawMessage, 0, len(result.Values))
	for _, values := range result.Values {
		row := make(map[string]json.RawMessage, len(values))
		for i, value := range values {
			if i < len(result.Columns) {
				row[result.Columns[i].Name] = value
			}
		}
		rows = append(rows, row)
	}

	body, err := mcp.NewJSONContent(rows)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResult(mcp.NewTextContent("Results"), body), nil
}

//---------------------------------------------------------------------------
// get_shards

type catShardRow struct {
	Index  string `json:"index"`
	Shard  string `json:"shard"`
	Prirep string `json:"prirep"`
	State  string `json:"state"`
	Docs   string `json:"docs"`
	Store  string `json:"store"`
	Node   string `json:"node"`
}

func (t *ElasticsearchTools) GetShards(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
	cat := t.client.Cat
	opts := []func(*esapi.CatShardsRequest){
		cat.Shards.WithContext(ctx),
		cat.Shards.WithFormat("json"),
		cat.Shards.WithH("index", "shard", "prirep", "state", "docs", "store", "node"),
	}
	if index := stringArg(args, "index"); index != "" {
		opts = append(opts, cat.Shards.WithIndex(index))
	}

	rows, err := es.ReadJSON[[]catShardRow](cat.Shards(opts...))
	if err != nil {
		return nil, err
	}

	body, err := mcp.NewJSONContent(rows)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResult(
		mcp.NewTextContent(fmt.Sprintf("Found %d shards:", len(rows))),
		body,
	), nil
}

//---------------------------------------------------------------------------

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func listArg(args map[string]any, key string) []any {
	raw, _ := args[key].([]any)
	return raw
}
