package tools

import "encoding/json"

// Input schemas for the Elasticsearch tools. Plain JSON Schema, compiled by
// the registry at boot. Unknown extra fields are deliberately not rejected.

var listIndicesSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"index_pattern": {
			"type": "string",
			"description": "Index pattern of Elasticsearch indices to list (defaults to *)"
		}
	}
}`)

var getMappingsSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"index": {
			"type": "string",
			"description": "Name of the Elasticsearch index to get mappings for"
		}
	},
	"required": ["index"]
}`)

var searchSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"index": {
			"type": "string",
			"description": "Name of the Elasticsearch index to search"
		},
		"query_body": {
			"type": "object",
			"description": "Complete Elasticsearch query DSL object that can include query, size, from, sort, etc."
		},
		"fields": {
			"type": "array",
			"items": {"type": "string"},
			"description": "Name of the fields that need to be returned (optional)"
		}
	},
	"required": ["index", "query_body"]
}`)

var esqlSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"query": {
			"type": "string",
			"description": "Complete Elasticsearch ES|QL query"
		}
	},
	"required": ["query"]
}`)

var getShardsSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"index": {
			"type": "string",
			"description": "Optional index name to get shard information for"
		}
	}
}`)
