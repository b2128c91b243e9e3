package mcp

import "encoding/json"

// Tool describes one executable tool for tools/list discovery.
type Tool struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	InputSchema json.RawMessage  `json:"inputSchema"`
	Annotations *ToolAnnotations `json:"annotations,omitempty"`
}

type ToolAnnotations struct {
	Title        string `json:"title,omitempty"`
	ReadOnlyHint bool   `json:"readOnlyHint,omitempty"`
}

type ListToolsResult struct {
	Tools []Tool `json:"tools"`
}

// CallToolParams is the params payload of a tools/call request. Arguments
// stay raw until they have passed schema validation.
type CallToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// CancelledParams is the params payload of a notifications/cancelled message.
type CancelledParams struct {
	RequestID any    `json:"requestId"`
	Reason    string `json:"reason,omitempty"`
}

type CallToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

// Content is one item of a tool result. Only text content is produced by
// this server; JSON payloads are rendered as text the way the MCP tool
// convention expects.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

func NewTextContent(text string) Content {
	return Content{Type: "text", Text: text}
}

// NewJSONContent marshals v and wraps it as a text content item.
func NewJSONContent(v any) (Content, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return Content{}, err
	}
	return Content{Type: "text", Text: string(b)}, nil
}

func NewToolResult(content ...Content) *CallToolResult {
	return &CallToolResult{Content: content}
}
