// Package protocol defines the line-delimited JSON messages exchanged with
// the controlling client.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// Request types accepted on the input channel.
const (
	TypeTool      = "tool"
	TypeListTools = "list_tools"
	TypePing      = "ping"
)

// Response types emitted on the output channel.
const (
	TypeInitialize   = "initialize"
	TypeToolsList    = "tools_list"
	TypeToolResponse = "tool_response"
	TypePong         = "pong"
	TypeError        = "error"
)

// Error codes carried by error responses.
const (
	CodeParseError         = "PARSE_ERROR"
	CodeUnknownTool        = "UNKNOWN_TOOL"
	CodeUnknownRequestType = "UNKNOWN_REQUEST_TYPE"
	CodeInternal           = "INTERNAL_ERROR"
)

// Request is one decoded input line. ID is kept raw so it can be echoed back
// exactly as the client sent it.
type Request struct {
	Type   string          `json:"type"`
	Tool   string          `json:"tool,omitempty"`
	ID     json.RawMessage `json:"id,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Decode parses a single input line. Only a line that is not a JSON object
// fails; a type or tool of the wrong JSON kind is kept as its literal text so
// the request still gets an answer carrying its id.
func Decode(line []byte) (Request, error) {
	var wire struct {
		Type   json.RawMessage `json:"type"`
		Tool   json.RawMessage `json:"tool"`
		ID     json.RawMessage `json:"id"`
		Params json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal(line, &wire); err != nil {
		return Request{}, fmt.Errorf("decode request: %w", err)
	}
	return Request{
		Type:   fieldText(wire.Type),
		Tool:   fieldText(wire.Tool),
		ID:     wire.ID,
		Params: wire.Params,
	}, nil
}

// fieldText renders a raw field as a name: strings are unquoted, null or
// absent is empty, anything else is its JSON text.
func fieldText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// ParamsOrEmpty returns the raw params object, substituting {} when absent or null.
func (r Request) ParamsOrEmpty() json.RawMessage {
	if len(r.Params) == 0 || string(r.Params) == "null" {
		return json.RawMessage("{}")
	}
	return r.Params
}

// ToolInfo describes one registered tool.
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Initialize is emitted once at startup.
type Initialize struct {
	Type       string     `json:"type"`
	Status     string     `json:"status"`
	ServerName string     `json:"serverName"`
	Version    string     `json:"version"`
	Tools      []ToolInfo `json:"tools"`
}

// NewInitialize builds the startup announcement.
func NewInitialize(name, version string, tools []ToolInfo) Initialize {
	return Initialize{
		Type:       TypeInitialize,
		Status:     "success",
		ServerName: name,
		Version:    version,
		Tools:      tools,
	}
}

// ToolsList answers a list_tools request.
type ToolsList struct {
	Type      string          `json:"type"`
	RequestID json.RawMessage `json:"requestId"`
	Tools     []ToolInfo      `json:"tools"`
}

// NewToolsList builds a tools_list response.
func NewToolsList(id json.RawMessage, tools []ToolInfo) ToolsList {
	return ToolsList{Type: TypeToolsList, RequestID: requestID(id), Tools: tools}
}

// ToolResponse carries a tool result, unmodified.
type ToolResponse struct {
	Type      string          `json:"type"`
	RequestID json.RawMessage `json:"requestId"`
	Tool      string          `json:"tool"`
	Result    any             `json:"result"`
}

// NewToolResponse builds a tool_response.
func NewToolResponse(id json.RawMessage, tool string, result any) ToolResponse {
	return ToolResponse{Type: TypeToolResponse, RequestID: requestID(id), Tool: tool, Result: result}
}

// Pong answers a ping.
type Pong struct {
	Type      string          `json:"type"`
	RequestID json.RawMessage `json:"requestId"`
	Timestamp string          `json:"timestamp"`
}

// NewPong builds a pong stamped with now in RFC 3339 UTC.
func NewPong(id json.RawMessage, now time.Time) Pong {
	return Pong{Type: TypePong, RequestID: requestID(id), Timestamp: now.UTC().Format(time.RFC3339Nano)}
}

// Error is the payload of a protocol-level failure.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details"`
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

// ErrorResponse wraps an Error for the output channel.
type ErrorResponse struct {
	Type      string          `json:"type"`
	RequestID json.RawMessage `json:"requestId"`
	Error     *Error          `json:"error"`
}

// NewErrorResponse builds an error response. A nil id is encoded as null.
func NewErrorResponse(id json.RawMessage, code, message string) ErrorResponse {
	return ErrorResponse{
		Type:      TypeError,
		RequestID: requestID(id),
		Error:     &Error{Code: code, Message: message},
	}
}

// UnknownTool reports a tool name outside the registry.
func UnknownTool(id json.RawMessage, name string) ErrorResponse {
	return NewErrorResponse(id, CodeUnknownTool, "Unknown tool: "+name)
}

// UnknownRequestType reports an unsupported request type.
func UnknownRequestType(id json.RawMessage, typ string) ErrorResponse {
	return NewErrorResponse(id, CodeUnknownRequestType, "Unknown request type: "+typ)
}

// ParseError reports an input line that could not be decoded.
func ParseError(err error) ErrorResponse {
	return NewErrorResponse(nil, CodeParseError, err.Error())
}

func requestID(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return json.RawMessage("null")
	}
	return id
}
