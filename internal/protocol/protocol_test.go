package protocol

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDecodeKeepsRawID(t *testing.T) {
	t.Parallel()

	req, err := Decode([]byte(`{"type":"tool","tool":"webSearch","id":{"n":1},"params":{"query":"go"}}`))
	require.NoError(t, err)
	require.Equal(t, TypeTool, req.Type)
	require.Equal(t, "webSearch", req.Tool)
	require.JSONEq(t, `{"n":1}`, string(req.ID))
	require.JSONEq(t, `{"query":"go"}`, string(req.ParamsOrEmpty()))
}

func TestDecodeRejectsMalformed(t *testing.T) {
	t.Parallel()

	_, err := Decode([]byte(`{"type":`))
	require.Error(t, err)
}

func TestDecodeToleratesWronglyTypedFields(t *testing.T) {
	t.Parallel()

	req, err := Decode([]byte(`{"type":"tool","tool":5,"id":"x"}`))
	require.NoError(t, err)
	require.Equal(t, "5", req.Tool)
	require.Equal(t, `"x"`, string(req.ID))

	req, err = Decode([]byte(`{"type":1,"id":"y","tool":null}`))
	require.NoError(t, err)
	require.Equal(t, "1", req.Type)
	require.Empty(t, req.Tool)

	req, err = Decode([]byte(`{"type":{"a":true},"id":3}`))
	require.NoError(t, err)
	require.Equal(t, `{"a":true}`, req.Type)

	_, err = Decode([]byte(`["type","ping"]`))
	require.Error(t, err)
}

func TestParamsOrEmpty(t *testing.T) {
	t.Parallel()

	require.Equal(t, "{}", string(Request{}.ParamsOrEmpty()))
	require.Equal(t, "{}", string(Request{Params: json.RawMessage("null")}.ParamsOrEmpty()))
}

func TestPongEncoding(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("EST", -5*3600))
	out, err := json.Marshal(NewPong(json.RawMessage(`"1"`), now))
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"pong","requestId":"1","timestamp":"2024-05-01T17:00:00Z"}`, string(out))
}

func TestErrorResponseEncodesNullID(t *testing.T) {
	t.Parallel()

	out, err := json.Marshal(UnknownTool(nil, "doesNotExist"))
	require.NoError(t, err)
	require.JSONEq(t, `{
		"type":"error",
		"requestId":null,
		"error":{"code":"UNKNOWN_TOOL","message":"Unknown tool: doesNotExist","details":null}
	}`, string(out))
}

func TestToolResponseEncoding(t *testing.T) {
	t.Parallel()

	out, err := json.Marshal(NewToolResponse(json.RawMessage(`2`), "scrapeData", map[string]any{"success": false}))
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"tool_response","requestId":2,"tool":"scrapeData","result":{"success":false}}`, string(out))
}

func TestInitializeEncoding(t *testing.T) {
	t.Parallel()

	out, err := json.Marshal(NewInitialize("web-search-mcp", "1.0.0", []ToolInfo{{Name: "a", Description: "b"}}))
	require.NoError(t, err)
	require.JSONEq(t, `{
		"type":"initialize","status":"success","serverName":"web-search-mcp","version":"1.0.0",
		"tools":[{"name":"a","description":"b"}]
	}`, string(out))
}

func TestErrorImplementsError(t *testing.T) {
	t.Parallel()

	var err error = &Error{Code: CodeInternal, Message: "boom"}
	require.EqualError(t, err, "INTERNAL_ERROR: boom")
}
