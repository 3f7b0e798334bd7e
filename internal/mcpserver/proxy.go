package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
)

// CallbackHeader is forwarded from the MCP session to the API so that
// provisioning results are reported to the caller.
const CallbackHeader = "X-Callback-URL"

// ProxyHandler creates MCP tool handlers that proxy to the REST API.
type ProxyHandler struct {
	apiURL string
	client *http.Client
	logger zerolog.Logger
}

// NewProxyHandler creates a new proxy handler targeting the given API URL.
func NewProxyHandler(apiURL string, logger zerolog.Logger) *ProxyHandler {
	return &ProxyHandler{
		apiURL: strings.TrimRight(apiURL, "/"),
		client: &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}
}

// Handler returns an MCP tool handler function for the given operation.
func (p *ProxyHandler) Handler(op ToolOperation) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		target, body, err := buildCall(p.apiURL, op, req.GetArguments())
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}
		httpReq, err := http.NewRequestWithContext(ctx, op.Method, target, bodyReader)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("build request: %s", err)), nil
		}
		if body != nil {
			httpReq.Header.Set("Content-Type", "application/json")
		}
		if cb := req.Header.Get(CallbackHeader); cb != "" {
			httpReq.Header.Set(CallbackHeader, cb)
		}

		p.logger.Debug().
			Str("method", op.Method).
			Str("url", target).
			Str("tool", req.Params.Name).
			Msg("proxying MCP tool call")

		resp, err := p.client.Do(httpReq)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("API request failed: %s", err)), nil
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("read response: %s", err)), nil
		}

		if resp.StatusCode >= 400 {
			return mcp.NewToolResultError(fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(respBody))), nil
		}
		if resp.StatusCode == http.StatusNoContent || len(respBody) == 0 {
			return mcp.NewToolResultText(`{"status":"success"}`), nil
		}
		return mcp.NewToolResultText(string(respBody)), nil
	}
}

// buildCall resolves the target URL and request body for a tool call.
func buildCall(apiURL string, op ToolOperation, args map[string]any) (string, []byte, error) {
	path := op.Path
	query := url.Values{}
	fields := map[string]any{}
	var raw []byte

	for _, param := range op.Parameters {
		val, ok := args[param.Name]
		if !ok || val == nil || formatArg(val) == "" {
			if param.Required {
				return "", nil, fmt.Errorf("missing required parameter: %s", param.Name)
			}
			continue
		}
		switch param.In {
		case InPath:
			path = strings.ReplaceAll(path, "{"+param.Name+"}", url.PathEscape(formatArg(val)))
		case InQuery:
			query.Set(param.Name, formatArg(val))
		case InJSON:
			fields[param.Name] = val
		case InBody:
			s := formatArg(val)
			if !json.Valid([]byte(s)) {
				return "", nil, fmt.Errorf("parameter %s is not valid JSON", param.Name)
			}
			raw = []byte(s)
		}
	}

	target := apiURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	if raw != nil {
		return target, raw, nil
	}
	if len(fields) > 0 {
		body, err := json.Marshal(fields)
		if err != nil {
			return "", nil, fmt.Errorf("encode body: %w", err)
		}
		return target, body, nil
	}
	return target, nil, nil
}

func formatArg(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case map[string]any, []any:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(b)
	}
	return fmt.Sprintf("%v", v)
}
