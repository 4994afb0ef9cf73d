package mcp

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/deploykit/manager/internal/query"
)

// requireString returns a required, non-empty string argument.
func requireString(request mcp.CallToolRequest, key string) (string, error) {
	val, err := request.RequireString(key)
	if err != nil || val == "" {
		return "", fmt.Errorf("missing required parameter %q", key)
	}
	return val, nil
}

// optionalNumber reports an optional numeric argument and whether it was
// given at all.
func optionalNumber(request mcp.CallToolRequest, key string) (int, bool) {
	if _, ok := request.GetArguments()[key]; !ok {
		return 0, false
	}
	return request.GetInt(key, 0), true
}

// listParams converts manager_list arguments into the query parameters the
// HTTP list endpoints accept, so both surfaces share one parser. Filter
// values of any JSON scalar type are compared in their string form.
func listParams(request mcp.CallToolRequest) (url.Values, error) {
	params := url.Values{}

	filters, _ := request.GetArguments()["filters"].(map[string]interface{})
	for field, v := range filters {
		if strings.HasPrefix(field, "_") {
			return nil, fmt.Errorf("invalid filter %q: field names cannot start with an underscore", field)
		}
		if v == nil {
			return nil, fmt.Errorf("invalid filter %q: null never matches", field)
		}
		params.Set(field, fmt.Sprint(v))
	}

	if include := request.GetStringSlice("include", nil); len(include) > 0 {
		params.Set(query.ParamInclude, strings.Join(include, ","))
	}
	if n, ok := optionalNumber(request, "offset"); ok {
		params.Set(query.ParamOffset, strconv.Itoa(n))
	}
	if n, ok := optionalNumber(request, "size"); ok {
		params.Set(query.ParamSize, strconv.Itoa(n))
	}
	return params, nil
}

// successJSON marshals data to JSON and returns it as a tool result.
func successJSON(data interface{}) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}

// toolError returns an error result the client can see and correct. It does
// not end the MCP session.
func toolError(format string, args ...interface{}) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultError(fmt.Sprintf(format, args...)), nil
}

// authFailed logs why a tool call could not authenticate and returns the
// same opaque message the HTTP API gives.
func (s *MCPServer) authFailed(err error) (*mcp.CallToolResult, error) {
	s.logger.Warn("mcp authentication rejected", "reason", err.Error())
	return toolError("Authentication failed")
}
