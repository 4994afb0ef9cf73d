package mcp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/deploykit/manager/internal/config"
	"github.com/deploykit/manager/internal/model"
	"github.com/deploykit/manager/internal/query"
	"github.com/deploykit/manager/internal/security"
)

type testClock struct{ t time.Time }

func (c *testClock) Now() time.Time { return c.t }

func basicAuth(username, password string) http.Header {
	h := http.Header{}
	h.Set(security.HeaderAuthorization, "Basic "+base64.StdEncoding.EncodeToString([]byte(username+":"+password)))
	return h
}

func viewer() http.Header {
	return basicAuth("viewer", "viewer")
}

func newTestServer(t *testing.T, credentials http.Header) *MCPServer {
	t.Helper()
	s, _ := newTestServerWithClock(t, credentials)
	return s
}

func newTestServerWithClock(t *testing.T, credentials http.Header) (*MCPServer, *testClock) {
	t.Helper()

	store, err := config.NewStore("")
	if err != nil {
		t.Fatalf("config.NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	for i := 0; i < 5; i++ {
		err := store.Insert(context.Background(), model.KindNodeInstance, model.Record{
			"id":            fmt.Sprintf("web_%d", i),
			"node_id":       "web",
			"deployment_id": fmt.Sprintf("dep%d", i%2),
			"state":         "started",
		})
		if err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	clock := &testClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sec, err := security.Build(config.SecurityConfig{
		Enabled: true,
		UserStore: config.VariantConfig{
			Type: "simple",
			Properties: map[string]interface{}{
				"users": []interface{}{
					map[string]interface{}{"username": "viewer", "password": "viewer", "roles": []interface{}{"viewer"}},
				},
			},
		},
		AuthenticationProviders: []config.ProviderConfig{
			{Name: "password", VariantConfig: config.VariantConfig{Type: "password"}},
			{Name: "token", VariantConfig: config.VariantConfig{Type: "token"}},
		},
		TokenGenerator: config.VariantConfig{
			Type:       "token",
			Properties: map[string]interface{}{"secret_key": "s", "expires_in_seconds": 600},
		},
		AuthorizationProvider: config.VariantConfig{
			Type: "role_based",
			Properties: map[string]interface{}{
				"roles": map[string]interface{}{"viewer": []interface{}{"node-instances:*"}},
			},
		},
	}, "", logger, security.WithClock(clock.Now))
	if err != nil {
		t.Fatalf("security.Build: %v", err)
	}

	engine := query.NewEngine(query.DefaultVersionPolicy)
	opts := Options{Page: query.ParseOptions{MaxSize: 3}, Credentials: credentials}
	return NewMCPServer(store, sec, engine, opts, logger), clock
}

func callTool(args map[string]interface{}) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want TextContent", res.Content[0])
	}
	return text.Text
}

func TestListKindsOnlyAuthorized(t *testing.T) {
	s := newTestServer(t, viewer())

	res, err := s.handleListKinds(context.Background(), callTool(nil))
	if err != nil || res.IsError {
		t.Fatalf("handleListKinds: %v %s", err, resultText(t, res))
	}
	var items []kindSummary
	if err := json.Unmarshal([]byte(resultText(t, res)), &items); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(items) != 1 || items[0].Collection != "node-instances" {
		t.Fatalf("items = %+v", items)
	}
	if items[0].Count == nil || *items[0].Count != 5 {
		t.Errorf("count = %v", items[0].Count)
	}
}

func TestListUsesLatestSemantics(t *testing.T) {
	s := newTestServer(t, viewer())

	res, err := s.handleList(context.Background(), callTool(map[string]interface{}{
		"kind":    "node_instance",
		"filters": map[string]interface{}{"deployment_id": "dep0"},
		"include": []interface{}{"id", "state"},
		"offset":  float64(1),
		"size":    float64(10),
	}))
	if err != nil || res.IsError {
		t.Fatalf("handleList: %v %s", err, resultText(t, res))
	}

	var out struct {
		Items  []map[string]interface{} `json:"items"`
		Total  int                      `json:"total"`
		Offset int                      `json:"offset"`
		Size   int                      `json:"size"`
	}
	if err := json.Unmarshal([]byte(resultText(t, res)), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Total != 3 || out.Offset != 1 || out.Size != 3 {
		t.Errorf("total=%d offset=%d size=%d", out.Total, out.Offset, out.Size)
	}
	if len(out.Items) != 2 || out.Items[0]["id"] != "web_2" || out.Items[1]["id"] != "web_4" {
		t.Errorf("items = %v", out.Items)
	}
	if len(out.Items) > 0 && len(out.Items[0]) != 2 {
		t.Errorf("projection not applied: %v", out.Items[0])
	}
}

func TestListByCollectionAndAlias(t *testing.T) {
	s := newTestServer(t, viewer())

	res, _ := s.handleList(context.Background(), callTool(map[string]interface{}{
		"kind":    "node-instances",
		"filters": map[string]interface{}{"node_name": "web"},
	}))
	if res.IsError {
		t.Fatalf("handleList: %s", resultText(t, res))
	}
	if !strings.Contains(resultText(t, res), `"total": 5`) {
		t.Errorf("result = %s", resultText(t, res))
	}
}

func TestListErrors(t *testing.T) {
	s := newTestServer(t, viewer())

	tests := []struct {
		name string
		args map[string]interface{}
		want string
	}{
		{"missing kind", map[string]interface{}{}, "missing required parameter"},
		{"unknown kind", map[string]interface{}{"kind": "widgets"}, "Unknown kind"},
		{"unauthorized", map[string]interface{}{"kind": "deployments"}, "Not authorized"},
		{"negative offset", map[string]interface{}{"kind": "node-instances", "offset": float64(-1)}, "invalid query parameter"},
		{"reserved filter", map[string]interface{}{"kind": "node-instances", "filters": map[string]interface{}{"_size": "1"}}, "underscore"},
	}
	for _, tt := range tests {
		res, err := s.handleList(context.Background(), callTool(tt.args))
		if err != nil {
			t.Errorf("%s: unexpected protocol error %v", tt.name, err)
			continue
		}
		if !res.IsError || !strings.Contains(resultText(t, res), tt.want) {
			t.Errorf("%s: got %s, want error containing %q", tt.name, resultText(t, res), tt.want)
		}
	}
}

func TestGet(t *testing.T) {
	s := newTestServer(t, viewer())

	res, _ := s.handleGet(context.Background(), callTool(map[string]interface{}{"kind": "node_instance", "id": "web_3"}))
	if res.IsError || !strings.Contains(resultText(t, res), `"dep1"`) {
		t.Errorf("get web_3: %s", resultText(t, res))
	}

	res, _ = s.handleGet(context.Background(), callTool(map[string]interface{}{"kind": "node_instance", "id": "nope"}))
	if !res.IsError || !strings.Contains(resultText(t, res), "not found") {
		t.Errorf("get missing: %s", resultText(t, res))
	}
}

func TestKindResource(t *testing.T) {
	s := newTestServer(t, viewer())

	var req mcp.ReadResourceRequest
	req.Params.URI = "manager://kinds/node-instances"
	contents, err := s.handleKindResource(context.Background(), req)
	if err != nil {
		t.Fatalf("handleKindResource: %v", err)
	}
	text := contents[0].(mcp.TextResourceContents).Text
	if !strings.Contains(text, `"node_name": "node_id"`) {
		t.Errorf("resource = %s", text)
	}

	req.Params.URI = "manager://kinds/widgets"
	if _, err := s.handleKindResource(context.Background(), req); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestReadOnlyAnnotation(t *testing.T) {
	ann := readOnlyAnnotation()
	if ann.ReadOnlyHint == nil || !*ann.ReadOnlyHint {
		t.Errorf("ReadOnlyHint = %v, want true", ann.ReadOnlyHint)
	}
}

func TestStdioRechecksStartupToken(t *testing.T) {
	s, clock := newTestServerWithClock(t, nil)
	id, err := s.sec.Authenticate(context.Background(), viewer())
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	tok, err := s.sec.IssueToken(id)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	h := http.Header{}
	h.Set(security.HeaderToken, tok.Value)
	s.credentials = h

	args := map[string]interface{}{"kind": "node-instances"}
	res, _ := s.handleList(context.Background(), callTool(args))
	if res.IsError {
		t.Fatalf("fresh token rejected: %s", resultText(t, res))
	}

	clock.t = clock.t.Add(601 * time.Second)
	res, _ = s.handleList(context.Background(), callTool(args))
	if !res.IsError || !strings.Contains(resultText(t, res), "Authentication failed") {
		t.Errorf("expired token: got %s, want Authentication failed", resultText(t, res))
	}
}

func TestToolsWithoutCredentials(t *testing.T) {
	s := newTestServer(t, nil)

	res, _ := s.handleListKinds(context.Background(), callTool(nil))
	if !res.IsError || !strings.Contains(resultText(t, res), "Authentication failed") {
		t.Errorf("list kinds: %s", resultText(t, res))
	}
	res, _ = s.handleGet(context.Background(), callTool(map[string]interface{}{"kind": "node_instance", "id": "web_1"}))
	if !res.IsError || strings.Contains(resultText(t, res), "web_1") {
		t.Errorf("get: %s", resultText(t, res))
	}
}

func postRPC(t *testing.T, url string, header http.Header, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHTTPTransportAuthenticatesEachRequest(t *testing.T) {
	// The startup credentials must not leak to HTTP callers.
	s := newTestServer(t, viewer())
	srv := httptest.NewServer(s.HTTPHandler())
	defer srv.Close()

	const initialize = `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","capabilities":{},"clientInfo":{"name":"test","version":"1"}}}`
	const listCall = `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"manager_list","arguments":{"kind":"node-instances"}}}`

	resp := postRPC(t, srv.URL, nil, initialize)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("initialize without credentials: status %d, want 401", resp.StatusCode)
	}

	resp = postRPC(t, srv.URL, basicAuth("viewer", "wrong"), initialize)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("initialize with bad password: status %d, want 401", resp.StatusCode)
	}

	resp = postRPC(t, srv.URL, viewer(), initialize)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("initialize: status %d", resp.StatusCode)
	}
	session := resp.Header.Get("Mcp-Session-Id")

	anon := http.Header{}
	anon.Set("Mcp-Session-Id", session)
	resp = postRPC(t, srv.URL, anon, listCall)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("tools/call without credentials: status %d, want 401", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if strings.Contains(string(body), "web_0") {
		t.Errorf("unauthenticated call leaked records: %s", body)
	}

	authed := viewer()
	authed.Set("Mcp-Session-Id", session)
	resp = postRPC(t, srv.URL, authed, listCall)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("tools/call: status %d", resp.StatusCode)
	}
	body, _ = io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "web_0") {
		t.Errorf("tools/call body = %s", body)
	}
}
