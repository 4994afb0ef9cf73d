package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/deploykit/manager/internal/config"
	"github.com/deploykit/manager/internal/model"
	"github.com/deploykit/manager/internal/query"
	"github.com/deploykit/manager/internal/security"
)

// registerTools registers the manager's MCP tools on the given server.
func (s *MCPServer) registerTools(srv *server.MCPServer) {
	srv.AddTool(
		mcp.NewTool("manager_list_kinds",
			mcp.WithDescription(
				"List the resource kinds the manager serves (blueprints, deployments, "+
					"nodes, node instances, executions, deployment modifications, events) "+
					"with their fields and record counts. Use this first to discover what "+
					"can be listed.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
		),
		s.handleListKinds,
	)

	srv.AddTool(
		mcp.NewTool("manager_list",
			mcp.WithDescription(
				"List records of one resource kind. Filters are exact-match "+
					"field/value pairs; every filter must match. Results come back in "+
					"insertion order and are paginated with offset and size.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("kind",
				mcp.Required(),
				mcp.Description("Resource kind or collection, e.g. \"deployment\" or \"node-instances\""),
			),
			mcp.WithObject("filters",
				mcp.Description("Field/value pairs to match exactly (e.g. {\"deployment_id\": \"dep1\"})"),
			),
			mcp.WithArray("include",
				mcp.Description("Field names to return. Omit for every field."),
				mcp.WithStringItems(),
			),
			mcp.WithNumber("offset",
				mcp.Description("Number of matching records to skip"),
			),
			mcp.WithNumber("size",
				mcp.Description("Maximum number of records to return"),
			),
		),
		s.handleList,
	)

	srv.AddTool(
		mcp.NewTool("manager_get",
			mcp.WithDescription("Fetch one record of a resource kind by id."),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("kind",
				mcp.Required(),
				mcp.Description("Resource kind or collection"),
			),
			mcp.WithString("id",
				mcp.Required(),
				mcp.Description("Record id"),
			),
		),
		s.handleGet,
	)
}

// =========================================================================
// Tool handlers
// =========================================================================

type kindSummary struct {
	Kind       string   `json:"kind"`
	Collection string   `json:"collection"`
	Fields     []string `json:"fields"`
	Count      *int     `json:"count,omitempty"`
}

// handleListKinds returns every kind the caller may list.
func (s *MCPServer) handleListKinds(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	identity, err := s.callerIdentity(ctx)
	if err != nil {
		return s.authFailed(err)
	}

	items := make([]kindSummary, 0)
	for _, info := range model.Kinds() {
		if s.sec.Authorize(identity, security.ListAction(info.Collection)) != nil {
			continue
		}
		item := kindSummary{
			Kind:       string(info.Kind),
			Collection: info.Collection,
			Fields:     info.FieldNames(),
		}
		if n, err := s.store.Count(ctx, info.Kind); err == nil {
			item.Count = &n
		}
		items = append(items, item)
	}
	return successJSON(items)
}

type listResult struct {
	Items  []model.Record `json:"items"`
	Total  int            `json:"total"`
	Offset int            `json:"offset"`
	Size   int            `json:"size"`
}

// handleList runs a list query with the latest API semantics.
func (s *MCPServer) handleList(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	info, errResult := s.resolveKind(request)
	if errResult != nil {
		return errResult, nil
	}
	identity, err := s.callerIdentity(ctx)
	if err != nil {
		return s.authFailed(err)
	}
	if err := s.sec.Authorize(identity, security.ListAction(info.Collection)); err != nil {
		return toolError("Not authorized to list %s", info.Collection)
	}

	params, err := listParams(request)
	if err != nil {
		return toolError("%v", err)
	}

	q, err := query.ParseListQuery(info.Kind, params, s.engine.Policy().Latest, s.page)
	if err != nil {
		return toolError("%v\n\nFields of %s: %v", err, info.Kind, info.FieldNames())
	}

	res, err := s.engine.List(ctx, s.store.Collection(info.Kind), q)
	if err != nil {
		s.logger.Error("mcp list failed", "kind", info.Kind, "error", err)
		return toolError("Failed to list %s: %v", info.Collection, err)
	}

	return successJSON(listResult{
		Items:  res.Items,
		Total:  res.Total,
		Offset: res.Offset,
		Size:   res.Size,
	})
}

// handleGet returns one record by id.
func (s *MCPServer) handleGet(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	info, errResult := s.resolveKind(request)
	if errResult != nil {
		return errResult, nil
	}
	id, err := requireString(request, "id")
	if err != nil {
		return toolError("%v", err)
	}
	identity, err := s.callerIdentity(ctx)
	if err != nil {
		return s.authFailed(err)
	}
	if err := s.sec.Authorize(identity, security.GetAction(info.Collection)); err != nil {
		return toolError("Not authorized to get %s", info.Collection)
	}

	rec, err := s.store.Get(ctx, info.Kind, id)
	if err != nil {
		if config.IsNotFound(err) {
			return toolError("%s %q not found", info.Kind, id)
		}
		return toolError("Failed to get %s %q: %v", info.Kind, id, err)
	}
	return successJSON(rec)
}

// resolveKind accepts either a kind name ("node_instance") or a collection
// name ("node-instances").
func (s *MCPServer) resolveKind(request mcp.CallToolRequest) (model.KindInfo, *mcp.CallToolResult) {
	name, err := requireString(request, "kind")
	if err != nil {
		res, _ := toolError("%v. Available kinds: %v", err, kindNames())
		return model.KindInfo{}, res
	}
	info, ok := lookupKind(name)
	if !ok {
		res, _ := toolError("Unknown kind %q. Available kinds: %v", name, kindNames())
		return model.KindInfo{}, res
	}
	return info, nil
}

func lookupKind(name string) (model.KindInfo, bool) {
	if info, ok := model.LookupKind(model.Kind(name)); ok {
		return info, true
	}
	return model.LookupCollection(name)
}

func kindNames() []string {
	kinds := model.Kinds()
	names := make([]string, len(kinds))
	for i, info := range kinds {
		names[i] = string(info.Kind)
	}
	return names
}
