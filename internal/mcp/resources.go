package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/deploykit/manager/internal/model"
)

const (
	kindsURI        = "manager://kinds"
	kindTemplateURI = "manager://kinds/{kind}"
)

// registerResources adds MCP resource definitions to the server. Resources
// provide read-only data that clients can load into their context.
func (s *MCPServer) registerResources(srv *server.MCPServer) {
	srv.AddResource(
		mcp.NewResource(
			kindsURI,
			"Resource Kinds",
			mcp.WithResourceDescription("Every resource kind the manager serves, with its collection name and fields."),
			mcp.WithMIMEType("application/json"),
		),
		s.handleKindsResource,
	)

	srv.AddResourceTemplate(
		mcp.NewResourceTemplate(
			kindTemplateURI,
			"Resource Kind Schema",
			mcp.WithTemplateDescription(
				"Field names and types of one resource kind, plus the filter "+
					"arguments the legacy API accepts for it.",
			),
			mcp.WithTemplateMIMEType("application/json"),
		),
		s.handleKindResource,
	)
}

type fieldDescription struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type kindDescription struct {
	Kind          string             `json:"kind"`
	Collection    string             `json:"collection"`
	Fields        []fieldDescription `json:"fields"`
	Aliases       map[string]string  `json:"aliases,omitempty"`
	LegacyFilters []string           `json:"legacy_filters,omitempty"`
}

func describeKind(info model.KindInfo) kindDescription {
	fields := make([]fieldDescription, len(info.Fields))
	for i, f := range info.Fields {
		fields[i] = fieldDescription{Name: f.Name, Type: fieldTypeName(f.Type)}
	}
	return kindDescription{
		Kind:          string(info.Kind),
		Collection:    info.Collection,
		Fields:        fields,
		Aliases:       info.Aliases,
		LegacyFilters: info.LegacyFilters,
	}
}

func fieldTypeName(ft model.FieldType) string {
	switch ft {
	case model.FieldKey:
		return "key"
	case model.FieldInt:
		return "integer"
	case model.FieldBool:
		return "boolean"
	case model.FieldJSON:
		return "json"
	default:
		return "text"
	}
}

// handleKindsResource returns every kind description.
func (s *MCPServer) handleKindsResource(
	ctx context.Context,
	request mcp.ReadResourceRequest,
) ([]mcp.ResourceContents, error) {

	kinds := model.Kinds()
	items := make([]kindDescription, len(kinds))
	for i, info := range kinds {
		items[i] = describeKind(info)
	}

	b, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal kinds: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      kindsURI,
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}

// handleKindResource returns the description of one kind.
func (s *MCPServer) handleKindResource(
	ctx context.Context,
	request mcp.ReadResourceRequest,
) ([]mcp.ResourceContents, error) {

	uri := request.Params.URI
	name := strings.TrimPrefix(uri, "manager://kinds/")
	if name == "" || name == uri {
		return nil, fmt.Errorf("invalid kind URI %q: expected %s", uri, kindTemplateURI)
	}

	info, ok := lookupKind(name)
	if !ok {
		return nil, fmt.Errorf("unknown kind %q (available: %v)", name, kindNames())
	}

	b, err := json.MarshalIndent(describeKind(info), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal kind: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}
