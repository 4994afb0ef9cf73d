package openapi

import (
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/deploykit/manager/internal/model"
	"github.com/deploykit/manager/internal/query"
)

// Options controls document generation.
type Options struct {
	BaseURL         string
	Version         string // build version shown in info.version
	SecurityEnabled bool
	Versions        []int // API versions to document
}

// Generate builds an OpenAPI 3.1 document for every list, get, token and
// status endpoint of each served API version.
func Generate(opts Options) *openapi3.T {
	if opts.Version == "" {
		opts.Version = "dev"
	}
	if len(opts.Versions) == 0 {
		opts.Versions = query.DefaultVersionPolicy.Versions()
	}

	doc := &openapi3.T{
		OpenAPI: "3.1.0",
		Info: &openapi3.Info{
			Title:       "Deployment Manager REST API",
			Description: "Read access to blueprints, deployments, nodes, node instances, executions, deployment modifications and events.",
			Version:     opts.Version,
		},
	}
	if opts.BaseURL != "" {
		doc.Servers = openapi3.Servers{{URL: opts.BaseURL}}
	}

	components := openapi3.NewComponents()
	components.Schemas = openapi3.Schemas{}
	components.SecuritySchemes = openapi3.SecuritySchemes{}
	doc.Components = &components

	if opts.SecurityEnabled {
		doc.Components.SecuritySchemes["basicAuth"] = &openapi3.SecuritySchemeRef{
			Value: &openapi3.SecurityScheme{
				Type:   "http",
				Scheme: "basic",
			},
		}
		doc.Components.SecuritySchemes["sessionToken"] = &openapi3.SecuritySchemeRef{
			Value: &openapi3.SecurityScheme{
				Type: "apiKey",
				In:   "header",
				Name: "Authentication-Token",
			},
		}
		doc.Security = openapi3.SecurityRequirements{
			{"basicAuth": {}},
			{"sessionToken": {}},
		}
	}

	doc.Paths = openapi3.NewPaths()

	doc.Components.Schemas["ErrorResponse"] = errorResponseSchema()
	doc.Components.Schemas["Token"] = tokenSchema()
	doc.Components.Schemas["Status"] = statusSchema()

	for _, info := range model.Kinds() {
		doc.Components.Schemas[schemaName(info)] = fieldsToSchema(info.Fields)
	}

	for _, v := range opts.Versions {
		prefix := fmt.Sprintf("/api/v%d", v)
		active := query.DefaultVersionPolicy.Active(v)
		for _, info := range model.Kinds() {
			addKindPaths(doc, prefix, v, active, info)
		}
		doc.Paths.Set(prefix+"/tokens", &openapi3.PathItem{
			Get: &openapi3.Operation{
				Tags:        []string{"tokens"},
				Summary:     "Issue a session token",
				Description: "Returns a token for the authenticated user, to be sent in the Authentication-Token header.",
				OperationID: fmt.Sprintf("v%d_get_token", v),
				Responses:   newResponses("200", "Issued token", openapi3.NewSchemaRef("#/components/schemas/Token", nil)),
			},
		})
		doc.Paths.Set(prefix+"/status", &openapi3.PathItem{
			Get: &openapi3.Operation{
				Tags:        []string{"status"},
				Summary:     "Service status",
				OperationID: fmt.Sprintf("v%d_get_status", v),
				Responses:   newResponses("200", "Service status", openapi3.NewSchemaRef("#/components/schemas/Status", nil)),
			},
		})
	}

	return doc
}

// addKindPaths adds the list and get-by-id paths of one kind.
func addKindPaths(doc *openapi3.T, prefix string, version int, active bool, info model.KindInfo) {
	ref := "#/components/schemas/" + schemaName(info)
	tag := info.Collection

	listSchema := &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type:  &openapi3.Types{"array"},
			Items: openapi3.NewSchemaRef(ref, nil),
		},
	}

	var params openapi3.Parameters
	description := fmt.Sprintf("Returns every %s record.", info.Kind)
	if active {
		params = listQueryParameters(info)
		description = fmt.Sprintf("Returns %s records matching the equality filters, paginated with _offset/_size and projected with _include. "+
			"X-Total-Count, X-Offset and X-Size headers describe the page.", info.Kind)
	} else {
		params = legacyParameters(info)
	}

	doc.Paths.Set(prefix+"/"+info.Collection, &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{tag},
			Summary:     fmt.Sprintf("List %s", info.Collection),
			Description: description,
			OperationID: fmt.Sprintf("v%d_list_%s", version, info.Table),
			Parameters:  params,
			Responses:   newResponses("200", fmt.Sprintf("List of %s", info.Collection), listSchema),
		},
	})

	doc.Paths.Set(prefix+"/"+info.Collection+"/{id}", &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{tag},
			Summary:     fmt.Sprintf("Get one %s", info.Kind),
			OperationID: fmt.Sprintf("v%d_get_%s", version, info.Table),
			Parameters: openapi3.Parameters{
				&openapi3.ParameterRef{
					Value: openapi3.NewPathParameter("id").
						WithDescription("Record id.").
						WithSchema(openapi3.NewStringSchema()),
				},
			},
			Responses: newResponses("200", fmt.Sprintf("The %s record", info.Kind), openapi3.NewSchemaRef(ref, nil)),
		},
	})
}

// ─── Schema Builders ────────────────────────────────────────────────────────

// fieldsToSchema converts a kind's fields to an object schema. Every field is
// nullable since records may omit any of them.
func fieldsToSchema(fields []model.Field) *openapi3.SchemaRef {
	props := openapi3.Schemas{}
	for _, f := range fields {
		s := columnTypeSchema(MapFieldType(f.Type))
		s.Nullable = f.Name != "id"
		props[f.Name] = &openapi3.SchemaRef{Value: s}
	}
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type:       &openapi3.Types{"object"},
			Properties: props,
			Required:   []string{"id"},
		},
	}
}

func columnTypeSchema(m TypeMapping) *openapi3.Schema {
	s := &openapi3.Schema{
		Type: &openapi3.Types{m.Type},
	}
	if m.Format != "" {
		s.Format = m.Format
	}
	return s
}

func errorResponseSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"error": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type: &openapi3.Types{"object"},
						Properties: openapi3.Schemas{
							"code":    &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}},
							"message": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}},
							"context": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}}},
						},
					},
				},
			},
		},
	}
}

func tokenSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"value":      &openapi3.SchemaRef{Value: openapi3.NewStringSchema()},
				"expires_at": &openapi3.SchemaRef{Value: openapi3.NewDateTimeSchema()},
				"username":   &openapi3.SchemaRef{Value: openapi3.NewStringSchema()},
			},
		},
	}
}

func statusSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"status":           &openapi3.SchemaRef{Value: openapi3.NewStringSchema()},
				"security_enabled": &openapi3.SchemaRef{Value: openapi3.NewBoolSchema()},
				"api_versions": &openapi3.SchemaRef{Value: &openapi3.Schema{
					Type:  &openapi3.Types{"array"},
					Items: &openapi3.SchemaRef{Value: openapi3.NewIntegerSchema()},
				}},
				"resources": &openapi3.SchemaRef{Value: &openapi3.Schema{
					Type:                 &openapi3.Types{"object"},
					AdditionalProperties: openapi3.AdditionalProperties{Schema: &openapi3.SchemaRef{Value: openapi3.NewIntegerSchema()}},
				}},
			},
		},
	}
}

// ─── Parameters ─────────────────────────────────────────────────────────────

func listQueryParameters(info model.KindInfo) openapi3.Parameters {
	params := openapi3.Parameters{
		&openapi3.ParameterRef{
			Value: openapi3.NewQueryParameter(query.ParamOffset).
				WithDescription("Number of matching records to skip.").
				WithSchema(&openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32", Min: floatPtr(0)}),
		},
		&openapi3.ParameterRef{
			Value: openapi3.NewQueryParameter(query.ParamSize).
				WithDescription("Maximum number of records to return.").
				WithSchema(&openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32", Min: floatPtr(1)}),
		},
		&openapi3.ParameterRef{
			Value: openapi3.NewQueryParameter(query.ParamInclude).
				WithDescription("Comma-separated (or repeated) list of fields to return.").
				WithSchema(openapi3.NewStringSchema()),
		},
	}
	for _, f := range info.Fields {
		params = append(params, filterParameter(f.Name, fmt.Sprintf("Only return records whose %s equals this value.", f.Name)))
	}
	for _, alias := range sortedAliases(info) {
		params = append(params, filterParameter(alias, fmt.Sprintf("Alias for %s.", info.Aliases[alias])))
	}
	return params
}

func legacyParameters(info model.KindInfo) openapi3.Parameters {
	var params openapi3.Parameters
	for _, name := range info.LegacyFilters {
		params = append(params, filterParameter(name, fmt.Sprintf("Only return records whose %s equals this value.", name)))
	}
	for _, alias := range sortedAliases(info) {
		if field := info.Aliases[alias]; info.IsLegacyFilter(field) {
			params = append(params, filterParameter(alias, fmt.Sprintf("Alias for %s.", field)))
		}
	}
	return params
}

func sortedAliases(info model.KindInfo) []string {
	out := make([]string, 0, len(info.Aliases))
	for alias := range info.Aliases {
		out = append(out, alias)
	}
	sort.Strings(out)
	return out
}

func filterParameter(name, description string) *openapi3.ParameterRef {
	return &openapi3.ParameterRef{
		Value: openapi3.NewQueryParameter(name).
			WithDescription(description).
			WithSchema(openapi3.NewStringSchema()),
	}
}

func floatPtr(f float64) *float64 { return &f }

// ─── Response Helpers ───────────────────────────────────────────────────────

// newResponses builds a Responses map with a success response and standard error responses.
func newResponses(statusCode, description string, schema *openapi3.SchemaRef) *openapi3.Responses {
	responses := openapi3.NewResponses()

	successDesc := description
	responses.Set(statusCode, &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &successDesc,
			Content:     openapi3.NewContentWithJSONSchemaRef(schema),
		},
	})

	errorRef := openapi3.NewSchemaRef("#/components/schemas/ErrorResponse", nil)
	for _, e := range []struct{ code, desc string }{
		{"400", "Invalid query parameter or unsupported API version"},
		{"401", "Authentication failed"},
		{"403", "Not authorized"},
		{"404", "Not found"},
		{"500", "Internal server error"},
	} {
		desc := e.desc
		responses.Set(e.code, &openapi3.ResponseRef{
			Value: &openapi3.Response{
				Description: &desc,
				Content:     openapi3.NewContentWithJSONSchemaRef(errorRef),
			},
		})
	}
	return responses
}

// ─── Naming Helpers ─────────────────────────────────────────────────────────

// schemaName returns the PascalCase component name of a kind, e.g.
// "NodeInstance".
func schemaName(info model.KindInfo) string {
	parts := strings.Split(string(info.Kind), "_")
	for i, p := range parts {
		parts[i] = capitalize(p)
	}
	return strings.Join(parts, "")
}

// capitalize returns a string with its first character uppercased.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
