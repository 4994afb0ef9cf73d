package openapi

import "github.com/deploykit/manager/internal/model"

// TypeMapping maps a resource field type to an OpenAPI type/format pair.
type TypeMapping struct {
	Type   string // OpenAPI type: string, integer, boolean, object
	Format string
}

var fieldTypeToOpenAPI = map[model.FieldType]TypeMapping{
	model.FieldKey:  {"string", ""},
	model.FieldText: {"string", ""},
	model.FieldInt:  {"integer", "int64"},
	model.FieldBool: {"boolean", ""},
	model.FieldJSON: {"object", ""},
}

// MapFieldType converts a field type to an OpenAPI type mapping. Falls back
// to {"string", ""} for unknown types.
func MapFieldType(ft model.FieldType) TypeMapping {
	if m, ok := fieldTypeToOpenAPI[ft]; ok {
		return m
	}
	return TypeMapping{"string", ""}
}
