package openapi

import (
	"encoding/json"
	"testing"

	"github.com/deploykit/manager/internal/model"
)

// ─── MapFieldType Tests ─────────────────────────────────────────────────────

func TestMapFieldType(t *testing.T) {
	tests := []struct {
		ft         model.FieldType
		wantType   string
		wantFormat string
	}{
		{model.FieldKey, "string", ""},
		{model.FieldText, "string", ""},
		{model.FieldInt, "integer", "int64"},
		{model.FieldBool, "boolean", ""},
		{model.FieldJSON, "object", ""},
		{model.FieldType(99), "string", ""},
	}
	for _, tt := range tests {
		got := MapFieldType(tt.ft)
		if got.Type != tt.wantType || got.Format != tt.wantFormat {
			t.Errorf("MapFieldType(%d) = {%q, %q}, want {%q, %q}", tt.ft, got.Type, got.Format, tt.wantType, tt.wantFormat)
		}
	}
}

// ─── Generate Tests ─────────────────────────────────────────────────────────

func TestGenerate_PathsForEveryKindAndVersion(t *testing.T) {
	doc := Generate(Options{BaseURL: "http://localhost:8100", Versions: []int{1, 2}})

	if doc.OpenAPI != "3.1.0" {
		t.Errorf("OpenAPI = %q", doc.OpenAPI)
	}
	if len(doc.Servers) != 1 || doc.Servers[0].URL != "http://localhost:8100" {
		t.Errorf("Servers = %+v", doc.Servers)
	}

	for _, v := range []string{"/api/v1", "/api/v2"} {
		for _, info := range model.Kinds() {
			for _, p := range []string{v + "/" + info.Collection, v + "/" + info.Collection + "/{id}"} {
				item := doc.Paths.Value(p)
				if item == nil || item.Get == nil {
					t.Errorf("missing GET %s", p)
				}
			}
		}
		for _, p := range []string{v + "/tokens", v + "/status"} {
			if doc.Paths.Value(p) == nil {
				t.Errorf("missing %s", p)
			}
		}
	}
}

func TestGenerate_ListParameters(t *testing.T) {
	doc := Generate(Options{Versions: []int{1, 2}})

	v2 := doc.Paths.Value("/api/v2/node-instances").Get
	names := map[string]bool{}
	for _, p := range v2.Parameters {
		names[p.Value.Name] = true
	}
	for _, want := range []string{"_offset", "_size", "_include", "deployment_id", "node_id", "node_name"} {
		if !names[want] {
			t.Errorf("v2 list missing parameter %q", want)
		}
	}

	v1 := doc.Paths.Value("/api/v1/node-instances").Get
	for _, p := range v1.Parameters {
		if p.Value.Name == "_offset" || p.Value.Name == "_size" || p.Value.Name == "_include" {
			t.Errorf("v1 list must not document %q", p.Value.Name)
		}
	}
}

func TestGenerate_ComponentSchemas(t *testing.T) {
	doc := Generate(Options{})

	for _, name := range []string{"ErrorResponse", "Token", "Status", "Deployment", "NodeInstance", "DeploymentModification"} {
		if _, ok := doc.Components.Schemas[name]; !ok {
			t.Errorf("missing component schema %q", name)
		}
	}

	dep := doc.Components.Schemas["Deployment"].Value
	if _, ok := dep.Properties["id"]; !ok {
		t.Error("Deployment schema missing id property")
	}
	if len(dep.Required) != 1 || dep.Required[0] != "id" {
		t.Errorf("Required = %v", dep.Required)
	}
}

func TestGenerate_SecuritySchemes(t *testing.T) {
	off := Generate(Options{})
	if len(off.Components.SecuritySchemes) != 0 || len(off.Security) != 0 {
		t.Error("security schemes must be absent when security is disabled")
	}

	on := Generate(Options{SecurityEnabled: true})
	basic, ok := on.Components.SecuritySchemes["basicAuth"]
	if !ok || basic.Value.Scheme != "basic" {
		t.Errorf("basicAuth = %+v", basic)
	}
	token, ok := on.Components.SecuritySchemes["sessionToken"]
	if !ok || token.Value.Name != "Authentication-Token" || token.Value.In != "header" {
		t.Errorf("sessionToken = %+v", token)
	}
	if len(on.Security) != 2 {
		t.Errorf("Security = %v", on.Security)
	}
}

func TestGenerate_MarshalsToJSON(t *testing.T) {
	doc := Generate(Options{SecurityEnabled: true})
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if _, ok := out["paths"]; !ok {
		t.Error("marshalled document missing paths")
	}
}

// ─── Naming Tests ───────────────────────────────────────────────────────────

func TestSchemaName(t *testing.T) {
	info, _ := model.LookupKind(model.KindNodeInstance)
	if got := schemaName(info); got != "NodeInstance" {
		t.Errorf("schemaName = %q", got)
	}
	if capitalize("") != "" || capitalize("a") != "A" {
		t.Error("capitalize")
	}
}
