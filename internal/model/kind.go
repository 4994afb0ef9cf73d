package model

import "sort"

// Kind identifies a listable management resource.
type Kind string

const (
	KindBlueprint              Kind = "blueprint"
	KindDeployment             Kind = "deployment"
	KindNode                   Kind = "node"
	KindNodeInstance           Kind = "node_instance"
	KindExecution              Kind = "execution"
	KindDeploymentModification Kind = "deployment_modification"
	KindEvent                  Kind = "event"
)

// FieldType controls how a field is stored and how scanned values are
// normalized back into Go values.
type FieldType int

const (
	FieldKey  FieldType = iota // short identifier, indexable
	FieldText                  // free text
	FieldInt                   // integer
	FieldBool                  // boolean
	FieldJSON                  // arbitrary JSON document stored as text
)

// Field is a named attribute of a resource record.
type Field struct {
	Name string
	Type FieldType
}

// KindInfo describes a resource kind: its URL collection name, its storage
// table, its fields in natural order, and the filter keys it treats specially.
type KindInfo struct {
	Kind       Kind
	Collection string // URL segment, e.g. "node-instances"
	Table      string
	Fields     []Field

	// Aliases maps a filter key that is not a literal field onto the field
	// it stands for.
	Aliases map[string]string

	// LegacyFilters lists the query arguments the endpoint accepted before
	// generic filtering existed. They stay in effect under API version 1.
	LegacyFilters []string
}

// Record is a single resource as a field-name to value mapping.
type Record map[string]interface{}

// ID returns the record's "id" field as a string.
func (r Record) ID() string {
	if v, ok := r["id"].(string); ok {
		return v
	}
	return ""
}

// HasField reports whether name is one of the kind's fields.
func (k KindInfo) HasField(name string) bool {
	for _, f := range k.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// FieldNames returns the kind's field names in natural order.
func (k KindInfo) FieldNames() []string {
	names := make([]string, len(k.Fields))
	for i, f := range k.Fields {
		names[i] = f.Name
	}
	return names
}

// IsLegacyFilter reports whether key was accepted by the v1 endpoint.
func (k KindInfo) IsLegacyFilter(key string) bool {
	for _, f := range k.LegacyFilters {
		if f == key {
			return true
		}
	}
	return false
}

var nodeNameAlias = map[string]string{"node_name": "node_id"}

var kinds = map[Kind]KindInfo{
	KindBlueprint: {
		Kind:       KindBlueprint,
		Collection: "blueprints",
		Table:      "blueprints",
		Fields: []Field{
			{"id", FieldKey},
			{"created_at", FieldText},
			{"updated_at", FieldText},
			{"main_file_name", FieldText},
			{"description", FieldText},
			{"plan", FieldJSON},
		},
	},
	KindDeployment: {
		Kind:       KindDeployment,
		Collection: "deployments",
		Table:      "deployments",
		Fields: []Field{
			{"id", FieldKey},
			{"blueprint_id", FieldKey},
			{"description", FieldText},
			{"created_at", FieldText},
			{"updated_at", FieldText},
			{"inputs", FieldJSON},
			{"outputs", FieldJSON},
		},
	},
	KindNode: {
		Kind:       KindNode,
		Collection: "nodes",
		Table:      "nodes",
		Fields: []Field{
			{"id", FieldKey},
			{"node_id", FieldKey},
			{"deployment_id", FieldKey},
			{"blueprint_id", FieldKey},
			{"type", FieldText},
			{"host_id", FieldKey},
			{"number_of_instances", FieldInt},
			{"deploy_number_of_instances", FieldInt},
			{"properties", FieldJSON},
		},
		Aliases:       nodeNameAlias,
		LegacyFilters: []string{"deployment_id", "node_id"},
	},
	KindNodeInstance: {
		Kind:       KindNodeInstance,
		Collection: "node-instances",
		Table:      "node_instances",
		Fields: []Field{
			{"id", FieldKey},
			{"node_id", FieldKey},
			{"deployment_id", FieldKey},
			{"host_id", FieldKey},
			{"state", FieldText},
			{"version", FieldInt},
			{"runtime_properties", FieldJSON},
		},
		Aliases:       nodeNameAlias,
		LegacyFilters: []string{"deployment_id", "node_id"},
	},
	KindExecution: {
		Kind:       KindExecution,
		Collection: "executions",
		Table:      "executions",
		Fields: []Field{
			{"id", FieldKey},
			{"workflow_id", FieldKey},
			{"blueprint_id", FieldKey},
			{"deployment_id", FieldKey},
			{"status", FieldText},
			{"error", FieldText},
			{"created_at", FieldText},
			{"is_system_workflow", FieldBool},
			{"parameters", FieldJSON},
		},
		LegacyFilters: []string{"deployment_id"},
	},
	KindDeploymentModification: {
		Kind:       KindDeploymentModification,
		Collection: "deployment-modifications",
		Table:      "deployment_modifications",
		Fields: []Field{
			{"id", FieldKey},
			{"deployment_id", FieldKey},
			{"status", FieldText},
			{"created_at", FieldText},
			{"ended_at", FieldText},
			{"modified_nodes", FieldJSON},
			{"node_instances", FieldJSON},
			{"context", FieldJSON},
		},
		LegacyFilters: []string{"deployment_id"},
	},
	KindEvent: {
		Kind:       KindEvent,
		Collection: "events",
		Table:      "events",
		Fields: []Field{
			{"id", FieldKey},
			{"type", FieldKey},
			{"deployment_id", FieldKey},
			{"timestamp", FieldText},
			{"level", FieldText},
			{"message", FieldText},
			{"context", FieldJSON},
		},
		LegacyFilters: []string{"deployment_id"},
	},
}

// LookupKind returns the description of a kind.
func LookupKind(k Kind) (KindInfo, bool) {
	info, ok := kinds[k]
	return info, ok
}

// LookupCollection returns the kind served under a URL collection name such
// as "node-instances".
func LookupCollection(collection string) (KindInfo, bool) {
	for _, info := range kinds {
		if info.Collection == collection {
			return info, true
		}
	}
	return KindInfo{}, false
}

// Kinds returns every known kind, sorted by collection name.
func Kinds() []KindInfo {
	out := make([]KindInfo, 0, len(kinds))
	for _, info := range kinds {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Collection < out[j].Collection })
	return out
}
