package config

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/deploykit/manager/internal/model"
)

// Fixtures is a YAML document of resource records keyed by table name:
//
//	blueprints:
//	  - id: bp1
//	deployments:
//	  - id: dep1
//	    blueprint_id: bp1
type Fixtures map[string][]map[string]interface{}

// importOrder lists kinds parents-first so ids referenced by children exist
// by the time the children are written.
var importOrder = []model.Kind{
	model.KindBlueprint,
	model.KindDeployment,
	model.KindNode,
	model.KindNodeInstance,
	model.KindExecution,
	model.KindDeploymentModification,
	model.KindEvent,
}

// LoadFixtures reads a fixture document, rejecting unknown table names.
func LoadFixtures(path string) (Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	var fx Fixtures
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}

	known := make(map[string]bool)
	for _, info := range model.Kinds() {
		known[info.Table] = true
	}
	for table := range fx {
		if !known[table] {
			return nil, fmt.Errorf("fixtures: unknown resource table %q", table)
		}
	}
	return fx, nil
}

// Import inserts every fixture record in one transaction and returns the
// number written per collection. If any record fails nothing is written.
func (s *Store) Import(ctx context.Context, fx Fixtures) (map[string]int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("import: begin: %w", err)
	}
	defer tx.Rollback()

	written := make(map[string]int)
	for _, kind := range importOrder {
		info, _ := model.LookupKind(kind)
		for _, raw := range fx[info.Table] {
			rec := model.Record(raw)
			if err := s.insert(ctx, tx, kind, rec); err != nil {
				return nil, err
			}
			written[info.Collection]++
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("import: commit: %w", err)
	}
	return written, nil
}
