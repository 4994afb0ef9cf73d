package config

import (
	"fmt"
	"strings"

	"github.com/deploykit/manager/internal/model"
)

// createTableSQL builds the CREATE TABLE statement for one resource kind.
// Columns follow the kind's declared field order; seq preserves insertion
// order so enumeration matches the order records were imported in.
func (d dialect) createTableSQL(info model.KindInfo) string {
	cols := make([]string, 0, len(info.Fields)+2)
	cols = append(cols, d.seqColumn)
	for _, f := range info.Fields {
		col := d.quote(f.Name) + " " + d.columnType(f)
		if f.Name == "id" {
			col += " NOT NULL"
		}
		cols = append(cols, col)
	}
	cols = append(cols, "UNIQUE ("+d.quote("id")+")")

	body := strings.Join(cols, ",\n\t")
	if d.createGuard != nil {
		stmt := fmt.Sprintf("CREATE TABLE %s (\n\t%s\n)", d.quote(info.Table), body)
		return d.createGuard(info.Table, stmt)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", d.quote(info.Table), body)
}

func (s *Store) migrate() error {
	migrations := make([]string, 0, len(model.Kinds()))
	for _, info := range model.Kinds() {
		migrations = append(migrations, s.dialect.createTableSQL(info))
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}
