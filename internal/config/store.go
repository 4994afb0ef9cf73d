package config

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/deploykit/manager/internal/model"
	"github.com/deploykit/manager/internal/query"
)

// Store persists management resources (blueprints, deployments, nodes and
// the rest) in one SQL table per kind. It backs the list endpoints and is
// the only component that talks to the database.
type Store struct {
	db      *sqlx.DB
	dialect dialect
}

// StoreOptions selects the backend for Open.
type StoreOptions struct {
	Driver       string // sqlite, postgres, mysql or mssql
	DSN          string
	MaxOpenConns int
}

// NewStore creates a SQLite-backed store under dataDir. Pass empty string
// for in-memory.
func NewStore(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == "" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		dsn = filepath.Join(dataDir, "manager.db") + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	return Open(StoreOptions{Driver: "sqlite", DSN: dsn})
}

// Open connects to the configured backend and creates missing tables.
func Open(opts StoreOptions) (*Store, error) {
	d, err := lookupDialect(opts.Driver)
	if err != nil {
		return nil, err
	}
	dsn := opts.DSN
	if d.name == "sqlite" && dsn == "" {
		dsn = ":memory:"
	}

	db, err := sqlx.Connect(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", d.name, err)
	}

	if d.singleConn {
		db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes
	} else if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}

	s := &Store{db: db, dialect: d}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s store: %w", d.name, err)
	}
	return s, nil
}

// OpenFromConfig opens the store described by the storage section.
func OpenFromConfig(cfg StorageConfig) (*Store, error) {
	return Open(StoreOptions{Driver: cfg.Driver, DSN: cfg.DSN, MaxOpenConns: cfg.MaxOpenConns})
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Driver returns the dialect name in use.
func (s *Store) Driver() string {
	return s.dialect.name
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ---------------------------------------------------------------------------
// Records
// ---------------------------------------------------------------------------

func kindInfo(kind model.Kind) (model.KindInfo, error) {
	info, ok := model.LookupKind(kind)
	if !ok {
		return model.KindInfo{}, fmt.Errorf("unknown resource kind %q", kind)
	}
	return info, nil
}

func (s *Store) columnList(info model.KindInfo) (string, error) {
	cols, err := query.QuoteIdentifiers(info.FieldNames(), s.dialect.quote)
	if err != nil {
		return "", fmt.Errorf("%s columns: %w", info.Table, err)
	}
	return cols, nil
}

// Insert stores a record of the given kind. Fields the kind does not declare
// are dropped; missing fields are stored as NULL. A missing id is filled in
// with a generated UUID, which is also written back into rec.
func (s *Store) Insert(ctx context.Context, kind model.Kind, rec model.Record) error {
	return s.insert(ctx, s.db, kind, rec)
}

func (s *Store) insert(ctx context.Context, ex sqlx.ExecerContext, kind model.Kind, rec model.Record) error {
	info, err := kindInfo(kind)
	if err != nil {
		return err
	}
	if rec.ID() == "" {
		rec["id"] = uuid.NewString()
	}

	args := make([]interface{}, len(info.Fields))
	placeholders := make([]string, len(info.Fields))
	for i, f := range info.Fields {
		v, err := encodeValue(f, rec[f.Name])
		if err != nil {
			return fmt.Errorf("insert %s %q: %w", kind, rec.ID(), err)
		}
		args[i] = v
		placeholders[i] = "?"
	}

	cols, err := s.columnList(info)
	if err != nil {
		return err
	}
	q := s.dialect.rebind(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		s.dialect.quote(info.Table), cols, strings.Join(placeholders, ", ")))
	if _, err := ex.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("insert %s %q: %w", kind, rec.ID(), err)
	}
	return nil
}

// Enumerate returns every record of the kind in insertion order.
func (s *Store) Enumerate(ctx context.Context, kind model.Kind) ([]model.Record, error) {
	info, err := kindInfo(kind)
	if err != nil {
		return nil, err
	}
	cols, err := s.columnList(info)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf("SELECT %s FROM %s ORDER BY seq", cols, s.dialect.quote(info.Table))
	return s.selectRecords(ctx, info, q)
}

// FindBy returns the records whose field equals value, in insertion order.
// Only key and text fields can be looked up.
func (s *Store) FindBy(ctx context.Context, kind model.Kind, field, value string) ([]model.Record, error) {
	info, err := kindInfo(kind)
	if err != nil {
		return nil, err
	}
	var ft model.FieldType = -1
	for _, f := range info.Fields {
		if f.Name == field {
			ft = f.Type
		}
	}
	if ft != model.FieldKey && ft != model.FieldText {
		return nil, fmt.Errorf("%w: %s has no searchable field %q", ErrUnknownField, kind, field)
	}

	cols, err := s.columnList(info)
	if err != nil {
		return nil, err
	}
	q := s.dialect.rebind(fmt.Sprintf("SELECT %s FROM %s WHERE %s = ? ORDER BY seq",
		cols, s.dialect.quote(info.Table), s.dialect.quote(field)))
	return s.selectRecords(ctx, info, q, value)
}

// Get returns a single record by id.
func (s *Store) Get(ctx context.Context, kind model.Kind, id string) (model.Record, error) {
	recs, err := s.FindBy(ctx, kind, "id", id)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, ErrNotFound
	}
	return recs[0], nil
}

// Count returns the number of stored records of the kind.
func (s *Store) Count(ctx context.Context, kind model.Kind) (int, error) {
	info, err := kindInfo(kind)
	if err != nil {
		return 0, err
	}
	var n int
	q := fmt.Sprintf("SELECT COUNT(*) FROM %s", s.dialect.quote(info.Table))
	if err := s.db.GetContext(ctx, &n, q); err != nil {
		return 0, fmt.Errorf("count %s: %w", kind, err)
	}
	return n, nil
}

// Counts returns record counts for every kind, keyed by collection name.
func (s *Store) Counts(ctx context.Context) (map[string]int, error) {
	out := make(map[string]int)
	for _, info := range model.Kinds() {
		n, err := s.Count(ctx, info.Kind)
		if err != nil {
			return nil, err
		}
		out[info.Collection] = n
	}
	return out, nil
}

func (s *Store) selectRecords(ctx context.Context, info model.KindInfo, q string, args ...interface{}) ([]model.Record, error) {
	rows, err := s.db.QueryxContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", info.Table, err)
	}
	defer rows.Close()

	var out []model.Record
	for rows.Next() {
		raw := make(map[string]interface{}, len(info.Fields))
		if err := rows.MapScan(raw); err != nil {
			return nil, fmt.Errorf("scan %s: %w", info.Table, err)
		}
		rec := make(model.Record, len(info.Fields))
		for _, f := range info.Fields {
			rec[f.Name] = decodeValue(f, raw[f.Name])
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", info.Table, err)
	}
	if out == nil {
		out = []model.Record{}
	}
	return out, nil
}

// Collection returns a read-only view of one kind that the list-query
// engine can enumerate.
func (s *Store) Collection(kind model.Kind) *Collection {
	return &Collection{store: s, kind: kind}
}

// Collection is the store's view of a single resource kind.
type Collection struct {
	store *Store
	kind  model.Kind
}

// Kind returns the resource kind the collection holds.
func (c *Collection) Kind() model.Kind { return c.kind }

// Enumerate returns every record of the collection in insertion order.
func (c *Collection) Enumerate(ctx context.Context) ([]model.Record, error) {
	return c.store.Enumerate(ctx, c.kind)
}

// ---------------------------------------------------------------------------
// Value encoding
// ---------------------------------------------------------------------------

func encodeValue(f model.Field, v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	switch f.Type {
	case model.FieldJSON:
		if s, ok := v.(string); ok {
			return s, nil
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		return string(data), nil
	case model.FieldInt:
		switch n := v.(type) {
		case int:
			return int64(n), nil
		case int64:
			return n, nil
		case float64:
			return int64(n), nil
		case string:
			i, err := strconv.ParseInt(n, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", f.Name, err)
			}
			return i, nil
		}
		return nil, fmt.Errorf("field %s: expected integer, got %T", f.Name, v)
	case model.FieldBool:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			parsed, err := strconv.ParseBool(b)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", f.Name, err)
			}
			return parsed, nil
		}
		return nil, fmt.Errorf("field %s: expected boolean, got %T", f.Name, v)
	default:
		if s, ok := v.(string); ok {
			return s, nil
		}
		return fmt.Sprint(v), nil
	}
}

// decodeValue normalizes a scanned column into the Go type the kind
// declares. Drivers disagree here: MySQL returns []byte for text and
// SQLite returns int64 for booleans.
func decodeValue(f model.Field, v interface{}) interface{} {
	if v == nil {
		return nil
	}
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	switch f.Type {
	case model.FieldInt:
		switch n := v.(type) {
		case int64:
			return n
		case int32:
			return int64(n)
		case float64:
			return int64(n)
		case string:
			if i, err := strconv.ParseInt(n, 10, 64); err == nil {
				return i
			}
		}
		return v
	case model.FieldBool:
		switch b := v.(type) {
		case bool:
			return b
		case int64:
			return b != 0
		case string:
			if parsed, err := strconv.ParseBool(b); err == nil {
				return parsed
			}
		}
		return v
	case model.FieldJSON:
		s, ok := v.(string)
		if !ok {
			return v
		}
		var doc interface{}
		if err := json.Unmarshal([]byte(s), &doc); err != nil {
			return s
		}
		return doc
	default:
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprint(v)
	}
}

// IsNotFound reports whether err means a lookup found nothing.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, sql.ErrNoRows)
}
