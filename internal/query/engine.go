package query

import (
	"context"
	"fmt"

	"github.com/deploykit/manager/internal/model"
)

// Collection is a source of records in a stable order.
type Collection interface {
	Enumerate(ctx context.Context) ([]model.Record, error)
}

// Result is one page of a list query.
type Result struct {
	Items  []model.Record
	Total  int // matches before pagination
	Offset int
	Size   int
	Paged  bool // false when the version ignores pagination
}

// Engine evaluates list queries against collections.
type Engine struct {
	policy VersionPolicy
}

// NewEngine creates an engine using policy to interpret versions.
func NewEngine(policy VersionPolicy) *Engine {
	return &Engine{policy: policy}
}

// Policy returns the engine's version policy.
func (e *Engine) Policy() VersionPolicy {
	return e.policy
}

// List runs q against coll.
//
// Under an active version every filter applies, then [Offset, Offset+Size)
// is taken from the matches and each item is projected onto Include.
// Under the legacy version generic filters, pagination and projection are
// ignored; only the filter arguments the kind accepted before filtering
// existed are honored.
func (e *Engine) List(ctx context.Context, coll Collection, q ListQuery) (Result, error) {
	if !e.policy.Supported(q.Version) {
		return Result{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, q.Version)
	}
	if err := q.Validate(); err != nil {
		return Result{}, err
	}
	info, ok := model.LookupKind(q.Kind)
	if !ok {
		return Result{}, fmt.Errorf("unknown resource kind %q", q.Kind)
	}

	active := e.policy.Active(q.Version)
	filters := normalizeFilters(info, q.Filters, active)

	records, err := coll.Enumerate(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("enumerate %s: %w", info.Collection, err)
	}

	matched := make([]model.Record, 0, len(records))
	for _, rec := range records {
		if matches(rec, filters) {
			matched = append(matched, rec)
		}
	}

	res := Result{Total: len(matched)}
	if !active {
		res.Items = matched
		res.Size = len(matched)
		return res, nil
	}

	res.Paged = true
	res.Offset = q.Offset
	res.Size = q.Size
	page := paginate(matched, q.Offset, q.Size)
	if len(q.Include) > 0 {
		for i, rec := range page {
			page[i] = Project(rec, q.Include)
		}
	}
	res.Items = page
	return res, nil
}

// normalizeFilters rewrites aliases onto their fields and, for the legacy
// version, drops every filter the kind did not accept before filtering
// existed. An alias and its field given together resolve to the field.
func normalizeFilters(info model.KindInfo, filters map[string]string, active bool) map[string]string {
	out := make(map[string]string, len(filters))
	for k, v := range filters {
		field := k
		if target, ok := info.Aliases[k]; ok {
			if _, direct := filters[target]; direct {
				continue
			}
			field = target
		}
		if !active && !info.IsLegacyFilter(field) {
			continue
		}
		out[field] = v
	}
	return out
}

// matches reports whether every filter equals the record's value after
// formatting it as a string. Missing and null values never match.
func matches(rec model.Record, filters map[string]string) bool {
	for field, want := range filters {
		v, ok := rec[field]
		if !ok || v == nil {
			return false
		}
		if fmt.Sprint(v) != want {
			return false
		}
	}
	return true
}

func paginate(recs []model.Record, offset, size int) []model.Record {
	if offset >= len(recs) {
		return []model.Record{}
	}
	end := offset + size
	if end > len(recs) || end < offset {
		end = len(recs)
	}
	page := make([]model.Record, end-offset)
	copy(page, recs[offset:end])
	return page
}

// Project returns a copy of rec holding only the named fields. Names the
// record does not have are skipped.
func Project(rec model.Record, include []string) model.Record {
	out := make(model.Record, len(include))
	for _, name := range include {
		if v, ok := rec[name]; ok {
			out[name] = v
		}
	}
	return out
}
