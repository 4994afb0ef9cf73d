package query

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"testing"

	"github.com/deploykit/manager/internal/model"
)

// sliceCollection is an in-memory Collection.
type sliceCollection []model.Record

func (c sliceCollection) Enumerate(ctx context.Context) ([]model.Record, error) {
	return c, nil
}

type failingCollection struct{}

func (failingCollection) Enumerate(ctx context.Context) ([]model.Record, error) {
	return nil, errors.New("boom")
}

func deployments(n int) sliceCollection {
	out := make(sliceCollection, n)
	for i := range out {
		out[i] = model.Record{
			"id":           fmt.Sprintf("dep%d", i),
			"blueprint_id": fmt.Sprintf("bp%d", i%2),
		}
	}
	return out
}

// nodeInstances returns two instances for each of two nodes in each of two
// deployments.
func nodeInstances() sliceCollection {
	var out sliceCollection
	for _, dep := range []string{"dep0", "dep1"} {
		for _, node := range []string{"http_web_server", "db"} {
			for i := 0; i < 2; i++ {
				out = append(out, model.Record{
					"id":            fmt.Sprintf("%s_%s_%d", node, dep, i),
					"node_id":       node,
					"deployment_id": dep,
					"state":         "started",
					"version":       int64(i + 1),
				})
			}
		}
	}
	return out
}

func newTestEngine() *Engine {
	return NewEngine(DefaultVersionPolicy)
}

func mustParse(t *testing.T, kind model.Kind, raw string, version int) ListQuery {
	t.Helper()
	params, err := url.ParseQuery(raw)
	if err != nil {
		t.Fatalf("ParseQuery(%q): %v", raw, err)
	}
	q, err := ParseListQuery(kind, params, version, ParseOptions{})
	if err != nil {
		t.Fatalf("ParseListQuery(%q): %v", raw, err)
	}
	return q
}

func ids(recs []model.Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ID()
	}
	return out
}

// ---------------------------------------------------------------------------
// Pagination
// ---------------------------------------------------------------------------

func TestListPaginationV2(t *testing.T) {
	e := newTestEngine()
	coll := deployments(10)

	tests := []struct {
		raw     string
		want    int
		firstID string
	}{
		{"_offset=0&_size=3", 3, "dep0"},
		{"_offset=9&_size=3", 1, "dep9"},
		{"_offset=99&_size=3", 0, ""},
		{"_offset=0&_size=11", 10, "dep0"},
		{"_offset=3&_size=2", 2, "dep3"},
		{"", 10, "dep0"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			res, err := e.List(context.Background(), coll, mustParse(t, model.KindDeployment, tt.raw, 2))
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(res.Items) != tt.want {
				t.Fatalf("got %d items, want %d", len(res.Items), tt.want)
			}
			if res.Total != 10 {
				t.Errorf("Total = %d, want 10", res.Total)
			}
			if !res.Paged {
				t.Error("expected paged result under v2")
			}
			if tt.want > 0 && res.Items[0].ID() != tt.firstID {
				t.Errorf("first item = %q, want %q", res.Items[0].ID(), tt.firstID)
			}
			if res.Items == nil {
				t.Error("Items must not be nil")
			}
		})
	}
}

func TestListV1IgnoresPaginationAndFilters(t *testing.T) {
	e := newTestEngine()
	coll := deployments(10)

	q := mustParse(t, model.KindDeployment, "_offset=0&_size=3&blueprint_id=bp0&_include=id", 1)
	res, err := e.List(context.Background(), coll, q)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(res.Items) != 10 {
		t.Fatalf("got %d items, want all 10", len(res.Items))
	}
	if res.Paged {
		t.Error("v1 results are not paged")
	}
	if _, ok := res.Items[0]["blueprint_id"]; !ok {
		t.Error("v1 must not project")
	}
}

func TestListV1HonorsLegacyFilters(t *testing.T) {
	e := newTestEngine()
	q := mustParse(t, model.KindNodeInstance, "deployment_id=dep0&state=stopped&_size=1", 1)

	res, err := e.List(context.Background(), nodeInstances(), q)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	// state is not a legacy argument and is ignored; deployment_id is honored.
	if len(res.Items) != 4 {
		t.Fatalf("got %d items, want 4", len(res.Items))
	}
	for _, rec := range res.Items {
		if rec["deployment_id"] != "dep0" {
			t.Errorf("unexpected deployment_id %v", rec["deployment_id"])
		}
	}
}

// ---------------------------------------------------------------------------
// Filtering
// ---------------------------------------------------------------------------

func TestListFilterByDeployment(t *testing.T) {
	e := newTestEngine()
	res, err := e.List(context.Background(), nodeInstances(), mustParse(t, model.KindNodeInstance, "deployment_id=dep0", 2))
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(res.Items) != 4 {
		t.Fatalf("got %d items, want 4", len(res.Items))
	}
	for _, rec := range res.Items {
		if rec["deployment_id"] != "dep0" {
			t.Errorf("item %s has deployment_id %v", rec.ID(), rec["deployment_id"])
		}
	}
}

func TestListFilterTwoDeploymentsTwoNodes(t *testing.T) {
	// Two deployments, each with two single-instance nodes.
	var coll sliceCollection
	for _, dep := range []string{"d1", "d2"} {
		for _, node := range []string{"vm", "app"} {
			coll = append(coll, model.Record{"id": node + "_" + dep, "node_id": node, "deployment_id": dep})
		}
	}

	res, err := newTestEngine().List(context.Background(), coll, mustParse(t, model.KindNodeInstance, "deployment_id=d1", 2))
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	got := ids(res.Items)
	if len(got) != 2 || got[0] != "vm_d1" || got[1] != "app_d1" {
		t.Errorf("got %v, want [vm_d1 app_d1]", got)
	}
}

func TestListNodeNameAlias(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()

	byAlias, err := e.List(ctx, nodeInstances(), mustParse(t, model.KindNodeInstance, "node_name=http_web_server", 2))
	if err != nil {
		t.Fatalf("List alias: %v", err)
	}
	byField, err := e.List(ctx, nodeInstances(), mustParse(t, model.KindNodeInstance, "node_id=http_web_server", 2))
	if err != nil {
		t.Fatalf("List field: %v", err)
	}
	a, b := ids(byAlias.Items), ids(byField.Items)
	if len(a) != 4 || fmt.Sprint(a) != fmt.Sprint(b) {
		t.Errorf("alias %v != field %v", a, b)
	}

	// Legacy version honors the alias too.
	v1, err := e.List(ctx, nodeInstances(), mustParse(t, model.KindNodeInstance, "node_name=db", 1))
	if err != nil {
		t.Fatalf("List v1: %v", err)
	}
	if len(v1.Items) != 4 {
		t.Errorf("v1 alias got %d items, want 4", len(v1.Items))
	}
}

func TestListAliasOnlyOnNodeKinds(t *testing.T) {
	coll := sliceCollection{{"id": "e1", "deployment_id": "dep0"}}
	res, err := newTestEngine().List(context.Background(), coll, mustParse(t, model.KindExecution, "node_name=web", 2))
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(res.Items) != 0 {
		t.Errorf("node_name on executions is a plain filter on a missing field; got %d items", len(res.Items))
	}
}

func TestListFilterNumericAndBool(t *testing.T) {
	coll := sliceCollection{
		{"id": "n1", "number_of_instances": int64(2)},
		{"id": "n2", "number_of_instances": int64(1)},
	}
	res, err := newTestEngine().List(context.Background(), coll, mustParse(t, model.KindNode, "number_of_instances=2", 2))
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if got := ids(res.Items); len(got) != 1 || got[0] != "n1" {
		t.Errorf("got %v, want [n1]", got)
	}

	execs := sliceCollection{
		{"id": "e1", "is_system_workflow": true},
		{"id": "e2", "is_system_workflow": false},
	}
	res, err = newTestEngine().List(context.Background(), execs, mustParse(t, model.KindExecution, "is_system_workflow=false", 2))
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if got := ids(res.Items); len(got) != 1 || got[0] != "e2" {
		t.Errorf("got %v, want [e2]", got)
	}
}

func TestListNoMatchesIsEmptySuccess(t *testing.T) {
	res, err := newTestEngine().List(context.Background(), deployments(3), mustParse(t, model.KindDeployment, "id=nope", 2))
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if res.Items == nil || len(res.Items) != 0 || res.Total != 0 {
		t.Errorf("got %+v, want empty non-nil result", res)
	}
}

func TestListNullNeverMatches(t *testing.T) {
	coll := sliceCollection{{"id": "n1", "host_id": nil}}
	res, err := newTestEngine().List(context.Background(), coll, mustParse(t, model.KindNode, "host_id=%3Cnil%3E", 2))
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(res.Items) != 0 {
		t.Errorf("null matched filter: %v", ids(res.Items))
	}
}

// ---------------------------------------------------------------------------
// Projection
// ---------------------------------------------------------------------------

func TestListProjection(t *testing.T) {
	events := sliceCollection{
		{"id": "ev1", "type": "cloudify_event", "message": "started", "deployment_id": "dep0", "level": nil},
		{"id": "ev2", "type": "cloudify_log", "message": "done", "deployment_id": "dep0", "level": "info"},
	}

	res, err := newTestEngine().List(context.Background(), events, mustParse(t, model.KindEvent, "_include=message,type", 2))
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	for _, rec := range res.Items {
		keys := make([]string, 0, len(rec))
		for k := range rec {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		if fmt.Sprint(keys) != "[message type]" {
			t.Errorf("projected keys = %v, want [message type]", keys)
		}
	}
	if _, ok := events[0]["id"]; !ok {
		t.Error("projection must not modify the source records")
	}
}

func TestProjectUnknownAndPrefixFields(t *testing.T) {
	rec := model.Record{"message": "m", "message_code": 7}
	got := Project(rec, []string{"mess", "message", "nonexistent"})
	if len(got) != 1 || got["message"] != "m" {
		t.Errorf("got %v, want only message", got)
	}
}

func TestListProjectionWithRepeatedInclude(t *testing.T) {
	events := sliceCollection{{"id": "ev1", "type": "t", "message": "m"}}
	res, err := newTestEngine().List(context.Background(), events, mustParse(t, model.KindEvent, "_include=message&_include=type", 2))
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(res.Items[0]) != 2 {
		t.Errorf("got %v, want message and type", res.Items[0])
	}
}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

func TestListErrors(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()

	_, err := e.List(ctx, deployments(1), ListQuery{Kind: model.KindDeployment, Size: 10, Version: 3})
	if !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("version 3: got %v, want ErrUnsupportedVersion", err)
	}

	_, err = e.List(ctx, deployments(1), ListQuery{Kind: model.KindDeployment, Offset: -1, Size: 10, Version: 2})
	if !errors.Is(err, ErrInvalidQueryParameter) {
		t.Errorf("negative offset: got %v, want ErrInvalidQueryParameter", err)
	}

	_, err = e.List(ctx, deployments(1), ListQuery{Kind: model.KindDeployment, Size: 0, Version: 2})
	if !errors.Is(err, ErrInvalidQueryParameter) {
		t.Errorf("zero size: got %v, want ErrInvalidQueryParameter", err)
	}

	_, err = e.List(ctx, failingCollection{}, ListQuery{Kind: model.KindDeployment, Size: 10, Version: 2})
	if err == nil {
		t.Error("expected enumerate error")
	}

	_, err = e.List(ctx, deployments(1), ListQuery{Kind: "widget", Size: 10, Version: 2})
	if err == nil {
		t.Error("expected unknown kind error")
	}
}
