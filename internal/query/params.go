package query

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/deploykit/manager/internal/model"
)

// ErrInvalidQueryParameter is returned for malformed list parameters.
var ErrInvalidQueryParameter = errors.New("invalid query parameter")

// Reserved list parameters. Every other key is an equality filter.
const (
	ParamOffset  = "_offset"
	ParamSize    = "_size"
	ParamInclude = "_include"
)

// DefaultPageSize is the page size used when none is configured.
const DefaultPageSize = 1000

// ListQuery is a parsed list request.
type ListQuery struct {
	Kind    model.Kind
	Filters map[string]string
	Include []string
	Offset  int
	Size    int
	Version int
}

// ParseOptions bounds page sizes.
type ParseOptions struct {
	DefaultSize int
	MaxSize     int
}

func (o ParseOptions) normalize() ParseOptions {
	if o.DefaultSize <= 0 {
		o.DefaultSize = DefaultPageSize
	}
	if o.MaxSize <= 0 {
		o.MaxSize = DefaultPageSize
	}
	if o.DefaultSize > o.MaxSize {
		o.DefaultSize = o.MaxSize
	}
	return o
}

// ParseListQuery builds a ListQuery from URL query parameters. _offset and
// _size are validated under every version, so malformed input is rejected
// even when the version ignores pagination. A _size above MaxSize is
// clamped. Parameters starting with an underscore that are not recognized
// are ignored.
func ParseListQuery(kind model.Kind, params url.Values, version int, opts ParseOptions) (ListQuery, error) {
	opts = opts.normalize()
	q := ListQuery{
		Kind:    kind,
		Filters: make(map[string]string),
		Size:    opts.DefaultSize,
		Version: version,
	}

	if raw := params.Get(ParamOffset); raw != "" {
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || n < 0 {
			return ListQuery{}, fmt.Errorf("%w: %s must be a non-negative integer, got %q", ErrInvalidQueryParameter, ParamOffset, raw)
		}
		q.Offset = n
	}

	if raw := params.Get(ParamSize); raw != "" {
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || n <= 0 {
			return ListQuery{}, fmt.Errorf("%w: %s must be a positive integer, got %q", ErrInvalidQueryParameter, ParamSize, raw)
		}
		q.Size = clampInt(n, 1, opts.MaxSize)
	}

	include, err := ParseFieldSelection(params[ParamInclude]...)
	if err != nil {
		return ListQuery{}, fmt.Errorf("%w: %s: %v", ErrInvalidQueryParameter, ParamInclude, err)
	}
	q.Include = include

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if k == "" || strings.HasPrefix(k, "_") {
			continue
		}
		v, err := SanitizeFilterValue(params.Get(k))
		if err != nil {
			return ListQuery{}, fmt.Errorf("%w: filter %s: %v", ErrInvalidQueryParameter, k, err)
		}
		q.Filters[k] = v
	}
	return q, nil
}

// Validate checks the bounds of a programmatically built query.
func (q ListQuery) Validate() error {
	if q.Offset < 0 {
		return fmt.Errorf("%w: offset must be non-negative, got %d", ErrInvalidQueryParameter, q.Offset)
	}
	if q.Size <= 0 {
		return fmt.Errorf("%w: size must be positive, got %d", ErrInvalidQueryParameter, q.Size)
	}
	return nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
