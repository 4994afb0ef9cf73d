package query

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// API versions.
const (
	// VersionLegacy is the pre-filtering API: lists return every record.
	VersionLegacy = 1
	// VersionFiltered enables filters, pagination and projection.
	VersionFiltered = 2
)

// ErrUnsupportedVersion is returned when a request names an API version the
// service does not serve.
var ErrUnsupportedVersion = errors.New("unsupported API version")

// VersionPolicy decides which API versions are served and whether list
// features are active for a version.
type VersionPolicy struct {
	Latest int
}

// DefaultVersionPolicy serves versions 1 and 2.
var DefaultVersionPolicy = VersionPolicy{Latest: VersionFiltered}

// Supported reports whether v is served.
func (p VersionPolicy) Supported(v int) bool {
	return v >= VersionLegacy && v <= p.Latest
}

// Active reports whether filtering, pagination and projection apply to v.
func (p VersionPolicy) Active(v int) bool {
	return v >= VersionFiltered
}

// Versions lists every served version in ascending order.
func (p VersionPolicy) Versions() []int {
	out := make([]int, 0, p.Latest)
	for v := VersionLegacy; v <= p.Latest; v++ {
		out = append(out, v)
	}
	return out
}

// Negotiate parses a version path segment such as "v2" (or a bare "2") and
// checks that it is served.
func (p VersionPolicy) Negotiate(segment string) (int, error) {
	raw := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(segment)), "v")
	v, err := strconv.Atoi(raw)
	if err != nil || !p.Supported(v) {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedVersion, segment)
	}
	return v, nil
}
