package query

import (
	"strings"
	"testing"

	"github.com/deploykit/manager/internal/model"
)

func TestValidateIdentifier(t *testing.T) {
	valid := []string{
		"id",
		"deployment_id",
		"_internal",
		"runtime_properties",
		"node2",
		strings.Repeat("f", MaxIdentifierLength),
	}
	for _, name := range valid {
		if err := ValidateIdentifier(name); err != nil {
			t.Errorf("ValidateIdentifier(%q) = %v, want nil", name, err)
		}
	}

	invalid := map[string]string{
		"":                                         "empty",
		"2nd":                                      "must match",
		"node-id":                                  "must match",
		"node id":                                  "must match",
		"id;DROP TABLE deployments":                "must match",
		"state)":                                   "must match",
		"Select":                                   "reserved word",
		"table":                                    "reserved word",
		strings.Repeat("f", MaxIdentifierLength+1): "too long",
	}
	for name, want := range invalid {
		err := ValidateIdentifier(name)
		if err == nil || !strings.Contains(err.Error(), want) {
			t.Errorf("ValidateIdentifier(%q) = %v, want error containing %q", name, err, want)
		}
	}
}

func TestKindFieldsAreValidIdentifiers(t *testing.T) {
	for _, info := range model.Kinds() {
		for _, name := range info.FieldNames() {
			if err := ValidateIdentifier(name); err != nil {
				t.Errorf("%s field %q: %v", info.Kind, name, err)
			}
		}
	}
}

func TestSanitizeFilterValue(t *testing.T) {
	got, err := SanitizeFilterValue("web\x00_1")
	if err != nil || got != "web_1" {
		t.Errorf("got %q, %v; want web_1", got, err)
	}

	got, err = SanitizeFilterValue("")
	if err != nil || got != "" {
		t.Errorf("empty value: got %q, %v", got, err)
	}

	max := strings.Repeat("x", MaxFilterValueLength)
	if got, err := SanitizeFilterValue(max); err != nil || got != max {
		t.Errorf("value at the limit rejected: %v", err)
	}
	if _, err := SanitizeFilterValue(max + "x"); err == nil {
		t.Error("expected error for value over the limit")
	}
	if _, err := SanitizeFilterValue("bad\xffutf8"); err == nil {
		t.Error("expected error for invalid UTF-8")
	}
}
