package models

import (
	"testing"
)

func TestCatalogValidate(t *testing.T) {
	tests := []struct {
		name    string
		catalog Catalog
		valid   bool
	}{
		{name: "ok", catalog: Catalog{Name: "Summer Collection"}, valid: true},
		{name: "missing name", catalog: Catalog{}, valid: false},
		{name: "name too short", catalog: Catalog{Name: "x"}, valid: false},
	}

	for _, tt := range tests {
		err := tt.catalog.Validate()
		if tt.valid && err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.name, err)
		}
		if !tt.valid && err == nil {
			t.Fatalf("%s: expected validation error", tt.name)
		}
	}
}
