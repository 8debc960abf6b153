package models

import (
	"strings"
	"testing"
)

func TestNewProductID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"numeric id", "12345", false},
		{"sku style", "SKU-ab_12.v2", false},
		{"255 characters", strings.Repeat("x", 255), false},
		{"empty", "", true},
		{"256 characters", strings.Repeat("x", 256), true},
		{"leading space", " 12345", true},
		{"trailing space", "12345 ", true},
		{"only whitespace", "   ", true},
		{"newline", "123\n45", true},
		{"null byte", "123\x00", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := NewProductID(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewProductID(%q) error = %v, wantErr = %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && id.String() != tt.input {
				t.Fatalf("expected %q, got %q", tt.input, id.String())
			}
		})
	}
}
