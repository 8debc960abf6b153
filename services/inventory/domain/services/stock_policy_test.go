package services

import (
	"errors"
	"testing"

	"github.com/ghuser/inventory/services/inventory/domain"
)

func TestStockPolicy_Validate(t *testing.T) {
	tests := []struct {
		name          string
		allowNegative bool
		stock         int64
		wantErr       bool
	}{
		{"zero", false, 0, false},
		{"positive", false, 50, false},
		{"negative rejected", false, -1, true},
		{"negative allowed", true, -1, false},
		{"large value", false, 1 << 40, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := StockPolicy{AllowNegative: tt.allowNegative}.Validate(tt.stock)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate(%d) error = %v, wantErr = %v", tt.stock, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, domain.ErrNegativeStock) {
				t.Fatalf("expected ErrNegativeStock, got %v", err)
			}
		})
	}
}
