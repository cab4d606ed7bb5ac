package models

import (
	"testing"

	"bitbucket.org/mmdatafocus/factory_backend/utils"
	"github.com/shopspring/decimal"
)

func TestStockLevelBands(t *testing.T) {
	tests := []struct {
		qty  string
		want StockLevel
	}{
		{"0", StockLevelLow},
		{"19.9999", StockLevelLow},
		{"20", StockLevelMedium},
		{"49.5", StockLevelMedium},
		{"50", StockLevelGood},
		{"500", StockLevelGood},
	}
	for _, tt := range tests {
		qty, err := decimal.NewFromString(tt.qty)
		if err != nil {
			t.Fatalf("bad decimal %q: %v", tt.qty, err)
		}
		m := RawMaterial{Quantity: qty}
		if got := m.StockLevel(); got != tt.want {
			t.Errorf("StockLevel(%s): got %s, want %s", tt.qty, got, tt.want)
		}
	}
}

func TestNewRawMaterialValidate(t *testing.T) {
	valid := NewRawMaterial{Name: "Wood Splints", Quantity: decimal.NewFromInt(500), Unit: "kg", UnitPrice: decimal.NewFromInt(1)}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid input rejected: %v", err)
	}

	tests := []struct {
		name  string
		input NewRawMaterial
	}{
		{"blank name", NewRawMaterial{Name: "   ", Unit: "kg"}},
		{"negative quantity", NewRawMaterial{Name: "Wood", Unit: "kg", Quantity: decimal.NewFromInt(-1)}},
		{"negative price", NewRawMaterial{Name: "Wood", Unit: "kg", UnitPrice: decimal.NewFromInt(-1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.input.Validate()
			if !utils.IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestNewProductionRunValidate(t *testing.T) {
	if err := (NewProductionRun{UnitsProduced: 1}).Validate(); err != nil {
		t.Fatalf("valid input rejected: %v", err)
	}
	for _, units := range []int{0, -5} {
		err := (NewProductionRun{UnitsProduced: units}).Validate()
		if !utils.IsValidation(err) {
			t.Fatalf("units=%d: expected validation error, got %v", units, err)
		}
	}
}
