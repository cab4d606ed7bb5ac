package models

import (
	"database/sql/driver"
	"errors"
	"fmt"
)

// TransactionType classifies one signed change to a material's quantity.
type TransactionType string

const (
	// TransactionTypeRestock is an inbound delivery of raw material.
	TransactionTypeRestock TransactionType = "Restock"
	// TransactionTypeProduction is a deduction made by a production run.
	TransactionTypeProduction TransactionType = "Production"
	// TransactionTypeReversal compensates a production deduction when a run is undone.
	TransactionTypeReversal TransactionType = "Reversal"
	// TransactionTypeAdjustment is an administrative correction (signed).
	TransactionTypeAdjustment TransactionType = "Adjustment"
)

func (t TransactionType) Value() (driver.Value, error) {
	return string(t), nil
}

func (t *TransactionType) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		*t = TransactionType(v)
	case string:
		*t = TransactionType(v)
	default:
		return fmt.Errorf("unsupported transaction type value: %v", value)
	}
	return nil
}

func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeRestock, TransactionTypeProduction, TransactionTypeReversal, TransactionTypeAdjustment:
		return true
	}
	return false
}

// StockLevel is the coarse status band shown on inventory screens.
type StockLevel string

const (
	StockLevelLow    StockLevel = "low"
	StockLevelMedium StockLevel = "medium"
	StockLevelGood   StockLevel = "good"
)

type UserRole string

const (
	UserRoleAdmin    UserRole = "A"
	UserRoleOperator UserRole = "O"
)

func (r UserRole) Value() (driver.Value, error) {
	return string(r), nil
}

func (r *UserRole) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		*r = UserRole(v)
	case string:
		*r = UserRole(v)
	default:
		return errors.New("user role must be string")
	}
	return nil
}

// DisplayName returns the role name shown to the frontend after login.
func (r UserRole) DisplayName() string {
	switch r {
	case UserRoleAdmin:
		return "Admin"
	case UserRoleOperator:
		return "Operator"
	}
	return string(r)
}
