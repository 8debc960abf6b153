// Package services contains stateless domain services for the inventory
// bounded context.
package services

import (
	"fmt"

	"github.com/ghuser/inventory/services/inventory/domain"
)

// StockPolicy decides which absolute stock values may be written.
// Stock updates are overwrites: any delta arithmetic (e.g. order decrements)
// happens in the caller before the new value reaches this policy.
type StockPolicy struct {
	AllowNegative bool
}

// Validate returns ErrNegativeStock when stock is negative and the policy forbids it.
func (p StockPolicy) Validate(stock int64) error {
	if stock < 0 && !p.AllowNegative {
		return fmt.Errorf("%w: got %d", domain.ErrNegativeStock, stock)
	}
	return nil
}
