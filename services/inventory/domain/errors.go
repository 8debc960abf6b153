package domain

import "errors"

// Sentinel errors for the inventory domain. Use errors.Is() to check these.
var (
	// ErrInventoryNotFound indicates no inventory record exists for the product.
	// No side effects occurred.
	ErrInventoryNotFound = errors.New("inventory not found")

	// ErrPersistenceFailure indicates the stock write did not commit (store
	// unreachable, constraint violation, timeout). State is unchanged and no
	// event was emitted; the caller may retry.
	ErrPersistenceFailure = errors.New("inventory persistence failure")

	// ErrPublishFailed indicates the write committed but the change
	// notification could not be delivered. The stock value is correct.
	ErrPublishFailed = errors.New("inventory change notification failed")

	// ErrInvalidProductID indicates the product identifier violates domain constraints.
	ErrInvalidProductID = errors.New("invalid product id")

	// ErrNegativeStock indicates a negative stock value was rejected by policy.
	ErrNegativeStock = errors.New("stock must not be negative")
)
