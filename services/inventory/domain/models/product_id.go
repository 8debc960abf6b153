package models

import (
	"fmt"
	"strings"
	"unicode"
)

// ProductID is a value object for the inventory primary key.
// Encapsulates validation rules: 1 <= len <= 255, no surrounding whitespace,
// no control characters.
type ProductID string

const maxProductIDLength = 255

// NewProductID constructs a valid ProductID or returns an error if constraints are violated.
func NewProductID(s string) (ProductID, error) {
	if s == "" {
		return "", fmt.Errorf("product id must not be empty")
	}
	if len(s) > maxProductIDLength {
		return "", fmt.Errorf("product id must not exceed %d characters", maxProductIDLength)
	}
	if s != strings.TrimSpace(s) {
		return "", fmt.Errorf("product id must not have leading or trailing whitespace")
	}
	for _, r := range s {
		if unicode.IsControl(r) {
			return "", fmt.Errorf("product id must not contain control characters")
		}
	}
	return ProductID(s), nil
}

// String returns the underlying string value.
func (p ProductID) String() string {
	return string(p)
}
