package handlers

import "time"

// InventoryResponse is the stored state of one product.
type InventoryResponse struct {
	ProductID   string    `json:"productId"   example:"12345"`
	StockRemain int64     `json:"stockRemain" example:"40"`
	Revision    int64     `json:"revision"    example:"7"`
	UpdatedAt   time.Time `json:"updatedAt"   example:"2026-01-15T10:30:00Z"`
} // @name InventoryResponse

// UpdateStockResponse is returned when a stock write committed.
// EventPublished is false when the change notification is still pending;
// the response then also carries a Warning header.
type UpdateStockResponse struct {
	ProductID      string `json:"productId"      example:"12345"`
	StockRemain    int64  `json:"stockRemain"    example:"40"`
	Revision       int64  `json:"revision"       example:"7"`
	EventPublished bool   `json:"eventPublished" example:"true"`
} // @name UpdateStockResponse

// ErrorResponse is returned on all error responses.
type ErrorResponse struct {
	Error string `json:"error" example:"inventory not found"`
} // @name ErrorResponse

// ValidationErrorResponse lists the request parameters that failed validation.
type ValidationErrorResponse struct {
	Error  string            `json:"error"  example:"Validation failed"`
	Fields map[string]string `json:"fields"`
} // @name ValidationErrorResponse
