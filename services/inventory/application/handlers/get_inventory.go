package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ghuser/inventory/pkg/errhttp"
	"github.com/ghuser/inventory/pkg/httpx"
	"github.com/ghuser/inventory/services/inventory/domain/models"
)

// InventoryReader loads the current state of a product.
type InventoryReader interface {
	Get(ctx context.Context, productID string) (*models.Inventory, error)
}

// GetInventoryHandler handles GET /inventory/{productId}.
type GetInventoryHandler struct {
	svc InventoryReader
}

// NewGetInventoryHandler returns a handler backed by svc.
func NewGetInventoryHandler(svc InventoryReader) *GetInventoryHandler {
	return &GetInventoryHandler{svc: svc}
}

// Execute returns the stock of a product. Served from the Redis read model
// when cached, so it may briefly lag a concurrent write.
//
//	@Summary		Get stock
//	@Description	Returns the remaining stock of a product
//	@Tags			inventory
//	@Produce		json
//	@Param			productId	path		string	true	"Product identifier"
//	@Success		200			{object}	InventoryResponse
//	@Failure		404			{object}	ErrorResponse
//	@Failure		422			{object}	ErrorResponse
//	@Failure		503			{object}	ErrorResponse
//	@Router			/inventory/{productId} [get]
func (h *GetInventoryHandler) Execute(w http.ResponseWriter, r *http.Request) {
	inv, err := h.svc.Get(r.Context(), chi.URLParam(r, "productId"))
	if err != nil {
		errhttp.WriteError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, InventoryResponse{
		ProductID:   inv.ProductID.String(),
		StockRemain: inv.StockRemain,
		Revision:    inv.Revision,
		UpdatedAt:   inv.UpdatedAt,
	})
}
