package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ghuser/inventory/pkg/errhttp"
	"github.com/ghuser/inventory/pkg/httpx"
	pkgvalidator "github.com/ghuser/inventory/pkg/validator"
	appsvcs "github.com/ghuser/inventory/services/inventory/application/services"
)

const notificationPending = "inventory change notification not delivered"

// WarningNotificationPending is the Warning header value sent when the write
// committed but the change notification was not delivered.
var WarningNotificationPending = httpx.WarningValue(notificationPending)

// StockUpdater applies absolute stock overwrites.
type StockUpdater interface {
	Update(ctx context.Context, productID string, newStock int64) (*appsvcs.UpdateResult, error)
}

// UpdateStockParams are the path and query parameters of the PATCH request.
type UpdateStockParams struct {
	ProductID   string `json:"productId"   validate:"required,max=255,trimmed,nocontrol"`
	StockRemain string `json:"stockRemain" validate:"required,int64"`
}

// PatchInventoryHandler handles PATCH /inventory/{productId}.
type PatchInventoryHandler struct {
	svc StockUpdater
}

// NewPatchInventoryHandler returns a handler backed by svc.
func NewPatchInventoryHandler(svc StockUpdater) *PatchInventoryHandler {
	return &PatchInventoryHandler{svc: svc}
}

// Execute overwrites the stock of a product.
//
//	@Summary		Update stock
//	@Description	Overwrites the remaining stock of an existing product and notifies consumers with an InventoryUpdated event.
//	@Description	When the write commits but the notification could not be delivered, the response is still 200 with eventPublished=false and a Warning header; delivery is retried in the background.
//	@Tags			inventory
//	@Produce		json
//	@Param			productId	path		string	true	"Product identifier"
//	@Param			stockRemain	query		integer	true	"New absolute stock value"
//	@Success		200			{object}	UpdateStockResponse
//	@Failure		404			{object}	ErrorResponse
//	@Failure		422			{object}	ValidationErrorResponse
//	@Failure		503			{object}	ErrorResponse
//	@Router			/inventory/{productId} [patch]
func (h *PatchInventoryHandler) Execute(w http.ResponseWriter, r *http.Request) {
	params := UpdateStockParams{
		ProductID:   chi.URLParam(r, "productId"),
		StockRemain: r.URL.Query().Get("stockRemain"),
	}
	if !pkgvalidator.ValidateParams(w, &params) {
		return
	}
	stock, _ := strconv.ParseInt(params.StockRemain, 10, 64)

	res, err := h.svc.Update(r.Context(), params.ProductID, stock)
	if err != nil {
		errhttp.WriteError(w, err)
		return
	}

	if res.Degraded() {
		httpx.Warn(w, notificationPending)
	}
	httpx.JSON(w, http.StatusOK, UpdateStockResponse{
		ProductID:      res.Record.ProductID.String(),
		StockRemain:    res.Record.StockRemain,
		Revision:       res.Record.Revision,
		EventPublished: !res.Degraded(),
	})
}
