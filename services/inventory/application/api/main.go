package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/ghuser/inventory/pkg/app"
	"github.com/ghuser/inventory/services/inventory/application/handlers"
	appsvcs "github.com/ghuser/inventory/services/inventory/application/services"
)

// InventoryRoutes registers inventory endpoints on the provided chi router.
func InventoryRoutes(r chi.Router, a *app.Application) {
	svcs := appsvcs.New(a)
	Mount(r, svcs.Inventory)
}

// Mount registers the inventory endpoints backed by svc.
func Mount(r chi.Router, svc *appsvcs.InventoryService) {
	r.Route("/inventory", func(r chi.Router) {
		r.Get("/{productId}", handlers.NewGetInventoryHandler(svc).Execute)
		r.Patch("/{productId}", handlers.NewPatchInventoryHandler(svc).Execute)
	})
}
