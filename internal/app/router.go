package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/tillbook/tillbook/internal/accounting"
	"github.com/tillbook/tillbook/internal/inventory"
	"github.com/tillbook/tillbook/internal/ledger"
	"github.com/tillbook/tillbook/internal/masterdata/customers"
	"github.com/tillbook/tillbook/internal/masterdata/suppliers"
	"github.com/tillbook/tillbook/internal/payments"
	"github.com/tillbook/tillbook/internal/procurement"
	"github.com/tillbook/tillbook/internal/sales"
	"github.com/tillbook/tillbook/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	CustomersHandler   *customers.Handler
	SuppliersHandler   *suppliers.Handler
	LedgerHandler      *ledger.Handler
	InventoryHandler   *inventory.Handler
	SalesHandler       *sales.Handler
	PaymentsHandler    *payments.Handler
	ProcurementHandler *procurement.Handler
	AccountingHandler  *accounting.Handler
	JobsHandler        *jobs.Handler
}

// NewRouter constructs the chi.Router with Tillbook defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/customers", func(r chi.Router) {
		params.CustomersHandler.MountRoutes(r)
		r.Route("/{partyID}/ledger", func(r chi.Router) {
			params.LedgerHandler.MountRoutes(r, ledger.PartyCustomer)
		})
	})
	r.Route("/suppliers", func(r chi.Router) {
		params.SuppliersHandler.MountRoutes(r)
		r.Route("/{partyID}/ledger", func(r chi.Router) {
			params.LedgerHandler.MountRoutes(r, ledger.PartySupplier)
		})
	})
	r.Route("/products", func(r chi.Router) {
		params.InventoryHandler.MountRoutes(r)
	})
	r.Route("/invoices", func(r chi.Router) {
		params.SalesHandler.MountRoutes(r)
	})
	r.Route("/payments", func(r chi.Router) {
		params.PaymentsHandler.MountRoutes(r)
	})
	r.Route("/purchases", func(r chi.Router) {
		params.ProcurementHandler.MountRoutes(r)
	})
	r.Route("/accounting", func(r chi.Router) {
		params.AccountingHandler.MountRoutes(r)
	})
	if params.JobsHandler != nil {
		r.Route("/jobs", func(r chi.Router) {
			params.JobsHandler.MountRoutes(r)
		})
	}

	return r
}
