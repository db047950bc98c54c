package payments

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tillbook/tillbook/internal/ledger"
	"github.com/tillbook/tillbook/internal/platform/httpx"
	"github.com/tillbook/tillbook/internal/shared"
)

// Handler manages payment endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers payment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/customer", h.recordCustomer)
	r.Post("/supplier", h.recordSupplier)
	r.Post("/{id}/reverse", h.reverse)
}

// list serves either a party's payment history (?kind=&party_id=) or a single
// day's payments (?date=YYYY-MM-DD).
func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	ownerID, err := shared.OwnerFromRequest(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	if raw := r.URL.Query().Get("date"); raw != "" {
		day, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.RespondError(w, shared.Validationf("invalid date %q, expected YYYY-MM-DD", raw))
			return
		}
		out, err := h.service.ListByDate(r.Context(), ownerID, day)
		if err != nil {
			h.logger.Error("list payments by date", slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, out)
		return
	}

	partyID, err := strconv.ParseInt(r.URL.Query().Get("party_id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, shared.Validationf("party_id or date query is required"))
		return
	}
	out, err := h.service.ListByParty(r.Context(), ownerID, ledger.PartyKind(r.URL.Query().Get("kind")), partyID)
	if err != nil {
		h.logger.Error("list payments by party", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) recordCustomer(w http.ResponseWriter, r *http.Request) {
	h.record(w, r, ledger.PartyCustomer)
}

func (h *Handler) recordSupplier(w http.ResponseWriter, r *http.Request) {
	h.record(w, r, ledger.PartySupplier)
}

func (h *Handler) record(w http.ResponseWriter, r *http.Request, kind ledger.PartyKind) {
	ownerID, err := shared.OwnerFromRequest(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in RecordInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}

	var p *Payment
	if kind == ledger.PartySupplier {
		p, err = h.service.RecordSupplierPayment(r.Context(), ownerID, in)
	} else {
		p, err = h.service.RecordCustomerPayment(r.Context(), ownerID, in)
	}
	if err != nil {
		h.logger.Error("record payment", slog.Any("error", err), slog.String("kind", string(kind)))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) reverse(w http.ResponseWriter, r *http.Request) {
	ownerID, err := shared.OwnerFromRequest(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, shared.Validationf("invalid payment id"))
		return
	}
	p, err := h.service.Reverse(r.Context(), ownerID, id)
	if err != nil {
		h.logger.Error("reverse payment", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}
