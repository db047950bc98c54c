package procurement

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tillbook/tillbook/internal/platform/httpx"
	"github.com/tillbook/tillbook/internal/shared"
)

// Handler manages purchase endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers purchase routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.record)
	r.Get("/{id}", h.get)
	r.Post("/{id}/return", h.recordReturn)
}

func ownerAndID(r *http.Request) (int64, int64, error) {
	ownerID, err := shared.OwnerFromRequest(r)
	if err != nil {
		return 0, 0, err
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, 0, shared.Validationf("invalid purchase id")
	}
	return ownerID, id, nil
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	ownerID, err := shared.OwnerFromRequest(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	supplierID, err := strconv.ParseInt(r.URL.Query().Get("supplier_id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, shared.Validationf("supplier_id query parameter is required"))
		return
	}
	purchases, err := h.service.ListBySupplier(r.Context(), ownerID, supplierID, shared.PageFromRequest(r))
	if err != nil {
		h.logger.Error("list purchases", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, purchases)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	ownerID, id, err := ownerAndID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.service.Get(r.Context(), ownerID, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) record(w http.ResponseWriter, r *http.Request) {
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
	p, err := h.service.RecordPurchase(r.Context(), ownerID, in)
	if err != nil {
		h.logger.Error("record purchase", slog.Any("error", err), slog.Int64("supplier_id", in.SupplierID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) recordReturn(w http.ResponseWriter, r *http.Request) {
	ownerID, id, err := ownerAndID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in ReturnInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.service.RecordReturn(r.Context(), ownerID, id, in)
	if err != nil {
		h.logger.Error("record purchase return", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}
