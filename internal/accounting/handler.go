package accounting

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tillbook/tillbook/internal/platform/httpx"
	"github.com/tillbook/tillbook/internal/shared"
)

// Handler manages accounting endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers accounting routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/groups", func(r chi.Router) {
		r.Get("/", h.listGroups)
		r.Post("/", h.createGroup)
		r.Put("/{id}", h.updateGroup)
		r.Delete("/{id}", h.deleteGroup)
	})
	r.Route("/ledgers", func(r chi.Router) {
		r.Get("/", h.listLedgers)
		r.Post("/", h.createLedger)
		r.Put("/{id}", h.updateLedger)
		r.Delete("/{id}", h.deleteLedger)
	})
	r.Route("/vouchers", func(r chi.Router) {
		r.Get("/", h.listVouchers)
		r.Post("/", h.createVoucher)
		r.Get("/{id}", h.getVoucher)
		r.Post("/{id}/void", h.voidVoucher)
	})
	r.Get("/chart", h.chart)
	r.Route("/reports", func(r chi.Router) {
		r.Get("/trial-balance", h.trialBalance)
		r.Get("/profit-loss", h.profitAndLoss)
		r.Get("/balance-sheet", h.balanceSheet)
	})
}

func ownerAndID(r *http.Request, param string) (int64, int64, error) {
	ownerID, err := shared.OwnerFromRequest(r)
	if err != nil {
		return 0, 0, err
	}
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil {
		return 0, 0, shared.Validationf("invalid %s", param)
	}
	return ownerID, id, nil
}

func queryDate(r *http.Request, key string, fallback time.Time) (time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, shared.Validationf("invalid %s %q, expected YYYY-MM-DD", key, raw)
	}
	return d, nil
}

func (h *Handler) listGroups(w http.ResponseWriter, r *http.Request) {
	ownerID, err := shared.OwnerFromRequest(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	groups, err := h.service.ListGroups(r.Context(), ownerID)
	if err != nil {
		h.logger.Error("list groups", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, groups)
}

func (h *Handler) createGroup(w http.ResponseWriter, r *http.Request) {
	ownerID, err := shared.OwnerFromRequest(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in GroupInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	g, err := h.service.CreateGroup(r.Context(), ownerID, in)
	if err != nil {
		h.logger.Error("create group", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, g)
}

func (h *Handler) updateGroup(w http.ResponseWriter, r *http.Request) {
	ownerID, id, err := ownerAndID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in GroupInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	g, err := h.service.UpdateGroup(r.Context(), ownerID, id, in)
	if err != nil {
		h.logger.Error("update group", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, g)
}

func (h *Handler) deleteGroup(w http.ResponseWriter, r *http.Request) {
	ownerID, id, err := ownerAndID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteGroup(r.Context(), ownerID, id); err != nil {
		h.logger.Error("delete group", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listLedgers(w http.ResponseWriter, r *http.Request) {
	ownerID, err := shared.OwnerFromRequest(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	ledgers, err := h.service.ListLedgers(r.Context(), ownerID)
	if err != nil {
		h.logger.Error("list ledgers", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ledgers)
}

func (h *Handler) createLedger(w http.ResponseWriter, r *http.Request) {
	ownerID, err := shared.OwnerFromRequest(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in LedgerInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	l, err := h.service.CreateLedger(r.Context(), ownerID, in)
	if err != nil {
		h.logger.Error("create ledger", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, l)
}

func (h *Handler) updateLedger(w http.ResponseWriter, r *http.Request) {
	ownerID, id, err := ownerAndID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in LedgerInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	l, err := h.service.UpdateLedger(r.Context(), ownerID, id, in)
	if err != nil {
		h.logger.Error("update ledger", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, l)
}

func (h *Handler) deleteLedger(w http.ResponseWriter, r *http.Request) {
	ownerID, id, err := ownerAndID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteLedger(r.Context(), ownerID, id); err != nil {
		h.logger.Error("delete ledger", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) chart(w http.ResponseWriter, r *http.Request) {
	ownerID, err := shared.OwnerFromRequest(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	chart, err := h.service.Chart(r.Context(), ownerID)
	if err != nil {
		h.logger.Error("resolve chart", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, chart)
}

func (h *Handler) listVouchers(w http.ResponseWriter, r *http.Request) {
	ownerID, err := shared.OwnerFromRequest(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	page := shared.PageFromRequest(r)
	vouchers, err := h.service.ListVouchers(r.Context(), ownerID, page)
	if err != nil {
		h.logger.Error("list vouchers", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, vouchers)
}

func (h *Handler) createVoucher(w http.ResponseWriter, r *http.Request) {
	ownerID, err := shared.OwnerFromRequest(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in CreateVoucherInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	v, err := h.service.CreateVoucher(r.Context(), ownerID, in)
	if err != nil {
		h.logger.Error("create voucher", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, v)
}

func (h *Handler) getVoucher(w http.ResponseWriter, r *http.Request) {
	ownerID, id, err := ownerAndID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	v, err := h.service.GetVoucher(r.Context(), ownerID, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, v)
}

func (h *Handler) voidVoucher(w http.ResponseWriter, r *http.Request) {
	ownerID, id, err := ownerAndID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	v, err := h.service.VoidVoucher(r.Context(), ownerID, id)
	if err != nil {
		h.logger.Error("void voucher", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, v)
}

func (h *Handler) trialBalance(w http.ResponseWriter, r *http.Request) {
	ownerID, err := shared.OwnerFromRequest(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	asOf, err := queryDate(r, "as_of", time.Now())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	tb, err := h.service.TrialBalance(r.Context(), ownerID, asOf)
	if err != nil {
		h.logger.Error("trial balance", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tb)
}

func (h *Handler) profitAndLoss(w http.ResponseWriter, r *http.Request) {
	ownerID, err := shared.OwnerFromRequest(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	from, err := queryDate(r, "from", time.Time{})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	to, err := queryDate(r, "to", time.Now())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	pl, err := h.service.ProfitAndLoss(r.Context(), ownerID, from, to)
	if err != nil {
		h.logger.Error("profit and loss", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, pl)
}

func (h *Handler) balanceSheet(w http.ResponseWriter, r *http.Request) {
	ownerID, err := shared.OwnerFromRequest(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	asOf, err := queryDate(r, "as_of", time.Now())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	bs, err := h.service.BalanceSheet(r.Context(), ownerID, asOf)
	if err != nil {
		h.logger.Error("balance sheet", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, bs)
}
