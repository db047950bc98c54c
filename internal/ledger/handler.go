package ledger

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tillbook/tillbook/internal/platform/httpx"
	"github.com/tillbook/tillbook/internal/shared"
)

// Handler manages signed-ledger endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers ledger routes. kind is fixed per mount so the same
// handler serves /customers/{partyID}/ledger and /suppliers/{partyID}/ledger.
func (h *Handler) MountRoutes(r chi.Router, kind PartyKind) {
	r.Get("/", h.statement(kind))
	r.Post("/", h.append(kind))
	r.Post("/recalculate", h.recalculate(kind))
	r.Put("/{entryID}", h.edit(kind))
	r.Delete("/{entryID}", h.delete(kind))
}

type entryPayload struct {
	Date        string  `json:"date"`
	RefType     string  `json:"refType" validate:"required"`
	RefNo       string  `json:"refNo"`
	Description string  `json:"description"`
	Debit       float64 `json:"debit" validate:"gte=0"`
	Credit      float64 `json:"credit" validate:"gte=0"`
}

type entryResponse struct {
	ID          int64   `json:"id"`
	PartyID     int64   `json:"partyId"`
	Date        string  `json:"date"`
	RefType     string  `json:"refType"`
	RefID       *int64  `json:"refId,omitempty"`
	RefNo       string  `json:"refNo,omitempty"`
	Description string  `json:"description,omitempty"`
	Debit       float64 `json:"debit"`
	Credit      float64 `json:"credit"`
	Balance     float64 `json:"balance"`
}

func toEntryResponse(e Entry) entryResponse {
	return entryResponse{
		ID:          e.ID,
		PartyID:     e.PartyID,
		Date:        e.Date.Format("2006-01-02"),
		RefType:     string(e.RefType),
		RefID:       e.RefID,
		RefNo:       e.RefNo,
		Description: e.Description,
		Debit:       e.Debit,
		Credit:      e.Credit,
		Balance:     e.Balance,
	}
}

func parsePayloadDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	d, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, shared.Validationf("invalid date %q, expected YYYY-MM-DD", raw)
	}
	return d, nil
}

func (h *Handler) statement(kind PartyKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, err := shared.OwnerFromRequest(r)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		partyID, err := strconv.ParseInt(chi.URLParam(r, "partyID"), 10, 64)
		if err != nil {
			httpx.RespondError(w, shared.Validationf("invalid party id"))
			return
		}

		entries, err := h.service.Statement(r.Context(), ownerID, kind, partyID)
		if err != nil {
			h.logger.Error("list ledger entries", slog.Any("error", err), slog.Int64("party_id", partyID))
			httpx.RespondError(w, err)
			return
		}
		balance, err := h.service.Balance(r.Context(), ownerID, kind, partyID)
		if err != nil {
			h.logger.Error("get party balance", slog.Any("error", err), slog.Int64("party_id", partyID))
			httpx.RespondError(w, err)
			return
		}

		out := make([]entryResponse, 0, len(entries))
		for _, e := range entries {
			out = append(out, toEntryResponse(e))
		}
		httpx.JSON(w, http.StatusOK, map[string]any{
			"entries": out,
			"balance": balance,
		})
	}
}

func (h *Handler) append(kind PartyKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, err := shared.OwnerFromRequest(r)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		partyID, err := strconv.ParseInt(chi.URLParam(r, "partyID"), 10, 64)
		if err != nil {
			httpx.RespondError(w, shared.Validationf("invalid party id"))
			return
		}

		var in entryPayload
		if err := httpx.DecodeJSON(r, &in); err != nil {
			httpx.RespondError(w, err)
			return
		}
		if err := shared.ValidateStruct(in); err != nil {
			httpx.RespondError(w, err)
			return
		}
		date, err := parsePayloadDate(in.Date)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}

		entry, err := h.service.Append(r.Context(), ownerID, AppendInput{
			Kind:        kind,
			PartyID:     partyID,
			Date:        date,
			RefType:     RefType(in.RefType),
			RefNo:       in.RefNo,
			Description: in.Description,
			Debit:       in.Debit,
			Credit:      in.Credit,
		})
		if err != nil {
			h.logger.Error("append ledger entry", slog.Any("error", err), slog.Int64("party_id", partyID))
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusCreated, toEntryResponse(*entry))
	}
}

func (h *Handler) edit(kind PartyKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, err := shared.OwnerFromRequest(r)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		entryID, err := strconv.ParseInt(chi.URLParam(r, "entryID"), 10, 64)
		if err != nil {
			httpx.RespondError(w, shared.Validationf("invalid entry id"))
			return
		}

		var in entryPayload
		if err := httpx.DecodeJSON(r, &in); err != nil {
			httpx.RespondError(w, err)
			return
		}
		if err := shared.ValidateStruct(in); err != nil {
			httpx.RespondError(w, err)
			return
		}
		date, err := parsePayloadDate(in.Date)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}

		entry, err := h.service.Edit(r.Context(), ownerID, kind, entryID, EditInput{
			Date:        date,
			RefType:     RefType(in.RefType),
			RefNo:       in.RefNo,
			Description: in.Description,
			Debit:       in.Debit,
			Credit:      in.Credit,
		})
		if err != nil {
			h.logger.Error("edit ledger entry", slog.Any("error", err), slog.Int64("entry_id", entryID))
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, toEntryResponse(*entry))
	}
}

func (h *Handler) delete(kind PartyKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, err := shared.OwnerFromRequest(r)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		entryID, err := strconv.ParseInt(chi.URLParam(r, "entryID"), 10, 64)
		if err != nil {
			httpx.RespondError(w, shared.Validationf("invalid entry id"))
			return
		}

		if err := h.service.Delete(r.Context(), ownerID, kind, entryID); err != nil {
			h.logger.Error("delete ledger entry", slog.Any("error", err), slog.Int64("entry_id", entryID))
			httpx.RespondError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handler) recalculate(kind PartyKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, err := shared.OwnerFromRequest(r)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		partyID, err := strconv.ParseInt(chi.URLParam(r, "partyID"), 10, 64)
		if err != nil {
			httpx.RespondError(w, shared.Validationf("invalid party id"))
			return
		}

		balance, err := h.service.RecalculateParty(r.Context(), ownerID, kind, partyID)
		if err != nil {
			h.logger.Error("recalculate party", slog.Any("error", err), slog.Int64("party_id", partyID))
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"balance": balance})
	}
}
