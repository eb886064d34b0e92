package export

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/waltergkaturuza/RetailCloud-sub000/internal/analysis"
	"github.com/waltergkaturuza/RetailCloud-sub000/internal/platform/httpx"
)

// Handler serves analysis snapshots as CSV downloads.
type Handler struct {
	service *analysis.Service
}

// NewHandler constructs the export handler.
func NewHandler(service *analysis.Service) *Handler {
	return &Handler{service: service}
}

// MountRoutes registers the CSV export routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/analysis/abc/export", h.handleABC)
	r.Get("/analysis/dead-stock/export", h.handleDeadStock)
	r.Get("/analysis/aging/export", h.handleAging)
}

func parseScope(r *http.Request) (int64, time.Time, bool) {
	branchID, err := strconv.ParseInt(r.URL.Query().Get("branch_id"), 10, 64)
	if err != nil || branchID <= 0 {
		return 0, time.Time{}, false
	}
	var date time.Time
	if raw := r.URL.Query().Get("date"); raw != "" {
		date, err = time.Parse(time.DateOnly, raw)
		if err != nil {
			return 0, time.Time{}, false
		}
	}
	return branchID, date, true
}

func csvHeaders(w http.ResponseWriter, name string) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
}

func (h *Handler) handleABC(w http.ResponseWriter, r *http.Request) {
	branchID, date, ok := parseScope(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", "branch_id is required and date must be YYYY-MM-DD")
		return
	}
	records, err := h.service.GetABCReport(r.Context(), branchID, date)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	csvHeaders(w, "abc_analysis.csv")
	_ = WriteABCCSV(w, records)
}

func (h *Handler) handleDeadStock(w http.ResponseWriter, r *http.Request) {
	branchID, date, ok := parseScope(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", "branch_id is required and date must be YYYY-MM-DD")
		return
	}
	records, err := h.service.GetDeadStockReport(r.Context(), branchID, date)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	csvHeaders(w, "dead_stock.csv")
	_ = WriteDeadStockCSV(w, records)
}

func (h *Handler) handleAging(w http.ResponseWriter, r *http.Request) {
	branchID, date, ok := parseScope(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", "branch_id is required and date must be YYYY-MM-DD")
		return
	}
	records, err := h.service.GetAgingReport(r.Context(), branchID, date)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	csvHeaders(w, "stock_aging.csv")
	_ = WriteAgingCSV(w, records)
}
