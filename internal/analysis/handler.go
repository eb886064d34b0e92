package analysis

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/waltergkaturuza/RetailCloud-sub000/internal/platform/httpx"
)

// Handler wires HTTP endpoints for analysis runs and reports.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs analysis handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the cached report reads.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/analysis/abc", h.handleABCReport)
	r.Get("/analysis/dead-stock", h.handleDeadStockReport)
	r.Get("/analysis/aging", h.handleAgingReport)
}

// MountRunRoutes registers the batch run triggers. These kick off full-catalog
// scans, so the router mounts them behind a stricter rate limit.
func (h *Handler) MountRunRoutes(r chi.Router) {
	r.Post("/analysis/abc/run", h.handleRunABC)
	r.Post("/analysis/dead-stock/run", h.handleRunDeadStock)
	r.Post("/analysis/aging/run", h.handleRunAging)
	r.Post("/analysis/run", h.handleRunAll)
}

func parseScope(r *http.Request) (branchID int64, date time.Time, ok bool) {
	branchID, err := strconv.ParseInt(r.URL.Query().Get("branch_id"), 10, 64)
	if err != nil || branchID <= 0 {
		return 0, time.Time{}, false
	}
	if raw := r.URL.Query().Get("date"); raw != "" {
		date, err = time.Parse(time.DateOnly, raw)
		if err != nil {
			return 0, time.Time{}, false
		}
	}
	return branchID, date, true
}

func (h *Handler) handleABCReport(w http.ResponseWriter, r *http.Request) {
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
	httpx.JSON(w, http.StatusOK, records)
}

func (h *Handler) handleDeadStockReport(w http.ResponseWriter, r *http.Request) {
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
	httpx.JSON(w, http.StatusOK, records)
}

func (h *Handler) handleAgingReport(w http.ResponseWriter, r *http.Request) {
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
	httpx.JSON(w, http.StatusOK, records)
}

func (h *Handler) handleRunABC(w http.ResponseWriter, r *http.Request) {
	branchID, date, ok := parseScope(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", "branch_id is required and date must be YYYY-MM-DD")
		return
	}
	result, err := h.service.RunABCAnalysis(r.Context(), branchID, date)
	if err != nil {
		h.logger.Error("abc run failed", slog.String("error", err.Error()))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleRunDeadStock(w http.ResponseWriter, r *http.Request) {
	branchID, date, ok := parseScope(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", "branch_id is required and date must be YYYY-MM-DD")
		return
	}
	threshold := 0
	if raw := r.URL.Query().Get("threshold_days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			httpx.Problem(w, http.StatusBadRequest, "Invalid request", "threshold_days must be a non-negative integer")
			return
		}
		threshold = parsed
	}
	result, err := h.service.RunDeadStockAnalysis(r.Context(), branchID, date, threshold)
	if err != nil {
		h.logger.Error("dead stock run failed", slog.String("error", err.Error()))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleRunAging(w http.ResponseWriter, r *http.Request) {
	branchID, date, ok := parseScope(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", "branch_id is required and date must be YYYY-MM-DD")
		return
	}
	result, err := h.service.RunAgingAnalysis(r.Context(), branchID, date)
	if err != nil {
		h.logger.Error("aging run failed", slog.String("error", err.Error()))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleRunAll(w http.ResponseWriter, r *http.Request) {
	branchID, date, ok := parseScope(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", "branch_id is required and date must be YYYY-MM-DD")
		return
	}
	abc, dead, aging, err := h.service.RunAll(r.Context(), branchID, date)
	if err != nil {
		h.logger.Error("analysis run failed", slog.String("error", err.Error()))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]RunResult{
		"abc":        abc,
		"dead_stock": dead,
		"aging":      aging,
	})
}
