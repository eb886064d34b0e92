package forecast

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/waltergkaturuza/RetailCloud-sub000/internal/platform/httpx"
)

// Handler wires read-only forecast endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs forecast handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers forecast routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/forecast", h.handleForecast)
	r.Get("/forecast/reorder-point", h.handleReorderPoint)
	r.Get("/forecast/eoq", h.handleEOQ)
}

func queryInt64(r *http.Request, key string) int64 {
	v, _ := strconv.ParseInt(r.URL.Query().Get(key), 10, 64)
	return v
}

func queryFloat(r *http.Request, key string) float64 {
	v, _ := strconv.ParseFloat(r.URL.Query().Get(key), 64)
	return v
}

func (h *Handler) handleForecast(w http.ResponseWriter, r *http.Request) {
	productID := queryInt64(r, "product_id")
	branchID := queryInt64(r, "branch_id")
	if productID == 0 || branchID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", "product_id and branch_id are required")
		return
	}
	daysAhead := int(queryInt64(r, "days_ahead"))
	result, err := h.service.GetForecast(r.Context(), productID, queryInt64(r, "variant_id"), branchID, daysAhead)
	if err != nil {
		h.logger.Warn("forecast failed", slog.Int64("product_id", productID), slog.String("error", err.Error()))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"daily_forecast":   result.DailyForecast,
		"period_forecast":  result.PeriodForecast,
		"horizon_days":     result.HorizonDays,
		"seasonal_index":   result.SeasonalIndex,
		"trend":            string(result.Trend),
		"trend_slope":      result.TrendSlope,
		"avg_daily_demand": result.AvgDailyDemand,
		"safety_stock":     result.SafetyStock,
		"reorder_point":    result.ReorderPoint,
	})
}

func (h *Handler) handleReorderPoint(w http.ResponseWriter, r *http.Request) {
	productID := queryInt64(r, "product_id")
	branchID := queryInt64(r, "branch_id")
	if productID == 0 || branchID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", "product_id and branch_id are required")
		return
	}
	point, err := h.service.GetReorderPoint(r.Context(), productID, queryInt64(r, "variant_id"), branchID, queryFloat(r, "lead_time_days"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"reorder_point": point})
}

func (h *Handler) handleEOQ(w http.ResponseWriter, r *http.Request) {
	productID := queryInt64(r, "product_id")
	branchID := queryInt64(r, "branch_id")
	if productID == 0 || branchID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", "product_id and branch_id are required")
		return
	}
	qty, err := h.service.GetEOQ(r.Context(), productID, queryInt64(r, "variant_id"), branchID, EOQInput{
		OrderingCost:       queryFloat(r, "ordering_cost"),
		HoldingCostPerUnit: queryFloat(r, "holding_cost"),
		DefaultOrderQty:    queryFloat(r, "default_order_qty"),
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"economic_order_quantity": qty})
}
