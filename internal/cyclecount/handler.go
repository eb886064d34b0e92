package cyclecount

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/waltergkaturuza/RetailCloud-sub000/internal/platform/httpx"
	"github.com/waltergkaturuza/RetailCloud-sub000/internal/valuation"
)

// Handler wires HTTP endpoints for cycle counts.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs cyclecount handler.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validate: validate}
}

// MountRoutes registers cycle count routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/cycle-counts", h.handleCreate)
	r.Get("/cycle-counts/{countID}", h.handleGet)
	r.Post("/cycle-counts/items/{itemID}/record", h.handleRecord)
	r.Post("/cycle-counts/items/{itemID}/adjust", h.handleAdjust)
}

type createRequest struct {
	WarehouseID int64   `json:"warehouse_id" validate:"required"`
	BranchID    int64   `json:"branch_id" validate:"required"`
	Zone        string  `json:"zone"`
	ProductIDs  []int64 `json:"product_ids"`
	CountDate   string  `json:"count_date"`
	ActorID     int64   `json:"actor_id"`
}

type itemResponse struct {
	ID              int64  `json:"id"`
	StockLocationID int64  `json:"stock_location_id"`
	ProductID       int64  `json:"product_id"`
	VariantID       int64  `json:"variant_id,omitempty"`
	BatchNumber     string `json:"batch_number,omitempty"`
	SystemQuantity  string `json:"system_quantity"`
	CountedQuantity string `json:"counted_quantity"`
	Variance        string `json:"variance"`
	Status          string `json:"status"`
}

type countResponse struct {
	ID          int64          `json:"id"`
	WarehouseID int64          `json:"warehouse_id"`
	BranchID    int64          `json:"branch_id"`
	Zone        string         `json:"zone,omitempty"`
	Status      string         `json:"status"`
	CountDate   string         `json:"count_date"`
	Items       []itemResponse `json:"items"`
}

func toItemResponse(item CountItem) itemResponse {
	return itemResponse{
		ID:              item.ID,
		StockLocationID: item.StockLocationID,
		ProductID:       item.ProductID,
		VariantID:       item.VariantID,
		BatchNumber:     item.BatchNumber,
		SystemQuantity:  item.SystemQuantity.String(),
		CountedQuantity: item.CountedQuantity.String(),
		Variance:        item.Variance.String(),
		Status:          string(item.Status),
	}
}

func toCountResponse(count CycleCount, items []CountItem) countResponse {
	resp := countResponse{
		ID:          count.ID,
		WarehouseID: count.WarehouseID,
		BranchID:    count.BranchID,
		Zone:        count.Zone,
		Status:      string(count.Status),
		CountDate:   count.CountDate.Format("2006-01-02"),
		Items:       make([]itemResponse, 0, len(items)),
	}
	for _, item := range items {
		resp.Items = append(resp.Items, toItemResponse(item))
	}
	return resp
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", "request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}
	input := CreateInput{
		WarehouseID: req.WarehouseID,
		BranchID:    req.BranchID,
		Zone:        req.Zone,
		ProductIDs:  req.ProductIDs,
		ActorID:     req.ActorID,
	}
	if req.CountDate != "" {
		date, err := time.Parse("2006-01-02", req.CountDate)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation failed", "count_date must be YYYY-MM-DD")
			return
		}
		input.CountDate = date
	}
	count, items, err := h.service.CreateCount(r.Context(), input)
	if err != nil {
		h.logger.Warn("create cycle count failed", slog.String("error", err.Error()))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toCountResponse(count, items))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	countID, err := strconv.ParseInt(chi.URLParam(r, "countID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", "count id must be numeric")
		return
	}
	count, items, err := h.service.GetCount(r.Context(), countID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toCountResponse(count, items))
}

type recordRequest struct {
	CountedQuantity string `json:"counted_quantity" validate:"required"`
	ActorID         int64  `json:"actor_id"`
}

func (h *Handler) handleRecord(w http.ResponseWriter, r *http.Request) {
	itemID, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", "item id must be numeric")
		return
	}
	var req recordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", "request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}
	qty, err := decimal.NewFromString(req.CountedQuantity)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation failed", "counted_quantity must be numeric")
		return
	}
	item, err := h.service.RecordCount(r.Context(), RecordInput{ItemID: itemID, CountedQuantity: qty, ActorID: req.ActorID})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toItemResponse(item))
}

type adjustRequest struct {
	Method  string `json:"valuation_method" validate:"omitempty,oneof=fifo lifo weighted_average"`
	ActorID int64  `json:"actor_id"`
	Note    string `json:"note"`
}

func (h *Handler) handleAdjust(w http.ResponseWriter, r *http.Request) {
	itemID, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", "item id must be numeric")
		return
	}
	var req adjustRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", "request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}
	item, movement, err := h.service.AdjustVariance(r.Context(), AdjustInput{
		ItemID:  itemID,
		Method:  valuation.Method(req.Method),
		ActorID: req.ActorID,
		Note:    req.Note,
	})
	if err != nil {
		h.logger.Warn("adjust cycle count item failed", slog.Int64("item_id", itemID), slog.String("error", err.Error()))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"item":        toItemResponse(item),
		"movement_id": movement.ID,
	})
}
