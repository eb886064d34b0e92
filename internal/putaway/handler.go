package putaway

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/waltergkaturuza/RetailCloud-sub000/internal/allocation"
	"github.com/waltergkaturuza/RetailCloud-sub000/internal/platform/httpx"
	"github.com/waltergkaturuza/RetailCloud-sub000/internal/valuation"
)

// Handler wires HTTP endpoints for put-aways.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs putaway handler.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validate: validate}
}

// MountRoutes registers put-away routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/put-aways", h.handleCreate)
	r.Get("/put-aways/{putAwayID}", h.handleGet)
	r.Post("/put-aways/items/{itemID}/start", h.handleStart)
	r.Post("/put-aways/items/{itemID}/complete", h.handleComplete)
}

type createLineRequest struct {
	ProductID   int64  `json:"product_id" validate:"required"`
	VariantID   int64  `json:"variant_id"`
	BatchNumber string `json:"batch_number"`
	ExpiryDate  string `json:"expiry_date"`
	Quantity    string `json:"quantity" validate:"required"`
	UnitCost    string `json:"unit_cost" validate:"required"`
	Method      string `json:"valuation_method" validate:"omitempty,oneof=fifo lifo weighted_average"`
}

type createRequest struct {
	WarehouseID   int64               `json:"warehouse_id" validate:"required"`
	BranchID      int64               `json:"branch_id" validate:"required"`
	ReferenceType string              `json:"reference_type"`
	ReferenceID   string              `json:"reference_id"`
	Strategy      string              `json:"strategy" validate:"omitempty,oneof=fixed random zone closest fifo fefo"`
	ActorID       int64               `json:"actor_id"`
	Lines         []createLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type itemResponse struct {
	ID                  int64  `json:"id"`
	ProductID           int64  `json:"product_id"`
	VariantID           int64  `json:"variant_id,omitempty"`
	BatchNumber         string `json:"batch_number,omitempty"`
	Quantity            string `json:"quantity"`
	UnitCost            string `json:"unit_cost"`
	Method              string `json:"valuation_method"`
	SuggestedLocationID int64  `json:"suggested_location_id"`
	ActualLocationID    int64  `json:"actual_location_id,omitempty"`
	Status              string `json:"status"`
}

type putAwayResponse struct {
	ID            int64          `json:"id"`
	WarehouseID   int64          `json:"warehouse_id"`
	BranchID      int64          `json:"branch_id"`
	ReferenceType string         `json:"reference_type,omitempty"`
	ReferenceID   string         `json:"reference_id,omitempty"`
	Strategy      string         `json:"strategy"`
	Status        string         `json:"status"`
	Items         []itemResponse `json:"items"`
}

func toItemResponse(item PutAwayItem) itemResponse {
	return itemResponse{
		ID:                  item.ID,
		ProductID:           item.ProductID,
		VariantID:           item.VariantID,
		BatchNumber:         item.BatchNumber,
		Quantity:            item.Quantity.String(),
		UnitCost:            item.UnitCost.String(),
		Method:              string(item.Method),
		SuggestedLocationID: item.SuggestedLocationID,
		ActualLocationID:    item.ActualLocationID,
		Status:              string(item.Status),
	}
}

func toPutAwayResponse(pa PutAway, items []PutAwayItem) putAwayResponse {
	resp := putAwayResponse{
		ID:            pa.ID,
		WarehouseID:   pa.WarehouseID,
		BranchID:      pa.BranchID,
		ReferenceType: pa.ReferenceType,
		ReferenceID:   pa.ReferenceID,
		Strategy:      string(pa.Strategy),
		Status:        string(pa.Status),
		Items:         make([]itemResponse, 0, len(items)),
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
		WarehouseID:   req.WarehouseID,
		BranchID:      req.BranchID,
		ReferenceType: req.ReferenceType,
		ReferenceID:   req.ReferenceID,
		Strategy:      allocation.PutAwayStrategy(req.Strategy),
		ActorID:       req.ActorID,
	}
	for _, line := range req.Lines {
		qty, err := decimal.NewFromString(line.Quantity)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation failed", "quantity must be numeric")
			return
		}
		cost, err := decimal.NewFromString(line.UnitCost)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation failed", "unit_cost must be numeric")
			return
		}
		var expiry time.Time
		if line.ExpiryDate != "" {
			expiry, err = time.Parse("2006-01-02", line.ExpiryDate)
			if err != nil {
				httpx.Problem(w, http.StatusBadRequest, "Validation failed", "expiry_date must be YYYY-MM-DD")
				return
			}
		}
		input.Lines = append(input.Lines, LineInput{
			ProductID:   line.ProductID,
			VariantID:   line.VariantID,
			BatchNumber: line.BatchNumber,
			ExpiryDate:  expiry,
			Quantity:    qty,
			UnitCost:    cost,
			Method:      valuation.Method(line.Method),
		})
	}
	pa, items, err := h.service.CreatePutAway(r.Context(), input)
	if err != nil {
		h.logger.Warn("create put-away failed", slog.String("error", err.Error()))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toPutAwayResponse(pa, items))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "putAwayID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", "put-away id must be numeric")
		return
	}
	pa, items, err := h.service.GetPutAway(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPutAwayResponse(pa, items))
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	itemID, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", "item id must be numeric")
		return
	}
	item, err := h.service.StartItem(r.Context(), itemID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toItemResponse(item))
}

type completeRequest struct {
	ActualLocationID int64  `json:"actual_location_id"`
	ActorID          int64  `json:"actor_id"`
	Note             string `json:"note"`
}

func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request) {
	itemID, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", "item id must be numeric")
		return
	}
	var req completeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", "request body must be valid JSON")
		return
	}
	item, movement, err := h.service.CompleteItem(r.Context(), CompleteInput{
		ItemID:           itemID,
		ActualLocationID: req.ActualLocationID,
		ActorID:          req.ActorID,
		Note:             req.Note,
	})
	if err != nil {
		h.logger.Warn("complete put-away item failed", slog.Int64("item_id", itemID), slog.String("error", err.Error()))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"item":        toItemResponse(item),
		"movement_id": movement.ID,
	})
}
