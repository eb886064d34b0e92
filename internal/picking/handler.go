package picking

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/waltergkaturuza/RetailCloud-sub000/internal/allocation"
	"github.com/waltergkaturuza/RetailCloud-sub000/internal/ledger"
	"github.com/waltergkaturuza/RetailCloud-sub000/internal/platform/httpx"
)

// Handler wires HTTP endpoints for pick lists.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs picking handler.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validate: validate}
}

// MountRoutes registers picking routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/pick-lists", h.handleCreate)
	r.Get("/pick-lists/{listID}", h.handleGet)
	r.Post("/pick-lists/items/{itemID}/start", h.handleStart)
	r.Post("/pick-lists/items/{itemID}/complete", h.handleComplete)
}

type createLineRequest struct {
	ProductID   int64  `json:"product_id" validate:"required"`
	VariantID   int64  `json:"variant_id"`
	BatchNumber string `json:"batch_number"`
	Quantity    string `json:"quantity" validate:"required"`
}

type createRequest struct {
	WarehouseID   int64               `json:"warehouse_id" validate:"required"`
	BranchID      int64               `json:"branch_id" validate:"required"`
	ReferenceType string              `json:"reference_type"`
	ReferenceID   string              `json:"reference_id"`
	Strategy      string              `json:"strategy" validate:"omitempty,oneof=fifo fefo lifo"`
	MovementType  string              `json:"movement_type" validate:"omitempty,oneof=sale transfer_out out"`
	ActorID       int64               `json:"actor_id"`
	Lines         []createLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type itemResponse struct {
	ID               int64  `json:"id"`
	ProductID        int64  `json:"product_id"`
	VariantID        int64  `json:"variant_id,omitempty"`
	StockLocationID  int64  `json:"stock_location_id"`
	BatchNumber      string `json:"batch_number,omitempty"`
	QuantityRequired string `json:"quantity_required"`
	QuantityPicked   string `json:"quantity_picked"`
	Status           string `json:"status"`
}

type listResponse struct {
	ID            int64          `json:"id"`
	WarehouseID   int64          `json:"warehouse_id"`
	BranchID      int64          `json:"branch_id"`
	ReferenceType string         `json:"reference_type,omitempty"`
	ReferenceID   string         `json:"reference_id,omitempty"`
	Strategy      string         `json:"strategy"`
	MovementType  string         `json:"movement_type"`
	Status        string         `json:"status"`
	Items         []itemResponse `json:"items"`
}

func toListResponse(list PickList, items []PickListItem) listResponse {
	resp := listResponse{
		ID:            list.ID,
		WarehouseID:   list.WarehouseID,
		BranchID:      list.BranchID,
		ReferenceType: list.ReferenceType,
		ReferenceID:   list.ReferenceID,
		Strategy:      string(list.Strategy),
		MovementType:  string(list.MovementType),
		Status:        string(list.Status),
		Items:         make([]itemResponse, 0, len(items)),
	}
	for _, item := range items {
		resp.Items = append(resp.Items, itemResponse{
			ID:               item.ID,
			ProductID:        item.ProductID,
			VariantID:        item.VariantID,
			StockLocationID:  item.StockLocationID,
			BatchNumber:      item.BatchNumber,
			QuantityRequired: item.QuantityRequired.String(),
			QuantityPicked:   item.QuantityPicked.String(),
			Status:           string(item.Status),
		})
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
		Strategy:      allocation.PickStrategy(req.Strategy),
		MovementType:  ledger.MovementType(req.MovementType),
		ActorID:       req.ActorID,
	}
	for _, line := range req.Lines {
		qty, err := decimal.NewFromString(line.Quantity)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation failed", "quantity must be numeric")
			return
		}
		input.Lines = append(input.Lines, LineInput{
			ProductID:   line.ProductID,
			VariantID:   line.VariantID,
			BatchNumber: line.BatchNumber,
			Quantity:    qty,
		})
	}
	list, items, err := h.service.CreatePickList(r.Context(), input)
	if err != nil {
		h.logger.Warn("create pick list failed", slog.String("error", err.Error()))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toListResponse(list, items))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	listID, err := strconv.ParseInt(chi.URLParam(r, "listID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", "list id must be numeric")
		return
	}
	list, items, err := h.service.GetPickList(r.Context(), listID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toListResponse(list, items))
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
	httpx.JSON(w, http.StatusOK, itemResponse{
		ID:               item.ID,
		ProductID:        item.ProductID,
		VariantID:        item.VariantID,
		StockLocationID:  item.StockLocationID,
		BatchNumber:      item.BatchNumber,
		QuantityRequired: item.QuantityRequired.String(),
		QuantityPicked:   item.QuantityPicked.String(),
		Status:           string(item.Status),
	})
}

type completeRequest struct {
	QuantityPicked string `json:"quantity_picked" validate:"required"`
	ActorID        int64  `json:"actor_id"`
	Note           string `json:"note"`
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
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}
	qty, err := decimal.NewFromString(req.QuantityPicked)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation failed", "quantity_picked must be numeric")
		return
	}
	item, movement, err := h.service.CompleteItem(r.Context(), CompleteInput{
		ItemID:         itemID,
		QuantityPicked: qty,
		ActorID:        req.ActorID,
		Note:           req.Note,
	})
	if err != nil {
		h.logger.Warn("complete pick item failed", slog.Int64("item_id", itemID), slog.String("error", err.Error()))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"item": itemResponse{
			ID:               item.ID,
			ProductID:        item.ProductID,
			VariantID:        item.VariantID,
			StockLocationID:  item.StockLocationID,
			BatchNumber:      item.BatchNumber,
			QuantityRequired: item.QuantityRequired.String(),
			QuantityPicked:   item.QuantityPicked.String(),
			Status:           string(item.Status),
		},
		"movement_id": movement.ID,
	})
}
