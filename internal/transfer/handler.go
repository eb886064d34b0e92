package transfer

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/waltergkaturuza/RetailCloud-sub000/internal/allocation"
	"github.com/waltergkaturuza/RetailCloud-sub000/internal/platform/httpx"
	"github.com/waltergkaturuza/RetailCloud-sub000/internal/valuation"
)

// Handler wires HTTP endpoints for warehouse transfers.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs transfer handler.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validate: validate}
}

// MountRoutes registers transfer routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/transfers", h.handleCreate)
	r.Get("/transfers/{transferID}", h.handleGet)
	r.Post("/transfers/{transferID}/ship", h.handleShip)
	r.Post("/transfers/{transferID}/receive", h.handleReceive)
}

type createLineRequest struct {
	ProductID   int64  `json:"product_id" validate:"required"`
	VariantID   int64  `json:"variant_id"`
	BatchNumber string `json:"batch_number"`
	Quantity    string `json:"quantity" validate:"required"`
	Method      string `json:"valuation_method" validate:"omitempty,oneof=fifo lifo weighted_average"`
}

type createRequest struct {
	FromWarehouseID int64               `json:"from_warehouse_id" validate:"required"`
	FromBranchID    int64               `json:"from_branch_id" validate:"required"`
	ToWarehouseID   int64               `json:"to_warehouse_id" validate:"required"`
	ToBranchID      int64               `json:"to_branch_id" validate:"required"`
	Reference       string              `json:"reference"`
	Note            string              `json:"note"`
	ActorID         int64               `json:"actor_id"`
	Lines           []createLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type itemResponse struct {
	ID                int64  `json:"id"`
	ProductID         int64  `json:"product_id"`
	VariantID         int64  `json:"variant_id,omitempty"`
	BatchNumber       string `json:"batch_number,omitempty"`
	RequestedQuantity string `json:"requested_quantity"`
	ShippedQuantity   string `json:"shipped_quantity"`
	ReceivedQuantity  string `json:"received_quantity"`
	ShippedUnitCost   string `json:"shipped_unit_cost"`
}

type transferResponse struct {
	ID              int64          `json:"id"`
	FromWarehouseID int64          `json:"from_warehouse_id"`
	ToWarehouseID   int64          `json:"to_warehouse_id"`
	Reference       string         `json:"reference,omitempty"`
	Status          string         `json:"status"`
	Items           []itemResponse `json:"items"`
}

func toTransferResponse(tr Transfer, items []TransferItem) transferResponse {
	resp := transferResponse{
		ID:              tr.ID,
		FromWarehouseID: tr.FromWarehouseID,
		ToWarehouseID:   tr.ToWarehouseID,
		Reference:       tr.Reference,
		Status:          string(tr.Status),
		Items:           make([]itemResponse, 0, len(items)),
	}
	for _, item := range items {
		resp.Items = append(resp.Items, itemResponse{
			ID:                item.ID,
			ProductID:         item.ProductID,
			VariantID:         item.VariantID,
			BatchNumber:       item.BatchNumber,
			RequestedQuantity: item.RequestedQuantity.String(),
			ShippedQuantity:   item.ShippedQuantity.String(),
			ReceivedQuantity:  item.ReceivedQuantity.String(),
			ShippedUnitCost:   item.ShippedUnitCost.String(),
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
		FromWarehouseID: req.FromWarehouseID,
		FromBranchID:    req.FromBranchID,
		ToWarehouseID:   req.ToWarehouseID,
		ToBranchID:      req.ToBranchID,
		Reference:       req.Reference,
		Note:            req.Note,
		ActorID:         req.ActorID,
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
			Method:      valuation.Method(line.Method),
		})
	}
	tr, items, err := h.service.CreateTransfer(r.Context(), input)
	if err != nil {
		h.logger.Warn("create transfer failed", slog.String("error", err.Error()))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toTransferResponse(tr, items))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	transferID, err := strconv.ParseInt(chi.URLParam(r, "transferID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", "transfer id must be numeric")
		return
	}
	tr, items, err := h.service.GetTransfer(r.Context(), transferID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toTransferResponse(tr, items))
}

type shipRequest struct {
	ActorID int64 `json:"actor_id"`
}

func (h *Handler) handleShip(w http.ResponseWriter, r *http.Request) {
	transferID, err := strconv.ParseInt(chi.URLParam(r, "transferID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", "transfer id must be numeric")
		return
	}
	var req shipRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", "request body must be valid JSON")
		return
	}
	tr, items, err := h.service.Ship(r.Context(), transferID, req.ActorID)
	if err != nil {
		h.logger.Warn("ship transfer failed", slog.Int64("transfer_id", transferID), slog.String("error", err.Error()))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toTransferResponse(tr, items))
}

type receiveLineRequest struct {
	ItemID     int64  `json:"item_id" validate:"required"`
	Quantity   string `json:"quantity"`
	LocationID int64  `json:"location_id"`
}

type receiveRequest struct {
	Strategy string               `json:"strategy" validate:"omitempty,oneof=fixed random zone closest fifo fefo"`
	ActorID  int64                `json:"actor_id"`
	Note     string               `json:"note"`
	Lines    []receiveLineRequest `json:"lines" validate:"omitempty,dive"`
}

func (h *Handler) handleReceive(w http.ResponseWriter, r *http.Request) {
	transferID, err := strconv.ParseInt(chi.URLParam(r, "transferID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", "transfer id must be numeric")
		return
	}
	var req receiveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", "request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}
	input := ReceiveInput{
		TransferID: transferID,
		Strategy:   allocation.PutAwayStrategy(req.Strategy),
		ActorID:    req.ActorID,
		Note:       req.Note,
	}
	for _, line := range req.Lines {
		rl := ReceiveLine{ItemID: line.ItemID, LocationID: line.LocationID}
		if line.Quantity != "" {
			qty, err := decimal.NewFromString(line.Quantity)
			if err != nil {
				httpx.Problem(w, http.StatusBadRequest, "Validation failed", "quantity must be numeric")
				return
			}
			rl.Quantity = qty
		}
		input.Lines = append(input.Lines, rl)
	}
	tr, items, err := h.service.Receive(r.Context(), input)
	if err != nil {
		h.logger.Warn("receive transfer failed", slog.Int64("transfer_id", transferID), slog.String("error", err.Error()))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toTransferResponse(tr, items))
}
