package ledger

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/waltergkaturuza/RetailCloud-sub000/internal/observability"
	"github.com/waltergkaturuza/RetailCloud-sub000/internal/platform/httpx"
	"github.com/waltergkaturuza/RetailCloud-sub000/internal/shared"
	"github.com/waltergkaturuza/RetailCloud-sub000/internal/valuation"
)

// Handler wires HTTP endpoints for direct ledger access. Workflow packages
// have their own endpoints; this surface covers external movement events and
// the stock card reads.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	metrics  *observability.Metrics
}

// NewHandler constructs ledger handler.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validate: validate}
}

// WithMetrics attaches movement and rejection counters.
func (h *Handler) WithMetrics(m *observability.Metrics) *Handler {
	h.metrics = m
	return h
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/movements", h.handleRecord)
	r.Get("/movements", h.handleList)
	r.Get("/stock/available", h.handleAvailable)
}

type movementRequest struct {
	ProductID       int64  `json:"product_id" validate:"required,gt=0"`
	VariantID       int64  `json:"variant_id"`
	BranchID        int64  `json:"branch_id" validate:"required,gt=0"`
	WarehouseID     int64  `json:"warehouse_id"`
	StockLocationID int64  `json:"stock_location_id"`
	Type            string `json:"type" validate:"required,oneof=in out sale return adjustment transfer_in transfer_out"`
	Quantity        string `json:"quantity" validate:"required"`
	UnitCost        string `json:"unit_cost"`
	Method          string `json:"method" validate:"omitempty,oneof=fifo lifo weighted_average"`
	ReferenceType   string `json:"reference_type"`
	ReferenceID     string `json:"reference_id"`
	Note            string `json:"note"`
	ActorID         int64  `json:"actor_id"`
}

type movementResponse struct {
	ID              int64  `json:"id"`
	ProductID       int64  `json:"product_id"`
	VariantID       int64  `json:"variant_id,omitempty"`
	BranchID        int64  `json:"branch_id"`
	WarehouseID     int64  `json:"warehouse_id"`
	StockLocationID int64  `json:"stock_location_id"`
	Type            string `json:"type"`
	Quantity        string `json:"quantity"`
	QuantityBefore  string `json:"quantity_before"`
	QuantityAfter   string `json:"quantity_after"`
	UnitCost        string `json:"unit_cost"`
	ReferenceType   string `json:"reference_type,omitempty"`
	ReferenceID     string `json:"reference_id,omitempty"`
	Note            string `json:"note,omitempty"`
	OccurredAt      string `json:"occurred_at"`
}

func toMovementResponse(m StockMovement) movementResponse {
	return movementResponse{
		ID:              m.ID,
		ProductID:       m.ProductID,
		VariantID:       m.VariantID,
		BranchID:        m.BranchID,
		WarehouseID:     m.WarehouseID,
		StockLocationID: m.StockLocationID,
		Type:            string(m.Type),
		Quantity:        m.Quantity.String(),
		QuantityBefore:  m.QuantityBefore.String(),
		QuantityAfter:   m.QuantityAfter.String(),
		UnitCost:        m.UnitCost.String(),
		ReferenceType:   m.ReferenceType,
		ReferenceID:     m.ReferenceID,
		Note:            m.Note,
		OccurredAt:      m.OccurredAt.Format(time.RFC3339),
	}
}

func (h *Handler) handleRecord(w http.ResponseWriter, r *http.Request) {
	var req movementRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", "request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}
	qty, err := decimal.NewFromString(req.Quantity)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation failed", "quantity must be numeric")
		return
	}
	cost := decimal.Zero
	if req.UnitCost != "" {
		cost, err = decimal.NewFromString(req.UnitCost)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation failed", "unit_cost must be numeric")
			return
		}
	}
	movements, err := h.service.RecordMovement(r.Context(), MovementInput{
		ProductID:       req.ProductID,
		VariantID:       req.VariantID,
		BranchID:        req.BranchID,
		WarehouseID:     req.WarehouseID,
		StockLocationID: req.StockLocationID,
		Type:            MovementType(req.Type),
		Quantity:        qty,
		UnitCost:        cost,
		Method:          valuation.Method(req.Method),
		ReferenceType:   req.ReferenceType,
		ReferenceID:     req.ReferenceID,
		Note:            req.Note,
		ActorID:         req.ActorID,
	})
	if err != nil {
		h.logger.Warn("record movement failed",
			slog.Int64("product_id", req.ProductID),
			slog.String("type", req.Type),
			slog.String("error", err.Error()))
		h.metrics.ObserveRejection(rejectionReason(err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]movementResponse, 0, len(movements))
	for _, m := range movements {
		h.metrics.ObserveMovement(string(m.Type))
		out = append(out, toMovementResponse(m))
	}
	httpx.JSON(w, http.StatusCreated, out)
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, shared.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, shared.ErrNoLocationAvailable):
		return "no_location_available"
	case errors.Is(err, shared.ErrConflictingState):
		return "conflicting_state"
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrInvalidMovementType):
		return "invalid_input"
	case errors.Is(err, shared.ErrNotFound):
		return "not_found"
	default:
		return "other"
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := MovementFilter{}
	var err error
	if filter.ProductID, err = strconv.ParseInt(q.Get("product_id"), 10, 64); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", "product_id is required")
		return
	}
	filter.VariantID, _ = strconv.ParseInt(q.Get("variant_id"), 10, 64)
	filter.BranchID, _ = strconv.ParseInt(q.Get("branch_id"), 10, 64)
	if raw := q.Get("type"); raw != "" {
		filter.Types = []MovementType{MovementType(raw)}
	}
	if raw := q.Get("from"); raw != "" {
		if filter.From, err = time.Parse(time.DateOnly, raw); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid request", "from must be YYYY-MM-DD")
			return
		}
	}
	if raw := q.Get("to"); raw != "" {
		if filter.To, err = time.Parse(time.DateOnly, raw); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid request", "to must be YYYY-MM-DD")
			return
		}
	}
	if raw := q.Get("limit"); raw != "" {
		filter.Limit, _ = strconv.Atoi(raw)
	}
	movements, err := h.service.GetMovements(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]movementResponse, 0, len(movements))
	for _, m := range movements {
		out = append(out, toMovementResponse(m))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleAvailable(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	productID, err := strconv.ParseInt(q.Get("product_id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", "product_id is required")
		return
	}
	branchID, err := strconv.ParseInt(q.Get("branch_id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", "branch_id is required")
		return
	}
	variantID, _ := strconv.ParseInt(q.Get("variant_id"), 10, 64)

	available, err := h.service.GetAvailableQuantity(r.Context(), productID, variantID, branchID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"available": available.String()})
}
