package warehouse

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/waltergkaturuza/RetailCloud-sub000/internal/platform/httpx"
	"github.com/waltergkaturuza/RetailCloud-sub000/internal/shared"
)

// Handler wires HTTP endpoints for warehouse master data.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs warehouse handler.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validate: validate}
}

// MountRoutes registers warehouse routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/warehouses", h.handleList)
	r.Post("/warehouses", h.handleCreate)
	r.Get("/warehouses/{warehouseID}", h.handleGet)
	r.Put("/warehouses/{warehouseID}", h.handleUpdate)
	r.Get("/warehouses/{warehouseID}/locations", h.handleListLocations)
	r.Post("/warehouses/{warehouseID}/locations", h.handleCreateLocation)
	r.Put("/warehouses/locations/{locationID}", h.handleUpdateLocation)
}

type warehouseRequest struct {
	BranchID int64  `json:"branch_id" validate:"required,gt=0"`
	Code     string `json:"code" validate:"required,max=32"`
	Name     string `json:"name" validate:"required,max=255"`
	Address  string `json:"address"`
	IsActive *bool  `json:"is_active"`
}

type locationRequest struct {
	LocationCode string `json:"location_code" validate:"required,max=64"`
	Zone         string `json:"zone" validate:"max=32"`
	LocationType string `json:"location_type" validate:"omitempty,oneof=shelf rack bin floor cold_storage"`
	MaxCapacity  string `json:"max_capacity"`
	IsActive     *bool  `json:"is_active"`
}

func listFilters(r *http.Request) ListFilters {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit < 1 {
		limit = 25
	}
	filters := ListFilters{
		Page:   page,
		Limit:  limit,
		Search: q.Get("search"),
		Zone:   q.Get("zone"),
	}
	if branchID, err := strconv.ParseInt(q.Get("branch_id"), 10, 64); err == nil {
		filters.BranchID = branchID
	}
	if raw := q.Get("is_active"); raw != "" {
		active := raw == "true" || raw == "1"
		filters.IsActive = &active
	}
	return filters
}

type pageResponse struct {
	Items      interface{} `json:"items"`
	Total      int         `json:"total"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	TotalPages int         `json:"total_pages"`
}

func newPageResponse(items interface{}, page, limit, total int) pageResponse {
	p := shared.NewPagination(page, limit, total)
	return pageResponse{Items: items, Total: p.Total, Page: p.Page, Limit: p.PerPage, TotalPages: p.TotalPages}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filters := listFilters(r)
	warehouses, total, err := h.service.ListWarehouses(r.Context(), filters)
	if err != nil {
		h.logger.Error("list warehouses failed", slog.String("error", err.Error()))
		httpx.RespondError(w, err)
		return
	}
	if warehouses == nil {
		warehouses = []Warehouse{}
	}
	httpx.JSON(w, http.StatusOK, newPageResponse(warehouses, filters.Page, filters.Limit, total))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "warehouseID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", "warehouse id must be numeric")
		return
	}
	warehouse, err := h.service.GetWarehouse(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, warehouse)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req warehouseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", "request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}
	created, err := h.service.CreateWarehouse(r.Context(), Warehouse{
		BranchID: req.BranchID,
		Code:     req.Code,
		Name:     req.Name,
		Address:  req.Address,
	})
	if err != nil {
		h.logger.Warn("create warehouse failed", slog.String("error", err.Error()))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "warehouseID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", "warehouse id must be numeric")
		return
	}
	var req warehouseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", "request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	if err := h.service.UpdateWarehouse(r.Context(), id, Warehouse{
		BranchID: req.BranchID,
		Code:     req.Code,
		Name:     req.Name,
		Address:  req.Address,
		IsActive: active,
	}); err != nil {
		httpx.RespondError(w, err)
		return
	}
	warehouse, err := h.service.GetWarehouse(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, warehouse)
}

func (h *Handler) handleListLocations(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "warehouseID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", "warehouse id must be numeric")
		return
	}
	filters := listFilters(r)
	filters.WarehouseID = id
	locations, total, err := h.service.ListLocations(r.Context(), filters)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if locations == nil {
		locations = []Location{}
	}
	httpx.JSON(w, http.StatusOK, newPageResponse(locations, filters.Page, filters.Limit, total))
}

func (h *Handler) handleCreateLocation(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "warehouseID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", "warehouse id must be numeric")
		return
	}
	var req locationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", "request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}
	capacity := decimal.Zero
	if req.MaxCapacity != "" {
		capacity, err = decimal.NewFromString(req.MaxCapacity)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation failed", "max_capacity must be numeric")
			return
		}
	}
	created, err := h.service.CreateLocation(r.Context(), Location{
		WarehouseID:  id,
		LocationCode: req.LocationCode,
		Zone:         req.Zone,
		LocationType: req.LocationType,
		MaxCapacity:  capacity,
	})
	if err != nil {
		h.logger.Warn("create location failed", slog.String("error", err.Error()))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) handleUpdateLocation(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "locationID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", "location id must be numeric")
		return
	}
	var req locationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request", "request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}
	current, err := h.service.GetLocation(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	capacity := current.MaxCapacity
	if req.MaxCapacity != "" {
		capacity, err = decimal.NewFromString(req.MaxCapacity)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation failed", "max_capacity must be numeric")
			return
		}
	}
	active := current.IsActive
	if req.IsActive != nil {
		active = *req.IsActive
	}
	if err := h.service.UpdateLocation(r.Context(), id, Location{
		WarehouseID:  current.WarehouseID,
		LocationCode: req.LocationCode,
		Zone:         req.Zone,
		LocationType: req.LocationType,
		MaxCapacity:  capacity,
		IsActive:     active,
	}); err != nil {
		httpx.RespondError(w, err)
		return
	}
	updated, err := h.service.GetLocation(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}
