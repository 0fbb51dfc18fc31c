package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-api/internal/service"
	"github.com/noah-isme/lms-api/internal/tenancy"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
	"github.com/noah-isme/lms-api/pkg/response"
)

// TenantHandler exposes tenant administration endpoints. All routes behind it
// require the super admin role.
type TenantHandler struct {
	tenants *service.TenantService
}

// NewTenantHandler constructs TenantHandler.
func NewTenantHandler(tenants *service.TenantService) *TenantHandler {
	return &TenantHandler{tenants: tenants}
}

func tenantIDParam(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "invalid tenant id")
	}
	return id, nil
}

// List godoc
// @Summary List tenants
// @Tags Tenants
// @Produce json
// @Param search query string false "Search by name or slug"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /tenants [get]
func (h *TenantHandler) List(c *gin.Context) {
	p, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	q, _, err := parseListQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var f tenancy.Filters
	setEnumFilter(&f, "status", c.Query("status"))

	tenants, pagination, err := h.tenants.List(c.Request.Context(), p, q, f)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tenants, pagination)
}

// Get godoc
// @Summary Get tenant detail
// @Tags Tenants
// @Produce json
// @Param id path int true "Tenant ID"
// @Success 200 {object} response.Envelope
// @Router /tenants/{id} [get]
func (h *TenantHandler) Get(c *gin.Context) {
	p, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	id, err := tenantIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	tenant, err := h.tenants.Get(c.Request.Context(), p, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tenant, nil)
}

// Create godoc
// @Summary Create tenant
// @Tags Tenants
// @Accept json
// @Produce json
// @Param payload body service.CreateTenantRequest true "Tenant payload"
// @Success 201 {object} response.Envelope
// @Router /tenants [post]
func (h *TenantHandler) Create(c *gin.Context) {
	p, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.CreateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	tenant, err := h.tenants.Create(c.Request.Context(), p, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, tenant)
}

// Update godoc
// @Summary Update tenant
// @Tags Tenants
// @Accept json
// @Produce json
// @Param id path int true "Tenant ID"
// @Param payload body service.UpdateTenantRequest true "Tenant payload"
// @Success 200 {object} response.Envelope
// @Router /tenants/{id} [put]
func (h *TenantHandler) Update(c *gin.Context) {
	p, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	id, err := tenantIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.UpdateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	tenant, err := h.tenants.Update(c.Request.Context(), p, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tenant, nil)
}

// Delete godoc
// @Summary Delete tenant
// @Tags Tenants
// @Produce json
// @Param id path int true "Tenant ID"
// @Success 204
// @Router /tenants/{id} [delete]
func (h *TenantHandler) Delete(c *gin.Context) {
	p, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	id, err := tenantIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.tenants.Delete(c.Request.Context(), p, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
