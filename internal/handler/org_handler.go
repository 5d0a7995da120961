package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/orgstack/org-management-service/internal/domain"
	"github.com/orgstack/org-management-service/internal/dto"
	"github.com/orgstack/org-management-service/internal/middleware"
	"github.com/orgstack/org-management-service/internal/service"
	"github.com/orgstack/org-management-service/pkg/response"
)

// OrgHandler handles organization lifecycle HTTP requests
type OrgHandler struct {
	orgService  service.OrgService
	authService service.AuthService
	log         *zap.Logger
}

// NewOrgHandler creates a new OrgHandler
func NewOrgHandler(orgService service.OrgService, authService service.AuthService, log *zap.Logger) *OrgHandler {
	return &OrgHandler{orgService: orgService, authService: authService, log: log}
}

// Create handles organization creation
// POST /org/create
func (h *OrgHandler) Create(c *gin.Context) {
	var req dto.CreateOrgRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
		return
	}

	result, err := h.orgService.Create(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, "create organization", err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(result))
}

// Get handles organization lookup
// GET /org/get?organization_name=...
func (h *OrgHandler) Get(c *gin.Context) {
	name := c.Query("organization_name")
	if name == "" {
		c.JSON(http.StatusBadRequest, response.BadRequest("organization_name is required"))
		return
	}

	result, err := h.orgService.Get(c.Request.Context(), name)
	if err != nil {
		h.writeError(c, "get organization", err)
		return
	}

	c.JSON(http.StatusOK, response.Success(result))
}

// Update handles organization rename and admin credential updates
// PUT /org/update (bearer token required)
func (h *OrgHandler) Update(c *gin.Context) {
	var req dto.UpdateOrgRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
		return
	}

	if valid, msg := req.Validate(); !valid {
		c.JSON(http.StatusBadRequest, response.Error(response.ErrCodeValidationFailed, msg))
		return
	}

	if !h.authorize(c, req.CurrentOrganizationName) {
		return
	}

	result, err := h.orgService.Update(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, "update organization", err)
		return
	}

	c.JSON(http.StatusOK, response.Success(result))
}

// Delete handles organization deletion
// DELETE /org/delete?organization_name=... (bearer token required)
func (h *OrgHandler) Delete(c *gin.Context) {
	name := c.Query("organization_name")
	if name == "" {
		c.JSON(http.StatusBadRequest, response.BadRequest("organization_name is required"))
		return
	}

	if !h.authorize(c, name) {
		return
	}

	if err := h.orgService.Delete(c.Request.Context(), name); err != nil {
		h.writeError(c, "delete organization", err)
		return
	}

	c.JSON(http.StatusOK, response.Success(gin.H{"deleted": name}))
}

// authorize checks the request's validated claims against the target
// organization. Writes the error response itself and returns false when
// the caller must stop.
func (h *OrgHandler) authorize(c *gin.Context, targetName string) bool {
	claims, ok := middleware.GetClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Unauthorized(""))
		return false
	}
	if err := h.authService.Authorize(claims, targetName); err != nil {
		if errors.Is(err, domain.ErrForbidden) {
			c.JSON(http.StatusForbidden, response.Forbidden("Token does not grant access to this organization"))
			return false
		}
		c.JSON(http.StatusUnauthorized, response.Unauthorized(""))
		return false
	}
	return true
}

// writeError maps service errors to HTTP responses
func (h *OrgHandler) writeError(c *gin.Context, op string, err error) {
	var partial *domain.PartialFailureError

	switch {
	case errors.Is(err, domain.ErrAlreadyExists):
		c.JSON(http.StatusConflict, response.Conflict("Organization or admin email already exists"))
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, response.NotFound("Organization not found"))
	case errors.As(err, &partial):
		h.log.Error("partial failure",
			zap.String("operation", op),
			zap.Strings("completed_steps", partial.CompletedSteps),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, response.Error(response.ErrCodePartialFailure, "Operation partially failed; manual reconciliation may be required"))
	default:
		h.log.Error("operation failed", zap.String("operation", op), zap.Error(err))
		c.JSON(http.StatusInternalServerError, response.InternalError("Internal server error"))
	}
}
