package alerts

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"AEGIS-backend/internal/platform/auth"
	"AEGIS-backend/internal/rbac"
)

type Handler struct{ svc *Service }

func RegisterRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	r.GET("/alerts", auth.RequirePermission(rbac.ModuleDashboard, rbac.ActionView), h.ListAlerts)
	r.GET("/alerts/recent", auth.RequirePermission(rbac.ModuleDashboard, rbac.ActionView), h.RecentAlerts)
	r.POST("/alerts/:alert_id/resolve", auth.RequirePermission(rbac.ModuleDashboard, rbac.ActionEdit), h.ResolveAlert)
}

// GET /alerts
func (h *Handler) ListAlerts(c *gin.Context) {
	var q ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid query"))
		return
	}
	res, err := h.svc.List(c.Request.Context(), q)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /alerts/recent?limit=5
func (h *Handler) RecentAlerts(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(RecentLimit)))
	items, err := h.svc.Recent(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// POST /alerts/:alert_id/resolve
func (h *Handler) ResolveAlert(c *gin.Context) {
	res, err := h.svc.Resolve(c.Request.Context(), c.Param("alert_id"), c.GetString(auth.CtxUserIDKey))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ---------- helpers ----------

func (h *Handler) fail(c *gin.Context, err error) {
	var api *APIError
	if !errors.As(err, &api) {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, errorBody(CodeInternal, "internal error"))
		return
	}
	c.JSON(ToHTTPStatus(err), errorBody(api.Code, api.Message))
}

type errorDTO struct {
	Error struct {
		Code    Code   `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func errorBody(code Code, msg string) errorDTO {
	var e errorDTO
	e.Error.Code = code
	e.Error.Message = msg
	return e
}
