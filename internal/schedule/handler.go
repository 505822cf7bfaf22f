package schedule

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"AEGIS-backend/internal/platform/auth"
	"AEGIS-backend/internal/rbac"
)

type Handler struct{ svc *Service }

func RegisterRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}
	view := auth.RequirePermission(rbac.ModuleSchedule, rbac.ActionView)
	edit := auth.RequirePermission(rbac.ModuleSchedule, rbac.ActionEdit)
	del := auth.RequirePermission(rbac.ModuleSchedule, rbac.ActionDelete)

	r.GET("/schedules", view, h.ListShifts)
	r.GET("/schedules/week", view, h.Week)
	r.GET("/schedules/:shift_id", view, h.GetShift)
	r.POST("/schedules", edit, h.CreateShift)
	r.PUT("/schedules/:shift_id", edit, h.UpdateShift)
	r.DELETE("/schedules/:shift_id", del, h.DeleteShift)
}

// GET /schedules?from=&to=&staff_id=&community_id=
func (h *Handler) ListShifts(c *gin.Context) {
	var q ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid query"))
		return
	}
	items, err := h.svc.List(c.Request.Context(), q)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": len(items)})
}

// GET /schedules/week?date=YYYY-MM-DD&staff_id=
func (h *Handler) Week(c *gin.Context) {
	res, err := h.svc.Week(c.Request.Context(), c.Query("date"), c.Query("staff_id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /schedules/:shift_id
func (h *Handler) GetShift(c *gin.Context) {
	res, err := h.svc.Get(c.Request.Context(), c.Param("shift_id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// POST /schedules
func (h *Handler) CreateShift(c *gin.Context) {
	var req UpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid json or missing required fields"))
		return
	}
	res, err := h.svc.Create(c.Request.Context(), c.GetString(auth.CtxUserIDKey), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Location", "/schedules/"+res.ID)
	c.JSON(http.StatusCreated, res)
}

// PUT /schedules/:shift_id
func (h *Handler) UpdateShift(c *gin.Context) {
	var req UpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid json or missing required fields"))
		return
	}
	res, err := h.svc.Update(c.Request.Context(), c.GetString(auth.CtxUserIDKey), c.Param("shift_id"), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// DELETE /schedules/:shift_id
func (h *Handler) DeleteShift(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("shift_id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
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
