package community

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

	// 読み取りは全ロール、変更は userManagement:edit（admin）のみ
	read := auth.RequirePermission(rbac.ModuleCheckin, rbac.ActionView)
	write := auth.RequirePermission(rbac.ModuleUserManagement, rbac.ActionEdit)

	r.GET("/communities", read, h.ListCommunities)
	r.GET("/communities/:community_id", read, h.GetCommunity)
	r.POST("/communities", write, h.CreateCommunity)
	r.PUT("/communities/:community_id", write, h.UpdateCommunity)
	r.PATCH("/communities/:community_id/status", write, h.SetStatus)
}

// GET /communities?status=active
func (h *Handler) ListCommunities(c *gin.Context) {
	items, err := h.svc.List(c.Request.Context(), c.Query("status"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": len(items)})
}

// GET /communities/:community_id
func (h *Handler) GetCommunity(c *gin.Context) {
	res, err := h.svc.Get(c.Request.Context(), c.Param("community_id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// POST /communities
func (h *Handler) CreateCommunity(c *gin.Context) {
	var req UpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid json or missing required fields"))
		return
	}
	res, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Location", "/communities/"+res.ID)
	c.JSON(http.StatusCreated, res)
}

// PUT /communities/:community_id
func (h *Handler) UpdateCommunity(c *gin.Context) {
	var req UpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid json or missing required fields"))
		return
	}
	res, err := h.svc.Update(c.Request.Context(), c.Param("community_id"), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// PATCH /communities/:community_id/status
func (h *Handler) SetStatus(c *gin.Context) {
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "status is required"))
		return
	}
	res, err := h.svc.SetStatus(c.Request.Context(), c.Param("community_id"), req.Status)
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
