package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"AEGIS-backend/internal/rbac"
)

type Code string

const (
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeUnauthenticated Code = "UNAUTHENTICATED"
	CodeForbidden       Code = "FORBIDDEN"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT"
	CodeInternal        Code = "INTERNAL"
)

type AuthHandler struct{ svc AuthService }

// RegisterPublicRoutes: ログインのみ（認証前）
func RegisterPublicRoutes(r gin.IRoutes, svc AuthService, guard ...gin.HandlerFunc) {
	h := &AuthHandler{svc: svc}
	r.POST("/auth/login", append(guard, h.Login)...)
}

// RegisterRoutes expects RequireAuth to already be on r.
func RegisterRoutes(r gin.IRoutes, svc AuthService) {
	h := &AuthHandler{svc: svc}
	r.GET("/me", h.Me)

	r.GET("/accounts", RequirePermission(rbac.ModuleUserManagement, rbac.ActionView), h.ListAccounts)
	r.GET("/accounts/:id", RequirePermission(rbac.ModuleUserManagement, rbac.ActionView), h.GetAccount)
	r.POST("/accounts", RequirePermission(rbac.ModuleUserManagement, rbac.ActionEdit), h.Register)
	r.DELETE("/accounts/:id", RequirePermission(rbac.ModuleUserManagement, rbac.ActionDelete), h.DeleteAccount)
	r.PATCH("/accounts/:id/role", RequirePermission(rbac.ModuleRoleManagement, rbac.ActionEdit), h.ChangeRole)
}

// POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid request"))
		return
	}

	token, err := h.svc.Login(c.Request.Context(), req.ID, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrAuthFailed):
			c.JSON(http.StatusUnauthorized, errorBody(CodeUnauthenticated, "IDまたはパスワードが間違っています"))
		case errors.Is(err, ErrDisabled):
			c.JSON(http.StatusForbidden, errorBody(CodeForbidden, "account disabled"))
		default:
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, errorBody(CodeInternal, "login failed"))
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":   token,
		"message": "Login successful",
	})
}

// GET /me
func (h *AuthHandler) Me(c *gin.Context) {
	p := CurrentPrincipal(c)
	acct, err := h.svc.Get(c.Request.Context(), p.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, MeResponse{
		Account:       acct,
		Permissions:   rbac.Permissions(p.Role),
		EditableRoles: rbac.EditableRoles(p.Role),
	})
}

// GET /accounts
func (h *AuthHandler) ListAccounts(c *gin.Context) {
	items, err := h.svc.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": len(items)})
}

// GET /accounts/:id
func (h *AuthHandler) GetAccount(c *gin.Context) {
	acct, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, acct)
}

// POST /accounts
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid request"))
		return
	}

	acct, err := h.svc.Register(c.Request.Context(), CurrentPrincipal(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Location", "/accounts/"+acct.ID)
	c.JSON(http.StatusCreated, acct)
}

// DELETE /accounts/:id
func (h *AuthHandler) DeleteAccount(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), CurrentPrincipal(c), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// PATCH /accounts/:id/role
func (h *AuthHandler) ChangeRole(c *gin.Context) {
	var req ChangeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid request"))
		return
	}
	if err := h.svc.ChangeRole(c.Request.Context(), CurrentPrincipal(c), c.Param("id"), req.Role); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "role changed"})
}

// ---------- helpers ----------

func (h *AuthHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, errorBody(CodeNotFound, "account not found"))
	case errors.Is(err, ErrAlreadyExists):
		c.JSON(http.StatusConflict, errorBody(CodeConflict, "ID already exists"))
	case errors.Is(err, ErrForbidden):
		c.JSON(http.StatusForbidden, errorBody(CodeForbidden, "not allowed to manage this role"))
	case errors.Is(err, ErrInvalidRole):
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "unknown role"))
	case errors.Is(err, ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "id required and password must be at least 8 characters"))
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, errorBody(CodeInternal, "internal error"))
	}
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
