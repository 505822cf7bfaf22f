package dashboard

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"AEGIS-backend/internal/platform/auth"
	"AEGIS-backend/internal/rbac"
)

type Handler struct{ svc *Service }

func RegisterRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}
	r.GET("/dashboard", auth.RequirePermission(rbac.ModuleDashboard, rbac.ActionView), h.Get)
}

// GET /dashboard
func (h *Handler) Get(c *gin.Context) {
	sum, err := h.svc.Summary(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		h.svc.log.Error("dashboard summary", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": "INTERNAL", "message": "internal error"},
		})
		return
	}
	c.JSON(http.StatusOK, sum)
}
