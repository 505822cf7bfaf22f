package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"AEGIS-backend/internal/rbac"
)

const (
	CtxUserIDKey      = "user_id"
	CtxRoleKey        = "role"
	CtxCommunityIDKey = "community_id"
)

// RequireAuth: Authorization: Bearer <token> を検証して context に sub/role/community_id を詰める
func RequireAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if h == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody(CodeUnauthenticated, "missing Authorization header"))
			return
		}

		parts := strings.SplitN(h, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody(CodeUnauthenticated, "invalid Authorization header"))
			return
		}

		tokenStr := strings.TrimSpace(parts[1])
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody(CodeUnauthenticated, "empty token"))
			return
		}

		var claims Claims
		token, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
			// alg 固定（none攻撃とか回避）
			if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, jwt.ErrTokenSignatureInvalid
			}
			return secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
		if err != nil || token == nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody(CodeUnauthenticated, "invalid token"))
			return
		}
		if claims.Subject == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody(CodeUnauthenticated, "missing sub"))
			return
		}

		c.Set(CtxUserIDKey, claims.Subject)
		c.Set(CtxRoleKey, claims.Role)
		c.Set(CtxCommunityIDKey, claims.CommunityID)
		c.Next()
	}
}

// RequirePermission checks the caller's role against the rbac table.
func RequirePermission(module rbac.Module, action rbac.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(CtxRoleKey)
		if role == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, errorBody(CodeForbidden, "missing role"))
			return
		}
		if !rbac.HasPermission(rbac.Role(role), module, action) {
			c.AbortWithStatusJSON(http.StatusForbidden, errorBody(CodeForbidden, "forbidden"))
			return
		}
		c.Next()
	}
}

// CurrentPrincipal reads what RequireAuth stored on the context.
func CurrentPrincipal(c *gin.Context) Principal {
	return Principal{
		UserID:      c.GetString(CtxUserIDKey),
		Role:        rbac.Role(c.GetString(CtxRoleKey)),
		CommunityID: c.GetString(CtxCommunityIDKey),
	}
}
