package auth

import (
	"time"

	"AEGIS-backend/internal/rbac"
)

// Principal is the authenticated caller taken from the token.
type Principal struct {
	UserID      string
	Role        rbac.Role
	CommunityID string
}

type LoginRequest struct {
	ID       string `json:"id" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RegisterRequest struct {
	ID          string  `json:"id" binding:"required"`
	Password    string  `json:"password" binding:"required"`
	Name        string  `json:"name"`
	Email       string  `json:"email"`
	Role        *string `json:"role,omitempty"` // 未指定なら staff
	CommunityID *string `json:"community_id,omitempty"`
}

type ChangeRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

type AccountResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Role        string    `json:"role"`
	RoleName    string    `json:"role_name"`
	CommunityID *string   `json:"community_id,omitempty"`
	IsDisabled  bool      `json:"is_disabled"`
	CreatedAt   time.Time `json:"created_at"`
}

type MeResponse struct {
	Account       AccountResponse                    `json:"account"`
	Permissions   map[rbac.Module][]rbac.Action     `json:"permissions"`
	EditableRoles []rbac.RoleOption                  `json:"editable_roles"`
}
