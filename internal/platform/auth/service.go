package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"AEGIS-backend/internal/rbac"
)

var (
	ErrAlreadyExists = errors.New("already exists")
	ErrNotFound      = errors.New("not found")
	ErrAuthFailed    = errors.New("authentication failed")
	ErrDisabled      = errors.New("account disabled")
	ErrInvalidRole   = errors.New("invalid role")
	ErrForbidden     = errors.New("forbidden")
	ErrInvalidInput  = errors.New("invalid input")
)

// Claims は JWT の中身。sub = アカウントID
type Claims struct {
	Role        string `json:"role"`
	CommunityID string `json:"community_id,omitempty"`
	jwt.RegisteredClaims
}

type AuthService interface {
	Login(ctx context.Context, id, password string) (string, error)
	Register(ctx context.Context, actor Principal, in RegisterRequest) (AccountResponse, error)
	Delete(ctx context.Context, actor Principal, id string) error
	ChangeRole(ctx context.Context, actor Principal, id, newRole string) error
	Get(ctx context.Context, id string) (AccountResponse, error)
	List(ctx context.Context) ([]AccountResponse, error)
	Community(ctx context.Context, userID string) (string, error)
}

type Service struct {
	store  AccountStore
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	log    *zap.Logger
}

func NewService(store AccountStore, secret []byte, ttl time.Duration, log *zap.Logger) *Service {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, secret: secret, ttl: ttl, now: time.Now, log: log}
}

func (s *Service) Login(ctx context.Context, id, password string) (string, error) {
	acct, err := s.store.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if acct == nil {
		return "", ErrAuthFailed
	}
	if acct.IsDisabled {
		return "", ErrDisabled
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)); err != nil {
		return "", ErrAuthFailed
	}

	now := s.now()
	claims := Claims{
		Role: acct.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   acct.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	if acct.CommunityID != nil {
		claims.CommunityID = *acct.CommunityID
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Service) Register(ctx context.Context, actor Principal, in RegisterRequest) (AccountResponse, error) {
	in.ID = strings.TrimSpace(in.ID)
	if in.ID == "" || len(in.Password) < 8 {
		return AccountResponse{}, ErrInvalidInput
	}
	role := rbac.RoleStaff
	if in.Role != nil && *in.Role != "" {
		role = rbac.Role(*in.Role)
	}
	if !rbac.Valid(role) {
		return AccountResponse{}, ErrInvalidRole
	}
	if !rbac.CanEditRole(actor.Role, role) {
		return AccountResponse{}, ErrForbidden
	}

	exists, err := s.store.GetByID(ctx, in.ID)
	if err != nil {
		return AccountResponse{}, err
	}
	if exists != nil {
		return AccountResponse{}, ErrAlreadyExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return AccountResponse{}, err
	}
	acct := &Account{
		ID:           in.ID,
		Name:         strings.TrimSpace(in.Name),
		Email:        strings.TrimSpace(in.Email),
		PasswordHash: string(hash),
		Role:         string(role),
		CommunityID:  in.CommunityID,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.Create(ctx, acct); err != nil {
		return AccountResponse{}, err
	}
	s.log.Info("account registered", zap.String("id", acct.ID), zap.String("role", acct.Role), zap.String("by", actor.UserID))
	return toAccountResponse(*acct), nil
}

// Delete: 自分より上位（編集不可）のロールは削除できない
func (s *Service) Delete(ctx context.Context, actor Principal, id string) error {
	target, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if target == nil {
		return ErrNotFound
	}
	if !rbac.CanEditRole(actor.Role, rbac.Role(target.Role)) {
		return ErrForbidden
	}
	n, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	s.log.Info("account deleted", zap.String("id", id), zap.String("by", actor.UserID))
	return nil
}

// ChangeRole requires the actor to be allowed to edit both the current and the requested role.
func (s *Service) ChangeRole(ctx context.Context, actor Principal, id, newRole string) error {
	role := rbac.Role(newRole)
	if !rbac.Valid(role) {
		return ErrInvalidRole
	}
	target, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if target == nil {
		return ErrNotFound
	}
	if !rbac.CanEditRole(actor.Role, rbac.Role(target.Role)) || !rbac.CanEditRole(actor.Role, role) {
		return ErrForbidden
	}
	if target.Role == newRole {
		return nil
	}
	if _, err := s.store.UpdateRole(ctx, id, newRole); err != nil {
		return err
	}
	s.log.Info("account role changed",
		zap.String("id", id), zap.String("from", target.Role), zap.String("to", newRole), zap.String("by", actor.UserID))
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (AccountResponse, error) {
	acct, err := s.store.GetByID(ctx, id)
	if err != nil {
		return AccountResponse{}, err
	}
	if acct == nil {
		return AccountResponse{}, ErrNotFound
	}
	return toAccountResponse(*acct), nil
}

func (s *Service) List(ctx context.Context) ([]AccountResponse, error) {
	accts, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]AccountResponse, 0, len(accts))
	for i := range accts {
		out = append(out, toAccountResponse(accts[i]))
	}
	return out, nil
}

// Community returns the community an account is assigned to, or "".
func (s *Service) Community(ctx context.Context, userID string) (string, error) {
	acct, err := s.store.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if acct == nil || acct.CommunityID == nil {
		return "", nil
	}
	return *acct.CommunityID, nil
}

func toAccountResponse(a Account) AccountResponse {
	role := rbac.Role(a.Role)
	return AccountResponse{
		ID:          a.ID,
		Name:        a.Name,
		Email:       a.Email,
		Role:        a.Role,
		RoleName:    rbac.RoleName(role),
		CommunityID: a.CommunityID,
		IsDisabled:  a.IsDisabled,
		CreatedAt:   a.CreatedAt,
	}
}
