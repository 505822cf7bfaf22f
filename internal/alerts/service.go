package alerts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// -------------- Error model & mapping --------------

type Code string

const (
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT" // 解決済み
	CodeInternal        Code = "INTERNAL"
)

type APIError struct {
	Code    Code
	Message string
}

func (e *APIError) Error() string      { return fmt.Sprintf("%s: %s", e.Code, e.Message) }
func ErrInvalid(msg string) *APIError  { return &APIError{Code: CodeInvalidArgument, Message: msg} }
func ErrNotFound(msg string) *APIError { return &APIError{Code: CodeNotFound, Message: msg} }
func ErrConflict(msg string) *APIError { return &APIError{Code: CodeConflict, Message: msg} }
func ErrInternal(msg string) *APIError { return &APIError{Code: CodeInternal, Message: msg} }

// -------------- Service --------------

const (
	defaultLimit = 50
	maxLimit     = 200
	RecentLimit  = 5
)

type Service struct {
	store AlertStore
	now   func() time.Time
	log   *zap.Logger
}

func NewService(store AlertStore, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, now: func() time.Time { return time.Now().UTC() }, log: log}
}

func (s *Service) List(ctx context.Context, q ListQuery) (ListResponse, error) {
	f := Filter{Limit: q.Limit, Offset: q.Offset}
	if st := strings.TrimSpace(q.Status); st != "" {
		if st != StatusActive && st != StatusResolved {
			return ListResponse{}, ErrInvalid("status must be active or resolved")
		}
		f.Status = &st
	}
	if uid := strings.TrimSpace(q.UserID); uid != "" {
		f.UserID = &uid
	}
	var err error
	if f.From, err = parseDate(q.From); err != nil {
		return ListResponse{}, ErrInvalid("from must be YYYY-MM-DD")
	}
	if f.To, err = parseDate(q.To); err != nil {
		return ListResponse{}, ErrInvalid("to must be YYYY-MM-DD")
	}
	if f.Limit <= 0 {
		f.Limit = defaultLimit
	}
	if f.Limit > maxLimit {
		f.Limit = maxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	items, err := s.store.List(ctx, f)
	if err != nil {
		return ListResponse{}, err
	}
	out := ListResponse{Items: make([]AlertResponse, 0, len(items))}
	for _, a := range items {
		out.Items = append(out.Items, toResponse(a))
	}
	out.Total = len(out.Items)
	return out, nil
}

// Recent: ダッシュボード用の直近アクティブ警告
func (s *Service) Recent(ctx context.Context, limit int) ([]AlertResponse, error) {
	if limit <= 0 || limit > maxLimit {
		limit = RecentLimit
	}
	active := StatusActive
	items, err := s.store.List(ctx, Filter{Status: &active, Limit: limit})
	if err != nil {
		return nil, err
	}
	out := make([]AlertResponse, 0, len(items))
	for _, a := range items {
		out = append(out, toResponse(a))
	}
	return out, nil
}

func (s *Service) CountActive(ctx context.Context) (int64, error) {
	return s.store.CountActive(ctx)
}

func (s *Service) Resolve(ctx context.Context, id, by string) (AlertResponse, error) {
	n, err := s.store.Resolve(ctx, id, by, s.now())
	if err != nil {
		return AlertResponse{}, err
	}
	a, err := s.store.Get(ctx, id)
	if err != nil {
		return AlertResponse{}, err
	}
	if a == nil {
		return AlertResponse{}, ErrNotFound("alert not found")
	}
	if n == 0 {
		return AlertResponse{}, ErrConflict("alert already resolved")
	}
	s.log.Info("alert resolved", zap.String("alert_id", id), zap.String("by", by))
	return toResponse(*a), nil
}

// -------------- helpers --------------

func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func ToHTTPStatus(err error) int {
	var api *APIError
	if errors.As(err, &api) {
		switch api.Code {
		case CodeInvalidArgument:
			return 400
		case CodeNotFound:
			return 404
		case CodeConflict:
			return 409
		default:
			return 500
		}
	}
	return 500
}
