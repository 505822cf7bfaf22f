package community

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	ulid "github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"AEGIS-backend/internal/geofence"
)

// -------------- Error model & mapping --------------

type Code string

const (
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT"
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

// -------------- Clock & ID --------------

type Clock interface{ Now() time.Time }
type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

type IDGen interface{ NewULID(t time.Time) string }
type ulidGen struct{}

func (ulidGen) NewULID(t time.Time) string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// -------------- Service --------------

type Service struct {
	store CommunityStore
	zones ZoneCache
	clock Clock
	id    IDGen
	log   *zap.Logger
}

func NewService(store CommunityStore, zones ZoneCache, log *zap.Logger) *Service {
	if zones == nil {
		zones = NewMemoryZoneCache(time.Minute)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, zones: zones, clock: realClock{}, id: ulidGen{}, log: log}
}

func (s *Service) Create(ctx context.Context, req UpsertRequest) (CommunityResponse, error) {
	c, err := fromRequest(req)
	if err != nil {
		return CommunityResponse{}, err
	}
	now := s.clock.Now()
	c.ID = s.id.NewULID(now)
	c.CreatedAt, c.UpdatedAt = now, now

	if err := s.store.Create(ctx, &c); err != nil {
		if errors.Is(err, errDuplicateCode) {
			return CommunityResponse{}, ErrConflict("community code already exists")
		}
		return CommunityResponse{}, err
	}
	s.log.Info("community created", zap.String("community_id", c.ID), zap.String("code", c.Code))
	return toResponse(c), nil
}

func (s *Service) Get(ctx context.Context, id string) (CommunityResponse, error) {
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return CommunityResponse{}, err
	}
	if c == nil {
		return CommunityResponse{}, ErrNotFound("community not found")
	}
	return toResponse(*c), nil
}

func (s *Service) List(ctx context.Context, status string) ([]CommunityResponse, error) {
	var st *string
	if status = strings.TrimSpace(status); status != "" {
		if !validStatus(status) {
			return nil, ErrInvalid("status must be active or inactive")
		}
		st = &status
	}
	items, err := s.store.List(ctx, st)
	if err != nil {
		return nil, err
	}
	out := make([]CommunityResponse, 0, len(items))
	for _, c := range items {
		out = append(out, toResponse(c))
	}
	return out, nil
}

// Update replaces every editable field. Stored attendance validity is never recomputed.
func (s *Service) Update(ctx context.Context, id string, req UpsertRequest) (CommunityResponse, error) {
	cur, err := s.store.Get(ctx, id)
	if err != nil {
		return CommunityResponse{}, err
	}
	if cur == nil {
		return CommunityResponse{}, ErrNotFound("community not found")
	}
	c, err := fromRequest(req)
	if err != nil {
		return CommunityResponse{}, err
	}
	c.ID = id
	c.CreatedAt = cur.CreatedAt
	c.UpdatedAt = s.clock.Now()

	if _, err := s.store.Update(ctx, &c); err != nil {
		if errors.Is(err, errDuplicateCode) {
			return CommunityResponse{}, ErrConflict("community code already exists")
		}
		return CommunityResponse{}, err
	}
	s.invalidate(ctx, id)
	s.log.Info("community updated", zap.String("community_id", id))
	return toResponse(c), nil
}

func (s *Service) SetStatus(ctx context.Context, id, status string) (CommunityResponse, error) {
	if !validStatus(status) {
		return CommunityResponse{}, ErrInvalid("status must be active or inactive")
	}
	cur, err := s.store.Get(ctx, id)
	if err != nil {
		return CommunityResponse{}, err
	}
	if cur == nil {
		return CommunityResponse{}, ErrNotFound("community not found")
	}
	now := s.clock.Now()
	if _, err := s.store.SetStatus(ctx, id, status, now); err != nil {
		return CommunityResponse{}, err
	}
	s.invalidate(ctx, id)
	cur.Status, cur.UpdatedAt = status, now
	return toResponse(*cur), nil
}

// Zone resolves the geofence of an active community, going through the zone cache.
func (s *Service) Zone(ctx context.Context, id string) (geofence.Zone, error) {
	if z, ok, err := s.zones.Get(ctx, id); err != nil {
		s.log.Warn("zone cache get failed", zap.String("community_id", id), zap.Error(err))
	} else if ok {
		return z, nil
	}

	c, err := s.store.Get(ctx, id)
	if err != nil {
		return geofence.Zone{}, err
	}
	if c == nil {
		return geofence.Zone{}, ErrNotFound("community not found")
	}
	if c.Status != StatusActive {
		return geofence.Zone{}, ErrInvalid("community is inactive")
	}
	z, err := geofence.NewZone(geofence.Coordinate{Latitude: c.Latitude, Longitude: c.Longitude}, c.CheckInRadiusMeters)
	if err != nil {
		return geofence.Zone{}, ErrInvalid("community has no usable check-in zone")
	}
	if err := s.zones.Put(ctx, id, z); err != nil {
		s.log.Warn("zone cache put failed", zap.String("community_id", id), zap.Error(err))
	}
	return z, nil
}

// -------------- helpers --------------

func (s *Service) invalidate(ctx context.Context, id string) {
	if err := s.zones.Invalidate(ctx, id); err != nil {
		s.log.Warn("zone cache invalidate failed", zap.String("community_id", id), zap.Error(err))
	}
}

func validStatus(s string) bool { return s == StatusActive || s == StatusInactive }

func fromRequest(req UpsertRequest) (Community, error) {
	c := Community{
		Name:         strings.TrimSpace(req.Name),
		Code:         strings.TrimSpace(req.Code),
		Type:         strings.TrimSpace(req.Type),
		Status:       strings.TrimSpace(req.Status),
		Address:      strings.TrimSpace(req.Address),
		ContactPhone: strings.TrimSpace(req.ContactPhone),
		ContactEmail: strings.TrimSpace(req.ContactEmail),
		Manager:      strings.TrimSpace(req.Manager),
		Description:  req.Description,
		Notes:        req.Notes,
	}
	if c.Name == "" || c.Code == "" {
		return Community{}, ErrInvalid("name and code are required")
	}
	if c.Status == "" {
		c.Status = StatusActive
	}
	if !validStatus(c.Status) {
		return Community{}, ErrInvalid("status must be active or inactive")
	}
	if req.Latitude == nil || req.Longitude == nil {
		return Community{}, ErrInvalid("latitude and longitude are required")
	}
	center := geofence.Coordinate{Latitude: *req.Latitude, Longitude: *req.Longitude}
	if !center.Valid() {
		return Community{}, ErrInvalid("latitude/longitude out of range")
	}
	if req.CheckInRadiusMeters == nil {
		return Community{}, ErrInvalid("checkin_radius_meters is required")
	}
	r := *req.CheckInRadiusMeters
	if math.IsNaN(r) || math.IsInf(r, 0) || r <= 0 {
		return Community{}, ErrInvalid("checkin_radius_meters must be greater than 0")
	}
	c.Latitude, c.Longitude, c.CheckInRadiusMeters = center.Latitude, center.Longitude, r
	return c, nil
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
