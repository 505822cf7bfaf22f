package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"AEGIS-backend/internal/platform/auth"
	"AEGIS-backend/internal/platform/db"
)

func init() { gin.SetMode(gin.TestMode) }

type memStore struct {
	alerts map[string]Alert
}

func newMemStore() *memStore { return &memStore{alerts: map[string]Alert{}} }

func (m *memStore) InsertTx(_ context.Context, _ db.DBTX, a *Alert) error {
	m.alerts[a.ID] = *a
	return nil
}

func (m *memStore) Get(_ context.Context, id string) (*Alert, error) {
	a, ok := m.alerts[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (m *memStore) List(_ context.Context, f Filter) ([]Alert, error) {
	out := []Alert{}
	for _, a := range m.alerts {
		if f.Status != nil && a.Status != *f.Status {
			continue
		}
		if f.UserID != nil && a.UserID != *f.UserID {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *memStore) CountActive(context.Context) (int64, error) {
	var n int64
	for _, a := range m.alerts {
		if a.Status == StatusActive {
			n++
		}
	}
	return n, nil
}

func (m *memStore) Resolve(_ context.Context, id, by string, at time.Time) (int64, error) {
	a, ok := m.alerts[id]
	if !ok || a.Status != StatusActive {
		return 0, nil
	}
	a.Status, a.ResolvedAt, a.ResolvedBy = StatusResolved, &at, &by
	m.alerts[id] = a
	return 1, nil
}

func seed(m *memStore, n int) {
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		a := NewLocationInvalid(string(rune('a'+i)), "guard-1", "att", 25.04, 121.56, at.Truncate(24*time.Hour), at)
		_ = m.InsertTx(context.Background(), nil, &a)
	}
}

func TestNewLocationInvalid(t *testing.T) {
	at := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	a := NewLocationInvalid("01A", "guard-1", "01ATT", 25.1, 121.5, at, at)
	if a.Type != TypeLocationInvalid || a.Priority != PriorityMedium || a.Status != StatusActive {
		t.Errorf("alert = %+v", a)
	}
	if a.AttendanceID == nil || *a.AttendanceID != "01ATT" || *a.Latitude != 25.1 || *a.Longitude != 121.5 {
		t.Errorf("alert must reference the record and coordinate: %+v", a)
	}
}

func TestRecentAndCount(t *testing.T) {
	m := newMemStore()
	seed(m, 7)
	svc := NewService(m, nil)
	ctx := context.Background()

	recent, err := svc.Recent(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != RecentLimit {
		t.Fatalf("recent = %d items, want %d", len(recent), RecentLimit)
	}
	if recent[0].ID != "g" {
		t.Errorf("newest first, got %s", recent[0].ID)
	}
	if n, _ := svc.CountActive(ctx); n != 7 {
		t.Errorf("active = %d, want 7", n)
	}
}

func TestResolve(t *testing.T) {
	m := newMemStore()
	seed(m, 1)
	svc := NewService(m, nil)
	ctx := context.Background()

	res, err := svc.Resolve(ctx, "a", "sup-1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Status != StatusResolved || res.ResolvedBy == nil || *res.ResolvedBy != "sup-1" {
		t.Errorf("resolved = %+v", res)
	}

	var api *APIError
	if _, err := svc.Resolve(ctx, "a", "sup-1"); !errors.As(err, &api) || api.Code != CodeConflict {
		t.Errorf("second resolve err = %v, want CONFLICT", err)
	}
	if _, err := svc.Resolve(ctx, "zz", "sup-1"); !errors.As(err, &api) || api.Code != CodeNotFound {
		t.Errorf("missing err = %v, want NOT_FOUND", err)
	}
	if n, _ := svc.CountActive(ctx); n != 0 {
		t.Errorf("active after resolve = %d", n)
	}
}

func TestListValidation(t *testing.T) {
	svc := NewService(newMemStore(), nil)
	var api *APIError
	if _, err := svc.List(context.Background(), ListQuery{Status: "open"}); !errors.As(err, &api) || api.Code != CodeInvalidArgument {
		t.Errorf("bad status err = %v", err)
	}
	if _, err := svc.List(context.Background(), ListQuery{From: "03/01/2026"}); !errors.As(err, &api) || api.Code != CodeInvalidArgument {
		t.Errorf("bad from err = %v", err)
	}
}

func TestHandler(t *testing.T) {
	m := newMemStore()
	seed(m, 2)
	svc := NewService(m, nil)

	newRouter := func(role string) *gin.Engine {
		r := gin.New()
		r.Use(func(c *gin.Context) {
			c.Set(auth.CtxUserIDKey, "u1")
			c.Set(auth.CtxRoleKey, role)
		})
		RegisterRoutes(r, svc)
		return r
	}

	w := httptest.NewRecorder()
	newRouter("staff").ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/alerts/a/resolve", nil))
	if w.Code != http.StatusForbidden {
		t.Fatalf("staff resolve status = %d, want 403", w.Code)
	}

	w = httptest.NewRecorder()
	newRouter("admin").ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/alerts/a/resolve", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("admin resolve status = %d (%s)", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	newRouter("staff").ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/alerts?status=active", nil))
	var body ListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if w.Code != http.StatusOK || body.Total != 1 || body.Items[0].ID != "b" {
		t.Fatalf("list = %d %+v", w.Code, body)
	}

	w = httptest.NewRecorder()
	newRouter("admin").ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/alerts/a/resolve", nil))
	if w.Code != http.StatusConflict {
		t.Fatalf("re-resolve status = %d, want 409", w.Code)
	}
}
