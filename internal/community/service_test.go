package community

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"AEGIS-backend/internal/geofence"
	"AEGIS-backend/internal/platform/auth"
)

func init() { gin.SetMode(gin.TestMode) }

type memStore struct {
	items map[string]Community
	gets  int
}

func newMemStore() *memStore { return &memStore{items: map[string]Community{}} }

func (m *memStore) Get(_ context.Context, id string) (*Community, error) {
	m.gets++
	c, ok := m.items[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *memStore) List(_ context.Context, status *string) ([]Community, error) {
	out := []Community{}
	for _, c := range m.items {
		if status == nil || c.Status == *status {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) Create(_ context.Context, c *Community) error {
	for _, e := range m.items {
		if e.Code == c.Code {
			return errDuplicateCode
		}
	}
	m.items[c.ID] = *c
	return nil
}

func (m *memStore) Update(_ context.Context, c *Community) (int64, error) {
	m.items[c.ID] = *c
	return 1, nil
}

func (m *memStore) SetStatus(_ context.Context, id, status string, at time.Time) (int64, error) {
	c := m.items[id]
	c.Status, c.UpdatedAt = status, at
	m.items[id] = c
	return 1, nil
}

type seqID struct{ n int }

func (s *seqID) NewULID(time.Time) string {
	s.n++
	return "C" + string(rune('0'+s.n))
}

func f64(v float64) *float64 { return &v }

func newTestService() (*Service, *memStore) {
	store := newMemStore()
	svc := NewService(store, NewMemoryZoneCache(time.Minute), nil)
	svc.id = &seqID{}
	return svc, store
}

func validRequest() UpsertRequest {
	return UpsertRequest{
		Name:                "信義社區",
		Code:                "XY-01",
		Latitude:            f64(25.0330),
		Longitude:           f64(121.5654),
		CheckInRadiusMeters: f64(500),
	}
}

func apiCode(err error) Code {
	var api *APIError
	if errors.As(err, &api) {
		return api.Code
	}
	return ""
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*UpsertRequest)
	}{
		{"missing radius", func(r *UpsertRequest) { r.CheckInRadiusMeters = nil }},
		{"zero radius", func(r *UpsertRequest) { r.CheckInRadiusMeters = f64(0) }},
		{"negative radius", func(r *UpsertRequest) { r.CheckInRadiusMeters = f64(-5) }},
		{"latitude out of range", func(r *UpsertRequest) { r.Latitude = f64(91) }},
		{"blank name", func(r *UpsertRequest) { r.Name = "  " }},
		{"bad status", func(r *UpsertRequest) { r.Status = "closed" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)
			if _, err := svc.Create(ctx, req); apiCode(err) != CodeInvalidArgument {
				t.Fatalf("err = %v, want INVALID_ARGUMENT", err)
			}
		})
	}

	res, err := svc.Create(ctx, validRequest())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if res.Status != StatusActive || res.CheckInRadiusMeters != 500 {
		t.Errorf("created = %+v", res)
	}
	if _, err := svc.Create(ctx, validRequest()); apiCode(err) != CodeConflict {
		t.Errorf("duplicate code err = %v, want CONFLICT", err)
	}
}

func TestZone(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()
	created, err := svc.Create(ctx, validRequest())
	if err != nil {
		t.Fatal(err)
	}

	z, err := svc.Zone(ctx, created.ID)
	if err != nil {
		t.Fatalf("Zone: %v", err)
	}
	if z.RadiusMeters != 500 || z.Center.Latitude != 25.0330 {
		t.Errorf("zone = %+v", z)
	}
	gets := store.gets
	if _, err := svc.Zone(ctx, created.ID); err != nil || store.gets != gets {
		t.Errorf("second Zone should be served from cache (gets %d -> %d)", gets, store.gets)
	}

	req := validRequest()
	req.CheckInRadiusMeters = f64(1000)
	if _, err := svc.Update(ctx, created.ID, req); err != nil {
		t.Fatal(err)
	}
	if z, _ := svc.Zone(ctx, created.ID); z.RadiusMeters != 1000 {
		t.Errorf("zone after update radius = %v, want 1000", z.RadiusMeters)
	}

	if _, err := svc.SetStatus(ctx, created.ID, StatusInactive); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Zone(ctx, created.ID); apiCode(err) != CodeInvalidArgument {
		t.Errorf("inactive zone err = %v, want INVALID_ARGUMENT", err)
	}
	if _, err := svc.Zone(ctx, "missing"); apiCode(err) != CodeNotFound {
		t.Errorf("missing zone err = %v, want NOT_FOUND", err)
	}
}

func TestMemoryZoneCacheExpiry(t *testing.T) {
	c := NewMemoryZoneCache(time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	_ = c.Put(ctx, "x", validZone(t))
	if _, ok, _ := c.Get(ctx, "x"); !ok {
		t.Fatal("fresh entry missing")
	}
	now = now.Add(2 * time.Minute)
	if _, ok, _ := c.Get(ctx, "x"); ok {
		t.Fatal("expired entry returned")
	}
}

func validZone(t *testing.T) geofence.Zone {
	t.Helper()
	z, err := geofence.NewZone(geofence.Coordinate{Latitude: 25, Longitude: 121}, 100)
	if err != nil {
		t.Fatal(err)
	}
	return z
}

func TestHandlerCreateRequiresAdmin(t *testing.T) {
	svc, _ := newTestService()
	newRouter := func(role string) *gin.Engine {
		r := gin.New()
		r.Use(func(c *gin.Context) { c.Set(auth.CtxRoleKey, role) })
		RegisterRoutes(r, svc)
		return r
	}
	body := `{"name":"A","code":"A1","latitude":25,"longitude":121,"checkin_radius_meters":300}`

	post := func(role, body string) int {
		req := httptest.NewRequest(http.MethodPost, "/communities", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		newRouter(role).ServeHTTP(w, req)
		return w.Code
	}
	if code := post("manager", body); code != http.StatusForbidden {
		t.Fatalf("manager create = %d, want 403", code)
	}
	if code := post("admin", body); code != http.StatusCreated {
		t.Fatalf("admin create = %d, want 201", code)
	}
	if code := post("admin", `{"name":"B","code":"B1","latitude":25,"longitude":121}`); code != http.StatusBadRequest {
		t.Fatalf("missing radius = %d, want 400", code)
	}
}
