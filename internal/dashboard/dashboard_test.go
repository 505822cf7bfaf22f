package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"AEGIS-backend/internal/alerts"
	"AEGIS-backend/internal/attendance"
	"AEGIS-backend/internal/platform/auth"
)

func init() { gin.SetMode(gin.TestMode) }

type fakeAttendance struct {
	counts attendance.DayCounts
	err    error
}

func (f fakeAttendance) CountToday(context.Context) (attendance.DayCounts, error) {
	return f.counts, f.err
}

type fakeAlerts struct {
	active    int64
	recent    []alerts.AlertResponse
	gotLimit  int
	recentErr error
}

func (f *fakeAlerts) CountActive(context.Context) (int64, error) { return f.active, nil }

func (f *fakeAlerts) Recent(_ context.Context, limit int) ([]alerts.AlertResponse, error) {
	f.gotLimit = limit
	return f.recent, f.recentErr
}

func TestSummary(t *testing.T) {
	al := &fakeAlerts{active: 3, recent: []alerts.AlertResponse{{ID: "A1"}, {ID: "A2"}}}
	svc := NewService(fakeAttendance{counts: attendance.DayCounts{CheckedIn: 12, OnDuty: 7}}, al, nil)
	fixed := time.Date(2026, 3, 2, 1, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	got, err := svc.Summary(context.Background())
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if got.ActiveStaff != 7 || got.TodayAttendance != 12 || got.ActiveAlerts != 3 {
		t.Errorf("summary = %+v", got)
	}
	if len(got.RecentAlerts) != 2 || al.gotLimit != alerts.RecentLimit {
		t.Errorf("recent = %d (limit %d)", len(got.RecentAlerts), al.gotLimit)
	}
	if !got.GeneratedAt.Equal(fixed) {
		t.Errorf("generated_at = %v", got.GeneratedAt)
	}
}

func TestSummaryErrors(t *testing.T) {
	boom := errors.New("db down")
	svc := NewService(fakeAttendance{err: boom}, &fakeAlerts{}, nil)
	if _, err := svc.Summary(context.Background()); !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped db error", err)
	}

	svc = NewService(fakeAttendance{}, &fakeAlerts{recentErr: boom}, nil)
	if _, err := svc.Summary(context.Background()); !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped db error", err)
	}
}

func TestHandler(t *testing.T) {
	svc := NewService(fakeAttendance{counts: attendance.DayCounts{CheckedIn: 1, OnDuty: 1}}, &fakeAlerts{}, nil)
	router := func(role string) *gin.Engine {
		r := gin.New()
		r.Use(func(c *gin.Context) { c.Set(auth.CtxRoleKey, role) })
		RegisterRoutes(r, svc)
		return r
	}

	w := httptest.NewRecorder()
	router("staff").ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["active_staff"] != float64(1) {
		t.Errorf("active_staff = %v", body["active_staff"])
	}
	if list, ok := body["recent_alerts"].([]any); !ok || len(list) != 0 {
		t.Errorf("recent_alerts = %v, want []", body["recent_alerts"])
	}

	w = httptest.NewRecorder()
	router("").ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	if w.Code != http.StatusForbidden {
		t.Errorf("no role status = %d, want 403", w.Code)
	}
}
