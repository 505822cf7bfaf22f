package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/gin-gonic/gin"

	"AEGIS-backend/internal/platform/db"
)

func init() { gin.SetMode(gin.TestMode) }

func TestSPAFallback(t *testing.T) {
	fsys := fstest.MapFS{
		"index.html":    {Data: []byte("<html>app</html>")},
		"assets/app.js": {Data: []byte("console.log(1)")},
	}
	r := gin.New()
	r.NoRoute(spaFallback(fsys))

	tests := []struct {
		path       string
		wantStatus int
		wantBody   string
		cached     bool
	}{
		{"/", http.StatusOK, "<html>app</html>", false},
		{"/assets/app.js", http.StatusOK, "console.log(1)", true},
		{"/schedule/week", http.StatusOK, "<html>app</html>", false},
		{"/api/v1/nope", http.StatusNotFound, "NOT_FOUND", false},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if w.Code != tt.wantStatus || !strings.Contains(w.Body.String(), tt.wantBody) {
			t.Errorf("%s: %d %q", tt.path, w.Code, w.Body.String())
		}
		if got := w.Header().Get("Cache-Control") != ""; got != tt.cached {
			t.Errorf("%s: cache-control set = %v, want %v", tt.path, got, tt.cached)
		}
	}
}

func TestFallbackZone(t *testing.T) {
	if z, err := fallbackZone(nil); z != nil || err != nil {
		t.Fatalf("nil config = %v, %v", z, err)
	}
	f := func(v float64) *float64 { return &v }

	z, err := fallbackZone(&db.ZoneConfig{Latitude: f(25.03), Longitude: f(121.56), RadiusMeters: f(150)})
	if err != nil || z == nil || z.RadiusMeters != 150 {
		t.Fatalf("zone = %v, err %v", z, err)
	}
	if _, err := fallbackZone(&db.ZoneConfig{Latitude: f(25.03), Longitude: f(121.56), RadiusMeters: f(0)}); err == nil {
		t.Error("zero radius should be rejected")
	}
}
