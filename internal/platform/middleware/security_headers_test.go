package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestSecurityHeaders(t *testing.T) {
	tests := []struct {
		path      string
		hsts      bool
		wantCache string
	}{
		{"/api/v1/dashboard", true, "no-store"},
		{"/files/abc", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, tt.path, nil), rec)

			SecurityHeaders(tt.hsts)(func(c echo.Context) error { return nil })(c)

			h := rec.Header()
			if h.Get("X-Content-Type-Options") != "nosniff" {
				t.Error("expected nosniff")
			}
			if got := h.Get("Cache-Control"); got != tt.wantCache {
				t.Errorf("expected Cache-Control %q, got %q", tt.wantCache, got)
			}
			if (h.Get("Strict-Transport-Security") != "") != tt.hsts {
				t.Errorf("unexpected HSTS header %q", h.Get("Strict-Transport-Security"))
			}
		})
	}
}
