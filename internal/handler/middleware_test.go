package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func adminProbe() (http.Handler, *bool) {
	reached := false
	h := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	})
	return h, &reached
}

func TestRequireAdminToken_DisabledWhenUnconfigured(t *testing.T) {
	next, reached := adminProbe()
	gate := RequireAdminToken("")(next)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/messages", nil)
	req.Header.Set("Authorization", "Bearer anything")
	rec := httptest.NewRecorder()
	gate.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 with no token configured, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "admin_disabled") {
		t.Errorf("expected admin_disabled error, got %s", rec.Body.String())
	}
	if *reached {
		t.Error("handler must not be reached when admin surface is disabled")
	}
}

func TestRequireAdminToken_RejectsWrongToken(t *testing.T) {
	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong token", "Bearer wrong"},
		{"not bearer", "Basic c2VjcmV0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			next, reached := adminProbe()
			gate := RequireAdminToken("secret")(next)

			req := httptest.NewRequest(http.MethodGet, "/api/admin/messages", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			gate.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", rec.Code)
			}
			if *reached {
				t.Error("handler must not be reached without a valid token")
			}
		})
	}
}

func TestRequireAdminToken_AcceptsMatchingToken(t *testing.T) {
	next, reached := adminProbe()
	gate := RequireAdminToken("secret")(next)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/messages", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	gate.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !*reached {
		t.Error("expected handler to be reached with a valid token")
	}
}

func TestSecurityHeaders(t *testing.T) {
	next, _ := adminProbe()
	rec := httptest.NewRecorder()
	SecurityHeaders(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	for _, header := range []string{
		"X-Content-Type-Options",
		"X-Frame-Options",
		"Content-Security-Policy",
	} {
		if rec.Header().Get(header) == "" {
			t.Errorf("expected %s header to be set", header)
		}
	}
}
