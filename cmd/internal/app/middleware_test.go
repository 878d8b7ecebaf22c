package app

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequestLogMeta(t *testing.T) {
	t.Parallel()

	cases := []struct {
		status     int
		wantLevel  slog.Level
		wantResult string
		wantClass  string
	}{
		{status: 200, wantLevel: slog.LevelInfo, wantResult: "success", wantClass: "2xx"},
		{status: 302, wantLevel: slog.LevelInfo, wantResult: "redirect", wantClass: "3xx"},
		{status: 404, wantLevel: slog.LevelWarn, wantResult: "client_error", wantClass: "4xx"},
		{status: 503, wantLevel: slog.LevelError, wantResult: "server_error", wantClass: "5xx"},
	}

	for _, tc := range cases {
		level, result := requestLogMeta(tc.status)
		if level != tc.wantLevel || result != tc.wantResult {
			t.Fatalf("status=%d level=%v result=%q; want level=%v result=%q", tc.status, level, result, tc.wantLevel, tc.wantResult)
		}
		if got := statusClass(tc.status); got != tc.wantClass {
			t.Fatalf("statusClass(%d)=%q want=%q", tc.status, got, tc.wantClass)
		}
	}
}

func TestWithCORS(t *testing.T) {
	t.Parallel()

	cfg := Config{
		CORSAllowedOrigins:   []string{"https://app.example.com", "http://127.0.0.1:*"},
		CORSAllowCredentials: true,
		CORSMaxAgeSeconds:    600,
	}

	cases := []struct {
		name        string
		method      string
		path        string
		origin      string
		preflight   bool
		wantStatus  int
		wantNext    bool
		wantAllowed string
	}{
		{name: "no origin passes", method: http.MethodGet, path: "/api/join", wantStatus: http.StatusOK, wantNext: true},
		{name: "allowed get", method: http.MethodGet, path: "/api/access-codes/123456", origin: "https://app.example.com", wantStatus: http.StatusOK, wantNext: true, wantAllowed: "https://app.example.com"},
		{name: "preflight short-circuits", method: http.MethodOptions, path: "/api/join", origin: "https://app.example.com", preflight: true, wantStatus: http.StatusNoContent, wantAllowed: "https://app.example.com"},
		{name: "wildcard port", method: http.MethodGet, path: "/healthz", origin: "http://127.0.0.1:55123", wantStatus: http.StatusOK, wantNext: true, wantAllowed: "http://127.0.0.1:55123"},
		{name: "denied origin", method: http.MethodGet, path: "/api/access-codes/123456", origin: "https://evil.example.com", wantStatus: http.StatusForbidden},
		{name: "ws left to gateway", method: http.MethodGet, path: "/ws", origin: "https://evil.example.com", wantStatus: http.StatusOK, wantNext: true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			called := false
			h := WithCORS(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			}), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))

			req := httptest.NewRequest(tc.method, tc.path, nil)
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			if tc.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if rr.Code != tc.wantStatus {
				t.Fatalf("status=%d want=%d", rr.Code, tc.wantStatus)
			}
			if called != tc.wantNext {
				t.Fatalf("next called=%v want=%v", called, tc.wantNext)
			}
			if got := rr.Header().Get("Access-Control-Allow-Origin"); got != tc.wantAllowed {
				t.Fatalf("allow-origin=%q want=%q", got, tc.wantAllowed)
			}
			if tc.wantAllowed != "" && rr.Header().Get("Access-Control-Allow-Credentials") != "true" {
				t.Fatalf("allow-credentials missing")
			}
			if tc.preflight && rr.Header().Get("Access-Control-Max-Age") != "600" {
				t.Fatalf("max-age=%q", rr.Header().Get("Access-Control-Max-Age"))
			}
		})
	}
}

func TestWithRequestLogging_RecordsStatusAndBytes(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	h := WithRequestLogging(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("nope"))
	}), log)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/access-codes/000000", nil))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if rec["level"] != "WARN" || rec["status_class"] != "4xx" || rec["result"] != "client_error" {
		t.Fatalf("unexpected log record: %v", rec)
	}
	if rec["bytes"] != float64(4) {
		t.Fatalf("bytes=%v want=4", rec["bytes"])
	}
}

func TestWithSecurityHeaders(t *testing.T) {
	h := WithSecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	if got := rr.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("missing nosniff: %q", got)
	}
	if got := rr.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("missing frame options: %q", got)
	}
	if got := rr.Header().Get("Referrer-Policy"); got != "no-referrer" {
		t.Fatalf("missing referrer policy: %q", got)
	}
}
