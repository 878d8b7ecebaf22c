package app

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRuntimeBaseURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "explicit localhost", in: "127.0.0.1:8080", want: "http://127.0.0.1:8080"},
		{name: "bind all v4", in: "0.0.0.0:8080", want: "http://127.0.0.1:8080"},
		{name: "bind all v6", in: "[::]:9090", want: "http://127.0.0.1:9090"},
		{name: "ipv6 host", in: "[2001:db8::1]:9090", want: "http://[2001:db8::1]:9090"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := runtimeBaseURL(tc.in)
			if got != tc.want {
				t.Fatalf("runtimeBaseURL(%q)=%q want=%q", tc.in, got, tc.want)
			}
		})
	}
}

func TestWSBaseURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{in: "http://127.0.0.1:8080", want: "ws://127.0.0.1:8080"},
		{in: "https://livedeck.example.com", want: "wss://livedeck.example.com"},
		{in: "127.0.0.1:8080", want: "ws://127.0.0.1:8080"},
	}

	for _, tc := range cases {
		got := wsBaseURL(tc.in)
		if got != tc.want {
			t.Fatalf("wsBaseURL(%q)=%q want=%q", tc.in, got, tc.want)
		}
	}
}

func newTestApp(t *testing.T, mutate func(*Config)) *httptest.Server {
	t.Helper()

	cfg := LoadConfig()
	cfg.PresenterJWTSecret = "0123456789abcdef0123456789abcdef"
	cfg.CORSAllowedOrigins = []string{"http://localhost:*"}
	if mutate != nil {
		mutate(&cfg)
	}

	a, err := New(cfg, discardLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	srv := httptest.NewServer(a.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func getBody(t *testing.T, url string) (int, http.Header, string) {
	t.Helper()

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, resp.Header, string(b)
}

func TestApp_HealthReadyAndMetrics(t *testing.T) {
	t.Parallel()

	srv := newTestApp(t, func(c *Config) { c.DevSeed = true })

	status, hdr, body := getBody(t, srv.URL+"/healthz")
	if status != http.StatusOK || body != "ok\n" {
		t.Fatalf("/healthz status=%d body=%q", status, body)
	}
	if hdr.Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("missing security headers: %v", hdr)
	}

	if status, _, _ := getBody(t, srv.URL+"/readyz"); status != http.StatusOK {
		t.Fatalf("/readyz status=%d", status)
	}

	status, _, body = getBody(t, srv.URL+"/metrics")
	if status != http.StatusOK {
		t.Fatalf("/metrics status=%d", status)
	}
	if !strings.Contains(body, "livedeck_participants_active") {
		t.Fatalf("/metrics missing participants gauge")
	}
}

func TestApp_APIMountedWithCORS(t *testing.T) {
	t.Parallel()

	srv := newTestApp(t, nil)

	status, _, _ := getBody(t, srv.URL+"/api/access-codes/12ab")
	if status != http.StatusBadRequest {
		t.Fatalf("malformed code status=%d want=400", status)
	}

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/join", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("preflight status=%d want=204", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("allow-origin=%q", got)
	}

	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/api/access-codes/123456", nil)
	req.Header.Set("Origin", "https://evil.example")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("cross-origin get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("disallowed origin status=%d want=403", resp.StatusCode)
	}
}

func TestApp_ParticipantsRequiresToken(t *testing.T) {
	t.Parallel()

	srv := newTestApp(t, nil)
	if status, _, _ := getBody(t, srv.URL+"/api/presentations/p1/participants"); status != http.StatusUnauthorized {
		t.Fatalf("status=%d want=401", status)
	}
}

func TestApp_ParticipantsDisabledWithoutSecret(t *testing.T) {
	t.Parallel()

	srv := newTestApp(t, func(c *Config) { c.PresenterJWTSecret = "" })
	if status, _, _ := getBody(t, srv.URL+"/api/presentations/p1/participants"); status != http.StatusServiceUnavailable {
		t.Fatalf("status=%d want=503", status)
	}
}
