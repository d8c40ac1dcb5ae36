package webdavfs

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCleanPath(t *testing.T) {
	cases := map[string]string{
		"":              "/",
		"/":             "/",
		"docs":          "/docs",
		"/docs/":        "/docs",
		"/docs//a.txt":  "/docs/a.txt",
		"../escape.txt": "/escape.txt",
	}
	for in, want := range cases {
		if got := cleanPath(in); got != want {
			t.Errorf("cleanPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSplitParent(t *testing.T) {
	parent, base := splitParent("/docs/report.txt")
	if parent != "/docs" || base != "report.txt" {
		t.Fatalf("got (%q, %q)", parent, base)
	}

	parent, base = splitParent("/report.txt")
	if parent != "/" || base != "report.txt" {
		t.Fatalf("got (%q, %q)", parent, base)
	}

	parent, base = splitParent("/")
	if parent != "/" || base != "" {
		t.Fatalf("got (%q, %q)", parent, base)
	}
}

func TestCORSPreflightRespondsWithoutBody(t *testing.T) {
	handler := corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("inner handler should not run for an OPTIONS preflight")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/docs/report.txt", nil)
	req.Header.Set("Origin", "https://example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://example.com" {
		t.Fatalf("Allow-Origin = %q, want echoed origin", got)
	}
	if rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatal("expected Allow-Credentials: true")
	}
}

func TestBasicAuthRejectsWrongCredentials(t *testing.T) {
	handler := basicAuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), "filen", "filen-webdav")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.SetBasicAuth("filen", "wrong-password")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestBasicAuthAcceptsCorrectCredentials(t *testing.T) {
	handler := basicAuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), "filen", "filen-webdav")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.SetBasicAuth("filen", "filen-webdav")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
