package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func securedRouter(opt SecurityOptions, pre ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(pre...)
	r.Use(SecurityHeaders(opt))
	r.GET("/api/v1/messages", func(c *gin.Context) { c.String(http.StatusOK, "[]") })
	r.GET("/uploads/*filepath", func(c *gin.Context) { c.String(http.StatusOK, "img") })
	return r
}

func TestSecurityHeaders_Baseline(t *testing.T) {
	r := securedRouter(SecurityOptions{UploadsPath: "/uploads"}, func(c *gin.Context) {
		c.Header(requestIDHeader, "rid-123")
		c.Next()
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/messages", nil))

	h := w.Header()
	if h.Get("X-Content-Type-Options") != "nosniff" || h.Get("X-Frame-Options") != "DENY" || h.Get("Referrer-Policy") != "no-referrer" {
		t.Fatalf("baseline headers missing: %#v", h)
	}
	for _, k := range []string{"Permissions-Policy", "Cache-Control", "Strict-Transport-Security", "Content-Security-Policy"} {
		if h.Get(k) != "" {
			t.Fatalf("unexpected %s: %q", k, h.Get(k))
		}
	}
	if got := h.Get("Access-Control-Expose-Headers"); got != requestIDHeader {
		t.Fatalf("expose header = %q", got)
	}
}

func TestSecurityHeaders_ExposeAppends(t *testing.T) {
	r := securedRouter(SecurityOptions{}, func(c *gin.Context) {
		c.Header(requestIDHeader, "rid")
		c.Header("Access-Control-Expose-Headers", "Content-Length")
		c.Next()
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/messages", nil))
	if got := w.Header().Get("Access-Control-Expose-Headers"); got != "Content-Length, X-Request-ID" {
		t.Fatalf("expose header = %q", got)
	}
}

func TestSecurityHeaders_PolicyAndNoStore(t *testing.T) {
	r := securedRouter(SecurityOptions{NoStore: true, EnablePolicy: true})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/messages", nil))

	h := w.Header()
	if h.Get("Permissions-Policy") == "" || h.Get("X-Permitted-Cross-Domain-Policies") != "none" {
		t.Fatalf("policy headers missing: %#v", h)
	}
	if h.Get("Cache-Control") != "no-store" || h.Get("Pragma") != "no-cache" || h.Get("Expires") != "0" {
		t.Fatalf("no-store headers missing: %#v", h)
	}
}

func TestSecurityHeaders_UploadsSandboxed(t *testing.T) {
	r := securedRouter(SecurityOptions{UploadsPath: "/uploads"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/uploads/chat_media/a.jpg", nil))
	if got := w.Header().Get("Content-Security-Policy"); got != uploadsCSP {
		t.Fatalf("uploads CSP = %q", got)
	}
}

func TestSecurityHeaders_HSTS(t *testing.T) {
	opt := SecurityOptions{EnableHSTS: true, HSTSMaxAge: time.Hour}
	want := "max-age=" + strconv.Itoa(3600) + "; includeSubDomains; preload"

	r := securedRouter(opt)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/messages", nil))
	if w.Header().Get("Strict-Transport-Security") != "" {
		t.Fatalf("HSTS must not be sent over plain HTTP")
	}

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/messages", nil)
	req.Header.Set("X-Forwarded-Proto", "HTTPS")
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Strict-Transport-Security"); got != want {
		t.Fatalf("HSTS via proxy = %q; want %q", got, want)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/messages", nil)
	req.TLS = &tls.ConnectionState{}
	securedRouter(SecurityOptions{EnableHSTS: true}).ServeHTTP(w, req)
	if got := w.Header().Get("Strict-Transport-Security"); got != "max-age=15552000; includeSubDomains; preload" {
		t.Fatalf("default HSTS = %q", got)
	}
}
