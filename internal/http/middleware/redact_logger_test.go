package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestRedact(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", ""},
		{"user_id=3", "user_id=3"},
		{"mail=bob@example.com", "mail=[REDACTED:email]"},
		{"id=123e4567-e89b-42d3-a456-426614174000", "id=[REDACTED:id]"},
		{"phone=212-555-1212", "phone=[REDACTED:phone]"},
		{"img=data:image/png;base64,iVBORw0KGgo=", "img=[REDACTED:data]"},
	}
	for _, tc := range cases {
		if got := redact(tc.in); got != tc.want {
			t.Fatalf("redact(%q) = %q; want %q", tc.in, got, tc.want)
		}
	}
}

func TestRedactingLogger_MasksHeadersAndLevels(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), RedactingLogger(RedactOptions{MaskHeaders: []string{" X-Api-Key ", ""}}))
	r.GET("/api/v1/conversations", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.DELETE("/api/v1/messages", func(c *gin.Context) { c.Status(http.StatusForbidden) })
	r.GET("/fail", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	req := httptest.NewRequest(http.MethodGet, "/api/v1/conversations?user_id=3&email=a@b.io", nil)
	req.Header.Set("Authorization", "Bearer secret")
	req.Header.Set("X-Api-Key", "k")
	req.Header.Set("X-Trace", "bob@example.com")
	r.ServeHTTP(httptest.NewRecorder(), req)

	del := httptest.NewRequest(http.MethodDelete, "/api/v1/messages", nil)
	del.Header.Set(HeaderMaintenanceToken, "letmein")
	r.ServeHTTP(httptest.NewRecorder(), del)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/fail", nil))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 access lines, got %d:\n%s", len(lines), buf.String())
	}

	var first map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if first["level"] != "info" || first["path"] != "/api/v1/conversations" {
		t.Fatalf("unexpected first line: %v", first)
	}
	if q := first["query"].(string); strings.Contains(q, "a@b.io") || !strings.Contains(q, "user_id=3") {
		t.Fatalf("query not scrubbed: %q", q)
	}
	h := first["headers"].(map[string]any)
	if h["Authorization"] != "[REDACTED]" || h["X-Api-Key"] != "[REDACTED]" || h["X-Trace"] != "[REDACTED:email]" {
		t.Fatalf("headers not scrubbed: %v", h)
	}

	if !strings.Contains(lines[1], `"level":"warn"`) || strings.Contains(lines[1], "letmein") {
		t.Fatalf("expected warn line with masked token: %s", lines[1])
	}
	if !strings.Contains(lines[2], `"level":"error"`) {
		t.Fatalf("expected error line: %s", lines[2])
	}
}
