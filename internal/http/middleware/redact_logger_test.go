package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func TestRedactingLogger_ScrubsQueryAndHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID())
	r.Use(RedactingLogger(RedactOptions{MaskHeaders: []string{HeaderUserID}}))
	r.GET("/tasks/history", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	q := "email=a.b+tag@example.com&phone=+1-555-123-4567&id=123e4567-e89b-12d3-a456-426614174000"
	req := httptest.NewRequest(http.MethodGet, "/tasks/history?"+q, nil)
	req.Header.Set("Authorization", "Bearer secret")
	req.Header.Set("Cookie", "sid=topsecret")
	req.Header.Set(HeaderUserID, "gardener-42")
	req.Header.Set("X-Note", "email a@b.com id=123e4567-e89b-12d3-a456-426614174000 phone 555-123-4567")
	req.Header.Set(requestIDHeader, "rid-hist")
	r.ServeHTTP(httptest.NewRecorder(), req)

	got := lines(t, buf)
	if len(got) != 1 {
		t.Fatalf("expected one line, got %d", len(got))
	}
	ln := got[0]
	if ln["level"] != "info" || ln["path"] != "/tasks/history" || ln["request_id"] != "rid-hist" {
		t.Fatalf("unexpected line: %v", ln)
	}

	query, _ := ln["query"].(string)
	for _, tag := range []string{"[REDACTED:email]", "[REDACTED:phone]", "[REDACTED:id]"} {
		if !strings.Contains(query, tag) {
			t.Fatalf("query %q missing %s", query, tag)
		}
	}
	if strings.Contains(query, "example.com") {
		t.Fatalf("email leaked: %q", query)
	}

	headers, _ := ln["headers"].(map[string]any)
	for _, h := range []string{"Authorization", "Cookie", HeaderUserID} {
		if headers[h] != "[REDACTED]" {
			t.Fatalf("%s not masked: %v", h, headers[h])
		}
	}
	if headers["X-Note"] != "email [REDACTED:email] id=[REDACTED:id] phone [REDACTED:phone]" {
		t.Fatalf("X-Note = %v", headers["X-Note"])
	}
}

func TestRedactingLogger_LevelsAndHeaderFallback(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	// No RequestID middleware: the inbound header is used as-is.
	r := gin.New()
	r.Use(RedactingLogger(RedactOptions{}))
	r.POST("/tasks/bonus", func(c *gin.Context) { c.Status(http.StatusConflict) })
	r.GET("/wallet", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for _, rq := range []struct{ method, path, rid string }{
		{http.MethodPost, "/tasks/bonus", "rid-409"},
		{http.MethodGet, "/wallet", "rid-500"},
	} {
		req := httptest.NewRequest(rq.method, rq.path, nil)
		req.Header.Set(requestIDHeader, rq.rid)
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	got := lines(t, buf)
	if got[0]["level"] != "warn" || got[0]["request_id"] != "rid-409" {
		t.Fatalf("409 line: %v", got[0])
	}
	if got[1]["level"] != "error" || got[1]["request_id"] != "rid-500" {
		t.Fatalf("500 line: %v", got[1])
	}
}

func TestRedactingLogger_ScopedLoggerAndLedgerFields(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID())
	r.Use(RedactingLogger(RedactOptions{}))
	r.Use(func(c *gin.Context) { c.Set(userIDKey, "gardener@example.com"); c.Next() })
	r.POST("/tasks/:id/complete", func(c *gin.Context) {
		zerolog.Ctx(c.Request.Context()).Warn().Msg("from service")
		SetAwarded(c, 3)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/tasks/water/complete", nil)
	req.Header.Set(requestIDHeader, "rid-ctx")
	r.ServeHTTP(httptest.NewRecorder(), req)

	got := lines(t, buf)
	if len(got) != 2 {
		t.Fatalf("expected service line and access line, got %d", len(got))
	}
	svc, access := got[0], got[1]
	if svc["message"] != "from service" || svc["request_id"] != "rid-ctx" || svc["path"] != "/tasks/:id/complete" {
		t.Fatalf("service line: %v", svc)
	}
	if access["user_id"] != "[REDACTED:email]" || access["task_id"] != "water" || access["awarded"] != float64(3) {
		t.Fatalf("access line: %v", access)
	}
}

func Test_redactor_UUIDBeforePhone(t *testing.T) {
	red := newRedactor(nil)
	if got := red.text("123e4567-e89b-12d3-a456-426614174000"); got != "[REDACTED:id]" {
		t.Fatalf("uuid = %q", got)
	}
	if got := red.text(""); got != "" {
		t.Fatalf("empty = %q", got)
	}
	if got := red.text("water_plants"); got != "water_plants" {
		t.Fatalf("task id rewritten: %q", got)
	}
}
