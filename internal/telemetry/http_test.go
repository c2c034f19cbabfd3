package telemetry_test

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/victornm/quizzer/internal/telemetry"
)

func TestHTTPLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	e := gin.New()
	e.Use(telemetry.HTTPLogger())
	e.GET("/ok", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	e.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for _, p := range []string{"/ok", "/boom"} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}

	out := buf.String()
	require.Contains(t, out, "level=INFO msg=\"http: request served\" method=GET route=/ok status=204")
	require.Contains(t, out, "level=ERROR msg=\"http: request served\" method=GET route=/boom status=500")
}
