package observability

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMetricsRecord(t *testing.T) {
	m := NewMetrics("test")

	m.RecordRequest("/api/assets", "GET", 200, 10*time.Millisecond)
	m.RecordRequest("/api/assets", "GET", 200, 20*time.Millisecond)
	m.RecordError("/api/reservations", "POST", "CONFLICT")
	m.RecordClientCall("asset", "list", "ok", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("/api/assets", "GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errors.WithLabelValues("/api/reservations", "POST", "CONFLICT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.clientCalls.WithLabelValues("asset", "list", "ok")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRequest("/", "GET", 200, 0)
		m.RecordError("/", "GET", "X")
		m.RecordClientCall("asset", "get", "network", 0)
	})
}

func TestRequestLoggerRecordsRoute(t *testing.T) {
	m := NewMetrics("test")
	app := fiber.New()
	app.Use(RequestLogger(zap.NewNop(), m))
	app.Get("/api/assets/:id", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/api/assets/5", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("/api/assets/:id", "GET", "204")))
}
