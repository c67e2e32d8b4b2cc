package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"tariff-service/internal/event"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareCountsRequests(t *testing.T) {
	m := New()
	app := fiber.New()
	app.Use(m.Middleware())
	app.Get("/default/ping", func(c fiber.Ctx) error { return c.JSON("pong") })
	app.Get("/metrics", m.Handler())

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/default/ping", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "/default/ping", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "unmatched", "404")))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "tariff_service_http_requests_total")
}

func TestRegisterSink(t *testing.T) {
	m := New()
	m.RegisterSink(func() event.SinkStats {
		return event.SinkStats{State: event.StateConnected.String(), Pending: 3, Transmitted: 10, Failed: 1}
	})

	expected := `
# HELP tariff_service_event_sink_pending_messages Audit messages queued and not yet acknowledged by the broker.
# TYPE tariff_service_event_sink_pending_messages gauge
tariff_service_event_sink_pending_messages 3
`
	err := testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "tariff_service_event_sink_pending_messages")
	assert.NoError(t, err)

	n, err := testutil.GatherAndCount(m.Registry(), "tariff_service_event_sink_connected", "tariff_service_event_sink_transmitted_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
