package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestSwapCounters(t *testing.T) {
	m := New()
	m.Outcome("ok")
	m.Outcome("ok")
	m.Outcome("upstream")
	m.Step("quote", 120*time.Millisecond, nil)
	m.Step("submit", time.Second, errors.New("boom"))

	require.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("upstream")))
	require.Equal(t, 0.0, testutil.ToFloat64(m.failures.WithLabelValues("quote")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("submit")))
}

func TestNilRecorderIsNoop(t *testing.T) {
	var m *Swap
	require.NotPanics(t, func() {
		m.Outcome("ok")
		m.Step("quote", time.Millisecond, nil)
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.Outcome("ok")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `swap_requests_total{outcome="ok"} 1`)
}
