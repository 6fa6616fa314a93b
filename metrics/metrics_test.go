package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/matryer/is"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	is := is.New(t)

	reg := prometheus.NewRegistry()
	m := New(reg)

	m.LinesRead.Add(3)
	m.Throttled.Inc()
	m.SensorsTracked.Set(2)

	is.Equal(testutil.ToFloat64(m.LinesRead), 3.0)
	is.Equal(testutil.ToFloat64(m.Throttled), 1.0)
	is.Equal(testutil.ToFloat64(m.SensorsTracked), 2.0)

	count, err := testutil.GatherAndCount(reg)
	is.NoErr(err)
	is.Equal(count, 8)
}

func TestRouterServesMetrics(t *testing.T) {
	is := is.New(t)

	reg := prometheus.NewRegistry()
	m := New(reg)
	m.Accepted.Inc()

	srv := httptest.NewServer(NewRouter(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	is.NoErr(err)
	defer resp.Body.Close()
	is.Equal(resp.StatusCode, http.StatusOK)

	body, err := io.ReadAll(resp.Body)
	is.NoErr(err)
	is.True(strings.Contains(string(body), "sdrweather_events_accepted_total 1"))

	health, err := http.Get(srv.URL + "/healthz")
	is.NoErr(err)
	health.Body.Close()
	is.Equal(health.StatusCode, http.StatusOK)
}
