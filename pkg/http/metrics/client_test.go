package metrics

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestInstrumentedClient(t *testing.T) {
	r := prometheus.NewRegistry()
	instrumentation, err := NewInstrumentation("nodewatcher", "webhook", r)
	require.NoError(t, err)

	client := instrumentation.Client(&http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true, // nolint
			},
		},
	})

	srv := httptest.NewTLSServer(http.NotFoundHandler())
	defer srv.Close()
	// localhost instead of 127.0.0.1 so the dns metrics get collected as well
	url := strings.Replace(srv.URL, "127.0.0.1", "localhost", 1)
	resp, err := client.Get(url)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assertMetrics(t, r, 7)
}

func TestDuplicateUpstreamRejected(t *testing.T) {
	r := prometheus.NewRegistry()
	_, err := NewInstrumentation("nodewatcher", "source", r)
	require.NoError(t, err)
	_, err = NewInstrumentation("nodewatcher", "source", r)
	require.Error(t, err)
}

// assertMetrics help count the number of metrics type that have been collected
func assertMetrics(t *testing.T, r prometheus.Gatherer, exp int) {
	var count int
	metricFamilies, err := r.Gather()
	if err != nil {
		t.Fatalf("unexpected error: %s", err.Error())
	}
	for _, mf := range metricFamilies {
		count += len(mf.Metric)
		t.Log(mf.GetName(), "-", mf.GetHelp())
	}
	if count != exp {
		t.Errorf("wrong number of metrics, expected %d got %d", exp, count)
	}
}
