package prometheus

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"github.com/super-flat/nodewatcher/logging"
)

type PrometheusServerSuite struct {
	suite.Suite
}

// In order for 'go test' to run this suite, we need to create
// a normal test function and pass our suite to suite.Run
func TestPrometheusServerSuite(t *testing.T) {
	suite.Run(t, new(PrometheusServerSuite))
}

func (s *PrometheusServerSuite) TestStart() {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "nodewatcher_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	server := NewPromServer(0, reg, logging.Discard())
	s.Require().NotNil(server)
	s.Assert().Equal(":0", server.Addr())

	s.Require().NoError(server.Start())
	defer server.Stop()

	resp, err := http.Get(fmt.Sprintf("http://%s/metrics", server.Addr()))
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Assert().Equal(http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	s.Assert().Contains(string(body), "nodewatcher_test_total 1")
}

func (s *PrometheusServerSuite) TestStartPortTaken() {
	first := NewPromServer(0, prometheus.NewRegistry(), logging.Discard())
	s.Require().NoError(first.Start())
	defer first.Stop()

	_, portStr, err := net.SplitHostPort(first.Addr())
	s.Require().NoError(err)
	port, err := strconv.Atoi(portStr)
	s.Require().NoError(err)
	second := NewPromServer(port, prometheus.NewRegistry(), logging.Discard())
	s.Assert().Error(second.Start())
}

func (s *PrometheusServerSuite) TestStop() {
	// Start a local HTTP server
	httpServer := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		_, _ = rw.Write([]byte(`OK`))
	}))

	prometheusSrv := &Server{
		httpServer: httpServer.Config,
		logger:     logging.Discard(),
	}

	resp, err := http.Get(httpServer.URL)
	s.Require().NoError(err)
	s.Assert().Equal(resp.StatusCode, 200)

	prometheusSrv.Stop()

	_, err = http.Get(httpServer.URL)
	s.Require().Error(err)
}
