package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/quangdang46/talent-passport/services/sponsorship-proxy/internal/domain"
	"github.com/quangdang46/talent-passport/services/sponsorship-proxy/internal/middleware"
	"github.com/quangdang46/talent-passport/shared/logging"
	"github.com/quangdang46/talent-passport/shared/metrics"
	"github.com/quangdang46/talent-passport/shared/resilience"
	"github.com/quangdang46/talent-passport/shared/timeout"
)

type MockSponsorshipService struct {
	mock.Mock
}

func (m *MockSponsorshipService) Status(ctx context.Context) *domain.Status {
	return m.Called(ctx).Get(0).(*domain.Status)
}

func (m *MockSponsorshipService) Sponsor(ctx context.Context, req *domain.SponsorRequest) (*domain.SponsoredTransaction, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SponsoredTransaction), args.Error(1)
}

func (m *MockSponsorshipService) Execute(ctx context.Context, req *domain.ExecuteRequest) (*domain.ExecuteResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ExecuteResult), args.Error(1)
}

type HandlerTestSuite struct {
	suite.Suite
	service *MockSponsorshipService
	health  map[string]string
	server  *httptest.Server
}

func (s *HandlerTestSuite) SetupTest() {
	s.service = new(MockSponsorshipService)
	s.health = map[string]string{"enoki": "ok"}

	h := NewHandler(s.service, func() map[string]string { return s.health }, logging.NewNop())
	router := NewRouter(h, RouterConfig{
		AllowedOrigins: []string{"http://localhost:5173"},
		RateLimiter:    middleware.NewRateLimiter(middleware.RateLimitConfig{RatePerSecond: 100, Burst: 100}, nil),
		Metrics:        metrics.NewMetrics("test", "proxy", prometheus.NewRegistry()),
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("# metrics")) }),
		Logger:         logging.NewNop(),
	})
	s.server = httptest.NewServer(router)
}

func (s *HandlerTestSuite) TearDownTest() {
	s.server.Close()
}

func (s *HandlerTestSuite) post(path, body string) (*http.Response, map[string]interface{}) {
	resp, err := http.Post(s.server.URL+path, "application/json", strings.NewReader(body))
	s.Require().NoError(err)
	defer resp.Body.Close()

	var out map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func (s *HandlerTestSuite) TestStatus() {
	s.service.On("Status", mock.Anything).Return(&domain.Status{
		Enabled: true, Network: "testnet", AllowedMoveCallTargets: []string{"0xabc::passport::mint"},
	})

	resp, err := http.Get(s.server.URL + "/api/sponsorship/status")
	s.Require().NoError(err)
	defer resp.Body.Close()

	var status domain.Status
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&status))
	s.Equal(http.StatusOK, resp.StatusCode)
	s.True(status.Enabled)
	s.Equal("testnet", status.Network)
	s.NotEmpty(resp.Header.Get(logging.CorrelationHeader))
}

func (s *HandlerTestSuite) TestSponsor_Success() {
	s.service.On("Sponsor", mock.Anything, &domain.SponsorRequest{
		TransactionData: "AAEC", Sender: "0xabc", Network: "testnet",
	}).Return(&domain.SponsoredTransaction{Bytes: "B", Digest: "D"}, nil)

	resp, body := s.post("/api/sponsorship/sponsor", `{"transactionData":"AAEC","sender":"0xabc","network":"testnet"}`)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal("B", body["bytes"])
	s.Equal("D", body["digest"])
}

func (s *HandlerTestSuite) TestSponsor_MalformedBody() {
	resp, body := s.post("/api/sponsorship/sponsor", `{not json`)
	s.Equal(http.StatusBadRequest, resp.StatusCode)
	s.Equal("INVALID_INPUT", body["error"].(map[string]interface{})["code"])
	s.service.AssertNotCalled(s.T(), "Sponsor", mock.Anything, mock.Anything)
}

func (s *HandlerTestSuite) TestExecute_UpstreamUnavailable() {
	s.service.On("Execute", mock.Anything, mock.Anything).
		Return(nil, &domain.UpstreamError{StatusCode: 503, Message: "maintenance"})

	resp, body := s.post("/api/sponsorship/execute", `{"sponsoredTransaction":"D","signature":"c2ln"}`)
	s.Equal(http.StatusBadGateway, resp.StatusCode)
	s.Equal("UPSTREAM_FAILURE", body["error"].(map[string]interface{})["code"])
}

func (s *HandlerTestSuite) TestMethodNotAllowed() {
	resp, err := http.Get(s.server.URL + "/api/sponsorship/sponsor")
	s.Require().NoError(err)
	resp.Body.Close()
	s.Equal(http.StatusMethodNotAllowed, resp.StatusCode)
}

func (s *HandlerTestSuite) TestHealth() {
	resp, err := http.Get(s.server.URL + "/health")
	s.Require().NoError(err)
	resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)

	s.health["enoki"] = "circuit open"
	resp, err = http.Get(s.server.URL + "/health")
	s.Require().NoError(err)
	resp.Body.Close()
	s.Equal(http.StatusServiceUnavailable, resp.StatusCode)
}

func (s *HandlerTestSuite) TestMetricsEndpoint() {
	resp, err := http.Get(s.server.URL + "/metrics")
	s.Require().NoError(err)
	resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)
}

func (s *HandlerTestSuite) TestPanicIsRecovered() {
	s.service.On("Status", mock.Anything).Run(func(mock.Arguments) { panic("boom") })

	resp, err := http.Get(s.server.URL + "/api/sponsorship/status")
	s.Require().NoError(err)
	resp.Body.Close()
	s.Equal(http.StatusInternalServerError, resp.StatusCode)
}

func TestHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(HandlerTestSuite))
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"invalid field", domain.InvalidField("sender", "bad"), http.StatusBadRequest, "INVALID_INPUT"},
		{"disabled", domain.ErrSponsorshipDisabled, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{"quota", domain.ErrQuotaExceeded, http.StatusTooManyRequests, "QUOTA_EXCEEDED"},
		{"upstream 400", &domain.UpstreamError{StatusCode: 400, Message: "bad kind bytes"}, http.StatusBadRequest, "UPSTREAM_REJECTED"},
		{"upstream 403", &domain.UpstreamError{StatusCode: 403, Message: "target not allowed"}, http.StatusUnprocessableEntity, "UPSTREAM_REJECTED"},
		{"upstream 500", &domain.UpstreamError{StatusCode: 500, Message: "oops"}, http.StatusBadGateway, "UPSTREAM_FAILURE"},
		{"network", fmt.Errorf("%w: dial tcp", domain.ErrUpstreamUnavailable), http.StatusBadGateway, "UPSTREAM_FAILURE"},
		{"upstream timeout", fmt.Errorf("%w: %w", domain.ErrUpstreamUnavailable, timeout.ErrTimeout), http.StatusGatewayTimeout, "TIMEOUT"},
		{"breaker open", fmt.Errorf("circuit breaker 'enoki': %w", resilience.ErrCircuitOpen), http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{"unknown", errors.New("nil pointer"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapped := MapError(tt.err)
			assert.Equal(t, tt.status, mapped.StatusCode)
			assert.Equal(t, tt.code, mapped.Code)
		})
	}

	upstream := MapError(&domain.UpstreamError{StatusCode: 422, Message: "Move call target not allowed"})
	require.Equal(t, "Move call target not allowed", upstream.Message)
}
