package enoki

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quangdang46/talent-passport/services/sponsorship-proxy/internal/config"
	"github.com/quangdang46/talent-passport/services/sponsorship-proxy/internal/domain"
	"github.com/quangdang46/talent-passport/shared/logging"
	"github.com/quangdang46/talent-passport/shared/metrics"
	"github.com/quangdang46/talent-passport/shared/resilience"
)

func newTestClient(url string, m *metrics.Metrics) *Client {
	return NewClient(config.EnokiConfig{
		APIURL:      url,
		PrivateKey:  "enoki_private_test",
		Timeout:     time.Second,
		MaxFailures: 2,
		ResetAfter:  time.Minute,
	}, m, logging.NewNop())
}

func TestSponsor_ForwardsRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/transaction-blocks/sponsor", r.URL.Path)
		assert.Equal(t, "Bearer enoki_private_test", r.Header.Get("Authorization"))

		var body domain.UpstreamSponsorRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "testnet", body.Network)
		assert.Equal(t, "AAEC", body.TransactionBlockKindBytes)
		assert.Equal(t, []string{"0x2::kiosk::place"}, body.AllowedMoveCallTargets)

		_, _ = w.Write([]byte(`{"data":{"bytes":"BYTES","digest":"DIGEST"}}`))
	}))
	defer server.Close()

	m := metrics.NewMetrics("test", "enoki", prometheus.NewRegistry())
	client := newTestClient(server.URL, m)
	out, err := client.Sponsor(context.Background(), &domain.UpstreamSponsorRequest{
		Network:                   "testnet",
		TransactionBlockKindBytes: "AAEC",
		Sender:                    "0xabc",
		AllowedMoveCallTargets:    []string{"0x2::kiosk::place"},
	})
	require.NoError(t, err)
	assert.Equal(t, "BYTES", out.Bytes)
	assert.Equal(t, "DIGEST", out.Digest)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UpstreamRequestsTotal.WithLabelValues("enoki", "sponsor", "success")))
}

func TestExecute_UsesDigestPath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/transaction-blocks/sponsor/D1", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "zksig", body["signature"])
		_, _ = w.Write([]byte(`{"data":{"digest":"D1"}}`))
	}))
	defer server.Close()

	out, err := newTestClient(server.URL, nil).Execute(context.Background(), "D1", "zksig")
	require.NoError(t, err)
	assert.Equal(t, "D1", out.Digest)
}

func TestSponsor_ClientErrorIsRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errors":[{"code":"invalid_move_call","message":"Move call target not allowed"}]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, nil)
	for i := 0; i < 3; i++ {
		_, err := client.Sponsor(context.Background(), &domain.UpstreamSponsorRequest{})
		assert.ErrorIs(t, err, domain.ErrUpstreamRejected)
		assert.Contains(t, err.Error(), "Move call target not allowed")
	}
	// rejections do not trip the breaker
	assert.Equal(t, resilience.StateClosed, client.Breaker().GetState())
}

func TestSponsor_ServerErrorsOpenBreaker(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(server.URL, nil)
	for i := 0; i < 2; i++ {
		_, err := client.Sponsor(context.Background(), &domain.UpstreamSponsorRequest{})
		assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	}

	_, err := client.Sponsor(context.Background(), &domain.UpstreamSponsorRequest{})
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, 2, calls)
}

func TestSponsor_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := newTestClient(server.URL, nil)
	client.timeout = 50 * time.Millisecond
	_, err := client.Sponsor(context.Background(), &domain.UpstreamSponsorRequest{})
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
}

func TestSponsor_MalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, nil).Sponsor(context.Background(), &domain.UpstreamSponsorRequest{})
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
}
