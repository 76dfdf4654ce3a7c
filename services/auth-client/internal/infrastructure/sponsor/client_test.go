package sponsor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quangdang46/talent-passport/services/auth-client/internal/domain"
	"github.com/quangdang46/talent-passport/shared/logging"
)

func newTestClient(url string) *Client {
	return NewClient(url+"/", 2*time.Second, logging.NewNop())
}

func TestSponsorAndExecute(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/sponsorship/sponsor", func(w http.ResponseWriter, r *http.Request) {
		var req domain.SponsorRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "AAEC", req.TransactionData)
		assert.Equal(t, "0xabc", req.Sender)
		assert.Equal(t, "testnet", req.Network)
		_, _ = w.Write([]byte(`{"bytes":"BBBB","digest":"D1"}`))
	})
	mux.HandleFunc("/api/sponsorship/execute", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "D1", req["sponsoredTransaction"])
		assert.Equal(t, "zksig", req["signature"])
		_, _ = w.Write([]byte(`{"digest":"D1"}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestClient(server.URL)
	sponsored, err := client.Sponsor(context.Background(), &domain.SponsorRequest{
		TransactionData: "AAEC", Sender: "0xabc", Network: "testnet",
	})
	require.NoError(t, err)
	assert.Equal(t, "BBBB", sponsored.Bytes)
	assert.Equal(t, "D1", sponsored.Digest)

	result, err := client.Execute(context.Background(), sponsored.Digest, "zksig")
	require.NoError(t, err)
	assert.Equal(t, "D1", result.Digest)
	assert.Equal(t, "success", result.Status)
}

func TestSponsor_ClientErrorIsRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":{"type":"UNPROCESSABLE","code":"UPSTREAM_REJECTED","message":"Move call target not allowed"}}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Sponsor(context.Background(), &domain.SponsorRequest{})
	assert.ErrorIs(t, err, domain.ErrTransactionRejected)
	assert.Contains(t, err.Error(), "Move call target not allowed")
	assert.False(t, domain.IsRetryable(err))
}

func TestSponsor_BadGatewayIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":{"message":"enoki request failed"}}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Execute(context.Background(), "D", "sig")
	assert.ErrorIs(t, err, domain.ErrSponsorUnavailable)
	assert.Contains(t, err.Error(), "502")
}

func TestSponsor_EmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Sponsor(context.Background(), &domain.SponsorRequest{})
	assert.ErrorIs(t, err, domain.ErrSponsorUnavailable)
}
