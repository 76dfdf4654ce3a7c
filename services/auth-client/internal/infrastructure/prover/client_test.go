package prover

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

const proofJSON = `{
  "proofPoints": {"a": ["1","2","1"], "b": [["3","4"],["5","6"],["1","0"]], "c": ["7","8","1"]},
  "issBase64Details": {"value": "wiaXNzIjoiaHR0cHM6Ly9hY2NvdW50cy5nb29nbGUuY29tIiw", "indexMod4": 1},
  "headerBase64": "eyJhbGciOiJSUzI1NiJ9"
}`

func testRequest() *domain.ProofRequest {
	return &domain.ProofRequest{
		JWT:                        "header.payload.sig",
		ExtendedEphemeralPublicKey: "AAECAw==",
		MaxEpoch:                   "12",
		JWTRandomness:              "1234",
		Salt:                       "5678",
		KeyClaimName:               "sub",
	}
}

func TestRequestProof_Success(t *testing.T) {
	var received map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(proofJSON))
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, logging.NewNop())
	proof, err := client.RequestProof(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "2", "1"}, proof.ProofPoints.A)
	assert.Equal(t, uint8(1), proof.IssBase64Details.IndexMod4)
	assert.Equal(t, "eyJhbGciOiJSUzI1NiJ9", proof.HeaderBase64)

	assert.Equal(t, "header.payload.sig", received["jwt"])
	assert.Equal(t, "AAECAw==", received["extendedEphemeralPublicKey"])
	assert.Equal(t, "12", received["maxEpoch"])
	assert.Equal(t, "1234", received["jwtRandomness"])
	assert.Equal(t, "5678", received["salt"])
	assert.Equal(t, "sub", received["keyClaimName"])
}

func TestRequestProof_ServerErrorIsRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"message":"token expired"}`, http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, logging.NewNop())
	proof, err := client.RequestProof(context.Background(), testRequest())
	assert.Nil(t, proof)
	assert.ErrorIs(t, err, domain.ErrProofRejected)
	assert.False(t, domain.IsRetryable(err))

	var svcErr *domain.ProofServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, http.StatusInternalServerError, svcErr.StatusCode)
	assert.Contains(t, svcErr.Body, "token expired")
}

func TestRequestProof_NetworkFailureIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(url, time.Second, logging.NewNop())
	_, err := client.RequestProof(context.Background(), testRequest())
	assert.ErrorIs(t, err, domain.ErrProofUnavailable)
	assert.True(t, domain.IsRetryable(err))
}

func TestRequestProof_TimeoutIsRetryable(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(server.URL, 50*time.Millisecond, logging.NewNop())
	_, err := client.RequestProof(context.Background(), testRequest())
	assert.ErrorIs(t, err, domain.ErrProofUnavailable)
}

func TestRequestProof_IncompleteProof(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"proofPoints":{"a":[],"b":[],"c":[]}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second, logging.NewNop())
	_, err := client.RequestProof(context.Background(), testRequest())
	assert.ErrorIs(t, err, domain.ErrProofRejected)
}
