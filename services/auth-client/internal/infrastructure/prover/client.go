package prover

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/quangdang46/talent-passport/services/auth-client/internal/domain"
	"github.com/quangdang46/talent-passport/shared/logging"
	"github.com/quangdang46/talent-passport/shared/timeout"
)

const maxErrorBody = 512

// Client calls the remote proving service
type Client struct {
	url     string
	http    *http.Client
	timeout time.Duration
	logger  *logging.Logger
}

func NewClient(url string, requestTimeout time.Duration, logger *logging.Logger) *Client {
	return &Client{
		url:     url,
		http:    &http.Client{},
		timeout: requestTimeout,
		logger:  logger,
	}
}

// RequestProof posts the proof inputs. Transport failures and timeouts are
// retryable; any non-2xx answer is a rejection.
func (c *Client) RequestProof(ctx context.Context, req *domain.ProofRequest) (*domain.ZkProof, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode proof request: %w", err)
	}

	var proof domain.ZkProof
	err = timeout.Run(ctx, "prover.request", c.timeout, func(ctx context.Context) error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(httpReq)
		if err != nil {
			return &domain.ProofServiceError{Retryable: true, Cause: err}
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			return &domain.ProofServiceError{
				StatusCode: resp.StatusCode,
				Body:       strings.TrimSpace(string(raw)),
			}
		}

		if err := json.NewDecoder(resp.Body).Decode(&proof); err != nil {
			return &domain.ProofServiceError{StatusCode: resp.StatusCode, Body: "malformed proof response", Cause: err}
		}
		return nil
	})
	if err != nil {
		if timeout.IsTimeout(err) {
			return nil, &domain.ProofServiceError{Retryable: true, Cause: err}
		}
		return nil, err
	}

	if err := validateProof(&proof); err != nil {
		return nil, &domain.ProofServiceError{StatusCode: http.StatusOK, Body: err.Error()}
	}

	c.logger.WithContext(ctx).WithField("header", proof.HeaderBase64).Debug("Proof received")
	return &proof, nil
}

func validateProof(p *domain.ZkProof) error {
	switch {
	case len(p.ProofPoints.A) == 0 || len(p.ProofPoints.B) == 0 || len(p.ProofPoints.C) == 0:
		return fmt.Errorf("proof points are incomplete")
	case p.IssBase64Details.Value == "":
		return fmt.Errorf("issBase64Details is missing")
	case p.HeaderBase64 == "":
		return fmt.Errorf("headerBase64 is missing")
	}
	return nil
}
