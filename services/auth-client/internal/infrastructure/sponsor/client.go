package sponsor

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

const (
	sponsorPath  = "/api/sponsorship/sponsor"
	executePath  = "/api/sponsorship/execute"
	maxErrorBody = 1024
)

// Client calls the gas-sponsorship proxy
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	logger  *logging.Logger
}

func NewClient(baseURL string, requestTimeout time.Duration, logger *logging.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		timeout: requestTimeout,
		logger:  logger,
	}
}

type executeRequest struct {
	SponsoredTransaction string `json:"sponsoredTransaction"`
	Signature            string `json:"signature"`
}

type errorEnvelope struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Sponsor asks the proxy to wrap kind bytes with sponsored gas
func (c *Client) Sponsor(ctx context.Context, req *domain.SponsorRequest) (*domain.SponsoredTransaction, error) {
	var out domain.SponsoredTransaction
	if err := c.post(ctx, sponsorPath, req, &out); err != nil {
		return nil, err
	}
	if out.Bytes == "" || out.Digest == "" {
		return nil, fmt.Errorf("%w: proxy returned an empty sponsored transaction", domain.ErrSponsorUnavailable)
	}
	return &out, nil
}

// Execute submits the user's signature for a sponsored transaction
func (c *Client) Execute(ctx context.Context, digest, signature string) (*domain.TransactionResult, error) {
	var out domain.TransactionResult
	err := c.post(ctx, executePath, executeRequest{SponsoredTransaction: digest, Signature: signature}, &out)
	if err != nil {
		return nil, err
	}
	if out.Status == "" {
		out.Status = "success"
	}
	return &out, nil
}

// post maps 4xx answers to rejections carrying the proxy's message; anything
// else that fails wraps ErrSponsorUnavailable.
func (c *Client) post(ctx context.Context, path string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", path, err)
	}

	err = timeout.Run(ctx, "sponsor"+path, c.timeout, func(ctx context.Context) error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if id := logging.GetCorrelationID(ctx); id != "" {
			httpReq.Header.Set("X-Correlation-ID", id)
		}

		resp, err := c.http.Do(httpReq)
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrSponsorUnavailable, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			message := errorMessage(raw)
			if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return &domain.TransactionRejectedError{Reason: message}
			}
			return fmt.Errorf("%w: proxy returned %d: %s", domain.ErrSponsorUnavailable, resp.StatusCode, message)
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: malformed proxy response: %w", domain.ErrSponsorUnavailable, err)
		}
		return nil
	})
	if err != nil {
		c.logger.WithContext(ctx).WithError(err).WithField("path", path).Warn("Sponsorship proxy call failed")
		return err
	}
	return nil
}

func errorMessage(raw []byte) string {
	var env errorEnvelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Error.Message != "" {
		return env.Error.Message
	}
	return strings.TrimSpace(string(raw))
}
