package enoki

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/quangdang46/talent-passport/services/sponsorship-proxy/internal/config"
	"github.com/quangdang46/talent-passport/services/sponsorship-proxy/internal/domain"
	"github.com/quangdang46/talent-passport/shared/logging"
	"github.com/quangdang46/talent-passport/shared/metrics"
	"github.com/quangdang46/talent-passport/shared/resilience"
	"github.com/quangdang46/talent-passport/shared/timeout"
)

const (
	upstreamName = "enoki"
	sponsorPath  = "/v1/transaction-blocks/sponsor"
	maxErrorBody = 4096
)

// Client talks to the Enoki sponsored transactions API
type Client struct {
	baseURL    string
	privateKey string
	timeout    time.Duration
	http       *http.Client
	breaker    *resilience.CircuitBreaker
	metrics    *metrics.Metrics
	logger     *logging.Logger
}

// NewClient builds the upstream client. m may be nil.
func NewClient(cfg config.EnokiConfig, m *metrics.Metrics, logger *logging.Logger) *Client {
	breaker := resilience.NewCircuitBreaker(&resilience.CircuitBreakerConfig{
		Name:         upstreamName,
		MaxFailures:  cfg.MaxFailures,
		ResetTimeout: cfg.ResetAfter,
		IsFailure: func(err error) bool {
			return errors.Is(err, domain.ErrUpstreamUnavailable)
		},
		OnStateChange: func(name string, from, to resilience.State) {
			logger.WithFields(map[string]interface{}{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Upstream circuit breaker changed state")
		},
	})

	return &Client{
		baseURL:    strings.TrimRight(cfg.APIURL, "/"),
		privateKey: cfg.PrivateKey,
		timeout:    cfg.Timeout,
		http:       &http.Client{},
		breaker:    breaker,
		metrics:    m,
		logger:     logger,
	}
}

type envelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

func (c *Client) Sponsor(ctx context.Context, req *domain.UpstreamSponsorRequest) (*domain.SponsoredTransaction, error) {
	var out domain.SponsoredTransaction
	if err := c.post(ctx, "sponsor", sponsorPath, req, &out); err != nil {
		return nil, err
	}
	if out.Bytes == "" || out.Digest == "" {
		return nil, &domain.UpstreamError{StatusCode: http.StatusBadGateway, Message: "empty sponsored transaction"}
	}
	return &out, nil
}

func (c *Client) Execute(ctx context.Context, digest, signature string) (*domain.ExecuteResult, error) {
	var out domain.ExecuteResult
	body := map[string]string{"signature": signature}
	if err := c.post(ctx, "execute", sponsorPath+"/"+url.PathEscape(digest), body, &out); err != nil {
		return nil, err
	}
	if out.Digest == "" {
		out.Digest = digest
	}
	return &out, nil
}

// Breaker exposes the circuit state for health reporting
func (c *Client) Breaker() *resilience.CircuitBreaker {
	return c.breaker
}

func (c *Client) post(ctx context.Context, operation, path string, in, out interface{}) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", operation, err)
	}

	start := time.Now()
	err = c.breaker.Execute(ctx, func(ctx context.Context) error {
		return timeout.Run(ctx, upstreamName+"."+operation, c.timeout, func(ctx context.Context) error {
			return c.do(ctx, path, payload, out)
		})
	})
	if timeout.IsTimeout(err) && !errors.Is(err, domain.ErrUpstreamUnavailable) {
		err = fmt.Errorf("%w: %w", domain.ErrUpstreamUnavailable, err)
	}
	elapsed := time.Since(start)
	if c.metrics != nil {
		c.metrics.RecordUpstream(upstreamName, operation, elapsed, err)
	}
	c.logger.WithContext(ctx).Performance(upstreamName+"."+operation, elapsed, map[string]interface{}{
		"success": err == nil,
	})
	if err != nil {
		c.logger.WithContext(ctx).WithError(err).WithField("operation", operation).Warn("Sponsor API call failed")
	}
	return err
}

func (c *Client) do(ctx context.Context, path string, payload []byte, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.privateKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: reading response: %w", domain.ErrUpstreamUnavailable, err)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &domain.UpstreamError{StatusCode: resp.StatusCode, Message: upstreamMessage(env, decodeErr, raw)}
	}
	if decodeErr != nil || len(env.Data) == 0 {
		return &domain.UpstreamError{StatusCode: http.StatusBadGateway, Message: "malformed response"}
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &domain.UpstreamError{StatusCode: http.StatusBadGateway, Message: "malformed response data"}
	}
	return nil
}

func upstreamMessage(env envelope, decodeErr error, raw []byte) string {
	if decodeErr == nil && len(env.Errors) > 0 {
		messages := make([]string, 0, len(env.Errors))
		for _, e := range env.Errors {
			messages = append(messages, e.Message)
		}
		return strings.Join(messages, "; ")
	}
	text := strings.TrimSpace(string(raw))
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody]
	}
	return text
}
