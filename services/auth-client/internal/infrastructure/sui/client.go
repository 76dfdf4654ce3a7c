package sui

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/quangdang46/talent-passport/services/auth-client/internal/domain"
	"github.com/quangdang46/talent-passport/shared/logging"
	"github.com/quangdang46/talent-passport/shared/resilience"
	"github.com/quangdang46/talent-passport/shared/timeout"
)

const (
	suiCoinType       = "0x2::sui::SUI"
	waitForExecution  = "WaitForLocalExecution"
	statusFailure     = "failure"
	suiAddressByteLen = 32
)

// Client is a Sui JSON-RPC client
type Client struct {
	rpc     *rpc.Client
	timeout time.Duration
	retry   *resilience.RetryConfig
	logger  *logging.Logger
}

// Dial prepares a client; HTTP endpoints connect lazily
func Dial(ctx context.Context, url string, requestTimeout time.Duration, logger *logging.Logger) (*Client, error) {
	if url == "" {
		return nil, domain.ConfigError("SUI_RPC_URL")
	}
	c, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial sui rpc %s: %w", url, err)
	}

	retry := resilience.DefaultRetryConfig()
	retry.RetryableErrors = func(err error) bool {
		return errors.Is(err, domain.ErrChainUnavailable)
	}

	return &Client{rpc: c, timeout: requestTimeout, retry: retry, logger: logger}, nil
}

func (c *Client) Close() {
	c.rpc.Close()
}

type systemState struct {
	Epoch string `json:"epoch"`
}

// CurrentEpoch reads the latest system state
func (c *Client) CurrentEpoch(ctx context.Context) (uint64, error) {
	var state systemState
	err := resilience.RetryWithConfig(ctx, c.retry, func(ctx context.Context) error {
		return c.call(ctx, &state, "suix_getLatestSuiSystemState")
	})
	if err != nil {
		return 0, err
	}
	epoch, err := strconv.ParseUint(state.Epoch, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid epoch %q: %w", state.Epoch, err)
	}
	return epoch, nil
}

type executionStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type executeResponse struct {
	Digest  string `json:"digest"`
	Effects *struct {
		Status executionStatus `json:"status"`
	} `json:"effects"`
}

type executeOptions struct {
	ShowEffects bool `json:"showEffects"`
}

// ExecuteTransaction submits once; a failed execution is reported verbatim and never retried
func (c *Client) ExecuteTransaction(ctx context.Context, txBytes []byte, signatures []string) (*domain.TransactionResult, error) {
	var resp executeResponse
	err := c.call(ctx, &resp, "sui_executeTransactionBlock",
		base64.StdEncoding.EncodeToString(txBytes),
		signatures,
		executeOptions{ShowEffects: true},
		waitForExecution,
	)
	if err != nil {
		var rpcErr rpc.Error
		if errors.As(err, &rpcErr) {
			return nil, &domain.TransactionRejectedError{Reason: rpcErr.Error()}
		}
		return nil, err
	}

	status := "success"
	if resp.Effects != nil {
		status = resp.Effects.Status.Status
		if status == statusFailure {
			return nil, &domain.TransactionRejectedError{Digest: resp.Digest, Reason: resp.Effects.Status.Error}
		}
	}

	c.logger.WithContext(ctx).WithField("digest", resp.Digest).Info("Transaction executed")
	return &domain.TransactionResult{Digest: resp.Digest, Status: status}, nil
}

// GetBalance returns the SUI balance of owner
func (c *Client) GetBalance(ctx context.Context, owner domain.Address) (*domain.Balance, error) {
	raw, err := hexutil.Decode(owner)
	if err != nil || len(raw) != suiAddressByteLen {
		return nil, fmt.Errorf("invalid address %q", owner)
	}

	var balance domain.Balance
	err = resilience.RetryWithConfig(ctx, c.retry, func(ctx context.Context) error {
		return c.call(ctx, &balance, "suix_getBalance", owner, suiCoinType)
	})
	if err != nil {
		return nil, err
	}
	return &balance, nil
}

// call bounds one RPC by the client timeout. Transport failures and timeouts
// wrap ErrChainUnavailable; JSON-RPC errors are returned as-is.
func (c *Client) call(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	err := timeout.Run(ctx, "sui."+method, c.timeout, func(ctx context.Context) error {
		return c.rpc.CallContext(ctx, result, method, args...)
	})
	if err == nil {
		return nil
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return fmt.Errorf("%s: %w", method, err)
	}
	c.logger.WithContext(ctx).WithError(err).WithField("method", method).Warn("Sui RPC call failed")
	return fmt.Errorf("%w: %s: %w", domain.ErrChainUnavailable, method, err)
}
