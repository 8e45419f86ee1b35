// Package chain talks to the REST gateway of the target chain: it submits
// assembled multi-sig transactions and reads balances.
package chain

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

	"github.com/avast/retry-go"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/vultisig/multisigner/internal/types"
)

const (
	broadcastEndpoint = "/txs"
	balanceEndpoint   = "/accounts/%s/balance"

	maxAttempts    = 3
	initialBackoff = 100 * time.Millisecond
)

var errServerSide = errors.New("chain gateway server error")

type broadcastResponse struct {
	TxHash string `json:"tx_hash"`
}

type balanceResponse struct {
	Amount string `json:"amount"`
}

type Client struct {
	logger  *logrus.Logger
	client  *http.Client
	baseURL string
}

func NewClient(baseURL string, timeout time.Duration, logger *logrus.Logger) *Client {
	return &Client{
		logger: logger,
		client: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// Broadcast submits tx and returns the chain's transaction hash. The proposal
// ID is sent as idempotency key so the gateway can drop resubmissions.
func (c *Client) Broadcast(ctx context.Context, tx types.AssembledTransaction) (string, error) {
	body, err := json.Marshal(tx)
	if err != nil {
		return "", fmt.Errorf("fail to marshal transaction: %w", err)
	}

	var resp broadcastResponse
	err = c.do(ctx, "Broadcast", func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+broadcastEndpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", tx.ProposalID)
		return req, nil
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.TxHash == "" {
		return "", fmt.Errorf("chain gateway returned an empty tx hash")
	}

	c.logger.WithFields(logrus.Fields{
		"proposal_id": tx.ProposalID,
		"tx_hash":     resp.TxHash,
	}).Info("Transaction broadcast")
	return resp.TxHash, nil
}

func (c *Client) GetBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	endpoint := c.baseURL + fmt.Sprintf(balanceEndpoint, url.PathEscape(address))

	var resp balanceResponse
	err := c.do(ctx, "GetBalance", func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	}, &resp)
	if err != nil {
		return decimal.Zero, err
	}
	amount, err := decimal.NewFromString(resp.Amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fail to parse balance %q: %w", resp.Amount, err)
	}
	return amount, nil
}

// do retries transport failures and 5xx responses. 4xx responses are final.
func (c *Client) do(ctx context.Context, operation string, newRequest func() (*http.Request, error), out any) error {
	return retry.Do(func() error {
		req, err := newRequest()
		if err != nil {
			return retry.Unrecoverable(fmt.Errorf("fail to create request: %w", err))
		}
		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("fail to reach chain gateway: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}

		if resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("%w: status: %d, body: %s", errServerSide, resp.StatusCode, string(body))
		}
		if resp.StatusCode != http.StatusOK {
			c.logger.WithFields(logrus.Fields{
				"status_code": resp.StatusCode,
				"body":        string(body),
				"operation":   operation,
			}).Error("Chain gateway rejected request")
			return retry.Unrecoverable(fmt.Errorf("chain gateway rejected request, status: %d", resp.StatusCode))
		}

		if err := json.Unmarshal(body, out); err != nil {
			return retry.Unrecoverable(fmt.Errorf("fail to decode response: %w", err))
		}
		return nil
	},
		retry.Context(ctx),
		retry.Attempts(maxAttempts),
		retry.Delay(initialBackoff),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.logger.WithFields(logrus.Fields{
				"attempt":   n,
				"error":     err.Error(),
				"operation": operation,
			}).Warn("Chain request failed, will retry")
		}),
	)
}
