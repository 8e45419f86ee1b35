// Package notifier delivers new-proposal notifications to signers, either
// through the asynq queue consumed by the worker or directly via webhook.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/vultisig/multisigner/internal/tasks"
	"github.com/vultisig/multisigner/internal/types"
)

// QueueNotifier enqueues a notification task per proposal.
type QueueNotifier struct {
	client   *asynq.Client
	maxRetry int
	timeout  time.Duration
}

func NewQueueNotifier(client *asynq.Client, maxRetry int, timeout time.Duration) *QueueNotifier {
	return &QueueNotifier{
		client:   client,
		maxRetry: maxRetry,
		timeout:  timeout,
	}
}

func (n *QueueNotifier) NotifyProposal(ctx context.Context, signers []string, summary types.ProposalSummary) error {
	task, err := tasks.NewProposalNotification(signers, summary)
	if err != nil {
		return fmt.Errorf("fail to create notification task: %w", err)
	}
	_, err = n.client.EnqueueContext(ctx, task,
		asynq.MaxRetry(n.maxRetry),
		asynq.Timeout(n.timeout),
		asynq.Retention(24*time.Hour),
		asynq.Queue(tasks.QUEUE_NAME))
	if err != nil {
		return fmt.Errorf("fail to enqueue notification task: %w", err)
	}
	return nil
}

// WebhookSender posts notification payloads to a single webhook.
type WebhookSender struct {
	url        string
	client     *http.Client
	maxRetries uint
	logger     *logrus.Logger
}

func NewWebhookSender(url string, timeout time.Duration, maxRetries uint, logger *logrus.Logger) *WebhookSender {
	if maxRetries == 0 {
		maxRetries = 1
	}
	return &WebhookSender{
		url:        url,
		client:     &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// NotifyProposal delivers the notification synchronously.
func (s *WebhookSender) NotifyProposal(ctx context.Context, signers []string, summary types.ProposalSummary) error {
	return s.Send(ctx, tasks.ProposalNotificationPayload{Signers: signers, Proposal: summary})
}

func (s *WebhookSender) Send(ctx context.Context, payload tasks.ProposalNotificationPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("fail to marshal notification: %w", err)
	}

	return retry.Do(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
		if err != nil {
			return retry.Unrecoverable(fmt.Errorf("fail to create request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := s.client.Do(req)
		if err != nil {
			return fmt.Errorf("fail to post notification: %w", err)
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("notification webhook returned status: %d", resp.StatusCode)
		}
		return nil
	},
		retry.Context(ctx),
		retry.Attempts(s.maxRetries),
		retry.Delay(100*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			s.logger.WithFields(logrus.Fields{
				"attempt":     n,
				"error":       err.Error(),
				"proposal_id": payload.Proposal.ID,
			}).Warn("Notification failed, will retry")
		}),
	)
}

// HandleProposalNotification is the asynq handler for tasks.TypeProposalNotification.
func (s *WebhookSender) HandleProposalNotification(ctx context.Context, t *asynq.Task) error {
	var p tasks.ProposalNotificationPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}
	s.logger.WithFields(logrus.Fields{
		"proposal_id": p.Proposal.ID,
		"multisig":    p.Proposal.MultiSigAddress,
		"signers":     len(p.Signers),
	}).Info("Notifying signers")

	if err := s.Send(ctx, p); err != nil {
		return fmt.Errorf("s.Send failed: %w", err)
	}
	return nil
}
