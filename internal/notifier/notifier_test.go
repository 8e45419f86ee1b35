package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vultisig/multisigner/internal/tasks"
	"github.com/vultisig/multisigner/internal/types"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestWebhookSenderRetries(t *testing.T) {
	var calls int32
	var received tasks.ProposalNotificationPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sender := NewWebhookSender(srv.URL, time.Second, 5, quietLogger())
	err := sender.NotifyProposal(context.Background(), []string{"alice", "bob"}, types.ProposalSummary{ID: "p1"})
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, "p1", received.Proposal.ID)
	assert.Equal(t, []string{"alice", "bob"}, received.Signers)
}

func TestWebhookSenderGivesUp(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	sender := NewWebhookSender(srv.URL, time.Second, 2, quietLogger())
	err := sender.NotifyProposal(context.Background(), []string{"alice"}, types.ProposalSummary{ID: "p1"})
	assert.Error(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestHandleProposalNotification(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	sender := NewWebhookSender(srv.URL, time.Second, 1, quietLogger())

	task, err := tasks.NewProposalNotification([]string{"alice"}, types.ProposalSummary{ID: "p1"})
	require.NoError(t, err)
	require.NoError(t, sender.HandleProposalNotification(context.Background(), task))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	bad := asynq.NewTask(tasks.TypeProposalNotification, []byte("{not json"))
	err = sender.HandleProposalNotification(context.Background(), bad)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
