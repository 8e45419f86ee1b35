package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/vultisig/multisigner/internal/types"
)

func NewProposalNotification(signers []string, summary types.ProposalSummary) (*asynq.Task, error) {
	payload, err := json.Marshal(ProposalNotificationPayload{Signers: signers, Proposal: summary})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeProposalNotification, payload), nil
}
