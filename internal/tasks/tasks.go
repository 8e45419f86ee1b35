package tasks

import "github.com/vultisig/multisigner/internal/types"

const QUEUE_NAME = "multisigner"

const (
	TypeProposalNotification = "proposal:notify"
)

// ProposalNotificationPayload tells the signers of a multi-sig that a new
// proposal is waiting for their signature.
type ProposalNotificationPayload struct {
	Signers  []string              `json:"signers"`
	Proposal types.ProposalSummary `json:"proposal"`
}
