package sealevel

import (
	"github.com/Overclock-Validator/stakecore/pkg/accounts"
	"github.com/Overclock-Validator/stakecore/pkg/features"
)

// ExecutionCtx carries the collaborators an instruction runs against. Clock,
// rent and stake history are read from their sysvar accounts in Accounts.
type ExecutionCtx struct {
	Accounts    accounts.Accounts
	Features    *features.Features
	VoteCredits VoteCredits

	// EpochRewardsActive is set while partitioned epoch rewards are being
	// distributed; stake accounts are frozen for that period.
	EpochRewardsActive bool

	ReturnData []byte
}

func NewExecutionCtx(accts accounts.Accounts, f *features.Features, voteCredits VoteCredits) *ExecutionCtx {
	if f == nil {
		f = features.NewFeaturesDefault()
	}
	return &ExecutionCtx{Accounts: accts, Features: f, VoteCredits: voteCredits}
}

func (execCtx *ExecutionCtx) SetReturnData(data []byte) {
	execCtx.ReturnData = data
}
