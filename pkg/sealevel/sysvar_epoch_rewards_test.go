package sealevel

import (
	"errors"
	"testing"

	"github.com/Overclock-Validator/stakecore/pkg/accounts"
	"github.com/Overclock-Validator/stakecore/pkg/features"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errStoreUnavailable = errors.New("account store unavailable")

// failingAccounts serves every account from MemAccounts except the ones in
// broken, whose lookups fail with errStoreUnavailable.
type failingAccounts struct {
	accounts.MemAccounts
	broken map[[32]byte]bool
}

func (f failingAccounts) GetAccount(pubkey *[32]byte) (*accounts.Account, error) {
	if f.broken[*pubkey] {
		return nil, errStoreUnavailable
	}
	return f.MemAccounts.GetAccount(pubkey)
}

func TestReadEpochRewardsSysvar_Absent(t *testing.T) {
	epochRewards, err := ReadEpochRewardsSysvar(accounts.NewMemAccounts())
	require.NoError(t, err)
	assert.Nil(t, epochRewards)
}

func TestReadEpochRewardsSysvar_Active(t *testing.T) {
	accts := accounts.NewMemAccounts()
	require.NoError(t, WriteEpochRewardsSysvar(accts, &SysvarEpochRewards{NumPartitions: 4, TotalRewards: 900, Active: true}))

	epochRewards, err := ReadEpochRewardsSysvar(accts)
	require.NoError(t, err)
	require.NotNil(t, epochRewards)
	assert.True(t, epochRewards.Active)
	assert.Equal(t, uint64(4), epochRewards.NumPartitions)
	assert.Equal(t, uint64(900), epochRewards.TotalRewards)
}

func TestReadEpochRewardsSysvar_StoreFailure(t *testing.T) {
	accts := failingAccounts{
		MemAccounts: accounts.NewMemAccounts(),
		broken:      map[[32]byte]bool{SysvarEpochRewardsAddr: true},
	}

	epochRewards, err := ReadEpochRewardsSysvar(accts)
	assert.ErrorIs(t, err, errStoreUnavailable)
	assert.Nil(t, epochRewards)

	// the instruction fails rather than running as if rewards were idle
	execCtx := NewExecutionCtx(accts, features.NewFeaturesDefault(), StaticVoteCredits{})
	err = StakeProgramExecute(execCtx, NewInstructionCtx(StakeProgramAddr, nil, []byte{5, 0, 0, 0}))
	assert.ErrorIs(t, err, errStoreUnavailable)
}
