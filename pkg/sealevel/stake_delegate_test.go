package sealevel

import (
	"testing"

	"github.com/Overclock-Validator/stakecore/pkg/features"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinimumDelegation(t *testing.T) {
	f := features.NewFeaturesDefault()
	assert.Equal(t, uint64(1), MinimumDelegation(f, 0))

	f.EnableFeature(features.StakeRaiseMinimumDelegationTo1Sol, 0)
	assert.Equal(t, uint64(1_000_000_000), MinimumDelegation(f, 0))
}

func TestMinimumDelegation_FutureActivation(t *testing.T) {
	f := features.NewFeaturesDefault()
	f.EnableFeature(features.StakeRaiseMinimumDelegationTo1Sol, 50)
	assert.Equal(t, uint64(1), MinimumDelegation(f, 10))
	assert.Equal(t, uint64(1_000_000_000), MinimumDelegation(f, 50))
}

func TestNewRateActivationEpoch(t *testing.T) {
	f := features.NewFeaturesDefault()
	assert.Nil(t, NewRateActivationEpoch(f))

	f.EnableFeature(features.ReduceStakeWarmupCooldown, 42)
	epoch := NewRateActivationEpoch(f)
	require.NotNil(t, epoch)
	assert.Equal(t, uint64(42), *epoch)
}

func TestValidateDelegatedAmount(t *testing.T) {
	f := features.NewFeaturesDefault()
	meta := &Meta{RentExemptReserve: 2282880}

	amount, err := ValidateDelegatedAmount(2282880+500, meta, f, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), amount)

	_, err = ValidateDelegatedAmount(2282880, meta, f, 0)
	assert.ErrorIs(t, err, StakeErrInsufficientDelegation)

	_, err = ValidateDelegatedAmount(100, meta, f, 0)
	assert.ErrorIs(t, err, StakeErrInsufficientDelegation)

	f.EnableFeature(features.StakeRaiseMinimumDelegationTo1Sol, 5)
	_, err = ValidateDelegatedAmount(2282880+500, meta, f, 5)
	assert.ErrorIs(t, err, StakeErrInsufficientDelegation)
	amount, err = ValidateDelegatedAmount(2282880+500, meta, f, 4)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), amount)
}

func TestStaticVoteCredits(t *testing.T) {
	voter := newTestPubkey(t)
	vc := StaticVoteCredits{voter: 99}

	credits, err := vc.Credits(voter)
	require.NoError(t, err)
	assert.Equal(t, uint64(99), credits)

	_, err = vc.Credits(newTestPubkey(t))
	assert.ErrorIs(t, err, InstrErrInvalidAccountData)
}

func TestRedelegateStake_Inactive(t *testing.T) {
	oldVoter, newVoter := newTestPubkey(t), newTestPubkey(t)
	stake := NewStake(1000, oldVoter, 5, 1)
	stake.Delegation.DeactivationEpoch = 2

	// history has no record of epoch 2, so the stake has fully cooled down
	err := RedelegateStake(&stake, 4000, newVoter, 70, 10, NewStakeHistory(), nil)
	require.NoError(t, err)

	assert.Equal(t, newVoter, stake.Delegation.VoterPubkey)
	assert.Equal(t, uint64(4000), stake.Delegation.StakeLamports)
	assert.Equal(t, uint64(10), stake.Delegation.ActivationEpoch)
	assert.Equal(t, DeactivationEpochNone, stake.Delegation.DeactivationEpoch)
	assert.Equal(t, uint64(70), stake.CreditsObserved)
}

// The TestRedelegateStake_TooSoon function tests that effective stake cannot
// move to a different vote account.
func TestRedelegateStake_TooSoon(t *testing.T) {
	stake := NewStake(1000, newTestPubkey(t), 5, 1)

	err := RedelegateStake(&stake, 1000, newTestPubkey(t), 5, 10, NewStakeHistory(), nil)
	assert.ErrorIs(t, err, StakeErrTooSoonToRedelegate)
}

func TestRedelegateStake_RescindDeactivation(t *testing.T) {
	voter := newTestPubkey(t)
	stake := NewStake(1000, voter, 5, 1)
	require.NoError(t, stake.Deactivate(10))

	err := RedelegateStake(&stake, 9999, voter, 80, 10, NewStakeHistory(), nil)
	require.NoError(t, err)
	assert.Equal(t, DeactivationEpochNone, stake.Delegation.DeactivationEpoch)
	assert.Equal(t, uint64(1000), stake.Delegation.StakeLamports)
	assert.Equal(t, uint64(1), stake.Delegation.ActivationEpoch)
	assert.Equal(t, uint64(5), stake.CreditsObserved)

	// one epoch later the rescind window has passed
	require.NoError(t, stake.Deactivate(10))
	history := newTestHistory(t, map[uint64]StakeHistoryEntry{
		10: {Effective: 1_000_000, Deactivating: 1_000_000_000},
	})
	err = RedelegateStake(&stake, 1000, voter, 80, 11, history, nil)
	assert.ErrorIs(t, err, StakeErrTooSoonToRedelegate)
}

func TestStake_Deactivate(t *testing.T) {
	stake := NewStake(1000, newTestPubkey(t), 0, 1)
	require.NoError(t, stake.Deactivate(4))
	assert.Equal(t, uint64(4), stake.Delegation.DeactivationEpoch)

	assert.ErrorIs(t, stake.Deactivate(5), StakeErrAlreadyDeactivated)
	assert.Equal(t, uint64(4), stake.Delegation.DeactivationEpoch)
}

func TestDeactivateStake_MustFullyActivate(t *testing.T) {
	history := newTestHistory(t, map[uint64]StakeHistoryEntry{
		3: {Effective: 100000, Activating: 10000},
	})
	stake := NewStake(10000, newTestPubkey(t), 0, 3)
	flags := StakeFlagsMustFullyActivate

	err := DeactivateStake(&stake, &flags, 3, history, nil)
	assert.ErrorIs(t, err, StakeErrRedelegatedStakeMustFullyActivateBeforeDeactivationIsPermitted)
	assert.True(t, flags.Contains(StakeFlagsMustFullyActivate))

	// once warmed up the flag is dropped along with the deactivation
	err = DeactivateStake(&stake, &flags, 4, history, nil)
	require.NoError(t, err)
	assert.True(t, flags.IsEmpty())
	assert.Equal(t, uint64(4), stake.Delegation.DeactivationEpoch)
}
