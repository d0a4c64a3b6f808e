package sealevel

import (
	"github.com/Overclock-Validator/stakecore/pkg/features"
	"github.com/Overclock-Validator/stakecore/pkg/safemath"
	"github.com/gagliardetto/solana-go"
)

const lamportsPerSol = 1_000_000_000

// VoteCredits resolves the lifetime credits earned by a vote account.
type VoteCredits interface {
	Credits(votePubkey solana.PublicKey) (uint64, error)
}

// StaticVoteCredits is a fixed table of vote account credits.
type StaticVoteCredits map[solana.PublicKey]uint64

func (vc StaticVoteCredits) Credits(votePubkey solana.PublicKey) (uint64, error) {
	credits, ok := vc[votePubkey]
	if !ok {
		return 0, InstrErrInvalidAccountData
	}
	return credits, nil
}

func MinimumDelegation(f *features.Features, epoch uint64) uint64 {
	if f.IsActive(features.StakeRaiseMinimumDelegationTo1Sol, epoch) {
		return lamportsPerSol
	}
	return 1
}

// NewRateActivationEpoch is the epoch from which the reduced warmup and
// cooldown rate applies, or nil if it never does.
func NewRateActivationEpoch(f *features.Features) *uint64 {
	epoch, ok := f.ActivationEpoch(features.ReduceStakeWarmupCooldown)
	if !ok {
		return nil
	}
	return &epoch
}

// ValidateDelegatedAmount returns the lamports above the rent exempt reserve,
// which must reach the minimum delegation.
func ValidateDelegatedAmount(lamports uint64, meta *Meta, f *features.Features, epoch uint64) (uint64, error) {
	stakeAmount := safemath.SaturatingSubU64(lamports, meta.RentExemptReserve)
	if stakeAmount < MinimumDelegation(f, epoch) {
		return 0, StakeErrInsufficientDelegation
	}
	return stakeAmount, nil
}

func NewStake(stakeLamports uint64, voterPubkey solana.PublicKey, credits uint64, activationEpoch uint64) Stake {
	return Stake{
		Delegation: Delegation{
			VoterPubkey:        voterPubkey,
			StakeLamports:      stakeLamports,
			ActivationEpoch:    activationEpoch,
			DeactivationEpoch:  DeactivationEpochNone,
			WarmupCooldownRate: DefaultWarmupCooldownRate,
		},
		CreditsObserved: credits,
	}
}

// RedelegateStake points an existing stake at voterPubkey. Stake that is
// still effective cannot move; the one exception is re-delegating to the
// same vote account in the epoch a deactivation was requested, which
// rescinds the deactivation and changes nothing else.
func RedelegateStake(stake *Stake, stakeLamports uint64, voterPubkey solana.PublicKey, credits uint64, epoch uint64, history StakeHistoryGetter, newRateActivationEpoch *uint64) error {
	if stake.Delegation.Stake(epoch, history, newRateActivationEpoch) != 0 {
		if stake.Delegation.VoterPubkey == voterPubkey && epoch == stake.Delegation.DeactivationEpoch {
			stake.Delegation.DeactivationEpoch = DeactivationEpochNone
			return nil
		}
		return StakeErrTooSoonToRedelegate
	}

	stake.Delegation.StakeLamports = stakeLamports
	stake.Delegation.ActivationEpoch = epoch
	stake.Delegation.DeactivationEpoch = DeactivationEpochNone
	stake.Delegation.VoterPubkey = voterPubkey
	stake.CreditsObserved = credits
	return nil
}

func (stake *Stake) Deactivate(epoch uint64) error {
	if stake.Delegation.DeactivationEpoch != DeactivationEpochNone {
		return StakeErrAlreadyDeactivated
	}
	stake.Delegation.DeactivationEpoch = epoch
	return nil
}

// DeactivateStake schedules deactivation at epoch. Stake carrying the
// must-fully-activate flag may only deactivate once nothing is activating,
// and the flag is cleared when it does.
func DeactivateStake(stake *Stake, flags *StakeFlags, epoch uint64, history StakeHistoryGetter, newRateActivationEpoch *uint64) error {
	if flags.Contains(StakeFlagsMustFullyActivate) {
		status := stake.Delegation.StakeActivatingAndDeactivating(epoch, history, newRateActivationEpoch)
		if status.Activating != 0 {
			return StakeErrRedelegatedStakeMustFullyActivateBeforeDeactivationIsPermitted
		}
		err := stake.Deactivate(epoch)
		if err != nil {
			return err
		}
		flags.Remove(StakeFlagsMustFullyActivate)
		return nil
	}
	return stake.Deactivate(epoch)
}
