package sealevel

import (
	"math"

	"github.com/Overclock-Validator/stakecore/pkg/safemath"
)

const (
	DefaultWarmupCooldownRate = 0.25
	NewWarmupCooldownRate     = 0.09
)

// WarmupCooldownRate is the fraction of the cluster's effective stake that
// may activate or deactivate during epoch. A nil newRateActivationEpoch
// means the lower rate never takes effect.
func WarmupCooldownRate(epoch uint64, newRateActivationEpoch *uint64) float64 {
	if newRateActivationEpoch == nil || epoch < *newRateActivationEpoch {
		return DefaultWarmupCooldownRate
	}
	return NewWarmupCooldownRate
}

type StakeActivationStatus struct {
	Effective    uint64
	Activating   uint64
	Deactivating uint64
}

func (status StakeActivationStatus) IsZero() bool {
	return status.Effective == 0 && status.Activating == 0 && status.Deactivating == 0
}

// f64ToU64 truncates towards zero, saturating at the bounds of uint64.
func f64ToU64(f float64) uint64 {
	switch {
	case math.IsNaN(f) || f <= 0:
		return 0
	case f >= math.MaxUint64:
		return math.MaxUint64
	default:
		return uint64(f)
	}
}

func (delegation *Delegation) IsBootstrap() bool {
	return delegation.ActivationEpoch == math.MaxUint64
}

// Stake returns the effective stake of the delegation at epoch.
func (delegation *Delegation) Stake(epoch uint64, history StakeHistoryGetter, newRateActivationEpoch *uint64) uint64 {
	return delegation.StakeActivatingAndDeactivating(epoch, history, newRateActivationEpoch).Effective
}

// stakeAndActivating walks the cluster history forward from the activation
// epoch. Each epoch the delegation receives its share of the newly
// effective cluster stake, in proportion to its part of the cluster's
// activating stake.
func (delegation *Delegation) stakeAndActivating(targetEpoch uint64, history StakeHistoryGetter, newRateActivationEpoch *uint64) (uint64, uint64) {
	delegatedStake := delegation.StakeLamports

	switch {
	case delegation.IsBootstrap():
		return delegatedStake, 0
	case delegation.ActivationEpoch == delegation.DeactivationEpoch:
		// activated and deactivated in the same epoch
		return 0, 0
	case targetEpoch == delegation.ActivationEpoch:
		return 0, delegatedStake
	case targetEpoch < delegation.ActivationEpoch:
		return 0, 0
	}

	prevEpoch := delegation.ActivationEpoch
	prevClusterStake := history.Get(prevEpoch)
	if prevClusterStake == nil {
		// the activation epoch is older than the retained history, so the
		// delegation has long since fully warmed up
		return delegatedStake, 0
	}

	var currentEffectiveStake uint64
	for {
		currentEpoch := prevEpoch + 1
		if prevClusterStake.Activating == 0 {
			break
		}

		remainingActivatingStake := delegatedStake - currentEffectiveStake
		weight := float64(remainingActivatingStake) / float64(prevClusterStake.Activating)
		rate := WarmupCooldownRate(currentEpoch, newRateActivationEpoch)

		newlyEffectiveClusterStake := float64(prevClusterStake.Effective) * rate
		newlyEffectiveStake := max(f64ToU64(weight*newlyEffectiveClusterStake), 1)

		currentEffectiveStake += newlyEffectiveStake
		if currentEffectiveStake >= delegatedStake {
			currentEffectiveStake = delegatedStake
			break
		}

		if currentEpoch >= targetEpoch || currentEpoch >= delegation.DeactivationEpoch {
			break
		}

		prevEpoch = currentEpoch
		prevClusterStake = history.Get(currentEpoch)
		if prevClusterStake == nil {
			break
		}
	}

	return currentEffectiveStake, delegatedStake - currentEffectiveStake
}

// StakeActivatingAndDeactivating computes the effective, activating and
// deactivating parts of the delegation at targetEpoch. While cooling down,
// Deactivating is the stake that is still effective and on its way out.
func (delegation *Delegation) StakeActivatingAndDeactivating(targetEpoch uint64, history StakeHistoryGetter, newRateActivationEpoch *uint64) StakeActivationStatus {
	if history == nil {
		history = EpochBoundedHistory{}
	}
	effectiveStake, activatingStake := delegation.stakeAndActivating(targetEpoch, history, newRateActivationEpoch)

	if targetEpoch < delegation.DeactivationEpoch {
		return StakeActivationStatus{Effective: effectiveStake, Activating: activatingStake}
	}
	if targetEpoch == delegation.DeactivationEpoch {
		return StakeActivationStatus{Effective: effectiveStake, Deactivating: effectiveStake}
	}

	prevEpoch := delegation.DeactivationEpoch
	prevClusterStake := history.Get(prevEpoch)
	if prevClusterStake == nil {
		// no record of the deactivation epoch, it has fully cooled down
		return StakeActivationStatus{}
	}

	currentEffectiveStake := effectiveStake
	for {
		currentEpoch := prevEpoch + 1
		if prevClusterStake.Deactivating == 0 {
			break
		}

		weight := float64(currentEffectiveStake) / float64(prevClusterStake.Deactivating)
		rate := WarmupCooldownRate(currentEpoch, newRateActivationEpoch)

		newlyNotEffectiveClusterStake := float64(prevClusterStake.Effective) * rate
		newlyNotEffectiveStake := max(f64ToU64(weight*newlyNotEffectiveClusterStake), 1)

		currentEffectiveStake = safemath.SaturatingSubU64(currentEffectiveStake, newlyNotEffectiveStake)
		if currentEffectiveStake == 0 {
			break
		}

		if currentEpoch >= targetEpoch {
			break
		}

		prevEpoch = currentEpoch
		prevClusterStake = history.Get(currentEpoch)
		if prevClusterStake == nil {
			break
		}
	}

	return StakeActivationStatus{Effective: currentEffectiveStake, Deactivating: currentEffectiveStake}
}
