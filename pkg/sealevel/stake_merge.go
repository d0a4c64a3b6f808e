package sealevel

import (
	"github.com/Overclock-Validator/stakecore/pkg/metrics"
	"github.com/Overclock-Validator/stakecore/pkg/safemath"
	"k8s.io/klog/v2"
)

const (
	MergeKindInactive = iota
	MergeKindActivationEpoch
	MergeKindFullyActive
)

// MergeKind is the mergeability class of a stake account at the current
// epoch. It is derived, never persisted.
type MergeKind struct {
	Status     uint32
	Meta       Meta
	Lamports   uint64 // Inactive only
	Stake      Stake  // ActivationEpoch and FullyActive only
	StakeFlags StakeFlags
}

func (kind *MergeKind) String() string {
	switch kind.Status {
	case MergeKindInactive:
		return "Inactive"
	case MergeKindActivationEpoch:
		return "ActivationEpoch"
	case MergeKindFullyActive:
		return "FullyActive"
	default:
		return "Unknown"
	}
}

// ActiveStake returns the delegation of an ActivationEpoch or FullyActive
// account, and nil for an Inactive one.
func (kind *MergeKind) ActiveStake() *Stake {
	if kind.Status == MergeKindInactive {
		return nil
	}
	return &kind.Stake
}

// GetMergeKindIfMergeable classifies a stake record. Records that are part
// way through warming up or cooling down fail with
// StakeErrMergeTransientStake.
func GetMergeKindIfMergeable(state *StakeStateV2, stakeLamports uint64, clock *SysvarClock, history StakeHistoryGetter, newRateActivationEpoch *uint64) (*MergeKind, error) {
	var kind *MergeKind

	switch state.Status {
	case StakeStateV2StatusStake:
		stake := state.Stake
		status := stake.Stake.Delegation.StakeActivatingAndDeactivating(clock.Epoch, history, newRateActivationEpoch)

		switch {
		case status.IsZero():
			kind = &MergeKind{Status: MergeKindInactive, Meta: stake.Meta, Lamports: stakeLamports, StakeFlags: stake.StakeFlags}
		case status.Effective == 0:
			kind = &MergeKind{Status: MergeKindActivationEpoch, Meta: stake.Meta, Stake: stake.Stake, StakeFlags: stake.StakeFlags}
		case status.Activating == 0 && status.Deactivating == 0:
			kind = &MergeKind{Status: MergeKindFullyActive, Meta: stake.Meta, Stake: stake.Stake}
		default:
			klog.V(2).Infof("stake account with transient stake cannot be merged")
			return nil, StakeErrMergeTransientStake
		}

	case StakeStateV2StatusInitialized:
		kind = &MergeKind{Status: MergeKindInactive, Meta: state.Initialized.Meta, Lamports: stakeLamports}

	default:
		return nil, InstrErrInvalidAccountData
	}

	metrics.MergeKindsTotal.WithLabelValues(kind.String()).Inc()
	return kind, nil
}

// MetasCanMerge requires identical authorities and either identical lockups
// or two lockups that have both expired. Rent exempt reserves may differ.
func MetasCanMerge(dest *Meta, source *Meta, clock *SysvarClock) error {
	canMergeLockups := dest.Lockup == source.Lockup ||
		(!dest.Lockup.IsInForce(clock, nil) && !source.Lockup.IsInForce(clock, nil))

	if dest.Authorized == source.Authorized && canMergeLockups {
		return nil
	}

	klog.V(2).Infof("Unable to merge due to metadata mismatch")
	return StakeErrMergeMismatch
}

func ActiveDelegationsCanMerge(dest *Delegation, source *Delegation) error {
	if dest.VoterPubkey != source.VoterPubkey {
		klog.V(2).Infof("Unable to merge due to voter mismatch")
		return StakeErrMergeMismatch
	}

	if dest.DeactivationEpoch == DeactivationEpochNone && source.DeactivationEpoch == DeactivationEpochNone {
		return nil
	}

	klog.V(2).Infof("Unable to merge due to stake deactivation")
	return StakeErrMergeMismatch
}

// Merge folds source into the destination kind. A nil state with a nil
// error means only lamports need to move.
func (kind *MergeKind) Merge(source *MergeKind, clock *SysvarClock) (*StakeStateV2, error) {
	err := MetasCanMerge(&kind.Meta, &source.Meta, clock)
	if err != nil {
		return nil, err
	}

	destStake, sourceStake := kind.ActiveStake(), source.ActiveStake()
	if destStake != nil && sourceStake != nil {
		err = ActiveDelegationsCanMerge(&destStake.Delegation, &sourceStake.Delegation)
		if err != nil {
			return nil, err
		}
	}

	switch {
	case kind.Status == MergeKindInactive && source.Status == MergeKindInactive:
		return nil, nil

	case kind.Status == MergeKindInactive && source.Status == MergeKindActivationEpoch:
		return nil, nil

	case kind.Status == MergeKindActivationEpoch && source.Status == MergeKindInactive:
		stake := kind.Stake
		stake.Delegation.StakeLamports, err = safemath.CheckedAddU64(stake.Delegation.StakeLamports, source.Lamports)
		if err != nil {
			return nil, InstrErrArithmeticOverflow
		}
		return NewDelegatedStakeState(kind.Meta, stake, kind.StakeFlags.Union(source.StakeFlags)), nil

	case kind.Status == MergeKindActivationEpoch && source.Status == MergeKindActivationEpoch:
		sourceLamports, err := safemath.CheckedAddU64(source.Meta.RentExemptReserve, source.Stake.Delegation.StakeLamports)
		if err != nil {
			return nil, InstrErrArithmeticOverflow
		}

		stake := kind.Stake
		err = MergeDelegationStakeAndCreditsObserved(&stake, sourceLamports, source.Stake.CreditsObserved)
		if err != nil {
			return nil, err
		}
		return NewDelegatedStakeState(kind.Meta, stake, kind.StakeFlags.Union(source.StakeFlags)), nil

	case kind.Status == MergeKindFullyActive && source.Status == MergeKindFullyActive:
		// the source's rent exempt reserve stays withdrawable, it is not
		// folded into the delegation
		stake := kind.Stake
		err = MergeDelegationStakeAndCreditsObserved(&stake, source.Stake.Delegation.StakeLamports, source.Stake.CreditsObserved)
		if err != nil {
			return nil, err
		}
		return NewDelegatedStakeState(kind.Meta, stake, StakeFlagsEmpty), nil

	default:
		return nil, StakeErrMergeMismatch
	}
}

// MergeDelegationStakeAndCreditsObserved adds absorbedLamports to the
// delegation and moves its credits observed to the stake-weighted average.
func MergeDelegationStakeAndCreditsObserved(stake *Stake, absorbedLamports uint64, absorbedCredits uint64) error {
	creditsObserved, err := StakeWeightedCreditsObserved(stake, absorbedLamports, absorbedCredits)
	if err != nil {
		return err
	}

	stake.Delegation.StakeLamports, err = safemath.CheckedAddU64(stake.Delegation.StakeLamports, absorbedLamports)
	if err != nil {
		return InstrErrArithmeticOverflow
	}
	stake.CreditsObserved = creditsObserved
	return nil
}

// StakeWeightedCreditsObserved returns
// ceil((credits*stake + absorbedCredits*absorbedLamports) / (stake + absorbedLamports))
// evaluated in 128 bits. Rounding up never leaves the merged account with
// fewer credits than either side.
func StakeWeightedCreditsObserved(stake *Stake, absorbedLamports uint64, absorbedCredits uint64) (uint64, error) {
	if stake.CreditsObserved == absorbedCredits {
		return stake.CreditsObserved, nil
	}

	totalStake, err := safemath.CheckedAddU64(stake.Delegation.StakeLamports, absorbedLamports)
	if err != nil {
		return 0, InstrErrArithmeticOverflow
	}

	var numerator safemath.U128Accumulator
	numerator.AddProduct(stake.CreditsObserved, stake.Delegation.StakeLamports)
	numerator.AddProduct(absorbedCredits, absorbedLamports)
	numerator.AddU64(totalStake)
	numerator.SubU64(1)

	n, err := numerator.Value()
	if err != nil {
		return 0, InstrErrArithmeticOverflow
	}

	creditsObserved, err := safemath.CheckedDivU128ToU64(n, totalStake)
	if err != nil {
		return 0, InstrErrArithmeticOverflow
	}
	return creditsObserved, nil
}
