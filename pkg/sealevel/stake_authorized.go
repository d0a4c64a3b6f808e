package sealevel

import (
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/samber/lo"
)

const (
	StakeAuthorizeStaker = iota
	StakeAuthorizeWithdrawer
)

// IsInForce reports whether the lockup still restricts the account at
// clock. A lockup without a custodian never does, and a supplied custodian
// equal to the lockup's custodian lifts it.
func (lockup *StakeLockup) IsInForce(clock *SysvarClock, custodian *solana.PublicKey) bool {
	if lockup.Custodian.IsZero() {
		return false
	}
	if custodian != nil && *custodian == lockup.Custodian {
		return false
	}
	return lockup.UnixTimestamp > clock.UnixTimestamp || lockup.Epoch > clock.Epoch
}

// Check fails with InstrErrMissingRequiredSignature unless the holder of
// the given role is among signers.
func (authorized *Authorized) Check(signers []solana.PublicKey, stakeAuthorize uint32) error {
	switch stakeAuthorize {
	case StakeAuthorizeStaker:
		if lo.Contains(signers, authorized.Staker) {
			return nil
		}
	case StakeAuthorizeWithdrawer:
		if lo.Contains(signers, authorized.Withdrawer) {
			return nil
		}
	}
	return InstrErrMissingRequiredSignature
}

// Authorize replaces the holder of a role. The staker may be replaced by
// either current authority; replacing the withdrawer while the lockup is in
// force also needs the custodian to sign.
func (authorized *Authorized) Authorize(signers []solana.PublicKey, newAuthorized solana.PublicKey, stakeAuthorize uint32, lockup *StakeLockup, clock *SysvarClock, custodian *solana.PublicKey) error {
	switch stakeAuthorize {
	case StakeAuthorizeStaker:
		if !lo.Contains(signers, authorized.Staker) && !lo.Contains(signers, authorized.Withdrawer) {
			return InstrErrMissingRequiredSignature
		}
		authorized.Staker = newAuthorized

	case StakeAuthorizeWithdrawer:
		if lockup.IsInForce(clock, nil) {
			if custodian == nil {
				return StakeErrCustodianMissing
			}
			if !lo.Contains(signers, *custodian) {
				return StakeErrCustodianSignatureMissing
			}
			if lockup.IsInForce(clock, custodian) {
				return StakeErrLockupInForce
			}
		}

		err := authorized.Check(signers, StakeAuthorizeWithdrawer)
		if err != nil {
			return err
		}
		authorized.Withdrawer = newAuthorized

	default:
		return InstrErrInvalidInstructionData
	}

	return nil
}

type StakeLockupArgs struct {
	UnixTimestamp *int64
	Epoch         *uint64
	Custodian     *solana.PublicKey
}

// SetLockup applies the set fields of args. While the current lockup is in
// force only its custodian may change it; otherwise the withdrawer must sign.
func (meta *Meta) SetLockup(args *StakeLockupArgs, signers []solana.PublicKey, clock *SysvarClock) error {
	if meta.Lockup.IsInForce(clock, nil) {
		if !lo.Contains(signers, meta.Lockup.Custodian) {
			return InstrErrMissingRequiredSignature
		}
	} else if !lo.Contains(signers, meta.Authorized.Withdrawer) {
		return InstrErrMissingRequiredSignature
	}

	if args.UnixTimestamp != nil {
		meta.Lockup.UnixTimestamp = *args.UnixTimestamp
	}
	if args.Epoch != nil {
		meta.Lockup.Epoch = *args.Epoch
	}
	if args.Custodian != nil {
		meta.Lockup.Custodian = *args.Custodian
	}
	return nil
}

func (args *StakeLockupArgs) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	return args.unmarshal(decoder, true)
}

func (args *StakeLockupArgs) unmarshal(decoder *bin.Decoder, withCustodian bool) error {
	timestampExists, err := decoder.ReadBool()
	if err != nil {
		return err
	}
	if timestampExists {
		ts, err := decoder.ReadInt64(bin.LE)
		if err != nil {
			return err
		}
		args.UnixTimestamp = &ts
	}

	epochExists, err := decoder.ReadBool()
	if err != nil {
		return err
	}
	if epochExists {
		epoch, err := decoder.ReadUint64(bin.LE)
		if err != nil {
			return err
		}
		args.Epoch = &epoch
	}

	if !withCustodian {
		return nil
	}

	custodianExists, err := decoder.ReadBool()
	if err != nil {
		return err
	}
	if custodianExists {
		var pk solana.PublicKey
		err = readPubkey(decoder, &pk)
		if err != nil {
			return err
		}
		args.Custodian = &pk
	}

	return nil
}

func (args *StakeLockupArgs) MarshalWithEncoder(encoder *bin.Encoder) error {
	return args.marshal(encoder, true)
}

func (args *StakeLockupArgs) marshal(encoder *bin.Encoder, withCustodian bool) error {
	err := encoder.WriteBool(args.UnixTimestamp != nil)
	if err != nil {
		return err
	}
	if args.UnixTimestamp != nil {
		err = encoder.WriteInt64(*args.UnixTimestamp, bin.LE)
		if err != nil {
			return err
		}
	}

	err = encoder.WriteBool(args.Epoch != nil)
	if err != nil {
		return err
	}
	if args.Epoch != nil {
		err = encoder.WriteUint64(*args.Epoch, bin.LE)
		if err != nil {
			return err
		}
	}

	if !withCustodian {
		return nil
	}

	err = encoder.WriteBool(args.Custodian != nil)
	if err != nil {
		return err
	}
	if args.Custodian != nil {
		return encoder.WriteBytes(args.Custodian[:], false)
	}
	return nil
}
