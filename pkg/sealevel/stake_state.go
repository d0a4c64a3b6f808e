package sealevel

import (
	"bytes"
	"math"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

const (
	StakeStateV2Size = 200
)

const (
	StakeStateV2StatusUninitialized = iota
	StakeStateV2StatusInitialized
	StakeStateV2StatusStake
	StakeStateV2StatusRewardsPool
)

// DeactivationEpochNone marks a delegation that is not deactivating. The
// same value in ActivationEpoch marks a bootstrap delegation.
const DeactivationEpochNone = uint64(math.MaxUint64)

type Authorized struct {
	Staker     solana.PublicKey
	Withdrawer solana.PublicKey
}

type StakeLockup struct {
	UnixTimestamp int64
	Epoch         uint64
	Custodian     solana.PublicKey
}

type Meta struct {
	RentExemptReserve uint64
	Authorized        Authorized
	Lockup            StakeLockup
}

type Delegation struct {
	VoterPubkey       solana.PublicKey
	StakeLamports     uint64
	ActivationEpoch   uint64
	DeactivationEpoch uint64
	// deprecated, carried through encode/decode unchanged
	WarmupCooldownRate float64
}

type Stake struct {
	Delegation      Delegation
	CreditsObserved uint64
}

const StakeFlagsMustFullyActivateBeforeDeactivationIsPermitted = 1

type StakeFlags struct {
	Bits byte
}

func (flags StakeFlags) Contains(other StakeFlags) bool {
	return flags.Bits&other.Bits == other.Bits
}

func (flags StakeFlags) Union(other StakeFlags) StakeFlags {
	return StakeFlags{Bits: flags.Bits | other.Bits}
}

func (flags *StakeFlags) Remove(other StakeFlags) {
	flags.Bits &^= other.Bits
}

func (flags StakeFlags) IsEmpty() bool {
	return flags.Bits == 0
}

var StakeFlagsEmpty = StakeFlags{}
var StakeFlagsMustFullyActivate = StakeFlags{Bits: StakeFlagsMustFullyActivateBeforeDeactivationIsPermitted}

type StakeStateV2Initialized struct {
	Meta Meta
}

type StakeStateV2Stake struct {
	Meta       Meta
	Stake      Stake
	StakeFlags StakeFlags
}

// StakeStateV2 is the persisted stake record. Only the payload matching
// Status is meaningful.
type StakeStateV2 struct {
	Status      uint32
	Initialized StakeStateV2Initialized
	Stake       StakeStateV2Stake
}

func NewInitializedStakeState(meta Meta) *StakeStateV2 {
	return &StakeStateV2{Status: StakeStateV2StatusInitialized, Initialized: StakeStateV2Initialized{Meta: meta}}
}

func NewDelegatedStakeState(meta Meta, stake Stake, flags StakeFlags) *StakeStateV2 {
	return &StakeStateV2{Status: StakeStateV2StatusStake, Stake: StakeStateV2Stake{Meta: meta, Stake: stake, StakeFlags: flags}}
}

// Meta returns the metadata of an Initialized or Stake record.
func (state *StakeStateV2) Meta() (Meta, bool) {
	switch state.Status {
	case StakeStateV2StatusInitialized:
		return state.Initialized.Meta, true
	case StakeStateV2StatusStake:
		return state.Stake.Meta, true
	default:
		return Meta{}, false
	}
}

func readPubkey(decoder *bin.Decoder, pk *solana.PublicKey) error {
	b, err := decoder.ReadBytes(solana.PublicKeyLength)
	if err != nil {
		return err
	}
	copy(pk[:], b)
	return nil
}

func (authorized *Authorized) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	err := readPubkey(decoder, &authorized.Staker)
	if err != nil {
		return err
	}
	return readPubkey(decoder, &authorized.Withdrawer)
}

func (authorized *Authorized) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := encoder.WriteBytes(authorized.Staker[:], false)
	if err != nil {
		return err
	}
	return encoder.WriteBytes(authorized.Withdrawer[:], false)
}

func (lockup *StakeLockup) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	lockup.UnixTimestamp, err = decoder.ReadInt64(bin.LE)
	if err != nil {
		return err
	}

	lockup.Epoch, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}

	return readPubkey(decoder, &lockup.Custodian)
}

func (lockup *StakeLockup) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := encoder.WriteInt64(lockup.UnixTimestamp, bin.LE)
	if err != nil {
		return err
	}

	err = encoder.WriteUint64(lockup.Epoch, bin.LE)
	if err != nil {
		return err
	}

	return encoder.WriteBytes(lockup.Custodian[:], false)
}

func (meta *Meta) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var err error
	meta.RentExemptReserve, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}

	err = meta.Authorized.UnmarshalWithDecoder(decoder)
	if err != nil {
		return err
	}

	return meta.Lockup.UnmarshalWithDecoder(decoder)
}

func (meta *Meta) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := encoder.WriteUint64(meta.RentExemptReserve, bin.LE)
	if err != nil {
		return err
	}

	err = meta.Authorized.MarshalWithEncoder(encoder)
	if err != nil {
		return err
	}

	return meta.Lockup.MarshalWithEncoder(encoder)
}

func (delegation *Delegation) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	err := readPubkey(decoder, &delegation.VoterPubkey)
	if err != nil {
		return err
	}

	delegation.StakeLamports, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}

	delegation.ActivationEpoch, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}

	delegation.DeactivationEpoch, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}

	delegation.WarmupCooldownRate, err = decoder.ReadFloat64(bin.LE)
	return err
}

func (delegation *Delegation) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := encoder.WriteBytes(delegation.VoterPubkey[:], false)
	if err != nil {
		return err
	}

	err = encoder.WriteUint64(delegation.StakeLamports, bin.LE)
	if err != nil {
		return err
	}

	err = encoder.WriteUint64(delegation.ActivationEpoch, bin.LE)
	if err != nil {
		return err
	}

	err = encoder.WriteUint64(delegation.DeactivationEpoch, bin.LE)
	if err != nil {
		return err
	}

	return encoder.WriteFloat64(delegation.WarmupCooldownRate, bin.LE)
}

func (stake *Stake) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	err := stake.Delegation.UnmarshalWithDecoder(decoder)
	if err != nil {
		return err
	}

	stake.CreditsObserved, err = decoder.ReadUint64(bin.LE)
	return err
}

func (stake *Stake) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := stake.Delegation.MarshalWithEncoder(encoder)
	if err != nil {
		return err
	}
	return encoder.WriteUint64(stake.CreditsObserved, bin.LE)
}

func (state *StakeStateV2) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	status, err := decoder.ReadUint32(bin.LE)
	if err != nil {
		return err
	}
	state.Status = status

	switch status {
	case StakeStateV2StatusUninitialized, StakeStateV2StatusRewardsPool:
		// nothing to deserialize

	case StakeStateV2StatusInitialized:
		err = state.Initialized.Meta.UnmarshalWithDecoder(decoder)

	case StakeStateV2StatusStake:
		err = state.Stake.Meta.UnmarshalWithDecoder(decoder)
		if err != nil {
			return err
		}
		err = state.Stake.Stake.UnmarshalWithDecoder(decoder)
		if err != nil {
			return err
		}
		state.Stake.StakeFlags.Bits, err = decoder.ReadByte()

	default:
		err = InstrErrInvalidAccountData
	}

	return err
}

func (state *StakeStateV2) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := encoder.WriteUint32(state.Status, bin.LE)
	if err != nil {
		return err
	}

	switch state.Status {
	case StakeStateV2StatusUninitialized, StakeStateV2StatusRewardsPool:
		return nil

	case StakeStateV2StatusInitialized:
		return state.Initialized.Meta.MarshalWithEncoder(encoder)

	case StakeStateV2StatusStake:
		err = state.Stake.Meta.MarshalWithEncoder(encoder)
		if err != nil {
			return err
		}
		err = state.Stake.Stake.MarshalWithEncoder(encoder)
		if err != nil {
			return err
		}
		return encoder.WriteByte(state.Stake.StakeFlags.Bits)

	default:
		return InstrErrInvalidAccountData
	}
}

func unmarshalStakeState(data []byte) (*StakeStateV2, error) {
	state := new(StakeStateV2)
	decoder := bin.NewBinDecoder(data)

	err := state.UnmarshalWithDecoder(decoder)
	if err != nil {
		return nil, InstrErrInvalidAccountData
	}
	return state, nil
}

// encodeStakeState returns the minimal encoding of state, without padding.
func encodeStakeState(state *StakeStateV2) ([]byte, error) {
	buf := new(bytes.Buffer)
	encoder := bin.NewBinEncoder(buf)

	err := state.MarshalWithEncoder(encoder)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalStakeState decodes a stake account's data. Unknown tags and
// truncated payloads are InstrErrInvalidAccountData.
func UnmarshalStakeState(data []byte) (*StakeStateV2, error) {
	return unmarshalStakeState(data)
}

// MarshalStakeState returns state encoded into a zero-padded
// StakeStateV2Size buffer.
func MarshalStakeState(state *StakeStateV2) ([]byte, error) {
	encoded, err := encodeStakeState(state)
	if err != nil {
		return nil, err
	}
	data := make([]byte, StakeStateV2Size)
	copy(data, encoded)
	return data, nil
}

// writeStakeStateInto overwrites the prefix of data with the encoding of
// state. Bytes beyond the encoding are left as they were.
func writeStakeStateInto(data []byte, state *StakeStateV2) error {
	encoded, err := encodeStakeState(state)
	if err != nil {
		return err
	}
	if len(encoded) > len(data) {
		return InstrErrAccountDataTooSmall
	}
	copy(data, encoded)
	return nil
}
