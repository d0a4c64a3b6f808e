package sealevel

import (
	"bytes"
	"fmt"
	"math/bits"

	"github.com/Overclock-Validator/stakecore/pkg/accounts"
	"github.com/Overclock-Validator/stakecore/pkg/base58"
	bin "github.com/gagliardetto/binary"
)

const SysvarEpochScheduleAddrStr = "SysvarEpochSchedu1e111111111111111111111111"

var SysvarEpochScheduleAddr = base58.MustDecodeFromString(SysvarEpochScheduleAddrStr)

const SysvarEpochScheduleStructLen = 33

// MinimumSlotsPerEpoch is the length of the first epoch of a warmup schedule.
const MinimumSlotsPerEpoch = 32

type SysvarEpochSchedule struct {
	SlotsPerEpoch            uint64
	LeaderScheduleSlotOffset uint64
	Warmup                   bool
	FirstNormalEpoch         uint64
	FirstNormalSlot          uint64
}

// NewEpochSchedule builds a schedule the way genesis does: with warmup,
// epochs double from MinimumSlotsPerEpoch until they reach slotsPerEpoch.
func NewEpochSchedule(slotsPerEpoch uint64, warmup bool) SysvarEpochSchedule {
	schedule := SysvarEpochSchedule{
		SlotsPerEpoch:            slotsPerEpoch,
		LeaderScheduleSlotOffset: slotsPerEpoch,
		Warmup:                   warmup,
	}
	if warmup && slotsPerEpoch > MinimumSlotsPerEpoch {
		nextPow2 := uint64(1) << (64 - bits.LeadingZeros64(slotsPerEpoch-1))
		schedule.FirstNormalEpoch = uint64(bits.TrailingZeros64(nextPow2) - bits.TrailingZeros64(MinimumSlotsPerEpoch))
		schedule.FirstNormalSlot = nextPow2 - MinimumSlotsPerEpoch
	}
	return schedule
}

// GetEpochAndSlotIndex maps slot to its epoch and its offset in that epoch.
func (ses *SysvarEpochSchedule) GetEpochAndSlotIndex(slot uint64) (uint64, uint64) {
	if slot < ses.FirstNormalSlot {
		nextPow2 := uint64(1) << (64 - bits.LeadingZeros64(slot+MinimumSlotsPerEpoch))
		epoch := uint64(bits.TrailingZeros64(nextPow2) - bits.TrailingZeros64(MinimumSlotsPerEpoch) - 1)
		epochLen := uint64(1) << (epoch + uint64(bits.TrailingZeros64(MinimumSlotsPerEpoch)))
		return epoch, slot - (epochLen - MinimumSlotsPerEpoch)
	}

	normalSlotIndex := slot - ses.FirstNormalSlot
	return ses.FirstNormalEpoch + normalSlotIndex/ses.SlotsPerEpoch, normalSlotIndex % ses.SlotsPerEpoch
}

func (ses *SysvarEpochSchedule) GetEpoch(slot uint64) uint64 {
	epoch, _ := ses.GetEpochAndSlotIndex(slot)
	return epoch
}

func (ses *SysvarEpochSchedule) UnmarshalWithDecoder(decoder *bin.Decoder) (err error) {
	ses.SlotsPerEpoch, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read SlotsPerEpoch when decoding SysvarEpochSchedule: %w", err)
	}

	ses.LeaderScheduleSlotOffset, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read LeaderScheduleSlotOffset when decoding SysvarEpochSchedule: %w", err)
	}

	ses.Warmup, err = decoder.ReadBool()
	if err != nil {
		return fmt.Errorf("failed to read Warmup when decoding SysvarEpochSchedule: %w", err)
	}

	ses.FirstNormalEpoch, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read FirstNormalEpoch when decoding SysvarEpochSchedule: %w", err)
	}

	ses.FirstNormalSlot, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read FirstNormalSlot when decoding SysvarEpochSchedule: %w", err)
	}
	return
}

func (ses *SysvarEpochSchedule) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := encoder.WriteUint64(ses.SlotsPerEpoch, bin.LE)
	if err != nil {
		return err
	}
	err = encoder.WriteUint64(ses.LeaderScheduleSlotOffset, bin.LE)
	if err != nil {
		return err
	}
	err = encoder.WriteBool(ses.Warmup)
	if err != nil {
		return err
	}
	err = encoder.WriteUint64(ses.FirstNormalEpoch, bin.LE)
	if err != nil {
		return err
	}
	return encoder.WriteUint64(ses.FirstNormalSlot, bin.LE)
}

func ReadEpochScheduleSysvar(accts accounts.Accounts) (SysvarEpochSchedule, error) {
	var epochSchedule SysvarEpochSchedule
	acct, err := accts.GetAccount(&SysvarEpochScheduleAddr)
	if err != nil {
		return epochSchedule, InstrErrUnsupportedSysvar
	}

	err = epochSchedule.UnmarshalWithDecoder(bin.NewBinDecoder(acct.Data))
	return epochSchedule, err
}

func WriteEpochScheduleSysvar(accts accounts.Accounts, epochSchedule SysvarEpochSchedule) error {
	data := new(bytes.Buffer)
	err := epochSchedule.MarshalWithEncoder(bin.NewBinEncoder(data))
	if err != nil {
		return err
	}
	return writeSysvarAccount(accts, SysvarEpochScheduleAddr, data.Bytes())
}
