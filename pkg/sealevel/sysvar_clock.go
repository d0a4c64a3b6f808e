package sealevel

import (
	"bytes"
	"fmt"

	"github.com/Overclock-Validator/stakecore/pkg/accounts"
	"github.com/Overclock-Validator/stakecore/pkg/base58"
	bin "github.com/gagliardetto/binary"
)

const SysvarClockAddrStr = "SysvarC1ock11111111111111111111111111111111"

var SysvarClockAddr = base58.MustDecodeFromString(SysvarClockAddrStr)

const SysvarClockStructLen = 40

type SysvarClock struct {
	Slot                uint64
	EpochStartTimestamp int64
	Epoch               uint64
	LeaderScheduleEpoch uint64
	UnixTimestamp       int64
}

func (sc *SysvarClock) UnmarshalWithDecoder(decoder *bin.Decoder) (err error) {
	sc.Slot, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read Slot when decoding SysvarClock: %w", err)
	}

	sc.EpochStartTimestamp, err = decoder.ReadInt64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read EpochStartTimestamp when decoding SysvarClock: %w", err)
	}

	sc.Epoch, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read Epoch when decoding SysvarClock: %w", err)
	}

	sc.LeaderScheduleEpoch, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read LeaderScheduleEpoch when decoding SysvarClock: %w", err)
	}

	sc.UnixTimestamp, err = decoder.ReadInt64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read UnixTimestamp when decoding SysvarClock: %w", err)
	}
	return
}

func (sc *SysvarClock) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := encoder.WriteUint64(sc.Slot, bin.LE)
	if err != nil {
		return err
	}
	err = encoder.WriteInt64(sc.EpochStartTimestamp, bin.LE)
	if err != nil {
		return err
	}
	err = encoder.WriteUint64(sc.Epoch, bin.LE)
	if err != nil {
		return err
	}
	err = encoder.WriteUint64(sc.LeaderScheduleEpoch, bin.LE)
	if err != nil {
		return err
	}
	return encoder.WriteInt64(sc.UnixTimestamp, bin.LE)
}

func ReadClockSysvar(accts accounts.Accounts) (SysvarClock, error) {
	var clock SysvarClock
	clockAcct, err := accts.GetAccount(&SysvarClockAddr)
	if err != nil {
		return clock, InstrErrUnsupportedSysvar
	}

	err = clock.UnmarshalWithDecoder(bin.NewBinDecoder(clockAcct.Data))
	return clock, err
}

func WriteClockSysvar(accts accounts.Accounts, clock SysvarClock) error {
	data := new(bytes.Buffer)
	err := clock.MarshalWithEncoder(bin.NewBinEncoder(data))
	if err != nil {
		return err
	}
	return writeSysvarAccount(accts, SysvarClockAddr, data.Bytes())
}
