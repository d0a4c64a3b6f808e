package sealevel

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/Overclock-Validator/stakecore/pkg/accounts"
	"github.com/Overclock-Validator/stakecore/pkg/base58"
	bin "github.com/gagliardetto/binary"
)

const SysvarEpochRewardsAddrStr = "SysvarEpochRewards1111111111111111111111111"

var SysvarEpochRewardsAddr = base58.MustDecodeFromString(SysvarEpochRewardsAddrStr)

const SysvarEpochRewardsStructLen = 81

// SysvarEpochRewards tracks the partitioned distribution of epoch rewards.
// Stake accounts are frozen while Active is set.
type SysvarEpochRewards struct {
	DistributionStartingBlockHeight uint64
	NumPartitions                   uint64
	ParentBlockhash                 [32]byte
	TotalPoints                     bin.Uint128
	TotalRewards                    uint64
	DistributedRewards              uint64
	Active                          bool
}

func (ser *SysvarEpochRewards) UnmarshalWithDecoder(decoder *bin.Decoder) (err error) {
	ser.DistributionStartingBlockHeight, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read DistributionStartingBlockHeight when decoding SysvarEpochRewards: %w", err)
	}

	ser.NumPartitions, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read NumPartitions when decoding SysvarEpochRewards: %w", err)
	}

	blockhash, err := decoder.ReadBytes(32)
	if err != nil {
		return fmt.Errorf("failed to read ParentBlockhash when decoding SysvarEpochRewards: %w", err)
	}
	copy(ser.ParentBlockhash[:], blockhash)

	ser.TotalPoints, err = decoder.ReadUint128(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read TotalPoints when decoding SysvarEpochRewards: %w", err)
	}

	ser.TotalRewards, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read TotalRewards when decoding SysvarEpochRewards: %w", err)
	}

	ser.DistributedRewards, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read DistributedRewards when decoding SysvarEpochRewards: %w", err)
	}

	ser.Active, err = decoder.ReadBool()
	if err != nil {
		return fmt.Errorf("failed to read Active when decoding SysvarEpochRewards: %w", err)
	}
	return
}

func (ser *SysvarEpochRewards) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := encoder.WriteUint64(ser.DistributionStartingBlockHeight, bin.LE)
	if err != nil {
		return err
	}
	err = encoder.WriteUint64(ser.NumPartitions, bin.LE)
	if err != nil {
		return err
	}
	err = encoder.WriteBytes(ser.ParentBlockhash[:], false)
	if err != nil {
		return err
	}
	err = encoder.WriteUint128(ser.TotalPoints, bin.LE)
	if err != nil {
		return err
	}
	err = encoder.WriteUint64(ser.TotalRewards, bin.LE)
	if err != nil {
		return err
	}
	err = encoder.WriteUint64(ser.DistributedRewards, bin.LE)
	if err != nil {
		return err
	}
	return encoder.WriteBool(ser.Active)
}

// ReadEpochRewardsSysvar returns the epoch rewards sysvar, or nil if the
// cluster has none. Other failures of the account store are returned.
func ReadEpochRewardsSysvar(accts accounts.Accounts) (*SysvarEpochRewards, error) {
	acct, err := accts.GetAccount(&SysvarEpochRewardsAddr)
	if errors.Is(err, accounts.ErrNoAccount) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	epochRewards := new(SysvarEpochRewards)
	err = epochRewards.UnmarshalWithDecoder(bin.NewBinDecoder(acct.Data))
	if err != nil {
		return nil, err
	}
	return epochRewards, nil
}

func WriteEpochRewardsSysvar(accts accounts.Accounts, epochRewards *SysvarEpochRewards) error {
	data := new(bytes.Buffer)
	err := epochRewards.MarshalWithEncoder(bin.NewBinEncoder(data))
	if err != nil {
		return err
	}
	return writeSysvarAccount(accts, SysvarEpochRewardsAddr, data.Bytes())
}

// epochRewardsActive reports whether reward distribution is in progress,
// either as flagged on the context or as recorded in the sysvar.
func epochRewardsActive(execCtx *ExecutionCtx) (bool, error) {
	if execCtx.EpochRewardsActive {
		return true, nil
	}
	epochRewards, err := ReadEpochRewardsSysvar(execCtx.Accounts)
	if err != nil || epochRewards == nil {
		return false, err
	}
	return epochRewards.Active, nil
}
