package sealevel

import (
	"bytes"
	"fmt"

	"github.com/Overclock-Validator/stakecore/pkg/accounts"
	"github.com/Overclock-Validator/stakecore/pkg/base58"
	bin "github.com/gagliardetto/binary"
)

const SysvarRentAddrStr = "SysvarRent111111111111111111111111111111111"

var SysvarRentAddr = base58.MustDecodeFromString(SysvarRentAddrStr)

const SysvarRentStructLen = 17

// accountStorageOverhead is charged on top of every account's data length.
const accountStorageOverhead = 128

type SysvarRent struct {
	LamportsPerUint8Year uint64
	ExemptionThreshold   float64
	BurnPercent          byte
}

var DefaultRent = SysvarRent{LamportsPerUint8Year: 3480, ExemptionThreshold: 2.0, BurnPercent: 50}

// MinimumBalance is the balance an account holding dataLen bytes needs to
// be rent exempt.
func (sr *SysvarRent) MinimumBalance(dataLen uint64) uint64 {
	size := accountStorageOverhead + dataLen
	return uint64(float64(size*sr.LamportsPerUint8Year) * sr.ExemptionThreshold)
}

func (sr *SysvarRent) UnmarshalWithDecoder(decoder *bin.Decoder) (err error) {
	sr.LamportsPerUint8Year, err = decoder.ReadUint64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read LamportsPerUint8Year when decoding SysvarRent: %w", err)
	}

	sr.ExemptionThreshold, err = decoder.ReadFloat64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read ExemptionThreshold when decoding SysvarRent: %w", err)
	}

	sr.BurnPercent, err = decoder.ReadByte()
	if err != nil {
		return fmt.Errorf("failed to read BurnPercent when decoding SysvarRent: %w", err)
	}

	return
}

func (sr *SysvarRent) MarshalWithEncoder(encoder *bin.Encoder) error {
	err := encoder.WriteUint64(sr.LamportsPerUint8Year, bin.LE)
	if err != nil {
		return err
	}
	err = encoder.WriteFloat64(sr.ExemptionThreshold, bin.LE)
	if err != nil {
		return err
	}
	return encoder.WriteByte(sr.BurnPercent)
}

func ReadRentSysvar(accts accounts.Accounts) (SysvarRent, error) {
	var rent SysvarRent
	rentAcct, err := accts.GetAccount(&SysvarRentAddr)
	if err != nil {
		return rent, InstrErrUnsupportedSysvar
	}

	err = rent.UnmarshalWithDecoder(bin.NewBinDecoder(rentAcct.Data))
	return rent, err
}

func WriteRentSysvar(accts accounts.Accounts, rent SysvarRent) error {
	data := new(bytes.Buffer)
	err := rent.MarshalWithEncoder(bin.NewBinEncoder(data))
	if err != nil {
		return err
	}
	return writeSysvarAccount(accts, SysvarRentAddr, data.Bytes())
}
