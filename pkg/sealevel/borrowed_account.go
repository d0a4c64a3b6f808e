package sealevel

import (
	"github.com/Overclock-Validator/stakecore/pkg/accounts"
	"github.com/Overclock-Validator/stakecore/pkg/safemath"
	"github.com/gagliardetto/solana-go"
)

type BorrowedAccount struct {
	InstrCtx           *InstructionCtx
	IndexInInstruction uint64
	Account            *accounts.Account
}

func (acct *BorrowedAccount) Key() solana.PublicKey {
	return acct.InstrCtx.Accounts[acct.IndexInInstruction].Pubkey
}

func (acct *BorrowedAccount) Owner() solana.PublicKey {
	return acct.Account.Owner
}

func (acct *BorrowedAccount) Lamports() uint64 {
	return acct.Account.Lamports
}

func (acct *BorrowedAccount) Data() []byte {
	return acct.Account.Data
}

func (acct *BorrowedAccount) IsWritable() bool {
	return acct.InstrCtx.Accounts[acct.IndexInInstruction].IsWritable
}

func (acct *BorrowedAccount) IsOwnedByCurrentProgram() bool {
	return acct.InstrCtx.ProgramId == acct.Owner()
}

func (acct *BorrowedAccount) DataCanBeChanged() error {
	if !acct.IsWritable() {
		return InstrErrReadonlyDataModified
	}
	if !acct.IsOwnedByCurrentProgram() {
		return InstrErrInvalidAccountOwner
	}
	return nil
}

func (acct *BorrowedAccount) setLamports(lamports uint64) error {
	if !acct.IsWritable() {
		return InstrErrReadonlyLamportChange
	}
	acct.Account.Lamports = lamports
	return nil
}

func (acct *BorrowedAccount) CheckedAddLamports(lamports uint64) error {
	balance, err := safemath.CheckedAddU64(acct.Lamports(), lamports)
	if err != nil {
		return InstrErrArithmeticOverflow
	}
	return acct.setLamports(balance)
}

func (acct *BorrowedAccount) CheckedSubLamports(lamports uint64) error {
	balance, err := safemath.CheckedSubU64(acct.Lamports(), lamports)
	if err != nil {
		return InstrErrArithmeticOverflow
	}
	return acct.setLamports(balance)
}

func (acct *BorrowedAccount) StakeState() (*StakeStateV2, error) {
	return unmarshalStakeState(acct.Data())
}

func (acct *BorrowedAccount) SetStakeState(state *StakeStateV2) error {
	err := acct.DataCanBeChanged()
	if err != nil {
		return err
	}
	return writeStakeStateInto(acct.Account.Data, state)
}
