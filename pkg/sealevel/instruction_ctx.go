package sealevel

import (
	"errors"

	"github.com/Overclock-Validator/stakecore/pkg/accounts"
	"github.com/gagliardetto/solana-go"
	"github.com/samber/lo"
)

type InstructionAccount struct {
	Pubkey     solana.PublicKey
	IsSigner   bool
	IsWritable bool
}

// InstructionCtx is one instruction invocation. Accounts borrowed through it
// are staged copies; nothing reaches the account store until commit.
type InstructionCtx struct {
	ProgramId solana.PublicKey
	Accounts  []InstructionAccount
	Data      []byte

	staged map[solana.PublicKey]*accounts.Account
}

func NewInstructionCtx(programId solana.PublicKey, accts []InstructionAccount, data []byte) *InstructionCtx {
	return &InstructionCtx{ProgramId: programId, Accounts: accts, Data: data}
}

func (instrCtx *InstructionCtx) NumberOfInstructionAccounts() uint64 {
	return uint64(len(instrCtx.Accounts))
}

func (instrCtx *InstructionCtx) CheckNumOfInstructionAccounts(expectedAtLeast uint64) error {
	if instrCtx.NumberOfInstructionAccounts() < expectedAtLeast {
		return InstrErrNotEnoughAccountKeys
	}
	return nil
}

func (instrCtx *InstructionCtx) instructionAccount(instrAcctIdx uint64) (*InstructionAccount, error) {
	if instrAcctIdx >= instrCtx.NumberOfInstructionAccounts() {
		return nil, InstrErrNotEnoughAccountKeys
	}
	return &instrCtx.Accounts[instrAcctIdx], nil
}

func (instrCtx *InstructionCtx) KeyOfInstructionAccount(instrAcctIdx uint64) (solana.PublicKey, error) {
	acct, err := instrCtx.instructionAccount(instrAcctIdx)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return acct.Pubkey, nil
}

func (instrCtx *InstructionCtx) IsInstructionAccountSigner(instrAcctIdx uint64) (bool, error) {
	acct, err := instrCtx.instructionAccount(instrAcctIdx)
	if err != nil {
		return false, err
	}
	return acct.IsSigner, nil
}

// Signers returns the distinct keys of all signing instruction accounts.
func (instrCtx *InstructionCtx) Signers() []solana.PublicKey {
	signers := lo.FilterMap(instrCtx.Accounts, func(acct InstructionAccount, _ int) (solana.PublicKey, bool) {
		return acct.Pubkey, acct.IsSigner
	})
	return lo.Uniq(signers)
}

// BorrowInstructionAccount stages the account at instrAcctIdx. Indices that
// name the same key share one staged account.
func (instrCtx *InstructionCtx) BorrowInstructionAccount(execCtx *ExecutionCtx, instrAcctIdx uint64) (*BorrowedAccount, error) {
	instrAcct, err := instrCtx.instructionAccount(instrAcctIdx)
	if err != nil {
		return nil, err
	}

	if instrCtx.staged == nil {
		instrCtx.staged = make(map[solana.PublicKey]*accounts.Account)
	}

	acct, ok := instrCtx.staged[instrAcct.Pubkey]
	if !ok {
		key := [32]byte(instrAcct.Pubkey)
		acct, err = execCtx.Accounts.GetAccount(&key)
		if errors.Is(err, accounts.ErrNoAccount) {
			acct = &accounts.Account{}
		} else if err != nil {
			return nil, err
		}
		instrCtx.staged[instrAcct.Pubkey] = acct
	}

	return &BorrowedAccount{InstrCtx: instrCtx, IndexInInstruction: instrAcctIdx, Account: acct}, nil
}

// commit writes the staged writable accounts back to the store.
func (instrCtx *InstructionCtx) commit(execCtx *ExecutionCtx) error {
	for _, instrAcct := range instrCtx.Accounts {
		acct, ok := instrCtx.staged[instrAcct.Pubkey]
		if !ok || !instrAcct.IsWritable {
			continue
		}
		key := [32]byte(instrAcct.Pubkey)
		err := execCtx.Accounts.SetAccount(&key, acct)
		if err != nil {
			return err
		}
	}
	return nil
}

func (instrCtx *InstructionCtx) discard() {
	instrCtx.staged = nil
}
