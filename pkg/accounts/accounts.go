package accounts

import (
	"errors"
	"slices"
)

var ErrNoAccount = errors.New("ErrNoAccount")

type Accounts interface {
	GetAccount(pubkey *[32]byte) (*Account, error)
	SetAccount(pubkey *[32]byte, acc *Account) error
}

type Account struct {
	Lamports   uint64
	Data       []byte
	Owner      [32]byte
	Executable bool
	RentEpoch  uint64
}

func (a *Account) Clone() *Account {
	c := *a
	c.Data = slices.Clone(a.Data)
	return &c
}
