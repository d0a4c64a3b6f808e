package sealevel

import (
	"github.com/Overclock-Validator/stakecore/pkg/accounts"
	"github.com/Overclock-Validator/stakecore/pkg/base58"
)

var SysvarOwnerAddr = base58.MustDecodeFromString("Sysvar1111111111111111111111111111111111111")

// writeSysvarAccount stores data under addr, creating the sysvar account
// with a single lamport if it does not exist yet.
func writeSysvarAccount(accts accounts.Accounts, addr [32]byte, data []byte) error {
	acct, err := accts.GetAccount(&addr)
	if err != nil {
		acct = &accounts.Account{Lamports: 1, Owner: SysvarOwnerAddr}
	}
	acct.Data = data
	return accts.SetAccount(&addr, acct)
}
