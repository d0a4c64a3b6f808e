package accounts

type MemAccounts struct {
	Map map[[32]byte]*Account
}

func NewMemAccounts() MemAccounts {
	return MemAccounts{
		Map: make(map[[32]byte]*Account),
	}
}

// GetAccount returns a copy of the stored account so that callers can
// mutate it freely before writing it back with SetAccount.
func (m MemAccounts) GetAccount(pubkey *[32]byte) (*Account, error) {
	acc, ok := m.Map[*pubkey]
	if !ok {
		return nil, ErrNoAccount
	}
	return acc.Clone(), nil
}

func (m MemAccounts) SetAccount(pubkey *[32]byte, acc *Account) error {
	m.Map[*pubkey] = acc.Clone()
	return nil
}
