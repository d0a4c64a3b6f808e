package sealevel

import (
	"bytes"
	"testing"

	"github.com/Overclock-Validator/stakecore/pkg/accounts"
	bin "github.com/gagliardetto/binary"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStakeHistory_AddAndGet(t *testing.T) {
	sh := NewStakeHistory()
	for epoch := uint64(0); epoch < 10; epoch += 2 {
		evicted, err := sh.Add(epoch, StakeHistoryEntry{Effective: epoch * 100})
		require.NoError(t, err)
		assert.Nil(t, evicted)
	}

	assert.Equal(t, 5, sh.Len())
	assert.Equal(t, uint64(400), sh.Get(4).Effective)
	assert.Nil(t, sh.Get(5))
	assert.Nil(t, sh.Get(100))
}

// The TestStakeHistory_EvictsOldest function tests that the ring never grows
// past its capacity and drops the oldest epoch first.
func TestStakeHistory_EvictsOldest(t *testing.T) {
	sh := NewStakeHistoryWithCapacity(3)
	for epoch := uint64(1); epoch <= 3; epoch++ {
		_, err := sh.Add(epoch, StakeHistoryEntry{Effective: epoch})
		require.NoError(t, err)
	}

	evicted, err := sh.Add(4, StakeHistoryEntry{Effective: 4})
	require.NoError(t, err)
	require.NotNil(t, evicted)
	assert.Equal(t, uint64(1), evicted.Epoch)
	assert.Equal(t, 3, sh.Len())
	assert.Nil(t, sh.Get(1))
	assert.NotNil(t, sh.Get(4))
}

func TestStakeHistory_OutOfOrder(t *testing.T) {
	sh := NewStakeHistory()
	_, err := sh.Add(5, StakeHistoryEntry{Effective: 1})
	require.NoError(t, err)

	_, err = sh.Add(4, StakeHistoryEntry{})
	assert.ErrorIs(t, err, ErrStakeHistoryOutOfOrder)

	// the newest epoch may be rewritten
	_, err = sh.Add(5, StakeHistoryEntry{Effective: 2})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), sh.Get(5).Effective)
	assert.Equal(t, 1, sh.Len())
}

func TestStakeHistory_SysvarRoundTrip(t *testing.T) {
	sh := NewStakeHistory()
	for epoch := uint64(10); epoch < 13; epoch++ {
		_, err := sh.Add(epoch, StakeHistoryEntry{Effective: epoch, Activating: epoch + 1, Deactivating: epoch + 2})
		require.NoError(t, err)
	}

	buf := new(bytes.Buffer)
	require.NoError(t, sh.MarshalWithEncoder(bin.NewBinEncoder(buf)))
	data := buf.Bytes()
	assert.Len(t, data, 8+3*32)
	// the sysvar stores the newest epoch first
	assert.Equal(t, byte(12), data[8])

	accts := accounts.NewMemAccounts()
	require.NoError(t, WriteStakeHistorySysvar(accts, sh))

	decoded, err := ReadStakeHistorySysvar(accts)
	require.NoError(t, err)
	assert.Equal(t, sh.Pairs(), decoded.Pairs())
	assert.Equal(t, uint64(12), decoded.Get(11).Deactivating)
}

func TestStakeHistory_SysvarMissing(t *testing.T) {
	_, err := ReadStakeHistorySysvar(accounts.NewMemAccounts())
	assert.ErrorIs(t, err, InstrErrUnsupportedSysvar)
}

func TestEpochBoundedHistory(t *testing.T) {
	sh := NewStakeHistory()
	for epoch := uint64(0); epoch < 5; epoch++ {
		_, err := sh.Add(epoch, StakeHistoryEntry{Effective: 1})
		require.NoError(t, err)
	}

	bounded := EpochBoundedHistory{Current: 3, Inner: sh}
	assert.NotNil(t, bounded.Get(2))
	assert.Nil(t, bounded.Get(3))
	assert.Nil(t, bounded.Get(4))

	assert.Nil(t, EpochBoundedHistory{Current: 10}.Get(1))
}
