package sealevel

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/Overclock-Validator/stakecore/pkg/accounts"
	"github.com/Overclock-Validator/stakecore/pkg/base58"
	bin "github.com/gagliardetto/binary"
	"github.com/gammazero/deque"
	"k8s.io/klog/v2"
)

const SysvarStakeHistoryAddrStr = "SysvarStakeHistory1111111111111111111111111"

var SysvarStakeHistoryAddr = base58.MustDecodeFromString(SysvarStakeHistoryAddrStr)

// StakeHistoryCapacity is the number of epochs retained by the sysvar.
const StakeHistoryCapacity = 512

var ErrStakeHistoryOutOfOrder = errors.New("ErrStakeHistoryOutOfOrder")

type StakeHistoryEntry struct {
	Effective    uint64
	Activating   uint64
	Deactivating uint64
}

type StakeHistoryPair struct {
	Epoch uint64
	Entry StakeHistoryEntry
}

// StakeHistoryGetter is the read side of the stake history: the cluster-wide
// totals recorded for a completed epoch, or nil if there is no record.
type StakeHistoryGetter interface {
	Get(epoch uint64) *StakeHistoryEntry
}

// SysvarStakeHistory is a bounded ring of per-epoch cluster totals held in
// ascending epoch order. Appending past capacity evicts the oldest epoch.
type SysvarStakeHistory struct {
	entries  *deque.Deque[StakeHistoryPair]
	capacity int
}

func NewStakeHistory() *SysvarStakeHistory {
	return NewStakeHistoryWithCapacity(StakeHistoryCapacity)
}

func NewStakeHistoryWithCapacity(capacity int) *SysvarStakeHistory {
	if capacity <= 0 {
		panic(fmt.Sprintf("stake history capacity must be positive, got %d", capacity))
	}
	return &SysvarStakeHistory{entries: deque.New[StakeHistoryPair](), capacity: capacity}
}

func (sh *SysvarStakeHistory) Len() int {
	return sh.entries.Len()
}

func (sh *SysvarStakeHistory) Capacity() int {
	return sh.capacity
}

// Add appends the totals for epoch. Re-adding the newest epoch replaces its
// entry; adding an older epoch fails with ErrStakeHistoryOutOfOrder. When
// the ring is full the oldest pair is evicted and returned.
func (sh *SysvarStakeHistory) Add(epoch uint64, entry StakeHistoryEntry) (*StakeHistoryPair, error) {
	if sh.entries.Len() != 0 {
		newest := sh.entries.Back()
		if epoch == newest.Epoch {
			sh.entries.Set(sh.entries.Len()-1, StakeHistoryPair{Epoch: epoch, Entry: entry})
			return nil, nil
		}
		if epoch < newest.Epoch {
			return nil, fmt.Errorf("%w: epoch %d after %d", ErrStakeHistoryOutOfOrder, epoch, newest.Epoch)
		}
	}

	sh.entries.PushBack(StakeHistoryPair{Epoch: epoch, Entry: entry})
	if sh.entries.Len() <= sh.capacity {
		return nil, nil
	}

	evicted := sh.entries.PopFront()
	klog.V(2).Infof("stake history full, evicted epoch %d", evicted.Epoch)
	return &evicted, nil
}

// Get finds epoch by binary search over the ascending ring.
func (sh *SysvarStakeHistory) Get(epoch uint64) *StakeHistoryEntry {
	n := sh.entries.Len()
	idx := sort.Search(n, func(i int) bool {
		return sh.entries.At(i).Epoch >= epoch
	})
	if idx == n {
		return nil
	}
	pair := sh.entries.At(idx)
	if pair.Epoch != epoch {
		return nil
	}
	return &pair.Entry
}

// Pairs returns the retained pairs newest first, the sysvar's order.
func (sh *SysvarStakeHistory) Pairs() []StakeHistoryPair {
	n := sh.entries.Len()
	pairs := make([]StakeHistoryPair, 0, n)
	for i := n - 1; i >= 0; i-- {
		pairs = append(pairs, sh.entries.At(i))
	}
	return pairs
}

func (sh *SysvarStakeHistory) UnmarshalWithDecoder(decoder *bin.Decoder) (err error) {
	entriesLen, err := decoder.ReadUint64(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read length of entries when decoding SysvarStakeHistory: %w", err)
	}
	if entriesLen > uint64(sh.capacity) {
		return fmt.Errorf("SysvarStakeHistory holds %d entries, capacity is %d", entriesLen, sh.capacity)
	}

	pairs := make([]StakeHistoryPair, entriesLen)
	for count := range pairs {
		pair := &pairs[count]
		pair.Epoch, err = decoder.ReadUint64(bin.LE)
		if err != nil {
			return fmt.Errorf("failed to read Epoch when decoding SysvarStakeHistory: %w", err)
		}

		pair.Entry.Effective, err = decoder.ReadUint64(bin.LE)
		if err != nil {
			return fmt.Errorf("failed to read Effective when decoding SysvarStakeHistory: %w", err)
		}

		pair.Entry.Activating, err = decoder.ReadUint64(bin.LE)
		if err != nil {
			return fmt.Errorf("failed to read Activating when decoding SysvarStakeHistory: %w", err)
		}

		pair.Entry.Deactivating, err = decoder.ReadUint64(bin.LE)
		if err != nil {
			return fmt.Errorf("failed to read Deactivating when decoding SysvarStakeHistory: %w", err)
		}
	}

	sh.entries.Clear()
	for i := len(pairs) - 1; i >= 0; i-- {
		_, err = sh.Add(pairs[i].Epoch, pairs[i].Entry)
		if err != nil {
			return err
		}
	}
	return nil
}

func (sh *SysvarStakeHistory) MarshalWithEncoder(encoder *bin.Encoder) error {
	pairs := sh.Pairs()
	err := encoder.WriteUint64(uint64(len(pairs)), bin.LE)
	if err != nil {
		return fmt.Errorf("failed to serialize len of StakeHistory: %w", err)
	}

	for _, pair := range pairs {
		for _, v := range []uint64{pair.Epoch, pair.Entry.Effective, pair.Entry.Activating, pair.Entry.Deactivating} {
			err = encoder.WriteUint64(v, bin.LE)
			if err != nil {
				return fmt.Errorf("failed to serialize StakeHistory entry for epoch %d: %w", pair.Epoch, err)
			}
		}
	}
	return nil
}

func ReadStakeHistorySysvar(accts accounts.Accounts) (*SysvarStakeHistory, error) {
	acct, err := accts.GetAccount(&SysvarStakeHistoryAddr)
	if err != nil || acct.Lamports == 0 {
		return nil, InstrErrUnsupportedSysvar
	}

	stakeHistory := NewStakeHistory()
	err = stakeHistory.UnmarshalWithDecoder(bin.NewBinDecoder(acct.Data))
	if err != nil {
		return nil, err
	}
	return stakeHistory, nil
}

func WriteStakeHistorySysvar(accts accounts.Accounts, stakeHistory *SysvarStakeHistory) error {
	data := new(bytes.Buffer)
	err := stakeHistory.MarshalWithEncoder(bin.NewBinEncoder(data))
	if err != nil {
		return err
	}
	return writeSysvarAccount(accts, SysvarStakeHistoryAddr, data.Bytes())
}

// EpochBoundedHistory exposes only epochs that completed before Current.
type EpochBoundedHistory struct {
	Current uint64
	Inner   StakeHistoryGetter
}

func (h EpochBoundedHistory) Get(epoch uint64) *StakeHistoryEntry {
	if epoch >= h.Current || h.Inner == nil {
		return nil
	}
	return h.Inner.Get(epoch)
}
