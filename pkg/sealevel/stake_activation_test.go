package sealevel

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHistory(t *testing.T, entries map[uint64]StakeHistoryEntry) *SysvarStakeHistory {
	sh := NewStakeHistory()
	for epoch := uint64(0); epoch < 64; epoch++ {
		entry, ok := entries[epoch]
		if !ok {
			continue
		}
		_, err := sh.Add(epoch, entry)
		require.NoError(t, err)
	}
	return sh
}

func TestWarmupCooldownRate(t *testing.T) {
	assert.Equal(t, DefaultWarmupCooldownRate, WarmupCooldownRate(100, nil))

	cutover := uint64(10)
	assert.Equal(t, DefaultWarmupCooldownRate, WarmupCooldownRate(9, &cutover))
	assert.Equal(t, NewWarmupCooldownRate, WarmupCooldownRate(10, &cutover))
	assert.Equal(t, NewWarmupCooldownRate, WarmupCooldownRate(11, &cutover))
}

func TestF64ToU64(t *testing.T) {
	assert.Equal(t, uint64(0), f64ToU64(-1))
	assert.Equal(t, uint64(0), f64ToU64(math.NaN()))
	assert.Equal(t, uint64(12), f64ToU64(12.99))
	assert.Equal(t, uint64(math.MaxUint64), f64ToU64(math.Inf(1)))
}

// The TestStakeActivation_Warmup function tests that a delegation owning all
// of the cluster's activating stake warms up by a quarter of the cluster's
// effective stake each epoch.
func TestStakeActivation_Warmup(t *testing.T) {
	history := newTestHistory(t, map[uint64]StakeHistoryEntry{
		0: {Effective: 10000, Activating: 10000},
		1: {Effective: 12500, Activating: 7500},
		2: {Effective: 15625, Activating: 4375},
		3: {Effective: 19531, Activating: 469},
	})
	delegation := NewStake(10000, newTestPubkey(t), 0, 0).Delegation

	expected := []StakeActivationStatus{
		{Effective: 0, Activating: 10000},
		{Effective: 2500, Activating: 7500},
		{Effective: 5625, Activating: 4375},
		{Effective: 9531, Activating: 469},
		{Effective: 10000, Activating: 0},
		{Effective: 10000, Activating: 0},
	}
	for epoch, want := range expected {
		got := delegation.StakeActivatingAndDeactivating(uint64(epoch), history, nil)
		assert.Equal(t, want, got, "epoch %d", epoch)
	}
}

func TestStakeActivation_ReducedRate(t *testing.T) {
	history := newTestHistory(t, map[uint64]StakeHistoryEntry{
		0: {Effective: 100000, Activating: 10000},
		1: {Effective: 109000, Activating: 1000},
	})
	delegation := NewStake(10000, newTestPubkey(t), 0, 0).Delegation

	cutover := uint64(0)
	assert.Equal(t, StakeActivationStatus{Effective: 9000, Activating: 1000}, delegation.StakeActivatingAndDeactivating(1, history, &cutover))
	assert.Equal(t, StakeActivationStatus{Effective: 10000}, delegation.StakeActivatingAndDeactivating(2, history, &cutover))

	// at the default rate the same cluster activates everything in one epoch
	assert.Equal(t, StakeActivationStatus{Effective: 10000}, delegation.StakeActivatingAndDeactivating(1, history, nil))
}

func TestStakeActivation_Cooldown(t *testing.T) {
	history := newTestHistory(t, map[uint64]StakeHistoryEntry{
		5: {Effective: 20000, Deactivating: 10000},
		6: {Effective: 15000, Deactivating: 5000},
		7: {Effective: 11250, Deactivating: 1250},
	})
	delegation := Delegation{
		VoterPubkey:       newTestPubkey(t),
		StakeLamports:     10000,
		ActivationEpoch:   math.MaxUint64,
		DeactivationEpoch: 5,
	}
	require.True(t, delegation.IsBootstrap())

	expected := map[uint64]StakeActivationStatus{
		4: {Effective: 10000},
		5: {Effective: 10000, Deactivating: 10000},
		6: {Effective: 5000, Deactivating: 5000},
		7: {Effective: 1250, Deactivating: 1250},
		8: {},
	}
	for epoch, want := range expected {
		got := delegation.StakeActivatingAndDeactivating(epoch, history, nil)
		assert.Equal(t, want, got, "epoch %d", epoch)
	}
}

func TestStakeActivation_ActivationEpochWithoutHistory(t *testing.T) {
	delegation := NewStake(1_000_000, newTestPubkey(t), 0, 10).Delegation

	status := delegation.StakeActivatingAndDeactivating(10, EpochBoundedHistory{Current: 10}, nil)
	assert.Equal(t, StakeActivationStatus{Activating: 1_000_000}, status)

	status = delegation.StakeActivatingAndDeactivating(9, nil, nil)
	assert.True(t, status.IsZero())
}

// The TestStakeActivation_MissingHistory function tests the fallbacks used
// when the history has no record for the epochs a delegation spans.
func TestStakeActivation_MissingHistory(t *testing.T) {
	delegation := NewStake(5000, newTestPubkey(t), 0, 2).Delegation

	// no record of the activation epoch: treated as fully warmed up
	status := delegation.StakeActivatingAndDeactivating(20, NewStakeHistory(), nil)
	assert.Equal(t, StakeActivationStatus{Effective: 5000}, status)

	// a gap part way through stops the walk where it is
	history := newTestHistory(t, map[uint64]StakeHistoryEntry{
		2: {Effective: 10000, Activating: 10000},
	})
	status = delegation.StakeActivatingAndDeactivating(6, history, nil)
	assert.Equal(t, StakeActivationStatus{Effective: 1250, Activating: 3750}, status)

	// no record of the deactivation epoch: fully cooled down
	delegation.DeactivationEpoch = 30
	status = delegation.StakeActivatingAndDeactivating(31, NewStakeHistory(), nil)
	assert.True(t, status.IsZero())
}

func TestStakeActivation_SameEpochActivateDeactivate(t *testing.T) {
	delegation := NewStake(5000, newTestPubkey(t), 0, 7).Delegation
	delegation.DeactivationEpoch = 7

	assert.Equal(t, StakeActivationStatus{}, delegation.StakeActivatingAndDeactivating(7, nil, nil))
	assert.Equal(t, StakeActivationStatus{}, delegation.StakeActivatingAndDeactivating(8, nil, nil))
}

func TestStakeActivation_MinimumProgress(t *testing.T) {
	// the delegation's share rounds to zero but it still gains a lamport
	history := newTestHistory(t, map[uint64]StakeHistoryEntry{
		0: {Effective: 1, Activating: 1_000_000},
	})
	delegation := NewStake(10, newTestPubkey(t), 0, 0).Delegation

	status := delegation.StakeActivatingAndDeactivating(1, history, nil)
	assert.Equal(t, StakeActivationStatus{Effective: 1, Activating: 9}, status)
}

// The TestStakeActivation_RateBound function walks delegations through
// warmup and cooldown over a long cluster history. Each epoch the effective
// stake moves in one direction only, and by no more than the rate allows
// for the cluster's effective stake of the previous epoch.
func TestStakeActivation_RateBound(t *testing.T) {
	const (
		activationEpoch   = 2
		deactivationEpoch = 24
		lastEpoch         = 48
	)
	cutover := func(epoch uint64) *uint64 { return &epoch }

	for _, tc := range []struct {
		name    string
		stake   uint64
		cutover *uint64
	}{
		{name: "one lamport", stake: 1},
		{name: "small share", stake: 50_000},
		{name: "small share reduced rate", stake: 50_000, cutover: cutover(0)},
		{name: "cutover during warmup", stake: 400_000, cutover: cutover(5)},
		{name: "cutover during cooldown", stake: 400_000, cutover: cutover(30)},
		{name: "large share", stake: 3_000_000, cutover: cutover(10)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			entries := make(map[uint64]StakeHistoryEntry, lastEpoch)
			for epoch := uint64(0); epoch < lastEpoch; epoch++ {
				entries[epoch] = StakeHistoryEntry{
					Effective:    100_000 + epoch*7_919,
					Activating:   tc.stake + (epoch%7)*13_001 + 1,
					Deactivating: tc.stake + (epoch%5)*9_973 + 1,
				}
			}
			history := newTestHistory(t, entries)

			delegation := NewStake(tc.stake, newTestPubkey(t), 0, activationEpoch).Delegation
			delegation.DeactivationEpoch = deactivationEpoch

			for epoch := uint64(activationEpoch); epoch < lastEpoch; epoch++ {
				current := delegation.Stake(epoch, history, tc.cutover)
				next := delegation.Stake(epoch+1, history, tc.cutover)
				assert.LessOrEqual(t, next, tc.stake, "epoch %d", epoch+1)

				pool := history.Get(epoch)
				require.NotNil(t, pool)
				bound := max(WarmupCooldownRate(epoch+1, tc.cutover)*float64(pool.Effective), 1)

				if epoch < deactivationEpoch {
					require.GreaterOrEqual(t, next, current, "warmup epoch %d", epoch+1)
					assert.LessOrEqual(t, float64(next-current), bound, "warmup epoch %d", epoch+1)
				} else {
					require.LessOrEqual(t, next, current, "cooldown epoch %d", epoch+1)
					assert.LessOrEqual(t, float64(current-next), bound, "cooldown epoch %d", epoch+1)
				}
			}

			assert.Equal(t, uint64(0), delegation.Stake(activationEpoch, history, tc.cutover))
		})
	}
}
