package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// The TestFeatures_EnableAndDisable function tests that the
// enable and disable features work correctly.
func TestFeatures_EnableAndDisable(t *testing.T) {
	f := NewFeaturesDefault()
	f.EnableFeature(ReduceStakeWarmupCooldown, 0)
	assert.Equal(t, f.IsActive(ReduceStakeWarmupCooldown, 0), true)
	f.DisableFeature(ReduceStakeWarmupCooldown)
	assert.Equal(t, f.IsActive(ReduceStakeWarmupCooldown, 0), false)
	f.EnableFeature(ReduceStakeWarmupCooldown, 0)
	assert.Equal(t, f.IsActive(ReduceStakeWarmupCooldown, 0), true)
}

// The TestFeatures_ListEnabled function tests that the AllEnabled function works
// as expected.
func TestFeatures_ListEnabled(t *testing.T) {
	f := NewFeaturesDefault()
	f.EnableFeature(ReduceStakeWarmupCooldown, 0)
	assert.Equal(t, f.AllEnabled(), []string{"feature ReduceStakeWarmupCooldown (GwtDQBghCTBgmX2cpEGNPxTEBUTQRaDMGTr5qychdGMj) enabled"})
}

func TestFeatures_ActivationEpoch(t *testing.T) {
	f := NewFeaturesDefault()
	_, ok := f.ActivationEpoch(ReduceStakeWarmupCooldown)
	assert.False(t, ok)

	f.EnableFeature(ReduceStakeWarmupCooldown, 557)
	epoch, ok := f.ActivationEpoch(ReduceStakeWarmupCooldown)
	assert.True(t, ok)
	assert.Equal(t, uint64(557), epoch)
}

func TestFeatures_IsActiveFromActivationEpoch(t *testing.T) {
	f := NewFeaturesDefault()
	f.EnableFeature(MoveStakeAndMoveLamportsIxs, 50)
	assert.False(t, f.IsActive(MoveStakeAndMoveLamportsIxs, 10))
	assert.False(t, f.IsActive(MoveStakeAndMoveLamportsIxs, 49))
	assert.True(t, f.IsActive(MoveStakeAndMoveLamportsIxs, 50))
	assert.True(t, f.IsActive(MoveStakeAndMoveLamportsIxs, 51))
	assert.False(t, f.IsActive(StakeRaiseMinimumDelegationTo1Sol, 51))
}

func TestFeatures_GateByName(t *testing.T) {
	gate, ok := GateByName("StakeRaiseMinimumDelegationTo1Sol")
	assert.True(t, ok)
	assert.Equal(t, StakeRaiseMinimumDelegationTo1Sol, gate)

	_, ok = GateByName("NoSuchGate")
	assert.False(t, ok)
}
