package features

import (
	"github.com/Overclock-Validator/stakecore/pkg/base58"
)

type FeatureGate struct {
	Name    string
	Address [32]byte
}

var ReduceStakeWarmupCooldown = FeatureGate{Name: "ReduceStakeWarmupCooldown", Address: base58.MustDecodeFromString("GwtDQBghCTBgmX2cpEGNPxTEBUTQRaDMGTr5qychdGMj")}
var StakeRaiseMinimumDelegationTo1Sol = FeatureGate{Name: "StakeRaiseMinimumDelegationTo1Sol", Address: base58.MustDecodeFromString("9onWzzvCzNC2jfhxxeqRgs5q7nFAAKpCUvkj6T6GJK9i")}
var MoveStakeAndMoveLamportsIxs = FeatureGate{Name: "MoveStakeAndMoveLamportsIxs", Address: base58.MustDecodeFromString("7bTK6Jis8Xpfrs8ZoUfiMDPazTcdPcTWheZFJTA5Z6X4")}

// AllGates is the set of gates a scenario file may refer to by name.
var AllGates = []FeatureGate{
	ReduceStakeWarmupCooldown,
	StakeRaiseMinimumDelegationTo1Sol,
	MoveStakeAndMoveLamportsIxs,
}

func GateByName(name string) (FeatureGate, bool) {
	for _, gate := range AllGates {
		if gate.Name == name {
			return gate, true
		}
	}
	return FeatureGate{}, false
}
