// Package features tracks which protocol feature gates are active and the
// epoch each one activated at.
package features

import (
	"fmt"
	"sort"

	"github.com/Overclock-Validator/stakecore/pkg/base58"
)

type Features struct {
	enabled map[[32]byte]enabledFeature
}

type enabledFeature struct {
	gate  FeatureGate
	epoch uint64
}

func NewFeaturesDefault() *Features {
	return &Features{enabled: make(map[[32]byte]enabledFeature)}
}

func (f *Features) EnableFeature(gate FeatureGate, epoch uint64) {
	f.enabled[gate.Address] = enabledFeature{gate: gate, epoch: epoch}
}

func (f *Features) DisableFeature(gate FeatureGate) {
	delete(f.enabled, gate.Address)
}

func (f *Features) IsActive(gate FeatureGate, epoch uint64) bool {
	e, ok := f.enabled[gate.Address]
	return ok && e.epoch <= epoch
}

// ActivationEpoch returns the epoch at which gate became active.
func (f *Features) ActivationEpoch(gate FeatureGate) (uint64, bool) {
	e, ok := f.enabled[gate.Address]
	return e.epoch, ok
}

func (f *Features) AllEnabled() []string {
	var out []string
	for _, e := range f.enabled {
		out = append(out, fmt.Sprintf("feature %s (%s) enabled", e.gate.Name, base58.Encode(e.gate.Address)))
	}
	sort.Strings(out)
	return out
}
