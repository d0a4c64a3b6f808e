// Package scenario loads cluster scenarios from YAML: the clock, rent and
// stake history sysvars, feature activations, vote credits and a set of
// stake accounts. A loaded scenario is turned into an Env that the stake
// program can run against.
package scenario

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Scenario struct {
	Clock         Clock             `yaml:"clock"`
	EpochSchedule *EpochSchedule    `yaml:"epoch_schedule,omitempty"`
	Rent          *Rent             `yaml:"rent,omitempty"`
	Features      map[string]uint64 `yaml:"features,omitempty"`
	StakeHistory  []HistoryEntry    `yaml:"stake_history,omitempty"`
	VoteCredits   map[string]uint64 `yaml:"vote_credits,omitempty"`
	Accounts      []StakeAccount    `yaml:"accounts,omitempty"`
	Merge         *Merge            `yaml:"merge,omitempty"`
}

// Clock is the current slot and time. When Epoch is omitted it is derived
// from Slot with the epoch schedule.
type Clock struct {
	Slot          uint64  `yaml:"slot"`
	Epoch         *uint64 `yaml:"epoch,omitempty"`
	UnixTimestamp int64   `yaml:"unix_timestamp"`
}

type EpochSchedule struct {
	SlotsPerEpoch uint64 `yaml:"slots_per_epoch"`
	Warmup        bool   `yaml:"warmup"`
}

type Rent struct {
	LamportsPerByteYear uint64  `yaml:"lamports_per_byte_year"`
	ExemptionThreshold  float64 `yaml:"exemption_threshold"`
}

type HistoryEntry struct {
	Epoch        uint64 `yaml:"epoch"`
	Effective    uint64 `yaml:"effective"`
	Activating   uint64 `yaml:"activating"`
	Deactivating uint64 `yaml:"deactivating"`
}

// StakeAccount describes one stake account. Keys may be given in base58 or
// as short labels, which are turned into stable derived addresses.
type StakeAccount struct {
	Name              string      `yaml:"name"`
	Pubkey            string      `yaml:"pubkey,omitempty"`
	Lamports          uint64      `yaml:"lamports"`
	RentExemptReserve *uint64     `yaml:"rent_exempt_reserve,omitempty"`
	Staker            string      `yaml:"staker,omitempty"`
	Withdrawer        string      `yaml:"withdrawer,omitempty"`
	Lockup            *Lockup     `yaml:"lockup,omitempty"`
	Delegation        *Delegation `yaml:"delegation,omitempty"`
}

type Lockup struct {
	UnixTimestamp int64  `yaml:"unix_timestamp"`
	Epoch         uint64 `yaml:"epoch"`
	Custodian     string `yaml:"custodian,omitempty"`
}

// Delegation of a stake account. A missing activation epoch marks a
// bootstrap delegation; a missing deactivation epoch means it was never
// deactivated.
type Delegation struct {
	Voter             string  `yaml:"voter"`
	Stake             uint64  `yaml:"stake"`
	ActivationEpoch   *uint64 `yaml:"activation_epoch,omitempty"`
	DeactivationEpoch *uint64 `yaml:"deactivation_epoch,omitempty"`
	CreditsObserved   uint64  `yaml:"credits_observed"`
	MustFullyActivate bool    `yaml:"must_fully_activate,omitempty"`
}

// Merge names the accounts of a merge, by StakeAccount.Name.
type Merge struct {
	Destination string `yaml:"destination"`
	Source      string `yaml:"source"`
}

func Parse(data []byte) (*Scenario, error) {
	s := new(Scenario)
	err := yaml.Unmarshal(data, s)
	if err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	return s, nil
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario %s: %w", path, err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}
