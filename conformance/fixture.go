// Package conformance replays stake program fixtures. Each fixture is a
// cluster scenario, an optional stake instruction to run against it, and
// the expected outcome: the returned error, the resulting accounts and the
// activation status of delegations at chosen epochs.
package conformance

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Overclock-Validator/stakecore/pkg/scenario"
	"github.com/Overclock-Validator/stakecore/pkg/sealevel"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"gopkg.in/yaml.v3"
)

type Fixture struct {
	Name        string            `yaml:"name"`
	Scenario    scenario.Scenario `yaml:"scenario"`
	Instruction *Instruction      `yaml:"instruction,omitempty"`
	Expect      Expect            `yaml:"expect"`

	path string
}

type Instruction struct {
	Name     string       `yaml:"name"`
	Args     InstrArgs    `yaml:"args,omitempty"`
	Accounts []AccountRef `yaml:"accounts"`
}

type InstrArgs struct {
	NewAuthority string           `yaml:"new_authority,omitempty"`
	Role         string           `yaml:"role,omitempty"`
	Lamports     uint64           `yaml:"lamports,omitempty"`
	Lockup       *scenario.Lockup `yaml:"lockup,omitempty"`
}

// AccountRef is one instruction account. Exactly one of Account (a
// scenario stake account), Key (a base58 key or label) or Sysvar is set.
type AccountRef struct {
	Account  string `yaml:"account,omitempty"`
	Key      string `yaml:"key,omitempty"`
	Sysvar   string `yaml:"sysvar,omitempty"`
	Signer   bool   `yaml:"signer,omitempty"`
	Writable bool   `yaml:"writable,omitempty"`
}

type Expect struct {
	Error      string               `yaml:"error,omitempty"`
	Accounts   []ExpectedAccount    `yaml:"accounts,omitempty"`
	Activation []ExpectedActivation `yaml:"activation,omitempty"`
}

type ExpectedAccount struct {
	Name            string  `yaml:"name"`
	Lamports        *uint64 `yaml:"lamports,omitempty"`
	State           string  `yaml:"state,omitempty"`
	Stake           *uint64 `yaml:"stake,omitempty"`
	CreditsObserved *uint64 `yaml:"credits_observed,omitempty"`
	Voter           string  `yaml:"voter,omitempty"`
	Staker          string  `yaml:"staker,omitempty"`
	Withdrawer      string  `yaml:"withdrawer,omitempty"`
	Deactivated     *bool   `yaml:"deactivated,omitempty"`
}

type ExpectedActivation struct {
	Name         string `yaml:"name"`
	Epoch        uint64 `yaml:"epoch"`
	Effective    uint64 `yaml:"effective"`
	Activating   uint64 `yaml:"activating"`
	Deactivating uint64 `yaml:"deactivating"`
}

var sysvarAddrs = map[string][32]byte{
	"clock":          sealevel.SysvarClockAddr,
	"rent":           sealevel.SysvarRentAddr,
	"stake_history":  sealevel.SysvarStakeHistoryAddr,
	"epoch_schedule": sealevel.SysvarEpochScheduleAddr,
	"epoch_rewards":  sealevel.SysvarEpochRewardsAddr,
	"stake_config":   [32]byte(sealevel.StakeProgramConfigAddr),
}

var stakeAuthorizeRoles = map[string]uint32{
	"staker":     sealevel.StakeAuthorizeStaker,
	"withdrawer": sealevel.StakeAuthorizeWithdrawer,
}

func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fixture := &Fixture{path: path}
	err = yaml.Unmarshal(data, fixture)
	if err != nil {
		return nil, fmt.Errorf("failed to parse fixture %s: %w", path, err)
	}
	if fixture.Name == "" {
		fixture.Name = filepath.Base(path)
	}
	return fixture, nil
}

// LoadFixtures reads every fixture in dir, in file name order.
func LoadFixtures(dir string) ([]*Fixture, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	fixtures := make([]*Fixture, 0, len(paths))
	for _, path := range paths {
		fixture, err := LoadFixture(path)
		if err != nil {
			return nil, err
		}
		fixtures = append(fixtures, fixture)
	}
	return fixtures, nil
}

func (ref *AccountRef) resolve(env *scenario.Env) (solana.PublicKey, error) {
	switch {
	case ref.Account != "":
		return env.Key(ref.Account)
	case ref.Key != "":
		return scenario.ResolveKey(ref.Key)
	case ref.Sysvar != "":
		addr, ok := sysvarAddrs[ref.Sysvar]
		if !ok {
			return solana.PublicKey{}, fmt.Errorf("unknown sysvar %q", ref.Sysvar)
		}
		return solana.PublicKey(addr), nil
	default:
		return solana.PublicKey{}, fmt.Errorf("account reference names nothing")
	}
}

func (instr *Instruction) encodeArgs(instrType uint32) (interface {
	MarshalWithEncoder(*bin.Encoder) error
}, error) {
	switch instrType {
	case sealevel.StakeProgramInstrTypeAuthorize:
		newAuthority, err := scenario.ResolveKey(instr.Args.NewAuthority)
		if err != nil {
			return nil, err
		}
		role, ok := stakeAuthorizeRoles[instr.Args.Role]
		if !ok {
			return nil, fmt.Errorf("unknown role %q", instr.Args.Role)
		}
		return &sealevel.StakeInstrAuthorize{Pubkey: newAuthority, StakeAuthorize: role}, nil

	case sealevel.StakeProgramInstrTypeAuthorizeChecked:
		role, ok := stakeAuthorizeRoles[instr.Args.Role]
		if !ok {
			return nil, fmt.Errorf("unknown role %q", instr.Args.Role)
		}
		return &sealevel.StakeInstrAuthorizeChecked{StakeAuthorize: role}, nil

	case sealevel.StakeProgramInstrTypeSetLockup:
		args := &sealevel.StakeLockupArgs{}
		if lockup := instr.Args.Lockup; lockup != nil {
			args.UnixTimestamp = &lockup.UnixTimestamp
			args.Epoch = &lockup.Epoch
			if lockup.Custodian != "" {
				custodian, err := scenario.ResolveKey(lockup.Custodian)
				if err != nil {
					return nil, err
				}
				args.Custodian = &custodian
			}
		}
		return args, nil

	case sealevel.StakeProgramInstrTypeMoveStake, sealevel.StakeProgramInstrTypeMoveLamports:
		return &sealevel.StakeInstrLamports{Lamports: instr.Args.Lamports}, nil

	default:
		return nil, nil
	}
}

// Execute runs the instruction against env and returns the program's
// result. Errors building the instruction are reported separately.
func (instr *Instruction) Execute(env *scenario.Env) (result error, err error) {
	instrType, ok := sealevel.StakeInstrTypeByName(instr.Name)
	if !ok {
		return nil, fmt.Errorf("unknown stake instruction %q", instr.Name)
	}

	args, err := instr.encodeArgs(instrType)
	if err != nil {
		return nil, err
	}
	data, err := sealevel.EncodeStakeInstruction(instrType, args)
	if err != nil {
		return nil, err
	}

	instrAccts := make([]sealevel.InstructionAccount, 0, len(instr.Accounts))
	for i := range instr.Accounts {
		ref := &instr.Accounts[i]
		pk, err := ref.resolve(env)
		if err != nil {
			return nil, err
		}
		instrAccts = append(instrAccts, sealevel.InstructionAccount{Pubkey: pk, IsSigner: ref.Signer, IsWritable: ref.Writable})
	}

	instrCtx := sealevel.NewInstructionCtx(sealevel.StakeProgramAddr, instrAccts, data)
	return sealevel.StakeProgramExecute(env.NewExecutionCtx(), instrCtx), nil
}

func stateName(status uint32) string {
	switch status {
	case sealevel.StakeStateV2StatusUninitialized:
		return "Uninitialized"
	case sealevel.StakeStateV2StatusInitialized:
		return "Initialized"
	case sealevel.StakeStateV2StatusStake:
		return "Stake"
	case sealevel.StakeStateV2StatusRewardsPool:
		return "RewardsPool"
	default:
		return "Unknown"
	}
}
