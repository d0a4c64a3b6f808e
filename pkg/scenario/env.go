package scenario

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/Overclock-Validator/stakecore/pkg/accounts"
	"github.com/Overclock-Validator/stakecore/pkg/base58"
	"github.com/Overclock-Validator/stakecore/pkg/features"
	"github.com/Overclock-Validator/stakecore/pkg/sealevel"
	"github.com/gagliardetto/solana-go"
	"k8s.io/klog/v2"
)

const (
	defaultSlotsPerEpoch = 432000
	defaultBurnPercent   = 50
)

var (
	ErrUnknownAccount = errors.New("unknown account")
	ErrUnknownFeature = errors.New("unknown feature")
	ErrEmptyKey       = errors.New("empty key")
)

// ResolveKey accepts a base58 address or a label. A label maps to the
// address derived from the zero key, the label as seed and the system
// program as owner, so the same label always names the same key.
func ResolveKey(s string) (solana.PublicKey, error) {
	if s == "" {
		return solana.PublicKey{}, ErrEmptyKey
	}
	key, err := base58.DecodeFromString(s)
	if err == nil {
		return solana.PublicKey(key), nil
	}
	pk, err := solana.CreateWithSeed(solana.PublicKey{}, s, solana.SystemProgramID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid key %q: %w", s, err)
	}
	return pk, nil
}

// Env is a scenario materialized into an account store with its sysvars.
type Env struct {
	Accounts    accounts.MemAccounts
	Features    *features.Features
	VoteCredits sealevel.StaticVoteCredits
	Clock       sealevel.SysvarClock
	Schedule    sealevel.SysvarEpochSchedule
	Rent        sealevel.SysvarRent
	History     *sealevel.SysvarStakeHistory

	names []string
	keys  map[string]solana.PublicKey
	merge *Merge
}

// NamedDelegation is the delegation currently stored in a named account.
type NamedDelegation struct {
	Name       string
	Pubkey     solana.PublicKey
	Delegation sealevel.Delegation
}

func (s *Scenario) Build() (*Env, error) {
	env := &Env{
		Accounts:    accounts.NewMemAccounts(),
		Features:    features.NewFeaturesDefault(),
		VoteCredits: sealevel.StaticVoteCredits{},
		History:     sealevel.NewStakeHistory(),
		keys:        make(map[string]solana.PublicKey),
		merge:       s.Merge,
	}

	env.Schedule = sealevel.NewEpochSchedule(defaultSlotsPerEpoch, false)
	if s.EpochSchedule != nil {
		if s.EpochSchedule.SlotsPerEpoch == 0 {
			return nil, fmt.Errorf("epoch_schedule.slots_per_epoch must be positive")
		}
		env.Schedule = sealevel.NewEpochSchedule(s.EpochSchedule.SlotsPerEpoch, s.EpochSchedule.Warmup)
	}

	env.Clock = sealevel.SysvarClock{
		Slot:                s.Clock.Slot,
		EpochStartTimestamp: s.Clock.UnixTimestamp,
		UnixTimestamp:       s.Clock.UnixTimestamp,
	}
	if s.Clock.Epoch != nil {
		env.Clock.Epoch = *s.Clock.Epoch
	} else {
		env.Clock.Epoch = env.Schedule.GetEpoch(s.Clock.Slot)
	}
	env.Clock.LeaderScheduleEpoch = env.Clock.Epoch + 1

	env.Rent = sealevel.DefaultRent
	if s.Rent != nil {
		env.Rent = sealevel.SysvarRent{
			LamportsPerUint8Year: s.Rent.LamportsPerByteYear,
			ExemptionThreshold:   s.Rent.ExemptionThreshold,
			BurnPercent:          defaultBurnPercent,
		}
	}

	for name, epoch := range s.Features {
		gate, ok := features.GateByName(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownFeature, name)
		}
		env.Features.EnableFeature(gate, epoch)
	}

	history := slices.Clone(s.StakeHistory)
	slices.SortFunc(history, func(a, b HistoryEntry) int {
		return cmp.Compare(a.Epoch, b.Epoch)
	})
	for _, entry := range history {
		_, err := env.History.Add(entry.Epoch, sealevel.StakeHistoryEntry{
			Effective:    entry.Effective,
			Activating:   entry.Activating,
			Deactivating: entry.Deactivating,
		})
		if err != nil {
			return nil, err
		}
	}

	for voter, credits := range s.VoteCredits {
		pk, err := ResolveKey(voter)
		if err != nil {
			return nil, fmt.Errorf("vote_credits: %w", err)
		}
		env.VoteCredits[pk] = credits
	}

	for i := range s.Accounts {
		err := env.addStakeAccount(&s.Accounts[i])
		if err != nil {
			return nil, fmt.Errorf("account %q: %w", s.Accounts[i].Name, err)
		}
	}

	err := env.writeSysvars()
	if err != nil {
		return nil, err
	}

	klog.V(2).Infof("scenario at epoch %d: %d stake accounts, %d history entries", env.Clock.Epoch, len(env.names), env.History.Len())
	return env, nil
}

func (env *Env) writeSysvars() error {
	err := sealevel.WriteClockSysvar(env.Accounts, env.Clock)
	if err != nil {
		return err
	}
	err = sealevel.WriteRentSysvar(env.Accounts, env.Rent)
	if err != nil {
		return err
	}
	err = sealevel.WriteEpochScheduleSysvar(env.Accounts, env.Schedule)
	if err != nil {
		return err
	}
	return sealevel.WriteStakeHistorySysvar(env.Accounts, env.History)
}

func (env *Env) addStakeAccount(acct *StakeAccount) error {
	if acct.Name == "" {
		return fmt.Errorf("missing name")
	}
	if _, ok := env.keys[acct.Name]; ok {
		return fmt.Errorf("duplicate account name")
	}

	keyStr := acct.Pubkey
	if keyStr == "" {
		keyStr = acct.Name
	}
	pubkey, err := ResolveKey(keyStr)
	if err != nil {
		return err
	}

	state, err := env.stakeState(acct)
	if err != nil {
		return err
	}
	data, err := sealevel.MarshalStakeState(state)
	if err != nil {
		return err
	}

	key := [32]byte(pubkey)
	err = env.Accounts.SetAccount(&key, &accounts.Account{Lamports: acct.Lamports, Data: data, Owner: sealevel.StakeProgramAddr})
	if err != nil {
		return err
	}

	env.names = append(env.names, acct.Name)
	env.keys[acct.Name] = pubkey
	return nil
}

func (env *Env) stakeState(acct *StakeAccount) (*sealevel.StakeStateV2, error) {
	if acct.Staker == "" {
		if acct.Delegation != nil {
			return nil, fmt.Errorf("delegation without a staker")
		}
		return &sealevel.StakeStateV2{Status: sealevel.StakeStateV2StatusUninitialized}, nil
	}

	var meta sealevel.Meta
	var err error
	meta.Authorized.Staker, err = ResolveKey(acct.Staker)
	if err != nil {
		return nil, err
	}
	meta.Authorized.Withdrawer = meta.Authorized.Staker
	if acct.Withdrawer != "" {
		meta.Authorized.Withdrawer, err = ResolveKey(acct.Withdrawer)
		if err != nil {
			return nil, err
		}
	}

	meta.RentExemptReserve = env.Rent.MinimumBalance(sealevel.StakeStateV2Size)
	if acct.RentExemptReserve != nil {
		meta.RentExemptReserve = *acct.RentExemptReserve
	}

	if acct.Lockup != nil {
		meta.Lockup.UnixTimestamp = acct.Lockup.UnixTimestamp
		meta.Lockup.Epoch = acct.Lockup.Epoch
		if acct.Lockup.Custodian != "" {
			meta.Lockup.Custodian, err = ResolveKey(acct.Lockup.Custodian)
			if err != nil {
				return nil, err
			}
		}
	}

	if acct.Delegation == nil {
		return sealevel.NewInitializedStakeState(meta), nil
	}

	d := acct.Delegation
	voter, err := ResolveKey(d.Voter)
	if err != nil {
		return nil, err
	}
	activationEpoch := sealevel.DeactivationEpochNone
	if d.ActivationEpoch != nil {
		activationEpoch = *d.ActivationEpoch
	}
	stake := sealevel.NewStake(d.Stake, voter, d.CreditsObserved, activationEpoch)
	if d.DeactivationEpoch != nil {
		stake.Delegation.DeactivationEpoch = *d.DeactivationEpoch
	}

	flags := sealevel.StakeFlagsEmpty
	if d.MustFullyActivate {
		flags = flags.Union(sealevel.StakeFlagsMustFullyActivate)
	}
	return sealevel.NewDelegatedStakeState(meta, stake, flags), nil
}

func (env *Env) Key(name string) (solana.PublicKey, error) {
	pk, ok := env.keys[name]
	if !ok {
		return solana.PublicKey{}, fmt.Errorf("%w: %s", ErrUnknownAccount, name)
	}
	return pk, nil
}

// Names lists the stake accounts in scenario order.
func (env *Env) Names() []string {
	return slices.Clone(env.names)
}

func (env *Env) NewExecutionCtx() *sealevel.ExecutionCtx {
	return sealevel.NewExecutionCtx(env.Accounts, env.Features, env.VoteCredits)
}

// HistoryView is the stake history as seen by the current epoch.
func (env *Env) HistoryView() sealevel.StakeHistoryGetter {
	return sealevel.EpochBoundedHistory{Current: env.Clock.Epoch, Inner: env.History}
}

func (env *Env) NewRateActivationEpoch() *uint64 {
	return sealevel.NewRateActivationEpoch(env.Features)
}

// Account returns the stored account and its decoded stake state.
func (env *Env) Account(name string) (*accounts.Account, *sealevel.StakeStateV2, error) {
	pk, err := env.Key(name)
	if err != nil {
		return nil, nil, err
	}
	key := [32]byte(pk)
	acct, err := env.Accounts.GetAccount(&key)
	if err != nil {
		return nil, nil, err
	}
	state, err := sealevel.UnmarshalStakeState(acct.Data)
	if err != nil {
		return nil, nil, err
	}
	return acct, state, nil
}

// Delegations returns the delegated accounts in scenario order.
func (env *Env) Delegations() ([]NamedDelegation, error) {
	var delegations []NamedDelegation
	for _, name := range env.names {
		_, state, err := env.Account(name)
		if err != nil {
			return nil, err
		}
		if state.Status != sealevel.StakeStateV2StatusStake {
			continue
		}
		delegations = append(delegations, NamedDelegation{
			Name:       name,
			Pubkey:     env.keys[name],
			Delegation: state.Stake.Stake.Delegation,
		})
	}
	return delegations, nil
}

// Classify returns the merge kind of the named account at the current epoch.
func (env *Env) Classify(name string) (*sealevel.MergeKind, error) {
	acct, state, err := env.Account(name)
	if err != nil {
		return nil, err
	}
	return sealevel.GetMergeKindIfMergeable(state, acct.Lamports, &env.Clock, env.HistoryView(), env.NewRateActivationEpoch())
}

// MergeTarget is the merge named by the scenario, if any.
func (env *Env) MergeTarget() (*Merge, bool) {
	return env.merge, env.merge != nil
}

// MergeAccounts runs the Merge instruction on two named accounts, signed by
// the destination's staker.
func (env *Env) MergeAccounts(dest string, source string) error {
	destKey, err := env.Key(dest)
	if err != nil {
		return err
	}
	sourceKey, err := env.Key(source)
	if err != nil {
		return err
	}
	_, destState, err := env.Account(dest)
	if err != nil {
		return err
	}
	meta, ok := destState.Meta()
	if !ok {
		return sealevel.InstrErrInvalidAccountData
	}

	data, err := sealevel.EncodeStakeInstruction(sealevel.StakeProgramInstrTypeMerge, nil)
	if err != nil {
		return err
	}
	instrCtx := sealevel.NewInstructionCtx(sealevel.StakeProgramAddr, []sealevel.InstructionAccount{
		{Pubkey: destKey, IsWritable: true},
		{Pubkey: sourceKey, IsWritable: true},
		{Pubkey: solana.PublicKey(sealevel.SysvarClockAddr)},
		{Pubkey: solana.PublicKey(sealevel.SysvarStakeHistoryAddr)},
		{Pubkey: meta.Authorized.Staker, IsSigner: true},
	}, data)
	return sealevel.StakeProgramExecute(env.NewExecutionCtx(), instrCtx)
}
