package conformance

import (
	"fmt"
	"testing"

	"github.com/Overclock-Validator/stakecore/pkg/accounts"
	"github.com/Overclock-Validator/stakecore/pkg/scenario"
	"github.com/Overclock-Validator/stakecore/pkg/sealevel"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stakeFixturesDir = "testdata"

// The TestConformance_Stake_Program function replays every stake fixture
// and reports the ones whose outcome differs.
func TestConformance_Stake_Program(t *testing.T) {
	fixtures, err := LoadFixtures(stakeFixturesDir)
	require.NoError(t, err)
	require.NotEmpty(t, fixtures)

	var failedTestcases []string
	for _, fixture := range fixtures {
		ok := t.Run(fixture.Name, func(t *testing.T) {
			runFixture(t, fixture)
		})
		if !ok {
			failedTestcases = append(failedTestcases, fixture.path)
		}
	}

	if len(failedTestcases) != 0 {
		fmt.Printf("failed stake testcases (%d of %d):\n", len(failedTestcases), len(fixtures))
		for _, path := range failedTestcases {
			fmt.Printf("\t%s\n", path)
		}
	}
}

func runFixture(t *testing.T, fixture *Fixture) {
	env, err := fixture.Scenario.Build()
	require.NoError(t, err)

	if fixture.Instruction != nil {
		before := snapshotAccounts(env)

		result, err := fixture.Instruction.Execute(env)
		require.NoError(t, err)

		if fixture.Expect.Error == "" {
			require.NoError(t, result)
		} else {
			require.Error(t, result)
			assert.Equal(t, fixture.Expect.Error, result.Error())
			// a failed instruction leaves every account as it was
			assert.Equal(t, before, snapshotAccounts(env))
		}
	}

	for _, expected := range fixture.Expect.Accounts {
		checkAccount(t, env, &expected)
	}

	delegations, err := env.Delegations()
	require.NoError(t, err)
	for _, expected := range fixture.Expect.Activation {
		checkActivation(t, env, delegations, &expected)
	}
}

func snapshotAccounts(env *scenario.Env) map[[32]byte]accounts.Account {
	snapshot := make(map[[32]byte]accounts.Account, len(env.Accounts.Map))
	for key, acct := range env.Accounts.Map {
		snapshot[key] = *acct.Clone()
	}
	return snapshot
}

func checkAccount(t *testing.T, env *scenario.Env, expected *ExpectedAccount) {
	acct, state, err := env.Account(expected.Name)
	require.NoError(t, err, expected.Name)

	if expected.Lamports != nil {
		assert.Equal(t, *expected.Lamports, acct.Lamports, "%s lamports", expected.Name)
	}
	if expected.State != "" {
		assert.Equal(t, expected.State, stateName(state.Status), "%s state", expected.Name)
	}

	meta, hasMeta := state.Meta()
	if expected.Staker != "" {
		require.True(t, hasMeta, expected.Name)
		assert.Equal(t, mustResolveKey(t, expected.Staker), meta.Authorized.Staker, "%s staker", expected.Name)
	}
	if expected.Withdrawer != "" {
		require.True(t, hasMeta, expected.Name)
		assert.Equal(t, mustResolveKey(t, expected.Withdrawer), meta.Authorized.Withdrawer, "%s withdrawer", expected.Name)
	}

	if expected.Stake == nil && expected.CreditsObserved == nil && expected.Voter == "" && expected.Deactivated == nil {
		return
	}
	require.Equal(t, uint32(sealevel.StakeStateV2StatusStake), state.Status, "%s is not delegated", expected.Name)
	stake := state.Stake.Stake

	if expected.Stake != nil {
		assert.Equal(t, *expected.Stake, stake.Delegation.StakeLamports, "%s stake", expected.Name)
	}
	if expected.CreditsObserved != nil {
		assert.Equal(t, *expected.CreditsObserved, stake.CreditsObserved, "%s credits observed", expected.Name)
	}
	if expected.Voter != "" {
		assert.Equal(t, mustResolveKey(t, expected.Voter), stake.Delegation.VoterPubkey, "%s voter", expected.Name)
	}
	if expected.Deactivated != nil {
		deactivated := stake.Delegation.DeactivationEpoch != sealevel.DeactivationEpochNone
		assert.Equal(t, *expected.Deactivated, deactivated, "%s deactivated", expected.Name)
	}
}

func checkActivation(t *testing.T, env *scenario.Env, delegations []scenario.NamedDelegation, expected *ExpectedActivation) {
	for _, d := range delegations {
		if d.Name != expected.Name {
			continue
		}
		history := sealevel.EpochBoundedHistory{Current: expected.Epoch, Inner: env.History}
		status := d.Delegation.StakeActivatingAndDeactivating(expected.Epoch, history, env.NewRateActivationEpoch())
		assert.Equal(t, sealevel.StakeActivationStatus{
			Effective:    expected.Effective,
			Activating:   expected.Activating,
			Deactivating: expected.Deactivating,
		}, status, "%s at epoch %d", expected.Name, expected.Epoch)
		return
	}
	t.Errorf("no delegation named %s", expected.Name)
}

func mustResolveKey(t *testing.T, s string) solana.PublicKey {
	pk, err := scenario.ResolveKey(s)
	require.NoError(t, err)
	return pk
}
