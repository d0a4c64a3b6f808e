package merge

import (
	"bytes"
	"testing"

	"github.com/Overclock-Validator/stakecore/pkg/scenario"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mergeScenario = `
clock:
  slot: 0
  epoch: 10
accounts:
  - name: dest
    lamports: 2283380
    staker: alice
    delegation: {voter: v1, stake: 500, activation_epoch: 10, credits_observed: 10}
  - name: source
    lamports: 2283380
    staker: alice
    delegation: {voter: v1, stake: 500, activation_epoch: 10, credits_observed: 20}
  - name: other
    lamports: 2283380
    staker: alice
    delegation: {voter: v2, stake: 500, activation_epoch: 10, credits_observed: 20}
merge:
  destination: dest
  source: source
`

func buildEnv(t *testing.T) *scenario.Env {
	s, err := scenario.Parse([]byte(mergeScenario))
	require.NoError(t, err)
	env, err := s.Build()
	require.NoError(t, err)
	return env
}

func TestRun_Merged(t *testing.T) {
	env := buildEnv(t)
	var buf bytes.Buffer
	require.NoError(t, Run(&buf, env, "dest", "source"))

	out := buf.String()
	assert.Contains(t, out, "dest: ActivationEpoch")
	assert.Contains(t, out, "source: ActivationEpoch")
	assert.Contains(t, out, "lamports 4566760")
	assert.Contains(t, out, "stake 2283880")

	_, state, err := env.Account("source")
	require.NoError(t, err)
	assert.Equal(t, uint32(0), state.Status)
}

func TestRun_Rejected(t *testing.T) {
	env := buildEnv(t)
	var buf bytes.Buffer
	require.NoError(t, Run(&buf, env, "dest", "other"))
	assert.Contains(t, buf.String(), "merge rejected: StakeErrMergeMismatch")

	buf.Reset()
	require.NoError(t, Run(&buf, env, "dest", "missing"))
	assert.Contains(t, buf.String(), "missing: not mergeable")
}
