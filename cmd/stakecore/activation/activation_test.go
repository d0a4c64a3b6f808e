package activation

import (
	"bytes"
	"context"
	"math"
	"strings"
	"testing"

	"github.com/Overclock-Validator/stakecore/pkg/scenario"
	"github.com/Overclock-Validator/stakecore/pkg/sealevel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const warmupScenario = `
clock:
  slot: 0
  epoch: 5
stake_history:
  - {epoch: 0, effective: 10000, activating: 10000}
  - {epoch: 1, effective: 12500, activating: 7500}
  - {epoch: 2, effective: 15625, activating: 4375}
  - {epoch: 3, effective: 19531, activating: 469}
accounts:
  - name: warming
    lamports: 2292880
    staker: alice
    delegation: {voter: v1, stake: 10000, activation_epoch: 0}
  - name: genesis
    lamports: 2292880
    staker: alice
    delegation: {voter: v1, stake: 777}
  - name: idle
    lamports: 2292880
    staker: alice
`

func buildEnv(t *testing.T, doc string) *scenario.Env {
	s, err := scenario.Parse([]byte(doc))
	require.NoError(t, err)
	env, err := s.Build()
	require.NoError(t, err)
	return env
}

func TestEvaluate_Warmup(t *testing.T) {
	env := buildEnv(t, warmupScenario)

	results, err := Evaluate(context.Background(), env, 0, 4, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	warming := results[0]
	require.Len(t, warming, 5)
	expected := []sealevel.StakeActivationStatus{
		{Activating: 10000},
		{Effective: 2500, Activating: 7500},
		{Effective: 5625, Activating: 4375},
		{Effective: 9531, Activating: 469},
		{Effective: 10000},
	}
	for i, row := range warming {
		assert.Equal(t, "warming", row.Name)
		assert.Equal(t, uint64(i), row.Epoch)
		assert.Equal(t, expected[i], row.Status)
	}

	for _, row := range results[1] {
		assert.Equal(t, sealevel.StakeActivationStatus{Effective: 777}, row.Status)
	}
}

func TestEvaluate_Cancelled(t *testing.T) {
	env := buildEnv(t, warmupScenario)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Evaluate(ctx, env, 0, 4, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEvaluate_EpochRange(t *testing.T) {
	env := buildEnv(t, warmupScenario)

	_, err := Evaluate(context.Background(), env, 0, math.MaxUint64, 1)
	assert.ErrorIs(t, err, ErrEpochRange)

	_, err = Evaluate(context.Background(), env, 0, MaxEpochSpan, 1)
	assert.ErrorIs(t, err, ErrEpochRange)

	_, err = Evaluate(context.Background(), env, 5, 4, 1)
	assert.ErrorIs(t, err, ErrEpochRange)

	results, err := Evaluate(context.Background(), env, 10, 10+MaxEpochSpan-1, 1)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Len(t, results[0], MaxEpochSpan)
	assert.Equal(t, uint64(10+MaxEpochSpan-1), results[0][MaxEpochSpan-1].Epoch)
}

func TestPrint(t *testing.T) {
	rows := [][]Row{{
		{Name: "warming", Epoch: 3, Status: sealevel.StakeActivationStatus{Effective: 9531, Activating: 469}},
	}}
	var buf bytes.Buffer
	require.NoError(t, Print(&buf, rows))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, []string{"DELEGATION", "EPOCH", "EFFECTIVE", "ACTIVATING", "DEACTIVATING"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"warming", "3", "9531", "469", "0"}, strings.Fields(lines[1]))
}
