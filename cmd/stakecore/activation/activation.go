package activation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/Overclock-Validator/stakecore/pkg/metrics"
	"github.com/Overclock-Validator/stakecore/pkg/scenario"
	"github.com/Overclock-Validator/stakecore/pkg/sealevel"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

var (
	Cmd = cobra.Command{
		Use:   "activation",
		Short: "Print the activation state of every delegation over an epoch range",
		Args:  cobra.NoArgs,
		RunE:  run,
	}

	scenarioPath string
	fromEpoch    uint64
	toEpoch      int64
	workers      int
)

func init() {
	Cmd.Flags().StringVarP(&scenarioPath, "scenario", "s", "", "Path of the scenario YAML")
	Cmd.Flags().Uint64Var(&fromEpoch, "from", 0, "First epoch to evaluate")
	Cmd.Flags().Int64Var(&toEpoch, "to", -1, "Last epoch to evaluate (default: the scenario's current epoch)")
	Cmd.Flags().IntVarP(&workers, "workers", "w", runtime.NumCPU(), "Delegations evaluated concurrently")
	_ = Cmd.MarkFlagRequired("scenario")
}

// MaxEpochSpan is the largest number of epochs one evaluation covers.
const MaxEpochSpan = 1 << 16

var ErrEpochRange = errors.New("invalid epoch range")

// Row is the activation state of one delegation at one epoch.
type Row struct {
	Name   string
	Epoch  uint64
	Status sealevel.StakeActivationStatus
}

func run(c *cobra.Command, _ []string) error {
	s, err := scenario.Load(scenarioPath)
	if err != nil {
		return err
	}
	env, err := s.Build()
	if err != nil {
		return err
	}

	to := env.Clock.Epoch
	if toEpoch >= 0 {
		to = uint64(toEpoch)
	}
	rows, err := Evaluate(c.Context(), env, fromEpoch, to, workers)
	if err != nil {
		return err
	}
	return Print(c.OutOrStdout(), rows)
}

// Evaluate computes the activation state of every delegation in env for
// each epoch in [from, to]. Delegations are spread over a bounded group of
// workers that share the read-only stake history. The range may span at
// most MaxEpochSpan epochs.
func Evaluate(ctx context.Context, env *scenario.Env, from uint64, to uint64, workers int) ([][]Row, error) {
	if to < from {
		return nil, fmt.Errorf("%w: epoch %d is before epoch %d", ErrEpochRange, to, from)
	}
	if to-from >= MaxEpochSpan {
		return nil, fmt.Errorf("%w: epochs %d..%d span more than %d epochs", ErrEpochRange, from, to, MaxEpochSpan)
	}

	delegations, err := env.Delegations()
	if err != nil {
		return nil, err
	}
	klog.V(2).Infof("evaluating %d delegations over epochs %d..%d", len(delegations), from, to)

	newRateActivationEpoch := env.NewRateActivationEpoch()
	results := make([][]Row, len(delegations))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i, d := range delegations {
		i, d := i, d
		g.Go(func() error {
			start := time.Now()
			rows := make([]Row, 0, to-from+1)
			for epoch := from; epoch <= to; epoch++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				history := sealevel.EpochBoundedHistory{Current: epoch, Inner: env.History}
				status := d.Delegation.StakeActivatingAndDeactivating(epoch, history, newRateActivationEpoch)
				rows = append(rows, Row{Name: d.Name, Epoch: epoch, Status: status})
				if epoch == to {
					break
				}
			}
			metrics.ActivationEvaluationDuration.Observe(time.Since(start).Seconds())
			results[i] = rows
			return nil
		})
	}

	err = g.Wait()
	if err != nil {
		return nil, err
	}
	return results, nil
}

func Print(w io.Writer, results [][]Row) error {
	_, err := fmt.Fprintf(w, "%-24s %8s %20s %20s %20s\n", "DELEGATION", "EPOCH", "EFFECTIVE", "ACTIVATING", "DEACTIVATING")
	if err != nil {
		return err
	}
	for _, rows := range results {
		for _, row := range rows {
			_, err = fmt.Fprintf(w, "%-24s %8d %20d %20d %20d\n", row.Name, row.Epoch, row.Status.Effective, row.Status.Activating, row.Status.Deactivating)
			if err != nil {
				return err
			}
		}
	}
	return nil
}
