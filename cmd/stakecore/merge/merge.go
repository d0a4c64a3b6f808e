package merge

import (
	"fmt"
	"io"

	"github.com/Overclock-Validator/stakecore/pkg/base58"
	"github.com/Overclock-Validator/stakecore/pkg/scenario"
	"github.com/Overclock-Validator/stakecore/pkg/sealevel"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

var (
	Cmd = cobra.Command{
		Use:   "merge",
		Short: "Classify the scenario's merge accounts and run the merge",
		Args:  cobra.NoArgs,
		RunE:  run,
	}

	scenarioPath string
	destination  string
	source       string
)

func init() {
	Cmd.Flags().StringVarP(&scenarioPath, "scenario", "s", "", "Path of the scenario YAML")
	Cmd.Flags().StringVarP(&destination, "dest", "d", "", "Destination account name (default: the scenario's merge.destination)")
	Cmd.Flags().StringVar(&source, "source", "", "Source account name (default: the scenario's merge.source)")
	_ = Cmd.MarkFlagRequired("scenario")
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

	dest, src := destination, source
	if target, ok := env.MergeTarget(); ok {
		if dest == "" {
			dest = target.Destination
		}
		if src == "" {
			src = target.Source
		}
	}
	if dest == "" || src == "" {
		return fmt.Errorf("no merge accounts given and the scenario names none")
	}

	return Run(c.OutOrStdout(), env, dest, src)
}

// Run prints the merge kind of both accounts, attempts the merge and prints
// the resulting destination. A rejected merge is reported, not returned.
func Run(w io.Writer, env *scenario.Env, dest string, src string) error {
	fmt.Fprintf(w, "epoch %d\n", env.Clock.Epoch)
	for _, name := range []string{dest, src} {
		kind, err := env.Classify(name)
		if err != nil {
			fmt.Fprintf(w, "%s: not mergeable: %s\n", name, err)
			continue
		}
		fmt.Fprintf(w, "%s: %s\n", name, kind)
	}

	err := env.MergeAccounts(dest, src)
	if err != nil {
		klog.V(2).Infof("merge of %s into %s rejected: %s", src, dest, err)
		fmt.Fprintf(w, "merge rejected: %s\n", err)
		return nil
	}

	acct, state, err := env.Account(dest)
	if err != nil {
		return err
	}
	destKey, _ := env.Key(dest)
	fmt.Fprintf(w, "merged into %s (%s): lamports %d\n", dest, base58.Encode(destKey), acct.Lamports)
	if state.Status == sealevel.StakeStateV2StatusStake {
		stake := state.Stake.Stake
		fmt.Fprintf(w, "  voter %s stake %d activation %d credits %d\n",
			stake.Delegation.VoterPubkey, stake.Delegation.StakeLamports, stake.Delegation.ActivationEpoch, stake.CreditsObserved)
	}
	return nil
}
