package latticacmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/gordian-engine/lattica/lhttp"
	"github.com/spf13/cobra"
)

// addrFlag registers --addr on cmd and returns a function
// building a client for the chosen address.
func addrFlag(cmd *cobra.Command) func() *lhttp.Client {
	addr := cmd.Flags().String("addr", "http://"+DefaultAddr, "engine address (http://host:port or unix://<socket path>)")
	return func() *lhttp.Client {
		return lhttp.NewClient(*addr)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseBlockID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid block id %q: %w", s, err)
	}
	return id, nil
}

func parseScore(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid score %q: %w", s, err)
	}
	return f, nil
}

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print a summary of engine state",
		Args:  cobra.NoArgs,
	}
	client := addrFlag(cmd)
	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		st, err := client().Status(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), st)
	}
	return cmd
}

func newValidatorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validator",
		Short: "Manage validators",
	}
	cmd.AddCommand(
		newValidatorRegisterCmd(),
		newValidatorListCmd(),
		newValidatorScoreCmd(),
		newValidatorRotateCmd(),
	)
	return cmd
}

func newValidatorRegisterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register ID SCORE STAKE",
		Short: "Register or re-register a validator",
		Args:  cobra.ExactArgs(3),
	}
	client := addrFlag(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		score, err := parseScore(args[1])
		if err != nil {
			return err
		}
		stake, err := strconv.ParseUint(args[2], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid stake %q: %w", args[2], err)
		}

		v, err := client().Register(cmd.Context(), args[0], score, stake)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), v)
	}
	return cmd
}

func newValidatorListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List validators in registration order",
		Args:  cobra.NoArgs,
	}
	client := addrFlag(cmd)
	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		vals, err := client().Validators(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), vals)
	}
	return cmd
}

func newValidatorScoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-score ID SCORE",
		Short: "Report a new score for a validator",
		Args:  cobra.ExactArgs(2),
	}
	client := addrFlag(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		score, err := parseScore(args[1])
		if err != nil {
			return err
		}

		v, err := client().UpdateScore(cmd.Context(), args[0], score)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), v)
	}
	return cmd
}

func newValidatorRotateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rotate",
		Short: "Deactivate validators whose score is below the threshold",
		Args:  cobra.NoArgs,
	}
	client := addrFlag(cmd)
	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		vals, err := client().Rotate(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), vals)
	}
	return cmd
}

func newProposeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "propose PROPOSER SCORE",
		Short: "Propose a block on top of the current chain tip",
		Args:  cobra.ExactArgs(2),
	}
	client := addrFlag(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		score, err := parseScore(args[1])
		if err != nil {
			return err
		}

		b, err := client().Propose(cmd.Context(), score, args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), b)
	}
	return cmd
}

func newVoteCmd() *cobra.Command {
	var reject bool

	cmd := &cobra.Command{
		Use:   "vote BLOCK_ID VALIDATOR",
		Short: "Approve, or with --reject disapprove, a pending block",
		Args:  cobra.ExactArgs(2),
	}
	client := addrFlag(cmd)
	cmd.Flags().BoolVar(&reject, "reject", false, "record a disapproval instead of an approval")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		id, err := parseBlockID(args[0])
		if err != nil {
			return err
		}

		res, err := client().Vote(cmd.Context(), id, args[1], !reject)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), res)
		return err
	}
	return cmd
}

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check BLOCK_ID",
		Short: "Evaluate consensus on a pending block, confirming it if reached",
		Args:  cobra.ExactArgs(1),
	}
	client := addrFlag(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		id, err := parseBlockID(args[0])
		if err != nil {
			return err
		}

		res, err := client().CheckConsensus(cmd.Context(), id)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	}
	return cmd
}

func newPendingCmd() *cobra.Command {
	var votesFor string

	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List pending blocks, or with --votes the votes on one of them",
		Args:  cobra.NoArgs,
	}
	client := addrFlag(cmd)
	cmd.Flags().StringVar(&votesFor, "votes", "", "show approvals and rejections for this block id")
	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		c := client()
		if votesFor != "" {
			id, err := parseBlockID(votesFor)
			if err != nil {
				return err
			}
			votes, err := c.BlockVotes(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), votes)
		}

		blocks, err := c.Pending(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), blocks)
	}
	return cmd
}

func newChainCmd() *cobra.Command {
	var tip bool

	cmd := &cobra.Command{
		Use:   "chain",
		Short: "Print the confirmed chain",
		Args:  cobra.NoArgs,
	}
	client := addrFlag(cmd)
	cmd.Flags().BoolVar(&tip, "tip", false, "print only the most recent confirmed block")
	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		if tip {
			b, err := client().ChainTip(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), b)
		}

		blocks, err := client().Chain(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), blocks)
	}
	return cmd
}

func newScoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Print the mean score of all registered validators",
		Args:  cobra.NoArgs,
	}
	client := addrFlag(cmd)
	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		s, err := client().NetworkScore(cmd.Context())
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%.4f\n", s)
		return err
	}
	return cmd
}

func newExpireCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "expire",
		Short: "Evict pending blocks older than the engine's pending TTL",
		Args:  cobra.NoArgs,
	}
	client := addrFlag(cmd)
	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		ids, err := client().ExpirePending(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), ids)
	}
	return cmd
}
