package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/web3-frozen/nav-oracle/internal/nav"
)

type RunOptions struct {
	*RootOptions
	FullOnly     bool
	SnapshotOnly bool
}

func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full aggregation, then the snapshot at local midnight",
		Long: `Run the full aggregation once. When the local hour in SNAPSHOT_TZ is 0
the ledger snapshot runs afterwards.

Example:
  navctl run
  navctl run --snapshot-only`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withEnv(cmd, opts.run)
		},
	}
	cmd.Flags().BoolVar(&opts.FullOnly, "full-only", false, "skip the snapshot")
	cmd.Flags().BoolVar(&opts.SnapshotOnly, "snapshot-only", false, "run only the snapshot")
	cmd.Flags().BoolVar(&opts.SnapshotOnly, "midnight-only", false, "alias of --snapshot-only")
	cmd.MarkFlagsMutuallyExclusive("full-only", "snapshot-only")
	cmd.MarkFlagsMutuallyExclusive("full-only", "midnight-only")
	return cmd
}

func (o *RunOptions) run(ctx context.Context, env *Env) error {
	var reports []*nav.RunReport
	var errs []error

	runFull := !o.SnapshotOnly
	runSnapshot := o.SnapshotOnly
	if !o.FullOnly && !o.SnapshotOnly {
		zone := env.Zone
		if zone == nil {
			zone = o.Now().Location()
		}
		runSnapshot = o.Now().In(zone).Hour() == 0
	}

	if runFull {
		report, err := env.Engine.RunFull(ctx)
		if report != nil {
			reports = append(reports, report)
		}
		switch {
		case err != nil:
			errs = append(errs, &ExitError{Code: ExitCommandError, Message: "full run", Err: err})
		case report.Nav != nil && report.Nav.TotalUSD == nil:
			errs = append(errs, &ExitError{Code: ExitFailure, Message: "full run: mandatory source failed"})
		}
	}
	if runSnapshot {
		report, err := env.Engine.RunSnapshot(ctx)
		if report != nil {
			reports = append(reports, report)
		}
		switch {
		case err != nil:
			errs = append(errs, &ExitError{Code: ExitCommandError, Message: "snapshot run", Err: err})
		case report.Appended() == 0:
			errs = append(errs, &ExitError{Code: ExitFailure, Message: "snapshot run: no range could be read"})
		}
	}

	if err := o.print(reports); err != nil {
		return err
	}
	return errors.Join(errs...)
}
