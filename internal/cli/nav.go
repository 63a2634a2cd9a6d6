package cli

import (
	"context"

	"github.com/spf13/cobra"
)

func NewNavCommand(rootOpts *RootOptions) *cobra.Command {
	var full bool
	cmd := &cobra.Command{
		Use:   "nav",
		Short: "Print the current NAV without persisting it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return rootOpts.withEnv(cmd, func(ctx context.Context, env *Env) error {
				if full {
					res, err := env.Engine.NavFull(ctx)
					if err != nil {
						return &ExitError{Code: ExitCommandError, Message: "nav", Err: err}
					}
					if err := rootOpts.print(res); err != nil {
						return err
					}
					if res.Result.TotalUSD == nil {
						return &ExitError{Code: ExitFailure, Message: "nav: mandatory source failed"}
					}
					return nil
				}

				res, err := env.Engine.NavMin(ctx)
				if err != nil {
					return &ExitError{Code: ExitCommandError, Message: "nav", Err: err}
				}
				if err := rootOpts.print(res); err != nil {
					return err
				}
				if res.TotalUSD == nil {
					return &ExitError{Code: ExitFailure, Message: "nav: mandatory source failed"}
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "include DeFi and validator legs")
	return cmd
}

func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Print the published figure",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return rootOpts.withEnv(cmd, func(ctx context.Context, env *Env) error {
				fig, err := env.Engine.PublishedFigure(ctx)
				if err != nil {
					return &ExitError{Code: ExitCommandError, Message: "token", Err: err}
				}
				if err := rootOpts.print(fig); err != nil {
					return err
				}
				if fig.Value == nil {
					return &ExitError{Code: ExitFailure, Message: "token: " + fig.Error}
				}
				return nil
			})
		},
	}
}
