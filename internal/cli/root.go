// Package cli implements navctl, the one-shot counterpart of the server
// routes.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/web3-frozen/nav-oracle/internal/app"
	"github.com/web3-frozen/nav-oracle/internal/config"
	"github.com/web3-frozen/nav-oracle/internal/nav"
)

// Exit codes for navctl.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // upstream failure: NAV or figure unavailable
	ExitCommandError = 2 // configuration, persistence or lock error
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode extracts the exit code from an error returned by Execute.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitCommandError
}

// Engine is the part of *nav.Engine the commands drive.
type Engine interface {
	RunFull(ctx context.Context) (*nav.RunReport, error)
	RunSnapshot(ctx context.Context) (*nav.RunReport, error)
	PublishedFigure(ctx context.Context) (nav.Figure, error)
	NavMin(ctx context.Context) (nav.NavResult, error)
	NavFull(ctx context.Context) (nav.FullNav, error)
}

// Env is an opened engine plus the snapshot time zone.
type Env struct {
	Engine Engine
	Zone   *time.Location
	Close  func()
}

// RootOptions holds global flags and the hooks tests replace.
type RootOptions struct {
	Verbose bool

	Out  io.Writer
	Now  func() time.Time
	Open func(ctx context.Context, logger *slog.Logger) (*Env, error)
}

// NewRootCommand builds navctl. Nil hooks in opts take their defaults.
func NewRootCommand(opts *RootOptions) *cobra.Command {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Open == nil {
		opts.Open = Open
	}

	cmd := &cobra.Command{
		Use:           "navctl",
		Short:         "Run NAV aggregations and reads once",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewNavCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))
	return cmd
}

// Open loads the configuration from the environment and builds the engine.
func Open(ctx context.Context, logger *slog.Logger) (*Env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	a, err := app.New(ctx, cfg, logger, app.Options{RedisAttempts: 1})
	if err != nil {
		return nil, err
	}
	return &Env{Engine: a.Engine, Zone: cfg.Location(), Close: a.Close}, nil
}

func (o *RootOptions) logger() *slog.Logger {
	level := slog.LevelInfo
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// withEnv opens the engine for the duration of fn.
func (o *RootOptions) withEnv(cmd *cobra.Command, fn func(ctx context.Context, env *Env) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	env, err := o.Open(ctx, o.logger())
	if err != nil {
		return &ExitError{Code: ExitCommandError, Message: "open engine", Err: err}
	}
	if env.Close != nil {
		defer env.Close()
	}
	return fn(ctx, env)
}

func (o *RootOptions) print(v any) error {
	enc := json.NewEncoder(o.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
