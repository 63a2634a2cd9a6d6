package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3-frozen/nav-oracle/internal/nav"
)

type fakeEngine struct {
	fullCalls int
	snapCalls int
	navTotal  *float64
	figure    nav.Figure
	fullErr   error
}

func (f *fakeEngine) RunFull(context.Context) (*nav.RunReport, error) {
	f.fullCalls++
	if f.fullErr != nil {
		return nil, f.fullErr
	}
	return &nav.RunReport{RunID: "full-1", Kind: nav.RunKindFull, Nav: &nav.NavResult{TotalUSD: f.navTotal}}, nil
}

func (f *fakeEngine) RunSnapshot(context.Context) (*nav.RunReport, error) {
	f.snapCalls++
	return &nav.RunReport{
		RunID:  "snap-1",
		Kind:   nav.RunKindSnapshot,
		Writes: []nav.WriteOutcome{{Op: "append", Key: "1", Value: 1.07, Label: "Token!C7"}},
	}, nil
}

func (f *fakeEngine) PublishedFigure(context.Context) (nav.Figure, error) { return f.figure, nil }

func (f *fakeEngine) NavMin(context.Context) (nav.NavResult, error) {
	return nav.NavResult{TotalUSD: f.navTotal, Degraded: f.navTotal == nil}, nil
}

func (f *fakeEngine) NavFull(context.Context) (nav.FullNav, error) {
	return nav.FullNav{Address: "0xabc", Result: nav.NavResult{TotalUSD: f.navTotal}}, nil
}

func fp(v float64) *float64 { return &v }

func execute(t *testing.T, eng *fakeEngine, now time.Time, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	opts := &RootOptions{
		Out: &out,
		Now: func() time.Time { return now },
		Open: func(context.Context, *slog.Logger) (*Env, error) {
			return &Env{Engine: eng, Zone: time.UTC}, nil
		},
	}
	cmd := NewRootCommand(opts)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

var (
	noon     = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	midnight = time.Date(2025, 6, 1, 0, 5, 0, 0, time.UTC)
)

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand(&RootOptions{})
	for _, name := range []string{"run", "nav", "token"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, sub.Name())
	}
}

func TestRunDefaultSkipsSnapshotOutsideMidnight(t *testing.T) {
	eng := &fakeEngine{navTotal: fp(346500)}
	out, err := execute(t, eng, noon, "run")
	require.NoError(t, err)
	assert.Equal(t, 1, eng.fullCalls)
	assert.Equal(t, 0, eng.snapCalls)

	var reports []nav.RunReport
	require.NoError(t, json.Unmarshal([]byte(out), &reports))
	require.Len(t, reports, 1)
	assert.Equal(t, "full-1", reports[0].RunID)
}

func TestRunDefaultAtMidnightRunsBoth(t *testing.T) {
	eng := &fakeEngine{navTotal: fp(346500)}
	_, err := execute(t, eng, midnight, "run")
	require.NoError(t, err)
	assert.Equal(t, 1, eng.fullCalls)
	assert.Equal(t, 1, eng.snapCalls)
}

func TestRunFlags(t *testing.T) {
	eng := &fakeEngine{navTotal: fp(1)}
	_, err := execute(t, eng, midnight, "run", "--full-only")
	require.NoError(t, err)
	assert.Equal(t, 1, eng.fullCalls)
	assert.Equal(t, 0, eng.snapCalls)

	eng = &fakeEngine{navTotal: fp(1)}
	_, err = execute(t, eng, noon, "run", "--snapshot-only")
	require.NoError(t, err)
	assert.Equal(t, 0, eng.fullCalls)
	assert.Equal(t, 1, eng.snapCalls)

	eng = &fakeEngine{navTotal: fp(1)}
	_, err = execute(t, eng, noon, "run", "--midnight-only")
	require.NoError(t, err)
	assert.Equal(t, 0, eng.fullCalls)
	assert.Equal(t, 1, eng.snapCalls)

	_, err = execute(t, &fakeEngine{}, noon, "run", "--full-only", "--snapshot-only")
	assert.Error(t, err)
	_, err = execute(t, &fakeEngine{}, noon, "run", "--full-only", "--midnight-only")
	assert.Error(t, err)
}

func TestRunExitCodes(t *testing.T) {
	_, err := execute(t, &fakeEngine{}, noon, "run")
	assert.Equal(t, ExitFailure, ExitCode(err), "nil NAV is an upstream failure")

	_, err = execute(t, &fakeEngine{fullErr: nav.ErrRunInProgress}, noon, "run")
	assert.Equal(t, ExitCommandError, ExitCode(err))
	assert.True(t, errors.Is(err, nav.ErrRunInProgress))
}

func TestNavCommand(t *testing.T) {
	out, err := execute(t, &fakeEngine{navTotal: fp(250000)}, noon, "nav")
	require.NoError(t, err)
	var res nav.NavResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.NotNil(t, res.TotalUSD)
	assert.Equal(t, 250000.0, *res.TotalUSD)

	out, err = execute(t, &fakeEngine{navTotal: fp(250000)}, noon, "nav", "--full")
	require.NoError(t, err)
	assert.Contains(t, out, `"address": "0xabc"`)

	_, err = execute(t, &fakeEngine{}, noon, "nav")
	assert.Equal(t, ExitFailure, ExitCode(err))
}

func TestTokenCommand(t *testing.T) {
	out, err := execute(t, &fakeEngine{figure: nav.Figure{Value: fp(1.07)}}, noon, "token")
	require.NoError(t, err)
	assert.Contains(t, out, `"value": 1.07`)

	_, err = execute(t, &fakeEngine{figure: nav.Figure{Error: "cell empty"}}, noon, "token")
	assert.Equal(t, ExitFailure, ExitCode(err))
	assert.Contains(t, err.Error(), "cell empty")
}

func TestOpenErrorIsCommandError(t *testing.T) {
	opts := &RootOptions{
		Out: &bytes.Buffer{},
		Open: func(context.Context, *slog.Logger) (*Env, error) {
			return nil, errors.New("DATABASE_URL missing")
		},
	}
	cmd := NewRootCommand(opts)
	cmd.SetArgs([]string{"token"})
	err := cmd.Execute()
	assert.Equal(t, ExitCommandError, ExitCode(err))
	assert.Equal(t, ExitSuccess, ExitCode(nil))
}
