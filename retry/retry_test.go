package retry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namespacelabs/nscloud-checkout-action/errors"
	"github.com/namespacelabs/nscloud-checkout-action/exec"
	"github.com/namespacelabs/nscloud-checkout-action/exec/exectest"
)

const unit = time.Millisecond

// logCapture returns a context whose logger writes JSON records to the
// returned buffer.
func logCapture(t *testing.T) (context.Context, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := clog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return clog.WithLogger(context.Background(), logger), &buf
}

func warnings(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		rec := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		if rec["level"] == "WARN" {
			out = append(out, rec)
		}
	}
	return out
}

// failTimes fails the first n calls.
func failTimes(n int) exectest.HandlerFunc {
	calls := 0
	return func(exectest.Call) (*exec.Result, error) {
		calls++
		if calls <= n {
			return exectest.Fail(128, "fatal: unable to access remote")
		}
		return &exec.Result{Stdout: "ok"}, nil
	}
}

func TestNetworkRetriesWithLinearBackoff(t *testing.T) {
	t.Parallel()

	ctx, logs := logCapture(t)
	rec := exectest.NewRecorder(failTimes(2))
	git := New(exec.NewWrapper(rec.Executor(), "git"), Policy{MaxAttempts: 3, Unit: unit})

	res, err := git.Network(ctx, "fetch", "origin")
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Stdout)
	assert.Len(t, rec.Calls(), 3)

	warns := warnings(t, logs)
	require.Len(t, warns, 2)
	assert.EqualValues(t, 1*unit, warns[0]["delay"])
	assert.EqualValues(t, 2*unit, warns[1]["delay"])
	assert.EqualValues(t, 1, warns[0]["attempt"])
	assert.EqualValues(t, 2, warns[1]["attempt"])
	assert.Contains(t, warns[0]["msg"], "git fetch failed")
}

func TestNetworkExhaustsAttempts(t *testing.T) {
	t.Parallel()

	ctx, logs := logCapture(t)
	rec := exectest.NewRecorder(func(exectest.Call) (*exec.Result, error) {
		return exectest.Fail(128, "fatal: could not read from remote")
	})
	git := New(exec.NewWrapper(rec.Executor(), "git"), Policy{MaxAttempts: 3, Unit: unit})

	_, err := git.Network(ctx, "clone", "--mirror", "https://github.com/acme/widgets", "/cache")
	require.Error(t, err)

	assert.Len(t, rec.Calls(), 3)
	assert.Len(t, warnings(t, logs), 2, "no warning after the final attempt")
	assert.Equal(t, errors.CodeNetwork, errors.GetCode(err))
	assert.False(t, errors.IsRetryable(err), "exhausted failures are final")

	var execErr *exec.ExecError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, 128, execErr.ExitCode)
}

func TestLocalRunsOnce(t *testing.T) {
	t.Parallel()

	ctx, logs := logCapture(t)
	rec := exectest.NewRecorder(func(exectest.Call) (*exec.Result, error) {
		return exectest.Fail(1, "error: pathspec did not match")
	})
	git := New(exec.NewWrapper(rec.Executor(), "git"), Policy{MaxAttempts: 5, Unit: unit})

	_, err := git.Local(ctx, "checkout", "--force", "main")
	require.Error(t, err)

	assert.Len(t, rec.Calls(), 1)
	assert.Empty(t, warnings(t, logs))
	assert.Equal(t, errors.CodeLocalOperation, errors.GetCode(err))
	assert.Contains(t, err.Error(), "git checkout failed")
}

func TestSingleAttemptPolicy(t *testing.T) {
	t.Parallel()

	ctx, _ := logCapture(t)
	rec := exectest.NewRecorder(failTimes(1))
	git := New(exec.NewWrapper(rec.Executor(), "git"), Policy{MaxAttempts: 1, Unit: unit})

	_, err := git.Network(ctx, "fetch")
	require.Error(t, err)
	assert.Len(t, rec.Calls(), 1)
}

func TestEnvironment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		trace bool
		want  map[string]string
		unset []string
	}{
		{
			name:  "prompts suppressed",
			want:  map[string]string{"GIT_TERMINAL_PROMPT": "0", "GCM_INTERACTIVE": "Never"},
			unset: []string{"GIT_TRACE", "GIT_TRACE_PACKET"},
		},
		{
			name:  "trace enabled",
			trace: true,
			want: map[string]string{
				"GIT_TERMINAL_PROMPT": "0",
				"GIT_TRACE":           "1",
				"GIT_TRACE_PACKET":    "1",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := exectest.NewRecorder(nil)
			git := New(exec.NewWrapper(rec.Executor(), "git"), Policy{MaxAttempts: 1}, WithTrace(tt.trace))

			_, err := git.Local(context.Background(), "init")
			require.NoError(t, err)

			call := rec.Calls()[0]
			for k, v := range tt.want {
				assert.Equal(t, v, call.Env[k], k)
			}
			for _, k := range tt.unset {
				assert.NotContains(t, call.Env, k)
			}
		})
	}
}

func TestDerivedExecutors(t *testing.T) {
	t.Parallel()

	rec := exectest.NewRecorder(nil)
	base := New(exec.NewWrapper(rec.Executor(), "git"), Policy{MaxAttempts: 2})
	derived := base.In("/work").WithEnv(map[string]string{"GIT_ALTERNATE_OBJECT_DIRECTORIES": "/mirror/objects"})

	_, err := derived.Local(context.Background(), "status")
	require.NoError(t, err)
	_, err = base.Local(context.Background(), "status")
	require.NoError(t, err)

	calls := rec.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, []string{"git", "status"}, calls[0].Args)
	assert.Equal(t, "/work", calls[0].Dir)
	assert.Equal(t, "/mirror/objects", calls[0].Env["GIT_ALTERNATE_OBJECT_DIRECTORIES"])
	assert.Empty(t, calls[1].Dir)
	assert.NotContains(t, calls[1].Env, "GIT_ALTERNATE_OBJECT_DIRECTORIES")
}

func TestPolicy(t *testing.T) {
	t.Parallel()

	p := Policy{MaxAttempts: 0}.normalized()
	assert.Equal(t, 1, p.MaxAttempts)
	assert.Equal(t, DefaultUnit, p.Unit)
	assert.Equal(t, 3*time.Second, Policy{Unit: time.Second}.Delay(3))
}

func TestCommandName(t *testing.T) {
	t.Parallel()

	name, ok := commandName([]string{"-c", "protocol.version=2", "fetch", "--prune"})
	assert.True(t, ok)
	assert.Equal(t, "fetch", name)

	_, ok = commandName([]string{"--version"})
	assert.False(t, ok)
}
