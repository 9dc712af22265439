// Package retry runs external commands under the bounded linear-backoff
// policy. Network-sensitive invocations (clone, fetch, LFS fetch, the
// submodule helper) are retried; local ones (init, config, repack, checkout)
// run exactly once.
package retry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/buildkite/roko"
	"github.com/chainguard-dev/clog"
	"github.com/kballard/go-shellquote"

	"github.com/namespacelabs/nscloud-checkout-action/errors"
	"github.com/namespacelabs/nscloud-checkout-action/exec"
)

// Class says whether an invocation touches the network.
type Class int

const (
	// Local invocations never retry.
	Local Class = iota
	// Network invocations retry up to Policy.MaxAttempts.
	Network
)

func (c Class) String() string {
	if c == Network {
		return "network"
	}
	return "local"
}

// DefaultUnit is the backoff step between network attempts.
const DefaultUnit = 2 * time.Second

// Policy bounds network retries. The delay after failed attempt n is n*Unit.
type Policy struct {
	MaxAttempts int
	Unit        time.Duration
}

// Delay returns the wait after the given failed attempt (1-based).
func (p Policy) Delay(attempt int) time.Duration {
	return time.Duration(attempt) * p.Unit
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.Unit <= 0 {
		p.Unit = DefaultUnit
	}
	return p
}

// Executor runs a wrapped command under a Policy. Executors are immutable;
// In and WithEnv return derived copies.
type Executor struct {
	exec   exec.Executor
	policy Policy
	trace  bool
	dir    string
	env    map[string]string
}

// Option configures an Executor.
type Option func(*Executor)

// WithTrace requests git protocol tracing from every child.
func WithTrace(trace bool) Option {
	return func(e *Executor) {
		e.trace = trace
	}
}

// New returns an Executor running commands through executor, usually an
// exec.CommandWrapper for git.
func New(executor exec.Executor, policy Policy, opts ...Option) *Executor {
	e := &Executor{
		exec:   executor,
		policy: policy.normalized(),
		env:    map[string]string{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the effective policy.
func (e *Executor) Policy() Policy {
	return e.policy
}

// In returns a copy running commands in dir.
func (e *Executor) In(dir string) *Executor {
	out := e.copy()
	out.dir = dir
	return out
}

// WithEnv returns a copy that adds env to every invocation.
func (e *Executor) WithEnv(env map[string]string) *Executor {
	out := e.copy()
	for k, v := range env {
		out.env[k] = v
	}
	return out
}

// Network runs a retryable invocation.
func (e *Executor) Network(ctx context.Context, args ...string) (*exec.Result, error) {
	return e.Run(ctx, Network, args...)
}

// Local runs an invocation exactly once.
func (e *Executor) Local(ctx context.Context, args ...string) (*exec.Result, error) {
	return e.Run(ctx, Local, args...)
}

// Run executes args according to class. A network failure that exhausts the
// policy is returned as a permanent NETWORK_ERROR wrapping the last attempt's
// error; a local failure is returned as LOCAL_OPERATION_FAILED.
func (e *Executor) Run(ctx context.Context, class Class, args ...string) (*exec.Result, error) {
	log := clog.FromContext(ctx).With("class", class.String())
	if e.dir != "" {
		log = log.With("dir", e.dir)
	}
	log.Debugf("exec: %s", shellquote.Join(append(e.prefix(), args...)...))

	if class == Local {
		res, err := e.once(ctx, args)
		if err != nil {
			return res, errors.WrapWithContext(err, errors.CodeLocalOperation,
				fmt.Sprintf("%s failed", e.describe(args)), map[string]interface{}{"dir": e.dir})
		}
		return res, nil
	}

	var (
		res     *exec.Result
		lastErr error
		attempt int
	)
	err := roko.NewRetrier(
		roko.WithMaxAttempts(e.policy.MaxAttempts),
		roko.WithStrategy(roko.Constant(e.policy.Unit)),
	).DoWithContext(ctx, func(r *roko.Retrier) error {
		attempt++
		res, lastErr = e.once(ctx, args)
		if lastErr == nil {
			return nil
		}
		if attempt >= e.policy.MaxAttempts || ctx.Err() != nil {
			r.Break()
			return lastErr
		}

		delay := e.policy.Delay(attempt)
		r.SetNextInterval(delay)
		log.With(
			"attempt", attempt,
			"max_attempts", e.policy.MaxAttempts,
			"delay", delay,
			"error", lastErr,
		).Warnf("%s failed, retrying in %s", e.describe(args), delay)
		return lastErr
	})
	if err == nil {
		return res, nil
	}
	if lastErr == nil {
		lastErr = err
	}

	wrapped := errors.WrapWithContext(lastErr, errors.CodeNetwork,
		fmt.Sprintf("%s failed after %d attempt(s)", e.describe(args), attempt),
		map[string]interface{}{"attempts": attempt, "dir": e.dir})
	return res, errors.Reclassify(wrapped, errors.ClassificationPermanent)
}

func (e *Executor) once(ctx context.Context, args []string) (*exec.Result, error) {
	return e.exec.Clone().
		WithContext(ctx).
		WithDir(e.dir).
		WithEnv(e.environment()).
		Run(args...)
}

// environment returns the variables added to every child process.
func (e *Executor) environment() map[string]string {
	env := map[string]string{
		"GIT_TERMINAL_PROMPT": "0",
		"GCM_INTERACTIVE":     "Never",
	}
	if e.trace {
		env["GIT_TRACE"] = "1"
		env["GIT_TRACE_PACKET"] = "1"
	}
	for k, v := range e.env {
		env[k] = v
	}
	return env
}

func (e *Executor) copy() *Executor {
	env := make(map[string]string, len(e.env))
	for k, v := range e.env {
		env[k] = v
	}
	return &Executor{
		exec:   e.exec,
		policy: e.policy,
		trace:  e.trace,
		dir:    e.dir,
		env:    env,
	}
}

// prefix returns the wrapped binary name, if the executor has one.
func (e *Executor) prefix() []string {
	if named, ok := e.exec.(interface{ Name() string }); ok {
		return []string{named.Name()}
	}
	return nil
}

// describe names an invocation by the binary and its first non-flag
// argument, skipping -c pairs, without echoing values that may carry
// credentials.
func (e *Executor) describe(args []string) string {
	parts := e.prefix()
	if w, ok := commandName(args); ok {
		parts = append(parts, w)
	}
	if len(parts) == 0 {
		return "command"
	}
	return strings.Join(parts, " ")
}

func commandName(args []string) (string, bool) {
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-c" || args[i] == "-C":
			i++
		case len(args[i]) > 0 && args[i][0] == '-':
		default:
			return args[i], true
		}
	}
	return "", false
}
