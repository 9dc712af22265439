// Package exectest provides a recording exec.Executor for tests.
package exectest

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/namespacelabs/nscloud-checkout-action/exec"
)

// Call is one recorded Run.
type Call struct {
	Args []string
	Env  map[string]string
	Dir  string
}

// Line returns the arguments joined by spaces.
func (c Call) Line() string {
	return strings.Join(c.Args, " ")
}

// HandlerFunc decides the outcome of a call. A nil handler succeeds with
// empty output.
type HandlerFunc func(call Call) (*exec.Result, error)

// Recorder records every command run through executors it hands out.
type Recorder struct {
	mu      sync.Mutex
	calls   []Call
	handler HandlerFunc
}

// NewRecorder returns a Recorder answering calls with handler.
func NewRecorder(handler HandlerFunc) *Recorder {
	return &Recorder{handler: handler}
}

// SetHandler replaces the handler.
func (r *Recorder) SetHandler(handler HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handler = handler
}

// Executor returns a fresh executor that records into r.
func (r *Recorder) Executor() exec.Executor {
	return &executor{rec: r, env: map[string]string{}}
}

// Calls returns a copy of the recorded calls.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// Lines returns every recorded call as a joined command line.
func (r *Recorder) Lines() []string {
	calls := r.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Line()
	}
	return out
}

// Matching returns the calls whose command line contains substr.
func (r *Recorder) Matching(substr string) []Call {
	var out []Call
	for _, c := range r.Calls() {
		if strings.Contains(c.Line(), substr) {
			out = append(out, c)
		}
	}
	return out
}

func (r *Recorder) run(call Call) (*exec.Result, error) {
	r.mu.Lock()
	r.calls = append(r.calls, call)
	handler := r.handler
	r.mu.Unlock()

	if handler == nil {
		return &exec.Result{}, nil
	}
	res, err := handler(call)
	if res == nil {
		res = &exec.Result{}
	}
	if err != nil {
		return res, &exec.ExecError{
			Command:  call.Args,
			ExitCode: res.ExitCode,
			Stdout:   res.Stdout,
			Stderr:   res.Stderr,
			Err:      err,
		}
	}
	return res, nil
}

// Fail returns a result and error pair for a handler that simulates a
// non-zero exit.
func Fail(code int, stderr string) (*exec.Result, error) {
	return &exec.Result{ExitCode: code, Stderr: stderr}, errExit
}

var errExit = &exitError{}

type exitError struct{}

func (*exitError) Error() string { return "exit status non-zero" }

type executor struct {
	rec *Recorder
	ctx context.Context
	env map[string]string
	dir string
}

func (e *executor) WithEnv(env map[string]string) exec.Executor {
	for k, v := range env {
		e.env[k] = v
	}
	return e
}

func (e *executor) WithDir(dir string) exec.Executor {
	e.dir = dir
	return e
}

func (e *executor) WithContext(ctx context.Context) exec.Executor {
	e.ctx = ctx
	return e
}

func (e *executor) WithInheritEnv() exec.Executor      { return e }
func (e *executor) WithStdout(io.Writer) exec.Executor { return e }
func (e *executor) WithStderr(io.Writer) exec.Executor { return e }
func (e *executor) WithPassthrough() exec.Executor     { return e }

// Run records and answers the call. Like a process started with a done
// context, a call whose context is already done is never started: it is
// not recorded and fails with exit code -1.
func (e *executor) Run(args ...string) (*exec.Result, error) {
	call := Call{Args: append([]string(nil), args...), Env: e.env, Dir: e.dir}
	e.env = map[string]string{}
	e.dir = ""
	if e.ctx != nil && e.ctx.Err() != nil {
		return &exec.Result{ExitCode: -1}, &exec.ExecError{Command: call.Args, ExitCode: -1, Err: e.ctx.Err()}
	}
	return e.rec.run(call)
}

func (e *executor) Clone() exec.Executor {
	env := make(map[string]string, len(e.env))
	for k, v := range e.env {
		env[k] = v
	}
	return &executor{rec: e.rec, ctx: e.ctx, env: env, dir: e.dir}
}
