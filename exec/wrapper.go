package exec

import (
	"context"
	"io"
)

// CommandWrapper prepends a fixed binary name to every Run, for tools that are
// invoked many times with different arguments (git, sudo, the submodule
// helper). It is itself an Executor, so wrappers can sit on top of fakes.
type CommandWrapper struct {
	executor Executor
	cmd      string
}

// NewWrapper returns a wrapper running cmd through executor.
func NewWrapper(executor Executor, cmd string) *CommandWrapper {
	return &CommandWrapper{executor: executor, cmd: cmd}
}

// Name returns the wrapped binary.
func (w *CommandWrapper) Name() string {
	return w.cmd
}

func (w *CommandWrapper) WithEnv(env map[string]string) Executor {
	w.executor = w.executor.WithEnv(env)
	return w
}

func (w *CommandWrapper) WithDir(dir string) Executor {
	w.executor = w.executor.WithDir(dir)
	return w
}

func (w *CommandWrapper) WithContext(ctx context.Context) Executor {
	w.executor = w.executor.WithContext(ctx)
	return w
}

func (w *CommandWrapper) WithInheritEnv() Executor {
	w.executor = w.executor.WithInheritEnv()
	return w
}

func (w *CommandWrapper) WithStdout(out io.Writer) Executor {
	w.executor = w.executor.WithStdout(out)
	return w
}

func (w *CommandWrapper) WithStderr(out io.Writer) Executor {
	w.executor = w.executor.WithStderr(out)
	return w
}

func (w *CommandWrapper) WithPassthrough() Executor {
	w.executor = w.executor.WithPassthrough()
	return w
}

// Run executes the wrapped binary with args.
func (w *CommandWrapper) Run(args ...string) (*Result, error) {
	full := make([]string, 0, len(args)+1)
	full = append(full, w.cmd)
	full = append(full, args...)
	return w.executor.Run(full...)
}

func (w *CommandWrapper) Clone() Executor {
	return &CommandWrapper{executor: w.executor.Clone(), cmd: w.cmd}
}
