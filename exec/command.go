package exec

import (
	"context"
	"io"
	"os"
	osexec "os/exec"
	"sort"
)

// Command is the os/exec backed Executor.
type Command struct {
	config *config
	ctx    context.Context
	stdout io.Writer
	stderr io.Writer
}

// New creates a Command. Passthrough writers default to os.Stdout and
// os.Stderr.
func New(opts ...Option) *Command {
	cmd := &Command{
		config: newConfig(),
		ctx:    context.Background(),
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
	for _, opt := range opts {
		opt(cmd)
	}
	return cmd
}

func (c *Command) WithEnv(env map[string]string) Executor {
	for k, v := range env {
		c.config.localEnv[k] = v
	}
	return c
}

func (c *Command) WithDir(dir string) Executor {
	c.config.localDir = dir
	return c
}

func (c *Command) WithContext(ctx context.Context) Executor {
	c.ctx = ctx
	return c
}

func (c *Command) WithInheritEnv() Executor {
	v := true
	c.config.localInheritEnv = &v
	return c
}

func (c *Command) WithStdout(w io.Writer) Executor {
	c.stdout = w
	return c
}

func (c *Command) WithStderr(w io.Writer) Executor {
	c.stderr = w
	return c
}

func (c *Command) WithPassthrough() Executor {
	v := true
	c.config.localPassthrough = &v
	return c
}

// Run executes the command. Local settings are cleared afterwards whether or
// not the command succeeded.
func (c *Command) Run(args ...string) (*Result, error) {
	defer c.config.resetLocal()

	if len(args) == 0 {
		return nil, &ExecError{Command: args, ExitCode: -1, Err: osexec.ErrNotFound}
	}

	cmd := osexec.CommandContext(c.ctx, args[0], args[1:]...)
	cmd.Dir = c.config.dir()
	cmd.Env = c.environ()

	var stdoutPass, stderrPass io.Writer
	if c.config.passthrough() {
		stdoutPass, stderrPass = c.stdout, c.stderr
	}
	stdout := newOutputCapture(stdoutPass)
	stderr := newOutputCapture(stderrPass)
	combined := newCombinedWriter()

	cmd.Stdout = newMultiWriter(stdout.Writer(), combined)
	cmd.Stderr = newMultiWriter(stderr.Writer(), combined)

	err := cmd.Run()

	result := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Combined: combined.String(),
		ExitCode: -1,
	}
	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}

	if err != nil {
		return result, &ExecError{
			Command:  args,
			ExitCode: result.ExitCode,
			Stdout:   result.Stdout,
			Stderr:   result.Stderr,
			Err:      err,
		}
	}
	return result, nil
}

// environ builds the child environment. A nil slice makes os/exec inherit
// the parent environment, so an explicit empty slice is used when
// inheritance is off.
func (c *Command) environ() []string {
	env := []string{}
	if c.config.inheritEnv() {
		env = append(env, os.Environ()...)
	}

	vars := c.config.env()
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+vars[k])
	}
	return env
}

func (c *Command) Clone() Executor {
	return &Command{
		config: c.config.clone(),
		ctx:    c.ctx,
		stdout: c.stdout,
		stderr: c.stderr,
	}
}
