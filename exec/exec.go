package exec

import (
	"context"
	"io"
)

// Executor runs a command with a fluent configuration API.
type Executor interface {
	// WithEnv adds environment variables for the next Run.
	WithEnv(env map[string]string) Executor

	// WithDir sets the working directory for the next Run.
	WithDir(dir string) Executor

	// WithContext sets the context the next Run is bound to.
	WithContext(ctx context.Context) Executor

	// WithInheritEnv inherits the parent process environment.
	WithInheritEnv() Executor

	// WithStdout sets the writer used for stdout passthrough.
	WithStdout(w io.Writer) Executor

	// WithStderr sets the writer used for stderr passthrough.
	WithStderr(w io.Writer) Executor

	// WithPassthrough streams output to the configured writers while
	// still capturing it.
	WithPassthrough() Executor

	// Run executes args[0] with the remaining arguments.
	Run(args ...string) (*Result, error)

	// Clone returns an independent copy with the same configuration.
	Clone() Executor
}

// Result is the outcome of a finished command.
type Result struct {
	Stdout   string
	Stderr   string
	Combined string
	ExitCode int
}

// Option configures a Command at creation time.
type Option func(*Command)

// WithEnv returns an Option that sets global environment variables.
func WithEnv(env map[string]string) Option {
	return func(c *Command) {
		for k, v := range env {
			c.config.globalEnv[k] = v
		}
	}
}

// WithDir returns an Option that sets the global working directory.
func WithDir(dir string) Option {
	return func(c *Command) {
		c.config.globalDir = dir
	}
}

// WithInheritEnv returns an Option that inherits the parent environment for
// every Run.
func WithInheritEnv() Option {
	return func(c *Command) {
		c.config.globalInheritEnv = true
	}
}

// WithStdout returns an Option that sets the stdout passthrough writer.
func WithStdout(w io.Writer) Option {
	return func(c *Command) {
		c.stdout = w
	}
}

// WithStderr returns an Option that sets the stderr passthrough writer.
func WithStderr(w io.Writer) Option {
	return func(c *Command) {
		c.stderr = w
	}
}

// WithPassthrough returns an Option that streams output on every Run.
func WithPassthrough() Option {
	return func(c *Command) {
		c.config.globalPassthrough = true
	}
}
