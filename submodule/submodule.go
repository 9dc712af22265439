// Package submodule hands submodule materialization to an external helper.
package submodule

import (
	"context"
	"strconv"
	"strings"

	"github.com/chainguard-dev/clog"

	"github.com/namespacelabs/nscloud-checkout-action/errors"
	"github.com/namespacelabs/nscloud-checkout-action/retry"
)

// DefaultHelper is the helper binary looked up on PATH.
const DefaultHelper = "nsc-git-submodules"

// Mode selects how submodules are checked out.
type Mode string

const (
	None      Mode = "none"
	Shallow   Mode = "shallow"
	Recursive Mode = "recursive"
)

// ParseMode accepts the action's boolean-ish values as well as mode names.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "false", "none":
		return None, nil
	case "true", "shallow":
		return Shallow, nil
	case "recursive":
		return Recursive, nil
	default:
		return None, errors.Newf(errors.CodeInvalidInput, "invalid submodules value %q: expected false, true or recursive", s)
	}
}

// Options describes one helper invocation.
type Options struct {
	Mode Mode

	// MirrorDir is the directory holding this identity's mirrors.
	MirrorDir string

	// WorkDir is the checkout whose submodules are materialized.
	WorkDir string

	Depth      int
	Filter     string
	Dissociate bool
	Debug      bool

	// Env is added to the helper's environment.
	Env map[string]string
}

// Args returns the helper's command line for opts.
func Args(opts Options) []string {
	args := []string{"--mirror-dir", opts.MirrorDir, "--repo", opts.WorkDir}
	if opts.Mode == Recursive {
		args = append(args, "--recursive")
	}
	if opts.Depth > 0 {
		args = append(args, "--depth", strconv.Itoa(opts.Depth))
	}
	if opts.Filter != "" {
		args = append(args, "--filter", opts.Filter)
	}
	if opts.Dissociate {
		args = append(args, "--dissociate")
	}
	if opts.Debug {
		args = append(args, "--debug")
	}
	return args
}

// Orchestrator runs the helper under the network retry policy.
type Orchestrator struct {
	helper *retry.Executor
}

// NewOrchestrator returns an Orchestrator. helper should wrap the helper
// binary.
func NewOrchestrator(helper *retry.Executor) *Orchestrator {
	return &Orchestrator{helper: helper}
}

// Run materializes submodules according to opts. Mode None does nothing.
func (o *Orchestrator) Run(ctx context.Context, opts Options) error {
	if opts.Mode == None || opts.Mode == "" {
		return nil
	}

	clog.FromContext(ctx).Infof("Checking out submodules (%s)", opts.Mode)

	if _, err := o.helper.In(opts.WorkDir).WithEnv(opts.Env).Network(ctx, Args(opts)...); err != nil {
		return errors.WithContext(errors.Wrap(err, errors.CodeNetwork, "failed to check out submodules"), "path", opts.WorkDir)
	}
	return nil
}
