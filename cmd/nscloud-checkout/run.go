package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/chainguard-dev/clog"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/namespacelabs/nscloud-checkout-action/action"
	"github.com/namespacelabs/nscloud-checkout-action/errors"
	"github.com/namespacelabs/nscloud-checkout-action/exec"
	"github.com/namespacelabs/nscloud-checkout-action/logging"
)

type runOptions struct {
	inputs     action.Inputs
	inputsFile string
	logLevel   string
}

func newRunCommand(masker *logging.Masker) *cobra.Command {
	opts := &runOptions{inputs: action.DefaultInputs()}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Check out a repository",
		Long: `Check out a repository into the workspace.

Inputs can be given as flags or in a YAML file whose keys match the flag
names. Flags take precedence over the file.

Examples:
  nscloud-checkout run
  nscloud-checkout run --repository acme/widgets --ref v1.2.0 --path widgets
  nscloud-checkout run --inputs inputs.yaml --fetch-depth 0`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheckout(cmd, opts, masker)
		},
	}

	bindRunFlags(cmd.Flags(), opts)

	return cmd
}

func bindRunFlags(fs *pflag.FlagSet, opts *runOptions) {
	bindInputFlags(fs, &opts.inputs)
	fs.StringVar(&opts.inputsFile, "inputs", "", "YAML file with action inputs")
	fs.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn or error (default: info, debug under RUNNER_DEBUG)")
}

func bindInputFlags(fs *pflag.FlagSet, in *action.Inputs) {
	fs.StringVar(&in.Repository, "repository", in.Repository, "Repository to check out, as owner/repo (default: the workflow repository)")
	fs.StringVar(&in.Ref, "ref", in.Ref, "Branch, tag, SHA or fully qualified ref to check out")
	fs.StringVar(&in.Commit, "commit", in.Commit, "Commit to check out")
	fs.StringVar(&in.Token, "token", in.Token, "Token used to fetch the repository (default: $INPUT_TOKEN)")
	fs.StringVar(&in.Path, "path", in.Path, "Checkout location relative to the workspace")
	fs.IntVar(&in.FetchDepth, "fetch-depth", in.FetchDepth, "Number of commits to fetch, 0 for all history")
	fs.StringVar(&in.Filter, "filter", in.Filter, "Partial clone filter, e.g. blob:none")
	fs.StringVar(&in.SparseCheckout, "sparse-checkout", in.SparseCheckout, "Newline or comma separated sparse checkout patterns")
	fs.BoolVar(&in.SparseCheckoutConeMode, "sparse-checkout-cone-mode", in.SparseCheckoutConeMode, "Interpret sparse checkout patterns in cone mode")
	fs.StringVar(&in.Submodules, "submodules", in.Submodules, "Submodule checkout: false, true or recursive")
	fs.StringVar(&in.Dissociate, "dissociate", in.Dissociate, "Copy mirror objects into the checkout: none, main or recursive")
	fs.BoolVar(&in.PersistCredentials, "persist-credentials", in.PersistCredentials, "Keep the token in the local git config")
	fs.BoolVar(&in.LFS, "lfs", in.LFS, "Download Git LFS files")
	fs.IntVar(&in.MaxAttempts, "max-attempts", in.MaxAttempts, "Attempts for network operations")
	fs.BoolVar(&in.Trace, "trace", in.Trace, "Enable git protocol tracing")
	fs.StringArrayVar(&in.MirrorRefspecs, "mirror-refspec", in.MirrorRefspecs, "Refspec kept in the mirror (repeatable, default: all refs)")
	fs.StringVar(&in.SubmoduleHelper, "submodule-helper", in.SubmoduleHelper, "Submodule helper binary")
}

// resolveInputs applies the inputs file, then every flag set explicitly on
// the command line.
func resolveInputs(cmd *cobra.Command, opts *runOptions, env *action.Env) (action.Inputs, error) {
	in := action.DefaultInputs()

	if opts.inputsFile != "" {
		data, err := os.ReadFile(opts.inputsFile)
		if err != nil {
			return in, errors.WithContext(errors.Wrap(err, errors.CodeInvalidConfig, "failed to read inputs file"), "path", opts.inputsFile)
		}
		if err := yaml.Unmarshal(data, &in); err != nil {
			return in, errors.WithContext(errors.Wrap(err, errors.CodeInvalidConfig, "failed to parse inputs file"), "path", opts.inputsFile)
		}
	}

	// Re-bind onto the file values so only changed flags overwrite them.
	overlay := pflag.NewFlagSet("overlay", pflag.ContinueOnError)
	bindInputFlags(overlay, &in)
	var err error
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if err != nil || overlay.Lookup(f.Name) == nil {
			return
		}
		if f.Value.Type() == "stringArray" {
			in.MirrorRefspecs = append([]string(nil), opts.inputs.MirrorRefspecs...)
			return
		}
		err = overlay.Set(f.Name, f.Value.String())
	})
	if err != nil {
		return in, errors.Wrap(err, errors.CodeInvalidInput, "failed to apply flags")
	}

	if in.Token == "" {
		in.Token = env.InputToken
	}
	return in, nil
}

func runCheckout(cmd *cobra.Command, opts *runOptions, masker *logging.Masker) error {
	ctx := cmd.Context()

	env, err := action.LoadEnv(ctx)
	if err != nil {
		return err
	}

	if env.Actions {
		masker.Announce(cmd.OutOrStdout())
	}

	level, err := logLevel(opts.logLevel, env)
	if err != nil {
		return err
	}
	logger := logging.New(logging.Options{Writer: cmd.ErrOrStderr(), Level: level, Masker: masker})
	ctx = logging.WithLogger(ctx, logger)

	in, err := resolveInputs(cmd, opts, env)
	if err != nil {
		return err
	}
	masker.Add(in.Token)

	if err := env.Validate(osfs.New("/")); err != nil {
		return err
	}

	req, err := action.NewRequest(in, env)
	if err != nil {
		return err
	}

	clog.FromContext(ctx).With("ref", req.Ref, "commit", req.Commit, "path", req.WorkDir).
		Infof("Checking out %s", req.Repository())

	output := masker.Writer(cmd.ErrOrStderr())
	defer func() { _ = output.Flush() }()
	executor := exec.New(
		exec.WithInheritEnv(),
		exec.WithPassthrough(),
		exec.WithStdout(output),
		exec.WithStderr(output),
	)

	_, err = action.NewOrchestrator(env,
		action.WithExecutor(executor),
		action.WithMasker(masker),
	).Run(ctx, req)
	return err
}

func logLevel(flag string, env *action.Env) (slog.Level, error) {
	if flag == "" && env.Debug() {
		return slog.LevelDebug, nil
	}
	level, err := logging.ParseLevel(flag)
	if err != nil {
		return level, errors.WithContext(errors.Wrap(err, errors.CodeInvalidInput, fmt.Sprintf("invalid log level %q", flag)), "field", "log-level")
	}
	return level, nil
}
