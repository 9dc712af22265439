package action

import (
	"context"
	"os"

	"github.com/go-git/go-billy/v5"
	"github.com/sethvargo/go-envconfig"

	"github.com/namespacelabs/nscloud-checkout-action/errors"
)

// Env is the runner environment a run depends on.
type Env struct {
	MirrorRoot     string `env:"NSC_GIT_MIRROR"`
	MirrorDisabled bool   `env:"NSC_GIT_MIRROR_DISABLED,default=false"`
	Workspace      string `env:"GITHUB_WORKSPACE"`
	Repository     string `env:"GITHUB_REPOSITORY"`
	ServerURL      string `env:"GITHUB_SERVER_URL,default=https://github.com"`
	APIURL         string `env:"GITHUB_API_URL,default=https://api.github.com"`
	Ref            string `env:"GITHUB_REF"`
	SHA            string `env:"GITHUB_SHA"`
	Output         string `env:"GITHUB_OUTPUT"`
	Actions        bool   `env:"GITHUB_ACTIONS,default=false"`
	RunnerDebug    string `env:"RUNNER_DEBUG"`

	// InputToken is the token input as exported by the Actions runner.
	InputToken string `env:"INPUT_TOKEN"`
}

// Debug reports whether the runner asked for debug output.
func (e *Env) Debug() bool {
	return e.RunnerDebug == "1"
}

// LoadEnv reads Env from the process environment.
func LoadEnv(ctx context.Context) (*Env, error) {
	return loadEnv(ctx, envconfig.OsLookuper())
}

func loadEnv(ctx context.Context, lookuper envconfig.Lookuper) (*Env, error) {
	var env Env
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &env,
		Lookuper: lookuper,
	}); err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidConfig, "failed to read environment")
	}
	return &env, nil
}

// Validate checks the preconditions of a run. Failures carry a remediation
// hint.
func (e *Env) Validate(fs billy.Filesystem) error {
	if e.MirrorRoot == "" {
		err := errors.New(errors.CodePrecondition, "NSC_GIT_MIRROR is not set")
		if e.MirrorDisabled {
			return errors.WithHint(err, "the Git mirror is disabled for this runner profile; enable Git mirroring in the profile's caching settings")
		}
		return errors.WithHint(err, "this action requires a Namespace runner with Git mirroring enabled")
	}

	if e.Workspace == "" {
		err := errors.New(errors.CodePrecondition, "GITHUB_WORKSPACE is not set")
		return errors.WithHint(err, "run this action inside a GitHub Actions job")
	}

	info, err := fs.Stat(e.Workspace)
	switch {
	case os.IsNotExist(err):
		err := errors.Newf(errors.CodePrecondition, "workspace %s does not exist", e.Workspace)
		return errors.WithHint(err, "make sure GITHUB_WORKSPACE points at an existing directory")
	case err != nil:
		return errors.WithContext(errors.Wrap(err, errors.CodeFilesystem, "failed to inspect workspace"), "path", e.Workspace)
	case !info.IsDir():
		return errors.Newf(errors.CodePrecondition, "workspace %s is not a directory", e.Workspace)
	}
	return nil
}
