package action

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/namespacelabs/nscloud-checkout-action/auth"
	"github.com/namespacelabs/nscloud-checkout-action/checkout"
	"github.com/namespacelabs/nscloud-checkout-action/errors"
	"github.com/namespacelabs/nscloud-checkout-action/exec"
	"github.com/namespacelabs/nscloud-checkout-action/fetchplan"
	"github.com/namespacelabs/nscloud-checkout-action/github"
	"github.com/namespacelabs/nscloud-checkout-action/logging"
	"github.com/namespacelabs/nscloud-checkout-action/mirror"
	"github.com/namespacelabs/nscloud-checkout-action/refs"
	"github.com/namespacelabs/nscloud-checkout-action/retry"
	"github.com/namespacelabs/nscloud-checkout-action/submodule"
)

// Result describes a finished checkout.
type Result struct {
	// Ref is the qualified ref that was checked out, or the commit for
	// commit-only requests.
	Ref string

	// Commit is the SHA of the checked out HEAD.
	Commit string

	MirrorPath string
	WorkDir    string
}

// Orchestrator runs checkouts in one runner environment.
type Orchestrator struct {
	env    *Env
	exec   exec.Executor
	fs     billy.Filesystem
	masker *logging.Masker
	lookup refs.DefaultBranchLookup
	uid    int
	unit   time.Duration
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithExecutor sets the executor that runs git, sudo and the submodule
// helper.
func WithExecutor(e exec.Executor) Option {
	return func(o *Orchestrator) {
		o.exec = e
	}
}

// WithFilesystem sets the filesystem, rooted at /.
func WithFilesystem(fs billy.Filesystem) Option {
	return func(o *Orchestrator) {
		o.fs = fs
	}
}

// WithMasker sets the masker credentials are registered with.
func WithMasker(m *logging.Masker) Option {
	return func(o *Orchestrator) {
		o.masker = m
	}
}

// WithDefaultBranchLookup replaces the GitHub API lookup used when the
// mirror has no HEAD.
func WithDefaultBranchLookup(lookup refs.DefaultBranchLookup) Option {
	return func(o *Orchestrator) {
		o.lookup = lookup
	}
}

// WithUID sets the identity used for the mirror namespace.
func WithUID(uid int) Option {
	return func(o *Orchestrator) {
		o.uid = uid
	}
}

// WithRetryUnit sets the backoff unit for network retries.
func WithRetryUnit(unit time.Duration) Option {
	return func(o *Orchestrator) {
		o.unit = unit
	}
}

// NewOrchestrator returns an Orchestrator for env.
func NewOrchestrator(env *Env, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		env:  env,
		exec: exec.New(exec.WithInheritEnv()),
		fs:   osfs.New("/"),
		uid:  os.Getuid(),
		unit: retry.DefaultUnit,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) executor(name string, req *Request) *retry.Executor {
	policy := retry.Policy{MaxAttempts: req.MaxAttempts, Unit: o.unit}
	return retry.New(exec.NewWrapper(o.exec.Clone(), name), policy, retry.WithTrace(req.Trace))
}

// Run performs the checkout described by req. Global credentials are
// removed before Run returns, whether or not the checkout succeeded.
func (o *Orchestrator) Run(ctx context.Context, req *Request) (*Result, error) {
	if err := o.env.Validate(o.fs); err != nil {
		return nil, err
	}

	ctx = clog.WithLogger(ctx, clog.FromContext(ctx).With("repository", req.Repository()))
	log := clog.FromContext(ctx)

	git := o.executor("git", req)

	creds, err := auth.NewManager(git, o.env.ServerURL, req.Token, o.masker)
	if err != nil {
		return nil, err
	}

	var result *Result
	err = creds.WithCredential(ctx, auth.Global, func(ctx context.Context) error {
		var err error
		result, err = o.checkout(ctx, req, git, creds)
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := o.writeOutputs(result); err != nil {
		return nil, err
	}

	log.Infof("Checked out %s at %s into %s", result.Ref, result.Commit, result.WorkDir)
	return result, nil
}

func (o *Orchestrator) checkout(ctx context.Context, req *Request, git *retry.Executor, creds *auth.Manager) (*Result, error) {
	mirrors := mirror.NewManager(o.env.MirrorRoot, git,
		mirror.WithFilesystem(o.fs),
		mirror.WithUID(o.uid),
		mirror.WithServerURL(o.env.ServerURL),
		mirror.WithRefspecs(req.MirrorRefspecs),
		mirror.WithLFS(req.LFS),
		mirror.WithSudo(o.executor("sudo", req)),
	)

	mirrorPath, err := mirrors.Ensure(ctx, req.Owner, req.Repo)
	if err != nil {
		return nil, err
	}

	lookup, err := o.defaultBranchLookup(req)
	if err != nil {
		return nil, err
	}
	resolver := refs.NewResolver(req.Owner, req.Repo,
		refs.WithDefaultBranchLookup(lookup),
		refs.WithWorkflowRepository(req.IsWorkflowRepository),
	)
	res, err := resolver.Resolve(ctx, req.Ref, req.Commit, mirrorPath)
	if err != nil {
		return nil, err
	}

	refspecs := fetchplan.Plan(res, req.FetchDepth, nil)

	materializer := checkout.NewExecutor(git,
		checkout.WithFilesystem(o.fs),
		checkout.WithServerURL(o.env.ServerURL),
	)
	head, err := materializer.Materialize(ctx, checkout.Request{
		Owner:      req.Owner,
		Repo:       req.Repo,
		FetchDepth: req.FetchDepth,
		Filter:     req.Filter,
		Sparse:     req.Sparse,
		Dissociate: req.Dissociate != DissociateNone,
		LFS:        req.LFS,
	}, mirrorPath, refspecs, res, req.WorkDir)
	if err != nil {
		return nil, err
	}

	err = submodule.NewOrchestrator(o.executor(req.SubmoduleHelper, req)).Run(ctx, submodule.Options{
		Mode:       req.Submodules,
		MirrorDir:  mirrors.NamespaceRoot(),
		WorkDir:    req.WorkDir,
		Depth:      req.FetchDepth,
		Filter:     req.Filter,
		Dissociate: req.Dissociate == DissociateRecursive,
		Debug:      req.Trace,
	})
	if err != nil {
		return nil, err
	}

	if req.PersistCredentials {
		if err := creds.Persist(ctx, req.WorkDir, req.Submodules != submodule.None); err != nil {
			return nil, err
		}
	}

	return &Result{
		Ref:        res.OriginalRef,
		Commit:     head,
		MirrorPath: mirrorPath,
		WorkDir:    req.WorkDir,
	}, nil
}

func (o *Orchestrator) defaultBranchLookup(req *Request) (refs.DefaultBranchLookup, error) {
	if o.lookup != nil {
		return o.lookup, nil
	}
	client, err := github.NewClient(
		github.WithToken(req.Token),
		github.WithAPIURL(o.env.APIURL),
	)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// writeOutputs appends the step outputs to GITHUB_OUTPUT, if set.
func (o *Orchestrator) writeOutputs(result *Result) error {
	if o.env.Output == "" {
		return nil
	}

	f, err := o.fs.OpenFile(o.env.Output, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return errors.WithContext(errors.Wrap(err, errors.CodeFilesystem, "failed to open outputs file"), "path", o.env.Output)
	}
	if _, err := fmt.Fprintf(f, "ref=%s\ncommit=%s\n", result.Ref, result.Commit); err != nil {
		_ = f.Close()
		return errors.Wrap(err, errors.CodeFilesystem, "failed to write outputs")
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, errors.CodeFilesystem, "failed to write outputs")
	}
	return nil
}
