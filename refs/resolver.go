package refs

import (
	"context"
	"strings"

	"github.com/chainguard-dev/clog"

	"github.com/namespacelabs/nscloud-checkout-action/errors"
	"github.com/namespacelabs/nscloud-checkout-action/git"
)

// Inspector reads references from a mirror.
type Inspector interface {
	HeadTarget() (string, error)
	Qualify(name string) (string, error)
}

// DefaultBranchLookup asks the hosting service for a repository's default
// branch.
type DefaultBranchLookup interface {
	DefaultBranch(ctx context.Context, owner, repo string) (string, error)
}

// Opener opens the mirror at path.
type Opener func(path string) (Inspector, error)

// Resolver resolves refs against a mirror.
type Resolver struct {
	open         Opener
	lookup       DefaultBranchLookup
	owner        string
	repo         string
	workflowRepo bool
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithOpener replaces the go-git mirror opener.
func WithOpener(open Opener) Option {
	return func(r *Resolver) {
		r.open = open
	}
}

// WithDefaultBranchLookup sets the fallback used when the mirror has no
// readable HEAD.
func WithDefaultBranchLookup(lookup DefaultBranchLookup) Option {
	return func(r *Resolver) {
		r.lookup = lookup
	}
}

// WithWorkflowRepository marks the repository as the one the workflow runs
// in. Such requests always carry a ref or commit from the event, so an empty
// pair is a caller error rather than a request for the default branch.
func WithWorkflowRepository(workflowRepo bool) Option {
	return func(r *Resolver) {
		r.workflowRepo = workflowRepo
	}
}

// NewResolver returns a Resolver for owner/repo.
func NewResolver(owner, repo string, opts ...Option) *Resolver {
	r := &Resolver{
		owner: owner,
		repo:  repo,
		open: func(path string) (Inspector, error) {
			return git.OpenMirror(path)
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve qualifies ref against the mirror at mirrorPath and classifies it.
//
// With neither ref nor commit, the mirror's default branch is used, falling
// back to the hosting service. An unqualified ref is expanded with branches
// taking precedence over tags; a ref that matches nothing fails with
// CodeRefNotFound rather than widening the fetch.
func (r *Resolver) Resolve(ctx context.Context, ref, commit, mirrorPath string) (Resolution, error) {
	log := clog.FromContext(ctx)

	if ref == "" && commit == "" {
		if r.workflowRepo {
			err := errors.New(errors.CodePrecondition, "neither a ref nor a commit was provided for the workflow repository")
			return Resolution{}, errors.WithHint(err, "the workflow event did not carry a ref; pass `ref` or `commit` explicitly")
		}

		def, err := r.defaultBranch(ctx, mirrorPath)
		if err != nil {
			return Resolution{}, err
		}
		log.Infof("No ref requested, using default branch %s", def)
		ref = def
	}

	if ref != "" && !strings.HasPrefix(ref, "refs/") {
		mirror, err := r.open(mirrorPath)
		if err != nil {
			return Resolution{}, errors.Wrap(err, errors.CodeLocalOperation, "failed to open mirror")
		}
		qualified, err := mirror.Qualify(ref)
		if err != nil {
			return Resolution{}, errors.WithContext(err, "ref", ref)
		}
		log.Debugf("Qualified %s as %s", ref, qualified)
		ref = qualified
	}

	return Classify(ref, commit)
}

func (r *Resolver) defaultBranch(ctx context.Context, mirrorPath string) (string, error) {
	mirror, err := r.open(mirrorPath)
	if err == nil {
		target, headErr := mirror.HeadTarget()
		if headErr == nil {
			return target, nil
		}
		err = headErr
	}

	if r.lookup == nil {
		return "", errors.Wrap(err, errors.CodeRefNotFound, "failed to determine the default branch from the mirror")
	}

	clog.FromContext(ctx).Warnf("Mirror has no usable HEAD (%v), asking the API for the default branch", err)
	branch, apiErr := r.lookup.DefaultBranch(ctx, r.owner, r.repo)
	if apiErr != nil {
		return "", errors.Wrap(apiErr, errors.GetCode(apiErr), "failed to determine the default branch")
	}
	return headsPrefix + branch, nil
}
