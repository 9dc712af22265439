// Package refs turns a loosely specified ref and commit into the concrete
// references a checkout fetches and checks out.
package refs

import (
	"strings"

	"github.com/namespacelabs/nscloud-checkout-action/errors"
)

const (
	headsPrefix = "refs/heads/"
	tagsPrefix  = "refs/tags/"
	pullPrefix  = "refs/pull/"
)

// Resolution describes what to check out.
type Resolution struct {
	// OriginalRef is the fully qualified ref the user asked for, or the
	// commit when only a commit was given.
	OriginalRef string

	// PointerRef is the local ref the fetch writes to and the checkout
	// reads from. For commit-only requests it is the commit itself.
	PointerRef string

	// StartBranch is the local branch created or reset by the checkout.
	// Empty for anything that is not a branch.
	StartBranch string

	// Commit is the requested commit, if any.
	Commit string
}

// Ref returns the qualified ref, or "" for commit-only resolutions.
func (r Resolution) Ref() string {
	if r.OriginalRef == r.Commit {
		return ""
	}
	return r.OriginalRef
}

// IsBranch reports whether the ref is under refs/heads/.
func (r Resolution) IsBranch() bool {
	return strings.HasPrefix(r.Ref(), headsPrefix)
}

// IsTag reports whether the ref is under refs/tags/.
func (r Resolution) IsTag() bool {
	return strings.HasPrefix(r.Ref(), tagsPrefix)
}

// Classify maps an already qualified ref (or a bare commit) to its pointer
// ref. It does not consult the mirror.
func Classify(ref, commit string) (Resolution, error) {
	if ref == "" && commit == "" {
		return Resolution{}, errors.New(errors.CodePrecondition, "neither a ref nor a commit was provided")
	}

	if ref == "" {
		return Resolution{OriginalRef: commit, PointerRef: commit, Commit: commit}, nil
	}

	res := Resolution{OriginalRef: ref, PointerRef: ref, Commit: commit}
	switch {
	case strings.HasPrefix(ref, headsPrefix):
		branch := strings.TrimPrefix(ref, headsPrefix)
		res.PointerRef = "refs/remotes/origin/" + branch
		res.StartBranch = branch
	case strings.HasPrefix(ref, pullPrefix):
		number, _, _ := strings.Cut(strings.TrimPrefix(ref, pullPrefix), "/")
		res.PointerRef = "refs/remotes/pull/" + number
	}
	return res, nil
}
