package git

import (
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"

	"github.com/namespacelabs/nscloud-checkout-action/errors"
)

// qualifyRules is the lookup order for unqualified names. Branches win over
// tags; the remaining rules follow git's ambiguous-name resolution.
var qualifyRules = []string{
	"refs/heads/%s",
	"refs/tags/%s",
	"refs/%s",
	"refs/remotes/%s",
	"refs/remotes/%s/HEAD",
}

// HeadTarget returns the reference HEAD points to, e.g. refs/heads/main.
// A detached or missing HEAD is reported as CodeNotFound.
func (m *Mirror) HeadTarget() (string, error) {
	head, err := m.repo.Storer.Reference(plumbing.HEAD)
	if err != nil {
		return "", wrapError(err, "failed to read mirror HEAD")
	}
	if head.Type() != plumbing.SymbolicReference {
		return "", errors.New(errors.CodeNotFound, "mirror HEAD is not a symbolic reference")
	}
	return head.Target().String(), nil
}

// HasReference reports whether the fully qualified name exists.
func (m *Mirror) HasReference(name string) (bool, error) {
	_, err := m.repo.Storer.Reference(plumbing.ReferenceName(name))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, plumbing.ErrReferenceNotFound):
		return false, nil
	default:
		return false, wrapError(err, fmt.Sprintf("failed to look up %s", name))
	}
}

// Qualify expands a short name like "main" or "v1.2" to the first existing
// reference in qualifyRules order. Names already starting with refs/ are
// returned unchanged. An unmatched name is reported as CodeRefNotFound.
func (m *Mirror) Qualify(name string) (string, error) {
	if strings.HasPrefix(name, "refs/") {
		return name, nil
	}

	for _, rule := range qualifyRules {
		candidate := fmt.Sprintf(rule, name)
		ok, err := m.HasReference(candidate)
		if err != nil {
			return "", err
		}
		if ok {
			return candidate, nil
		}
	}

	err := errors.Newf(errors.CodeRefNotFound, "%q does not match any branch or tag in the mirror", name)
	return "", errors.WithContext(err, "mirror", m.path)
}
