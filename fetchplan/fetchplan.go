// Package fetchplan computes the refspecs a checkout fetches and the sparse
// checkout configuration it applies.
package fetchplan

import (
	"strings"

	"github.com/namespacelabs/nscloud-checkout-action/refs"
)

const (
	// HeadsRefspec mirrors every branch as a remote-tracking ref.
	HeadsRefspec = "+refs/heads/*:refs/remotes/origin/*"

	// TagsRefspec fetches every tag.
	TagsRefspec = "+refs/tags/*:refs/tags/*"
)

// Plan returns the ordered refspecs to fetch for res.
//
// A non-empty override is returned as is. With depth > 0 only the resolved
// target is fetched. A full fetch takes all heads and tags plus the target
// when it lives elsewhere; a bare commit is always requested explicitly
// since it may not be reachable from any advertised ref.
func Plan(res refs.Resolution, depth int, override []string) []string {
	if len(override) > 0 {
		return append([]string(nil), override...)
	}

	ref := res.Ref()

	if depth > 0 {
		if ref == "" {
			return []string{res.Commit}
		}
		target := ref
		if res.Commit != "" {
			target = res.Commit
		}
		return []string{"+" + target + ":" + res.PointerRef}
	}

	specs := []string{HeadsRefspec, TagsRefspec}
	if ref != "" && !res.IsBranch() && !res.IsTag() {
		specs = append(specs, "+"+ref+":"+res.PointerRef)
	}
	if ref == "" && res.Commit != "" {
		specs = append(specs, res.Commit)
	}
	return specs
}

// Sparse is a sparse checkout configuration.
type Sparse struct {
	Patterns []string
	Cone     bool
}

// Enabled reports whether any pattern was given.
func (s Sparse) Enabled() bool {
	return len(s.Patterns) > 0
}

// ConeArgs returns the git arguments that apply s in cone mode.
func (s Sparse) ConeArgs() []string {
	return append([]string{"sparse-checkout", "set", "--cone", "--"}, s.Patterns...)
}

// File renders the non-cone patterns in info/sparse-checkout format.
func (s Sparse) File() string {
	if !s.Enabled() {
		return ""
	}
	return strings.Join(s.Patterns, "\n") + "\n"
}

// ParsePatterns splits a newline or comma separated pattern list. Blank
// entries are dropped and surrounding whitespace is trimmed.
func ParsePatterns(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == '\n' || r == '\r' || r == ','
	})

	var patterns []string
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			patterns = append(patterns, f)
		}
	}
	return patterns
}
