package exectest

import (
	"sync"

	"github.com/namespacelabs/nscloud-checkout-action/exec"
)

// GitConfig emulates the subset of `git config` used for credential and
// safe.directory management. Global entries live under the scope "global";
// local entries are keyed by the working directory of the call.
type GitConfig struct {
	mu      sync.Mutex
	entries map[string]map[string][]string
}

// NewGitConfig returns an empty configuration store.
func NewGitConfig() *GitConfig {
	return &GitConfig{entries: map[string]map[string][]string{}}
}

// Get returns the values of key in scope.
func (g *GitConfig) Get(scope, key string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.entries[scope][key]...)
}

// Handle interprets git config invocations and reports whether call was
// one. Unset of a missing key fails with exit status 5 like git does.
func (g *GitConfig) Handle(call Call) (*exec.Result, bool, error) {
	args := call.Args
	if len(args) > 0 && args[0] == "git" {
		args = args[1:]
	}
	if len(args) < 3 || args[0] != "config" {
		return nil, false, nil
	}

	scope := call.Dir
	switch args[1] {
	case "--global":
		scope = "global"
	case "--local":
	default:
		return nil, false, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.entries[scope] == nil {
		g.entries[scope] = map[string][]string{}
	}

	switch {
	case args[2] == "--add" && len(args) == 5:
		g.entries[scope][args[3]] = append(g.entries[scope][args[3]], args[4])
	case args[2] == "--unset-all" && len(args) == 4:
		if len(g.entries[scope][args[3]]) == 0 {
			res, err := Fail(5, "")
			return res, true, err
		}
		delete(g.entries[scope], args[3])
	case args[2] == "--get-all" && len(args) == 4:
		values := g.entries[scope][args[3]]
		if len(values) == 0 {
			res, err := Fail(1, "")
			return res, true, err
		}
		out := ""
		for _, v := range values {
			out += v + "\n"
		}
		return &exec.Result{Stdout: out}, true, nil
	default:
		return nil, false, nil
	}
	return &exec.Result{}, true, nil
}
