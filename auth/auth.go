// Package auth installs and removes the scoped git credential configuration
// used while talking to the upstream server.
//
// Credentials are an extraheader carrying a basic-auth token plus an
// insteadOf rule rewriting SSH remotes to HTTPS. The global scope is only
// ever held for the duration of WithCredential; the local scope of a
// checkout can be made permanent with Persist.
package auth

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"github.com/chainguard-dev/clog"
	"github.com/kballard/go-shellquote"

	"github.com/namespacelabs/nscloud-checkout-action/errors"
	"github.com/namespacelabs/nscloud-checkout-action/exec"
	"github.com/namespacelabs/nscloud-checkout-action/logging"
	"github.com/namespacelabs/nscloud-checkout-action/retry"
)

// exitKeyNotSet is the status git config returns when unsetting a missing key.
const exitKeyNotSet = 5

// Scope is where credentials are written: the user's global configuration
// or the local configuration of one repository.
type Scope struct {
	dir string
}

// Global is the process-wide scope.
var Global = Scope{}

// Local returns the scope of the repository at dir.
func Local(dir string) Scope {
	return Scope{dir: dir}
}

// IsGlobal reports whether s is the global scope.
func (s Scope) IsGlobal() bool {
	return s.dir == ""
}

func (s Scope) String() string {
	if s.IsGlobal() {
		return "global"
	}
	return "local:" + s.dir
}

func (s Scope) flag() string {
	if s.IsGlobal() {
		return "--global"
	}
	return "--local"
}

// Manager owns the credential configuration for one server and token.
type Manager struct {
	git    *retry.Executor
	server *url.URL
	token  string
	basic  string
}

// NewManager returns a Manager for serverURL. The raw and encoded token are
// registered with masker before anything else happens.
func NewManager(git *retry.Executor, serverURL, token string, masker *logging.Masker) (*Manager, error) {
	server, err := url.Parse(strings.TrimSuffix(serverURL, "/"))
	if err != nil || server.Scheme == "" || server.Host == "" {
		err := errors.Newf(errors.CodeInvalidInput, "invalid server URL %q", serverURL)
		return nil, err
	}

	m := &Manager{git: git, server: server, token: token}
	if token != "" {
		m.basic = base64.StdEncoding.EncodeToString([]byte("x-access-token:" + token))
		if masker != nil {
			masker.Add(token)
			masker.Add(m.basic)
		}
	}
	return m, nil
}

// Enabled reports whether a token was supplied.
func (m *Manager) Enabled() bool {
	return m.token != ""
}

// HeaderKey is the config key holding the extraheader for the server.
func (m *Manager) HeaderKey() string {
	return fmt.Sprintf("http.%s://%s/.extraheader", m.server.Scheme, m.server.Host)
}

// InsteadOfKey is the config key rewriting SSH remotes to the server.
func (m *Manager) InsteadOfKey() string {
	return fmt.Sprintf("url.%s://%s/.insteadOf", m.server.Scheme, m.server.Host)
}

func (m *Manager) headerValue() string {
	return "AUTHORIZATION: basic " + m.basic
}

func (m *Manager) sshPrefix() string {
	return "git@" + m.server.Hostname() + ":"
}

// entries returns the key/value pairs installed at every scope.
func (m *Manager) entries() [][2]string {
	return [][2]string{
		{m.HeaderKey(), m.headerValue()},
		{m.InsteadOfKey(), m.sshPrefix()},
	}
}

// WithCredential installs credentials at scope, runs body, and removes them
// again. Removal is deferred so it runs even when installation or body
// fails; its error is joined with body's. Removal ignores cancellation of
// ctx so an interrupted run still cleans up.
func (m *Manager) WithCredential(ctx context.Context, scope Scope, body func(context.Context) error) (err error) {
	if !m.Enabled() {
		return body(ctx)
	}

	defer func() {
		if rmErr := m.Remove(context.WithoutCancel(ctx), scope); rmErr != nil {
			err = errors.Join(err, rmErr)
		}
	}()

	if err := m.Install(ctx, scope); err != nil {
		return err
	}
	return body(ctx)
}

// Install writes the credential entries at scope, replacing previous values
// so repeated installs never accumulate headers.
func (m *Manager) Install(ctx context.Context, scope Scope) error {
	if !m.Enabled() {
		return nil
	}

	clog.FromContext(ctx).Infof("Installing %s git credentials for %s", scope, m.server.Host)

	for _, e := range m.entries() {
		if err := m.unset(ctx, scope, e[0]); err != nil {
			return err
		}
		if _, err := m.executor(scope).Local(ctx, "config", scope.flag(), "--add", e[0], e[1]); err != nil {
			return errors.Wrapf(err, errors.CodeLocalOperation, "failed to configure %s credentials", scope)
		}
	}
	return nil
}

// Remove deletes the credential entries at scope. Missing entries are fine.
func (m *Manager) Remove(ctx context.Context, scope Scope) error {
	if !m.Enabled() {
		return nil
	}

	clog.FromContext(ctx).Infof("Removing %s git credentials", scope)

	var errs []error
	for _, e := range m.entries() {
		if err := m.unset(ctx, scope, e[0]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Persist installs credentials in the local configuration of the checkout
// at dir so later job steps stay authenticated. With submodules set, every
// materialized submodule receives the same entries.
func (m *Manager) Persist(ctx context.Context, dir string, submodules bool) error {
	if !m.Enabled() {
		return nil
	}

	if err := m.Install(ctx, Local(dir)); err != nil {
		return err
	}
	if !submodules {
		return nil
	}

	if _, err := m.git.In(dir).Local(ctx, "submodule", "foreach", "--recursive", m.submoduleScript()); err != nil {
		return errors.Wrap(err, errors.CodeLocalOperation, "failed to persist credentials in submodules")
	}
	return nil
}

// submoduleScript is the shell command run in every submodule by
// `git submodule foreach`.
func (m *Manager) submoduleScript() string {
	var steps []string
	for _, e := range m.entries() {
		steps = append(steps,
			shellquote.Join("git", "config", "--local", "--unset-all", e[0])+" || :",
			shellquote.Join("git", "config", "--local", "--add", e[0], e[1]),
		)
	}
	return strings.Join(steps, "; ")
}

func (m *Manager) unset(ctx context.Context, scope Scope, key string) error {
	_, err := m.executor(scope).Local(ctx, "config", scope.flag(), "--unset-all", key)
	if err != nil && exec.ExitCode(err) != exitKeyNotSet {
		return errors.Wrapf(err, errors.CodeLocalOperation, "failed to remove %s from %s config", key, scope)
	}
	return nil
}

func (m *Manager) executor(scope Scope) *retry.Executor {
	if scope.IsGlobal() {
		return m.git
	}
	return m.git.In(scope.dir)
}
