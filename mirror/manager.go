package mirror

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chainguard-dev/clog"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/namespacelabs/nscloud-checkout-action/errors"
	"github.com/namespacelabs/nscloud-checkout-action/retry"
)

const (
	// LayoutVersion names the current directory layout under the root.
	LayoutVersion = "v1"

	// DefaultUID is the identity whose mirrors live directly under the
	// version directory.
	DefaultUID = 1000

	worldWritable os.FileMode = 0o777
)

// Manager creates and refreshes mirrors under one root.
type Manager struct {
	root      string
	git       *retry.Executor
	sudo      *retry.Executor
	fs        billy.Filesystem
	uid       int
	serverURL string
	refspecs  []string
	lfs       bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithFilesystem sets the filesystem used for existence checks and
// permission repair. Paths are absolute, so it must be rooted at /.
func WithFilesystem(fs billy.Filesystem) Option {
	return func(m *Manager) {
		m.fs = fs
	}
}

// WithUID sets the identity used to namespace mirror paths. Defaults to the
// current process uid.
func WithUID(uid int) Option {
	return func(m *Manager) {
		m.uid = uid
	}
}

// WithServerURL sets the upstream server. Defaults to https://github.com.
func WithServerURL(serverURL string) Option {
	return func(m *Manager) {
		m.serverURL = strings.TrimSuffix(serverURL, "/")
	}
}

// WithRefspecs restricts the refs kept in the mirror.
func WithRefspecs(refspecs []string) Option {
	return func(m *Manager) {
		m.refspecs = append([]string(nil), refspecs...)
	}
}

// WithLFS also fetches LFS objects into the mirror.
func WithLFS(lfs bool) Option {
	return func(m *Manager) {
		m.lfs = lfs
	}
}

// WithSudo sets the executor used to escalate permission repair. It should
// wrap `sudo -n`.
func WithSudo(sudo *retry.Executor) Option {
	return func(m *Manager) {
		m.sudo = sudo
	}
}

// NewManager returns a Manager for mirrors under root. git runs with the
// request's retry policy.
func NewManager(root string, git *retry.Executor, opts ...Option) *Manager {
	m := &Manager{
		root:      root,
		git:       git,
		fs:        osfs.New("/"),
		uid:       os.Getuid(),
		serverURL: "https://github.com",
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// VersionRoot is the directory shared by every identity.
func (m *Manager) VersionRoot() string {
	return filepath.Join(m.root, LayoutVersion)
}

// NamespaceRoot is the directory holding this identity's mirrors.
func (m *Manager) NamespaceRoot() string {
	if m.uid == DefaultUID {
		return m.VersionRoot()
	}
	return filepath.Join(m.VersionRoot(), fmt.Sprintf("uid-%d", m.uid))
}

// Path returns the mirror directory for owner/repo.
func (m *Manager) Path(owner, repo string) string {
	return filepath.Join(m.NamespaceRoot(), owner+"-"+repo)
}

// RemoteURL returns the upstream URL for owner/repo.
func (m *Manager) RemoteURL(owner, repo string) string {
	return fmt.Sprintf("%s/%s/%s", m.serverURL, owner, repo)
}

// Ensure makes sure an up to date mirror of owner/repo exists and returns
// its path.
func (m *Manager) Ensure(ctx context.Context, owner, repo string) (string, error) {
	path := m.Path(owner, repo)
	log := clog.FromContext(ctx).With("mirror", path)

	exists, err := m.exists(path)
	if err != nil {
		return "", err
	}

	if exists {
		log.Infof("Refreshing mirror of %s/%s", owner, repo)
		if err := m.refresh(ctx, path); err != nil {
			return "", err
		}
	} else {
		m.prepareVersionRoot(ctx)

		log.Infof("Creating mirror of %s/%s", owner, repo)
		if err := m.create(ctx, owner, repo, path); err != nil {
			return "", err
		}
	}

	if m.lfs {
		if _, err := m.git.In(path).Network(ctx, "lfs", "fetch", "origin"); err != nil {
			return "", errors.WithContext(errors.Wrap(err, errors.CodeNetwork, "failed to fetch LFS objects into mirror"), "mirror", path)
		}
	}

	return path, nil
}

func (m *Manager) exists(path string) (bool, error) {
	_, err := m.fs.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, errors.WithContext(errors.Wrap(err, errors.CodeFilesystem, "failed to stat mirror"), "mirror", path)
	}
}

func (m *Manager) create(ctx context.Context, owner, repo, path string) error {
	url := m.RemoteURL(owner, repo)

	if len(m.refspecs) > 0 {
		return m.createRestricted(ctx, url, path)
	}

	_, err := m.git.Network(ctx, "clone", "--mirror", url, path)
	if err == nil {
		return nil
	}

	// Another job may have created the mirror while we were cloning.
	if exists, statErr := m.exists(path); statErr == nil && exists {
		clog.FromContext(ctx).Warnf("Mirror %s appeared while cloning, refreshing instead: %v", path, err)
		return m.refresh(ctx, path)
	}
	return errors.WithContext(errors.Wrap(err, errors.CodeNetwork, "failed to create mirror"), "mirror", path)
}

// createRestricted builds a mirror that only tracks m.refspecs.
func (m *Manager) createRestricted(ctx context.Context, url, path string) error {
	if _, err := m.git.Local(ctx, "init", "--bare", path); err != nil {
		if m.createdElsewhere(ctx, path) {
			clog.FromContext(ctx).Warnf("Mirror %s appeared while initializing, refreshing instead: %v", path, err)
			return m.refresh(ctx, path)
		}
		return errors.Wrap(err, errors.CodeLocalOperation, "failed to initialize mirror")
	}

	git := m.git.In(path)
	if _, err := git.Local(ctx, "remote", "add", "--mirror=fetch", "origin", url); err != nil {
		if m.createdElsewhere(ctx, path) {
			clog.FromContext(ctx).Warnf("Mirror %s was configured by another job, refreshing instead: %v", path, err)
			return m.refresh(ctx, path)
		}
		return errors.Wrap(err, errors.CodeLocalOperation, "failed to add mirror remote")
	}
	if _, err := git.Local(ctx, "config", "--unset-all", "remote.origin.fetch"); err != nil {
		return errors.Wrap(err, errors.CodeLocalOperation, "failed to reset mirror refspecs")
	}
	for _, refspec := range m.refspecs {
		if _, err := git.Local(ctx, "config", "--add", "remote.origin.fetch", refspec); err != nil {
			return errors.Wrap(err, errors.CodeLocalOperation, "failed to configure mirror refspecs")
		}
	}

	return m.refresh(ctx, path)
}

// createdElsewhere reports whether path holds a mirror whose origin remote
// is already configured.
func (m *Manager) createdElsewhere(ctx context.Context, path string) bool {
	if exists, err := m.exists(path); err != nil || !exists {
		return false
	}
	_, err := m.git.In(path).Local(ctx, "config", "--get", "remote.origin.url")
	return err == nil
}

func (m *Manager) refresh(ctx context.Context, path string) error {
	args := []string{
		"-c", "protocol.version=2",
		"fetch", "--prune", "--prune-tags", "--no-recurse-submodules",
		"origin",
	}
	args = append(args, m.refspecs...)

	if _, err := m.git.In(path).Network(ctx, args...); err != nil {
		return errors.WithContext(errors.Wrap(err, errors.CodeNetwork, "failed to refresh mirror"), "mirror", path)
	}
	return nil
}
