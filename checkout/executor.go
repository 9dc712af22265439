package checkout

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chainguard-dev/clog"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	"github.com/namespacelabs/nscloud-checkout-action/errors"
	"github.com/namespacelabs/nscloud-checkout-action/exec"
	"github.com/namespacelabs/nscloud-checkout-action/fetchplan"
	"github.com/namespacelabs/nscloud-checkout-action/refs"
	"github.com/namespacelabs/nscloud-checkout-action/retry"
)

// AlternatesEnv points git at extra object directories for one process.
const AlternatesEnv = "GIT_ALTERNATE_OBJECT_DIRECTORIES"

// exitKeyNotFound is the status of `git config --get-all` for a missing key.
const exitKeyNotFound = 1

// Request holds the checkout settings that shape a materialization.
type Request struct {
	Owner      string
	Repo       string
	FetchDepth int
	Filter     string
	Sparse     fetchplan.Sparse
	Dissociate bool
	LFS        bool
}

// Executor builds working checkouts.
type Executor struct {
	git       *retry.Executor
	fs        billy.Filesystem
	serverURL string
}

// Option configures an Executor.
type Option func(*Executor)

// WithFilesystem sets the filesystem used to clean the work directory and
// write git metadata files. It must be rooted at /.
func WithFilesystem(fs billy.Filesystem) Option {
	return func(e *Executor) {
		e.fs = fs
	}
}

// WithServerURL sets the upstream server. Defaults to https://github.com.
func WithServerURL(serverURL string) Option {
	return func(e *Executor) {
		e.serverURL = strings.TrimSuffix(serverURL, "/")
	}
}

// NewExecutor returns an Executor running git through git.
func NewExecutor(git *retry.Executor, opts ...Option) *Executor {
	e := &Executor{
		git:       git,
		fs:        osfs.New("/"),
		serverURL: "https://github.com",
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ObjectsDir returns the object directory of the mirror at mirrorPath.
func ObjectsDir(mirrorPath string) string {
	return filepath.Join(mirrorPath, "objects")
}

// Materialize checks out res into workDir, fetching refspecs with the mirror
// at mirrorPath as an alternate object store. It returns the SHA of the
// checked out HEAD.
func (e *Executor) Materialize(ctx context.Context, req Request, mirrorPath string, refspecs []string, res refs.Resolution, workDir string) (string, error) {
	log := clog.FromContext(ctx).With("path", workDir)
	objects := ObjectsDir(mirrorPath)

	if err := e.cleanWorkDir(ctx, workDir); err != nil {
		return "", err
	}

	if _, err := e.git.Local(ctx, "init", workDir); err != nil {
		return "", errors.Wrap(err, errors.CodeLocalOperation, "failed to initialize repository")
	}
	if err := e.markSafe(ctx, workDir); err != nil {
		return "", err
	}

	git := e.git.In(workDir)
	url := fmt.Sprintf("%s/%s/%s", e.serverURL, req.Owner, req.Repo)
	if _, err := git.Local(ctx, "remote", "add", "origin", url); err != nil {
		return "", errors.Wrap(err, errors.CodeLocalOperation, "failed to add remote")
	}

	borrowing := git.WithEnv(map[string]string{AlternatesEnv: objects})

	log.Infof("Fetching %s", strings.Join(refspecs, " "))
	if _, err := borrowing.Network(ctx, fetchArgs(req, refspecs)...); err != nil {
		return "", errors.Wrap(err, errors.CodeNetwork, "failed to fetch")
	}

	if req.Dissociate {
		log.Infof("Dissociating checkout from mirror")
		if _, err := borrowing.Local(ctx, "repack", "-a", "-d"); err != nil {
			return "", errors.Wrap(err, errors.CodeLocalOperation, "failed to dissociate from mirror")
		}
	} else if err := e.writeAlternates(workDir, objects); err != nil {
		return "", err
	}

	if req.LFS {
		if _, err := git.Local(ctx, "lfs", "install", "--local"); err != nil {
			return "", errors.Wrap(err, errors.CodeLocalOperation, "failed to install LFS hooks")
		}
		if !req.Dissociate {
			if _, err := git.Local(ctx, "config", "--local", "lfs.storage", filepath.Join(mirrorPath, "lfs")); err != nil {
				return "", errors.Wrap(err, errors.CodeLocalOperation, "failed to point LFS storage at mirror")
			}
		}
	}

	if err := e.applySparse(ctx, git, workDir, req.Sparse); err != nil {
		return "", err
	}

	checkoutEnv := map[string]string{}
	if !req.LFS {
		checkoutEnv["GIT_LFS_SKIP_SMUDGE"] = "1"
	}
	if _, err := borrowing.WithEnv(checkoutEnv).Local(ctx, checkoutArgs(res)...); err != nil {
		return "", errors.WithContext(errors.Wrap(err, errors.CodeLocalOperation, "failed to check out"), "ref", res.OriginalRef)
	}

	out, err := git.Local(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", errors.Wrap(err, errors.CodeLocalOperation, "failed to read HEAD")
	}
	head := strings.TrimSpace(out.Stdout)
	log.Infof("Checked out %s at %s", res.OriginalRef, head)
	return head, nil
}

// markSafe adds workDir to the global safe.directory list unless a
// previous run already did.
func (e *Executor) markSafe(ctx context.Context, workDir string) error {
	out, err := e.git.Local(ctx, "config", "--global", "--get-all", "safe.directory")
	if err != nil && exec.ExitCode(err) != exitKeyNotFound {
		return errors.Wrap(err, errors.CodeLocalOperation, "failed to read safe directories")
	}
	if err == nil {
		for _, dir := range strings.Split(out.Stdout, "\n") {
			if strings.TrimSpace(dir) == workDir {
				return nil
			}
		}
	}

	if _, err := e.git.Local(ctx, "config", "--global", "--add", "safe.directory", workDir); err != nil {
		return errors.Wrap(err, errors.CodeLocalOperation, "failed to mark repository as safe")
	}
	return nil
}

func fetchArgs(req Request, refspecs []string) []string {
	args := []string{
		"-c", "protocol.version=2",
		"fetch", "--no-tags", "--prune", "--no-recurse-submodules",
	}
	if req.FetchDepth > 0 {
		args = append(args, fmt.Sprintf("--depth=%d", req.FetchDepth))
	}
	if req.Filter != "" {
		args = append(args, "--filter="+req.Filter)
	}
	args = append(args, "origin")
	return append(args, refspecs...)
}

func checkoutArgs(res refs.Resolution) []string {
	args := []string{"checkout", "--progress", "--force"}
	if res.StartBranch != "" {
		args = append(args, "-B", res.StartBranch)
	}
	target := res.PointerRef
	if res.Commit != "" {
		target = res.Commit
	}
	return append(args, target)
}

// cleanWorkDir empties workDir, creating it if needed.
func (e *Executor) cleanWorkDir(ctx context.Context, workDir string) error {
	entries, err := e.fs.ReadDir(workDir)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return errors.WithContext(errors.Wrap(err, errors.CodeFilesystem, "failed to read work directory"), "path", workDir)
	default:
		if len(entries) > 0 {
			clog.FromContext(ctx).Infof("Cleaning %d existing entries in %s", len(entries), workDir)
		}
		for _, entry := range entries {
			if err := util.RemoveAll(e.fs, filepath.Join(workDir, entry.Name())); err != nil {
				return errors.WithContext(errors.Wrap(err, errors.CodeFilesystem, "failed to clean work directory"), "path", workDir)
			}
		}
	}

	if err := e.fs.MkdirAll(workDir, 0o755); err != nil {
		return errors.WithContext(errors.Wrap(err, errors.CodeFilesystem, "failed to create work directory"), "path", workDir)
	}
	return nil
}

func (e *Executor) writeAlternates(workDir, objects string) error {
	info := filepath.Join(workDir, ".git", "objects", "info")
	if err := e.fs.MkdirAll(info, 0o755); err != nil {
		return errors.Wrap(err, errors.CodeFilesystem, "failed to create objects/info")
	}
	if err := util.WriteFile(e.fs, filepath.Join(info, "alternates"), []byte(objects+"\n"), 0o644); err != nil {
		return errors.Wrap(err, errors.CodeFilesystem, "failed to write alternates")
	}
	return nil
}
