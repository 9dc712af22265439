package action

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namespacelabs/nscloud-checkout-action/errors"
	"github.com/namespacelabs/nscloud-checkout-action/exec"
	"github.com/namespacelabs/nscloud-checkout-action/exec/exectest"
	"github.com/namespacelabs/nscloud-checkout-action/logging"
	"github.com/namespacelabs/nscloud-checkout-action/mirror"
)

const (
	token     = "ghs_secret"
	headSHA   = "feedfacefeedfacefeedfacefeedfacefeedface"
	headerKey = "http.https://github.com/.extraheader"
)

type harness struct {
	env    *Env
	rec    *exectest.Recorder
	config *exectest.GitConfig
	lookup *stubLookup
	failOn string
}

type stubLookup struct {
	branch string
	calls  int
}

func (s *stubLookup) DefaultBranch(_ context.Context, owner, repo string) (string, error) {
	s.calls++
	return s.branch, nil
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	tmp := t.TempDir()
	workspace := filepath.Join(tmp, "workspace")
	require.NoError(t, os.MkdirAll(workspace, 0o755))

	h := &harness{
		env: &Env{
			MirrorRoot: filepath.Join(tmp, "mirror"),
			Workspace:  workspace,
			Repository: "acme/widgets",
			ServerURL:  "https://github.com",
			APIURL:     "https://api.github.com",
			Ref:        "refs/heads/main",
			SHA:        "89abcdef0123456789abcdef0123456789abcdef",
			Output:     filepath.Join(tmp, "output"),
		},
		config: exectest.NewGitConfig(),
		lookup: &stubLookup{branch: "trunk"},
	}
	h.rec = exectest.NewRecorder(func(call exectest.Call) (*exec.Result, error) {
		if h.failOn != "" && strings.Contains(call.Line(), h.failOn) {
			return exectest.Fail(128, "fatal: induced failure")
		}
		if res, ok, err := h.config.Handle(call); ok {
			return res, err
		}
		if call.Line() == "git rev-parse HEAD" {
			return &exec.Result{Stdout: headSHA + "\n"}, nil
		}
		return &exec.Result{}, nil
	})
	return h
}

func (h *harness) run(t *testing.T, mutate func(*Inputs)) (*Result, error) {
	t.Helper()

	in := DefaultInputs()
	in.Token = token
	if mutate != nil {
		mutate(&in)
	}
	req, err := NewRequest(in, h.env)
	require.NoError(t, err)

	o := NewOrchestrator(h.env,
		WithExecutor(h.rec.Executor()),
		WithFilesystem(osfs.New("/")),
		WithMasker(logging.NewMasker(nil)),
		WithDefaultBranchLookup(h.lookup),
		WithUID(mirror.DefaultUID),
		WithRetryUnit(time.Nanosecond),
	)
	return o.Run(context.Background(), req)
}

func (h *harness) index(t *testing.T, substr string) int {
	t.Helper()
	for i, line := range h.rec.Lines() {
		if strings.Contains(line, substr) {
			return i
		}
	}
	t.Fatalf("no command containing %q in:\n%s", substr, strings.Join(h.rec.Lines(), "\n"))
	return -1
}

func (h *harness) lastIndex(substr string) int {
	lines := h.rec.Lines()
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.Contains(lines[i], substr) {
			return i
		}
	}
	return -1
}

func TestRunWorkflowRepository(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	result, err := h.run(t, nil)
	require.NoError(t, err)

	workDir := h.env.Workspace
	mirrorPath := filepath.Join(h.env.MirrorRoot, "v1", "acme-widgets")

	assert.Equal(t, "refs/heads/main", result.Ref)
	assert.Equal(t, headSHA, result.Commit)
	assert.Equal(t, mirrorPath, result.MirrorPath)
	assert.Equal(t, workDir, result.WorkDir)

	install := h.index(t, "git config --global --add "+headerKey)
	clone := h.index(t, "git clone --mirror https://github.com/acme/widgets "+mirrorPath)
	fetch := h.index(t, "fetch --no-tags")
	checkout := h.index(t, "git checkout --progress --force -B main "+h.env.SHA)
	persist := h.index(t, "git config --local --add "+headerKey)
	remove := h.lastIndex("git config --global --unset-all " + headerKey)

	assert.Less(t, install, clone)
	assert.Less(t, clone, fetch)
	assert.Less(t, fetch, checkout)
	assert.Less(t, checkout, persist)
	assert.Less(t, persist, remove)

	assert.Empty(t, h.config.Get("global", headerKey))
	expected := "AUTHORIZATION: basic " + base64.StdEncoding.EncodeToString([]byte("x-access-token:"+token))
	assert.Equal(t, []string{expected}, h.config.Get(workDir, headerKey))
	assert.Equal(t, []string{workDir}, h.config.Get("global", "safe.directory"))

	out, err := os.ReadFile(h.env.Output)
	require.NoError(t, err)
	assert.Equal(t, "ref=refs/heads/main\ncommit="+headSHA+"\n", string(out))

	assert.Equal(t, 0, h.lookup.calls)
}

func TestRunRemovesGlobalCredentialOnFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		failOn string
	}{
		{name: "clone", failOn: "clone --mirror"},
		{name: "fetch", failOn: "fetch --no-tags"},
		{name: "checkout", failOn: "git checkout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t)
			h.failOn = tt.failOn

			_, err := h.run(t, nil)
			require.Error(t, err)

			assert.Empty(t, h.config.Get("global", headerKey))
			assert.Empty(t, h.config.Get(h.env.Workspace, headerKey))
			assert.Greater(t, h.lastIndex("git config --global --unset-all "+headerKey), h.index(t, tt.failOn))

			_, statErr := os.Stat(h.env.Output)
			assert.True(t, os.IsNotExist(statErr))
		})
	}
}

func TestRunWithoutPersistedCredentials(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	_, err := h.run(t, func(in *Inputs) { in.PersistCredentials = false })
	require.NoError(t, err)

	assert.Empty(t, h.config.Get("global", headerKey))
	assert.Empty(t, h.config.Get(h.env.Workspace, headerKey))
}

func TestRunSHARefIsCheckedOutAsCommit(t *testing.T) {
	t.Parallel()

	sha := "abc1230000000000000000000000000000000def"

	h := newHarness(t)
	result, err := h.run(t, func(in *Inputs) {
		in.Repository = "acme/gadgets"
		in.Ref = sha
	})
	require.NoError(t, err)

	assert.Equal(t, sha, result.Ref)
	assert.Len(t, h.rec.Matching("fetch --no-tags --prune --no-recurse-submodules --depth=1 origin "+sha), 1)
	assert.Len(t, h.rec.Matching("git checkout --progress --force "+sha), 1)
	assert.Equal(t, 0, h.lookup.calls)
}

func TestRunFallsBackToDefaultBranchLookup(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	result, err := h.run(t, func(in *Inputs) { in.Repository = "acme/gadgets" })
	require.NoError(t, err)

	assert.Equal(t, 1, h.lookup.calls)
	assert.Equal(t, "refs/heads/trunk", result.Ref)
	assert.Len(t, h.rec.Matching("+refs/heads/trunk:refs/remotes/origin/trunk"), 1)
	assert.Len(t, h.rec.Matching("git checkout --progress --force -B trunk refs/remotes/origin/trunk"), 1)
}

func TestRunSubmodules(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	_, err := h.run(t, func(in *Inputs) {
		in.Submodules = "recursive"
		in.Dissociate = "recursive"
		in.Path = "src"
	})
	require.NoError(t, err)

	workDir := filepath.Join(h.env.Workspace, "src")
	namespace := filepath.Join(h.env.MirrorRoot, "v1")

	helper := h.rec.Matching("nsc-git-submodules")
	require.Len(t, helper, 1)
	assert.Equal(t,
		fmt.Sprintf("nsc-git-submodules --mirror-dir %s --repo %s --recursive --depth 1 --dissociate", namespace, workDir),
		helper[0].Line())
	assert.Equal(t, workDir, helper[0].Dir)

	assert.Less(t, h.index(t, "git checkout"), h.index(t, "nsc-git-submodules"))
	assert.Less(t, h.index(t, "nsc-git-submodules"), h.index(t, "submodule foreach --recursive"))
	assert.Len(t, h.rec.Matching("git repack -a -d"), 1)
}

func TestRunPreconditionFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.env.MirrorRoot = ""

	_, err := h.run(t, nil)
	require.Error(t, err)
	assert.Equal(t, errors.CodePrecondition, errors.GetCode(err))
	assert.NotEmpty(t, errors.Hint(err))
	assert.Empty(t, h.rec.Calls())
}

func TestRunWorkflowRepositoryWithoutRef(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.env.Ref = ""
	h.env.SHA = ""

	_, err := h.run(t, nil)
	require.Error(t, err)
	assert.Equal(t, errors.CodePrecondition, errors.GetCode(err))
	assert.Empty(t, h.config.Get("global", headerKey))
	assert.Empty(t, h.rec.Matching("fetch --no-tags"))
}
