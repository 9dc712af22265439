package action

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namespacelabs/nscloud-checkout-action/errors"
	"github.com/namespacelabs/nscloud-checkout-action/submodule"
)

const (
	sha1   = "abc1230000000000000000000000000000000def"
	sha256 = "abc1230000000000000000000000000000000000000000000000000000000def"
)

func testEnv() *Env {
	return &Env{
		MirrorRoot: "/cache/git",
		Workspace:  "/work/widgets",
		Repository: "acme/widgets",
		ServerURL:  "https://github.com",
		APIURL:     "https://api.github.com",
		Ref:        "refs/heads/main",
		SHA:        "89abcdef0123456789abcdef0123456789abcdef",
	}
}

func inputs(mutate func(*Inputs)) Inputs {
	in := DefaultInputs()
	if mutate != nil {
		mutate(&in)
	}
	return in
}

func TestNewRequestDefaults(t *testing.T) {
	t.Parallel()

	req, err := NewRequest(DefaultInputs(), testEnv())
	require.NoError(t, err)

	assert.Equal(t, "acme", req.Owner)
	assert.Equal(t, "widgets", req.Repo)
	assert.True(t, req.IsWorkflowRepository)
	assert.Equal(t, "refs/heads/main", req.Ref)
	assert.Equal(t, "89abcdef0123456789abcdef0123456789abcdef", req.Commit)
	assert.Equal(t, 1, req.FetchDepth)
	assert.Equal(t, 3, req.MaxAttempts)
	assert.Equal(t, submodule.None, req.Submodules)
	assert.Equal(t, DissociateNone, req.Dissociate)
	assert.True(t, req.PersistCredentials)
	assert.True(t, req.Sparse.Cone)
	assert.False(t, req.Sparse.Enabled())
	assert.Equal(t, submodule.DefaultHelper, req.SubmoduleHelper)
	assert.Equal(t, "/work/widgets", req.WorkDir)
}

func TestNewRequestSHADetection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		repository string
		ref        string
		commit     string
		wantRef    string
		wantCommit string
	}{
		{name: "sha1 ref", repository: "other/repo", ref: sha1, wantRef: "", wantCommit: sha1},
		{name: "sha256 ref", repository: "other/repo", ref: sha256, wantRef: "", wantCommit: sha256},
		{name: "uppercase sha", repository: "other/repo", ref: strings.ToUpper(sha1), wantCommit: strings.ToUpper(sha1)},
		{name: "sha ref on workflow repository", repository: "acme/widgets", ref: sha1, wantCommit: sha1},
		{name: "short sha stays a ref", repository: "other/repo", ref: "abc123", wantRef: "abc123"},
		{name: "sha ref with explicit commit stays", repository: "other/repo", ref: sha1, commit: sha256, wantRef: sha1, wantCommit: sha256},
		{name: "41 hex chars stays a ref", repository: "other/repo", ref: sha1 + "0", wantRef: sha1 + "0"},
		{name: "non-hex stays a ref", repository: "other/repo", ref: strings.Replace(sha1, "a", "g", 1), wantRef: strings.Replace(sha1, "a", "g", 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req, err := NewRequest(inputs(func(in *Inputs) {
				in.Repository = tt.repository
				in.Ref = tt.ref
				in.Commit = tt.commit
			}), testEnv())
			require.NoError(t, err)
			assert.Equal(t, tt.wantRef, req.Ref)
			assert.Equal(t, tt.wantCommit, req.Commit)
		})
	}
}

func TestNewRequestWorkflowDefaults(t *testing.T) {
	t.Parallel()

	t.Run("other repository keeps empty ref", func(t *testing.T) {
		t.Parallel()

		req, err := NewRequest(inputs(func(in *Inputs) { in.Repository = "acme/gadgets" }), testEnv())
		require.NoError(t, err)
		assert.False(t, req.IsWorkflowRepository)
		assert.Empty(t, req.Ref)
		assert.Empty(t, req.Commit)
	})

	t.Run("case-insensitive match", func(t *testing.T) {
		t.Parallel()

		req, err := NewRequest(inputs(func(in *Inputs) { in.Repository = "ACME/Widgets" }), testEnv())
		require.NoError(t, err)
		assert.True(t, req.IsWorkflowRepository)
		assert.Equal(t, "refs/heads/main", req.Ref)
	})

	t.Run("explicit ref keeps empty commit", func(t *testing.T) {
		t.Parallel()

		req, err := NewRequest(inputs(func(in *Inputs) { in.Ref = "release" }), testEnv())
		require.NoError(t, err)
		assert.Equal(t, "release", req.Ref)
		assert.Empty(t, req.Commit)
	})
}

func TestNewRequestModes(t *testing.T) {
	t.Parallel()

	req, err := NewRequest(inputs(func(in *Inputs) {
		in.Submodules = "recursive"
		in.Dissociate = "Main"
		in.SparseCheckout = "src\ndocs"
		in.SparseCheckoutConeMode = false
		in.MirrorRefspecs = []string{"+refs/heads/*:refs/heads/*"}
		in.Path = "sub/dir"
	}), testEnv())
	require.NoError(t, err)

	assert.Equal(t, submodule.Recursive, req.Submodules)
	assert.Equal(t, DissociateMain, req.Dissociate)
	assert.Equal(t, []string{"src", "docs"}, req.Sparse.Patterns)
	assert.False(t, req.Sparse.Cone)
	assert.Equal(t, []string{"+refs/heads/*:refs/heads/*"}, req.MirrorRefspecs)
	assert.Equal(t, "/work/widgets/sub/dir", req.WorkDir)
}

func TestNewRequestTraceFollowsRunnerDebug(t *testing.T) {
	t.Parallel()

	env := testEnv()
	env.RunnerDebug = "1"

	req, err := NewRequest(DefaultInputs(), env)
	require.NoError(t, err)
	assert.True(t, req.Trace)
}

func TestNewRequestInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Inputs)
		env    func(*Env)
	}{
		{name: "repository without owner", mutate: func(in *Inputs) { in.Repository = "widgets" }},
		{name: "repository with extra segment", mutate: func(in *Inputs) { in.Repository = "acme/widgets/extra" }},
		{name: "no repository anywhere", env: func(e *Env) { e.Repository = "" }},
		{name: "negative depth", mutate: func(in *Inputs) { in.FetchDepth = -1 }},
		{name: "zero attempts", mutate: func(in *Inputs) { in.MaxAttempts = 0 }},
		{name: "unknown submodules mode", mutate: func(in *Inputs) { in.Submodules = "deep" }},
		{name: "unknown dissociate mode", mutate: func(in *Inputs) { in.Dissociate = "all" }},
		{name: "path escapes workspace", mutate: func(in *Inputs) { in.Path = "../elsewhere" }},
		{name: "path escapes through nested dots", mutate: func(in *Inputs) { in.Path = "a/../../b" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := testEnv()
			if tt.env != nil {
				tt.env(env)
			}
			_, err := NewRequest(inputs(tt.mutate), env)
			require.Error(t, err)
			assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
		})
	}
}

func TestIsSHA(t *testing.T) {
	t.Parallel()

	assert.True(t, IsSHA(sha1))
	assert.True(t, IsSHA(sha256))
	assert.False(t, IsSHA(""))
	assert.False(t, IsSHA("main"))
	assert.False(t, IsSHA(strings.Repeat("z", 40)))
}
