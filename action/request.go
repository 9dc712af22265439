package action

import (
	"path/filepath"
	"strings"

	"github.com/namespacelabs/nscloud-checkout-action/errors"
	"github.com/namespacelabs/nscloud-checkout-action/fetchplan"
	"github.com/namespacelabs/nscloud-checkout-action/submodule"
)

// Inputs are the raw action inputs, as given on the command line or in an
// inputs file.
type Inputs struct {
	Repository             string   `yaml:"repository"`
	Ref                    string   `yaml:"ref"`
	Commit                 string   `yaml:"commit"`
	Token                  string   `yaml:"token"`
	Path                   string   `yaml:"path"`
	FetchDepth             int      `yaml:"fetch-depth"`
	Filter                 string   `yaml:"filter"`
	SparseCheckout         string   `yaml:"sparse-checkout"`
	SparseCheckoutConeMode bool     `yaml:"sparse-checkout-cone-mode"`
	Submodules             string   `yaml:"submodules"`
	Dissociate             string   `yaml:"dissociate"`
	PersistCredentials     bool     `yaml:"persist-credentials"`
	LFS                    bool     `yaml:"lfs"`
	MaxAttempts            int      `yaml:"max-attempts"`
	Trace                  bool     `yaml:"trace"`
	MirrorRefspecs         []string `yaml:"mirror-refspec"`
	SubmoduleHelper        string   `yaml:"submodule-helper"`
}

// DefaultInputs returns the inputs used when nothing is specified.
func DefaultInputs() Inputs {
	return Inputs{
		FetchDepth:             1,
		SparseCheckoutConeMode: true,
		Submodules:             "false",
		Dissociate:             string(DissociateNone),
		PersistCredentials:     true,
		MaxAttempts:            3,
		SubmoduleHelper:        submodule.DefaultHelper,
	}
}

// DissociateMode says which repositories stop borrowing objects from their
// mirror once checked out.
type DissociateMode string

const (
	DissociateNone      DissociateMode = "none"
	DissociateMain      DissociateMode = "main"
	DissociateRecursive DissociateMode = "recursive"
)

// ParseDissociateMode parses a dissociate input. Empty means none.
func ParseDissociateMode(s string) (DissociateMode, error) {
	switch mode := DissociateMode(strings.ToLower(strings.TrimSpace(s))); mode {
	case "":
		return DissociateNone, nil
	case DissociateNone, DissociateMain, DissociateRecursive:
		return mode, nil
	default:
		return DissociateNone, errors.Newf(errors.CodeInvalidInput, "invalid dissociate value %q: expected none, main or recursive", s)
	}
}

// Request is a validated checkout request. It is not modified after
// NewRequest returns.
type Request struct {
	Owner                string
	Repo                 string
	Ref                  string
	Commit               string
	IsWorkflowRepository bool
	FetchDepth           int
	Filter               string
	Sparse               fetchplan.Sparse
	Submodules           submodule.Mode
	Dissociate           DissociateMode
	PersistCredentials   bool
	LFS                  bool
	MaxAttempts          int
	Trace                bool
	MirrorRefspecs       []string
	SubmoduleHelper      string
	Token                string

	// Path is the checkout location relative to the workspace.
	Path string

	// WorkDir is the absolute checkout location.
	WorkDir string
}

// Repository returns owner/repo.
func (r *Request) Repository() string {
	return r.Owner + "/" + r.Repo
}

// NewRequest validates in against env and builds a Request.
func NewRequest(in Inputs, env *Env) (*Request, error) {
	repository := strings.TrimSpace(in.Repository)
	if repository == "" {
		repository = env.Repository
	}
	owner, repo, ok := strings.Cut(repository, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		err := errors.Newf(errors.CodeInvalidInput, "invalid repository %q: expected owner/repo", repository)
		return nil, errors.WithContext(err, "field", "repository")
	}

	if in.FetchDepth < 0 {
		err := errors.Newf(errors.CodeInvalidInput, "fetch-depth must not be negative, got %d", in.FetchDepth)
		return nil, errors.WithContext(err, "field", "fetch-depth")
	}
	if in.MaxAttempts < 1 {
		err := errors.Newf(errors.CodeInvalidInput, "max-attempts must be at least 1, got %d", in.MaxAttempts)
		return nil, errors.WithContext(err, "field", "max-attempts")
	}

	submodules, err := submodule.ParseMode(in.Submodules)
	if err != nil {
		return nil, errors.WithContext(err, "field", "submodules")
	}
	dissociate, err := ParseDissociateMode(in.Dissociate)
	if err != nil {
		return nil, errors.WithContext(err, "field", "dissociate")
	}

	workDir, err := containedPath(env.Workspace, in.Path)
	if err != nil {
		return nil, err
	}

	helper := in.SubmoduleHelper
	if helper == "" {
		helper = submodule.DefaultHelper
	}

	req := &Request{
		Owner:                owner,
		Repo:                 repo,
		Ref:                  strings.TrimSpace(in.Ref),
		Commit:               strings.TrimSpace(in.Commit),
		IsWorkflowRepository: strings.EqualFold(repository, env.Repository),
		FetchDepth:           in.FetchDepth,
		Filter:               in.Filter,
		Sparse: fetchplan.Sparse{
			Patterns: fetchplan.ParsePatterns(in.SparseCheckout),
			Cone:     in.SparseCheckoutConeMode,
		},
		Submodules:         submodules,
		Dissociate:         dissociate,
		PersistCredentials: in.PersistCredentials,
		LFS:                in.LFS,
		MaxAttempts:        in.MaxAttempts,
		Trace:              in.Trace || env.Debug(),
		MirrorRefspecs:     append([]string(nil), in.MirrorRefspecs...),
		SubmoduleHelper:    helper,
		Token:              in.Token,
		Path:               in.Path,
		WorkDir:            workDir,
	}

	if req.IsWorkflowRepository && req.Ref == "" && req.Commit == "" {
		req.Ref = env.Ref
		req.Commit = env.SHA
	}

	if req.Commit == "" && IsSHA(req.Ref) {
		req.Commit = req.Ref
		req.Ref = ""
	}

	return req, nil
}

// IsSHA reports whether s is a full SHA-1 or SHA-256 object name.
func IsSHA(s string) bool {
	if len(s) != 40 && len(s) != 64 {
		return false
	}
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// containedPath joins path onto workspace and rejects results outside it.
func containedPath(workspace, path string) (string, error) {
	full := filepath.Join(workspace, path)
	rel, err := filepath.Rel(workspace, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		err := errors.Newf(errors.CodeInvalidInput, "path %q is outside the workspace %s", path, workspace)
		return "", errors.WithContext(err, "field", "path")
	}
	return full, nil
}
