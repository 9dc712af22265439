package git

import (
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/storage/filesystem"
)

// Mirror is an opened bare mirror repository.
type Mirror struct {
	path string
	repo *gogit.Repository
}

// OpenOption configures OpenMirror.
type OpenOption func(*openOptions)

type openOptions struct {
	fs billy.Filesystem
}

// WithFilesystem sets the filesystem the mirror path is resolved against.
// Defaults to the host filesystem rooted at /.
func WithFilesystem(fs billy.Filesystem) OpenOption {
	return func(o *openOptions) {
		o.fs = fs
	}
}

// OpenMirror opens the bare repository at path.
func OpenMirror(path string, opts ...OpenOption) (*Mirror, error) {
	options := &openOptions{fs: osfs.New("/")}
	for _, opt := range opts {
		opt(options)
	}

	scoped, err := options.fs.Chroot(path)
	if err != nil {
		return nil, wrapError(err, "failed to scope filesystem to mirror")
	}

	storage := filesystem.NewStorage(scoped, cache.NewObjectLRUDefault())
	repo, err := gogit.Open(storage, nil)
	if err != nil {
		return nil, wrapError(err, "failed to open mirror")
	}

	return &Mirror{path: path, repo: repo}, nil
}
