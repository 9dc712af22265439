package checkout

import (
	"context"
	"os"
	"path/filepath"

	"github.com/namespacelabs/nscloud-checkout-action/errors"
	"github.com/namespacelabs/nscloud-checkout-action/fetchplan"
	"github.com/namespacelabs/nscloud-checkout-action/retry"
)

// applySparse configures sparse checkout in workDir. Cone mode goes through
// `git sparse-checkout set`; non-cone patterns are appended verbatim to
// info/sparse-checkout.
func (e *Executor) applySparse(ctx context.Context, git *retry.Executor, workDir string, sparse fetchplan.Sparse) error {
	if !sparse.Enabled() {
		return nil
	}

	if sparse.Cone {
		if _, err := git.Local(ctx, sparse.ConeArgs()...); err != nil {
			return errors.Wrap(err, errors.CodeLocalOperation, "failed to configure sparse checkout")
		}
		return nil
	}

	if _, err := git.Local(ctx, "config", "core.sparseCheckout", "true"); err != nil {
		return errors.Wrap(err, errors.CodeLocalOperation, "failed to enable sparse checkout")
	}

	info := filepath.Join(workDir, ".git", "info")
	if err := e.fs.MkdirAll(info, 0o755); err != nil {
		return errors.Wrap(err, errors.CodeFilesystem, "failed to create info directory")
	}

	f, err := e.fs.OpenFile(filepath.Join(info, "sparse-checkout"), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return errors.Wrap(err, errors.CodeFilesystem, "failed to open sparse-checkout file")
	}
	if _, err := f.Write([]byte(sparse.File())); err != nil {
		_ = f.Close()
		return errors.Wrap(err, errors.CodeFilesystem, "failed to write sparse-checkout file")
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, errors.CodeFilesystem, "failed to write sparse-checkout file")
	}
	return nil
}
