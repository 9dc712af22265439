package mirror

import (
	"context"
	"os"

	"github.com/chainguard-dev/clog"
	"github.com/go-git/go-billy/v5"
)

// prepareVersionRoot creates the version directory world-writable, or makes
// an existing one world-writable. Failures are logged and never returned.
func (m *Manager) prepareVersionRoot(ctx context.Context) {
	dir := m.VersionRoot()
	log := clog.FromContext(ctx).With("dir", dir)

	info, err := m.fs.Stat(dir)
	switch {
	case os.IsNotExist(err):
		if err := m.fs.MkdirAll(dir, worldWritable); err != nil {
			log.Warnf("Failed to create mirror directory: %v", err)
			return
		}
	case err != nil:
		log.Warnf("Failed to inspect mirror directory: %v", err)
		return
	case info.Mode().Perm()&0o002 != 0:
		return
	}

	// MkdirAll is subject to the umask, so the mode is always set explicitly.
	if err = m.chmod(dir); err == nil {
		return
	}
	log.Debugf("chmod failed, escalating: %v", err)

	if m.sudo == nil {
		log.Warnf("Mirror directory is not writable by other users and no privilege escalation is configured")
		return
	}
	if _, err := m.sudo.Local(ctx, "-n", "chmod", "0777", dir); err != nil {
		log.Warnf("Failed to make mirror directory writable for all users: %v", err)
	}
}

func (m *Manager) chmod(dir string) error {
	change, ok := m.fs.(billy.Change)
	if !ok {
		return errNoChange
	}
	return change.Chmod(dir, worldWritable)
}

var errNoChange = &unsupportedError{op: "chmod"}

type unsupportedError struct {
	op string
}

func (e *unsupportedError) Error() string {
	return e.op + " is not supported by the filesystem"
}
