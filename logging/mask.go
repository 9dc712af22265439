package logging

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// Redacted replaces every masked secret.
const Redacted = "***"

// Masker holds the secrets that must never appear in output.
type Masker struct {
	mu       sync.RWMutex
	secrets  []string
	announce io.Writer
}

// NewMasker returns an empty Masker. When announce is non-nil every new
// secret is also written to it as a GitHub Actions add-mask command, so the
// runner redacts it from output this process does not control.
func NewMasker(announce io.Writer) *Masker {
	return &Masker{announce: announce}
}

// Add registers secret. Blank values are ignored.
func (m *Masker) Add(secret string) {
	if strings.TrimSpace(secret) == "" {
		return
	}

	m.mu.Lock()
	for _, s := range m.secrets {
		if s == secret {
			m.mu.Unlock()
			return
		}
	}
	m.secrets = append(m.secrets, secret)
	// Longest first so a secret containing another is replaced whole.
	sort.SliceStable(m.secrets, func(i, j int) bool {
		return len(m.secrets[i]) > len(m.secrets[j])
	})
	announce := m.announce
	m.mu.Unlock()

	if announce != nil {
		fmt.Fprintf(announce, "::add-mask::%s\n", secret)
	}
}

// Announce sets the writer that receives add-mask commands for secrets
// registered from now on.
func (m *Masker) Announce(w io.Writer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.announce = w
}

// Mask returns s with every registered secret replaced.
func (m *Masker) Mask(s string) string {
	if m == nil {
		return s
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, secret := range m.secrets {
		s = strings.ReplaceAll(s, secret, Redacted)
	}
	return s
}

// maxPending bounds how much unterminated output a MaskingWriter holds
// before writing it out regardless.
const maxPending = 64 << 10

// Writer wraps w so that everything written through it is masked. Output
// is held back until a line terminator so a secret split across writes is
// still caught; call Flush to write a trailing partial line.
func (m *Masker) Writer(w io.Writer) *MaskingWriter {
	return &MaskingWriter{w: w, m: m}
}

// MaskingWriter masks whole lines. It is safe for concurrent use, which
// lets one writer serve both output streams of a child process.
type MaskingWriter struct {
	mu      sync.Mutex
	w       io.Writer
	m       *Masker
	pending []byte
}

func (mw *MaskingWriter) Write(p []byte) (int, error) {
	mw.mu.Lock()
	defer mw.mu.Unlock()

	mw.pending = append(mw.pending, p...)

	// git progress redraws with \r, so it ends a line too.
	cut := bytes.LastIndexAny(mw.pending, "\r\n") + 1
	if cut == 0 {
		if len(mw.pending) < maxPending {
			return len(p), nil
		}
		cut = len(mw.pending)
	}

	err := mw.emit(mw.pending[:cut])
	mw.pending = append(mw.pending[:0], mw.pending[cut:]...)
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

// Flush writes any held back partial line.
func (mw *MaskingWriter) Flush() error {
	mw.mu.Lock()
	defer mw.mu.Unlock()

	if len(mw.pending) == 0 {
		return nil
	}
	err := mw.emit(mw.pending)
	mw.pending = mw.pending[:0]
	return err
}

func (mw *MaskingWriter) emit(data []byte) error {
	_, err := io.WriteString(mw.w, mw.m.Mask(string(data)))
	return err
}
