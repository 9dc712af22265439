package exec

import (
	"bytes"
	"io"
	"sync"
)

// multiWriter fans writes out to several writers under one lock.
type multiWriter struct {
	mu      sync.Mutex
	writers []io.Writer
}

func newMultiWriter(writers ...io.Writer) *multiWriter {
	return &multiWriter{writers: writers}
}

func (mw *multiWriter) Write(p []byte) (int, error) {
	mw.mu.Lock()
	defer mw.mu.Unlock()

	for _, w := range mw.writers {
		n, err := w.Write(p)
		if err != nil {
			return n, err
		}
		if n != len(p) {
			return n, io.ErrShortWrite
		}
	}
	return len(p), nil
}

// outputCapture buffers a stream and optionally copies it to passthrough.
type outputCapture struct {
	mu          sync.Mutex
	buffer      bytes.Buffer
	passthrough io.Writer
}

func newOutputCapture(passthrough io.Writer) *outputCapture {
	return &outputCapture{passthrough: passthrough}
}

func (oc *outputCapture) Write(p []byte) (int, error) {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	return oc.buffer.Write(p)
}

// Writer returns the sink handed to os/exec.
func (oc *outputCapture) Writer() io.Writer {
	if oc.passthrough != nil {
		return newMultiWriter(oc, oc.passthrough)
	}
	return oc
}

func (oc *outputCapture) String() string {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	return oc.buffer.String()
}

// combinedWriter interleaves stdout and stderr.
type combinedWriter struct {
	mu     sync.Mutex
	buffer bytes.Buffer
}

func newCombinedWriter() *combinedWriter {
	return &combinedWriter{}
}

func (cw *combinedWriter) Write(p []byte) (int, error) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	return cw.buffer.Write(p)
}

func (cw *combinedWriter) String() string {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	return cw.buffer.String()
}
