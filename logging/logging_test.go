package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/chainguard-dev/clog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMasker(t *testing.T) {
	t.Parallel()

	m := NewMasker(nil)
	m.Add("")
	m.Add("   ")
	m.Add("abc")
	m.Add("abcdef")
	m.Add("abc")

	assert.Equal(t, "token=*** other=***", m.Mask("token=abcdef other=abc"))
	assert.Equal(t, "nothing here", m.Mask("nothing here"))

	var nilMasker *Masker
	assert.Equal(t, "abc", nilMasker.Mask("abc"))
}

func TestMaskerAnnounces(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	m := NewMasker(&out)
	m.Add("s3cr3t")
	m.Add("s3cr3t")

	assert.Equal(t, "::add-mask::s3cr3t\n", out.String())

	late := NewMasker(nil)
	late.Add("before")
	late.Announce(&out)
	late.Add("after")
	assert.Equal(t, "::add-mask::s3cr3t\n::add-mask::after\n", out.String())
}

func TestMaskingWriter(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	m := NewMasker(nil)
	m.Add("hunter2")

	n, err := m.Writer(&out).Write([]byte("password is hunter2\n"))
	require.NoError(t, err)
	assert.Equal(t, len("password is hunter2\n"), n)
	assert.Equal(t, "password is ***\n", out.String())
}

func TestMaskingWriterSplitSecret(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	m := NewMasker(nil)
	m.Add("hunter2")
	w := m.Writer(&out)

	for _, chunk := range []string{"password is hun", "ter2\nnext ", "line hunt", "er2"} {
		n, err := w.Write([]byte(chunk))
		require.NoError(t, err)
		assert.Equal(t, len(chunk), n)
	}
	assert.Equal(t, "password is ***\n", out.String())

	require.NoError(t, w.Flush())
	assert.Equal(t, "password is ***\nnext line ***", out.String())
	assert.NotContains(t, out.String(), "hunter2")

	require.NoError(t, w.Flush())
	assert.Equal(t, "password is ***\nnext line ***", out.String())
}

func TestMaskingWriterProgress(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	m := NewMasker(nil)
	m.Add("hunter2")
	w := m.Writer(&out)

	_, err := w.Write([]byte("Receiving objects:  50%\rReceiving objects: 100%\rhunt"))
	require.NoError(t, err)
	assert.Equal(t, "Receiving objects:  50%\rReceiving objects: 100%\r", out.String())

	_, err = w.Write([]byte("er2 done\n"))
	require.NoError(t, err)
	assert.Equal(t, "Receiving objects:  50%\rReceiving objects: 100%\r*** done\n", out.String())
}

func TestMaskingWriterBoundsPending(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	w := NewMasker(nil).Writer(&out)

	_, err := w.Write(bytes.Repeat([]byte("x"), maxPending))
	require.NoError(t, err)
	assert.Equal(t, maxPending, out.Len())
}

func TestLoggerMasksSecrets(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	m := NewMasker(nil)
	m.Add("ghs_supersecret")

	logger := New(Options{Writer: &out, Level: slog.LevelDebug, Masker: m})
	ctx := WithLogger(context.Background(), logger)

	clog.FromContext(ctx).
		With("header", "AUTHORIZATION: basic ghs_supersecret").
		Info("running git config with ghs_supersecret",
			"error", errors.New("failed: ghs_supersecret"),
			slog.Group("cmd", "arg", "ghs_supersecret"),
			"attempt", 2)

	logged := out.String()
	assert.NotContains(t, logged, "ghs_supersecret")
	assert.Contains(t, logged, "running git config with ***")
	assert.Contains(t, logged, "attempt=2")
}

func TestLoggerLevel(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	logger := New(Options{Writer: &out, Level: slog.LevelWarn})

	logger.Info("quiet")
	logger.Warn("loud")

	assert.NotContains(t, out.String(), "quiet")
	assert.Contains(t, out.String(), "loud")
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{in: "", want: slog.LevelInfo},
		{in: "debug", want: slog.LevelDebug},
		{in: "WARN", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "loud", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
