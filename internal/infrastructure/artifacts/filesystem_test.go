package artifacts

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"BulletinDispatch/internal/domain"
	"BulletinDispatch/internal/ports"
)

func TestFilesystemLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	fs, err := NewFilesystem(filepath.Join(dir, "reports"))
	require.NoError(t, err)

	name := "Octubre-2026 - Report ACME - High - 000001.pdf"
	ok, err := fs.Exists(ctx, name)
	require.NoError(t, err)
	assert.False(t, ok)

	artifact, err := fs.Create(ctx, name, func(w io.Writer) error {
		_, err := io.WriteString(w, "%PDF-1.3")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, name, artifact.Name)
	assert.Equal(t, filepath.Join(dir, "reports", name), artifact.Path)

	ok, err = fs.Exists(ctx, name)
	require.NoError(t, err)
	assert.True(t, ok)

	rc, err := fs.Open(ctx, artifact)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.3", string(data))

	_, err = fs.Create(ctx, name, func(io.Writer) error { return nil })
	assert.ErrorIs(t, err, ports.ErrArtifactExists)

	require.NoError(t, fs.Remove(ctx, artifact))
	require.NoError(t, fs.Remove(ctx, artifact))

	_, err = fs.Open(ctx, artifact)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFilesystemCreateCleansUpOnWriteError(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fs, err := NewFilesystem(t.TempDir())
	require.NoError(t, err)

	boom := errors.New("render failed")
	_, err = fs.Create(ctx, "broken.pdf", func(w io.Writer) error {
		_, _ = io.WriteString(w, "partial")
		return boom
	})
	require.ErrorIs(t, err, boom)

	ok, err := fs.Exists(ctx, "broken.pdf")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFilesystemRejectsPathNames(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fs, err := NewFilesystem(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"", "..", "../escape.pdf", "sub/dir.pdf"} {
		_, err := fs.Create(ctx, name, func(io.Writer) error { return nil })
		assert.Error(t, err, name)
	}
	_, err = fs.Open(ctx, domain.Artifact{Name: "../x.pdf"})
	assert.Error(t, err)
}

func TestNewFilesystemRequiresDir(t *testing.T) {
	t.Parallel()

	_, err := NewFilesystem("  ")
	assert.Error(t, err)
}
