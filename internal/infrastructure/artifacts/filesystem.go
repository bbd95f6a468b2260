package artifacts

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"BulletinDispatch/internal/domain"
	"BulletinDispatch/internal/ports"
)

// Filesystem stores report artifacts as files in one directory.
type Filesystem struct {
	dir string
}

var _ ports.ArtifactStore = (*Filesystem)(nil)

// NewFilesystem creates dir if needed and returns a store rooted there.
func NewFilesystem(dir string) (*Filesystem, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("artifact directory is not configured")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve artifact dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &Filesystem{dir: abs}, nil
}

func (f *Filesystem) path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid artifact name %q", name)
	}
	return filepath.Join(f.dir, name), nil
}

// Create writes a new file exclusively. A partially written file is removed.
func (f *Filesystem) Create(ctx context.Context, name string, write func(io.Writer) error) (domain.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return domain.Artifact{}, err
	}
	path, err := f.path(name)
	if err != nil {
		return domain.Artifact{}, err
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, os.ErrExist) {
		return domain.Artifact{}, fmt.Errorf("%s: %w", name, ports.ErrArtifactExists)
	}
	if err != nil {
		return domain.Artifact{}, fmt.Errorf("create %s: %w", name, err)
	}

	buf := bufio.NewWriter(file)
	if err := write(buf); err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return domain.Artifact{}, err
	}
	if err := buf.Flush(); err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return domain.Artifact{}, fmt.Errorf("flush %s: %w", name, err)
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return domain.Artifact{}, fmt.Errorf("sync %s: %w", name, err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(path)
		return domain.Artifact{}, fmt.Errorf("close %s: %w", name, err)
	}

	return domain.Artifact{Name: name, Path: path}, nil
}

// Exists reports whether an artifact with name is stored.
func (f *Filesystem) Exists(_ context.Context, name string) (bool, error) {
	path, err := f.path(name)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", name, err)
	}
	return true, nil
}

// Open reads an artifact back by name. Missing files wrap os.ErrNotExist.
func (f *Filesystem) Open(_ context.Context, artifact domain.Artifact) (io.ReadCloser, error) {
	path, err := f.path(artifact.Name)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", artifact.Name, err)
	}
	return file, nil
}

// Remove deletes an artifact; a missing file is not an error.
func (f *Filesystem) Remove(_ context.Context, artifact domain.Artifact) error {
	path, err := f.path(artifact.Name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", artifact.Name, err)
	}
	return nil
}
