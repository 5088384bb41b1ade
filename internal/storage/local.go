package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// LocalAdapter stores files as regular files under a single root directory.
// It is the zero-dependency default backend so the server runs without any
// external store configured. File ids are flat: an id is exactly the file's
// base name under root, so a lookup never needs to walk subdirectories.
type LocalAdapter struct {
	mu   sync.RWMutex
	root string
}

// NewLocalAdapter creates a LocalAdapter rooted at root. root must already
// exist; NewLocalAdapter does not create it.
func NewLocalAdapter(root string) (*LocalAdapter, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("storage root %q: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage root %q is not a directory", root)
	}
	return &LocalAdapter{root: root}, nil
}

// safePath resolves id to a path under root, rejecting any id that could
// escape the root (path separators, "..", empty).
func (a *LocalAdapter) safePath(id string) (string, error) {
	if id == "" || id == "." || id == ".." {
		return "", ErrInvalidID
	}
	if strings.ContainsAny(id, `/\`) {
		return "", ErrInvalidID
	}
	return filepath.Join(a.root, id), nil
}

func (a *LocalAdapter) Size(ctx context.Context, id string) (int64, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	path, err := a.safePath(id)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return 0, ErrNotFound
	}
	if os.IsPermission(err) {
		return 0, ErrAccessDenied
	}
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// ReadOnly always reports false: the local backend imposes no write
// restrictions of its own beyond the process's filesystem permissions.
func (a *LocalAdapter) ReadOnly(ctx context.Context, id string) (bool, error) {
	if _, err := a.Size(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// Version returns the file's modification time as a version token. It is
// coarser than an S3 ETag but monotonic for the purposes handlers need.
func (a *LocalAdapter) Version(ctx context.Context, id string) (string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	path, err := a.safePath(id)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return "", ErrNotFound
	}
	if os.IsPermission(err) {
		return "", ErrAccessDenied
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", info.ModTime().UnixNano()), nil
}

// LastModifiedTime reports the file's modification time in RFC3339, letting
// CheckFileInfo populate its domain-stack LastModifiedTime field cheaply.
func (a *LocalAdapter) LastModifiedTime(ctx context.Context, id string) (string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	path, err := a.safePath(id)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return "", ErrNotFound
	}
	if os.IsPermission(err) {
		return "", ErrAccessDenied
	}
	if err != nil {
		return "", err
	}
	return info.ModTime().UTC().Format(time.RFC3339), nil
}

// SHA256 hashes the file's contents, letting CheckFileInfo populate its
// domain-stack SHA256 field. Unlike Version/LastModifiedTime this reads the
// whole file, so callers should treat it as comparatively expensive.
func (a *LocalAdapter) SHA256(ctx context.Context, id string) (string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	path, err := a.safePath(id)
	if err != nil {
		return "", err
	}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return "", ErrNotFound
	}
	if os.IsPermission(err) {
		return "", ErrAccessDenied
	}
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (a *LocalAdapter) Open(ctx context.Context, id string) (io.ReadCloser, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	path, err := a.safePath(id)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if os.IsPermission(err) {
		return nil, ErrAccessDenied
	}
	return f, err
}

// maxLocalUpload bounds how much a single Upload/CreateOrOverwrite call
// will write, mirroring the S3 backend's in-memory buffering limit.
const maxLocalUpload = 256 << 20

func (a *LocalAdapter) Upload(ctx context.Context, id string, r io.Reader, size int64) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	path, err := a.safePath(id)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "", ErrNotFound
	}
	return a.writeFile(path, r, size)
}

func (a *LocalAdapter) CreateOrOverwrite(ctx context.Context, name string, r io.Reader, size int64) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	path, err := a.safePath(name)
	if err != nil {
		return "", err
	}
	return a.writeFile(path, r, size)
}

func (a *LocalAdapter) writeFile(path string, r io.Reader, size int64) (string, error) {
	limited := io.LimitReader(r, maxLocalUpload+1)
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return "", err
	}
	n, err := io.Copy(f, limited)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return "", err
	}
	if n > maxLocalUpload {
		os.Remove(tmp)
		return "", ErrTooLarge
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", err
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", info.ModTime().UnixNano()), nil
}

func (a *LocalAdapter) Delete(ctx context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	path, err := a.safePath(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); os.IsNotExist(err) {
		return ErrNotFound
	} else if err != nil {
		return err
	}
	return nil
}

func (a *LocalAdapter) Rename(ctx context.Context, id, newName string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	oldPath, err := a.safePath(id)
	if err != nil {
		return "", err
	}
	newPath, err := a.safePath(newName)
	if err != nil {
		return "", ErrInvalidID
	}
	if _, err := os.Stat(oldPath); os.IsNotExist(err) {
		return "", ErrNotFound
	}
	if _, err := os.Stat(newPath); err == nil {
		return "", ErrNameConflict
	}
	if err := os.Rename(oldPath, newPath); err != nil {
		return "", err
	}
	return newName, nil
}

func (a *LocalAdapter) RootDirectory(ctx context.Context) (RootInfo, error) {
	return RootInfo{Name: filepath.Base(a.root)}, nil
}

func (a *LocalAdapter) ListChildren(ctx context.Context) ([]ChildInfo, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	entries, err := os.ReadDir(a.root)
	if err != nil {
		return nil, err
	}
	children := make([]ChildInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		children = append(children, ChildInfo{
			Name:    e.Name(),
			ID:      e.Name(),
			Size:    info.Size(),
			Version: fmt.Sprintf("%d", info.ModTime().UnixNano()),
		})
	}
	sort.Slice(children, func(i, j int) bool { return children[i].Name < children[j].Name })
	return children, nil
}
