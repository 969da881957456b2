package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// tempPrefix marks in-flight uploads; List never reports them.
const tempPrefix = ".upload-tmp-"

// fsStorage implements Storage on a local directory tree <root>/<category>/<name>.
// It is safe for concurrent use; files are opened per call and never locked.
type fsStorage struct {
	root string // absolute, cleaned, symlinks resolved
}

// NewFS creates a Storage rooted at dir. The directory is created if missing.
func NewFS(dir string) (Storage, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	return &fsStorage{root: resolved}, nil
}

// resolve joins validated segments onto the root and rejects any result
// that escapes it.
func (f *fsStorage) resolve(segments ...string) (string, error) {
	for _, s := range segments {
		if err := validSegment(s); err != nil {
			return "", err
		}
	}
	abs := filepath.Join(append([]string{f.root}, segments...)...)
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: escapes uploads root", ErrInvalidPath)
	}
	return abs, nil
}

// within follows symlinks in p and rejects a target outside the root.
// A missing path, a link to one, or a path through a regular file is ErrNotFound.
func (f *fsStorage) within(p string) (string, error) {
	resolved, err := filepath.EvalSymlinks(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("storage: resolve %s: %w", p, err)
	}
	if !strings.HasPrefix(resolved, f.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: links outside uploads root", ErrInvalidPath)
	}
	return resolved, nil
}

func (f *fsStorage) List(ctx context.Context, category string) ([]string, error) {
	dir, err := f.resolve(category)
	if err != nil {
		return nil, err
	}
	if dir, err = f.within(dir); err != nil {
		return nil, err
	}
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("storage: stat %s: %w", category, err)
	}
	if !info.IsDir() {
		return nil, ErrNotFound
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// os.ReadDir returns entries sorted by filename.
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("storage: read dir %s: %w", category, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), tempPrefix) {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

func (f *fsStorage) Get(ctx context.Context, category, name string) (io.ReadCloser, ObjectInfo, error) {
	p, err := f.resolve(category, name)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	if p, err = f.within(p); err != nil {
		return nil, ObjectInfo{}, err
	}
	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ObjectInfo{}, ErrNotFound
		}
		return nil, ObjectInfo{}, fmt.Errorf("storage: stat %s/%s: %w", category, name, err)
	}
	if info.IsDir() {
		return nil, ObjectInfo{}, ErrNotFound
	}
	if err := ctx.Err(); err != nil {
		return nil, ObjectInfo{}, err
	}

	file, err := os.Open(p)
	if err != nil {
		return nil, ObjectInfo{}, fmt.Errorf("storage: open %s/%s: %w", category, name, err)
	}
	return file, ObjectInfo{
		Key:          category + "/" + name,
		Size:         info.Size(),
		LastModified: info.ModTime(),
	}, nil
}

// Put streams r into a temp file next to the target and renames it into place.
func (f *fsStorage) Put(ctx context.Context, category, name string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error) {
	p, err := f.resolve(category, name)
	if err != nil {
		return ObjectInfo{}, err
	}
	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ObjectInfo{}, fmt.Errorf("storage: mkdir: %w", err)
	}
	if dir, err = f.within(dir); err != nil {
		return ObjectInfo{}, err
	}
	p = filepath.Join(dir, name)

	tmp, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	written, err := io.Copy(tmp, readerWithContext(ctx, r))
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return ObjectInfo{}, fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return ObjectInfo{}, fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		return ObjectInfo{}, fmt.Errorf("storage: rename: %w", err)
	}
	success = true

	return ObjectInfo{
		Key:         category + "/" + name,
		Size:        written,
		ContentType: opt.ContentType,
		Metadata:    opt.Metadata,
	}, nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// readerWithContext stops a copy once ctx is done.
func readerWithContext(ctx context.Context, r io.Reader) io.Reader {
	return ctxReader{ctx: ctx, r: r}
}
