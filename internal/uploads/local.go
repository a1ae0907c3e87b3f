// Package uploads stores report evidence images and serves back stable URL
// paths for them.
package uploads

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// URLPrefix is the public path prefix under which stored files are served.
const URLPrefix = "/uploads"

// MaxFileSize is the largest accepted upload (8 MiB).
const MaxFileSize = 8 << 20

// allowedExtensions are the image types accepted as report evidence.
var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// Store persists uploaded evidence images.
type Store interface {
	// Save stores the uploaded file and returns its public URL path
	// (e.g. "/uploads/3f2a….jpg").
	Save(file *multipart.FileHeader) (string, error)
	// Remove deletes a previously saved file by its public URL path.
	Remove(url string) error
}

// LocalStore writes uploads to a directory on local disk. Files are renamed
// to a random UUID so uploaded names never reach the filesystem.
type LocalStore struct {
	dir string
}

// NewLocalStore creates the upload directory if needed and returns a store
// writing into it.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir %q: %w", dir, err)
	}
	return &LocalStore{dir: dir}, nil
}

// Dir returns the directory files are written to, for static file serving.
func (s *LocalStore) Dir() string { return s.dir }

// Writable verifies the upload directory still exists and accepts writes.
func (s *LocalStore) Writable() error {
	f, err := os.CreateTemp(s.dir, ".probe-*")
	if err != nil {
		return fmt.Errorf("upload dir not writable: %w", err)
	}
	name := f.Name()
	f.Close()          //nolint:errcheck
	return os.Remove(name)
}

// Save implements Store.
func (s *LocalStore) Save(file *multipart.FileHeader) (string, error) {
	if file.Size > MaxFileSize {
		return "", fmt.Errorf("file exceeds %d byte limit", MaxFileSize)
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedExtensions[ext] {
		return "", fmt.Errorf("unsupported file type %q", ext)
	}

	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close() //nolint:errcheck

	name := uuid.New().String() + ext
	dst, err := os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer dst.Close() //nolint:errcheck

	if _, err := io.Copy(dst, io.LimitReader(src, MaxFileSize)); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	return URLPrefix + "/" + name, nil
}

// Remove implements Store. Only URLs minted by Save are accepted; the base
// name is resolved inside the store directory so the URL can never reach
// other paths.
func (s *LocalStore) Remove(url string) error {
	name := strings.TrimPrefix(url, URLPrefix+"/")
	if name == url || name == "" || name != filepath.Base(name) {
		return fmt.Errorf("not a stored upload URL: %q", url)
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("remove upload: %w", err)
	}
	return nil
}
