// Package assets manages the on-disk lifecycle of uploaded and cropped face
// images. Every write returns an Asset that must be either committed or
// discarded, so failure paths cannot leak files.
package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// PublicPrefix is the URL prefix under which stored assets are served.
const PublicPrefix = "/static"

// Store owns a directory of image assets.
type Store struct {
	dir string
}

// NewStore creates an asset store rooted at dir, creating the directory if
// needed.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("asset directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating asset directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the store's root directory.
func (s *Store) Dir() string {
	return s.dir
}

// Asset is a written file pending commit. Callers defer Discard immediately
// after a successful save; Commit disarms it once the owning database record
// exists.
type Asset struct {
	store     *Store
	filename  string
	committed bool
}

// SaveOriginal stores an uploaded image under a name-derived file name.
func (s *Store) SaveOriginal(name string, data []byte) (*Asset, error) {
	filename := fmt.Sprintf("%s_%x.jpg", Slug(name), uuid.New())
	return s.save(filename, data)
}

// SaveTemp stores an upload that will not outlive its request, e.g. a
// recognition query image.
func (s *Store) SaveTemp(data []byte) (*Asset, error) {
	filename := fmt.Sprintf("%x.jpg", uuid.New())
	return s.save(filename, data)
}

// SaveCropped stores a cropped face image.
func (s *Store) SaveCropped(data []byte) (*Asset, error) {
	filename := fmt.Sprintf("crop_%x.jpg", uuid.New())
	return s.save(filename, data)
}

func (s *Store) save(filename string, data []byte) (*Asset, error) {
	path := filepath.Join(s.dir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("writing asset %s: %w", filename, err)
	}
	return &Asset{store: s, filename: filename}, nil
}

// PublicPath returns the path under which the asset is served.
func (a *Asset) PublicPath() string {
	return PublicPrefix + "/" + a.filename
}

// Commit marks the asset as owned by a database record; Discard becomes a
// no-op afterwards.
func (a *Asset) Commit() {
	a.committed = true
}

// Discard removes the asset file unless it has been committed. Removing an
// already-missing file is not an error.
func (a *Asset) Discard() error {
	if a.committed {
		return nil
	}
	return a.store.removeFile(a.filename)
}

// Remove deletes the asset referenced by a public path. Missing files are
// not an error, so deletion is idempotent.
func (s *Store) Remove(publicPath string) error {
	filename, err := s.resolve(publicPath)
	if err != nil {
		return err
	}
	return s.removeFile(filename)
}

func (s *Store) removeFile(filename string) error {
	err := os.Remove(filepath.Join(s.dir, filename))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing asset %s: %w", filename, err)
	}
	return nil
}

// resolve maps a public path back to a file name inside the store, rejecting
// anything that would escape the asset directory.
func (s *Store) resolve(publicPath string) (string, error) {
	filename, ok := strings.CutPrefix(publicPath, PublicPrefix+"/")
	if !ok {
		return "", fmt.Errorf("path %q is not under %s", publicPath, PublicPrefix)
	}
	if filename == "" || filename != filepath.Base(filename) {
		return "", fmt.Errorf("invalid asset path %q", publicPath)
	}
	return filename, nil
}
