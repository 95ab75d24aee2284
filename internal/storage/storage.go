package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/spf13/afero"
)

// AferoStore implements Store on top of an afero filesystem. Backed by the OS
// filesystem in production and by an in-memory filesystem in tests.
type AferoStore struct {
	fs afero.Fs
}

// NewAferoStore creates a new AferoStore.
func NewAferoStore(fs afero.Fs) *AferoStore {
	return &AferoStore{fs: fs}
}

// Save writes the content of the reader to the given path.
func (s *AferoStore) Save(ctx context.Context, path string, reader io.Reader) (int64, error) {
	if err := s.fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, err
	}
	f, err := s.fs.Create(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return io.Copy(f, reader)
}

// Delete removes a file from the filesystem.
func (s *AferoStore) Delete(ctx context.Context, path string) error {
	return s.fs.Remove(path)
}

// Get opens a file for reading.
func (s *AferoStore) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	return s.fs.OpenFile(path, os.O_RDONLY, 0)
}

// ImageService turns uploaded image bytes into a stable public URL that can
// be written onto a profile's image field or a link's icon field.
type ImageService struct {
	store   Store
	baseURL string
}

// NewImageService creates an ImageService serving uploads under
// baseURL + "/uploads/".
func NewImageService(store Store, baseURL string) *ImageService {
	return &ImageService{store: store, baseURL: baseURL}
}

// Upload stores the image under the given relative path and returns its
// public URL.
func (s *ImageService) Upload(ctx context.Context, relPath string, reader io.Reader) (string, error) {
	if _, err := s.store.Save(ctx, relPath, reader); err != nil {
		return "", fmt.Errorf("failed to store image: %w", err)
	}

	base, err := url.Parse(s.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	base.Path = path.Join(base.Path, "uploads", relPath)
	return base.String(), nil
}

// Open serves a previously uploaded image by its relative path.
func (s *ImageService) Open(ctx context.Context, relPath string) (io.ReadCloser, error) {
	return s.store.Get(ctx, relPath)
}
