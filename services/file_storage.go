package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime/multipart"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"form-consent/models"
)

// FileStorage writes uploaded files below Dir and records their metadata.
type FileStorage struct {
	Dir   string
	Files FileStore
}

func NewFileStorage(dir string, files FileStore) *FileStorage {
	return &FileStorage{Dir: dir, Files: files}
}

// Save copies an uploaded file to disk under a random name.
func (s *FileStorage) Save(ctx context.Context, fh *multipart.FileHeader) (*models.StoredFile, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir uploads dir: %w", err)
	}

	filename := uuid.NewString() + filepath.Ext(fh.Filename)
	fullpath := filepath.Join(s.Dir, filename)

	dst, err := os.OpenFile(fullpath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o640)
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}
	size, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(fullpath)
		return nil, fmt.Errorf("write file: %w", err)
	}

	f := &models.StoredFile{
		Name:     filepath.Base(fh.Filename),
		Path:     filepath.ToSlash(filename),
		MimeType: fh.Header.Get("Content-Type"),
		Size:     size,
	}
	if err := s.Files.Create(ctx, f); err != nil {
		os.Remove(fullpath)
		return nil, fmt.Errorf("record file: %w", err)
	}
	return f, nil
}

func (s *FileStorage) path(f *models.StoredFile) string {
	return filepath.Join(s.Dir, filepath.FromSlash(f.Path))
}

// Open returns the content of a stored file.
func (s *FileStorage) Open(f *models.StoredFile) (*os.File, error) {
	file, err := os.Open(s.path(f))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrFileNotFound
	}
	return file, err
}

// Remove deletes a stored file from disk together with its metadata.
// Files that are already gone are not an error.
func (s *FileStorage) Remove(ctx context.Context, f *models.StoredFile) error {
	if err := os.Remove(s.path(f)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove file: %w", err)
	}
	if err := s.Files.Delete(ctx, f.ID); err != nil && !errors.Is(err, ErrFileNotFound) {
		return fmt.Errorf("forget file: %w", err)
	}
	return nil
}

// RemoveByID is Remove for a file known only by id.
func (s *FileStorage) RemoveByID(ctx context.Context, id uint) error {
	f, err := s.Files.FindByID(ctx, id)
	if errors.Is(err, ErrFileNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.Remove(ctx, f)
}
