// Package storage validates media uploads and stores them on local disk or S3.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Storage is what the media handler writes through. It returns the public
// URL of the stored object.
type Storage interface {
	Upload(ctx context.Context, r io.Reader, filename, contentType string) (string, error)
}

// objectName replaces the client filename with a uuid, keeping the extension.
func objectName(filename string) string {
	return uuid.NewString() + strings.ToLower(filepath.Ext(filename))
}

type LocalStorage struct {
	UploadDir string
	BaseURL   string
}

func NewLocalStorage(uploadDir, baseURL string) (*LocalStorage, error) {
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir %s: %w", uploadDir, err)
	}
	return &LocalStorage{UploadDir: uploadDir, BaseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *LocalStorage) Upload(ctx context.Context, r io.Reader, filename, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := objectName(filename)
	path := filepath.Join(s.UploadDir, name)

	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, r); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	log.Debugf("LocalStorage.Upload: stored %s as %s (%s)", filename, name, contentType)
	return fmt.Sprintf("%s/uploads/%s", s.BaseURL, name), nil
}

// Path resolves a URL produced by Upload back to the file on disk, so the
// exporter can read local media without a network round trip.
func (s *LocalStorage) Path(url string) (string, bool) {
	prefix := s.BaseURL + "/uploads/"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	name := filepath.Base(strings.TrimPrefix(url, prefix))
	return filepath.Join(s.UploadDir, name), true
}
