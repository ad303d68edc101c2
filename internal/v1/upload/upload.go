// Package upload implements the filesystem upload sink: multipart form
// fields are sorted into per-kind directories under a content-addressed
// filename.
package upload

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
)

// fieldDirs maps an accepted multipart field name to its subdirectory.
var fieldDirs = map[string]string{
	"pp":    "profile_pictures",
	"img":   "images",
	"video": "videos",
	"file":  "files",
}

var ErrUnknownField = errors.New("upload: unknown form field")

// SavedFile describes one stored upload, returned to the client.
type SavedFile struct {
	Filename      string `json:"filename"`
	SavedFilename string `json:"saved_filename"`
	Type          string `json:"type"`
}

// Sink stores uploaded files under a root directory.
type Sink struct {
	root string
}

// NewSink builds a Sink rooted at dir, creating it if absent.
func NewSink(dir string) (*Sink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload root: %w", err)
	}
	return &Sink{root: dir}, nil
}

// Save stores every file attached under the given field name, returning
// one SavedFile per stored file. Unknown fields are rejected wholesale.
func (s *Sink) Save(field string, files []*multipart.FileHeader) ([]SavedFile, error) {
	dir, ok := fieldDirs[field]
	if !ok {
		return nil, ErrUnknownField
	}

	targetDir := filepath.Join(s.root, dir)
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	saved := make([]SavedFile, 0, len(files))
	for _, fh := range files {
		savedName, err := s.saveOne(targetDir, fh)
		if err != nil {
			return nil, err
		}
		saved = append(saved, SavedFile{
			Filename:      fh.Filename,
			SavedFilename: savedName,
			Type:          field,
		})
	}
	return saved, nil
}

func (s *Sink) saveOne(dir string, fh *multipart.FileHeader) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	suffix, err := randomSuffix(10)
	if err != nil {
		return "", err
	}

	digest := sha256.Sum256([]byte(fh.Filename + suffix))
	savedName := hex.EncodeToString(digest[:]) + filepath.Ext(fh.Filename)
	destPath := filepath.Join(dir, savedName)

	dst, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create destination file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("failed to write upload: %w", err)
	}

	return savedName, nil
}

const suffixAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

func randomSuffix(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random suffix: %w", err)
	}
	out := make([]byte, length)
	for i, b := range buf {
		out[i] = suffixAlphabet[int(b)%len(suffixAlphabet)]
	}
	return string(out), nil
}
