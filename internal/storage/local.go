package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound      = errors.New("file not found")
	ErrInvalidPublic = errors.New("invalid public id")
)

// FileStore defines the interface for uploaded file storage.
type FileStore interface {
	Put(ctx context.Context, folder, filename string, data []byte) (*StoredFile, error)
	Delete(ctx context.Context, publicID string) error
	// List returns up to limit files under folder, newest first.
	List(ctx context.Context, folder string, limit int) ([]StoredFile, error)
	ThumbnailURL(publicID string, width, height int) (string, error)
}

// StoredFile represents metadata about a stored upload.
type StoredFile struct {
	PublicID   string    `json:"public_id"`
	URL        string    `json:"url"`
	Format     string    `json:"format"`
	Bytes      int64     `json:"bytes"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// LocalStore keeps uploads on the local disk under root and serves them from baseURL.
type LocalStore struct {
	root    string
	baseURL string
}

// NewLocalStore creates the root directory if needed.
func NewLocalStore(root, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &LocalStore{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Root returns the directory uploads are written to.
func (s *LocalStore) Root() string {
	return s.root
}

// Put writes data under folder with a generated name and returns its public id.
func (s *LocalStore) Put(ctx context.Context, folder, filename string, data []byte) (*StoredFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	name := uuid.NewString()
	if ext != "" {
		name += "." + ext
	}
	publicID := path.Join(cleanFolder(folder), name)

	full, err := s.resolve(publicID)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload folder: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write upload: %w", err)
	}

	return &StoredFile{
		PublicID:   publicID,
		URL:        s.baseURL + "/" + publicID,
		Format:     ext,
		Bytes:      int64(len(data)),
		UploadedAt: time.Now().UTC(),
	}, nil
}

// Delete removes the file behind publicID.
func (s *LocalStore) Delete(ctx context.Context, publicID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := s.resolve(publicID)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete upload: %w", err)
	}
	return nil
}

func (s *LocalStore) List(ctx context.Context, folder string, limit int) ([]StoredFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	folder = cleanFolder(folder)
	dir, err := s.resolve(folder)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return []StoredFile{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read upload folder: %w", err)
	}

	files := make([]StoredFile, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to stat upload: %w", err)
		}
		publicID := folder + "/" + entry.Name()
		files = append(files, StoredFile{
			PublicID:   publicID,
			URL:        s.baseURL + "/" + publicID,
			Format:     strings.ToLower(strings.TrimPrefix(filepath.Ext(entry.Name()), ".")),
			Bytes:      info.Size(),
			UploadedAt: info.ModTime().UTC(),
		})
	}
	sort.SliceStable(files, func(i, j int) bool {
		return files[i].UploadedAt.After(files[j].UploadedAt)
	})
	if limit > 0 && len(files) > limit {
		files = files[:limit]
	}
	return files, nil
}

// ThumbnailURL returns the file URL with the requested size as query
// parameters. The local store serves the original; a resizing proxy or CDN
// in front of it can honour them.
func (s *LocalStore) ThumbnailURL(publicID string, width, height int) (string, error) {
	full, err := s.resolve(publicID)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(full); err != nil {
		return "", ErrNotFound
	}
	q := url.Values{}
	q.Set("w", fmt.Sprint(width))
	q.Set("h", fmt.Sprint(height))
	return s.baseURL + "/" + publicID + "?" + q.Encode(), nil
}

// resolve maps a public id to a path inside root, rejecting traversal.
func (s *LocalStore) resolve(publicID string) (string, error) {
	clean := path.Clean("/" + publicID)
	if publicID == "" || clean == "/" || strings.Contains(publicID, "..") {
		return "", ErrInvalidPublic
	}
	return filepath.Join(s.root, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}

func cleanFolder(folder string) string {
	folder = strings.Trim(path.Clean("/"+folder), "/")
	if folder == "" || folder == "." {
		return "uploads"
	}
	return folder
}
