package store

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

const uploadsPrefix = "/uploads/"

// LocalMedia deletes uploaded files from a directory on disk. URLs are
// expected to contain /uploads/<file>, absolute or relative.
type LocalMedia struct {
	Dir string
}

var _ MediaStore = (*LocalMedia)(nil)

var ErrForeignMedia = errors.New("media url does not reference an upload")

func NewLocalMedia(dir string) *LocalMedia {
	return &LocalMedia{Dir: dir}
}

// Delete removes the file behind rawURL. A file that is already gone is
// not an error.
func (m *LocalMedia) Delete(_ context.Context, rawURL string) error {
	name, err := uploadName(rawURL)
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(m.Dir, name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete media %s: %w", name, err)
	}
	return nil
}

func uploadName(rawURL string) (string, error) {
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		path = u.Path
	}
	i := strings.LastIndex(path, uploadsPrefix)
	if i < 0 {
		return "", ErrForeignMedia
	}
	name := filepath.Base(path[i+len(uploadsPrefix):])
	if name == "." || name == "/" || name == ".." || name == "" {
		return "", ErrForeignMedia
	}
	return name, nil
}
