package filestore

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/quantumqp/portal/core/post"
)

// DiskStore writes uploads into one flat directory served as static files.
type DiskStore struct {
	dir string
	now func() time.Time
}

var _ post.FileStore = (*DiskStore)(nil)

func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating uploads dir")
	}
	return &DiskStore{dir: dir, now: time.Now}, nil
}

// Dir is the directory files are written to.
func (s *DiskStore) Dir() string { return s.dir }

// Save stores r under `{unix millis}-{base name}` and returns that key.
// Existing files are never overwritten.
func (s *DiskStore) Save(filename string, r io.Reader) (string, error) {
	name := cleanName(filename)
	millis := s.now().UnixNano() / int64(time.Millisecond)

	key := fmt.Sprintf("%d-%s", millis, name)
	var (
		f   *os.File
		err error
	)
	for i := 1; ; i++ {
		f, err = os.OpenFile(filepath.Join(s.dir, key), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			break
		}
		if !os.IsExist(err) || i > 100 {
			return "", errors.Wrap(err, "creating upload file")
		}
		key = fmt.Sprintf("%d-%d-%s", millis, i, name)
	}

	if _, err = io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", errors.Wrap(err, "writing upload file")
	}
	if err = f.Close(); err != nil {
		return "", errors.Wrap(err, "closing upload file")
	}
	return key, nil
}

// Path returns the location of key on disk.
func (s *DiskStore) Path(key string) string {
	return filepath.Join(s.dir, cleanName(key))
}

func cleanName(filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == "/" || name == ".." {
		return "file"
	}
	return name
}
