// Package imagecache is the local directory of cached submission images
// served by the leaderboard and fed to the card renderer.
package imagecache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/segmentio/ksuid"
)

var ErrBadName = errors.New("invalid cache file name")

type Dir struct {
	root string
}

func New(root string) (*Dir, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create image dir: %w", err)
	}
	return &Dir{root: root}, nil
}

func NewName() string {
	return "cached_" + ksuid.New().String() + ".jpg"
}

func (d *Dir) Path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", ErrBadName
	}
	return filepath.Join(d.root, name), nil
}

// Write stores data atomically under name.
func (d *Dir) Write(name string, data []byte) error {
	path, err := d.Path(name)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(d.root, ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (d *Dir) Read(name string) ([]byte, error) {
	path, err := d.Path(name)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

func (d *Dir) Exists(name string) bool {
	path, err := d.Path(name)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Remove deletes name. A missing file is not an error.
func (d *Dir) Remove(name string) error {
	path, err := d.Path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Scratch writes data to a uniquely named temporary file and returns its
// path. The caller removes it.
func (d *Dir) Scratch(prefix string, data []byte) (string, error) {
	f, err := os.CreateTemp(d.root, prefix+"_*.jpg")
	if err != nil {
		return "", err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
