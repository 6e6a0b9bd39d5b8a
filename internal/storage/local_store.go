package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
)

// LocalStore keeps objects as files in a single directory.
type LocalStore struct {
	dir string
}

func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{dir: dir}, nil
}

func (s *LocalStore) path(name string) (string, error) {
	if !ValidName(name) {
		return "", fmt.Errorf("invalid object name %q", name)
	}
	return filepath.Join(s.dir, name), nil
}

func (s *LocalStore) Put(_ context.Context, name string, r io.Reader, _ int64, _ string) error {
	p, err := s.path(name)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}

func (s *LocalStore) Open(_ context.Context, name string) (io.ReadCloser, Object, error) {
	p, err := s.path(name)
	if err != nil {
		return nil, Object{}, ErrNotExist
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, Object{}, ErrNotExist
		}
		return nil, Object{}, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, Object{}, err
	}
	return f, objectFromInfo(info), nil
}

func (s *LocalStore) Exists(_ context.Context, name string) (bool, error) {
	p, err := s.path(name)
	if err != nil {
		return false, nil
	}
	if _, err := os.Stat(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *LocalStore) Delete(_ context.Context, name string) error {
	p, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *LocalStore) List(_ context.Context) ([]Object, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	objects := make([]Object, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !ValidName(entry.Name()) || entry.Name()[0] == '.' {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}
		objects = append(objects, objectFromInfo(info))
	}
	return objects, nil
}

func objectFromInfo(info fs.FileInfo) Object {
	return Object{
		Name:        info.Name(),
		Size:        info.Size(),
		ContentType: mime.TypeByExtension(filepath.Ext(info.Name())),
		ModTime:     info.ModTime(),
	}
}
