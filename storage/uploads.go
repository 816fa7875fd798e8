// Package storage keeps uploaded images on the local filesystem.
package storage

import (
	"context"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/morf1ng/105site/dao/model"

	"golang.org/x/net/webdav"
)

// Uploads stores files below a root directory. Stored names are relative to
// the root with forward slashes, e.g. "stages/plan.png".
type Uploads struct {
	root string
	fs   webdav.FileSystem
}

// NewUploads creates the root and its stages/results subdirectories.
func NewUploads(root string) (*Uploads, error) {
	if err := os.MkdirAll(root, model.DefaultFolderPerm); err != nil {
		return nil, err
	}
	u := &Uploads{root: root, fs: webdav.Dir(root)}
	for _, dir := range []string{model.StagesDir, model.ResultsDir} {
		if err := u.mkdir(context.Background(), dir); err != nil {
			return nil, err
		}
	}
	return u, nil
}

// Root returns the directory the uploads live in.
func (u *Uploads) Root() string { return u.root }

func (u *Uploads) mkdir(ctx context.Context, dir string) error {
	err := u.fs.Mkdir(ctx, dir, model.DefaultFolderPerm)
	if err != nil && !os.IsExist(err) {
		return err
	}
	return nil
}

// Save copies an uploaded file into dir ("" for the root) under the base of
// its client file name. A nil header or a blank name stores nothing and
// returns "". An existing file with the same name is overwritten.
func (u *Uploads) Save(ctx context.Context, fh *multipart.FileHeader, dir string) (string, error) {
	if fh == nil {
		return "", nil
	}
	name := cleanName(fh.Filename)
	if name == "" {
		return "", nil
	}
	if dir != "" {
		if err := u.mkdir(ctx, dir); err != nil {
			return "", err
		}
	}
	rel := path.Join(dir, name)

	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	dst, err := u.fs.OpenFile(ctx, rel, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", err
	}
	if err := dst.Close(); err != nil {
		return "", err
	}
	return rel, nil
}

// Remove deletes a stored file. Missing files are ignored.
func (u *Uploads) Remove(ctx context.Context, rel string) error {
	err := u.fs.RemoveAll(ctx, rel)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// StoredFile describes one file below the uploads root.
type StoredFile struct {
	Path    string
	ModTime int64
}

// List returns the files in the root and in its first level of
// subdirectories, which is everything Save can produce.
func (u *Uploads) List(ctx context.Context) ([]StoredFile, error) {
	var files []StoredFile
	var walk func(dir string, depth int) error
	walk = func(dir string, depth int) error {
		f, err := u.fs.OpenFile(ctx, dir, os.O_RDONLY, 0)
		if err != nil {
			return err
		}
		entries, err := f.Readdir(-1)
		f.Close()
		if err != nil {
			return err
		}
		for _, e := range entries {
			rel := path.Join(dir, e.Name())
			if e.IsDir() {
				if depth == 0 {
					if err := walk(rel, depth+1); err != nil {
						return err
					}
				}
				continue
			}
			files = append(files, StoredFile{Path: strings.TrimPrefix(rel, "/"), ModTime: e.ModTime().Unix()})
		}
		return nil
	}
	if err := walk("/", 0); err != nil {
		return nil, err
	}
	return files, nil
}

// cleanName strips any directory part a client put into a file name.
func cleanName(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	if name == "" {
		return ""
	}
	name = filepath.Base(path.Clean("/" + name))
	if name == "/" || name == "." || name == ".." {
		return ""
	}
	return name
}
