package ltp

import (
	"archive/zip"
	_ "crypto/sha512"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/opencontainers/go-digest"

	"ltpexport/internal/dirlock"
	"ltpexport/internal/staging"
)

// Archive is a packaged export unit.
type Archive struct {
	Directory string
	Path      string
	Name      string
	Digest    digest.Digest
}

// Package zips <base>/<directory> into <base>/<directory>.zip. The lock marker
// at the unit root is never archived. With includeRoot, entries are stored
// under a top-level "<directory>/" entry; otherwise paths are relative to the
// unit root.
func Package(base, directory string, includeRoot bool) (archivePath string, err error) {
	root := filepath.Join(base, directory)
	info, err := os.Stat(root)
	if err != nil {
		return "", fmt.Errorf("stat unit directory: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("unit %s is not a directory", root)
	}

	archivePath = staging.NewStore(base).ArchivePath(directory)
	file, err := os.OpenFile(archivePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", fmt.Errorf("create archive: %w", err)
	}
	zw := zip.NewWriter(file)
	defer func() {
		err = errors.Join(err, zw.Close(), file.Close())
		if err != nil {
			_ = os.Remove(archivePath)
			archivePath = ""
		}
	}()

	prefix := ""
	if includeRoot {
		prefix = directory + "/"
		if _, err := zw.CreateHeader(&zip.FileHeader{Name: prefix, Method: zip.Store, Modified: info.ModTime()}); err != nil {
			return archivePath, fmt.Errorf("add root entry: %w", err)
		}
	}

	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == dirlock.MarkerName {
			return nil
		}
		return addFile(zw, p, path.Join(strings.TrimSuffix(prefix, "/"), rel))
	})
	if err != nil {
		return archivePath, fmt.Errorf("package %s: %w", directory, err)
	}
	return archivePath, nil
}

func addFile(zw *zip.Writer, src, name string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return err
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = name
	header.Method = zip.Deflate
	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, in)
	return err
}
