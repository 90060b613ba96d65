// Package ioutils provides file system utilities for albumpdf.
//
// This package contains functions for:
//   - Atomic file publishing (temp file + rename)
//   - Directory creation
//
// Readers never observe a partially written file: content goes to a hidden
// temp file in the destination directory and is renamed into place only
// after it was written and synced completely.
package ioutils

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// TempSuffix marks in-progress files. Directory scans must skip them.
const TempSuffix = ".part"

// WriteAtomic creates path by streaming into a temp file in the same
// directory and renaming it into place once write returns nil.
//
// If write fails, the context is cancelled, or any file operation fails, the
// temp file is removed and path is left untouched.
//
// Example:
//
//	err := WriteAtomic(ctx, "/data/img/12345/3.jpg", func(w io.Writer) error {
//	    _, err := io.Copy(w, resp.Body)
//	    return err
//	})
func WriteAtomic(ctx context.Context, path string, write func(w io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	if err := EnsureDir(dir); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*"+TempSuffix)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if err = write(tmp); err != nil {
		return err
	}
	if err = ctx.Err(); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", tmpPath, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpPath, err)
	}
	if err = os.Chmod(tmpPath, 0644); err != nil {
		return err
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("publish %s: %w", path, err)
	}
	return nil
}

// WriteFileAtomic writes data to path atomically.
//
// Example:
//
//	err := WriteFileAtomic(ctx, "/data/img/12345.pdf", pdfBytes)
func WriteFileAtomic(ctx context.Context, path string, data []byte) error {
	return WriteAtomic(ctx, path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// IsTempFile reports whether name belongs to an unfinished atomic write.
func IsTempFile(name string) bool {
	return strings.HasSuffix(name, TempSuffix)
}

// FileExists reports whether path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// EnsureDir creates a directory and all parent directories if they don't exist.
//
// Directories are created with mode 0755 (rwxr-xr-x).
// If the directory already exists, no error is returned.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}
