// Package fsx moves uploaded files into their processed folder.
package fsx

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rescale/archive-uploader/internal/constants"
)

// Replaceable so tests can simulate EXDEV.
var renameFunc = os.Rename

// maxCollisionSuffix bounds the counter appended after the timestamp suffix.
const maxCollisionSuffix = 1000

// CrossDeviceError marks a rename that failed because source and
// destination are on different filesystems.
type CrossDeviceError struct {
	Src string
	Dst string
	Err error
}

func (e *CrossDeviceError) Error() string {
	return fmt.Sprintf("cross-device rename %q -> %q: %v", e.Src, e.Dst, e.Err)
}

func (e *CrossDeviceError) Unwrap() error { return e.Err }

// IsCrossDevice reports whether err is a CrossDeviceError.
func IsCrossDevice(err error) bool {
	var e *CrossDeviceError
	return errors.As(err, &e)
}

// Rename wraps os.Rename and marks EXDEV failures as CrossDeviceError.
func Rename(src, dst string) error {
	if err := renameFunc(src, dst); err != nil {
		if isEXDEV(err) {
			return &CrossDeviceError{Src: src, Dst: dst, Err: err}
		}
		return err
	}
	return nil
}

// Relocator moves files into a sibling processed directory without ever
// overwriting an existing file. It is safe for concurrent use.
type Relocator struct {
	// DirName is the processed directory created next to each file.
	// Default: "Uploaded"
	DirName string

	// Now stamps collision suffixes. Default: time.Now
	Now func() time.Time

	mu sync.Mutex
}

// NewRelocator returns a Relocator using dirName (or the default).
func NewRelocator(dirName string) *Relocator {
	return &Relocator{DirName: dirName}
}

// Move relocates src to <dir(src)>/<DirName>/<base(src)> and returns the
// destination. If that name is taken, "_YYYYmmdd_HHMMSS" is inserted before
// the extension, followed by "_N" if the stamped name is taken as well.
// Across filesystems the file is copied and the source removed.
func (r *Relocator) Move(src string) (string, error) {
	dirName := r.DirName
	if dirName == "" {
		dirName = constants.ProcessedDirName
	}
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}

	destDir := filepath.Join(filepath.Dir(src), dirName)
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", destDir, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	dst, err := freeName(destDir, filepath.Base(src), now())
	if err != nil {
		return "", err
	}

	err = Rename(src, dst)
	if err == nil {
		return dst, nil
	}
	if !IsCrossDevice(err) {
		return "", fmt.Errorf("failed to move %s to %s: %w", src, dst, err)
	}

	if info, err := os.Stat(src); err == nil {
		if err := checkSpace(destDir, info.Size()); err != nil {
			return "", err
		}
	}
	if err := copyFile(src, dst); err != nil {
		return "", fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	if err := os.Remove(src); err != nil {
		return dst, fmt.Errorf("copied to %s but failed to remove source: %w", dst, err)
	}
	return dst, nil
}

// freeName picks a destination in dir that does not exist yet.
func freeName(dir, name string, now time.Time) (string, error) {
	dst := filepath.Join(dir, name)
	if !exists(dst) {
		return dst, nil
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	stamped := stem + "_" + now.Format("20060102_150405")

	dst = filepath.Join(dir, stamped+ext)
	if !exists(dst) {
		return dst, nil
	}
	for i := 1; i <= maxCollisionSuffix; i++ {
		dst = filepath.Join(dir, fmt.Sprintf("%s_%d%s", stamped, i, ext))
		if !exists(dst) {
			return dst, nil
		}
	}
	return "", fmt.Errorf("no free name for %s in %s", name, dir)
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil || !errors.Is(err, os.ErrNotExist)
}

// copyFile copies src to dst through a temp file in dst's directory,
// keeping the mode and modification time.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := io.Copy(tmp, in); err != nil {
		return err
	}
	if err := tmp.Chmod(info.Mode().Perm()); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return err
	}
	_ = os.Chtimes(dst, info.ModTime(), info.ModTime())

	success = true
	return nil
}
