// Package scan finds upload candidates under a directory tree.
package scan

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"

	"github.com/rescale/archive-uploader/internal/constants"
	"github.com/rescale/archive-uploader/internal/media"
)

// ErrNotFound is returned when the scan root does not exist.
// It also matches os.ErrNotExist.
var ErrNotFound = fmt.Errorf("directory not found: %w", os.ErrNotExist)

// ErrNotDirectory is returned when the scan root is not a directory.
var ErrNotDirectory = errors.New("not a directory")

// Candidate is a file eligible for upload.
type Candidate struct {
	Path     string
	Name     string
	Ext      string
	Size     int64
	Category media.Category
}

// Options configures a scan.
type Options struct {
	// ExcludeDir is the path element that removes a file from the scan
	// wherever it appears below the root. Default: "Uploaded".
	ExcludeDir string

	// Logger receives debug lines for skipped subtrees. Optional.
	Logger *zerolog.Logger
}

// Scan walks root and returns every regular file with a recognized
// extension, sorted by path. Files below a directory named
// opts.ExcludeDir are never returned. Unreadable subtrees are skipped.
func Scan(root string, opts Options) ([]Candidate, error) {
	if opts.ExcludeDir == "" {
		opts.ExcludeDir = constants.ProcessedDirName
	}
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}

	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, root)
		}
		return nil, fmt.Errorf("failed to stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, root)
	}

	var candidates []Candidate
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			log.Debug().Err(walkErr).Str("path", path).Msg("skipping unreadable path")
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path != root && d.Name() == opts.ExcludeDir {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !media.IsSupported(path) {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			log.Debug().Err(err).Str("path", path).Msg("skipping file without info")
			return nil
		}

		candidates = append(candidates, Candidate{
			Path:     path,
			Name:     d.Name(),
			Ext:      media.Ext(path),
			Size:     fi.Size(),
			Category: media.CategoryFor(path),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Path < candidates[j].Path
	})
	return candidates, nil
}

// Paths returns the candidate paths in order.
func Paths(candidates []Candidate) []string {
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.Path
	}
	return out
}
