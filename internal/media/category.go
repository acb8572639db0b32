// Package media classifies files and derives the remote identifier and
// metadata record for each upload.
package media

import (
	"path/filepath"
	"sort"
	"strings"
)

// Category is the local media category of a file.
type Category string

const (
	Books  Category = "books"
	Audio  Category = "audio"
	Video  Category = "video"
	Images Category = "images"
	Data   Category = "data" // fallback for unrecognized extensions
)

// Categories lists the recognized categories in display order.
var Categories = []Category{Books, Audio, Video, Images}

var extensions = map[Category][]string{
	Books:  {".pdf", ".epub", ".mobi", ".txt", ".doc", ".docx"},
	Audio:  {".mp3", ".wav", ".flac", ".m4a", ".ogg"},
	Video:  {".mp4", ".avi", ".mkv", ".mov", ".webm"},
	Images: {".jpg", ".jpeg", ".png", ".gif", ".tiff"},
}

var byExtension = func() map[string]Category {
	m := make(map[string]Category)
	for cat, exts := range extensions {
		for _, ext := range exts {
			m[ext] = cat
		}
	}
	return m
}()

// MediaType returns the remote media type for the category.
func (c Category) MediaType() string {
	switch c {
	case Books:
		return "texts"
	case Audio:
		return "audio"
	case Video:
		return "movies"
	case Images:
		return "image"
	default:
		return "data"
	}
}

// CategoryFor returns the category for path's extension (case-insensitive),
// or Data when the extension is not recognized.
func CategoryFor(path string) Category {
	if cat, ok := byExtension[strings.ToLower(Ext(path))]; ok {
		return cat
	}
	return Data
}

// IsSupported reports whether path has a recognized extension.
func IsSupported(path string) bool {
	_, ok := byExtension[strings.ToLower(Ext(path))]
	return ok
}

// Extensions returns the extensions recognized for a category, sorted.
func Extensions(c Category) []string {
	out := append([]string(nil), extensions[c]...)
	sort.Strings(out)
	return out
}

// Ext returns the final extension of path's base name including the dot.
// A leading dot marks a hidden file, not an extension: Ext(".pdf") is "".
func Ext(path string) string {
	name := filepath.Base(path)
	i := strings.LastIndex(name, ".")
	if i <= 0 || i == len(name)-1 {
		return ""
	}
	return name[i:]
}

// Stem returns path's base name without its extension.
func Stem(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, Ext(name))
}
