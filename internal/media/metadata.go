package media

import (
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/rescale/archive-uploader/internal/constants"
)

// Options carries the per-run inputs to GenerateMetadata.
type Options struct {
	Author     string
	Collection string
	Language   string    // default "es"
	LicenseURL string    // default CC BY-SA 4.0
	Now        time.Time // default time.Now()
}

// Metadata is the descriptive record attached to an uploaded item.
type Metadata struct {
	Title       string   `json:"title"`
	Creator     string   `json:"creator"`
	Collection  string   `json:"collection"`
	MediaType   string   `json:"mediatype"`
	Language    string   `json:"language"`
	LicenseURL  string   `json:"licenseurl"`
	Date        string   `json:"date"`
	Description string   `json:"description"`
	Subject     []string `json:"subject"`
}

// Title derives a display title from path: the stem with underscores as
// spaces, title-cased word by word.
func Title(path string) string {
	// Casers are stateful; one per call keeps this safe across workers.
	return cases.Title(language.Und).String(strings.ReplaceAll(Stem(path), "_", " "))
}

// GenerateMetadata builds the metadata record for path. It never fails.
func GenerateMetadata(path string, category Category, opts Options) Metadata {
	if opts.Collection == "" {
		opts.Collection = constants.DefaultCollection
	}
	if opts.Language == "" {
		opts.Language = constants.DefaultLanguage
	}
	if opts.LicenseURL == "" {
		opts.LicenseURL = constants.DefaultLicenseURL
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	title := Title(path)
	return Metadata{
		Title:       title,
		Creator:     opts.Author,
		Collection:  opts.Collection,
		MediaType:   category.MediaType(),
		Language:    opts.Language,
		LicenseURL:  opts.LicenseURL,
		Date:        opts.Now.Format("2006-01-02"),
		Description: fmt.Sprintf("Material de %s: %s", opts.Author, title),
		Subject:     []string{opts.Author, string(category), "opensource"},
	}
}

// Fields returns the single-valued fields in a fixed order.
func (m Metadata) Fields() [][2]string {
	return [][2]string{
		{"title", m.Title},
		{"creator", m.Creator},
		{"collection", m.Collection},
		{"mediatype", m.MediaType},
		{"language", m.Language},
		{"licenseurl", m.LicenseURL},
		{"date", m.Date},
		{"description", m.Description},
	}
}

// Headers flattens the record into x-archive-meta-* request headers.
// Repeated values are numbered: x-archive-meta01-subject, x-archive-meta02-subject.
// Non-ASCII values are wrapped as uri(<percent-encoded>).
func (m Metadata) Headers() map[string]string {
	h := make(map[string]string, 8+len(m.Subject))
	for _, f := range m.Fields() {
		if f[1] == "" {
			continue
		}
		h["x-archive-meta-"+f[0]] = headerValue(f[1])
	}
	for i, s := range m.Subject {
		h[fmt.Sprintf("x-archive-meta%02d-subject", i+1)] = headerValue(s)
	}
	return h
}

// Map flattens the record into object metadata for blob stores.
// Subjects are joined with ";" and values are header-safe.
func (m Metadata) Map() map[string]string {
	out := make(map[string]string, 9)
	for _, f := range m.Fields() {
		if f[1] != "" {
			out[f[0]] = headerValue(f[1])
		}
	}
	if len(m.Subject) > 0 {
		out["subject"] = headerValue(strings.Join(m.Subject, ";"))
	}
	return out
}

func headerValue(v string) string {
	for i := 0; i < len(v); i++ {
		if v[i] >= utf8.RuneSelf || v[i] < 0x20 {
			return "uri(" + url.PathEscape(v) + ")"
		}
	}
	return v
}
