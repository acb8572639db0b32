package media

import (
	"math/rand"
	"strings"
	"testing"
	"time"
)

var jan15 = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

func TestCategoryFor(t *testing.T) {
	for cat, exts := range extensions {
		for _, ext := range exts {
			if got := CategoryFor("/data/file" + ext); got != cat {
				t.Errorf("CategoryFor(file%s) = %s, want %s", ext, got, cat)
			}
			if got := CategoryFor("/data/FILE" + strings.ToUpper(ext)); got != cat {
				t.Errorf("CategoryFor(FILE%s) = %s, want %s", strings.ToUpper(ext), got, cat)
			}
		}
	}

	for _, p := range []string{"file.xyz", "noext", ".pdf", "trailing."} {
		if got := CategoryFor(p); got != Data {
			t.Errorf("CategoryFor(%q) = %s, want data", p, got)
		}
	}
}

func TestMediaType(t *testing.T) {
	cases := map[Category]string{
		Books:  "texts",
		Audio:  "audio",
		Video:  "movies",
		Images: "image",
		Data:   "data",
	}
	for cat, want := range cases {
		if got := cat.MediaType(); got != want {
			t.Errorf("%s.MediaType() = %s, want %s", cat, got, want)
		}
	}
}

func TestExtAndStem(t *testing.T) {
	tests := []struct {
		path, ext, stem string
	}{
		{"/a/book.pdf", ".pdf", "book"},
		{"/a/my.book.PDF", ".PDF", "my.book"},
		{"/a/.hidden.mp3", ".mp3", ".hidden"},
		{"/a/.pdf", "", ".pdf"},
		{"/a/noext", "", "noext"},
	}
	for _, tt := range tests {
		if got := Ext(tt.path); got != tt.ext {
			t.Errorf("Ext(%q) = %q, want %q", tt.path, got, tt.ext)
		}
		if got := Stem(tt.path); got != tt.stem {
			t.Errorf("Stem(%q) = %q, want %q", tt.path, got, tt.stem)
		}
	}
}

func TestGenerateIdentifier(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		author string
		want   string
	}{
		{"basic", "/tmp/x/book.pdf", "Jane Doe", "jane-doe-book-20240115"},
		{"accents", "/tmp/Canción del Año.mp3", "José Núñez", "jose-nunez-cancion-del-ano-20240115"},
		{"non-decomposable", "/tmp/straße.txt", "Łukasz Ørsted", "lukasz-orsted-strasse-20240115"},
		{"punctuation", "/tmp/vol.1, part 2!.epub", "A.B.", "a-b--vol-1--part-2-20240115"},
		{"underscore kept", "/tmp/my_file.png", "ann", "ann-my_file-20240115"},
		{"leading hyphen replaced", "/tmp/doc.pdf", "", "xdoc-20240115"},
		{"symbols dropped", "/tmp/¿qué?.pdf", "@bob", "bob-que-20240115"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GenerateIdentifier(tt.path, tt.author, jan15)
			if got != tt.want {
				t.Errorf("GenerateIdentifier(%q, %q) = %q, want %q", tt.path, tt.author, got, tt.want)
			}
		})
	}
}

func TestGenerateIdentifierTruncates(t *testing.T) {
	long := strings.Repeat("a", 150)
	id := GenerateIdentifier("/tmp/"+long+".pdf", "author", jan15)
	if len(id) != 100 {
		t.Fatalf("expected length 100, got %d", len(id))
	}
	if !strings.HasPrefix(id, "author-aaa") {
		t.Errorf("unexpected prefix %q", id[:12])
	}
}

func TestGenerateIdentifierAlwaysValid(t *testing.T) {
	alphabet := []rune("abcXYZ019 .,-_!?¿¡ñÑáéíóúüßæøœłđþ@#$%^&*()[]{}中文ЖЯ\t")
	rng := rand.New(rand.NewSource(42))
	randomString := func(n int) string {
		var b strings.Builder
		for i := 0; i < n; i++ {
			b.WriteRune(alphabet[rng.Intn(len(alphabet))])
		}
		return b.String()
	}

	for i := 0; i < 2000; i++ {
		stem := randomString(rng.Intn(120))
		author := randomString(rng.Intn(40))
		id := GenerateIdentifier("/tmp/"+stem+".pdf", author, jan15)
		if !ValidIdentifier(id) {
			t.Fatalf("invalid identifier %q for stem %q author %q", id, stem, author)
		}
	}
}

func TestValidIdentifier(t *testing.T) {
	valid := []string{"a", "jane-doe-book-20240115", "x_1"}
	invalid := []string{"", "-a", "_a", "A", "a b", "ñ", strings.Repeat("a", 101)}
	for _, id := range valid {
		if !ValidIdentifier(id) {
			t.Errorf("ValidIdentifier(%q) = false", id)
		}
	}
	for _, id := range invalid {
		if ValidIdentifier(id) {
			t.Errorf("ValidIdentifier(%q) = true", id)
		}
	}
}

func TestGenerateMetadata(t *testing.T) {
	md := GenerateMetadata("/data/my_first_book.pdf", Books, Options{
		Author:     "Jane Doe",
		Collection: "opensource",
		Now:        jan15,
	})

	if md.Title != "My First Book" {
		t.Errorf("Title = %q", md.Title)
	}
	if md.Creator != "Jane Doe" {
		t.Errorf("Creator = %q", md.Creator)
	}
	if md.MediaType != "texts" {
		t.Errorf("MediaType = %q", md.MediaType)
	}
	if md.Language != "es" {
		t.Errorf("Language = %q", md.Language)
	}
	if md.LicenseURL != "https://creativecommons.org/licenses/by-sa/4.0/" {
		t.Errorf("LicenseURL = %q", md.LicenseURL)
	}
	if md.Date != "2024-01-15" {
		t.Errorf("Date = %q", md.Date)
	}
	if md.Description != "Material de Jane Doe: My First Book" {
		t.Errorf("Description = %q", md.Description)
	}
	want := []string{"Jane Doe", "books", "opensource"}
	if strings.Join(md.Subject, "|") != strings.Join(want, "|") {
		t.Errorf("Subject = %v, want %v", md.Subject, want)
	}
}

func TestTitle(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/data/mi_libro.pdf", "Mi Libro"},
		{"/data/el_QUIJOTE.epub", "El Quijote"},
		{"/data/ÑANDÚ_rojo.mp3", "Ñandú Rojo"},
		// Apostrophes stay inside the word, unlike naive per-letter casing.
		{"/data/o'neil.pdf", "O'neil"},
		{"/data/dont_panic.txt", "Dont Panic"},
	}
	for _, tt := range tests {
		if got := Title(tt.path); got != tt.want {
			t.Errorf("Title(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestGenerateMetadataOverrides(t *testing.T) {
	md := GenerateMetadata("/data/song.mp3", Audio, Options{
		Author:     "Ana",
		Collection: "community_audio",
		Language:   "en",
		LicenseURL: "https://example.org/license",
		Now:        jan15,
	})
	if md.Collection != "community_audio" || md.Language != "en" || md.LicenseURL != "https://example.org/license" {
		t.Errorf("overrides not applied: %+v", md)
	}
	if md.MediaType != "audio" {
		t.Errorf("MediaType = %q", md.MediaType)
	}
}

func TestHeaders(t *testing.T) {
	md := GenerateMetadata("/data/canción.mp3", Audio, Options{Author: "José", Now: jan15})
	h := md.Headers()

	if h["x-archive-meta-mediatype"] != "audio" {
		t.Errorf("mediatype header = %q", h["x-archive-meta-mediatype"])
	}
	if h["x-archive-meta-date"] != "2024-01-15" {
		t.Errorf("date header = %q", h["x-archive-meta-date"])
	}
	if h["x-archive-meta01-subject"] != "uri(Jos%C3%A9)" {
		t.Errorf("subject01 header = %q", h["x-archive-meta01-subject"])
	}
	if h["x-archive-meta02-subject"] != "audio" {
		t.Errorf("subject02 header = %q", h["x-archive-meta02-subject"])
	}
	if h["x-archive-meta03-subject"] != "opensource" {
		t.Errorf("subject03 header = %q", h["x-archive-meta03-subject"])
	}
	if !strings.HasPrefix(h["x-archive-meta-title"], "uri(") {
		t.Errorf("non-ASCII title should be uri-encoded, got %q", h["x-archive-meta-title"])
	}
}

func TestMap(t *testing.T) {
	md := GenerateMetadata("/data/clip.mp4", Video, Options{Author: "Bob", Now: jan15})
	m := md.Map()
	if m["subject"] != "Bob;video;opensource" {
		t.Errorf("subject = %q", m["subject"])
	}
	if m["title"] != "Clip" {
		t.Errorf("title = %q", m["title"])
	}
}
