package media

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/rescale/archive-uploader/internal/constants"
)

// Letters with no canonical decomposition to ASCII.
var transliterations = strings.NewReplacer(
	"ß", "ss",
	"æ", "ae",
	"ø", "o",
	"œ", "oe",
	"ł", "l",
	"đ", "d",
	"ð", "d",
	"þ", "th",
	"ı", "i",
)

// GenerateIdentifier derives the remote identifier for path:
// "{author}-{stem}-{yyyymmdd}", restricted to [a-z0-9-_], at most 100
// characters and starting with an alphanumeric character.
//
// Two files with the same stem uploaded by the same author on the same day
// get the same identifier.
func GenerateIdentifier(path, author string, now time.Time) string {
	id := slug(author) + "-" + slug(Stem(path)) + "-" + now.Format("20060102")

	if len(id) > constants.IdentifierMaxLength {
		id = id[:constants.IdentifierMaxLength]
	}
	if !isAlnum(id[0]) {
		id = string(constants.IdentifierFiller) + id[1:]
	}
	return id
}

// ValidIdentifier reports whether id satisfies the identifier rules.
func ValidIdentifier(id string) bool {
	if id == "" || len(id) > constants.IdentifierMaxLength || !isAlnum(id[0]) {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if !isAlnum(c) && c != '-' && c != '_' {
			return false
		}
	}
	return true
}

func slug(s string) string {
	s = transliterations.Replace(strings.ToLower(s))

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == ' ' || r == '.' || r == ',':
			b.WriteByte('-')
		case r < unicode.MaxASCII && (isAlnum(byte(r)) || r == '-' || r == '_'):
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isAlnum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}
