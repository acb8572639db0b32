package scan

import "github.com/rescale/archive-uploader/internal/media"

// CategoryTotals is the count and byte total for one category.
type CategoryTotals struct {
	Category media.Category
	Files    int
	Bytes    int64
}

// Summary aggregates a scan result.
type Summary struct {
	Files      int
	Bytes      int64
	Categories []CategoryTotals // only categories with at least one file, in media.Categories order
}

// Summarize counts files and bytes per category.
func Summarize(candidates []Candidate) Summary {
	byCat := make(map[media.Category]*CategoryTotals)
	var s Summary
	for _, c := range candidates {
		s.Files++
		s.Bytes += c.Size
		t, ok := byCat[c.Category]
		if !ok {
			t = &CategoryTotals{Category: c.Category}
			byCat[c.Category] = t
		}
		t.Files++
		t.Bytes += c.Size
	}
	order := make([]media.Category, 0, len(media.Categories)+1)
	order = append(order, media.Categories...)
	order = append(order, media.Data)
	for _, cat := range order {
		if t, ok := byCat[cat]; ok {
			s.Categories = append(s.Categories, *t)
		}
	}
	return s
}
