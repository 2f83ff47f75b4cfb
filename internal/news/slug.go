package news

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	maxSlugLen    = 255
	slugSuffixLen = 8
)

var (
	slugStrip    = regexp.MustCompile(`[^a-z0-9_\s-]`)
	slugCollapse = regexp.MustCompile(`[-\s]+`)
)

// Slugify lowercases s, folds accents to ASCII, drops punctuation and
// replaces runs of whitespace and hyphens with a single hyphen.
func Slugify(s string) string {
	folder := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(folder, s)
	if err != nil {
		folded = s
	}
	out := slugStrip.ReplaceAllString(strings.ToLower(folded), "")
	out = slugCollapse.ReplaceAllString(out, "-")
	return strings.Trim(out, "-_")
}

// newSlug builds a slug for title with a random suffix.
func newSlug(title string, suffix func() string) string {
	base := Slugify(title)
	if base == "" {
		base = "article"
	}
	if limit := maxSlugLen - slugSuffixLen - 1; len(base) > limit {
		base = strings.TrimRight(base[:limit], "-_")
	}
	return base + "-" + suffix()
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:slugSuffixLen]
}
