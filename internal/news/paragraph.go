package news

import "strings"

// DefaultParagraphSize is the number of sentences per paragraph.
const DefaultParagraphSize = 5

// GroupParagraphs joins consecutive runs of at most n sentences into
// paragraphs, separating sentences with a single space. The last paragraph
// may be shorter. n <= 0 uses DefaultParagraphSize.
func GroupParagraphs(sentences []string, n int) []string {
	if n <= 0 {
		n = DefaultParagraphSize
	}
	paragraphs := make([]string, 0, (len(sentences)+n-1)/n)
	for i := 0; i < len(sentences); i += n {
		end := min(i+n, len(sentences))
		paragraphs = append(paragraphs, strings.Join(sentences[i:end], " "))
	}
	return paragraphs
}

// FormatContent segments text and regroups it into paragraphs separated by
// a blank line.
func FormatContent(seg Segmenter, text string, n int) string {
	return strings.Join(GroupParagraphs(seg.Segment(text), n), "\n\n")
}
