package news

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
)

// Segmenter splits article text into sentences, in order.
// Blank input yields no sentences.
type Segmenter interface {
	Segment(text string) []string
}

// SegmenterFunc adapts a plain function to Segmenter.
type SegmenterFunc func(text string) []string

// Segment calls f(text).
func (f SegmenterFunc) Segment(text string) []string { return f(text) }

// PunctuationSegmenter splits after '.', '!' or '?' followed by whitespace.
type PunctuationSegmenter struct{}

// Segment implements Segmenter.
func (PunctuationSegmenter) Segment(text string) []string {
	var out []string
	runes := []rune(text)
	start := 0
	for i, r := range runes {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
			out = append(out, s)
		}
		start = i + 1
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		out = append(out, s)
	}
	return out
}

type sentenceTokenizer interface {
	Tokenize(text string) []*sentences.Sentence
}

// NLPSegmenter uses a trained Punkt model for English. It keeps
// abbreviations and initials inside their sentence.
type NLPSegmenter struct {
	tokenizer sentenceTokenizer
}

// NewNLPSegmenter loads the English model. Build it once and share it.
func NewNLPSegmenter() (*NLPSegmenter, error) {
	tokenizer, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		return nil, fmt.Errorf("load sentence model: %w", err)
	}
	return &NLPSegmenter{tokenizer: tokenizer}, nil
}

// Segment implements Segmenter.
func (s *NLPSegmenter) Segment(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	var out []string
	for _, sent := range s.tokenizer.Tokenize(text) {
		if t := strings.TrimSpace(sent.Text); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// NewSegmenter returns the segmenter registered under name ("nlp" or "punct").
func NewSegmenter(name string) (Segmenter, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "nlp":
		return NewNLPSegmenter()
	case "punct":
		return PunctuationSegmenter{}, nil
	default:
		return nil, fmt.Errorf("unknown segmenter %q", name)
	}
}
