package news

import (
	"fmt"
	"strings"
	"time"

	"github.com/bryan-buckman/bulletin/internal/model"
)

// PubDateLayout is the provider's publication timestamp format, in UTC.
const PubDateLayout = "2006-01-02 15:04:05"

// Normalizer maps raw provider records onto articles.
type Normalizer struct {
	segmenter     Segmenter
	paragraphSize int
	author        string
	slugSuffix    func() string
}

// NewNormalizer returns a Normalizer that formats content with seg in
// paragraphs of paragraphSize sentences and credits author.
func NewNormalizer(seg Segmenter, paragraphSize int, author string) *Normalizer {
	if seg == nil {
		seg = PunctuationSegmenter{}
	}
	return &Normalizer{
		segmenter:     seg,
		paragraphSize: paragraphSize,
		author:        author,
		slugSuffix:    randomSuffix,
	}
}

// Normalize validates raw and builds a Published article from it.
// The result has no ID, CreatedOn or UpdatedOn; the store fills those.
func (n *Normalizer) Normalize(raw RawArticle) (*model.Article, error) {
	fail := func(field string, err error) error {
		return &NormalizationError{Record: raw, Field: field, Err: err}
	}

	title := strings.TrimSpace(raw.Title)
	if title == "" {
		return nil, fail("title", ErrMissingField)
	}
	sourceID := strings.TrimSpace(raw.SourceID)
	if sourceID == "" {
		return nil, fail("source_id", ErrMissingField)
	}
	if raw.SourcePriority == nil {
		return nil, fail("source_priority", ErrMissingField)
	}
	language := strings.TrimSpace(raw.Language)
	if language == "" {
		return nil, fail("language", ErrMissingField)
	}

	var pubDate *time.Time
	if s := strings.TrimSpace(raw.PubDate); s != "" {
		t, err := time.ParseInLocation(PubDateLayout, s, time.UTC)
		if err != nil {
			return nil, fail("pubDate", fmt.Errorf("%w: %v", ErrInvalidField, err))
		}
		pubDate = &t
	}

	body := plainText(raw.Content)
	if body == "" {
		body = plainText(raw.Description)
	}

	return &model.Article{
		ArticleID:      strings.TrimSpace(raw.ArticleID),
		Title:          title,
		Slug:           newSlug(title, n.slugSuffix),
		Author:         n.author,
		Excerpt:        plainText(raw.Description),
		Content:        FormatContent(n.segmenter, body, n.paragraphSize),
		Status:         model.StatusPublished,
		SourceID:       sourceID,
		SourcePriority: int(*raw.SourcePriority),
		Country:        raw.Country.Join(),
		Category:       raw.Category.Join(),
		Language:       language,
		PubDate:        pubDate,
		ImageURL:       strings.TrimSpace(raw.ImageURL),
		Link:           strings.TrimSpace(raw.Link),
	}, nil
}
