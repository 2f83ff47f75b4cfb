package news

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryan-buckman/bulletin/internal/model"
)

func testNormalizer() *Normalizer {
	n := NewNormalizer(PunctuationSegmenter{}, 5, "newsdesk")
	n.slugSuffix = func() string { return "0badcafe" }
	return n
}

func decodeRaw(t *testing.T, s string) RawArticle {
	t.Helper()
	raw, err := decodeRecord(json.RawMessage(s))
	require.NoError(t, err)
	return raw
}

func TestNormalize(t *testing.T) {
	raw := decodeRaw(t, `{
		"article_id": "abc123",
		"title": "  Markets Rally on Jobs Data ",
		"link": "https://example.com/a",
		"description": "Stocks climbed.",
		"content": "One. Two. Three. Four. Five. Six.",
		"source_id": "example",
		"source_priority": 1234,
		"category": ["business", " ", "top"],
		"country": ["united states of america"],
		"language": "english",
		"pubDate": "2024-03-05 14:30:00",
		"image_url": "https://example.com/a.jpg"
	}`)

	a, err := testNormalizer().Normalize(raw)
	require.NoError(t, err)

	assert.Equal(t, "abc123", a.ArticleID)
	assert.Equal(t, "Markets Rally on Jobs Data", a.Title)
	assert.Equal(t, "markets-rally-on-jobs-data-0badcafe", a.Slug)
	assert.Equal(t, "newsdesk", a.Author)
	assert.Equal(t, "Stocks climbed.", a.Excerpt)
	assert.Equal(t, "One. Two. Three. Four. Five.\n\nSix.", a.Content)
	assert.Equal(t, model.StatusPublished, a.Status)
	assert.Equal(t, "example", a.SourceID)
	assert.Equal(t, 1234, a.SourcePriority)
	assert.Equal(t, "business,top", a.Category)
	assert.Equal(t, "united states of america", a.Country)
	assert.Equal(t, "english", a.Language)
	require.NotNil(t, a.PubDate)
	assert.Equal(t, time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC), *a.PubDate)
	assert.Equal(t, "https://example.com/a.jpg", a.ImageURL)
	assert.Equal(t, "https://example.com/a", a.Link)
	assert.Zero(t, a.ID)
}

func TestNormalizeOptionalFields(t *testing.T) {
	raw := decodeRaw(t, `{
		"title": "Quiet Day",
		"description": "Nothing happened. Really.",
		"content": null,
		"source_id": "s",
		"source_priority": "7",
		"category": "top",
		"language": "en",
		"pubDate": null,
		"image_url": null
	}`)

	a, err := testNormalizer().Normalize(raw)
	require.NoError(t, err)

	assert.Empty(t, a.ArticleID)
	assert.Nil(t, a.PubDate)
	assert.Empty(t, a.ImageURL)
	assert.Empty(t, a.Country)
	assert.Empty(t, a.Link)
	assert.Equal(t, "top", a.Category)
	assert.Equal(t, 7, a.SourcePriority)
	assert.Equal(t, "Nothing happened. Really.", a.Content, "content falls back to description")
}

func TestNormalizeEmptySlugBase(t *testing.T) {
	raw := decodeRaw(t, `{"title":"???","source_id":"s","source_priority":1,"language":"en"}`)
	a, err := testNormalizer().Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, "article-0badcafe", a.Slug)
	assert.Empty(t, a.Content)
}

func TestNormalizeErrors(t *testing.T) {
	tests := []struct {
		name  string
		json  string
		field string
		cause error
	}{
		{"missing title", `{"source_id":"s","source_priority":1,"language":"en"}`, "title", ErrMissingField},
		{"blank title", `{"title":"  ","source_id":"s","source_priority":1,"language":"en"}`, "title", ErrMissingField},
		{"missing source_id", `{"title":"T","source_priority":1,"language":"en"}`, "source_id", ErrMissingField},
		{"null source_priority", `{"title":"T","source_id":"s","source_priority":null,"language":"en"}`, "source_priority", ErrMissingField},
		{"missing language", `{"title":"T","source_id":"s","source_priority":1}`, "language", ErrMissingField},
		{"bad pubDate", `{"title":"T","source_id":"s","source_priority":1,"language":"en","pubDate":"05/03/2024"}`, "pubDate", ErrInvalidField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := testNormalizer().Normalize(decodeRaw(t, tt.json))
			require.Error(t, err)

			var nerr *NormalizationError
			require.True(t, errors.As(err, &nerr))
			assert.Equal(t, tt.field, nerr.Field)
			assert.ErrorIs(t, err, tt.cause)
		})
	}
}

func TestDecodeRecordRejectsWrongTypes(t *testing.T) {
	for _, s := range []string{
		`"just a string"`,
		`[1,2]`,
		`{"title": 42}`,
		`{"title":"T","source_priority":"high"}`,
		`{"title":"T","category":[1,2]}`,
	} {
		_, err := decodeRecord(json.RawMessage(s))
		assert.ErrorIs(t, err, ErrInvalidField, s)
	}
}

func TestIdentifyUndecodable(t *testing.T) {
	assert.Equal(t, "p-1", identifyUndecodable(json.RawMessage(`{"article_id":"p-1","title":5}`), 3))
	assert.Equal(t, "Headline", identifyUndecodable(json.RawMessage(`{"article_id":9,"title":"Headline"}`), 3))
	assert.Equal(t, "record #3", identifyUndecodable(json.RawMessage(`[]`), 3))
}

func TestParseEnvelope(t *testing.T) {
	records, err := parseEnvelope([]byte(`{"status":"success","totalResults":2,"results":[{"title":"a"},{"title":"b"}]}`))
	require.NoError(t, err)
	assert.Len(t, records, 2)

	records, err = parseEnvelope([]byte(`{"status":"success","results":[]}`))
	require.NoError(t, err)
	assert.Empty(t, records)

	for _, body := range []string{
		`not json`,
		`{"status":"success"}`,
		`{"status":"success","results":null}`,
		`{"status":"error","results":{"message":"bad key","code":"Unauthorized"}}`,
	} {
		_, err := parseEnvelope([]byte(body))
		var eerr *EnvelopeError
		assert.True(t, errors.As(err, &eerr), body)
	}
}
