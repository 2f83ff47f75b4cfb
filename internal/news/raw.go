package news

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// RawArticle is one article record as sent by the news API. Fields the
// provider sends in more than one shape are decoded leniently.
type RawArticle struct {
	ArticleID      string     `json:"article_id"`
	Title          string     `json:"title"`
	Link           string     `json:"link"`
	Description    string     `json:"description"`
	Content        string     `json:"content"`
	SourceID       string     `json:"source_id"`
	SourcePriority *flexInt   `json:"source_priority"`
	Category       stringList `json:"category"`
	Country        stringList `json:"country"`
	Language       string     `json:"language"`
	PubDate        string     `json:"pubDate"`
	ImageURL       string     `json:"image_url"`
}

// Identifier names the record in logs and batch reports.
// index < 0 means the position is unknown.
func (r RawArticle) Identifier(index int) string {
	if id := strings.TrimSpace(r.ArticleID); id != "" {
		return id
	}
	if t := strings.TrimSpace(r.Title); t != "" {
		return truncate(t, 80)
	}
	if index < 0 {
		return "record"
	}
	return fmt.Sprintf("record #%d", index)
}

type envelope struct {
	Status  string             `json:"status"`
	Results *[]json.RawMessage `json:"results"`
}

// parseEnvelope returns the raw records of a response body. Records are
// kept undecoded so that one malformed record fails alone.
func parseEnvelope(body []byte) ([]json.RawMessage, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &EnvelopeError{Err: err}
	}
	if env.Results == nil {
		return nil, &EnvelopeError{Err: errors.New(`missing "results" key`)}
	}
	return *env.Results, nil
}

// decodeRecord decodes one element of the results array.
func decodeRecord(msg json.RawMessage) (RawArticle, error) {
	var raw RawArticle
	trimmed := bytes.TrimSpace(msg)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return raw, fmt.Errorf("%w: record is not an object", ErrInvalidField)
	}
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return raw, fmt.Errorf("%w: %v", ErrInvalidField, err)
	}
	return raw, nil
}

// identifyUndecodable names a record that failed to decode, using whatever
// string id or title it carries.
func identifyUndecodable(msg json.RawMessage, index int) string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(msg, &fields); err == nil {
		for _, key := range []string{"article_id", "title"} {
			var s string
			if json.Unmarshal(fields[key], &s) == nil && strings.TrimSpace(s) != "" {
				return truncate(strings.TrimSpace(s), 80)
			}
		}
	}
	return fmt.Sprintf("record #%d", index)
}

// flexInt accepts a JSON number or a numeric string.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unquoted)
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("not a number: %s", b)
	}
	*f = flexInt(n)
	return nil
}

// stringList accepts a JSON array of strings or a single string.
type stringList []string

func (l *stringList) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if bytes.Equal(trimmed, []byte("null")) {
		*l = nil
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*l = stringList{s}
		return nil
	}
	var list []string
	if err := json.Unmarshal(trimmed, &list); err != nil {
		return err
	}
	*l = list
	return nil
}

// Join returns the non-blank entries joined by commas.
func (l stringList) Join() string {
	parts := make([]string, 0, len(l))
	for _, s := range l {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ",")
}
