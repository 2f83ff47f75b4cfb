// Package feed renders published articles as an RSS 2.0 document.
package feed

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/bryan-buckman/bulletin/internal/model"
)

// RSS represents the root of an RSS 2.0 document.
type RSS struct {
	XMLName xml.Name `xml:"rss"`
	Version string   `xml:"version,attr"`
	Channel Channel  `xml:"channel"`
}

// Channel contains the feed metadata and items.
type Channel struct {
	Title         string `xml:"title"`
	Link          string `xml:"link"`
	Description   string `xml:"description"`
	Language      string `xml:"language,omitempty"`
	LastBuildDate string `xml:"lastBuildDate,omitempty"`
	Items         []Item `xml:"item"`
}

// Item is one article entry.
type Item struct {
	Title       string     `xml:"title"`
	Link        string     `xml:"link"`
	Description string     `xml:"description,omitempty"`
	Author      string     `xml:"author,omitempty"`
	Categories  []string   `xml:"category,omitempty"`
	GUID        GUID       `xml:"guid"`
	PubDate     string     `xml:"pubDate,omitempty"`
	Enclosure   *Enclosure `xml:"enclosure,omitempty"`
}

// GUID identifies an item. Slug-based GUIDs are not permalinks.
type GUID struct {
	Value       string `xml:",chardata"`
	IsPermaLink bool   `xml:"isPermaLink,attr"`
}

// Enclosure attaches the article image.
type Enclosure struct {
	URL  string `xml:"url,attr"`
	Type string `xml:"type,attr"`
}

// Meta describes the channel.
type Meta struct {
	Title       string
	Link        string
	Description string
	Language    string
}

// Export generates an RSS document for articles, in the given order.
// Articles without a provider link point at their slug under meta.Link.
func Export(meta Meta, articles []model.Article, now time.Time) ([]byte, error) {
	doc := RSS{
		Version: "2.0",
		Channel: Channel{
			Title:         meta.Title,
			Link:          meta.Link,
			Description:   meta.Description,
			Language:      meta.Language,
			LastBuildDate: now.UTC().Format(time.RFC1123Z),
		},
	}

	for _, a := range articles {
		item := Item{
			Title:       a.Title,
			Link:        a.Link,
			Description: a.Excerpt,
			Author:      a.Author,
			GUID:        GUID{Value: a.Slug},
		}
		if item.Link == "" {
			item.Link = strings.TrimRight(meta.Link, "/") + "/articles/" + a.Slug
		}
		for _, c := range strings.Split(a.Category, ",") {
			if c = strings.TrimSpace(c); c != "" {
				item.Categories = append(item.Categories, c)
			}
		}
		if a.PubDate != nil {
			item.PubDate = a.PubDate.UTC().Format(time.RFC1123Z)
		}
		if a.ImageURL != "" {
			item.Enclosure = &Enclosure{URL: a.ImageURL, Type: imageType(a.ImageURL)}
		}
		doc.Channel.Items = append(doc.Channel.Items, item)
	}

	output, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode rss: %w", err)
	}
	return append([]byte(xml.Header), output...), nil
}

func imageType(u string) string {
	path := strings.ToLower(u)
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	switch {
	case strings.HasSuffix(path, ".png"):
		return "image/png"
	case strings.HasSuffix(path, ".gif"):
		return "image/gif"
	case strings.HasSuffix(path, ".webp"):
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
