// Package model defines shared data structures.
package model

import "time"

// Status is the publication state of an article.
type Status int

const (
	StatusDraft     Status = 0
	StatusPublished Status = 1
)

// String returns the display name of the status.
func (s Status) String() string {
	switch s {
	case StatusDraft:
		return "Draft"
	case StatusPublished:
		return "Published"
	default:
		return "Unknown"
	}
}

// Article is a news article stored after ingestion.
type Article struct {
	ID             int64      `json:"id"`
	ArticleID      string     `json:"article_id,omitempty"` // provider id, empty if the provider sent none
	Title          string     `json:"title"`
	Slug           string     `json:"slug"`
	Author         string     `json:"author"`
	Excerpt        string     `json:"excerpt"`
	Content        string     `json:"content"`
	Status         Status     `json:"status"`
	SourceID       string     `json:"source_id"`
	SourcePriority int        `json:"source_priority"`
	Country        string     `json:"country"`
	Category       string     `json:"category"` // comma-joined
	Language       string     `json:"language"`
	PubDate        *time.Time `json:"pub_date"` // nullable
	ImageURL       string     `json:"image_url"`
	Link           string     `json:"link"`
	CreatedOn      time.Time  `json:"created_on"`
	UpdatedOn      time.Time  `json:"updated_on"`
}

// Comment is a reader comment attached to one article.
type Comment struct {
	ID        int64     `json:"id"`
	ArticleID int64     `json:"article_id"`
	UserID    *int64    `json:"user_id,omitempty"` // nullable for anonymous comments
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Content   string    `json:"content"`
	CreatedOn time.Time `json:"created_on"`
	Approved  bool      `json:"approved"`
}

// Feedback is a standalone message from a visitor.
type Feedback struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Message   string    `json:"message"`
	CreatedOn time.Time `json:"created_on"`
}

// ArticleQuery filters and paginates the published article listing.
type ArticleQuery struct {
	Language string
	Category string
	Search   string // title substring
	Page     int    // 1-based
	PerPage  int
}

// ArticlePage is one page of the published listing.
type ArticlePage struct {
	Articles []Article `json:"articles"`
	Page     int       `json:"page"`
	PerPage  int       `json:"per_page"`
	Total    int       `json:"total"`
}

// Default pagination values.
const (
	DefaultPerPage = 10
	MaxPerPage     = 100
)

// Normalize clamps the pagination fields to sane values.
func (q ArticleQuery) Normalize() ArticleQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage < 1 {
		q.PerPage = DefaultPerPage
	}
	if q.PerPage > MaxPerPage {
		q.PerPage = MaxPerPage
	}
	return q
}

// Offset returns the row offset of the query's page.
func (q ArticleQuery) Offset() int {
	return (q.Page - 1) * q.PerPage
}
