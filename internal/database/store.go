// Package database provides storage backends for the bulletin.
package database

import (
	"context"
	"errors"

	"github.com/bryan-buckman/bulletin/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store defines the interface for database operations.
// Both SQLite and PostgreSQL backends satisfy this interface.
type Store interface {
	Close() error
	Ping(ctx context.Context) error

	// DatabaseType returns the name of the database backend ("SQLite" or "PostgreSQL").
	DatabaseType() string

	// Article operations
	UpsertArticle(ctx context.Context, a *model.Article) (bool, error)
	GetArticleByID(ctx context.Context, id int64) (*model.Article, error)
	GetArticleBySlug(ctx context.Context, slug string) (*model.Article, error)
	ListPublished(ctx context.Context, q model.ArticleQuery) (*model.ArticlePage, error)
	DeleteArticle(ctx context.Context, id int64) error

	// Comment operations
	AddComment(ctx context.Context, c *model.Comment) (int64, error)
	GetComment(ctx context.Context, id int64) (*model.Comment, error)
	GetComments(ctx context.Context, articleID int64, onlyApproved bool) ([]model.Comment, error)
	UpdateComment(ctx context.Context, c *model.Comment) error
	DeleteComment(ctx context.Context, articleID, commentID int64) error

	// Feedback operations
	AddFeedback(ctx context.Context, f *model.Feedback) (int64, error)
	GetFeedback(ctx context.Context) ([]model.Feedback, error)
}
