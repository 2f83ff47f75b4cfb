// Package database provides SQLite and PostgreSQL storage for the bulletin.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/bryan-buckman/bulletin/internal/model"
	_ "modernc.org/sqlite"
)

// DB wraps a SQL connection. The same query code serves both backends;
// only the placeholder format and the schema differ.
type DB struct {
	conn   *sql.DB
	sb     sq.StatementBuilderType
	dbType string
	now    func() time.Time
}

// Ensure DB implements Store interface.
var _ Store = (*DB)(nil)

// New opens or creates an SQLite database at the given path.
func New(path string) (*DB, error) {
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_time_format=sqlite"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db := &DB{
		conn:   conn,
		sb:     sq.StatementBuilder.PlaceholderFormat(sq.Question),
		dbType: "SQLite",
		now:    utcNow,
	}
	if err := db.migrate(sqliteSchema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks that the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// DatabaseType returns the database backend name.
func (db *DB) DatabaseType() string {
	return db.dbType
}

func utcNow() time.Time {
	return time.Now().UTC()
}

func (db *DB) migrate(schema string) error {
	_, err := db.conn.Exec(schema)
	return err
}

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS articles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		article_id TEXT UNIQUE,
		title TEXT NOT NULL UNIQUE,
		slug TEXT NOT NULL UNIQUE,
		author TEXT NOT NULL DEFAULT '',
		excerpt TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		status INTEGER NOT NULL DEFAULT 0,
		source_id TEXT NOT NULL,
		source_priority INTEGER NOT NULL,
		country TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		language TEXT NOT NULL,
		pub_date DATETIME,
		image_url TEXT,
		link TEXT NOT NULL DEFAULT '',
		created_on DATETIME NOT NULL,
		updated_on DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS comments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		article_id INTEGER NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
		user_id INTEGER,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		content TEXT NOT NULL,
		created_on DATETIME NOT NULL,
		approved INTEGER NOT NULL DEFAULT 1
	);
	CREATE TABLE IF NOT EXISTS feedback (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		message TEXT NOT NULL,
		created_on DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_articles_status_pub_date ON articles(status, pub_date DESC);
	CREATE INDEX IF NOT EXISTS idx_comments_article_id ON comments(article_id);
	`

// --- Article Methods ---

var articleColumns = []string{
	"id", "article_id", "title", "slug", "author", "excerpt", "content", "status",
	"source_id", "source_priority", "country", "category", "language", "pub_date",
	"image_url", "link", "created_on", "updated_on",
}

// UpsertArticle inserts the article or updates the existing row with the same
// provider id (or, when the article has none, the same title). The slug and
// created_on of an existing row are kept. Returns true when a row was created.
// On return a carries the stored ID, Slug, CreatedOn and UpdatedOn.
func (db *DB) UpsertArticle(ctx context.Context, a *model.Article) (bool, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	existing, err := db.findUpsertTarget(ctx, tx, a)
	if err != nil {
		return false, err
	}

	now := db.now()
	created := existing == nil
	if created {
		a.CreatedOn = now
		a.UpdatedOn = now
		query, args, err := db.sb.Insert("articles").
			Columns(articleColumns[1:]...).
			Values(articleValues(a)...).
			Suffix("RETURNING id").
			ToSql()
		if err != nil {
			return false, fmt.Errorf("build insert: %w", err)
		}
		if err := tx.QueryRowContext(ctx, query, args...).Scan(&a.ID); err != nil {
			return false, fmt.Errorf("insert article: %w", err)
		}
	} else {
		a.ID = existing.ID
		a.Slug = existing.Slug
		a.CreatedOn = existing.CreatedOn
		a.UpdatedOn = now
		query, args, err := db.sb.Update("articles").
			SetMap(articleSetMap(a)).
			Where(sq.Eq{"id": a.ID}).
			ToSql()
		if err != nil {
			return false, fmt.Errorf("build update: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return false, fmt.Errorf("update article %d: %w", a.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return created, nil
}

type upsertTarget struct {
	ID        int64
	Slug      string
	CreatedOn time.Time
}

// findUpsertTarget returns the row an upsert of a should overwrite, or nil.
// A provider id matches its own row first; otherwise a row with the same
// title and no provider id is adopted.
func (db *DB) findUpsertTarget(ctx context.Context, tx *sql.Tx, a *model.Article) (*upsertTarget, error) {
	var conds []sq.Sqlizer
	if a.ArticleID != "" {
		conds = append(conds, sq.Eq{"article_id": a.ArticleID})
		conds = append(conds, sq.And{sq.Eq{"title": a.Title}, sq.Eq{"article_id": nil}})
	} else {
		conds = append(conds, sq.Eq{"title": a.Title})
	}
	for _, cond := range conds {
		query, args, err := db.sb.Select("id", "slug", "created_on").
			From("articles").
			Where(cond).
			ToSql()
		if err != nil {
			return nil, fmt.Errorf("build lookup: %w", err)
		}
		var t upsertTarget
		err = tx.QueryRowContext(ctx, query, args...).Scan(&t.ID, &t.Slug, &t.CreatedOn)
		if err == nil {
			return &t, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("lookup article: %w", err)
		}
	}
	return nil, nil
}

// articleValues returns the insertable values in articleColumns[1:] order.
func articleValues(a *model.Article) []interface{} {
	return []interface{}{
		nullString(a.ArticleID), a.Title, a.Slug, a.Author, a.Excerpt, a.Content, int(a.Status),
		a.SourceID, a.SourcePriority, a.Country, a.Category, a.Language, nullTime(a.PubDate),
		nullString(a.ImageURL), a.Link, a.CreatedOn, a.UpdatedOn,
	}
}

func articleSetMap(a *model.Article) map[string]interface{} {
	return map[string]interface{}{
		"article_id":      nullString(a.ArticleID),
		"title":           a.Title,
		"author":          a.Author,
		"excerpt":         a.Excerpt,
		"content":         a.Content,
		"status":          int(a.Status),
		"source_id":       a.SourceID,
		"source_priority": a.SourcePriority,
		"country":         a.Country,
		"category":        a.Category,
		"language":        a.Language,
		"pub_date":        nullTime(a.PubDate),
		"image_url":       nullString(a.ImageURL),
		"link":            a.Link,
		"updated_on":      a.UpdatedOn,
	}
}

// GetArticleByID returns the article with the given id.
func (db *DB) GetArticleByID(ctx context.Context, id int64) (*model.Article, error) {
	return db.getArticle(ctx, sq.Eq{"id": id})
}

// GetArticleBySlug returns the article with the given slug.
func (db *DB) GetArticleBySlug(ctx context.Context, slug string) (*model.Article, error) {
	return db.getArticle(ctx, sq.Eq{"slug": slug})
}

func (db *DB) getArticle(ctx context.Context, cond sq.Sqlizer) (*model.Article, error) {
	query, args, err := db.sb.Select(articleColumns...).From("articles").Where(cond).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	a, err := scanArticle(db.conn.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ListPublished returns one page of published articles, newest first.
func (db *DB) ListPublished(ctx context.Context, q model.ArticleQuery) (*model.ArticlePage, error) {
	q = q.Normalize()

	where := sq.And{sq.Eq{"status": int(model.StatusPublished)}}
	if q.Language != "" {
		where = append(where, sq.Eq{"language": q.Language})
	}
	if q.Category != "" {
		where = append(where, sq.Like{"(',' || category || ',')": "%," + q.Category + ",%"})
	}
	if s := strings.TrimSpace(q.Search); s != "" {
		where = append(where, sq.Like{"LOWER(title)": "%" + strings.ToLower(s) + "%"})
	}

	countQuery, countArgs, err := db.sb.Select("COUNT(*)").From("articles").Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build count: %w", err)
	}
	page := &model.ArticlePage{Page: q.Page, PerPage: q.PerPage, Articles: []model.Article{}}
	if err := db.conn.QueryRowContext(ctx, countQuery, countArgs...).Scan(&page.Total); err != nil {
		return nil, fmt.Errorf("count articles: %w", err)
	}

	query, args, err := db.sb.Select(articleColumns...).
		From("articles").
		Where(where).
		OrderBy("pub_date DESC NULLS LAST", "created_on DESC", "id DESC").
		Limit(uint64(q.PerPage)).
		Offset(uint64(q.Offset())).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list: %w", err)
	}
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		page.Articles = append(page.Articles, *a)
	}
	return page, rows.Err()
}

// DeleteArticle removes an article; its comments cascade.
func (db *DB) DeleteArticle(ctx context.Context, id int64) error {
	query, args, err := db.sb.Delete("articles").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	return db.execOne(ctx, query, args...)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanArticle(row rowScanner) (*model.Article, error) {
	var a model.Article
	var articleID, imageURL sql.NullString
	var pubDate sql.NullTime
	var status int
	if err := row.Scan(&a.ID, &articleID, &a.Title, &a.Slug, &a.Author, &a.Excerpt, &a.Content, &status,
		&a.SourceID, &a.SourcePriority, &a.Country, &a.Category, &a.Language, &pubDate,
		&imageURL, &a.Link, &a.CreatedOn, &a.UpdatedOn); err != nil {
		return nil, err
	}
	a.ArticleID = articleID.String
	a.ImageURL = imageURL.String
	a.Status = model.Status(status)
	if pubDate.Valid {
		t := pubDate.Time.UTC()
		a.PubDate = &t
	}
	a.CreatedOn = a.CreatedOn.UTC()
	a.UpdatedOn = a.UpdatedOn.UTC()
	return &a, nil
}

// --- Comment Methods ---

var commentColumns = []string{"id", "article_id", "user_id", "name", "email", "content", "created_on", "approved"}

// AddComment stores a new comment. Returns the ID.
func (db *DB) AddComment(ctx context.Context, c *model.Comment) (int64, error) {
	c.CreatedOn = db.now()
	query, args, err := db.sb.Insert("comments").
		Columns(commentColumns[1:]...).
		Values(c.ArticleID, c.UserID, c.Name, c.Email, c.Content, c.CreatedOn, c.Approved).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build insert: %w", err)
	}
	if err := db.conn.QueryRowContext(ctx, query, args...).Scan(&c.ID); err != nil {
		return 0, fmt.Errorf("insert comment: %w", err)
	}
	return c.ID, nil
}

// GetComment returns a single comment.
func (db *DB) GetComment(ctx context.Context, id int64) (*model.Comment, error) {
	query, args, err := db.sb.Select(commentColumns...).From("comments").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	c, err := scanComment(db.conn.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

// GetComments returns the comments of an article, oldest first.
func (db *DB) GetComments(ctx context.Context, articleID int64, onlyApproved bool) ([]model.Comment, error) {
	where := sq.Eq{"article_id": articleID}
	if onlyApproved {
		where["approved"] = true
	}
	query, args, err := db.sb.Select(commentColumns...).
		From("comments").
		Where(where).
		OrderBy("created_on", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()
	comments := []model.Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, *c)
	}
	return comments, rows.Err()
}

// UpdateComment saves the editable fields of a comment.
func (db *DB) UpdateComment(ctx context.Context, c *model.Comment) error {
	query, args, err := db.sb.Update("comments").
		Set("name", c.Name).
		Set("email", c.Email).
		Set("content", c.Content).
		Set("approved", c.Approved).
		Where(sq.Eq{"id": c.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	return db.execOne(ctx, query, args...)
}

// DeleteComment removes a comment belonging to the given article.
func (db *DB) DeleteComment(ctx context.Context, articleID, commentID int64) error {
	query, args, err := db.sb.Delete("comments").
		Where(sq.Eq{"id": commentID, "article_id": articleID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	return db.execOne(ctx, query, args...)
}

func scanComment(row rowScanner) (*model.Comment, error) {
	var c model.Comment
	var userID sql.NullInt64
	if err := row.Scan(&c.ID, &c.ArticleID, &userID, &c.Name, &c.Email, &c.Content, &c.CreatedOn, &c.Approved); err != nil {
		return nil, err
	}
	if userID.Valid {
		c.UserID = &userID.Int64
	}
	c.CreatedOn = c.CreatedOn.UTC()
	return &c, nil
}

// --- Feedback Methods ---

// AddFeedback stores a feedback message. Returns the ID.
func (db *DB) AddFeedback(ctx context.Context, f *model.Feedback) (int64, error) {
	f.CreatedOn = db.now()
	query, args, err := db.sb.Insert("feedback").
		Columns("name", "email", "message", "created_on").
		Values(f.Name, f.Email, f.Message, f.CreatedOn).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build insert: %w", err)
	}
	if err := db.conn.QueryRowContext(ctx, query, args...).Scan(&f.ID); err != nil {
		return 0, fmt.Errorf("insert feedback: %w", err)
	}
	return f.ID, nil
}

// GetFeedback returns all feedback, newest first.
func (db *DB) GetFeedback(ctx context.Context) ([]model.Feedback, error) {
	query, args, err := db.sb.Select("id", "name", "email", "message", "created_on").
		From("feedback").
		OrderBy("created_on DESC", "id DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	defer rows.Close()
	list := []model.Feedback{}
	for rows.Next() {
		var f model.Feedback
		if err := rows.Scan(&f.ID, &f.Name, &f.Email, &f.Message, &f.CreatedOn); err != nil {
			return nil, err
		}
		f.CreatedOn = f.CreatedOn.UTC()
		list = append(list, f)
	}
	return list, rows.Err()
}

// --- Helpers ---

// execOne runs a statement expected to touch exactly one row.
func (db *DB) execOne(ctx context.Context, query string, args ...interface{}) error {
	res, err := db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
