package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/quillhub/quillhub.press/internal/platform/storage/sqlitemigrate"
	"github.com/quillhub/quillhub.press/internal/services/content/storage"
	"github.com/quillhub/quillhub.press/internal/services/content/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

const postColumns = "id, title, content, tags, author_id, created_at, updated_at"

// Store provides SQLite-backed persistence for blog post records.
type Store struct {
	sqlDB *sql.DB
}

// Open opens and migrates a content SQLite store.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, "."); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close releases the underlying SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// PutPost inserts one post row.
func (s *Store) PutPost(ctx context.Context, post storage.Post) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	post.ID = strings.TrimSpace(post.ID)
	if post.ID == "" {
		return fmt.Errorf("post id is required")
	}
	if strings.TrimSpace(post.AuthorID) == "" {
		return fmt.Errorf("post author id is required")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO posts (`+postColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		post.ID,
		post.Title,
		post.Content,
		encodeTags(post.Tags),
		post.AuthorID,
		post.CreatedAt.UTC().UnixMilli(),
		post.UpdatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

// GetPost loads one post row by id.
func (s *Store) GetPost(ctx context.Context, id string) (storage.Post, error) {
	if s == nil || s.sqlDB == nil {
		return storage.Post{}, fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return storage.Post{}, storage.ErrNotFound
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+postColumns+` FROM posts WHERE id = ?`,
		id,
	)
	return scanPost(row)
}

// GetLatestPostByTitleAuthor loads the most recently created post with the
// given title and author, for the create-path duplicate check.
func (s *Store) GetLatestPostByTitleAuthor(ctx context.Context, title, authorID string) (storage.Post, error) {
	if s == nil || s.sqlDB == nil {
		return storage.Post{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+postColumns+` FROM posts
		 WHERE title = ? AND author_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`,
		title,
		authorID,
	)
	return scanPost(row)
}

// ListPosts loads one page of posts ordered by creation time descending,
// plus the total count of rows matching the filter.
func (s *Store) ListPosts(ctx context.Context, filter storage.ListFilter) (storage.PostPage, error) {
	if s == nil || s.sqlDB == nil {
		return storage.PostPage{}, fmt.Errorf("storage is not configured")
	}
	if filter.Limit <= 0 {
		filter.Limit = 10
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	where, args := tagFilterClause(filter.Tags)

	var total int
	countRow := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts`+where, args...)
	if err := countRow.Scan(&total); err != nil {
		return storage.PostPage{}, fmt.Errorf("count posts: %w", err)
	}

	listArgs := append(append([]any{}, args...), filter.Limit, filter.Offset)
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT `+postColumns+` FROM posts`+where+`
		 ORDER BY created_at DESC, id DESC
		 LIMIT ? OFFSET ?`,
		listArgs...,
	)
	if err != nil {
		return storage.PostPage{}, fmt.Errorf("list posts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	page := storage.PostPage{Total: total}
	for rows.Next() {
		post, err := scanPostRow(rows)
		if err != nil {
			return storage.PostPage{}, err
		}
		page.Posts = append(page.Posts, post)
	}
	if err := rows.Err(); err != nil {
		return storage.PostPage{}, fmt.Errorf("iterate posts: %w", err)
	}
	return page, nil
}

// SavePost updates one existing post row in full.
func (s *Store) SavePost(ctx context.Context, post storage.Post) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	post.ID = strings.TrimSpace(post.ID)
	if post.ID == "" {
		return storage.ErrNotFound
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE posts
		 SET title = ?, content = ?, tags = ?, author_id = ?, updated_at = ?
		 WHERE id = ?`,
		post.Title,
		post.Content,
		encodeTags(post.Tags),
		post.AuthorID,
		post.UpdatedAt.UTC().UnixMilli(),
		post.ID,
	)
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update post rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeletePost removes one post row by id.
func (s *Store) DeletePost(ctx context.Context, id string) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return storage.ErrNotFound
	}

	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete post rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// tagFilterClause builds a WHERE clause matching posts whose tag set
// intersects the supplied tags. Tags are stored comma-joined; wrapping both
// sides in commas keeps the match exact per element.
func tagFilterClause(tags []string) (string, []any) {
	var terms []string
	var args []any
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		terms = append(terms, `(',' || tags || ',') LIKE ?`)
		args = append(args, "%,"+tag+",%")
	}
	if len(terms) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(terms, " OR "), args
}

func encodeTags(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	cleaned := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		cleaned = append(cleaned, tag)
	}
	return strings.Join(cleaned, ",")
}

func decodeTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return strings.Split(raw, ",")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row *sql.Row) (storage.Post, error) {
	post, err := scanPostRow(row)
	if err != nil {
		return storage.Post{}, err
	}
	return post, nil
}

func scanPostRow(row rowScanner) (storage.Post, error) {
	var post storage.Post
	var tags string
	var createdAt int64
	var updatedAt int64
	if err := row.Scan(
		&post.ID,
		&post.Title,
		&post.Content,
		&tags,
		&post.AuthorID,
		&createdAt,
		&updatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return storage.Post{}, storage.ErrNotFound
		}
		return storage.Post{}, fmt.Errorf("scan post: %w", err)
	}
	post.Tags = decodeTags(tags)
	post.CreatedAt = unixMillisToTime(createdAt)
	post.UpdatedAt = unixMillisToTime(updatedAt)
	return post, nil
}

func unixMillisToTime(millis int64) time.Time {
	if millis <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(millis).UTC()
}
