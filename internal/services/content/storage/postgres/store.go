// Package postgres provides pgx-backed persistence for blog post records.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quillhub/quillhub.press/internal/services/content/storage"
)

const postColumns = "id, title, content, tags, author_id, created_at, updated_at"

// Schema statements run one at a time; the cached-statement exec mode does
// not accept multi-statement scripts.
var schemaSQL = []string{
	`CREATE TABLE IF NOT EXISTS posts (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    content TEXT NOT NULL,
    tags TEXT NOT NULL DEFAULT '',
    author_id TEXT NOT NULL,
    created_at BIGINT NOT NULL,
    updated_at BIGINT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts (created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_posts_author_title ON posts (author_id, title)`,
}

// Store provides Postgres-backed persistence for blog post records.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects a pgx pool and ensures the posts schema exists.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("database url is required")
	}

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheStatement

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	for _, statement := range schemaSQL {
		if _, err := pool.Exec(ctx, statement); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ensure posts schema: %w", err)
		}
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

// PutPost inserts one post row.
func (s *Store) PutPost(ctx context.Context, post storage.Post) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("storage is not configured")
	}
	post.ID = strings.TrimSpace(post.ID)
	if post.ID == "" {
		return fmt.Errorf("post id is required")
	}
	if strings.TrimSpace(post.AuthorID) == "" {
		return fmt.Errorf("post author id is required")
	}

	_, err := s.pool.Exec(
		ctx,
		`INSERT INTO posts (`+postColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
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
	if s == nil || s.pool == nil {
		return storage.Post{}, fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return storage.Post{}, storage.ErrNotFound
	}

	row := s.pool.QueryRow(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id)
	return scanPost(row)
}

// GetLatestPostByTitleAuthor loads the most recently created post with the
// given title and author, for the create-path duplicate check.
func (s *Store) GetLatestPostByTitleAuthor(ctx context.Context, title, authorID string) (storage.Post, error) {
	if s == nil || s.pool == nil {
		return storage.Post{}, fmt.Errorf("storage is not configured")
	}

	row := s.pool.QueryRow(
		ctx,
		`SELECT `+postColumns+` FROM posts
		 WHERE title = $1 AND author_id = $2
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
	if s == nil || s.pool == nil {
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
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM posts`+where, args...).Scan(&total); err != nil {
		return storage.PostPage{}, fmt.Errorf("count posts: %w", err)
	}

	listArgs := append(append([]any{}, args...), filter.Limit, filter.Offset)
	rows, err := s.pool.Query(
		ctx,
		fmt.Sprintf(
			`SELECT `+postColumns+` FROM posts`+where+`
			 ORDER BY created_at DESC, id DESC
			 LIMIT $%d OFFSET $%d`,
			len(args)+1, len(args)+2,
		),
		listArgs...,
	)
	if err != nil {
		return storage.PostPage{}, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	page := storage.PostPage{Total: total}
	for rows.Next() {
		post, err := scanPost(rows)
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
	if s == nil || s.pool == nil {
		return fmt.Errorf("storage is not configured")
	}
	post.ID = strings.TrimSpace(post.ID)
	if post.ID == "" {
		return storage.ErrNotFound
	}

	tag, err := s.pool.Exec(
		ctx,
		`UPDATE posts
		 SET title = $1, content = $2, tags = $3, author_id = $4, updated_at = $5
		 WHERE id = $6`,
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
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeletePost removes one post row by id.
func (s *Store) DeletePost(ctx context.Context, id string) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return storage.ErrNotFound
	}

	tag, err := s.pool.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// tagFilterClause builds a WHERE clause matching posts whose tag set
// intersects the supplied tags. Placeholders are numbered from $1.
func tagFilterClause(tags []string) (string, []any) {
	var terms []string
	var args []any
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		args = append(args, "%,"+tag+",%")
		terms = append(terms, fmt.Sprintf(`(',' || tags || ',') LIKE $%d`, len(args)))
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

func scanPost(row pgx.Row) (storage.Post, error) {
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
		if errors.Is(err, pgx.ErrNoRows) {
			return storage.Post{}, storage.ErrNotFound
		}
		return storage.Post{}, fmt.Errorf("scan post: %w", err)
	}
	post.Tags = decodeTags(tags)
	post.CreatedAt = time.UnixMilli(createdAt).UTC()
	post.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return post, nil
}
