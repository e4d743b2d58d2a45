// Package storage defines persistence contracts for blog content.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates a requested post record is missing.
var ErrNotFound = errors.New("record not found")

// Post stores one blog post row. AuthorID is a non-owning reference to the
// identity service's user record; it is set at creation and never reassigned.
type Post struct {
	ID        string
	Title     string
	Content   string
	Tags      []string
	AuthorID  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ListFilter selects a page of posts ordered by creation time descending.
// An empty Tags slice matches every post; a non-empty slice matches posts
// whose tag set intersects it.
type ListFilter struct {
	Tags   []string
	Offset int
	Limit  int
}

// PostPage stores one page of posts plus the total count matching the filter.
type PostPage struct {
	Posts []Post
	Total int
}

// PostStore persists blog post records.
type PostStore interface {
	PutPost(ctx context.Context, post Post) error
	GetPost(ctx context.Context, id string) (Post, error)
	GetLatestPostByTitleAuthor(ctx context.Context, title, authorID string) (Post, error)
	ListPosts(ctx context.Context, filter ListFilter) (PostPage, error)
	SavePost(ctx context.Context, post Post) error
	DeletePost(ctx context.Context, id string) error
}
