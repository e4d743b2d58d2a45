package sqlite

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/quillhub/quillhub.press/internal/services/content/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir() + "/content.db")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestPostRoundTrip(t *testing.T) {
	store := openTestStore(t)

	now := time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC)
	want := storage.Post{
		ID:        "post-1",
		Title:     "First light",
		Content:   "A longer body of text.",
		Tags:      []string{"go", "releases"},
		AuthorID:  "user-1",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := store.PutPost(context.Background(), want); err != nil {
		t.Fatalf("put post: %v", err)
	}

	got, err := store.GetPost(context.Background(), "post-1")
	if err != nil {
		t.Fatalf("get post: %v", err)
	}
	if got.Title != want.Title || got.Content != want.Content {
		t.Fatalf("post = %+v, want %+v", got, want)
	}
	if got.AuthorID != "user-1" {
		t.Fatalf("author_id = %q, want user-1", got.AuthorID)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "go" || got.Tags[1] != "releases" {
		t.Fatalf("tags = %v, want [go releases]", got.Tags)
	}
	if !got.CreatedAt.Equal(now) {
		t.Fatalf("created_at = %v, want %v", got.CreatedAt, now)
	}
}

func TestGetPostNotFound(t *testing.T) {
	store := openTestStore(t)

	_, err := store.GetPost(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("get missing post err = %v, want ErrNotFound", err)
	}
}

func TestGetLatestPostByTitleAuthor(t *testing.T) {
	store := openTestStore(t)

	base := time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"post-old", "post-new"} {
		post := storage.Post{
			ID:        id,
			Title:     "Same title",
			Content:   "body",
			AuthorID:  "user-1",
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
			UpdatedAt: base.Add(time.Duration(i) * time.Hour),
		}
		if err := store.PutPost(context.Background(), post); err != nil {
			t.Fatalf("put post %s: %v", id, err)
		}
	}

	got, err := store.GetLatestPostByTitleAuthor(context.Background(), "Same title", "user-1")
	if err != nil {
		t.Fatalf("get latest: %v", err)
	}
	if got.ID != "post-new" {
		t.Fatalf("latest id = %q, want post-new", got.ID)
	}

	if _, err := store.GetLatestPostByTitleAuthor(context.Background(), "Same title", "user-2"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("other author err = %v, want ErrNotFound", err)
	}
}

func TestListPostsPagination(t *testing.T) {
	store := openTestStore(t)

	base := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 25; i++ {
		post := storage.Post{
			ID:        fmt.Sprintf("post-%02d", i),
			Title:     fmt.Sprintf("Post %02d", i),
			Content:   "body",
			AuthorID:  "user-1",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			UpdatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.PutPost(context.Background(), post); err != nil {
			t.Fatalf("put post %d: %v", i, err)
		}
	}

	pageOne, err := store.ListPosts(context.Background(), storage.ListFilter{Offset: 0, Limit: 10})
	if err != nil {
		t.Fatalf("list page 1: %v", err)
	}
	if pageOne.Total != 25 {
		t.Fatalf("total = %d, want 25", pageOne.Total)
	}
	if len(pageOne.Posts) != 10 {
		t.Fatalf("page 1 len = %d, want 10", len(pageOne.Posts))
	}
	if pageOne.Posts[0].ID != "post-24" {
		t.Fatalf("page 1 first id = %q, want post-24 (newest first)", pageOne.Posts[0].ID)
	}

	pageTwo, err := store.ListPosts(context.Background(), storage.ListFilter{Offset: 10, Limit: 10})
	if err != nil {
		t.Fatalf("list page 2: %v", err)
	}
	if pageTwo.Total != 25 {
		t.Fatalf("page 2 total = %d, want 25", pageTwo.Total)
	}
	if len(pageTwo.Posts) != 10 {
		t.Fatalf("page 2 len = %d, want 10", len(pageTwo.Posts))
	}
	seen := make(map[string]struct{})
	for _, post := range pageOne.Posts {
		seen[post.ID] = struct{}{}
	}
	for _, post := range pageTwo.Posts {
		if _, ok := seen[post.ID]; ok {
			t.Fatalf("post %q appears on both pages", post.ID)
		}
	}

	empty, err := store.ListPosts(context.Background(), storage.ListFilter{Offset: 980, Limit: 10})
	if err != nil {
		t.Fatalf("list far page: %v", err)
	}
	if len(empty.Posts) != 0 {
		t.Fatalf("far page len = %d, want 0", len(empty.Posts))
	}
	if empty.Total != 25 {
		t.Fatalf("far page total = %d, want 25", empty.Total)
	}
}

func TestListPostsTagFilter(t *testing.T) {
	store := openTestStore(t)

	base := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	posts := []storage.Post{
		{ID: "post-a", Tags: []string{"a"}},
		{ID: "post-b", Tags: []string{"b"}},
		{ID: "post-ab", Tags: []string{"a", "b"}},
	}
	for i, post := range posts {
		post.Title = post.ID
		post.Content = "body"
		post.AuthorID = "user-1"
		post.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		post.UpdatedAt = post.CreatedAt
		if err := store.PutPost(context.Background(), post); err != nil {
			t.Fatalf("put post %s: %v", post.ID, err)
		}
	}

	page, err := store.ListPosts(context.Background(), storage.ListFilter{Tags: []string{"a"}, Limit: 10})
	if err != nil {
		t.Fatalf("list filtered: %v", err)
	}
	if page.Total != 2 {
		t.Fatalf("filtered total = %d, want 2", page.Total)
	}
	if len(page.Posts) != 2 {
		t.Fatalf("filtered len = %d, want 2", len(page.Posts))
	}
	if page.Posts[0].ID != "post-ab" || page.Posts[1].ID != "post-a" {
		t.Fatalf("filtered order = [%s %s], want [post-ab post-a]", page.Posts[0].ID, page.Posts[1].ID)
	}
}

func TestListPostsTagFilterDoesNotMatchSubstrings(t *testing.T) {
	store := openTestStore(t)

	now := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	post := storage.Post{
		ID:        "post-1",
		Title:     "t",
		Content:   "body",
		Tags:      []string{"golang"},
		AuthorID:  "user-1",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := store.PutPost(context.Background(), post); err != nil {
		t.Fatalf("put post: %v", err)
	}

	page, err := store.ListPosts(context.Background(), storage.ListFilter{Tags: []string{"go"}, Limit: 10})
	if err != nil {
		t.Fatalf("list filtered: %v", err)
	}
	if page.Total != 0 {
		t.Fatalf("substring tag matched, total = %d, want 0", page.Total)
	}
}

func TestSavePostUpdatesRow(t *testing.T) {
	store := openTestStore(t)

	now := time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC)
	post := storage.Post{
		ID:        "post-1",
		Title:     "Before",
		Content:   "body",
		AuthorID:  "user-1",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := store.PutPost(context.Background(), post); err != nil {
		t.Fatalf("put post: %v", err)
	}

	post.Title = "After"
	post.Tags = []string{"updated"}
	post.UpdatedAt = now.Add(time.Hour)
	if err := store.SavePost(context.Background(), post); err != nil {
		t.Fatalf("save post: %v", err)
	}

	got, err := store.GetPost(context.Background(), "post-1")
	if err != nil {
		t.Fatalf("get post: %v", err)
	}
	if got.Title != "After" {
		t.Fatalf("title = %q, want After", got.Title)
	}
	if !got.CreatedAt.Equal(now) {
		t.Fatalf("created_at changed on save: %v", got.CreatedAt)
	}
	if !got.UpdatedAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("updated_at = %v, want %v", got.UpdatedAt, now.Add(time.Hour))
	}
}

func TestSaveAndDeleteMissingPost(t *testing.T) {
	store := openTestStore(t)

	err := store.SavePost(context.Background(), storage.Post{ID: "missing", Title: "t"})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("save missing err = %v, want ErrNotFound", err)
	}
	if err := store.DeletePost(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("delete missing err = %v, want ErrNotFound", err)
	}
}

func TestDeletePostRemovesRow(t *testing.T) {
	store := openTestStore(t)

	now := time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC)
	post := storage.Post{ID: "post-1", Title: "t", Content: "body", AuthorID: "user-1", CreatedAt: now, UpdatedAt: now}
	if err := store.PutPost(context.Background(), post); err != nil {
		t.Fatalf("put post: %v", err)
	}
	if err := store.DeletePost(context.Background(), "post-1"); err != nil {
		t.Fatalf("delete post: %v", err)
	}
	if _, err := store.GetPost(context.Background(), "post-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("get deleted err = %v, want ErrNotFound", err)
	}
}
