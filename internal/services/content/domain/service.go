// Package domain implements the content access layer: every read and write
// of blog posts goes through it. Reads are cache-aside, writes enforce
// author ownership and a short duplicate-submission window, and cache
// consistency is managed with explicit single-post invalidation plus a
// listing generation counter.
package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/quillhub/quillhub.press/internal/platform/errors"
	"github.com/quillhub/quillhub.press/internal/platform/pagination"
	"github.com/quillhub/quillhub.press/internal/platform/requestctx"
	"github.com/quillhub/quillhub.press/internal/services/content/cache"
	"github.com/quillhub/quillhub.press/internal/services/content/storage"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100

	defaultCacheTTL        = time.Hour
	defaultDuplicateWindow = time.Hour

	// listGenerationKey holds the monotonically increasing listing
	// generation. Every write bumps it; the current value is folded into
	// every listing cache key, so superseded listing entries stop being
	// addressed and age out under their TTL.
	listGenerationKey = "posts:generation"
)

var (
	// ErrServiceNotConfigured indicates the content service is nil.
	ErrServiceNotConfigured = errors.New("content service is not configured")
	// ErrStoreNotConfigured indicates the post store dependency is missing.
	ErrStoreNotConfigured = errors.New("post store is not configured")
	// ErrCacheNotConfigured indicates the cache store dependency is missing.
	ErrCacheNotConfigured = errors.New("cache store is not configured")
	// ErrCallerRequired indicates a write was attempted without an identity.
	ErrCallerRequired = errors.New("caller identity is required")
)

// Config controls content caching and duplicate-suppression behavior.
type Config struct {
	CacheTTL        time.Duration
	DuplicateWindow time.Duration
	Clock           func() time.Time
}

// ListInput identifies one listing request. Page and PageSize are coerced to
// positive values; Tags filters posts whose tag set intersects it.
type ListInput struct {
	Page     int
	PageSize int
	Tags     []string
}

// PostPage is one listing result: the page items plus the total count of
// posts matching the filter.
type PostPage struct {
	Posts []storage.Post
	Total int
}

// CreateInput carries the client-supplied fields for a new post. The author
// is never part of it; it always comes from the authenticated caller.
type CreateInput struct {
	Title   string
	Content string
	Tags    []string
}

// UpdateInput is a partial patch; nil fields are left untouched. The author
// reference is not patchable.
type UpdateInput struct {
	Title   *string
	Content *string
	Tags    *[]string
}

// Service orchestrates post reads through the cache and writes through the
// durable store. It holds no mutable shared state; concurrent correctness
// relies on the store's transactional guarantees and the cache's per-key
// atomicity.
type Service struct {
	posts           storage.PostStore
	cache           cache.Store
	cacheTTL        time.Duration
	duplicateWindow time.Duration
	clock           func() time.Time
	tracer          trace.Tracer
	newID           func() (string, error)
}

// NewService builds a content service from a post store and a cache store.
func NewService(posts storage.PostStore, cacheStore cache.Store, newID func() (string, error), cfg Config) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	duplicateWindow := cfg.DuplicateWindow
	if duplicateWindow <= 0 {
		duplicateWindow = defaultDuplicateWindow
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		posts:           posts,
		cache:           cacheStore,
		cacheTTL:        cacheTTL,
		duplicateWindow: duplicateWindow,
		clock:           clock,
		tracer:          otel.Tracer("quillhub.press/content"),
		newID:           newID,
	}
}

// GetPost returns one post by id, serving from the cache when possible. On a
// miss the post is loaded from the durable store and the cache entry is
// populated with the configured TTL.
func (s *Service) GetPost(ctx context.Context, postID string) (storage.Post, error) {
	if err := s.checkConfigured(); err != nil {
		return storage.Post{}, err
	}
	postID = strings.TrimSpace(postID)
	if postID == "" {
		return storage.Post{}, apperrors.New(apperrors.CodeNotFound, "post not found")
	}

	ctx, span := s.tracer.Start(ctx, "content.GetPost")
	defer span.End()

	key := postCacheKey(postID)
	if payload, ok := s.cachedPayload(ctx, key); ok {
		var post storage.Post
		if err := json.Unmarshal(payload, &post); err == nil {
			return post, nil
		}
		// Undecodable entries are dropped so the next read repopulates.
		_ = s.cache.Delete(ctx, key)
	}

	post, err := s.posts.GetPost(ctx, postID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.Post{}, apperrors.New(apperrors.CodeNotFound, "post not found")
		}
		return storage.Post{}, apperrors.Wrap(apperrors.CodeStoreUnavailable, "load post", err)
	}

	s.putCachedPayload(ctx, key, post)
	return post, nil
}

// ListPosts returns one page of posts ordered by creation time descending,
// serving from the cache when possible. Invalid page and page-size values
// fall back to defaults rather than failing; an empty result is a valid
// page with total zero.
func (s *Service) ListPosts(ctx context.Context, input ListInput) (PostPage, error) {
	if err := s.checkConfigured(); err != nil {
		return PostPage{}, err
	}

	ctx, span := s.tracer.Start(ctx, "content.ListPosts")
	defer span.End()

	page := pagination.ClampPage(input.Page)
	pageSize := pagination.ClampPageSize(input.PageSize, pagination.PageSizeConfig{
		Default: defaultPageSize,
		Max:     maxPageSize,
	})
	tags := normalizeTags(input.Tags)

	// A cache failure here degrades the whole listing to a store read; the
	// generation read and the entry read share the same availability.
	key, cacheUsable := s.listCacheKey(ctx, page, pageSize, tags)
	if cacheUsable {
		if payload, ok := s.cachedPayload(ctx, key); ok {
			var cached PostPage
			if err := json.Unmarshal(payload, &cached); err == nil {
				return cached, nil
			}
			_ = s.cache.Delete(ctx, key)
		}
	}

	result, err := s.posts.ListPosts(ctx, storage.ListFilter{
		Tags:   tags,
		Offset: pagination.Offset(page, pageSize),
		Limit:  pageSize,
	})
	if err != nil {
		return PostPage{}, apperrors.Wrap(apperrors.CodeStoreUnavailable, "list posts", err)
	}

	listed := PostPage{Posts: result.Posts, Total: result.Total}
	if cacheUsable {
		s.putCachedPayload(ctx, key, listed)
	}
	return listed, nil
}

// CreatePost persists a new post authored by the caller.
//
// Duplicate suppression: a post with the same title by the same author
// created within the duplicate window is returned unchanged instead of
// inserting a second row. The check-then-insert sequence has no cross-request
// isolation, so two near-simultaneous identical creates can still both
// insert; that is an accepted limitation of the heuristic.
func (s *Service) CreatePost(ctx context.Context, input CreateInput, caller requestctx.Principal) (storage.Post, error) {
	if err := s.checkConfigured(); err != nil {
		return storage.Post{}, err
	}
	if strings.TrimSpace(caller.ID) == "" {
		return storage.Post{}, ErrCallerRequired
	}

	ctx, span := s.tracer.Start(ctx, "content.CreatePost")
	defer span.End()

	title := strings.TrimSpace(input.Title)

	existing, err := s.posts.GetLatestPostByTitleAuthor(ctx, title, caller.ID)
	switch {
	case err == nil:
		if s.nowUTC().Sub(existing.CreatedAt) < s.duplicateWindow {
			log.Printf("post creation skipped: duplicate title %q for author %s within window", title, caller.ID)
			return existing, nil
		}
	case errors.Is(err, storage.ErrNotFound):
		// No prior post with this title; proceed with the insert.
	default:
		return storage.Post{}, apperrors.Wrap(apperrors.CodeStoreUnavailable, "check duplicate post", err)
	}

	postID, err := s.newID()
	if err != nil {
		return storage.Post{}, fmt.Errorf("generate post id: %w", err)
	}

	now := s.nowUTC()
	post := storage.Post{
		ID:        postID,
		Title:     title,
		Content:   input.Content,
		Tags:      cloneTags(input.Tags),
		AuthorID:  caller.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.posts.PutPost(ctx, post); err != nil {
		return storage.Post{}, apperrors.Wrap(apperrors.CodeStoreUnavailable, "insert post", err)
	}

	// The single-post cache entry is populated lazily on first read, but
	// cached listings must stop being addressed so the new post shows up.
	if _, err := s.cache.Incr(ctx, listGenerationKey); err != nil {
		return storage.Post{}, apperrors.Wrap(apperrors.CodeCacheUnavailable, "bump listing generation", err)
	}
	return post, nil
}

// UpdatePost applies a partial patch to one post owned by the caller (or any
// post for an admin) and invalidates the affected cache entries.
//
// Callers without rights to the post receive the same not-found failure as a
// missing id, so the post's existence is not revealed.
func (s *Service) UpdatePost(ctx context.Context, postID string, patch UpdateInput, caller requestctx.Principal) (storage.Post, error) {
	if err := s.checkConfigured(); err != nil {
		return storage.Post{}, err
	}
	if strings.TrimSpace(caller.ID) == "" {
		return storage.Post{}, ErrCallerRequired
	}

	ctx, span := s.tracer.Start(ctx, "content.UpdatePost")
	defer span.End()

	post, err := s.GetPost(ctx, postID)
	if err != nil {
		return storage.Post{}, err
	}
	if !caller.IsAdmin() && post.AuthorID != caller.ID {
		return storage.Post{}, apperrors.New(apperrors.CodeNotFound, "post not found")
	}

	if patch.Title != nil {
		post.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Content != nil {
		post.Content = *patch.Content
	}
	if patch.Tags != nil {
		post.Tags = cloneTags(*patch.Tags)
	}
	post.UpdatedAt = s.nowUTC()

	if err := s.posts.SavePost(ctx, post); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.Post{}, apperrors.New(apperrors.CodeNotFound, "post not found")
		}
		return storage.Post{}, apperrors.Wrap(apperrors.CodeStoreUnavailable, "save post", err)
	}

	if err := s.invalidatePost(ctx, post.ID); err != nil {
		return storage.Post{}, err
	}
	return post, nil
}

// DeletePost removes one post owned by the caller (or any post for an
// admin) and invalidates the affected cache entries. Authorization failures
// are folded into not-found, consistently with UpdatePost.
func (s *Service) DeletePost(ctx context.Context, postID string, caller requestctx.Principal) error {
	if err := s.checkConfigured(); err != nil {
		return err
	}
	if strings.TrimSpace(caller.ID) == "" {
		return ErrCallerRequired
	}

	ctx, span := s.tracer.Start(ctx, "content.DeletePost")
	defer span.End()

	post, err := s.GetPost(ctx, postID)
	if err != nil {
		return err
	}
	if !caller.IsAdmin() && post.AuthorID != caller.ID {
		return apperrors.New(apperrors.CodeNotFound, "post not found")
	}

	if err := s.posts.DeletePost(ctx, post.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.New(apperrors.CodeNotFound, "post not found")
		}
		return apperrors.Wrap(apperrors.CodeStoreUnavailable, "delete post", err)
	}

	return s.invalidatePost(ctx, post.ID)
}

// invalidatePost drops the single-post entry and bumps the listing
// generation after a committed write. Failures surface as cache errors: the
// durable write has already happened, and the caller must learn that cached
// reads may be stale until TTL expiry.
func (s *Service) invalidatePost(ctx context.Context, postID string) error {
	if err := s.cache.Delete(ctx, postCacheKey(postID)); err != nil {
		return apperrors.Wrap(apperrors.CodeCacheUnavailable, "invalidate post entry", err)
	}
	if _, err := s.cache.Incr(ctx, listGenerationKey); err != nil {
		return apperrors.Wrap(apperrors.CodeCacheUnavailable, "bump listing generation", err)
	}
	return nil
}

// cachedPayload reads one cache entry. Read-path cache failures degrade to a
// miss so the durable store stays reachable.
func (s *Service) cachedPayload(ctx context.Context, key string) ([]byte, bool) {
	payload, found, err := s.cache.Get(ctx, key)
	if err != nil || !found {
		return nil, false
	}
	if len(payload) == 0 {
		return nil, false
	}
	return payload, true
}

// putCachedPayload populates one cache entry best-effort; a failed
// population only costs the next read a store round trip.
func (s *Service) putCachedPayload(ctx context.Context, key string, value any) {
	payload, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = s.cache.Set(ctx, key, payload, s.cacheTTL)
}

// listCacheKey folds the current listing generation into the key. When the
// generation cannot be read the cache is skipped for this request.
func (s *Service) listCacheKey(ctx context.Context, page, pageSize int, tags []string) (string, bool) {
	generation, err := s.cache.Counter(ctx, listGenerationKey)
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("posts:g%d:p%d:n%d:t:%s", generation, page, pageSize, strings.Join(tags, ",")), true
}

func (s *Service) checkConfigured() error {
	if s == nil {
		return ErrServiceNotConfigured
	}
	if s.posts == nil {
		return ErrStoreNotConfigured
	}
	if s.cache == nil {
		return ErrCacheNotConfigured
	}
	if s.newID == nil {
		return errors.New("id generator is not configured")
	}
	return nil
}

func (s *Service) nowUTC() time.Time {
	if s == nil || s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock().UTC()
}

func postCacheKey(postID string) string {
	return "post:id:" + strings.TrimSpace(postID)
}

// normalizeTags trims, drops empties, sorts, and deduplicates the filter so
// equivalent filters derive the same cache key regardless of tag order.
func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	cleaned := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		cleaned = append(cleaned, tag)
	}
	if len(cleaned) == 0 {
		return nil
	}
	sort.Strings(cleaned)
	unique := cleaned[:1]
	for _, tag := range cleaned[1:] {
		if tag != unique[len(unique)-1] {
			unique = append(unique, tag)
		}
	}
	return unique
}

// cloneTags protects stored state from caller mutation while preserving tag
// order and duplicates, which are permitted at the data-model level.
func cloneTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	result := make([]string, len(tags))
	copy(result, tags)
	return result
}
