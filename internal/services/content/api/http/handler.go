// Package http exposes the blog post routes over JSON. Reads are public;
// writes require a bearer token resolved into a principal by the identity
// middleware.
package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/quillhub/quillhub.press/internal/platform/errors"
	"github.com/quillhub/quillhub.press/internal/platform/httpjson"
	"github.com/quillhub/quillhub.press/internal/platform/requestctx"
	"github.com/quillhub/quillhub.press/internal/services/content/domain"
	"github.com/quillhub/quillhub.press/internal/services/content/storage"
	identityhttp "github.com/quillhub/quillhub.press/internal/services/identity/api/http"
)

const (
	minTitleLength   = 3
	minContentLength = 10
)

// Handler serves the blog post routes.
type Handler struct {
	posts *domain.Service
	auth  identityhttp.Middleware
}

// NewHandler builds a content HTTP handler. auth guards the write routes.
func NewHandler(posts *domain.Service, auth identityhttp.Middleware) *Handler {
	return &Handler{posts: posts, auth: auth}
}

// Register mounts the content routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /posts", h.handleListPosts)
	mux.HandleFunc("GET /posts/{id}", h.handleGetPost)
	mux.Handle("POST /posts", h.auth(http.HandlerFunc(h.handleCreatePost)))
	mux.Handle("PATCH /posts/{id}", h.auth(http.HandlerFunc(h.handleUpdatePost)))
	mux.Handle("DELETE /posts/{id}", h.auth(http.HandlerFunc(h.handleDeletePost)))
}

type createPostRequest struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags"`
}

type updatePostRequest struct {
	Title   *string   `json:"title"`
	Content *string   `json:"content"`
	Tags    *[]string `json:"tags"`
}

type postView struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	Tags      []string `json:"tags"`
	AuthorID  string   `json:"author_id"`
	CreatedAt string   `json:"created_at"`
	UpdatedAt string   `json:"updated_at"`
}

type listPostsResponse struct {
	Items []postView `json:"items"`
	Total int        `json:"total"`
}

func (h *Handler) handleGetPost(w http.ResponseWriter, r *http.Request) {
	post, err := h.posts.GetPost(r.Context(), r.PathValue("id"))
	if err != nil {
		httpjson.WriteError(w, err)
		return
	}
	httpjson.Write(w, http.StatusOK, toPostView(post))
}

func (h *Handler) handleListPosts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, _ := strconv.Atoi(query.Get("page"))
	pageSize, _ := strconv.Atoi(query.Get("page_size"))

	result, err := h.posts.ListPosts(r.Context(), domain.ListInput{
		Page:     page,
		PageSize: pageSize,
		Tags:     parseTags(query.Get("tags")),
	})
	if err != nil {
		httpjson.WriteError(w, err)
		return
	}

	items := make([]postView, 0, len(result.Posts))
	for _, post := range result.Posts {
		items = append(items, toPostView(post))
	}
	httpjson.Write(w, http.StatusOK, listPostsResponse{Items: items, Total: result.Total})
}

func (h *Handler) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	caller, ok := requestctx.PrincipalFromContext(r.Context())
	if !ok {
		httpjson.WriteError(w, apperrors.New(apperrors.CodeTokenInvalid, "authentication required"))
		return
	}

	var req createPostRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		httpjson.WriteError(w, err)
		return
	}
	if err := validateTitle(req.Title); err != nil {
		httpjson.WriteError(w, err)
		return
	}
	if err := validateContent(req.Content); err != nil {
		httpjson.WriteError(w, err)
		return
	}

	post, err := h.posts.CreatePost(r.Context(), domain.CreateInput{
		Title:   req.Title,
		Content: req.Content,
		Tags:    req.Tags,
	}, caller)
	if err != nil {
		httpjson.WriteError(w, err)
		return
	}
	httpjson.Write(w, http.StatusCreated, toPostView(post))
}

func (h *Handler) handleUpdatePost(w http.ResponseWriter, r *http.Request) {
	caller, ok := requestctx.PrincipalFromContext(r.Context())
	if !ok {
		httpjson.WriteError(w, apperrors.New(apperrors.CodeTokenInvalid, "authentication required"))
		return
	}

	var req updatePostRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		httpjson.WriteError(w, err)
		return
	}
	if req.Title != nil {
		if err := validateTitle(*req.Title); err != nil {
			httpjson.WriteError(w, err)
			return
		}
	}
	if req.Content != nil {
		if err := validateContent(*req.Content); err != nil {
			httpjson.WriteError(w, err)
			return
		}
	}

	post, err := h.posts.UpdatePost(r.Context(), r.PathValue("id"), domain.UpdateInput{
		Title:   req.Title,
		Content: req.Content,
		Tags:    req.Tags,
	}, caller)
	if err != nil {
		httpjson.WriteError(w, err)
		return
	}
	httpjson.Write(w, http.StatusOK, toPostView(post))
}

func (h *Handler) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	caller, ok := requestctx.PrincipalFromContext(r.Context())
	if !ok {
		httpjson.WriteError(w, apperrors.New(apperrors.CodeTokenInvalid, "authentication required"))
		return
	}

	if err := h.posts.DeletePost(r.Context(), r.PathValue("id"), caller); err != nil {
		httpjson.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func validateTitle(title string) error {
	if utf8.RuneCountInString(strings.TrimSpace(title)) < minTitleLength {
		return apperrors.WithMetadata(apperrors.CodePostTitleInvalid,
			"title is too short",
			map[string]string{"field": "title", "min_length": strconv.Itoa(minTitleLength)})
	}
	return nil
}

func validateContent(content string) error {
	if utf8.RuneCountInString(strings.TrimSpace(content)) < minContentLength {
		return apperrors.WithMetadata(apperrors.CodePostContentInvalid,
			"content is too short",
			map[string]string{"field": "content", "min_length": strconv.Itoa(minContentLength)})
	}
	return nil
}

func parseTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			tags = append(tags, part)
		}
	}
	return tags
}

func toPostView(post storage.Post) postView {
	tags := post.Tags
	if tags == nil {
		tags = []string{}
	}
	return postView{
		ID:        post.ID,
		Title:     post.Title,
		Content:   post.Content,
		Tags:      tags,
		AuthorID:  post.AuthorID,
		CreatedAt: post.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: post.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
