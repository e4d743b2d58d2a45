// Package http exposes account registration, login, and user administration
// over JSON, plus the bearer-token middleware used by every protected route.
package http

import (
	"net/http"
	"time"

	apperrors "github.com/quillhub/quillhub.press/internal/platform/errors"
	"github.com/quillhub/quillhub.press/internal/platform/httpjson"
	"github.com/quillhub/quillhub.press/internal/platform/requestctx"
	"github.com/quillhub/quillhub.press/internal/services/identity/domain"
	"github.com/quillhub/quillhub.press/internal/services/identity/token"
)

// Handler serves the identity routes.
type Handler struct {
	users  *domain.Service
	tokens *token.Issuer
}

// NewHandler builds an identity HTTP handler.
func NewHandler(users *domain.Service, tokens *token.Issuer) *Handler {
	return &Handler{users: users, tokens: tokens}
}

// Register mounts the identity routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	auth := RequireAuth(h.tokens)
	admin := RequireAdmin(h.tokens)

	mux.HandleFunc("POST /auth/register", h.handleRegister)
	mux.HandleFunc("POST /auth/login", h.handleLogin)
	mux.Handle("GET /users", admin(http.HandlerFunc(h.handleListUsers)))
	mux.Handle("GET /users/{id}", admin(http.HandlerFunc(h.handleGetUser)))
	mux.Handle("PATCH /users/{id}", auth(http.HandlerFunc(h.handleUpdateUser)))
	mux.Handle("DELETE /users/{id}", auth(http.HandlerFunc(h.handleDeleteUser)))
}

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	AccessToken string   `json:"access_token"`
	User        userView `json:"user"`
}

type userView struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type updateUserRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Role      *string `json:"role"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		httpjson.WriteError(w, err)
		return
	}

	user, err := h.users.Register(r.Context(), domain.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		httpjson.WriteError(w, err)
		return
	}

	signed, err := h.tokens.Mint(principalOf(user))
	if err != nil {
		httpjson.WriteError(w, err)
		return
	}
	httpjson.Write(w, http.StatusCreated, authResponse{AccessToken: signed, User: toUserView(user)})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		httpjson.WriteError(w, err)
		return
	}

	user, err := h.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		httpjson.WriteError(w, err)
		return
	}

	signed, err := h.tokens.Mint(principalOf(user))
	if err != nil {
		httpjson.WriteError(w, err)
		return
	}
	httpjson.Write(w, http.StatusOK, authResponse{AccessToken: signed, User: toUserView(user)})
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListUsers(r.Context())
	if err != nil {
		httpjson.WriteError(w, err)
		return
	}
	views := make([]userView, 0, len(users))
	for _, user := range users {
		views = append(views, toUserView(user))
	}
	httpjson.Write(w, http.StatusOK, map[string]any{"items": views})
}

func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetUser(r.Context(), r.PathValue("id"))
	if err != nil {
		httpjson.WriteError(w, err)
		return
	}
	httpjson.Write(w, http.StatusOK, toUserView(user))
}

func (h *Handler) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	caller, ok := requestctx.PrincipalFromContext(r.Context())
	if !ok {
		httpjson.WriteError(w, apperrors.New(apperrors.CodeTokenInvalid, "authentication required"))
		return
	}

	var req updateUserRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		httpjson.WriteError(w, err)
		return
	}
	patch := domain.UpdateInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
	}
	if req.Role != nil {
		role := requestctx.Role(*req.Role)
		patch.Role = &role
	}

	user, err := h.users.UpdateUser(r.Context(), r.PathValue("id"), patch, caller)
	if err != nil {
		httpjson.WriteError(w, err)
		return
	}
	httpjson.Write(w, http.StatusOK, toUserView(user))
}

func (h *Handler) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	caller, ok := requestctx.PrincipalFromContext(r.Context())
	if !ok {
		httpjson.WriteError(w, apperrors.New(apperrors.CodeTokenInvalid, "authentication required"))
		return
	}

	if err := h.users.DeleteUser(r.Context(), r.PathValue("id"), caller); err != nil {
		httpjson.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func principalOf(user domain.User) requestctx.Principal {
	return requestctx.Principal{ID: user.ID, Email: user.Email, Role: user.Role}
}

func toUserView(user domain.User) userView {
	return userView{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Role:      string(user.Role),
		CreatedAt: user.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: user.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
