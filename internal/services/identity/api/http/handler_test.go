package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/quillhub/quillhub.press/internal/platform/id"
	"github.com/quillhub/quillhub.press/internal/platform/requestctx"
	"github.com/quillhub/quillhub.press/internal/services/identity/domain"
	"github.com/quillhub/quillhub.press/internal/services/identity/storage/sqlite"
	"github.com/quillhub/quillhub.press/internal/services/identity/token"
)

type testEnv struct {
	mux    *http.ServeMux
	store  *sqlite.Store
	tokens *token.Issuer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := sqlite.Open(t.TempDir() + "/identity.db")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	tokens, err := token.NewIssuer(token.Config{Secret: "test-secret"})
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}

	users := domain.NewService(store, id.NewID, domain.Config{HashCost: bcrypt.MinCost})
	mux := http.NewServeMux()
	NewHandler(users, tokens).Register(mux)
	return &testEnv{mux: mux, store: store, tokens: tokens}
}

func (env *testEnv) do(t *testing.T, method, path, body, authorization string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	recorder := httptest.NewRecorder()
	env.mux.ServeHTTP(recorder, req)
	return recorder
}

func registerUser(t *testing.T, env *testEnv, email string) authResponse {
	t.Helper()
	body := `{"email":"` + email + `","password":"correct-horse","first_name":"Ada","last_name":"Lovelace"}`
	recorder := env.do(t, http.MethodPost, "/auth/register", body, "")
	if recorder.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body %s", recorder.Code, recorder.Body.String())
	}
	var response authResponse
	if err := json.NewDecoder(recorder.Body).Decode(&response); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	return response
}

func adminBearer(t *testing.T, env *testEnv) string {
	t.Helper()
	registered := registerUser(t, env, "admin@example.com")
	signed, err := env.tokens.Mint(requestctx.Principal{
		ID:    registered.User.ID,
		Email: registered.User.Email,
		Role:  requestctx.RoleAdmin,
	})
	if err != nil {
		t.Fatalf("mint admin token: %v", err)
	}
	return "Bearer " + signed
}

func TestRegisterIssuesToken(t *testing.T) {
	env := newTestEnv(t)

	response := registerUser(t, env, "ada@example.com")
	if response.AccessToken == "" {
		t.Fatal("expected an access token")
	}
	if response.User.Role != "editor" {
		t.Fatalf("role = %q, want editor", response.User.Role)
	}
	if strings.Contains(response.User.Email, "Hash") {
		t.Fatal("response leaked hash material")
	}

	principal, err := env.tokens.Verify(response.AccessToken)
	if err != nil {
		t.Fatalf("verify minted token: %v", err)
	}
	if principal.ID != response.User.ID {
		t.Fatalf("token subject = %q, want %q", principal.ID, response.User.ID)
	}
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	env := newTestEnv(t)
	registerUser(t, env, "ada@example.com")

	recorder := env.do(t, http.MethodPost, "/auth/register",
		`{"email":"ada@example.com","password":"correct-horse"}`, "")
	if recorder.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", recorder.Code)
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	registerUser(t, env, "ada@example.com")

	recorder := env.do(t, http.MethodPost, "/auth/login",
		`{"email":"ada@example.com","password":"correct-horse"}`, "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", recorder.Code, recorder.Body.String())
	}
	var response authResponse
	if err := json.NewDecoder(recorder.Body).Decode(&response); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if response.AccessToken == "" {
		t.Fatal("expected an access token")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	registerUser(t, env, "ada@example.com")

	recorder := env.do(t, http.MethodPost, "/auth/login",
		`{"email":"ada@example.com","password":"wrong-password"}`, "")
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", recorder.Code)
	}
}

func TestListUsersRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	registered := registerUser(t, env, "ada@example.com")

	recorder := env.do(t, http.MethodGet, "/users", "", "")
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous status = %d, want 401", recorder.Code)
	}

	recorder = env.do(t, http.MethodGet, "/users", "", "Bearer "+registered.AccessToken)
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("editor status = %d, want 403", recorder.Code)
	}
}

func TestListUsersAsAdmin(t *testing.T) {
	env := newTestEnv(t)
	registerUser(t, env, "ada@example.com")
	auth := adminBearer(t, env)

	recorder := env.do(t, http.MethodGet, "/users", "", auth)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", recorder.Code, recorder.Body.String())
	}
	var response struct {
		Items []userView `json:"items"`
	}
	if err := json.NewDecoder(recorder.Body).Decode(&response); err != nil {
		t.Fatalf("decode list response: %v", err)
	}
	if len(response.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(response.Items))
	}
	if strings.Contains(recorder.Body.String(), "password") {
		t.Fatal("list response leaked password material")
	}
}

func TestUpdateOwnProfile(t *testing.T) {
	env := newTestEnv(t)
	registered := registerUser(t, env, "ada@example.com")

	recorder := env.do(t, http.MethodPatch, "/users/"+registered.User.ID,
		`{"first_name":"Augusta"}`, "Bearer "+registered.AccessToken)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", recorder.Code, recorder.Body.String())
	}
	var view userView
	if err := json.NewDecoder(recorder.Body).Decode(&view); err != nil {
		t.Fatalf("decode update response: %v", err)
	}
	if view.FirstName != "Augusta" {
		t.Fatalf("first_name = %q, want Augusta", view.FirstName)
	}
}

func TestSelfPromotionForbidden(t *testing.T) {
	env := newTestEnv(t)
	registered := registerUser(t, env, "ada@example.com")

	recorder := env.do(t, http.MethodPatch, "/users/"+registered.User.ID,
		`{"role":"admin"}`, "Bearer "+registered.AccessToken)
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", recorder.Code)
	}
}

func TestDeleteUser(t *testing.T) {
	env := newTestEnv(t)
	registered := registerUser(t, env, "ada@example.com")
	auth := adminBearer(t, env)

	recorder := env.do(t, http.MethodDelete, "/users/"+registered.User.ID, "", auth)
	if recorder.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", recorder.Code)
	}
	recorder = env.do(t, http.MethodGet, "/users/"+registered.User.ID, "", auth)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d, want 404", recorder.Code)
	}
}
