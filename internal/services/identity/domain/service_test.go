package domain

import (
	"context"
	"fmt"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/quillhub/quillhub.press/internal/platform/errors"
	"github.com/quillhub/quillhub.press/internal/platform/requestctx"
	"github.com/quillhub/quillhub.press/internal/services/identity/storage"
)

type fakeStore struct {
	users map[string]storage.User
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: make(map[string]storage.User)}
}

func (f *fakeStore) PutUser(_ context.Context, user storage.User) error {
	for _, existing := range f.users {
		if existing.Email == user.Email {
			return storage.ErrEmailExists
		}
	}
	f.users[user.ID] = user
	return nil
}

func (f *fakeStore) GetUser(_ context.Context, id string) (storage.User, error) {
	user, ok := f.users[id]
	if !ok {
		return storage.User{}, storage.ErrNotFound
	}
	return user, nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (storage.User, error) {
	for _, user := range f.users {
		if user.Email == email {
			return user, nil
		}
	}
	return storage.User{}, storage.ErrNotFound
}

func (f *fakeStore) ListUsers(_ context.Context) ([]storage.User, error) {
	users := make([]storage.User, 0, len(f.users))
	for _, user := range f.users {
		users = append(users, user)
	}
	return users, nil
}

func (f *fakeStore) SaveUser(_ context.Context, user storage.User) error {
	if _, ok := f.users[user.ID]; !ok {
		return storage.ErrNotFound
	}
	f.users[user.ID] = user
	return nil
}

func (f *fakeStore) DeleteUser(_ context.Context, id string) error {
	if _, ok := f.users[id]; !ok {
		return storage.ErrNotFound
	}
	delete(f.users, id)
	return nil
}

func testIDs() func() (string, error) {
	var next int
	return func() (string, error) {
		next++
		return fmt.Sprintf("user-%02d", next), nil
	}
}

func newTestService(store *fakeStore) *Service {
	now := time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC)
	return NewService(store, testIDs(), Config{
		HashCost: bcrypt.MinCost,
		Clock:    func() time.Time { return now },
	})
}

func registerTestUser(t *testing.T, svc *Service, email string) User {
	t.Helper()
	user, err := svc.Register(context.Background(), RegisterInput{
		Email:     email,
		Password:  "correct-horse",
		FirstName: "Ada",
		LastName:  "Lovelace",
	})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return user
}

func asPrincipal(user User) requestctx.Principal {
	return requestctx.Principal{ID: user.ID, Email: user.Email, Role: user.Role}
}

func promoteToAdmin(t *testing.T, store *fakeStore, user User) requestctx.Principal {
	t.Helper()
	record := store.users[user.ID]
	record.Role = string(requestctx.RoleAdmin)
	store.users[user.ID] = record
	return requestctx.Principal{ID: user.ID, Email: user.Email, Role: requestctx.RoleAdmin}
}

func TestRegisterForcesEditorRole(t *testing.T) {
	svc := newTestService(newFakeStore())

	user := registerTestUser(t, svc, "ada@example.com")
	if user.Role != requestctx.RoleEditor {
		t.Fatalf("role = %q, want editor", user.Role)
	}
	if user.ID == "" {
		t.Fatal("expected a generated id")
	}
}

func TestRegisterNormalizesEmail(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	user := registerTestUser(t, svc, "  Ada@Example.COM ")
	if user.Email != "ada@example.com" {
		t.Fatalf("email = %q, want normalized", user.Email)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := newTestService(newFakeStore())

	registerTestUser(t, svc, "ada@example.com")
	_, err := svc.Register(context.Background(), RegisterInput{
		Email:    "ADA@example.com",
		Password: "correct-horse",
	})
	if apperrors.CodeOf(err) != apperrors.CodeEmailExists {
		t.Fatalf("code = %v, want %v", apperrors.CodeOf(err), apperrors.CodeEmailExists)
	}
}

func TestRegisterRejectsBadInput(t *testing.T) {
	svc := newTestService(newFakeStore())

	_, err := svc.Register(context.Background(), RegisterInput{Email: "not-an-email", Password: "correct-horse"})
	if apperrors.CodeOf(err) != apperrors.CodeUserEmailInvalid {
		t.Fatalf("email code = %v, want %v", apperrors.CodeOf(err), apperrors.CodeUserEmailInvalid)
	}

	_, err = svc.Register(context.Background(), RegisterInput{Email: "ada@example.com", Password: "short"})
	if apperrors.CodeOf(err) != apperrors.CodeUserPasswordInvalid {
		t.Fatalf("password code = %v, want %v", apperrors.CodeOf(err), apperrors.CodeUserPasswordInvalid)
	}
}

func TestAuthenticate(t *testing.T) {
	svc := newTestService(newFakeStore())
	registered := registerTestUser(t, svc, "ada@example.com")

	user, err := svc.Authenticate(context.Background(), "ada@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if user.ID != registered.ID {
		t.Fatalf("id = %q, want %q", user.ID, registered.ID)
	}
}

func TestAuthenticateWrongPassword(t *testing.T) {
	svc := newTestService(newFakeStore())
	registerTestUser(t, svc, "ada@example.com")

	_, err := svc.Authenticate(context.Background(), "ada@example.com", "wrong-password")
	if apperrors.CodeOf(err) != apperrors.CodeCredentialsInvalid {
		t.Fatalf("code = %v, want %v", apperrors.CodeOf(err), apperrors.CodeCredentialsInvalid)
	}
}

func TestAuthenticateUnknownEmailMatchesWrongPassword(t *testing.T) {
	svc := newTestService(newFakeStore())
	registerTestUser(t, svc, "ada@example.com")

	_, unknownErr := svc.Authenticate(context.Background(), "ghost@example.com", "correct-horse")
	_, wrongErr := svc.Authenticate(context.Background(), "ada@example.com", "wrong-password")
	if apperrors.CodeOf(unknownErr) != apperrors.CodeOf(wrongErr) {
		t.Fatalf("codes differ: %v vs %v", apperrors.CodeOf(unknownErr), apperrors.CodeOf(wrongErr))
	}
}

func TestUpdateUserSelf(t *testing.T) {
	svc := newTestService(newFakeStore())
	user := registerTestUser(t, svc, "ada@example.com")

	name := "Augusta"
	updated, err := svc.UpdateUser(context.Background(), user.ID, UpdateInput{FirstName: &name}, asPrincipal(user))
	if err != nil {
		t.Fatalf("update self: %v", err)
	}
	if updated.FirstName != "Augusta" {
		t.Fatalf("first name = %q, want Augusta", updated.FirstName)
	}
}

func TestUpdateUserRoleRequiresAdmin(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	user := registerTestUser(t, svc, "ada@example.com")

	role := requestctx.RoleAdmin
	_, err := svc.UpdateUser(context.Background(), user.ID, UpdateInput{Role: &role}, asPrincipal(user))
	if apperrors.CodeOf(err) != apperrors.CodePermissionDenied {
		t.Fatalf("self promotion code = %v, want %v", apperrors.CodeOf(err), apperrors.CodePermissionDenied)
	}

	other := registerTestUser(t, svc, "grace@example.com")
	admin := promoteToAdmin(t, store, other)
	updated, err := svc.UpdateUser(context.Background(), user.ID, UpdateInput{Role: &role}, admin)
	if err != nil {
		t.Fatalf("admin promotion: %v", err)
	}
	if updated.Role != requestctx.RoleAdmin {
		t.Fatalf("role = %q, want admin", updated.Role)
	}
}

func TestUpdateOtherUserRequiresAdmin(t *testing.T) {
	svc := newTestService(newFakeStore())
	user := registerTestUser(t, svc, "ada@example.com")
	other := registerTestUser(t, svc, "grace@example.com")

	name := "Hacked"
	_, err := svc.UpdateUser(context.Background(), user.ID, UpdateInput{FirstName: &name}, asPrincipal(other))
	if apperrors.CodeOf(err) != apperrors.CodePermissionDenied {
		t.Fatalf("code = %v, want %v", apperrors.CodeOf(err), apperrors.CodePermissionDenied)
	}
}

func TestDeleteUser(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)
	user := registerTestUser(t, svc, "ada@example.com")
	other := registerTestUser(t, svc, "grace@example.com")

	if err := svc.DeleteUser(context.Background(), user.ID, asPrincipal(other)); apperrors.CodeOf(err) != apperrors.CodePermissionDenied {
		t.Fatalf("non-admin delete code = %v, want %v", apperrors.CodeOf(err), apperrors.CodePermissionDenied)
	}

	if err := svc.DeleteUser(context.Background(), user.ID, asPrincipal(user)); err != nil {
		t.Fatalf("self delete: %v", err)
	}
	if _, ok := store.users[user.ID]; ok {
		t.Fatal("user still stored after delete")
	}
}

func TestGetUserNeverExposesHash(t *testing.T) {
	svc := newTestService(newFakeStore())
	registered := registerTestUser(t, svc, "ada@example.com")

	user, err := svc.GetUser(context.Background(), registered.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	// The domain User type has no hash field; assert the visible fields only.
	if user.Email != "ada@example.com" || user.Role != requestctx.RoleEditor {
		t.Fatalf("user = %+v", user)
	}
}

func TestListUsers(t *testing.T) {
	svc := newTestService(newFakeStore())
	registerTestUser(t, svc, "ada@example.com")
	registerTestUser(t, svc, "grace@example.com")

	users, err := svc.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("users = %d, want 2", len(users))
	}
}
