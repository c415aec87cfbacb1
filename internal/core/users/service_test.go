package users

import (
	"context"
	"fmt"
	"testing"

	"Snapfeed/internal/core/documents"
	"Snapfeed/internal/db/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupUserService(t *testing.T) (UserService, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	return NewUserService(store, documents.DefaultCollections(), nil), store
}

func TestCreateUser(t *testing.T) {
	svc, store := setupUserService(t)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, NewUser{
		AccountID: " acc-1 ",
		Name:      "Ann Lee",
		Username:  "AnnLee",
		Email:     "Ann@Example.com",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "acc-1", user.AccountID)
	assert.Equal(t, "annlee", user.Username)
	assert.Equal(t, "ann@example.com", user.Email)
	assert.Empty(t, user.Bio)
	assert.Equal(t, 1, store.Len("users"))
}

func TestCreateUser_Validation(t *testing.T) {
	tests := []struct {
		name  string
		req   NewUser
		field string
	}{
		{"missing account", NewUser{Name: "A", Username: "ann", Email: "a@b.co"}, "accountId"},
		{"missing name", NewUser{AccountID: "acc", Username: "ann", Email: "a@b.co"}, "name"},
		{"short username", NewUser{AccountID: "acc", Name: "A", Username: "a", Email: "a@b.co"}, "username"},
		{"bad username chars", NewUser{AccountID: "acc", Name: "A", Username: "ann lee", Email: "a@b.co"}, "username"},
		{"bad email", NewUser{AccountID: "acc", Name: "A", Username: "ann", Email: "nope"}, "email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := setupUserService(t)
			_, err := svc.CreateUser(context.Background(), tt.req)
			require.Error(t, err)

			var valErr *ValidationError
			require.ErrorAs(t, err, &valErr)
			assert.Equal(t, tt.field, valErr.Field)
			assert.Equal(t, 0, store.Calls(memory.OpList, "users"), "validation runs before any store call")
		})
	}
}

func TestCreateUser_UsernameTaken(t *testing.T) {
	svc, _ := setupUserService(t)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, NewUser{AccountID: "a1", Name: "Ann", Username: "ann", Email: "a@x.io"})
	require.NoError(t, err)

	_, err = svc.CreateUser(ctx, NewUser{AccountID: "a2", Name: "Other Ann", Username: "ANN", Email: "b@x.io"})
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestGetCurrentUser(t *testing.T) {
	svc, store := setupUserService(t)
	ctx := context.Background()

	store.Insert("users", &documents.Document{ID: "u1", Fields: map[string]any{"accountId": "acc-1"}})
	store.Insert("users", &documents.Document{ID: "u2", Fields: map[string]any{"accountId": "acc-2", "name": "Bo"}})
	store.Insert("saves", &documents.Document{ID: "s1", Fields: map[string]any{
		"user": "u1",
		"post": map[string]any{"$id": "p1", "caption": "partial"},
	}})
	store.Insert("saves", &documents.Document{ID: "s2", Fields: map[string]any{"user": "u2", "post": "p2"}})
	store.Insert("saves", &documents.Document{ID: "s3", Fields: map[string]any{"user": "u1"}})

	user, err := svc.GetCurrentUser(ctx, "acc-1")
	require.NoError(t, err)

	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, UnknownName, user.Name)
	assert.Empty(t, user.Email)
	assert.Empty(t, user.ImageURL)
	assert.Equal(t, []SaveRecord{{ID: "s1", UserID: "u1", PostID: "p1"}}, user.Saves)

	rec, ok := user.SavedRecordFor("p1")
	assert.True(t, ok)
	assert.Equal(t, "s1", rec.ID)

	_, ok = user.SavedRecordFor("p2")
	assert.False(t, ok)
}

func TestGetCurrentUser_LoadsEverySavePage(t *testing.T) {
	svc, store := setupUserService(t)
	ctx := context.Background()

	store.Insert("users", &documents.Document{ID: "u1", Fields: map[string]any{"accountId": "acc-1"}})
	for i := range 2*documents.MaxLimit + 5 {
		store.Insert("saves", &documents.Document{ID: fmt.Sprintf("s%03d", i), Fields: map[string]any{
			"user": "u1",
			"post": fmt.Sprintf("p%03d", i),
		}})
	}
	store.Insert("saves", &documents.Document{ID: "other", Fields: map[string]any{"user": "u2", "post": "p000"}})

	user, err := svc.GetCurrentUser(ctx, "acc-1")
	require.NoError(t, err)

	assert.Len(t, user.Saves, 2*documents.MaxLimit+5)
	rec, ok := user.SavedRecordFor("p204")
	require.True(t, ok)
	assert.Equal(t, "s204", rec.ID)
	assert.Equal(t, 4, store.Calls(memory.OpList, "saves"), "three non-empty pages and the terminating empty one")
}

func TestGetCurrentUser_NotFound(t *testing.T) {
	svc, _ := setupUserService(t)

	_, err := svc.GetCurrentUser(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestGetUser(t *testing.T) {
	svc, store := setupUserService(t)
	ctx := context.Background()
	store.Insert("users", &documents.Document{ID: "u1", Fields: map[string]any{"name": "Ann", "bio": "hi"}})

	user, err := svc.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ann", user.Name)
	assert.Equal(t, "hi", user.Bio)
	assert.Empty(t, user.Saves)

	_, err = svc.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = svc.GetUser(ctx, " ")
	assert.True(t, IsValidationError(err))
}

func TestGetUser_TransportFailure(t *testing.T) {
	svc, store := setupUserService(t)
	store.Insert("users", &documents.Document{ID: "u1"})
	store.SetFailure(func(context.Context, memory.Op, string, string) error {
		return documents.ErrUnavailable
	})

	_, err := svc.GetUser(context.Background(), "u1")
	require.Error(t, err)
	assert.True(t, documents.IsTransportFailure(err))
	assert.NotErrorIs(t, err, ErrUserNotFound)
}

func TestSavedRecordFor_NilUser(t *testing.T) {
	var u *User
	_, ok := u.SavedRecordFor("p1")
	assert.False(t, ok)
}
