package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/projecthub/apiserver/internal/auth"
	"github.com/projecthub/apiserver/internal/services"
	"github.com/projecthub/apiserver/internal/store/storetest"
)

func newUserService(t *testing.T) (*services.UserService, *storetest.Users) {
	t.Helper()
	users := storetest.NewUsers()
	return services.NewUserService(users), users
}

func TestUserService_Create(t *testing.T) {
	t.Parallel()
	svc, users := newUserService(t)

	user, err := svc.Create(context.Background(), services.CreateUserInput{
		Username: "alice", Email: "alice@x.com", Password: "pw1",
	})
	require.NoError(t, err)
	stored, err := users.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.True(t, auth.CheckPassword(stored.PasswordHash, "pw1"))

	_, err = svc.Create(context.Background(), services.CreateUserInput{
		Username: "bob", Email: "alice@x.com", Password: "pw2",
	})
	assertCode(t, err, services.CodeConflict)
	assert.Equal(t, "email already exists", services.Message(err))

	_, err = svc.Create(context.Background(), services.CreateUserInput{
		Username: "alice", Email: "bob@x.com", Password: "pw2",
	})
	assertCode(t, err, services.CodeConflict)
	assert.Equal(t, "username already exists", services.Message(err))
}

func TestUserService_GetAndSearch(t *testing.T) {
	t.Parallel()
	svc, _ := newUserService(t)
	alice, err := svc.Create(context.Background(), services.CreateUserInput{
		Username: "alice", Email: "alice@x.com", Password: "pw1",
	})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), services.CreateUserInput{
		Username: "bob", Email: "bob@y.org", Password: "pw2",
	})
	require.NoError(t, err)

	got, err := svc.Get(context.Background(), alice.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)

	_, err = svc.Get(context.Background(), "bad")
	assertCode(t, err, services.CodeInvalidInput)

	_, err = svc.Get(context.Background(), primitive.NewObjectID().Hex())
	assertCode(t, err, services.CodeNotFound)

	found, err := svc.Search(context.Background(), "ALI")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, alice.ID, found[0].ID)

	found, err = svc.Search(context.Background(), "y.org")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "bob", found[0].Username)

	_, err = svc.Search(context.Background(), " ")
	assertCode(t, err, services.CodeInvalidInput)

	all, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestUserService_Update(t *testing.T) {
	t.Parallel()
	svc, _ := newUserService(t)
	alice, err := svc.Create(context.Background(), services.CreateUserInput{
		Username: "alice", Email: "alice@x.com", Password: "pw1",
	})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), services.CreateUserInput{
		Username: "bob", Email: "bob@x.com", Password: "pw2",
	})
	require.NoError(t, err)

	tests := []struct {
		name string
		id   string
		in   services.UpdateUserInput
		code string
	}{
		{"malformed id", "bad", services.UpdateUserInput{Username: "x"}, services.CodeInvalidInput},
		{"unknown id", primitive.NewObjectID().Hex(), services.UpdateUserInput{Username: "x"}, services.CodeNotFound},
		{"invalid email", alice.ID.Hex(), services.UpdateUserInput{Email: "nope"}, services.CodeInvalidInput},
		{"email taken", alice.ID.Hex(), services.UpdateUserInput{Email: "bob@x.com"}, services.CodeConflict},
		{"username taken", alice.ID.Hex(), services.UpdateUserInput{Username: "bob"}, services.CodeConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Update(context.Background(), tt.id, tt.in)
			assertCode(t, err, tt.code)
		})
	}

	t.Run("keeps unchanged fields", func(t *testing.T) {
		updated, err := svc.Update(context.Background(), alice.ID.Hex(), services.UpdateUserInput{Username: "alicia"})
		require.NoError(t, err)
		assert.Equal(t, "alicia", updated.Username)
		assert.Equal(t, "alice@x.com", updated.Email)
	})

	t.Run("same email as before is not a conflict", func(t *testing.T) {
		_, err := svc.Update(context.Background(), alice.ID.Hex(), services.UpdateUserInput{Email: "alice@x.com"})
		require.NoError(t, err)
	})
}

func TestUserService_Delete(t *testing.T) {
	t.Parallel()
	svc, users := newUserService(t)
	alice, err := svc.Create(context.Background(), services.CreateUserInput{
		Username: "alice", Email: "alice@x.com", Password: "pw1",
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), alice.ID.Hex()))
	assertCode(t, svc.Delete(context.Background(), alice.ID.Hex()), services.CodeNotFound)
	assertCode(t, svc.Delete(context.Background(), "bad"), services.CodeNotFound)

	users.Err = errors.New("db connection error")
	assertCode(t, svc.Delete(context.Background(), primitive.NewObjectID().Hex()), services.CodeInternal)
}
