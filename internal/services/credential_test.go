package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projecthub/apiserver/internal/auth"
	"github.com/projecthub/apiserver/internal/services"
	"github.com/projecthub/apiserver/internal/store/storetest"
)

var (
	_ services.UserRepository    = (*storetest.Users)(nil)
	_ services.ProjectRepository = (*storetest.Projects)(nil)
	_ services.TokenIssuer       = (*auth.Tokens)(nil)
)

type recordedEvent struct {
	topic   string
	payload any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{topic: topic, payload: payload})
}

func (p *recordingPublisher) topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	topics := make([]string, 0, len(p.events))
	for _, event := range p.events {
		topics = append(topics, event.topic)
	}
	return topics
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T", err)
	assert.Equal(t, code, oopsErr.Code())
}

func newCredentialService(t *testing.T) (*services.CredentialService, *storetest.Users, *recordingPublisher) {
	t.Helper()
	users := storetest.NewUsers()
	events := &recordingPublisher{}
	return services.NewCredentialService(users, auth.NewTokens("test-secret"), events), users, events
}

func TestCredentialService_Register(t *testing.T) {
	t.Parallel()

	t.Run("stores hashed password and publishes event", func(t *testing.T) {
		t.Parallel()
		svc, users, events := newCredentialService(t)

		user, err := svc.Register(context.Background(), services.RegisterInput{
			Username: " alice ",
			Email:    "alice@x.com",
			Password: "pw1",
		})
		require.NoError(t, err)
		assert.Equal(t, "alice", user.Username)

		stored, err := users.GetByID(context.Background(), user.ID)
		require.NoError(t, err)
		assert.NotEqual(t, "pw1", stored.PasswordHash)
		assert.True(t, auth.CheckPassword(stored.PasswordHash, "pw1"))
		assert.Equal(t, []string{services.TopicUserRegistered}, events.topics())
	})

	t.Run("duplicate email or username conflicts", func(t *testing.T) {
		t.Parallel()
		tests := []struct {
			name   string
			second services.RegisterInput
		}{
			{"same email", services.RegisterInput{Username: "bob", Email: "alice@x.com", Password: "pw2"}},
			{"same username", services.RegisterInput{Username: "alice", Email: "bob@x.com", Password: "pw2"}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				svc, _, _ := newCredentialService(t)
				_, err := svc.Register(context.Background(), services.RegisterInput{
					Username: "alice", Email: "alice@x.com", Password: "pw1",
				})
				require.NoError(t, err)

				_, err = svc.Register(context.Background(), tt.second)
				assertCode(t, err, services.CodeConflict)
			})
		}
	})

	t.Run("missing fields are invalid", func(t *testing.T) {
		t.Parallel()
		svc, _, _ := newCredentialService(t)
		_, err := svc.Register(context.Background(), services.RegisterInput{Username: "alice", Email: "alice@x.com"})
		assertCode(t, err, services.CodeInvalidInput)
	})

	t.Run("malformed email is invalid", func(t *testing.T) {
		t.Parallel()
		svc, _, _ := newCredentialService(t)
		_, err := svc.Register(context.Background(), services.RegisterInput{
			Username: "alice", Email: "not-an-email", Password: "pw1",
		})
		assertCode(t, err, services.CodeInvalidInput)
	})

	t.Run("store failure is internal", func(t *testing.T) {
		t.Parallel()
		svc, users, _ := newCredentialService(t)
		users.Err = errors.New("db connection error")
		_, err := svc.Register(context.Background(), services.RegisterInput{
			Username: "alice", Email: "alice@x.com", Password: "pw1",
		})
		assertCode(t, err, services.CodeInternal)
		assert.Equal(t, "internal server error", services.Message(err))
	})
}

func TestCredentialService_Login(t *testing.T) {
	t.Parallel()

	svc, _, _ := newCredentialService(t)
	user, err := svc.Register(context.Background(), services.RegisterInput{
		Username: "alice", Email: "alice@x.com", Password: "pw1",
	})
	require.NoError(t, err)

	t.Run("correct credentials issue a token for the user", func(t *testing.T) {
		token, err := svc.Login(context.Background(), "alice@x.com", "pw1")
		require.NoError(t, err)

		subject, err := auth.NewTokens("test-secret").Verify(token)
		require.NoError(t, err)
		assert.Equal(t, user.ID, subject)
	})

	t.Run("wrong password and unknown email are indistinguishable", func(t *testing.T) {
		_, wrongPassword := svc.Login(context.Background(), "alice@x.com", "nope")
		_, unknownEmail := svc.Login(context.Background(), "ghost@x.com", "pw1")

		assertCode(t, wrongPassword, services.CodeUnauthorized)
		assertCode(t, unknownEmail, services.CodeUnauthorized)
		assert.Equal(t, services.Message(wrongPassword), services.Message(unknownEmail))
	})

	t.Run("missing fields are invalid", func(t *testing.T) {
		_, err := svc.Login(context.Background(), "", "pw1")
		assertCode(t, err, services.CodeInvalidInput)
		_, err = svc.Login(context.Background(), "alice@x.com", "")
		assertCode(t, err, services.CodeInvalidInput)
	})
}

func TestCredentialService_LoginWithoutSecret(t *testing.T) {
	t.Parallel()

	users := storetest.NewUsers()
	svc := services.NewCredentialService(users, auth.NewTokens(""), nil)
	_, err := svc.Register(context.Background(), services.RegisterInput{
		Username: "alice", Email: "alice@x.com", Password: "pw1",
	})
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), "alice@x.com", "pw1")
	assertCode(t, err, services.CodeServerMisconfigured)
}

func TestCredentialService_ForgotPassword(t *testing.T) {
	t.Parallel()

	t.Run("replaces the password with a generated one", func(t *testing.T) {
		t.Parallel()
		svc, _, _ := newCredentialService(t)
		_, err := svc.Register(context.Background(), services.RegisterInput{
			Username: "alice", Email: "alice@x.com", Password: "pw1",
		})
		require.NoError(t, err)

		password, err := svc.ForgotPassword(context.Background(), "alice@x.com")
		require.NoError(t, err)
		assert.Len(t, password, auth.GeneratedPasswordLength)

		_, err = svc.Login(context.Background(), "alice@x.com", "pw1")
		assertCode(t, err, services.CodeUnauthorized)
		_, err = svc.Login(context.Background(), "alice@x.com", password)
		require.NoError(t, err)
	})

	t.Run("unknown email is not found", func(t *testing.T) {
		t.Parallel()
		svc, _, _ := newCredentialService(t)
		_, err := svc.ForgotPassword(context.Background(), "ghost@x.com")
		assertCode(t, err, services.CodeNotFound)
	})

	t.Run("missing email is invalid", func(t *testing.T) {
		t.Parallel()
		svc, _, _ := newCredentialService(t)
		_, err := svc.ForgotPassword(context.Background(), "  ")
		assertCode(t, err, services.CodeInvalidInput)
	})
}
