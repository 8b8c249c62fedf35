package services

import (
	"context"
	"errors"
	"strings"

	"github.com/samber/oops"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/projecthub/apiserver/internal/auth"
	"github.com/projecthub/apiserver/internal/store"
	"github.com/projecthub/apiserver/types"
)

// invalidCredentials is shared by the unknown-email and wrong-password paths
// so callers cannot tell them apart.
const invalidCredentials = "invalid email or password"

// TokenIssuer signs bearer tokens for authenticated users.
type TokenIssuer interface {
	Issue(userID primitive.ObjectID) (string, error)
}

// CredentialService handles registration, login and password reset.
type CredentialService struct {
	repo   UserRepository
	tokens TokenIssuer
	events EventPublisher
}

// NewCredentialService constructs a CredentialService. events may be nil.
func NewCredentialService(repo UserRepository, tokens TokenIssuer, events EventPublisher) *CredentialService {
	if events == nil {
		events = noopPublisher{}
	}
	return &CredentialService{repo: repo, tokens: tokens, events: events}
}

// RegisterInput carries the registration payload.
type RegisterInput = CreateUserInput

// Register creates a user after a single combined uniqueness check on email
// and username. No token is issued.
func (s *CredentialService) Register(ctx context.Context, in RegisterInput) (types.User, error) {
	in = normalizeCreate(in)
	if err := validateCreate(in); err != nil {
		return types.User{}, err
	}

	exists, err := s.repo.ExistsByEmailOrUsername(ctx, in.Email, in.Username)
	if err != nil {
		return types.User{}, internal("ExistsByEmailOrUsername", err)
	}
	if exists {
		return types.User{}, conflict("email or username already exists")
	}

	user, err := createUser(ctx, s.repo, in)
	if err != nil {
		return types.User{}, err
	}

	s.events.Publish(ctx, TopicUserRegistered, UserRegisteredEvent{
		UserID:   user.ID.Hex(),
		Username: user.Username,
		Email:    user.Email,
	})
	return user, nil
}

// Login verifies the credentials and returns a signed bearer token.
func (s *CredentialService) Login(ctx context.Context, email, password string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return "", invalidInput("email and password are required")
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", oops.Code(CodeUnauthorized).Errorf(invalidCredentials)
		}
		return "", internal("GetByEmail", err)
	}

	if !auth.CheckPassword(user.PasswordHash, password) {
		return "", oops.Code(CodeUnauthorized).Errorf(invalidCredentials)
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		if errors.Is(err, auth.ErrMissingSecret) {
			return "", oops.Code(CodeServerMisconfigured).Wrap(err)
		}
		return "", internal("Issue", err)
	}
	return token, nil
}

// ForgotPassword replaces the user's password with a freshly generated one
// and returns it in plaintext. The caller is expected to hand it to the user
// directly; there is no out-of-band delivery.
func (s *CredentialService) ForgotPassword(ctx context.Context, email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", invalidInput("email is required")
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", notFound("user not found")
		}
		return "", internal("GetByEmail", err)
	}

	password, err := auth.GeneratePassword(auth.GeneratedPasswordLength)
	if err != nil {
		return "", internal("GeneratePassword", err)
	}
	hashed, err := auth.HashPassword(password)
	if err != nil {
		return "", internal("HashPassword", err)
	}

	if err := s.repo.UpdatePassword(ctx, user.ID, hashed); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", notFound("user not found")
		}
		return "", internal("UpdatePassword", err)
	}
	return password, nil
}
