package services

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/projecthub/apiserver/internal/auth"
	"github.com/projecthub/apiserver/internal/store"
	"github.com/projecthub/apiserver/types"
)

var emailPattern = regexp.MustCompile(`^\w+([\.-]?\w+)*@\w+([\.-]?\w+)*(\.\w{2,3})+$`)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error)
	EmailTaken(ctx context.Context, email string, except primitive.ObjectID) (bool, error)
	UsernameTaken(ctx context.Context, username string, except primitive.ObjectID) (bool, error)
	List(ctx context.Context) ([]types.User, error)
	Search(ctx context.Context, query string) ([]types.User, error)
	GetMany(ctx context.Context, ids []primitive.ObjectID) ([]types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	UpdatePassword(ctx context.Context, id primitive.ObjectID, passwordHash string) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// CreateUserInput carries the fields accepted when creating a user.
type CreateUserInput struct {
	Username string
	Email    string
	Password string
}

// UpdateUserInput carries a partial profile update. Empty fields are left
// unchanged.
type UpdateUserInput struct {
	Username string
	Email    string
}

// UserService encapsulates user directory use-cases.
type UserService struct {
	repo UserRepository
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo}
}

func (s *UserService) List(ctx context.Context) ([]types.User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, internal("List", err)
	}
	return users, nil
}

func (s *UserService) Search(ctx context.Context, query string) ([]types.User, error) {
	if strings.TrimSpace(query) == "" {
		return nil, invalidInput("search query is required")
	}
	users, err := s.repo.Search(ctx, query)
	if err != nil {
		return nil, internal("Search", err)
	}
	return users, nil
}

func (s *UserService) Get(ctx context.Context, id string) (types.User, error) {
	userID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return types.User{}, invalidInput("invalid user id")
	}
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, notFound("user not found")
		}
		return types.User{}, internal("GetByID", err)
	}
	return user, nil
}

// Create stores a user directly, outside the registration flow. Email and
// username are checked separately so the caller learns which one collides.
func (s *UserService) Create(ctx context.Context, in CreateUserInput) (types.User, error) {
	in = normalizeCreate(in)
	if err := validateCreate(in); err != nil {
		return types.User{}, err
	}

	taken, err := s.repo.EmailTaken(ctx, in.Email, primitive.NilObjectID)
	if err != nil {
		return types.User{}, internal("EmailTaken", err)
	}
	if taken {
		return types.User{}, conflict("email already exists")
	}

	taken, err = s.repo.UsernameTaken(ctx, in.Username, primitive.NilObjectID)
	if err != nil {
		return types.User{}, internal("UsernameTaken", err)
	}
	if taken {
		return types.User{}, conflict("username already exists")
	}

	return createUser(ctx, s.repo, in)
}

func (s *UserService) Update(ctx context.Context, id string, in UpdateUserInput) (types.User, error) {
	userID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return types.User{}, invalidInput("invalid user id")
	}

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, notFound("user not found")
		}
		return types.User{}, internal("GetByID", err)
	}

	email := strings.TrimSpace(in.Email)
	username := strings.TrimSpace(in.Username)

	if email != "" && email != user.Email {
		if !emailPattern.MatchString(email) {
			return types.User{}, invalidInput("invalid email address")
		}
		taken, err := s.repo.EmailTaken(ctx, email, user.ID)
		if err != nil {
			return types.User{}, internal("EmailTaken", err)
		}
		if taken {
			return types.User{}, conflict("email already exists")
		}
		user.Email = email
	}

	if username != "" && username != user.Username {
		taken, err := s.repo.UsernameTaken(ctx, username, user.ID)
		if err != nil {
			return types.User{}, internal("UsernameTaken", err)
		}
		if taken {
			return types.User{}, conflict("username already exists")
		}
		user.Username = username
	}

	updated, err := s.repo.Update(ctx, user)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return types.User{}, notFound("user not found")
		case errors.Is(err, store.ErrDuplicate):
			return types.User{}, conflict("email or username already exists")
		}
		return types.User{}, internal("Update", err)
	}
	return updated, nil
}

// Delete removes the user. Projects that reference the user are left as
// they are.
func (s *UserService) Delete(ctx context.Context, id string) error {
	userID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return notFound("user not found")
	}
	if err := s.repo.Delete(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound("user not found")
		}
		return internal("Delete", err)
	}
	return nil
}

func normalizeCreate(in CreateUserInput) CreateUserInput {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	return in
}

func validateCreate(in CreateUserInput) error {
	if in.Username == "" || in.Email == "" || in.Password == "" {
		return invalidInput("username, email and password are required")
	}
	if !emailPattern.MatchString(in.Email) {
		return invalidInput("invalid email address")
	}
	return nil
}

func createUser(ctx context.Context, repo UserRepository, in CreateUserInput) (types.User, error) {
	hashed, err := auth.HashPassword(in.Password)
	if err != nil {
		return types.User{}, internal("HashPassword", err)
	}

	user, err := repo.Create(ctx, types.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hashed,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return types.User{}, conflict("email or username already exists")
		}
		return types.User{}, internal("Create", err)
	}
	return user, nil
}
