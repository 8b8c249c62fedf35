// Package storetest provides in-memory repositories for tests.
package storetest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/projecthub/apiserver/internal/store"
	"github.com/projecthub/apiserver/types"
)

// Users is an in-memory UserRepository that mirrors the unique email and
// username indexes of the real collection.
type Users struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]types.User
	order []primitive.ObjectID

	// Err, when set, is returned by every method.
	Err error
}

func NewUsers() *Users {
	return &Users{users: make(map[primitive.ObjectID]types.User)}
}

func (r *Users) GetByID(_ context.Context, id primitive.ObjectID) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return types.User{}, r.Err
	}
	user, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *Users) GetByEmail(_ context.Context, email string) (types.User, error) {
	return r.first(func(u types.User) bool { return u.Email == email })
}

func (r *Users) ExistsByEmailOrUsername(_ context.Context, email, username string) (bool, error) {
	return r.exists(func(u types.User) bool { return u.Email == email || u.Username == username })
}

func (r *Users) EmailTaken(_ context.Context, email string, except primitive.ObjectID) (bool, error) {
	return r.exists(func(u types.User) bool { return u.Email == email && u.ID != except })
}

func (r *Users) UsernameTaken(_ context.Context, username string, except primitive.ObjectID) (bool, error) {
	return r.exists(func(u types.User) bool { return u.Username == username && u.ID != except })
}

func (r *Users) List(_ context.Context) ([]types.User, error) {
	return r.filter(func(types.User) bool { return true })
}

func (r *Users) Search(_ context.Context, query string) ([]types.User, error) {
	needle := strings.ToLower(query)
	return r.filter(func(u types.User) bool {
		return strings.Contains(strings.ToLower(u.Username), needle) ||
			strings.Contains(strings.ToLower(u.Email), needle)
	})
}

func (r *Users) GetMany(_ context.Context, ids []primitive.ObjectID) ([]types.User, error) {
	wanted := make(map[primitive.ObjectID]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	return r.filter(func(u types.User) bool {
		_, ok := wanted[u.ID]
		return ok
	})
}

func (r *Users) Create(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return types.User{}, r.Err
	}
	for _, existing := range r.users {
		if existing.Email == user.Email || existing.Username == user.Username {
			return types.User{}, store.ErrDuplicate
		}
	}
	now := time.Now().UTC()
	user.ID = primitive.NewObjectID()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.ID] = user
	r.order = append(r.order, user.ID)
	return user, nil
}

func (r *Users) Update(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return types.User{}, r.Err
	}
	current, ok := r.users[user.ID]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	for id, existing := range r.users {
		if id != user.ID && (existing.Email == user.Email || existing.Username == user.Username) {
			return types.User{}, store.ErrDuplicate
		}
	}
	current.Username = user.Username
	current.Email = user.Email
	current.UpdatedAt = time.Now().UTC()
	r.users[user.ID] = current
	return current, nil
}

func (r *Users) UpdatePassword(_ context.Context, id primitive.ObjectID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	user, ok := r.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.PasswordHash = passwordHash
	user.UpdatedAt = time.Now().UTC()
	r.users[id] = user
	return nil
}

func (r *Users) Delete(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	if _, ok := r.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.users, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *Users) first(match func(types.User) bool) (types.User, error) {
	users, err := r.filter(match)
	if err != nil {
		return types.User{}, err
	}
	if len(users) == 0 {
		return types.User{}, store.ErrNotFound
	}
	return users[0], nil
}

func (r *Users) exists(match func(types.User) bool) (bool, error) {
	users, err := r.filter(match)
	if err != nil {
		return false, err
	}
	return len(users) > 0, nil
}

func (r *Users) filter(match func(types.User) bool) ([]types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	out := make([]types.User, 0)
	for _, id := range r.order {
		if user := r.users[id]; match(user) {
			out = append(out, user)
		}
	}
	return out, nil
}

// Projects is an in-memory ProjectRepository.
type Projects struct {
	mu       sync.Mutex
	projects map[primitive.ObjectID]types.Project

	// Err, when set, is returned by every method.
	Err error
}

func NewProjects() *Projects {
	return &Projects{projects: make(map[primitive.ObjectID]types.Project)}
}

func (r *Projects) Get(_ context.Context, id primitive.ObjectID) (types.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return types.Project{}, r.Err
	}
	project, ok := r.projects[id]
	if !ok {
		return types.Project{}, store.ErrNotFound
	}
	return cloneProject(project), nil
}

func (r *Projects) ListByOwner(_ context.Context, owner primitive.ObjectID) ([]types.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	out := make([]types.Project, 0)
	for _, project := range r.projects {
		if project.Owner == owner {
			out = append(out, cloneProject(project))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID.Hex() < out[j].ID.Hex()
	})
	return out, nil
}

func (r *Projects) ExistsByOwnerAndName(_ context.Context, owner primitive.ObjectID, name string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return false, r.Err
	}
	for _, project := range r.projects {
		if project.Owner == owner && strings.EqualFold(project.Name, name) {
			return true, nil
		}
	}
	return false, nil
}

func (r *Projects) Create(_ context.Context, project types.Project) (types.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return types.Project{}, r.Err
	}
	now := time.Now().UTC()
	project.ID = primitive.NewObjectID()
	project.CreatedAt = now
	project.UpdatedAt = now
	project = cloneProject(project)
	r.projects[project.ID] = project
	return cloneProject(project), nil
}

func (r *Projects) Update(_ context.Context, project types.Project) (types.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return types.Project{}, r.Err
	}
	current, ok := r.projects[project.ID]
	if !ok || current.Owner != project.Owner {
		return types.Project{}, store.ErrNotFound
	}
	project.UpdatedAt = time.Now().UTC()
	project = cloneProject(project)
	r.projects[project.ID] = project
	return cloneProject(project), nil
}

func (r *Projects) DeleteOwned(_ context.Context, id, owner primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	current, ok := r.projects[id]
	if !ok || current.Owner != owner {
		return store.ErrNotFound
	}
	delete(r.projects, id)
	return nil
}

// Count returns the number of stored projects.
func (r *Projects) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.projects)
}

func cloneProject(project types.Project) types.Project {
	members := make([]primitive.ObjectID, len(project.Members))
	copy(members, project.Members)
	project.Members = members
	if project.EndDate != nil {
		endDate := *project.EndDate
		project.EndDate = &endDate
	}
	return project
}
