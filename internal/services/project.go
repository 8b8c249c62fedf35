package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/oops"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/projecthub/apiserver/internal/authz"
	"github.com/projecthub/apiserver/internal/store"
	"github.com/projecthub/apiserver/types"
)

// projectNotFound is returned whether the project is missing or the identity
// lacks access, so callers cannot probe for existence.
const projectNotFound = "project not found or access denied"

// ProjectRepository defines persistence operations for projects.
type ProjectRepository interface {
	Get(ctx context.Context, id primitive.ObjectID) (types.Project, error)
	ListByOwner(ctx context.Context, owner primitive.ObjectID) ([]types.Project, error)
	ExistsByOwnerAndName(ctx context.Context, owner primitive.ObjectID, name string) (bool, error)
	Create(ctx context.Context, project types.Project) (types.Project, error)
	Update(ctx context.Context, project types.Project) (types.Project, error)
	DeleteOwned(ctx context.Context, id, owner primitive.ObjectID) error
}

// Gate decides whether an identity may perform an action on a project.
type Gate interface {
	Allowed(project types.Project, identity primitive.ObjectID, action authz.Action) (bool, error)
}

// ProjectArchiver keeps a copy of a project before it is hard-deleted.
type ProjectArchiver interface {
	Archive(ctx context.Context, project types.Project) error
}

type noopArchiver struct{}

func (noopArchiver) Archive(context.Context, types.Project) error { return nil }

// CreateProjectInput carries the fields accepted on project creation.
type CreateProjectInput struct {
	Name        string
	Description string
	StartDate   *time.Time
	EndDate     *time.Time
	Status      string
}

// UpdateProjectInput carries a partial update. Nil fields are left unchanged.
type UpdateProjectInput struct {
	Name          *string
	Description   *string
	StartDate     *time.Time
	EndDate       *time.Time
	Status        *string
	AddMembers    []string
	RemoveMembers []string
}

// ProjectOption configures optional collaborators of a ProjectService.
type ProjectOption func(*ProjectService)

// WithProjectEvents sets the publisher for project events.
func WithProjectEvents(events EventPublisher) ProjectOption {
	return func(s *ProjectService) {
		if events != nil {
			s.events = events
		}
	}
}

// WithArchiver sets the archiver consulted before deletes.
func WithArchiver(archiver ProjectArchiver) ProjectOption {
	return func(s *ProjectService) {
		if archiver != nil {
			s.archiver = archiver
		}
	}
}

// WithLogger sets the logger used for membership warnings.
func WithLogger(logger *slog.Logger) ProjectOption {
	return func(s *ProjectService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// ProjectService encapsulates project use-cases. Every operation on a single
// project passes through the gate first.
type ProjectService struct {
	repo     ProjectRepository
	users    UserRepository
	gate     Gate
	events   EventPublisher
	archiver ProjectArchiver
	logger   *slog.Logger
	now      func() time.Time
}

func NewProjectService(repo ProjectRepository, users UserRepository, gate Gate, opts ...ProjectOption) *ProjectService {
	s := &ProjectService{
		repo:     repo,
		users:    users,
		gate:     gate,
		events:   noopPublisher{},
		archiver: noopArchiver{},
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores a new project owned by identity.
func (s *ProjectService) Create(ctx context.Context, identity primitive.ObjectID, in CreateProjectInput) (types.Project, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return types.Project{}, invalidInput("project name is required")
	}
	if in.StartDate != nil && in.EndDate != nil && in.EndDate.Before(*in.StartDate) {
		return types.Project{}, invalidInput("end date must be on or after start date")
	}

	status := types.ProjectStatusNew
	if raw := strings.TrimSpace(in.Status); raw != "" {
		status = types.ProjectStatus(raw)
		if !status.Valid() {
			return types.Project{}, invalidInput("invalid project status %q", raw)
		}
	}

	exists, err := s.repo.ExistsByOwnerAndName(ctx, identity, name)
	if err != nil {
		return types.Project{}, internal("ExistsByOwnerAndName", err)
	}
	if exists {
		return types.Project{}, oops.Code(CodeDuplicateName).
			With("name", name).
			Errorf("a project with this name already exists")
	}

	startDate := s.now().UTC()
	if in.StartDate != nil {
		startDate = *in.StartDate
	}

	project, err := s.repo.Create(ctx, types.Project{
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		StartDate:   startDate,
		EndDate:     in.EndDate,
		Status:      status,
		Owner:       identity,
		Members:     []primitive.ObjectID{},
	})
	if err != nil {
		return types.Project{}, internal("Create", err)
	}

	s.events.Publish(ctx, TopicProjectCreated, ProjectCreatedEvent{
		ProjectID: project.ID.Hex(),
		OwnerID:   identity.Hex(),
		Name:      project.Name,
	})
	return project, nil
}

// List returns the projects owned by identity. Projects where identity is
// only a member are not listed.
func (s *ProjectService) List(ctx context.Context, identity primitive.ObjectID) ([]types.Project, error) {
	projects, err := s.repo.ListByOwner(ctx, identity)
	if err != nil {
		return nil, internal("ListByOwner", err)
	}
	return projects, nil
}

// Get returns the project with owner and members resolved, if identity is
// its owner or a member.
func (s *ProjectService) Get(ctx context.Context, identity primitive.ObjectID, projectID string) (types.ProjectView, error) {
	project, err := s.authorize(ctx, identity, projectID, authz.ActionRead)
	if err != nil {
		return types.ProjectView{}, err
	}
	return s.view(ctx, project)
}

// Update applies scalar changes, then member additions, then member removals
// evaluated against the list as it stands after additions. Member ids that
// are malformed, already present or unknown are skipped with a warning.
func (s *ProjectService) Update(ctx context.Context, identity primitive.ObjectID, projectID string, in UpdateProjectInput) (types.ProjectView, error) {
	project, err := s.authorize(ctx, identity, projectID, authz.ActionUpdate)
	if err != nil {
		return types.ProjectView{}, err
	}

	if err := applyProjectFields(&project, in); err != nil {
		return types.ProjectView{}, err
	}

	added, err := s.addMembers(ctx, &project, in.AddMembers)
	if err != nil {
		return types.ProjectView{}, err
	}
	s.removeMembers(ctx, &project, in.RemoveMembers)

	updated, err := s.repo.Update(ctx, project)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.ProjectView{}, notFound(projectNotFound)
		}
		return types.ProjectView{}, internal("Update", err)
	}

	for _, memberID := range added {
		// Removed again by the same call.
		if !updated.HasMember(memberID) {
			continue
		}
		s.publishMemberAdded(ctx, updated.ID, memberID)
	}
	return s.view(ctx, updated)
}

// AddMember appends userID to the member set. Unlike the bulk path in
// Update, every failure is reported to the caller.
func (s *ProjectService) AddMember(ctx context.Context, identity primitive.ObjectID, projectID, userID string) error {
	project, err := s.authorize(ctx, identity, projectID, authz.ActionAddMember)
	if err != nil {
		return err
	}

	memberID, err := primitive.ObjectIDFromHex(strings.TrimSpace(userID))
	if err != nil {
		return notFound("user to add not found")
	}
	if _, err := s.users.GetByID(ctx, memberID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound("user to add not found")
		}
		return internal("GetByID", err)
	}
	if project.HasMember(memberID) {
		return invalidInput("user is already a member of this project")
	}

	project.Members = append(project.Members, memberID)
	updated, err := s.repo.Update(ctx, project)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound(projectNotFound)
		}
		return internal("Update", err)
	}

	s.publishMemberAdded(ctx, updated.ID, memberID)
	return nil
}

// Delete archives and then removes the project. The delete itself is scoped
// by owner as well as id.
func (s *ProjectService) Delete(ctx context.Context, identity primitive.ObjectID, projectID string) error {
	project, err := s.authorize(ctx, identity, projectID, authz.ActionDelete)
	if err != nil {
		return err
	}

	if err := s.archiver.Archive(ctx, project); err != nil {
		return internal("Archive", err)
	}

	if err := s.repo.DeleteOwned(ctx, project.ID, identity); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound(projectNotFound)
		}
		return internal("DeleteOwned", err)
	}

	s.events.Publish(ctx, TopicProjectDeleted, ProjectDeletedEvent{
		ProjectID: project.ID.Hex(),
		OwnerID:   identity.Hex(),
	})
	return nil
}

func (s *ProjectService) authorize(ctx context.Context, identity primitive.ObjectID, projectID string, action authz.Action) (types.Project, error) {
	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(projectID))
	if err != nil {
		return types.Project{}, notFound(projectNotFound)
	}

	project, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Project{}, notFound(projectNotFound)
		}
		return types.Project{}, internal("Get", err)
	}

	allowed, err := s.gate.Allowed(project, identity, action)
	if err != nil {
		return types.Project{}, internal("Allowed", err)
	}
	if !allowed {
		return types.Project{}, notFound(projectNotFound)
	}
	return project, nil
}

func applyProjectFields(project *types.Project, in UpdateProjectInput) error {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return invalidInput("project name is required")
		}
		project.Name = name
	}
	if in.Description != nil {
		project.Description = strings.TrimSpace(*in.Description)
	}
	if in.StartDate != nil {
		project.StartDate = *in.StartDate
	}
	if in.EndDate != nil {
		endDate := *in.EndDate
		project.EndDate = &endDate
	}
	if in.Status != nil {
		status := types.ProjectStatus(strings.TrimSpace(*in.Status))
		if !status.Valid() {
			return invalidInput("invalid project status %q", *in.Status)
		}
		project.Status = status
	}
	if project.EndDate != nil && project.EndDate.Before(project.StartDate) {
		return invalidInput("end date must be on or after start date")
	}
	return nil
}

func (s *ProjectService) addMembers(ctx context.Context, project *types.Project, ids []string) ([]primitive.ObjectID, error) {
	var added []primitive.ObjectID
	for _, raw := range ids {
		memberID, err := primitive.ObjectIDFromHex(strings.TrimSpace(raw))
		if err != nil {
			s.warnMember(ctx, project.ID, raw, "skipping malformed member id")
			continue
		}
		if project.HasMember(memberID) {
			s.warnMember(ctx, project.ID, raw, "skipping member already in project")
			continue
		}
		if _, err := s.users.GetByID(ctx, memberID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				s.warnMember(ctx, project.ID, raw, "skipping unknown user")
				continue
			}
			return nil, internal("GetByID", err)
		}
		project.Members = append(project.Members, memberID)
		added = append(added, memberID)
	}
	return added, nil
}

func (s *ProjectService) removeMembers(ctx context.Context, project *types.Project, ids []string) {
	if len(ids) == 0 {
		return
	}
	remove := make(map[primitive.ObjectID]struct{}, len(ids))
	for _, raw := range ids {
		memberID, err := primitive.ObjectIDFromHex(strings.TrimSpace(raw))
		if err != nil {
			s.warnMember(ctx, project.ID, raw, "skipping malformed member id")
			continue
		}
		remove[memberID] = struct{}{}
	}

	kept := make([]primitive.ObjectID, 0, len(project.Members))
	for _, member := range project.Members {
		if _, ok := remove[member]; ok {
			continue
		}
		kept = append(kept, member)
	}
	project.Members = kept
}

func (s *ProjectService) warnMember(ctx context.Context, projectID primitive.ObjectID, memberID, msg string) {
	s.logger.WarnContext(ctx, msg,
		slog.String("project_id", projectID.Hex()),
		slog.String("member_id", memberID),
	)
}

func (s *ProjectService) publishMemberAdded(ctx context.Context, projectID, memberID primitive.ObjectID) {
	s.events.Publish(ctx, TopicProjectMemberAdded, ProjectMemberAddedEvent{
		ProjectID: projectID.Hex(),
		UserID:    memberID.Hex(),
	})
}

// view resolves owner and members to user details. Members whose user no
// longer exists are omitted.
func (s *ProjectService) view(ctx context.Context, project types.Project) (types.ProjectView, error) {
	ids := make([]primitive.ObjectID, 0, len(project.Members)+1)
	ids = append(ids, project.Owner)
	ids = append(ids, project.Members...)

	users, err := s.users.GetMany(ctx, ids)
	if err != nil {
		return types.ProjectView{}, internal("GetMany", err)
	}
	byID := make(map[primitive.ObjectID]types.UserRef, len(users))
	for _, user := range users {
		byID[user.ID] = user.Ref()
	}

	view := types.ProjectView{
		ID:          project.ID,
		Name:        project.Name,
		Description: project.Description,
		StartDate:   project.StartDate,
		EndDate:     project.EndDate,
		Status:      project.Status,
		Members:     make([]types.UserRef, 0, len(project.Members)),
		CreatedAt:   project.CreatedAt,
		UpdatedAt:   project.UpdatedAt,
	}
	if owner, ok := byID[project.Owner]; ok {
		view.Owner = &owner
	}
	for _, member := range project.Members {
		if ref, ok := byID[member]; ok {
			view.Members = append(view.Members, ref)
		}
	}
	return view, nil
}
