package store

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/projecthub/apiserver/types"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const projectsCollection = "projects"

// ProjectRepository handles persistence for projects.
type ProjectRepository struct {
	coll *mongo.Collection
}

func NewProjectRepository(db *mongo.Database) *ProjectRepository {
	return &ProjectRepository{coll: db.Collection(projectsCollection)}
}

func (r *ProjectRepository) Get(ctx context.Context, id primitive.ObjectID) (types.Project, error) {
	var project types.Project
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&project); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.Project{}, ErrNotFound
		}
		return types.Project{}, err
	}
	return normalizeProject(project), nil
}

func (r *ProjectRepository) ListByOwner(ctx context.Context, owner primitive.ObjectID) ([]types.Project, error) {
	cursor, err := r.coll.Find(ctx, bson.M{"owner": owner})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	projects := make([]types.Project, 0)
	if err := cursor.All(ctx, &projects); err != nil {
		return nil, err
	}
	for i := range projects {
		projects[i] = normalizeProject(projects[i])
	}
	return projects, nil
}

// ExistsByOwnerAndName reports whether owner already has a project whose
// name equals name ignoring case.
func (r *ProjectRepository) ExistsByOwnerAndName(ctx context.Context, owner primitive.ObjectID, name string) (bool, error) {
	filter := bson.M{
		"owner": owner,
		"name":  primitive.Regex{Pattern: "^" + regexp.QuoteMeta(name) + "$", Options: "i"},
	}
	err := r.coll.FindOne(ctx, filter).Err()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *ProjectRepository) Create(ctx context.Context, project types.Project) (types.Project, error) {
	now := time.Now().UTC()
	project.ID = primitive.NewObjectID()
	project.CreatedAt = now
	project.UpdatedAt = now
	project = normalizeProject(project)

	if _, err := r.coll.InsertOne(ctx, project); err != nil {
		return types.Project{}, err
	}
	return project, nil
}

// Update replaces the stored document of project. Only the owner's document
// matches, so a project cannot change hands through an update.
func (r *ProjectRepository) Update(ctx context.Context, project types.Project) (types.Project, error) {
	project.UpdatedAt = time.Now().UTC()
	project = normalizeProject(project)

	filter := bson.M{"_id": project.ID, "owner": project.Owner}
	result, err := r.coll.ReplaceOne(ctx, filter, project)
	if err != nil {
		return types.Project{}, err
	}
	if result.MatchedCount == 0 {
		return types.Project{}, ErrNotFound
	}
	return project, nil
}

// DeleteOwned removes the project only when owner owns it.
func (r *ProjectRepository) DeleteOwned(ctx context.Context, id, owner primitive.ObjectID) error {
	result, err := r.coll.DeleteOne(ctx, bson.M{"_id": id, "owner": owner})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func normalizeProject(project types.Project) types.Project {
	if project.Members == nil {
		project.Members = []primitive.ObjectID{}
	}
	return project
}
