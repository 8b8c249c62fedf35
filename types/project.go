package types

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ProjectStatus is a soft lifecycle flag. "Delete" marks a project as
// retired but does not remove it.
type ProjectStatus string

const (
	ProjectStatusNew    ProjectStatus = "New"
	ProjectStatusDelete ProjectStatus = "Delete"
)

// Valid reports whether s is one of the known statuses.
func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectStatusNew, ProjectStatusDelete:
		return true
	default:
		return false
	}
}

// Project is a unit of work owned by one user and shared with members.
// Owner and Members are weak references into the users collection; deleting a
// user does not touch the projects that reference it.
type Project struct {
	ID          primitive.ObjectID   `json:"id" bson:"_id,omitempty"`
	Name        string               `json:"name" bson:"name"`
	Description string               `json:"description,omitempty" bson:"description,omitempty"`
	StartDate   time.Time            `json:"startDate" bson:"startDate"`
	EndDate     *time.Time           `json:"endDate,omitempty" bson:"endDate,omitempty"`
	Status      ProjectStatus        `json:"status" bson:"status"`
	Owner       primitive.ObjectID   `json:"owner" bson:"owner"`
	Members     []primitive.ObjectID `json:"members" bson:"members"`
	CreatedAt   time.Time            `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time            `json:"updatedAt" bson:"updatedAt"`
}

// HasMember reports whether id is in the member set.
func (p Project) HasMember(id primitive.ObjectID) bool {
	for _, member := range p.Members {
		if member == id {
			return true
		}
	}
	return false
}

// ProjectView is a project with its owner and members resolved to user
// details. Owner is nil when the referenced user no longer exists.
type ProjectView struct {
	ID          primitive.ObjectID `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	StartDate   time.Time          `json:"startDate"`
	EndDate     *time.Time         `json:"endDate,omitempty"`
	Status      ProjectStatus      `json:"status"`
	Owner       *UserRef           `json:"owner"`
	Members     []UserRef          `json:"members"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}
