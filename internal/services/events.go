package services

import "context"

// Topics of the domain events emitted after successful writes.
const (
	TopicUserRegistered     = "user.registered"
	TopicProjectCreated     = "project.created"
	TopicProjectMemberAdded = "project.member_added"
	TopicProjectDeleted     = "project.deleted"
)

// EventPublisher delivers domain events. Publishing is best effort: an
// implementation logs its own failures instead of returning them. It runs
// inline with the write that produced the event, so an implementation must
// bound how long it waits on its transport.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, payload any)
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, string, any) {}

// UserRegisteredEvent is published on TopicUserRegistered.
type UserRegisteredEvent struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// ProjectCreatedEvent is published on TopicProjectCreated.
type ProjectCreatedEvent struct {
	ProjectID string `json:"projectId"`
	OwnerID   string `json:"ownerId"`
	Name      string `json:"name"`
}

// ProjectMemberAddedEvent is published on TopicProjectMemberAdded.
type ProjectMemberAddedEvent struct {
	ProjectID string `json:"projectId"`
	UserID    string `json:"userId"`
}

// ProjectDeletedEvent is published on TopicProjectDeleted.
type ProjectDeletedEvent struct {
	ProjectID string `json:"projectId"`
	OwnerID   string `json:"ownerId"`
}
