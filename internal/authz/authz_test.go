package authz_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/projecthub/apiserver/internal/authz"
	"github.com/projecthub/apiserver/types"
)

func TestRoleOf(t *testing.T) {
	owner := primitive.NewObjectID()
	member := primitive.NewObjectID()
	project := types.Project{Owner: owner, Members: []primitive.ObjectID{member}}

	assert.Equal(t, authz.RoleOwner, authz.RoleOf(project, owner))
	assert.Equal(t, authz.RoleMember, authz.RoleOf(project, member))
	assert.Equal(t, authz.RoleNone, authz.RoleOf(project, primitive.NewObjectID()))
	assert.Equal(t, authz.RoleNone, authz.RoleOf(project, primitive.NilObjectID))

	project.Members = append(project.Members, owner)
	assert.Equal(t, authz.RoleOwner, authz.RoleOf(project, owner))
}

func TestGateAllowed(t *testing.T) {
	gate, err := authz.NewGate()
	require.NoError(t, err)

	owner := primitive.NewObjectID()
	member := primitive.NewObjectID()
	outsider := primitive.NewObjectID()
	project := types.Project{
		ID:      primitive.NewObjectID(),
		Owner:   owner,
		Members: []primitive.ObjectID{member},
	}

	tests := []struct {
		name     string
		identity primitive.ObjectID
		action   authz.Action
		want     bool
	}{
		{"owner reads", owner, authz.ActionRead, true},
		{"owner updates", owner, authz.ActionUpdate, true},
		{"owner deletes", owner, authz.ActionDelete, true},
		{"owner adds member", owner, authz.ActionAddMember, true},
		{"member reads", member, authz.ActionRead, true},
		{"member cannot update", member, authz.ActionUpdate, false},
		{"member cannot delete", member, authz.ActionDelete, false},
		{"member cannot add member", member, authz.ActionAddMember, false},
		{"outsider cannot read", outsider, authz.ActionRead, false},
		{"outsider cannot update", outsider, authz.ActionUpdate, false},
		{"outsider cannot delete", outsider, authz.ActionDelete, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := gate.Allowed(project, tt.identity, tt.action)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
