// Package authz decides which project operations an identity may perform.
package authz

import (
	"embed"
	"os"
	"path/filepath"

	"github.com/casbin/casbin/v3"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/projecthub/apiserver/types"
)

//go:embed model.conf policy.csv
var embedFS embed.FS

const projectObject = "project"

// Role is the relationship between an identity and a project.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleMember Role = "member"
	RoleNone   Role = ""
)

// Action is an operation guarded by the gate.
type Action string

const (
	ActionRead      Action = "read"
	ActionUpdate    Action = "update"
	ActionDelete    Action = "delete"
	ActionAddMember Action = "add_member"
)

// RoleOf returns the role identity holds in project. Ownership wins over
// membership when the owner is also listed as a member.
func RoleOf(project types.Project, identity primitive.ObjectID) Role {
	if identity.IsZero() {
		return RoleNone
	}
	if project.Owner == identity {
		return RoleOwner
	}
	if project.HasMember(identity) {
		return RoleMember
	}
	return RoleNone
}

// Gate evaluates the embedded role policy. It is read-only after
// construction and safe for concurrent use.
type Gate struct {
	enforcer *casbin.Enforcer
}

// NewGate loads the embedded model and policy files.
func NewGate() (*Gate, error) {
	dir, err := os.MkdirTemp("", "projecthub-casbin-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	if err := writeEmbedToDir(dir, "model.conf", "policy.csv"); err != nil {
		return nil, err
	}

	enforcer, err := casbin.NewEnforcer(
		filepath.Join(dir, "model.conf"),
		filepath.Join(dir, "policy.csv"),
	)
	if err != nil {
		return nil, err
	}
	return &Gate{enforcer: enforcer}, nil
}

// Allowed reports whether identity may perform action on project.
func (g *Gate) Allowed(project types.Project, identity primitive.ObjectID, action Action) (bool, error) {
	role := RoleOf(project, identity)
	if role == RoleNone {
		return false, nil
	}
	return g.enforcer.Enforce(string(role), projectObject, string(action))
}

func writeEmbedToDir(dir string, names ...string) error {
	for _, name := range names {
		data, err := embedFS.ReadFile(name)
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0600); err != nil {
			return err
		}
	}
	return nil
}
