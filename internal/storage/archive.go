package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/samber/oops"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/projecthub/apiserver/types"
)

// ErrObjectNotFound is returned by Get when the key does not exist.
var ErrObjectNotFound = errors.New("object not found")

const archiveContentType = "application/json"

// ArchiveKey returns the object key a deleted project is stored under.
func ArchiveKey(owner, projectID primitive.ObjectID) string {
	return fmt.Sprintf("projects/%s/%s.json", owner.Hex(), projectID.Hex())
}

// Archiver writes a JSON snapshot of a project before it is deleted.
type Archiver struct {
	store ObjectStorage
}

func NewArchiver(store ObjectStorage) *Archiver {
	return &Archiver{store: store}
}

// Archive uploads project to ArchiveKey. An existing snapshot for the same
// project is overwritten.
func (a *Archiver) Archive(ctx context.Context, project types.Project) error {
	data, err := json.Marshal(project)
	if err != nil {
		return oops.In("storage").With("project_id", project.ID.Hex()).Wrapf(err, "encode project")
	}

	key := ArchiveKey(project.Owner, project.ID)
	if err := a.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), archiveContentType); err != nil {
		return oops.In("storage").
			With("bucket", a.store.Bucket()).
			With("key", key).
			Wrapf(err, "upload archive")
	}
	return nil
}

// Load reads back an archived project.
func (a *Archiver) Load(ctx context.Context, owner, projectID primitive.ObjectID) (types.Project, error) {
	key := ArchiveKey(owner, projectID)
	reader, err := a.store.Get(ctx, key)
	if err != nil {
		return types.Project{}, err
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return types.Project{}, oops.In("storage").With("key", key).Wrapf(err, "read archive")
	}
	var project types.Project
	if err := json.Unmarshal(data, &project); err != nil {
		return types.Project{}, oops.In("storage").With("key", key).Wrapf(err, "decode archive")
	}
	return project, nil
}
