package storage_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/projecthub/apiserver/config"
	"github.com/projecthub/apiserver/internal/storage"
	"github.com/projecthub/apiserver/types"
)

type memoryStorage struct {
	mu           sync.Mutex
	objects      map[string][]byte
	contentTypes map[string]string
	putErr       error
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{
		objects:      make(map[string][]byte),
		contentTypes: make(map[string]string),
	}
}

func (m *memoryStorage) EnsureBucket(context.Context) error { return nil }

func (m *memoryStorage) Put(_ context.Context, key string, r io.Reader, size int64, contentType string) error {
	if m.putErr != nil {
		return m.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if int64(len(data)) != size {
		return errors.New("size mismatch")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	m.contentTypes[key] = contentType
	return nil
}

func (m *memoryStorage) Get(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryStorage) Bucket() string { return "test-bucket" }

func (m *memoryStorage) Close() error { return nil }

func TestArchiveKey(t *testing.T) {
	owner, err := primitive.ObjectIDFromHex("64b000000000000000000001")
	require.NoError(t, err)
	project, err := primitive.ObjectIDFromHex("64b000000000000000000002")
	require.NoError(t, err)

	assert.Equal(t, "projects/64b000000000000000000001/64b000000000000000000002.json",
		storage.ArchiveKey(owner, project))
}

func TestArchiver_RoundTrip(t *testing.T) {
	backend := newMemoryStorage()
	archiver := storage.NewArchiver(backend)

	end := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	project := types.Project{
		ID:        primitive.NewObjectID(),
		Name:      "Trip",
		StartDate: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   &end,
		Status:    types.ProjectStatusNew,
		Owner:     primitive.NewObjectID(),
		Members:   []primitive.ObjectID{primitive.NewObjectID()},
	}
	require.NoError(t, archiver.Archive(context.Background(), project))

	key := storage.ArchiveKey(project.Owner, project.ID)
	assert.Equal(t, "application/json", backend.contentTypes[key])

	loaded, err := archiver.Load(context.Background(), project.Owner, project.ID)
	require.NoError(t, err)
	assert.Equal(t, project.Name, loaded.Name)
	assert.Equal(t, project.Members, loaded.Members)
	require.NotNil(t, loaded.EndDate)
	assert.True(t, end.Equal(*loaded.EndDate))
}

func TestArchiver_Errors(t *testing.T) {
	backend := newMemoryStorage()
	archiver := storage.NewArchiver(backend)

	_, err := archiver.Load(context.Background(), primitive.NewObjectID(), primitive.NewObjectID())
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)

	backend.putErr = errors.New("bucket unavailable")
	err = archiver.Archive(context.Background(), types.Project{ID: primitive.NewObjectID()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket unavailable")
}

func TestOpen(t *testing.T) {
	_, err := storage.Open(context.Background(), config.StorageConfig{Backend: "none"})
	assert.ErrorIs(t, err, storage.ErrDisabled)

	_, err = storage.Open(context.Background(), config.StorageConfig{Backend: "s3"})
	assert.Error(t, err)

	_, err = storage.Open(context.Background(), config.StorageConfig{Backend: "minio"})
	assert.Error(t, err, "minio without credentials is rejected")
}
