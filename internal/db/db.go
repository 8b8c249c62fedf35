package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/projecthub/apiserver/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	defaultPingTimeout     = 5 * time.Second
	defaultConnMaxIdle     = 2 * time.Minute
	defaultMinPoolSize     = 5
	defaultMaxPoolSize     = 25
	defaultConnectTimeout  = 10 * time.Second
	defaultDisconnectGrace = 5 * time.Second
)

// Open connects to MongoDB and returns a handle to the configured database.
func Open(ctx context.Context, cfg config.Config) (*mongo.Database, error) {
	uri := strings.TrimSpace(cfg.Database.URI)
	if uri == "" {
		return nil, fmt.Errorf("database url is required")
	}

	opts := options.Client().
		ApplyURI(uri).
		SetMaxConnIdleTime(defaultConnMaxIdle).
		SetMinPoolSize(defaultMinPoolSize).
		SetMaxPoolSize(defaultMaxPoolSize).
		SetConnectTimeout(defaultConnectTimeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(context.Background(), defaultPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return client.Database(cfg.Database.Name), nil
}

// Ping checks that the primary is reachable.
func Ping(ctx context.Context, database *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	return database.Client().Ping(ctx, readpref.Primary())
}

// Close disconnects the client behind database.
func Close(database *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultDisconnectGrace)
	defer cancel()
	return database.Client().Disconnect(ctx)
}
