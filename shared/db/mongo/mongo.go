package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	connectTimeout = 10 * time.Second

	DefaultDatabase   = "blogspace"
	DefaultCollection = "blogs"
)

type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

// MongoDB owns the client connection and hands out the posts collection
type MongoDB struct {
	cfg    *MongoConfig
	client *mongo.Client
}

func NewMongoDB(cfg *MongoConfig) *MongoDB {
	return &MongoDB{
		cfg: cfg,
	}
}

// Connect dials the server, pings the primary and ensures the createdAt index used for listing
func (m *MongoDB) Connect(ctx context.Context) error {
	if m.client != nil {
		return fmt.Errorf("database already connected")
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(m.cfg.URI))
	if err != nil {
		return fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(context.Background())
		return fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	m.client = client

	_, err = m.Collection().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "createdAt", Value: 1}},
	})
	if err != nil {
		m.Close(context.Background())
		return fmt.Errorf("failed to create createdAt index: %w", err)
	}

	return nil
}

// Collection returns the configured posts collection
func (m *MongoDB) Collection() *mongo.Collection {
	database := m.cfg.Database
	if database == "" {
		database = DefaultDatabase
	}
	collection := m.cfg.Collection
	if collection == "" {
		collection = DefaultCollection
	}
	return m.client.Database(database).Collection(collection)
}

func (m *MongoDB) Close(ctx context.Context) error {
	if m.client == nil {
		return nil
	}

	err := m.client.Disconnect(ctx)
	m.client = nil
	return err
}
