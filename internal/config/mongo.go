package config

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func ConnectMongoDB(cfg *Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %v", err)
	}

	// Test connection
	err = client.Ping(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %v", err)
	}

	// Create indexes
	err = createIndexes(client, cfg.DBName)
	if err != nil {
		return nil, fmt.Errorf("failed to create indexes: %v", err)
	}

	return client, nil
}

func createIndexes(client *mongo.Client, dbName string) error {
	db := client.Database(dbName)

	// Causas collection: one row per portal identity tuple, plus the
	// queries the orchestrator runs (status sweep, freshness checks).
	causasCollection := db.Collection("causas")
	causaIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "jurisdiction", Value: 1},
				{Key: "court", Value: 1},
				{Key: "tribunal", Value: 1},
				{Key: "case_type", Value: 1},
				{Key: "roll", Value: 1},
				{Key: "year", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "status", Value: 1}, {Key: "updated_at", Value: -1}},
		},
	}
	_, err := causasCollection.Indexes().CreateMany(context.Background(), causaIndexes)
	if err != nil {
		return err
	}

	return nil
}
