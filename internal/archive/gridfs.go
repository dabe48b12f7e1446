package archive

import (
	"context"
	"fmt"
	"os"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jamolinav/ai-assist-attorney/internal/logger"
)

// Archive stores built case stores durably in GridFS so any worker can
// serve a case another worker acquired.
type Archive struct {
	bucket *gridfs.Bucket
}

func New(client *mongo.Client, dbName string) (*Archive, error) {
	bucket, err := gridfs.NewBucket(
		client.Database(dbName),
		options.GridFSBucket().SetName("causa_stores"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive bucket: %w", err)
	}
	return &Archive{bucket: bucket}, nil
}

// Upload copies a local file into the bucket under remoteName,
// replacing any previous version.
func (a *Archive) Upload(ctx context.Context, localPath, remoteName string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer f.Close()

	// Drop earlier versions so a re-acquisition replaces, not appends.
	if err := a.deleteByName(ctx, remoteName); err != nil {
		logger.Warn("failed to drop previous archive version", "name", remoteName, "error", err)
	}

	if _, err := a.bucket.UploadFromStream(remoteName, f); err != nil {
		return fmt.Errorf("failed to upload %s: %w", remoteName, err)
	}
	logger.Info("case store archived", "name", remoteName)
	return nil
}

// Download copies the named file from the bucket to localPath.
func (a *Archive) Download(ctx context.Context, remoteName, localPath string) error {
	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", localPath, err)
	}
	defer f.Close()

	if _, err := a.bucket.DownloadToStreamByName(remoteName, f); err != nil {
		os.Remove(localPath)
		return fmt.Errorf("failed to download %s: %w", remoteName, err)
	}
	return nil
}

func (a *Archive) deleteByName(ctx context.Context, remoteName string) error {
	cursor, err := a.bucket.Find(bson.M{"filename": remoteName})
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var file struct {
			ID interface{} `bson:"_id"`
		}
		if err := cursor.Decode(&file); err != nil {
			return err
		}
		if err := a.bucket.Delete(file.ID); err != nil {
			return err
		}
	}
	return cursor.Err()
}
