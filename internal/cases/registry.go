package cases

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jamolinav/ai-assist-attorney/internal/logger"
	"github.com/jamolinav/ai-assist-attorney/models"
)

// Outcome of a case request, reported to the API caller.
type Outcome struct {
	Case    *models.Case
	Action  Action
	Queued  bool
	Message string
}

// Registry is the MongoDB-backed record of every case the system has
// seen. Status transitions go through compare-and-set so two concurrent
// requests for the same case cannot both enqueue a job.
type Registry struct {
	collection *mongo.Collection
}

func NewRegistry(client *mongo.Client, dbName string) *Registry {
	return &Registry{collection: client.Database(dbName).Collection("causas")}
}

// now returns the current time truncated to milliseconds, the precision
// Mongo round-trips. CAS filters compare stored timestamps by equality,
// so every write uses this.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// ResolveOrCreate returns the case row for an identity, inserting a
// pending row on first sight.
func (r *Registry) ResolveOrCreate(ctx context.Context, id models.CaseIdentity) (*models.Case, error) {
	ts := now()
	filter := bson.M{
		"jurisdiction": id.Jurisdiction,
		"court":        id.Court,
		"tribunal":     id.Tribunal,
		"case_type":    id.CaseType,
		"roll":         id.Roll,
		"year":         id.Year,
	}
	update := bson.M{
		"$setOnInsert": bson.M{
			"jurisdiction": id.Jurisdiction,
			"court":        id.Court,
			"tribunal":     id.Tribunal,
			"case_type":    id.CaseType,
			"roll":         id.Roll,
			"year":         id.Year,
			"title":        id.Title(),
			"status":       models.StatusPending,
			"created_at":   ts,
			"updated_at":   ts,
		},
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var c models.Case
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&c); err != nil {
		return nil, fmt.Errorf("failed to resolve case: %w", err)
	}
	return &c, nil
}

// RequestCase decides what to do for an incoming request and, when a
// job is needed, claims the row by CAS on (status, updated_at). Losing
// the race means another request claimed it first, which reads as
// in-progress to this caller.
func (r *Registry) RequestCase(ctx context.Context, id models.CaseIdentity) (*Outcome, error) {
	c, err := r.ResolveOrCreate(ctx, id)
	if err != nil {
		return nil, err
	}

	action := Decide(c.Status, c.UpdatedAt, time.Now())
	switch action {
	case ActionServeCached:
		return &Outcome{Case: c, Action: action, Message: "case store is fresh"}, nil
	case ActionInProgress:
		return &Outcome{Case: c, Action: action, Message: "acquisition already running"}, nil
	}

	claimed, err := r.CompareAndSetStatus(ctx, c.ID, c.Status, c.UpdatedAt, models.StatusPending)
	if err != nil {
		return nil, err
	}
	if !claimed {
		logger.Info("lost claim race for case", "case_id", c.ID.Hex())
		return &Outcome{Case: c, Action: ActionInProgress, Message: "acquisition already running"}, nil
	}
	return &Outcome{Case: c, Action: ActionEnqueue, Queued: true}, nil
}

// CompareAndSetStatus transitions a case's status only when the row
// still carries the expected status and updated_at. Returns whether
// the write won.
func (r *Registry) CompareAndSetStatus(ctx context.Context, caseID primitive.ObjectID, fromStatus string, fromUpdatedAt time.Time, toStatus string) (bool, error) {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{
			"_id":        caseID,
			"status":     fromStatus,
			"updated_at": fromUpdatedAt.UTC().Truncate(time.Millisecond),
		},
		bson.M{"$set": bson.M{
			"status":     toStatus,
			"updated_at": now(),
		}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to CAS case status: %w", err)
	}
	return res.ModifiedCount == 1, nil
}

// ClaimForProcessing flips a pending case to processing, but only if it
// is still pending. The worker calls this before touching the portal.
func (r *Registry) ClaimForProcessing(ctx context.Context, caseID primitive.ObjectID) (bool, error) {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": caseID, "status": models.StatusPending},
		bson.M{"$set": bson.M{
			"status":     models.StatusProcessing,
			"updated_at": now(),
		}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to claim case: %w", err)
	}
	return res.ModifiedCount == 1, nil
}

// SetStatus unconditionally writes a status, recording the error text
// for error transitions.
func (r *Registry) SetStatus(ctx context.Context, caseID primitive.ObjectID, status, lastError string) error {
	set := bson.M{
		"status":     status,
		"updated_at": now(),
	}
	if lastError != "" {
		set["last_error"] = lastError
	}
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": caseID}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to set case status: %w", err)
	}
	return nil
}

// SetReady marks the acquisition complete, recording where the
// documents and the store ended up.
func (r *Registry) SetReady(ctx context.Context, caseID primitive.ObjectID, docDir, storePath string) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": caseID},
		bson.M{"$set": bson.M{
			"status":     models.StatusReady,
			"doc_dir":    docDir,
			"store_path": storePath,
			"last_error": "",
			"updated_at": now(),
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to mark case ready: %w", err)
	}
	return nil
}

// GetByID fetches one case row.
func (r *Registry) GetByID(ctx context.Context, caseID primitive.ObjectID) (*models.Case, error) {
	var c models.Case
	if err := r.collection.FindOne(ctx, bson.M{"_id": caseID}).Decode(&c); err != nil {
		return nil, fmt.Errorf("case %s not found: %w", caseID.Hex(), err)
	}
	return &c, nil
}

// FailStaleProcessing flips processing rows untouched for longer than
// olderThan to error so the next request retries them. The sweeper job
// runs this on a schedule to recover from killed workers.
func (r *Registry) FailStaleProcessing(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan).Truncate(time.Millisecond)
	res, err := r.collection.UpdateMany(ctx,
		bson.M{
			"status":     models.StatusProcessing,
			"updated_at": bson.M{"$lt": cutoff},
		},
		bson.M{"$set": bson.M{
			"status":     models.StatusError,
			"last_error": "acquisition abandoned by worker",
			"updated_at": now(),
		}},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep stale cases: %w", err)
	}
	if res.ModifiedCount > 0 {
		logger.Warn("swept stale processing cases", "count", res.ModifiedCount)
	}
	return res.ModifiedCount, nil
}
