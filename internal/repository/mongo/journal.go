package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"torrentsession/internal/domain"
)

const defaultHistoryLimit = 50

type lifecycleEventDoc struct {
	TransferID int64  `bson:"transferId"`
	Name       string `bson:"name"`
	Action     string `bson:"action"`
	Status     string `bson:"status,omitempty"`
	Source     string `bson:"source,omitempty"`
	At         int64  `bson:"at"`
}

// JournalRepository is an append-only log of transfer lifecycle events. It
// is never read back to rebuild transfers.
type JournalRepository struct {
	collection *mongo.Collection
}

func NewJournalRepository(client *mongo.Client, dbName, collectionName string) *JournalRepository {
	return &JournalRepository{collection: client.Database(dbName).Collection(collectionName)}
}

func Connect(ctx context.Context, uri string, extra ...*options.ClientOptions) (*mongo.Client, error) {
	opts := append([]*options.ClientOptions{options.Client().ApplyURI(uri)}, extra...)
	client, err := mongo.Connect(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (r *JournalRepository) EnsureIndexes(ctx context.Context) error {
	if r == nil || r.collection == nil {
		return nil
	}
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "at", Value: -1}}},
		{Keys: bson.D{{Key: "transferId", Value: 1}, {Key: "at", Value: -1}}},
	}
	if _, err := r.collection.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("create journal indexes: %w", err)
	}
	return nil
}

func (r *JournalRepository) Record(ctx context.Context, event domain.LifecycleEvent) error {
	if _, err := r.collection.InsertOne(ctx, toEventDoc(event)); err != nil {
		return fmt.Errorf("record %s event for transfer %d: %w", event.Action, event.TransferID, err)
	}
	return nil
}

// ListRecent returns the newest events first.
func (r *JournalRepository) ListRecent(ctx context.Context, limit int) ([]domain.LifecycleEvent, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []lifecycleEventDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	events := make([]domain.LifecycleEvent, 0, len(docs))
	for _, doc := range docs {
		events = append(events, fromEventDoc(doc))
	}
	return events, nil
}

// Ids are stored as int64 bit patterns; BSON has no unsigned 64-bit type.
func toEventDoc(event domain.LifecycleEvent) lifecycleEventDoc {
	return lifecycleEventDoc{
		TransferID: int64(event.TransferID),
		Name:       event.Name,
		Action:     string(event.Action),
		Status:     string(event.Status),
		Source:     event.Source,
		At:         event.At.UnixMilli(),
	}
}

func fromEventDoc(doc lifecycleEventDoc) domain.LifecycleEvent {
	return domain.LifecycleEvent{
		TransferID: domain.TransferID(uint64(doc.TransferID)),
		Name:       doc.Name,
		Action:     domain.LifecycleAction(doc.Action),
		Status:     domain.TransferStatus(doc.Status),
		Source:     doc.Source,
		At:         time.UnixMilli(doc.At).UTC(),
	}
}
