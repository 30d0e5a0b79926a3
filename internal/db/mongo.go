package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/richd0tcom/trashbin/internal/aggregate"
	"github.com/richd0tcom/trashbin/internal/domain"
)

// Collection names.
const (
	eventsCollection   = "detections_log"
	countersCollection = "detections"
	totalsCollection   = "daily_totals"
)

// MongoStore keeps the detection log in a time-series collection, one
// counter document per category, and the archived daily totals.
// Rollover runs in a multi-document transaction, so the deployment must be a
// replica set.
type MongoStore struct {
	client   *mongo.Client
	db       *mongo.Database
	events   *mongo.Collection
	counters *mongo.Collection
	totals   *mongo.Collection
}

type eventDoc struct {
	ObjectType string    `bson:"object_type"`
	CreatedAt  time.Time `bson:"created_at"`
}

type counterDoc struct {
	ID            string `bson:"_id"`
	Count         int64  `bson:"count"`
	LastResetDate string `bson:"last_reset_date"`
}

type snapshotDoc struct {
	ObjectType string    `bson:"object_type"`
	Count      int64     `bson:"count"`
	Day        string    `bson:"day"`
	ArchivedAt time.Time `bson:"archived_at"`
}

func NewMongoConnection(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return client, nil
}

func NewMongoStore(ctx context.Context, client *mongo.Client, database string) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	db := client.Database(database)

	tsOptions := options.CreateCollection().SetTimeSeriesOptions(
		options.TimeSeries().
			SetTimeField("created_at").
			SetMetaField("object_type").
			SetGranularity("minutes"),
	)

	// NamespaceExists on restart is expected
	if err := db.CreateCollection(ctx, eventsCollection, tsOptions); err != nil && !isNamespaceExists(err) {
		return nil, fmt.Errorf("create %s: %w", eventsCollection, err)
	}

	store := &MongoStore{
		client:   client,
		db:       db,
		events:   db.Collection(eventsCollection),
		counters: db.Collection(countersCollection),
		totals:   db.Collection(totalsCollection),
	}

	if _, err := store.events.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "object_type", Value: 1},
			{Key: "created_at", Value: 1},
		},
	}); err != nil {
		return nil, fmt.Errorf("index %s: %w", eventsCollection, err)
	}

	if _, err := store.totals.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "object_type", Value: 1},
			{Key: "day", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return nil, fmt.Errorf("index %s: %w", totalsCollection, err)
	}

	return store, nil
}

func isNamespaceExists(err error) bool {
	var cmdErr mongo.CommandError
	return errors.As(err, &cmdErr) && cmdErr.Name == "NamespaceExists"
}

func (m *MongoStore) InsertBatch(ctx context.Context, events []domain.Event) error {
	if len(events) == 0 {
		return nil
	}

	docs := make([]any, len(events))
	for i, e := range events {
		docs[i] = eventDoc{ObjectType: e.Category.String(), CreatedAt: e.OccurredAt}
	}

	opts := options.InsertMany().SetOrdered(false)
	_, err := m.events.InsertMany(ctx, docs, opts)
	return err
}

func (m *MongoStore) Query(ctx context.Context, category domain.Category, start, end time.Time) ([]domain.Event, error) {
	all, err := m.QueryAll(ctx, []domain.Category{category}, start, end)
	if err != nil {
		return nil, err
	}
	return all[category], nil
}

func (m *MongoStore) QueryAll(ctx context.Context, categories []domain.Category, start, end time.Time) (map[domain.Category][]domain.Event, error) {
	cursor, err := m.events.Aggregate(ctx, buildQueryPipeline(categories, start, end))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []eventDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	events := make([]domain.Event, 0, len(docs))
	for _, d := range docs {
		c, err := domain.ParseCategory(d.ObjectType)
		if err != nil {
			continue
		}
		events = append(events, domain.Event{Category: c, OccurredAt: d.CreatedAt})
	}
	return aggregate.Split(events), nil
}

// buildQueryPipeline selects the raw events of the given categories in
// [start, end). Bucketing happens in the aggregator so that empty buckets
// and label order do not depend on the database.
func buildQueryPipeline(categories []domain.Category, start, end time.Time) []bson.M {
	types := make([]string, len(categories))
	for i, c := range categories {
		types[i] = c.String()
	}

	matchStage := bson.M{
		"object_type": bson.M{"$in": types},
		"created_at": bson.M{
			"$gte": start,
			"$lt":  end,
		},
	}

	projectStage := bson.M{
		"_id":         0,
		"object_type": 1,
		"created_at":  1,
	}

	return []bson.M{
		{"$match": matchStage},
		{"$project": projectStage},
		{"$sort": bson.M{"created_at": 1}},
	}
}

func (m *MongoStore) Read(ctx context.Context, category domain.Category) (domain.LiveCounter, error) {
	var doc counterDoc
	err := m.counters.FindOne(ctx, bson.M{"_id": category.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.LiveCounter{}, domain.ErrCounterNotFound
	}
	if err != nil {
		return domain.LiveCounter{}, err
	}
	return doc.counter(category), nil
}

func (d counterDoc) counter(category domain.Category) domain.LiveCounter {
	return domain.LiveCounter{
		Category:      category,
		Count:         d.Count,
		LastResetDate: domain.Date(d.LastResetDate),
	}
}

// ConditionalReset resets the counter only while its last_reset_date still
// equals expected and inserts the archived total in the same transaction.
func (m *MongoStore) ConditionalReset(ctx context.Context, category domain.Category, expected, today domain.Date, archivedAt time.Time) (domain.Snapshot, bool, error) {
	session, err := m.client.StartSession()
	if err != nil {
		return domain.Snapshot{}, false, fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	var (
		snap    domain.Snapshot
		applied bool
	)
	_, err = session.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		applied = false

		var before counterDoc
		err := m.counters.FindOneAndUpdate(ctx,
			bson.M{"_id": category.String(), "last_reset_date": expected.String()},
			bson.M{"$set": bson.M{"count": int64(0), "last_reset_date": today.String()}},
			options.FindOneAndUpdate().SetReturnDocument(options.Before),
		).Decode(&before)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}

		snap = domain.Snapshot{Category: category, Count: before.Count, Day: expected, ArchivedAt: archivedAt}
		_, err = m.totals.InsertOne(ctx, snapshotDoc{
			ObjectType: category.String(),
			Count:      snap.Count,
			Day:        snap.Day.String(),
			ArchivedAt: snap.ArchivedAt,
		})
		if mongo.IsDuplicateKeyError(err) {
			// a total for this day exists while the counter was never reset
			return nil, fmt.Errorf("%w: %s total for %s already archived", domain.ErrInconsistentRollover, category, expected)
		}
		if err != nil {
			return nil, err
		}

		applied = true
		return nil, nil
	})
	if err != nil {
		return domain.Snapshot{}, false, err
	}
	return snap, applied, nil
}

func (m *MongoStore) Increment(ctx context.Context, category domain.Category, n int64, today domain.Date) (domain.LiveCounter, error) {
	var doc counterDoc
	err := m.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": category.String()},
		bson.M{
			"$inc":         bson.M{"count": n},
			"$setOnInsert": bson.M{"last_reset_date": today.String()},
		},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return domain.LiveCounter{}, err
	}
	return doc.counter(category), nil
}

func (m *MongoStore) Snapshots(ctx context.Context, category domain.Category) ([]domain.Snapshot, error) {
	cursor, err := m.totals.Find(ctx,
		bson.M{"object_type": category.String()},
		options.Find().SetSort(bson.D{{Key: "day", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []snapshotDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	out := make([]domain.Snapshot, len(docs))
	for i, d := range docs {
		out[i] = domain.Snapshot{
			Category:   category,
			Count:      d.Count,
			Day:        domain.Date(d.Day),
			ArchivedAt: d.ArchivedAt,
		}
	}
	return out, nil
}

func (m *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
