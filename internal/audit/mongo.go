package audit

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/iuliailies/moneytrack-backend/internal/domain"
)

const (
	apiLogsCollection = "api_logs"
	eventsCollection  = "security_events"
)

// MongoSink writes the trail to two MongoDB collections.
type MongoSink struct {
	client *mongo.Client
	calls  *mongo.Collection
	events *mongo.Collection
}

func NewMongoSink(ctx context.Context, uri, database string) (*MongoSink, error) {
	cli, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := cli.Ping(ctx, nil); err != nil {
		_ = cli.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	db := cli.Database(database)
	s := &MongoSink{client: cli, calls: db.Collection(apiLogsCollection), events: db.Collection(eventsCollection)}

	_, err = s.calls.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "bank_code", Value: 1}, {Key: "timestamp", Value: -1}}},
	})
	if err != nil {
		_ = cli.Disconnect(ctx)
		return nil, fmt.Errorf("create indexes: %w", err)
	}
	return s, nil
}

func (s *MongoSink) RecordAPICall(ctx context.Context, entry domain.APILog) error {
	if _, err := s.calls.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("insert api log: %w", err)
	}
	return nil
}

func (s *MongoSink) RecordSecurityEvent(ctx context.Context, ev SecurityEvent) error {
	if _, err := s.events.InsertOne(ctx, ev); err != nil {
		return fmt.Errorf("insert security event: %w", err)
	}
	return nil
}

func (s *MongoSink) Recent(ctx context.Context, f Filter, limit int) ([]domain.APILog, error) {
	filter := bson.M{}
	if f.UserID != 0 {
		filter["user_id"] = f.UserID
	}
	if f.BankCode != "" {
		filter["bank_code"] = f.BankCode
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cur, err := s.calls.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find api logs: %w", err)
	}
	defer cur.Close(ctx)

	out := []domain.APILog{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode api logs: %w", err)
	}
	return out, nil
}

func (s *MongoSink) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
