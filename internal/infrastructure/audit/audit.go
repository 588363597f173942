// Package audit persists audit records delivered from the outbox.
package audit

import (
	"context"
	"fmt"
	"time"

	"bankcore/internal/config"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

type Severity string

const (
	SeverityInfo    Severity = "INFO"
	SeverityWarning Severity = "WARNING"
	SeverityError   Severity = "ERROR"
)

// Record is the audit document. It is also the payload of audit outbox rows.
type Record struct {
	Event         string                 `bson:"event" json:"event"`
	Severity      Severity               `bson:"severity" json:"severity"`
	Message       string                 `bson:"message" json:"message"`
	OwnerID       int64                  `bson:"owner_id,omitempty" json:"owner_id,omitempty"`
	Endpoint      string                 `bson:"endpoint,omitempty" json:"endpoint,omitempty"`
	ClientIP      string                 `bson:"client_ip,omitempty" json:"client_ip,omitempty"`
	Metadata      map[string]interface{} `bson:"metadata,omitempty" json:"metadata,omitempty"`
	CorrelationID string                 `bson:"correlation_id" json:"correlation_id"`
	OccurredAt    time.Time              `bson:"occurred_at" json:"occurred_at"`
}

type Writer interface {
	Write(ctx context.Context, rec *Record) error
}

type MongoStore struct {
	coll *mongo.Collection
}

func NewMongoStore(coll *mongo.Collection) *MongoStore {
	return &MongoStore{coll: coll}
}

func (s *MongoStore) Write(ctx context.Context, rec *Record) error {
	if _, err := s.coll.InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

// EnsureIndexes creates the lookup indexes used when investigating a request.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "correlation_id", Value: 1}}},
		{Keys: bson.D{{Key: "event", Value: 1}, {Key: "occurred_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create audit indexes: %w", err)
	}
	return nil
}

// ConnectMongo opens a client and pings the primary.
func ConnectMongo(ctx context.Context, cfg *config.MongoConfig) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

// LogStore writes audit records to the process log. Used when Mongo is disabled.
type LogStore struct {
	log *zap.Logger
}

func NewLogStore(log *zap.Logger) *LogStore {
	return &LogStore{log: log.Named("audit")}
}

func (s *LogStore) Write(ctx context.Context, rec *Record) error {
	fields := []zap.Field{
		zap.String("event", rec.Event),
		zap.String("correlation_id", rec.CorrelationID),
		zap.Time("occurred_at", rec.OccurredAt),
	}
	if rec.OwnerID != 0 {
		fields = append(fields, zap.Int64("owner_id", rec.OwnerID))
	}
	if len(rec.Metadata) > 0 {
		fields = append(fields, zap.Any("metadata", rec.Metadata))
	}

	switch rec.Severity {
	case SeverityError:
		s.log.Error(rec.Message, fields...)
	case SeverityWarning:
		s.log.Warn(rec.Message, fields...)
	default:
		s.log.Info(rec.Message, fields...)
	}
	return nil
}
