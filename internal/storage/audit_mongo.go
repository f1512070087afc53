package storage

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// WebhookArchive keeps an immutable copy of every raw bank callback in
// MongoDB. Disputes with a bank get settled by replaying exactly what
// the bank sent, so the archive stores payloads before any parsing has
// had a chance to mangle them. The relational store keeps the parsed
// rows; this is the evidence locker.
type WebhookArchive struct {
	client     *mongo.Client
	deliveries *mongo.Collection
}

// archivedDelivery is the document shape for one raw callback.
type archivedDelivery struct {
	Rail       string    `bson:"rail"`
	SlipRef    string    `bson:"slip_ref,omitempty"`
	Payload    []byte    `bson:"payload"`
	ReceivedAt time.Time `bson:"received_at"`
}

// NewWebhookArchive connects to MongoDB and prepares the deliveries
// collection. Callers should skip construction entirely when no URI is
// configured; the archive is optional.
func NewWebhookArchive(connectionString, database string) (*WebhookArchive, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(connectionString))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		// The Disconnect error would only obscure the connection failure.
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	archive := &WebhookArchive{
		client:     client,
		deliveries: client.Database(database).Collection("webhook_deliveries"),
	}

	if err := archive.createIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	return archive, nil
}

func (a *WebhookArchive) createIndexes(ctx context.Context) error {
	_, err := a.deliveries.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "rail", Value: 1}, {Key: "received_at", Value: -1}}},
		{Keys: bson.D{{Key: "slip_ref", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create webhook archive indexes: %w", err)
	}
	return nil
}

// Archive stores one raw callback payload. Archive failures must never
// block payment processing; callers log and move on.
func (a *WebhookArchive) Archive(ctx context.Context, rail, slipRef string, payload []byte) error {
	doc := archivedDelivery{
		Rail:       rail,
		SlipRef:    slipRef,
		Payload:    payload,
		ReceivedAt: time.Now().UTC(),
	}
	if _, err := a.deliveries.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("archive webhook delivery: %w", err)
	}
	return nil
}

// Close disconnects from MongoDB.
func (a *WebhookArchive) Close(ctx context.Context) error {
	return a.client.Disconnect(ctx)
}
