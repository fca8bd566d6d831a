// Package contentmirror upserts a queryable shadow of archived responses
// into an optional MongoDB collection, per §4.M.
package contentmirror

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/thkoch2001/lara/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Doc is the on-disk shape of one mirrored response, per §3's ambient
// additions.
type Doc struct {
	URL         string              `bson:"url"`
	FinalURL    string              `bson:"final_url"`
	Status      int                 `bson:"status"`
	ContentType string              `bson:"content_type"`
	BodyHash    string              `bson:"body_hash"`
	BodySize    int                 `bson:"body_size"`
	Headers     map[string][]string `bson:"headers"`
	CrawledAt   time.Time           `bson:"crawled_at"`
}

// FromFetchResult builds a Doc from a fetch result. No redirects are
// followed by this core, so final_url always equals url.
func FromFetchResult(target string, fr model.FetchResult) Doc {
	sum := sha256.Sum256(fr.Body)
	return Doc{
		URL:         target,
		FinalURL:    target,
		Status:      fr.Status,
		ContentType: fr.ContentType(),
		BodyHash:    hex.EncodeToString(sum[:]),
		BodySize:    len(fr.Body),
		Headers:     map[string][]string(fr.Headers),
		CrawledAt:   fr.Start,
	}
}

// Mirror wraps a Mongo collection.
type Mirror struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

// New connects to uri/database. Callers should treat a non-nil error as
// "run without a content mirror" rather than fatal.
func New(ctx context.Context, uri, database string, logger *zap.Logger) (*Mirror, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("contentmirror: connecting: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("contentmirror: pinging: %w", err)
	}
	return &Mirror{
		collection: client.Database(database).Collection("content_mirror"),
		logger:     logger,
	}, nil
}

// Close disconnects the underlying client.
func (m *Mirror) Close(ctx context.Context) error {
	return m.collection.Database().Client().Disconnect(ctx)
}

// Upsert replaces the stored document for doc.URL, or inserts one if none
// exists yet: a re-fetch of the same URL updates rather than duplicates.
func (m *Mirror) Upsert(ctx context.Context, doc Doc) error {
	filter := bson.M{"url": doc.URL}
	update := bson.M{"$set": doc}
	opts := options.Update().SetUpsert(true)

	if _, err := m.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("contentmirror: upserting %s: %w", doc.URL, err)
	}
	return nil
}

// MirrorBestEffort upserts doc and logs (without returning) any failure,
// matching the crawl loop's fire-and-forget use of the mirror.
func (m *Mirror) MirrorBestEffort(ctx context.Context, doc Doc) {
	if err := m.Upsert(ctx, doc); err != nil {
		m.logger.Warn("failed to mirror content", zap.String("url", doc.URL), zap.Error(err))
	}
}
