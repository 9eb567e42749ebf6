// Package mongo keeps resumption state in a MongoDB collection, one
// document per dataset keyed by the dataset id.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"eksupdater/internal/period"
	"eksupdater/internal/storage"
)

// DefaultDatabase is used when the URI names no database.
const DefaultDatabase = "eksupdater"

type document struct {
	DatasetID     string    `bson:"_id"`
	LastProcessed string    `bson:"last_processed"`
	UpdatedAt     time.Time `bson:"updated_at"`
}

// Store implements storage.Store over a MongoDB collection.
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
	now    func() time.Time
}

var _ storage.Store = (*Store)(nil)

// Open connects to uri, e.g. "mongodb://eks:secret@db:27017/eks", and uses
// collection in the database named by the URI path.
func Open(ctx context.Context, uri, collection string) (*Store, error) {
	if strings.TrimSpace(uri) == "" {
		return nil, errors.New("mongo: DSN must not be empty")
	}
	if strings.TrimSpace(collection) == "" {
		return nil, errors.New("mongo: collection must not be empty")
	}
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: ping: %w", err)
	}

	return &Store{
		client: client,
		coll:   client.Database(databaseName(uri)).Collection(collection),
		now:    time.Now,
	}, nil
}

// databaseName extracts the path of a mongodb:// or mongodb+srv:// URI.
// The host list of a replica set is not a valid URL host, so net/url does
// not apply.
func databaseName(uri string) string {
	rest := uri
	for _, prefix := range []string{"mongodb+srv://", "mongodb://"} {
		if strings.HasPrefix(rest, prefix) {
			rest = rest[len(prefix):]
			break
		}
	}
	if i := strings.LastIndex(rest, "@"); i != -1 {
		rest = rest[i+1:]
	}
	i := strings.Index(rest, "/")
	if i == -1 {
		return DefaultDatabase
	}
	db := rest[i+1:]
	if q := strings.Index(db, "?"); q != -1 {
		db = db[:q]
	}
	if db == "" {
		return DefaultDatabase
	}
	return db
}

// Load reads every document of the collection.
func (s *Store) Load(ctx context.Context) (storage.State, error) {
	cur, err := s.coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("mongo: load state: %w", err)
	}
	defer cur.Close(ctx)

	st := storage.State{}
	for cur.Next(ctx) {
		var doc document
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongo: decode state: %w", err)
		}
		ym, err := period.Parse(doc.LastProcessed)
		if err != nil {
			return nil, fmt.Errorf("mongo: dataset %s: %w", doc.DatasetID, err)
		}
		st[doc.DatasetID] = ym
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("mongo: load state: %w", err)
	}
	return st, nil
}

// Save upserts the document of datasetID.
func (s *Store) Save(ctx context.Context, datasetID string, ym period.YearMonth) error {
	update := bson.M{"$set": bson.M{
		"last_processed": ym.String(),
		"updated_at":     s.now().UTC(),
	}}
	_, err := s.coll.UpdateOne(ctx, bson.M{"_id": datasetID}, update, options.UpdateOne().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongo: save state for %s: %w", datasetID, err)
	}
	return nil
}

// Close disconnects the client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func init() {
	storage.Register("mongo", func(ctx context.Context, cfg storage.Config) (storage.Store, error) {
		return Open(ctx, cfg.DSN, cfg.Table)
	})
}
