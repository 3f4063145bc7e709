// Package mongodb implements the gateway storage using MongoDB
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sirosfoundation/go-as4-gateway/internal/messagelog"
	"github.com/sirosfoundation/go-as4-gateway/pkg/pmode"
)

// Store holds the PMode document and the message logs in MongoDB
type Store struct {
	client *mongo.Client
	db     *mongo.Database

	pmodes      *PModeRepository
	userLogs    *LogRepository[*messagelog.UserMessageLog]
	signalLogs  *LogRepository[*messagelog.SignalMessageLog]
	transaction bool
}

// Config holds MongoDB connection settings
type Config struct {
	URI      string
	Database string
	// Transactions enables multi-document transactions, which require a
	// replica set or sharded cluster
	Transactions bool
}

// NewStore creates a new MongoDB store
func NewStore(ctx context.Context, cfg *Config) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connecting to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("pinging MongoDB: %w", err)
	}

	db := client.Database(cfg.Database)
	s := &Store{
		client: client,
		db:     db,
		pmodes: &PModeRepository{
			current: db.Collection("pmode_current"),
			history: db.Collection("pmode_history"),
		},
		userLogs:    NewLogRepository(db.Collection(messagelog.UserMessages.Name), messagelog.UserMessages),
		signalLogs:  NewLogRepository(db.Collection(messagelog.SignalMessages.Name), messagelog.SignalMessages),
		transaction: cfg.Transactions,
	}

	if err := s.createIndexes(ctx); err != nil {
		return nil, fmt.Errorf("creating indexes: %w", err)
	}

	return s, nil
}

func (s *Store) createIndexes(ctx context.Context) error {
	logIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "message_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "received", Value: -1}}},
	}
	for _, coll := range []*mongo.Collection{s.userLogs.coll, s.signalLogs.coll} {
		if _, err := coll.Indexes().CreateMany(ctx, logIndexes); err != nil {
			return fmt.Errorf("creating %s indexes: %w", coll.Name(), err)
		}
	}

	_, err := s.pmodes.history.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "uploaded_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("creating pmode history indexes: %w", err)
	}
	return nil
}

// PModes returns the PMode document repository
func (s *Store) PModes() pmode.Repository {
	return s.pmodes
}

// UserMessageLogs returns the user message log repository
func (s *Store) UserMessageLogs() messagelog.Repository[*messagelog.UserMessageLog] {
	return s.userLogs
}

// SignalMessageLogs returns the signal message log repository
func (s *Store) SignalMessageLogs() messagelog.Repository[*messagelog.SignalMessageLog] {
	return s.signalLogs
}

// InTx runs fn in a session transaction when transactions are enabled, and
// directly otherwise.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if !s.transaction {
		return fn(ctx)
	}
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("starting session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

// Close closes the MongoDB connection
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Ping verifies database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

const currentID = "current"

type pmodeDoc struct {
	ID         string    `bson:"_id,omitempty"`
	Raw        []byte    `bson:"raw"`
	Parties    int       `bson:"parties"`
	Processes  int       `bson:"processes"`
	UploadedAt time.Time `bson:"uploaded_at"`
}

// PModeRepository keeps the current PMode document and an upload history
type PModeRepository struct {
	current *mongo.Collection
	history *mongo.Collection
}

// Exists implements pmode.Repository.
func (r *PModeRepository) Exists(ctx context.Context) (bool, error) {
	n, err := r.current.CountDocuments(ctx, bson.M{"_id": currentID})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Load implements pmode.Repository.
func (r *PModeRepository) Load(ctx context.Context) ([]byte, error) {
	var doc pmodeDoc
	err := r.current.FindOne(ctx, bson.M{"_id": currentID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, pmode.ErrConfigurationMissing
	}
	if err != nil {
		return nil, err
	}
	return doc.Raw, nil
}

// Save implements pmode.Repository.
func (r *PModeRepository) Save(ctx context.Context, raw []byte, cfg *pmode.Configuration) error {
	doc := pmodeDoc{
		Raw:        raw,
		Parties:    len(cfg.Parties),
		Processes:  len(cfg.Processes),
		UploadedAt: time.Now().UTC(),
	}
	if _, err := r.history.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("archiving pmode document: %w", err)
	}
	doc.ID = currentID
	_, err := r.current.ReplaceOne(ctx, bson.M{"_id": currentID}, doc, options.Replace().SetUpsert(true))
	return err
}
