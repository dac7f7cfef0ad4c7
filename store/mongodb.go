package store

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type DB struct {
	Client   *mongo.Client
	Database *mongo.Database
}

func NewMongoDB(ctx context.Context, uri, dbName string) (*DB, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}
	log.Info().Str("db", dbName).Msg("connected to MongoDB")
	db := &DB{
		Client:   client,
		Database: client.Database(dbName),
	}
	if err := db.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

// ensureIndexes creates the unique partial indexes backing duplicate
// reconciliation. Partial filters keep placeholder records (no title yet)
// and records without an ISBN out of the constraints.
func (db *DB) ensureIndexes(ctx context.Context) error {
	_, err := db.Books().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "titleKey", Value: 1}, {Key: "authorKey", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{
					"titleKey":  bson.M{"$gt": ""},
					"authorKey": bson.M{"$gt": ""},
				}),
		},
		{
			Keys: bson.D{{Key: "isbnKey", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"isbnKey": bson.M{"$gt": ""}}),
		},
	})
	if err != nil {
		return err
	}
	_, err = db.Users().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (db *DB) Books() *mongo.Collection {
	return db.Database.Collection("books")
}

func (db *DB) Users() *mongo.Collection {
	return db.Database.Collection("users")
}

func (db *DB) Disconnect(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return db.Client.Disconnect(ctx)
}
