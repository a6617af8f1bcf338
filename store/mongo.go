package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var _ Store = (*Mongo)(nil)

// Mongo is a MongoDB-backed Store. One document per key, upserted on every
// put, so concurrent refreshes resolve to last-write-wins.
type Mongo struct {
	tokens *mongo.Collection
	key    string
}

// NewMongo returns a store persisting into the "oauth_tokens" collection of
// the given DB. The key distinguishes multiple SDK instances sharing one
// database (for example one per client id).
func NewMongo(db *mongo.Database, key string) *Mongo {
	return &Mongo{
		tokens: db.Collection("oauth_tokens"),
		key:    key,
	}
}

// GetCredentials retrieves the stored credentials.
func (s *Mongo) GetCredentials(ctx context.Context) (*Credentials, error) {
	var doc struct {
		AccessToken  string    `bson:"access_token"`
		RefreshToken string    `bson:"refresh_token"`
		TokenType    string    `bson:"token_type"`
		Scope        []string  `bson:"scope"`
		ExpiresAt    time.Time `bson:"expires_at"`
		IssuedAt     time.Time `bson:"issued_at"`
	}
	err := s.tokens.FindOne(ctx, bson.M{"key": s.key}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: loading credentials: %w", err)
	}
	return &Credentials{
		AccessToken:  doc.AccessToken,
		RefreshToken: doc.RefreshToken,
		TokenType:    doc.TokenType,
		Scope:        doc.Scope,
		ExpiresAt:    doc.ExpiresAt,
		IssuedAt:     doc.IssuedAt,
	}, nil
}

// PutCredentials upserts the credentials document.
func (s *Mongo) PutCredentials(ctx context.Context, creds *Credentials) error {
	filter := bson.M{"key": s.key}
	upd := bson.M{"$set": bson.M{
		"access_token":  creds.AccessToken,
		"refresh_token": creds.RefreshToken,
		"token_type":    creds.TokenType,
		"scope":         creds.Scope,
		"expires_at":    creds.ExpiresAt,
		"issued_at":     creds.IssuedAt,
	}}
	opts := options.Update().SetUpsert(true)
	if _, err := s.tokens.UpdateOne(ctx, filter, upd, opts); err != nil {
		return fmt.Errorf("store: saving credentials: %w", err)
	}
	return nil
}
