// Package store persists the short-lived OAuth2 credentials issued to an SDK
// instance. The core treats storage as an opaque capability: any type
// implementing Store can be plugged into the client.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by GetCredentials when the store holds no
// credentials yet.
var ErrNotFound = errors.New("store: no credentials")

// Credentials is the token material issued by the OAuth host. A Credentials
// value is never mutated after construction; refreshing produces a new value.
type Credentials struct {
	AccessToken  string    `json:"access_token" bson:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty" bson:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty" bson:"token_type,omitempty"`
	Scope        []string  `json:"scope,omitempty" bson:"scope,omitempty"`
	ExpiresAt    time.Time `json:"expires_at" bson:"expires_at"`
	IssuedAt     time.Time `json:"issued_at" bson:"issued_at"`
}

// Expired reports whether the access token is no longer usable at the given
// instant. The expiry already carries the issuance-time safety skew, so a
// plain comparison is enough.
func (c *Credentials) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Store persists one Credentials record per SDK instance.
type Store interface {
	// GetCredentials returns the last stored credentials, or ErrNotFound.
	GetCredentials(ctx context.Context) (*Credentials, error)

	// PutCredentials replaces the stored credentials.
	PutCredentials(ctx context.Context, creds *Credentials) error
}
