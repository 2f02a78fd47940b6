// Package auth holds API clients, their credentials and sessions, and the
// service that authenticates requests against them.
package auth

import (
	"context"
	"time"
)

// Permission levels. Lower values are more privileged.
const (
	AdminLevel   = 0
	DefaultLevel = 10
)

// Client is the API identity attached to a user. Secret is the bcrypt hash of
// the client secret; the plaintext is only ever returned at generation time.
type Client struct {
	ID      int64
	UserID  int64
	Level   int
	Key     string
	Secret  string
	Valid   bool
	Created time.Time
}

// Revoked reports whether access has been revoked for the client.
func (c *Client) Revoked() bool {
	return !c.Valid
}

// Permits reports whether the client may access routes requiring level.
func (c *Client) Permits(level int) bool {
	return c.Level <= level
}

// Session records the most recent token issued to a client. Token holds the
// digest of the token, never the token itself.
type Session struct {
	ID       int64
	ClientID int64
	Expires  *time.Time
	Token    string
	Created  time.Time
}

// Credentials is a plaintext key/secret pair.
type Credentials struct {
	Key    string `json:"key"`
	Secret string `json:"secret"`
}

// Repository persists clients and sessions. Lookups that find nothing fail
// with an apierr.RecordNotFound error.
type Repository interface {
	ClientByID(ctx context.Context, id int64) (*Client, error)
	ClientByKey(ctx context.Context, key string) (*Client, error)
	ClientByUser(ctx context.Context, userID int64) (*Client, error)
	CreateClient(ctx context.Context, c *Client) error
	UpdateCredentials(ctx context.Context, clientID int64, key, secret string) error
	SetValid(ctx context.Context, clientID int64, valid bool) error
	UpsertSession(ctx context.Context, s *Session) error
}
