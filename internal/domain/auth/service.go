package auth

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/refitt/refitt-api/internal/apierr"
	"github.com/refitt/refitt-api/internal/token"
)

// Options tunes a Service. Zero values fall back to the defaults.
type Options struct {
	// Lifetime of issued tokens.
	Lifetime time.Duration
	// Level assigned to clients created without an explicit level.
	Level int
	Hasher token.Hasher
}

func (o *Options) setDefaults() {
	if o.Lifetime == 0 {
		o.Lifetime = 15 * time.Minute
	}
	if o.Level == 0 {
		o.Level = DefaultLevel
	}
	if o.Hasher.Cost == 0 {
		o.Hasher = token.DefaultHasher
	}
}

// Service authenticates clients by token or by key/secret and manages their
// credentials.
type Service struct {
	clients  Repository
	codec    *token.Codec
	hasher   token.Hasher
	lifetime time.Duration
	level    int
}

// NewService creates a Service backed by repo.
func NewService(repo Repository, codec *token.Codec, opts Options) *Service {
	opts.setDefaults()
	return &Service{
		clients:  repo,
		codec:    codec,
		hasher:   opts.Hasher,
		lifetime: opts.Lifetime,
		level:    opts.Level,
	}
}

func revoked() *apierr.Error {
	return apierr.New(apierr.PermissionDenied, "Access has been revoked")
}

// VerifyCredentials returns the client owning key if secret matches.
func (s *Service) VerifyCredentials(ctx context.Context, key, secret string) (*Client, error) {
	c, err := s.clients.ClientByKey(ctx, key)
	switch {
	case apierr.Is(err, apierr.RecordNotFound):
		return nil, apierr.Wrap(apierr.AuthenticationInvalid, err, "Client key invalid")
	case err != nil:
		return nil, errors.Wrap(err, "get client by key")
	}
	if !s.hasher.Verify(c.Secret, secret) {
		return nil, apierr.New(apierr.AuthenticationInvalid, "Client secret invalid")
	}
	if c.Revoked() {
		return nil, revoked()
	}
	return c, nil
}

// ResolveToken validates a bearer token and returns the client it was issued
// to.
func (s *Service) ResolveToken(ctx context.Context, tok string) (*Client, error) {
	claims, err := s.codec.Decrypt(tok)
	if err != nil {
		return nil, err
	}
	c, err := s.clients.ClientByID(ctx, claims.Subject)
	switch {
	case apierr.Is(err, apierr.RecordNotFound):
		return nil, token.Invalid(tok, err)
	case err != nil:
		return nil, errors.Wrap(err, "get client")
	}
	if c.Revoked() {
		return nil, revoked()
	}
	return c, nil
}

// IssueToken creates a new token for c and records it as the client's
// session, replacing any previous one.
func (s *Service) IssueToken(ctx context.Context, c *Client) (string, error) {
	if c.Revoked() {
		return "", revoked()
	}
	tok, claims, err := s.codec.Issue(c.ID, s.lifetime)
	if err != nil {
		return "", errors.Wrap(err, "issue token")
	}
	session := &Session{
		ClientID: c.ID,
		Expires:  claims.Expires,
		Token:    token.Digest(tok),
	}
	if err := s.clients.UpsertSession(ctx, session); err != nil {
		return "", errors.Wrap(err, "save session")
	}
	return tok, nil
}

// IssueSession issues a token for the client belonging to userID.
func (s *Service) IssueSession(ctx context.Context, userID int64) (string, error) {
	c, err := s.clients.ClientByUser(ctx, userID)
	if err != nil {
		return "", errors.Wrap(err, "get client")
	}
	return s.IssueToken(ctx, c)
}

// NewClient creates a client for userID. A negative level selects the
// configured default.
func (s *Service) NewClient(ctx context.Context, userID int64, level int) (Credentials, *Client, error) {
	if level < 0 {
		level = s.level
	}
	creds := Credentials{Key: token.GenerateKey(), Secret: token.GenerateSecret()}
	hash, err := s.hasher.Hash(creds.Secret)
	if err != nil {
		return Credentials{}, nil, err
	}
	c := &Client{
		UserID: userID,
		Level:  level,
		Key:    creds.Key,
		Secret: hash,
		Valid:  true,
	}
	if err := s.clients.CreateClient(ctx, c); err != nil {
		return Credentials{}, nil, errors.Wrap(err, "create client")
	}
	zctx.From(ctx).Info("Client created",
		zap.Int64("user_id", userID),
		zap.Int64("client_id", c.ID),
		zap.Int("level", level),
	)
	return creds, c, nil
}

// RotateKey replaces both key and secret of the client belonging to userID.
func (s *Service) RotateKey(ctx context.Context, userID int64) (Credentials, error) {
	c, err := s.clients.ClientByUser(ctx, userID)
	if err != nil {
		return Credentials{}, errors.Wrap(err, "get client")
	}
	return s.rotate(ctx, c, token.GenerateKey())
}

// RotateSecret replaces the secret of the client belonging to userID. The key
// is unchanged.
func (s *Service) RotateSecret(ctx context.Context, userID int64) (Credentials, error) {
	c, err := s.clients.ClientByUser(ctx, userID)
	if err != nil {
		return Credentials{}, errors.Wrap(err, "get client")
	}
	return s.rotate(ctx, c, c.Key)
}

func (s *Service) rotate(ctx context.Context, c *Client, key string) (Credentials, error) {
	creds := Credentials{Key: key, Secret: token.GenerateSecret()}
	hash, err := s.hasher.Hash(creds.Secret)
	if err != nil {
		return Credentials{}, err
	}
	if err := s.clients.UpdateCredentials(ctx, c.ID, creds.Key, hash); err != nil {
		return Credentials{}, errors.Wrap(err, "update credentials")
	}
	return creds, nil
}

// Grant returns a fresh key and secret for userID, creating the client on
// first use.
func (s *Service) Grant(ctx context.Context, userID int64) (Credentials, error) {
	return s.orCreate(ctx, userID, s.RotateKey)
}

// RenewSecret returns a fresh secret for userID, creating the client on
// first use.
func (s *Service) RenewSecret(ctx context.Context, userID int64) (Credentials, error) {
	return s.orCreate(ctx, userID, s.RotateSecret)
}

func (s *Service) orCreate(
	ctx context.Context,
	userID int64,
	rotate func(context.Context, int64) (Credentials, error),
) (Credentials, error) {
	creds, err := rotate(ctx, userID)
	if apierr.Is(err, apierr.RecordNotFound) {
		creds, _, err = s.NewClient(ctx, userID, -1)
	}
	return creds, err
}

// SetAccess revokes (valid=false) or restores access for the client
// belonging to userID.
func (s *Service) SetAccess(ctx context.Context, userID int64, valid bool) (*Client, error) {
	c, err := s.clients.ClientByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "get client")
	}
	if err := s.clients.SetValid(ctx, c.ID, valid); err != nil {
		return nil, errors.Wrap(err, "set access")
	}
	c.Valid = valid
	zctx.From(ctx).Info("Client access changed",
		zap.Int64("user_id", userID),
		zap.Bool("valid", valid),
	)
	return c, nil
}
