package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/refitt/refitt-api/internal/apierr"
	"github.com/refitt/refitt-api/internal/domain/auth"
)

var _ auth.Repository = (*ClientRepository)(nil)

// ClientRepository stores API clients and their sessions.
type ClientRepository struct {
	pool *pgxpool.Pool
}

// NewClientRepository returns a ClientRepository that uses the given pool.
func NewClientRepository(pool *pgxpool.Pool) *ClientRepository {
	return &ClientRepository{pool: pool}
}

const selectClient = `SELECT id, user_id, level, key, secret, valid, created FROM client`

func scanClient(row pgx.Row) (*auth.Client, error) {
	var c auth.Client
	err := row.Scan(&c.ID, &c.UserID, &c.Level, &c.Key, &c.Secret, &c.Valid, &c.Created)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ClientRepository) ClientByID(ctx context.Context, id int64) (*auth.Client, error) {
	c, err := scanClient(r.pool.QueryRow(ctx, selectClient+` WHERE id = $1`, id))
	if err != nil {
		return nil, lookupErr(err, "client", "id", id)
	}
	return c, nil
}

func (r *ClientRepository) ClientByKey(ctx context.Context, key string) (*auth.Client, error) {
	c, err := scanClient(r.pool.QueryRow(ctx, selectClient+` WHERE key = $1`, key))
	if err != nil {
		return nil, lookupErr(err, "client", "key", key)
	}
	return c, nil
}

func (r *ClientRepository) ClientByUser(ctx context.Context, userID int64) (*auth.Client, error) {
	c, err := scanClient(r.pool.QueryRow(ctx, selectClient+` WHERE user_id = $1`, userID))
	if err != nil {
		return nil, lookupErr(err, "client", "user_id", userID)
	}
	return c, nil
}

// CreateClient inserts c and sets its ID and creation time. A missing user
// is reported as RecordNotFound.
func (r *ClientRepository) CreateClient(ctx context.Context, c *auth.Client) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO client (user_id, level, key, secret, valid)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created`,
		c.UserID, c.Level, c.Key, c.Secret, c.Valid,
	).Scan(&c.ID, &c.Created)
	if isViolation(err, pgerrcode.ForeignKeyViolation) {
		return apierr.Wrap(apierr.RecordNotFound, err, fmt.Sprintf("No user with id=%d", c.UserID))
	}
	if err != nil {
		return writeErr(err, "insert client")
	}
	return nil
}

func (r *ClientRepository) UpdateCredentials(ctx context.Context, clientID int64, key, secret string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE client SET key = $2, secret = $3 WHERE id = $1`, clientID, key, secret)
	if err != nil {
		return writeErr(err, "update client credentials")
	}
	if tag.RowsAffected() == 0 {
		return notFound("client", "id", clientID)
	}
	return nil
}

func (r *ClientRepository) SetValid(ctx context.Context, clientID int64, valid bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE client SET valid = $2 WHERE id = $1`, clientID, valid)
	if err != nil {
		return writeErr(err, "update client access")
	}
	if tag.RowsAffected() == 0 {
		return notFound("client", "id", clientID)
	}
	return nil
}

// UpsertSession replaces the client's session, if any, with s.
func (r *ClientRepository) UpsertSession(ctx context.Context, s *auth.Session) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO session (client_id, expires, token)
		VALUES ($1, $2, $3)
		ON CONFLICT (client_id) DO UPDATE
		SET expires = EXCLUDED.expires, token = EXCLUDED.token, created = now()
		RETURNING id, created`,
		s.ClientID, s.Expires, s.Token,
	).Scan(&s.ID, &s.Created)
	if err != nil {
		return writeErr(err, "upsert session")
	}
	return nil
}
