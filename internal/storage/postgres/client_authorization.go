// Package postgres implements the client authorization store on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/luikyv/go-authorize/pkg/goidc"
)

const schema = `
	CREATE TABLE IF NOT EXISTS client_authorizations (
		sub VARCHAR(255) NOT NULL,
		client_id VARCHAR(255) NOT NULL,
		scopes TEXT[] NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
		PRIMARY KEY (sub, client_id)
	);
`

var _ goidc.ClientAuthorizationManager = (*ClientAuthorizationManager)(nil)

type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open connects to the database referenced by dsn.
func Open(ctx context.Context, dsn string, pool PoolConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return db, nil
}

type ClientAuthorizationManager struct {
	db *sql.DB
}

// NewClientAuthorizationManager creates the manager and the tables it needs.
func NewClientAuthorizationManager(ctx context.Context, db *sql.DB) (*ClientAuthorizationManager, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("could not create the client authorization schema: %w", err)
	}
	return &ClientAuthorizationManager{db: db}, nil
}

func (m *ClientAuthorizationManager) Save(ctx context.Context, auth *goidc.ClientAuthorization) error {
	query := `
		INSERT INTO client_authorizations (sub, client_id, scopes, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (sub, client_id)
		DO UPDATE SET
			scopes = EXCLUDED.scopes,
			updated_at = EXCLUDED.updated_at
	`
	scopes := auth.Scopes
	if scopes == nil {
		scopes = []string{}
	}

	_, err := m.db.ExecContext(ctx, query, auth.Subject, auth.ClientID, pq.Array(scopes))
	return err
}

func (m *ClientAuthorizationManager) ClientAuthorization(
	ctx context.Context,
	sub string,
	clientID string,
) (
	*goidc.ClientAuthorization,
	error,
) {
	query := `
		SELECT scopes
		FROM client_authorizations
		WHERE sub = $1 AND client_id = $2
	`

	auth := &goidc.ClientAuthorization{
		Subject:  sub,
		ClientID: clientID,
	}
	err := m.db.QueryRowContext(ctx, query, sub, clientID).Scan(pq.Array(&auth.Scopes))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, goidc.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return auth, nil
}
