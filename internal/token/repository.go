// Package token owns cleanup of the refresh_tokens table. Token issuance and
// validation live in the auth gateway; this service only reaps expired rows.
package token

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("repository: failed to delete expired tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
