// Package conversations provides the PostgreSQL-backed conversation-row
// repository.
package conversations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vkuznetsov-dev/cipherchat/internal/common"
	"github.com/vkuznetsov-dev/cipherchat/internal/dbx"
	"github.com/vkuznetsov-dev/cipherchat/internal/server/models"
)

// PostgresRepository implements Repository over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *PostgresRepository) Create(ctx context.Context, user1ID, user2ID int64, createdAt time.Time) (*models.Conversation, error) {
	query := `
		INSERT INTO conversations (user1_id, user2_id, created_at)
		VALUES ($1, $2, $3)
		RETURNING id;
	`
	c := &models.Conversation{User1ID: user1ID, User2ID: user2ID, CreatedAt: createdAt}
	err := r.db.QueryRowContext(ctx, query, user1ID, user2ID, createdAt).Scan(&c.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicatePair
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

func (r *PostgresRepository) FindByPair(ctx context.Context, userA, userB int64) (*models.Conversation, error) {
	query := `
		SELECT id, user1_id, user2_id, created_at FROM conversations
		WHERE (user1_id = $1 AND user2_id = $2) OR (user1_id = $2 AND user2_id = $1);
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, userA, userB))
}

func (r *PostgresRepository) FindByID(ctx context.Context, id int64) (*models.Conversation, error) {
	query := `SELECT id, user1_id, user2_id, created_at FROM conversations WHERE id = $1;`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*models.Conversation, error) {
	var c models.Conversation
	if err := row.Scan(&c.ID, &c.User1ID, &c.User2ID, &c.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &c, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}
