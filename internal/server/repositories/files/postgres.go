// Package files provides the PostgreSQL-backed file-index repository.
// The database also enforces cascade delete from messages, so rows
// disappear with their message even when the app-level delete path is
// skipped.
package files

import (
	"context"
	"fmt"

	"github.com/vkuznetsov-dev/cipherchat/internal/dbx"
	"github.com/vkuznetsov-dev/cipherchat/internal/server/models"
)

// PostgresRepository implements Repository over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Insert(ctx context.Context, conversationID int64, f *models.FileDescriptor) error {
	query := `
		INSERT INTO message_files
		(conversation_id, message_id, file_id, file_path, filename, mimetype, size, nonce, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
	`
	_, err := r.db.ExecContext(ctx, query,
		conversationID, f.MessageID, f.FileID, f.Path, f.Filename, f.Mimetype, f.Size, f.Nonce, f.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListByMessage(ctx context.Context, conversationID, messageID int64) ([]*models.FileDescriptor, error) {
	query := `
		SELECT id, message_id, file_id, file_path, filename, mimetype, size, nonce, created_at
		FROM message_files
		WHERE conversation_id = $1 AND message_id = $2
		ORDER BY file_id;
	`
	rows, err := r.db.QueryContext(ctx, query, conversationID, messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to select files: %w", err)
	}
	defer rows.Close()

	var result []*models.FileDescriptor
	for rows.Next() {
		var f models.FileDescriptor
		if err := rows.Scan(
			&f.ID, &f.MessageID, &f.FileID, &f.Path, &f.Filename,
			&f.Mimetype, &f.Size, &f.Nonce, &f.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) DeleteByMessage(ctx context.Context, conversationID, messageID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM message_files WHERE conversation_id = $1 AND message_id = $2;`,
		conversationID, messageID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}
