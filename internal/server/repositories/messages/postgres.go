// Package messages provides the PostgreSQL-backed message repository.
// Messages of every conversation live in one shared table keyed by
// conversation_id; the per-conversation ordered-list contract is kept by
// the (conversation_id, created_at) index.
package messages

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/vkuznetsov-dev/cipherchat/internal/common"
	"github.com/vkuznetsov-dev/cipherchat/internal/dbx"
	"github.com/vkuznetsov-dev/cipherchat/internal/server/models"
)

const messageColumns = `id, conversation_id, sender_id, ciphertext, nonce, envelopes, kind, metadata, created_at, edited_at, is_read`

// PostgresRepository implements Repository over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Insert(ctx context.Context, m *models.Message) (int64, error) {
	query := `
		INSERT INTO messages
		(conversation_id, sender_id, ciphertext, nonce, envelopes, kind, metadata, created_at, edited_at, is_read)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id;
	`
	var metadata []byte
	if m.Metadata != nil {
		metadata = mustMarshalMeta(m.Metadata)
	}

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		m.ConversationID, m.SenderID, m.Ciphertext, m.Nonce, m.Envelopes,
		string(m.Kind), metadata, m.CreatedAt, m.EditedAt, m.IsRead,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return id, nil
}

func (r *PostgresRepository) ListByConversation(ctx context.Context, conversationID int64) ([]*models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC, id ASC;`
	rows, err := r.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to select messages: %w", err)
	}
	defer rows.Close()

	var result []*models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) Latest(ctx context.Context, conversationID int64) (*models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1;`
	rows, err := r.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to select latest message: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, common.ErrNotFound
	}
	return scanMessage(rows)
}

func (r *PostgresRepository) Get(ctx context.Context, conversationID, messageID int64) (*models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages
		WHERE conversation_id = $1 AND id = $2;`
	rows, err := r.db.QueryContext(ctx, query, conversationID, messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to select message: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, common.ErrNotFound
	}
	return scanMessage(rows)
}

func (r *PostgresRepository) GetSender(ctx context.Context, conversationID, messageID int64) (int64, error) {
	var senderID int64
	err := r.db.QueryRowContext(ctx,
		`SELECT sender_id FROM messages WHERE conversation_id = $1 AND id = $2;`,
		conversationID, messageID,
	).Scan(&senderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrNotFound
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	return senderID, nil
}

func (r *PostgresRepository) Update(ctx context.Context, conversationID, messageID int64, u *ColumnUpdate) error {
	sets := []string{"edited_at = $1"}
	args := []any{u.EditedAt}

	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if u.Ciphertext != nil {
		add("ciphertext", *u.Ciphertext)
	}
	if u.Nonce != nil {
		add("nonce", *u.Nonce)
	}
	if u.Envelopes != nil {
		add("envelopes", *u.Envelopes)
	}
	if u.Kind != nil {
		add("kind", string(*u.Kind))
	}
	if u.Metadata != nil {
		add("metadata", *u.Metadata)
	}
	if u.IsRead != nil {
		add("is_read", *u.IsRead)
	}

	args = append(args, conversationID, messageID)
	query := fmt.Sprintf(
		"UPDATE messages SET %s WHERE conversation_id = $%d AND id = $%d;",
		strings.Join(sets, ", "), len(args)-1, len(args),
	)

	res, err := r.db.ExecContext(ctx, query, args...)
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

func (r *PostgresRepository) Delete(ctx context.Context, conversationID, messageID int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM messages WHERE conversation_id = $1 AND id = $2;`,
		conversationID, messageID,
	)
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

// scanMessage reads one row from a messages SELECT. Envelopes and
// metadata come back raw; lenient JSON decoding happens at the service
// boundary.
func scanMessage(rows *sql.Rows) (*models.Message, error) {
	var (
		m        models.Message
		kind     string
		metadata []byte
		editedAt sql.NullTime
	)
	if err := rows.Scan(
		&m.ID, &m.ConversationID, &m.SenderID, &m.Ciphertext, &m.Nonce,
		&m.Envelopes, &kind, &metadata, &m.CreatedAt, &editedAt, &m.IsRead,
	); err != nil {
		return nil, err
	}
	m.Kind = models.ParseMessageKind(kind)
	m.Metadata = models.ParseFileMetaList(metadata)
	if editedAt.Valid {
		t := editedAt.Time
		m.EditedAt = &t
	}
	return &m, nil
}

// mustMarshalMeta encodes the already-filtered descriptor list; the
// typed slice cannot fail to marshal.
func mustMarshalMeta(meta []models.FileMeta) []byte {
	b, err := json.Marshal(meta)
	if err != nil {
		return []byte("[]")
	}
	return b
}
