package files

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/vkuznetsov-dev/cipherchat/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestInsert_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	createdAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO message_files`).
		WithArgs(
			int64(42), int64(9), int64(7),
			"chats/chat_42/20260301_120000/7_abc.enc", "clip.mp4", "video/mp4",
			int64(1000), "n0", createdAt,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Insert(context.Background(), 42, &models.FileDescriptor{
		MessageID: 9,
		FileID:    7,
		Path:      "chats/chat_42/20260301_120000/7_abc.enc",
		Filename:  "clip.mp4",
		Mimetype:  "video/mp4",
		Size:      1000,
		Nonce:     "n0",
		CreatedAt: createdAt,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestInsert_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO message_files`).
		WillReturnError(errors.New("db is down"))

	err := repo.Insert(context.Background(), 42, &models.FileDescriptor{MessageID: 9, FileID: 7})
	if err == nil || !regexp.MustCompile(`db error: .*db is down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestListByMessage_OrderedByFileID(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	createdAt := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "message_id", "file_id", "file_path", "filename", "mimetype", "size", "nonce", "created_at",
	}).
		AddRow(int64(1), int64(9), int64(7), "p1", "a.bin", "application/octet-stream", int64(10), "n1", createdAt).
		AddRow(int64(2), int64(9), int64(8), "p2", "b.bin", "application/octet-stream", int64(20), "n2", createdAt)

	mock.ExpectQuery(`SELECT id, message_id, file_id, file_path, filename, mimetype, size, nonce, created_at\s+FROM message_files\s+WHERE conversation_id = \$1 AND message_id = \$2\s+ORDER BY file_id;`).
		WithArgs(int64(42), int64(9)).
		WillReturnRows(rows)

	files, err := repo.ListByMessage(context.Background(), 42, 9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("want 2 descriptors, got %d", len(files))
	}
	if files[0].FileID != 7 || files[1].FileID != 8 {
		t.Fatalf("unexpected order: %+v", files)
	}
	if files[0].Path != "p1" {
		t.Fatalf("unexpected path: %s", files[0].Path)
	}
}

func TestListByMessage_Empty(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT .* FROM message_files`).
		WithArgs(int64(42), int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "message_id", "file_id", "file_path", "filename", "mimetype", "size", "nonce", "created_at",
		}))

	files, err := repo.ListByMessage(context.Background(), 42, 9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(files) != 0 {
		t.Fatalf("want no descriptors, got %d", len(files))
	}
}

func TestDeleteByMessage_ReturnsCount(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM message_files WHERE conversation_id = \$1 AND message_id = \$2;`).
		WithArgs(int64(42), int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.DeleteByMessage(context.Background(), 42, 9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Fatalf("want 3 rows deleted, got %d", n)
	}
}
