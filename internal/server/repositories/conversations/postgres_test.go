package conversations

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vkuznetsov-dev/cipherchat/internal/common"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	createdAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`INSERT INTO conversations \(user1_id, user2_id, created_at\)`).
		WithArgs(int64(1), int64(2), createdAt).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	c, err := repo.Create(context.Background(), 1, 2, createdAt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.ID != 42 || c.User1ID != 1 || c.User2ID != 2 {
		t.Fatalf("unexpected conversation: %+v", c)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreate_UniqueViolationIsDuplicatePair(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO conversations`).
		WithArgs(int64(1), int64(2), sqlmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := repo.Create(context.Background(), 1, 2, time.Now())
	if !errors.Is(err, ErrDuplicatePair) {
		t.Fatalf("want ErrDuplicatePair, got %v", err)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO conversations`).
		WithArgs(int64(1), int64(2), sqlmock.AnyArg()).
		WillReturnError(errors.New("db is down"))

	_, err := repo.Create(context.Background(), 1, 2, time.Now())
	if err == nil || !regexp.MustCompile(`db error: .*db is down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestFindByPair_EitherOrder(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	createdAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "user1_id", "user2_id", "created_at"}).
		AddRow(int64(7), int64(2), int64(1), createdAt)

	mock.ExpectQuery(`SELECT id, user1_id, user2_id, created_at FROM conversations`).
		WithArgs(int64(1), int64(2)).
		WillReturnRows(rows)

	c, err := repo.FindByPair(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.ID != 7 || c.User1ID != 2 || c.User2ID != 1 {
		t.Fatalf("unexpected conversation: %+v", c)
	}
}

func TestFindByPair_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT id, user1_id, user2_id, created_at FROM conversations`).
		WithArgs(int64(1), int64(2)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByPair(context.Background(), 1, 2)
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestFindByID_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "user1_id", "user2_id", "created_at"}).
		AddRow(int64(7), int64(1), int64(2), time.Now())

	mock.ExpectQuery(`SELECT id, user1_id, user2_id, created_at FROM conversations WHERE id = \$1;`).
		WithArgs(int64(7)).
		WillReturnRows(rows)

	c, err := repo.FindByID(context.Background(), 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.ID != 7 {
		t.Fatalf("unexpected conversation: %+v", c)
	}
}

func TestDelete_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM conversations WHERE id = \$1;`).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Delete(context.Background(), 7); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDelete_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM conversations WHERE id = \$1;`).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), 7)
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}
