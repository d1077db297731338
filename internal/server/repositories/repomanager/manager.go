package repomanager

import (
	"context"
	"database/sql"

	"github.com/vkuznetsov-dev/cipherchat/internal/dbx"
	"github.com/vkuznetsov-dev/cipherchat/internal/server/repositories/conversations"
	"github.com/vkuznetsov-dev/cipherchat/internal/server/repositories/files"
	"github.com/vkuznetsov-dev/cipherchat/internal/server/repositories/messages"
)

// RepositoryManager vends repositories bound to a DBTX, so services can
// run several repositories inside one transaction by passing the same
// tx handle.
type RepositoryManager interface {
	Conversations(db dbx.DBTX) conversations.Repository
	Messages(db dbx.DBTX) messages.Repository
	Files(db dbx.DBTX) files.Repository

	RunMigrations(ctx context.Context, db *sql.DB) error
}
