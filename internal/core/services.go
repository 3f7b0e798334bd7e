package core

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	temporalclient "go.temporal.io/sdk/client"

	"github.com/edvin/peacock/internal/logsink"
	"github.com/edvin/peacock/internal/provision"
	"github.com/edvin/peacock/internal/store"
	"github.com/edvin/peacock/internal/token"
)

// DB defines the database operations used by the services.
// *pgxpool.Pool satisfies this interface.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Services struct {
	Provision *ProvisionService
	Instance  *InstanceService
}

// NewServices wires the services against the core database.
func NewServices(db DB, tc temporalclient.Client, logger zerolog.Logger) *Services {
	instances := store.NewPostgres(db)
	logs := logsink.NewPostgres(db)
	tokens := token.NewPostgres(db)

	runner := provision.NewRunner(provision.Deps{
		Store:  instances,
		Logs:   logsink.Multi{logsink.NewZerolog(logger), logs},
		Tokens: tokens,
		Logger: logger,
	})

	return &Services{
		Provision: NewProvisionService(instances, provision.NewStarter(runner), tokens, logs, tc),
		Instance:  NewInstanceService(instances),
	}
}
