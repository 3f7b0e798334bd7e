package logsink

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/edvin/peacock/internal/model"
)

// DB abstracts the database operations used by Postgres.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Postgres stores records in the provision_logs table.
type Postgres struct {
	db DB
}

func NewPostgres(db DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) GenerateLog(ctx context.Context, rec model.LogRecord) error {
	return p.insert(ctx, prepare(rec, nil))
}

func (p *Postgres) ProcessException(ctx context.Context, err error, rec model.LogRecord) error {
	return p.insert(ctx, prepare(rec, err))
}

func (p *Postgres) insert(ctx context.Context, rec model.LogRecord) error {
	_, err := p.db.Exec(ctx,
		`INSERT INTO provision_logs (id, affected_item, affected_service, timestamp, log_notes,
			configuration_item, configuration_type, severity, source, code, description, summary_flag)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		rec.ID, rec.AffectedItem, rec.AffectedService, rec.Timestamp, rec.LogNotes,
		rec.ErrorCode.ConfigurationItem, rec.ErrorCode.ConfigurationType, rec.ErrorCode.Severity,
		rec.ErrorCode.Source, rec.ErrorCode.Code, rec.ErrorCode.Description, rec.SummaryFlag,
	)
	if err != nil {
		return fmt.Errorf("insert provision log: %w", err)
	}
	return nil
}

// ListByService returns the most recent records for an affected service,
// newest first.
func (p *Postgres) ListByService(ctx context.Context, service string, limit int) ([]model.LogRecord, error) {
	rows, err := p.db.Query(ctx,
		`SELECT id, affected_item, affected_service, timestamp, log_notes,
			configuration_item, configuration_type, severity, source, code, description, summary_flag
		 FROM provision_logs WHERE affected_service = $1
		 ORDER BY timestamp DESC LIMIT $2`,
		service, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list provision logs: %w", err)
	}
	defer rows.Close()

	var out []model.LogRecord
	for rows.Next() {
		var r model.LogRecord
		if err := rows.Scan(&r.ID, &r.AffectedItem, &r.AffectedService, &r.Timestamp, &r.LogNotes,
			&r.ErrorCode.ConfigurationItem, &r.ErrorCode.ConfigurationType, &r.ErrorCode.Severity,
			&r.ErrorCode.Source, &r.ErrorCode.Code, &r.ErrorCode.Description, &r.SummaryFlag); err != nil {
			return nil, fmt.Errorf("scan provision log: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate provision logs: %w", err)
	}
	return out, nil
}
