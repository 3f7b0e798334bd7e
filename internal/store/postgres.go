package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/edvin/peacock/internal/model"
	"github.com/edvin/peacock/internal/platform"
)

// DB abstracts the database operations used by the Postgres adapters.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const instanceColumns = `id, definition, status, version, fields, last_action, created_at, updated_at`

// Postgres is the InstanceStore backed by the dom_instances table. Writes use
// the row version and the source status as guards so that concurrent
// read-modify-write cycles cannot silently overwrite each other.
type Postgres struct {
	db DB
}

// NewPostgres creates a Postgres instance store.
func NewPostgres(db DB) *Postgres {
	return &Postgres{db: db}
}

func scanInstance(row pgx.Row) (*model.Instance, error) {
	var inst model.Instance
	err := row.Scan(&inst.ID, &inst.Definition, &inst.Status, &inst.Version, &inst.Fields,
		&inst.LastAction, &inst.CreatedAt, &inst.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &inst, nil
}

func (s *Postgres) ReadInstance(ctx context.Context, id string) (*model.Instance, error) {
	inst, err := scanInstance(s.db.QueryRow(ctx,
		`SELECT `+instanceColumns+` FROM dom_instances WHERE id = $1`, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("read instance %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("read instance %s: %w", id, err)
	}
	return inst, nil
}

func (s *Postgres) UpdateInstance(ctx context.Context, inst *model.Instance) error {
	err := s.db.QueryRow(ctx,
		`UPDATE dom_instances SET fields = $1, version = version + 1, updated_at = now()
		 WHERE id = $2 AND version = $3
		 RETURNING version, updated_at`,
		fieldsOrEmpty(inst.Fields), inst.ID, inst.Version,
	).Scan(&inst.Version, &inst.UpdatedAt)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("update instance %s: %w", inst.ID, err)
	}
	if _, err := s.currentStatus(ctx, inst.ID); err != nil {
		return fmt.Errorf("update instance %s: %w", inst.ID, err)
	}
	return fmt.Errorf("update instance %s: %w", inst.ID, ErrConflict)
}

func (s *Postgres) DoStatusTransition(ctx context.Context, id, transition string) error {
	tr, ok := model.TransitionByName(transition)
	if !ok {
		return fmt.Errorf("transition instance %s: %w: %s is not declared", id, ErrIllegalTransition, transition)
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE dom_instances SET status = $1, version = version + 1, updated_at = now()
		 WHERE id = $2 AND status = $3`,
		tr.To, id, tr.From,
	)
	if err != nil {
		return fmt.Errorf("transition instance %s: %w", id, err)
	}
	if tag.RowsAffected() == 1 {
		recordTransition(tr)
		return nil
	}

	current, err := s.currentStatus(ctx, id)
	if err != nil {
		return fmt.Errorf("transition instance %s: %w", id, err)
	}
	if _, err := resolveTransition(transition, current); err != nil {
		return fmt.Errorf("transition instance %s: %w", id, err)
	}
	// The row was in the source status when re-read, so a concurrent writer
	// moved it between the update and the read.
	return fmt.Errorf("transition instance %s: %w", id, ErrConflict)
}

func (s *Postgres) ExecuteAction(ctx context.Context, id, action string) error {
	tag, err := s.db.Exec(ctx,
		`WITH target AS (
			UPDATE dom_instances SET last_action = $2, updated_at = now()
			WHERE id = $1 RETURNING id
		)
		INSERT INTO instance_actions (id, instance_id, action, created_at)
		SELECT $3, id, $2, now() FROM target`,
		id, action, platform.NewID(),
	)
	if err != nil {
		return fmt.Errorf("execute action %s on %s: %w", action, id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("execute action %s on %s: %w", action, id, ErrNotFound)
	}
	return nil
}

func (s *Postgres) CreateInstance(ctx context.Context, inst *model.Instance) error {
	if !inst.Status.Valid() {
		return fmt.Errorf("create instance %s: unknown status %q", inst.ID, inst.Status)
	}
	inst.Version = 1
	err := s.db.QueryRow(ctx,
		`INSERT INTO dom_instances (id, definition, status, version, fields, last_action, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		 RETURNING created_at, updated_at`,
		inst.ID, inst.Definition, inst.Status, inst.Version, fieldsOrEmpty(inst.Fields), inst.LastAction,
	).Scan(&inst.CreatedAt, &inst.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create instance %s: %w", inst.ID, err)
	}
	return nil
}

func (s *Postgres) DeleteInstance(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM dom_instances WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete instance %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete instance %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *Postgres) ListInstances(ctx context.Context, filter ListFilter) ([]model.Instance, error) {
	var where []string
	var args []any
	argIdx := 1

	if filter.Definition != "" {
		where = append(where, fmt.Sprintf("definition = $%d", argIdx))
		args = append(args, filter.Definition)
		argIdx++
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			statuses[i] = string(st)
		}
		where = append(where, fmt.Sprintf("status = ANY($%d)", argIdx))
		args = append(args, statuses)
		argIdx++
	}
	if !filter.UpdatedBefore.IsZero() {
		where = append(where, fmt.Sprintf("updated_at < $%d", argIdx))
		args = append(args, filter.UpdatedBefore)
		argIdx++
	}
	if filter.Cursor != "" {
		where = append(where, fmt.Sprintf("id > $%d", argIdx))
		args = append(args, filter.Cursor)
		argIdx++
	}

	query := `SELECT ` + instanceColumns + ` FROM dom_instances`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(` ORDER BY id LIMIT $%d`, argIdx)
	args = append(args, filter.limit())

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}
	defer rows.Close()

	var out []model.Instance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan instance: %w", err)
		}
		out = append(out, *inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate instances: %w", err)
	}
	return out, nil
}

func (s *Postgres) currentStatus(ctx context.Context, id string) (model.Status, error) {
	var status model.Status
	err := s.db.QueryRow(ctx, `SELECT status FROM dom_instances WHERE id = $1`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return status, nil
}

func fieldsOrEmpty(fields json.RawMessage) json.RawMessage {
	if len(fields) == 0 {
		return json.RawMessage(`{}`)
	}
	return fields
}
