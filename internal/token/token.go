// Package token keeps the process token ledger: tokens are pushed when a
// provision enters a process and finished once per handler step.
package token

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/edvin/peacock/internal/model"
	"github.com/edvin/peacock/internal/platform"
)

// Handler is the host token handler.
type Handler interface {
	PushToken(ctx context.Context, process, businessKey, instanceID string) error
	SendFinish(ctx context.Context, step, instanceID string) error
}

// DB abstracts the database operations used by Postgres.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Postgres records tokens in the process_tokens table.
type Postgres struct {
	db DB
}

func NewPostgres(db DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) PushToken(ctx context.Context, process, businessKey, instanceID string) error {
	_, err := p.db.Exec(ctx,
		`INSERT INTO process_tokens (id, process, business_key, instance_id, step, event, created_at)
		 VALUES ($1, $2, $3, $4, '', $5, now())`,
		platform.NewID(), process, businessKey, instanceID, model.TokenPushed,
	)
	if err != nil {
		return fmt.Errorf("push token for %s: %w", instanceID, err)
	}
	return nil
}

func (p *Postgres) SendFinish(ctx context.Context, step, instanceID string) error {
	_, err := p.db.Exec(ctx,
		`INSERT INTO process_tokens (id, process, business_key, instance_id, step, event, created_at)
		 SELECT $1, COALESCE(t.process, ''), COALESCE(t.business_key, ''), $2, $3, $4, now()
		 FROM (SELECT 1) AS one
		 LEFT JOIN LATERAL (
			SELECT process, business_key FROM process_tokens
			WHERE instance_id = $2 AND event = $5
			ORDER BY created_at DESC LIMIT 1
		 ) t ON true`,
		platform.NewID(), instanceID, step, model.TokenFinished, model.TokenPushed,
	)
	if err != nil {
		return fmt.Errorf("finish step %s for %s: %w", step, instanceID, err)
	}
	return nil
}

// List returns the ledger entries of an instance, oldest first.
func (p *Postgres) List(ctx context.Context, instanceID string) ([]model.ProcessToken, error) {
	rows, err := p.db.Query(ctx,
		`SELECT id, process, business_key, instance_id, step, event, created_at
		 FROM process_tokens WHERE instance_id = $1 ORDER BY created_at, id`,
		instanceID,
	)
	if err != nil {
		return nil, fmt.Errorf("list tokens for %s: %w", instanceID, err)
	}
	defer rows.Close()

	var out []model.ProcessToken
	for rows.Next() {
		var t model.ProcessToken
		if err := rows.Scan(&t.ID, &t.Process, &t.BusinessKey, &t.InstanceID, &t.Step, &t.Event, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tokens: %w", err)
	}
	return out, nil
}

// Memory is an in-process ledger used by tests and local runs.
type Memory struct {
	mu     sync.Mutex
	tokens []model.ProcessToken
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) PushToken(ctx context.Context, process, businessKey, instanceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = append(m.tokens, model.ProcessToken{
		ID:          platform.NewID(),
		Process:     process,
		BusinessKey: businessKey,
		InstanceID:  instanceID,
		Event:       model.TokenPushed,
		CreatedAt:   time.Now(),
	})
	return nil
}

func (m *Memory) SendFinish(ctx context.Context, step, instanceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = append(m.tokens, model.ProcessToken{
		ID:         platform.NewID(),
		InstanceID: instanceID,
		Step:       step,
		Event:      model.TokenFinished,
		CreatedAt:  time.Now(),
	})
	return nil
}

func (m *Memory) List(ctx context.Context, instanceID string) ([]model.ProcessToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ProcessToken
	for _, t := range m.tokens {
		if t.InstanceID == instanceID {
			out = append(out, t)
		}
	}
	return out, nil
}

// Finished returns the steps finished for an instance, in order.
func (m *Memory) Finished(instanceID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, t := range m.tokens {
		if t.InstanceID == instanceID && t.Event == model.TokenFinished {
			out = append(out, t.Step)
		}
	}
	return out
}
