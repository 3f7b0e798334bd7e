// Package logsink records structured handler log records: operator-facing
// entries classified by severity, source and code.
package logsink

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/peacock/internal/model"
	"github.com/edvin/peacock/internal/platform"
)

// Sink receives handler log records.
type Sink interface {
	// GenerateLog records rec as is.
	GenerateLog(ctx context.Context, rec model.LogRecord) error
	// ProcessException records rec for a failure, attaching err.
	ProcessException(ctx context.Context, err error, rec model.LogRecord) error
}

func prepare(rec model.LogRecord, err error) model.LogRecord {
	if rec.ID == "" {
		rec.ID = platform.NewID()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	if rec.ErrorCode.ConfigurationType == "" {
		rec.ErrorCode.ConfigurationType = model.ConfigTypeAutomation
	}
	if err != nil {
		if rec.LogNotes == "" {
			rec.LogNotes = err.Error()
		}
		if rec.ErrorCode.Description == "" {
			rec.ErrorCode.Description = err.Error()
		}
		if rec.ErrorCode.Code == "" {
			rec.ErrorCode.Code = model.CodeException
		}
	}
	return rec
}

// Zerolog writes records to a zerolog.Logger at a level derived from the
// record severity.
type Zerolog struct {
	logger zerolog.Logger
}

// NewZerolog creates a Zerolog sink.
func NewZerolog(logger zerolog.Logger) *Zerolog {
	return &Zerolog{logger: logger.With().Str("component", "logsink").Logger()}
}

func (z *Zerolog) GenerateLog(ctx context.Context, rec model.LogRecord) error {
	z.write(prepare(rec, nil), nil)
	return nil
}

func (z *Zerolog) ProcessException(ctx context.Context, err error, rec model.LogRecord) error {
	z.write(prepare(rec, err), err)
	return nil
}

func (z *Zerolog) write(rec model.LogRecord, err error) {
	var ev *zerolog.Event
	switch rec.ErrorCode.Severity {
	case model.SeverityMajor:
		ev = z.logger.Error()
	case model.SeverityMinor, model.SeverityWarning:
		ev = z.logger.Warn()
	default:
		ev = z.logger.Info()
	}
	if err != nil {
		ev = ev.Err(err)
	}
	ev.Str("log_id", rec.ID).
		Str("affected_item", rec.AffectedItem).
		Str("affected_service", rec.AffectedService).
		Str("configuration_item", rec.ErrorCode.ConfigurationItem).
		Str("severity", rec.ErrorCode.Severity).
		Str("source", rec.ErrorCode.Source).
		Str("code", rec.ErrorCode.Code).
		Bool("summary", rec.SummaryFlag).
		Msg(firstNonEmpty(rec.ErrorCode.Description, rec.LogNotes, "handler log record"))
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// Multi fans records out to several sinks. Every sink is attempted; the
// returned error joins all failures.
type Multi []Sink

func (m Multi) GenerateLog(ctx context.Context, rec model.LogRecord) error {
	rec = prepare(rec, nil)
	var errs []error
	for _, s := range m {
		if err := s.GenerateLog(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) ProcessException(ctx context.Context, err error, rec model.LogRecord) error {
	rec = prepare(rec, err)
	var errs []error
	for _, s := range m {
		if serr := s.ProcessException(ctx, err, rec); serr != nil {
			errs = append(errs, serr)
		}
	}
	return errors.Join(errs...)
}

// Memory keeps records in memory.
type Memory struct {
	mu      sync.Mutex
	records []model.LogRecord
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) GenerateLog(ctx context.Context, rec model.LogRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, prepare(rec, nil))
	return nil
}

func (m *Memory) ProcessException(ctx context.Context, err error, rec model.LogRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, prepare(rec, err))
	return nil
}

// Records returns a copy of the recorded entries.
func (m *Memory) Records() []model.LogRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.LogRecord, len(m.records))
	copy(out, m.records)
	return out
}

// ByCode returns the recorded entries with the given code.
func (m *Memory) ByCode(code string) []model.LogRecord {
	var out []model.LogRecord
	for _, r := range m.Records() {
		if r.ErrorCode.Code == code {
			out = append(out, r)
		}
	}
	return out
}

// ListByService returns up to limit entries for an affected service, newest
// first.
func (m *Memory) ListByService(ctx context.Context, service string, limit int) ([]model.LogRecord, error) {
	recs := m.Records()
	var out []model.LogRecord
	for i := len(recs) - 1; i >= 0 && len(out) < limit; i-- {
		if recs[i].AffectedService == service {
			out = append(out, recs[i])
		}
	}
	return out, nil
}
