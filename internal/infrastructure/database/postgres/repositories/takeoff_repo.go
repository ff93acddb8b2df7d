// Package repositories implements the postgres-backed stores.
package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lib/pq"

	"github.com/turtacn/KeyQTO/internal/application/takeoff"
	"github.com/turtacn/KeyQTO/internal/domain/component"
	"github.com/turtacn/KeyQTO/internal/infrastructure/database/postgres"
	"github.com/turtacn/KeyQTO/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KeyQTO/pkg/errors"
)

// queryExecutor abstracts sql.DB and sql.Tx
type queryExecutor interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// scanner abstracts sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

const (
	maxListLimit     = 200
	defaultListLimit = 20
)

const takeoffColumns = `id, name, source, labels, component_count, abnormal_count, total_volume, total_cost,
	export_location, components, deduction, summary, warnings, duration_ms, created_at`

type postgresTakeoffRepo struct {
	conn     *postgres.Connection
	log      logging.Logger
	executor queryExecutor
}

// NewPostgresTakeoffRepo returns a takeoff.Repository over conn.
func NewPostgresTakeoffRepo(conn *postgres.Connection, log logging.Logger) takeoff.Repository {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &postgresTakeoffRepo{
		conn:     conn,
		log:      log,
		executor: conn.DB(),
	}
}

// Save inserts t or replaces the stored row with the same id.
func (r *postgresTakeoffRepo) Save(ctx context.Context, t *takeoff.Takeoff) error {
	if t == nil || t.ID == "" {
		return errors.InvalidParam("takeoff id is required")
	}
	componentsJSON, err := json.Marshal(nonNilComponents(t.Components))
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode components")
	}
	var deductionJSON []byte
	if t.Deduction != nil {
		if deductionJSON, err = json.Marshal(t.Deduction); err != nil {
			return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode deduction report")
		}
	}
	summary := t.Summary
	if summary == nil {
		summary = &takeoff.QuantitySummary{}
	}
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode summary")
	}
	warnings := t.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	warningsJSON, _ := json.Marshal(warnings)

	query := `
		INSERT INTO takeoffs (` + takeoffColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, source = EXCLUDED.source, labels = EXCLUDED.labels,
			component_count = EXCLUDED.component_count, abnormal_count = EXCLUDED.abnormal_count,
			total_volume = EXCLUDED.total_volume, total_cost = EXCLUDED.total_cost,
			export_location = EXCLUDED.export_location, components = EXCLUDED.components,
			deduction = EXCLUDED.deduction, summary = EXCLUDED.summary, warnings = EXCLUDED.warnings,
			duration_ms = EXCLUDED.duration_ms
	`
	_, err = r.executor.ExecContext(ctx, query,
		t.ID, t.Name, t.Source, t.Labels, len(t.Components), summary.AbnormalCount,
		summary.TotalVolume, summary.TotalCost, t.ExportLocation,
		componentsJSON, deductionJSON, summaryJSON, warningsJSON,
		t.Duration.Milliseconds(), t.CreatedAt,
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to save takeoff").WithDetail(t.ID)
	}
	r.log.Debug("takeoff saved", logging.String("id", t.ID), logging.Int("components", len(t.Components)))
	return nil
}

func (r *postgresTakeoffRepo) FindByID(ctx context.Context, id string) (*takeoff.Takeoff, error) {
	query := `SELECT ` + takeoffColumns + ` FROM takeoffs WHERE id = $1`
	t, err := scanTakeoff(r.executor.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows || isInvalidUUID(err) {
			return nil, errors.New(errors.ErrCodeTakeoffNotFound, "takeoff not found").WithDetail(id)
		}
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to load takeoff").WithDetail(id)
	}
	return t, nil
}

// List returns takeoffs newest first.  limit is clamped to [1, 200].
func (r *postgresTakeoffRepo) List(ctx context.Context, limit, offset int) ([]*takeoff.Takeoff, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT ` + takeoffColumns + ` FROM takeoffs ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	rows, err := r.executor.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to list takeoffs")
	}
	defer rows.Close()

	var out []*takeoff.Takeoff
	for rows.Next() {
		t, err := scanTakeoff(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan takeoff")
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to iterate takeoffs")
	}
	return out, nil
}

func scanTakeoff(row scanner) (*takeoff.Takeoff, error) {
	var (
		t                             takeoff.Takeoff
		componentCount, abnormalCount int
		totalVolume, totalCost        float64
		componentsJSON, deductionJSON []byte
		summaryJSON, warningsJSON     []byte
		durationMS                    int64
		createdAt                     time.Time
	)
	err := row.Scan(
		&t.ID, &t.Name, &t.Source, &t.Labels, &componentCount, &abnormalCount, &totalVolume, &totalCost,
		&t.ExportLocation, &componentsJSON, &deductionJSON, &summaryJSON, &warningsJSON, &durationMS, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	if len(componentsJSON) > 0 {
		if err := json.Unmarshal(componentsJSON, &t.Components); err != nil {
			return nil, err
		}
	}
	if len(deductionJSON) > 0 {
		t.Deduction = &takeoff.DeductionReport{}
		if err := json.Unmarshal(deductionJSON, t.Deduction); err != nil {
			return nil, err
		}
	}
	if len(summaryJSON) > 0 {
		t.Summary = &takeoff.QuantitySummary{}
		if err := json.Unmarshal(summaryJSON, t.Summary); err != nil {
			return nil, err
		}
	}
	if len(warningsJSON) > 0 {
		if err := json.Unmarshal(warningsJSON, &t.Warnings); err != nil {
			return nil, err
		}
		if len(t.Warnings) == 0 {
			t.Warnings = nil
		}
	}
	t.Duration = time.Duration(durationMS) * time.Millisecond
	t.CreatedAt = createdAt.UTC()
	return &t, nil
}

func nonNilComponents(c []*component.Component) []*component.Component {
	if c == nil {
		return []*component.Component{}
	}
	return c
}

// isInvalidUUID reports a malformed id rejected by the uuid column.
func isInvalidUUID(err error) bool {
	pqErr, ok := err.(*pq.Error)
	return ok && pqErr.Code == "22P02"
}

//Personal.AI order the ending
