// Package repositories persists pipeline runs in PostgreSQL.
package repositories

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"avatarpipe/internal/httpkit"
	"avatarpipe/internal/models"
	"avatarpipe/internal/pkg/errors"
)

// MaxErrorText caps the stored failure message.
const MaxErrorText = 2000

// Schema creates the runs table.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	mode         TEXT NOT NULL,
	status       TEXT NOT NULL,
	phase        TEXT,
	script_path  TEXT,
	audio_path   TEXT,
	options_json TEXT NOT NULL DEFAULT '{}',
	result_json  TEXT,
	error_text   TEXT,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	started_at   TIMESTAMPTZ,
	finished_at  TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS runs_status_created_idx ON runs (status, created_at DESC);
`

// DB is the subset of pgxpool.Pool the repository uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type RunRepository struct {
	db DB
}

func NewRunRepository(db DB) *RunRepository {
	return &RunRepository{db: db}
}

// Migrate applies Schema.
func (r *RunRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, Schema); err != nil {
		return errors.Wrap(err, "runs.migrate", "create runs table")
	}
	return nil
}

func (r *RunRepository) Create(ctx context.Context, run *models.Run) error {
	const op = "runs.create"

	opts, err := json.Marshal(run.Options)
	if err != nil {
		return errors.Wrap(err, op, "encode options")
	}

	err = r.db.QueryRow(ctx, `
		INSERT INTO runs (id, mode, status, script_path, audio_path, options_json, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at
	`, run.ID, string(run.Mode), string(run.Status),
		nullIfEmpty(run.ScriptPath), nullIfEmpty(run.AudioPath), string(opts), run.CreatedAt,
	).Scan(&run.CreatedAt)
	if err != nil {
		if httpkit.IsUniqueViolation(err) {
			return errors.Newf(errors.CodeValidation, "run %s already exists", run.ID).WithOp(op)
		}
		return dbError(err, op, "insert run")
	}
	return nil
}

func (r *RunRepository) Get(ctx context.Context, id string) (*models.Run, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, mode, status, COALESCE(phase,''), COALESCE(script_path,''), COALESCE(audio_path,''),
		       options_json, COALESCE(result_json,''), COALESCE(error_text,''),
		       created_at, started_at, finished_at
		FROM runs WHERE id=$1
	`, id)

	run, err := scanRun(row)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.NotFound("run", id).WithOp("runs.get")
		}
		return nil, dbError(err, "runs.get", "load run")
	}
	return run, nil
}

// List returns the newest runs first, optionally filtered by status.
func (r *RunRepository) List(ctx context.Context, status models.Status, limit int) ([]models.Run, error) {
	const cols = `id, mode, status, COALESCE(phase,''), COALESCE(script_path,''), COALESCE(audio_path,''),
		options_json, COALESCE(result_json,''), COALESCE(error_text,''),
		created_at, started_at, finished_at`

	var (
		rows pgx.Rows
		err  error
	)
	if status != "" {
		rows, err = r.db.Query(ctx,
			`SELECT `+cols+` FROM runs WHERE status=$1 ORDER BY created_at DESC LIMIT $2`,
			string(status), limit,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT `+cols+` FROM runs ORDER BY created_at DESC LIMIT $1`,
			limit,
		)
	}
	if err != nil {
		return nil, dbError(err, "runs.list", "query runs")
	}
	defer rows.Close()

	out := make([]models.Run, 0, limit)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, dbError(err, "runs.list", "scan run")
		}
		out = append(out, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, "runs.list", "iterate runs")
	}
	return out, nil
}

func (r *RunRepository) MarkRunning(ctx context.Context, id string) error {
	return r.exec(ctx, "runs.running", id,
		`UPDATE runs SET status='RUNNING', started_at=NOW(), finished_at=NULL, error_text=NULL WHERE id=$1`,
		id,
	)
}

func (r *RunRepository) SetPhase(ctx context.Context, id, phase string) error {
	return r.exec(ctx, "runs.phase", id,
		`UPDATE runs SET phase=$2 WHERE id=$1`,
		id, phase,
	)
}

// MarkDone stores the encoded result and completes the run.
func (r *RunRepository) MarkDone(ctx context.Context, id string, result any) error {
	body, err := json.Marshal(result)
	if err != nil {
		return errors.Wrap(err, "runs.done", "encode result")
	}
	return r.exec(ctx, "runs.done", id,
		`UPDATE runs SET status='DONE', finished_at=NOW(), result_json=$2 WHERE id=$1`,
		id, string(body),
	)
}

// MarkFailed records the failure message, truncated to MaxErrorText bytes.
// A partial result is stored when one is given.
func (r *RunRepository) MarkFailed(ctx context.Context, id, message string, partial any) error {
	if len(message) > MaxErrorText {
		message = message[:MaxErrorText]
	}
	var body any
	if partial != nil {
		b, err := json.Marshal(partial)
		if err != nil {
			return errors.Wrap(err, "runs.failed", "encode partial result")
		}
		body = string(b)
	}
	return r.exec(ctx, "runs.failed", id,
		`UPDATE runs SET status='FAILED', finished_at=NOW(), error_text=$2, result_json=COALESCE($3, result_json) WHERE id=$1`,
		id, message, body,
	)
}

func (r *RunRepository) exec(ctx context.Context, op, id, sql string, args ...any) error {
	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return dbError(err, op, "update run")
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("run", id).WithOp(op)
	}
	return nil
}

func scanRun(row pgx.Row) (*models.Run, error) {
	var (
		run                   models.Run
		mode, status          string
		optsJSON, resultJSON  string
		startedAt, finishedAt *time.Time
	)
	err := row.Scan(
		&run.ID, &mode, &status, &run.Phase, &run.ScriptPath, &run.AudioPath,
		&optsJSON, &resultJSON, &run.ErrorText,
		&run.CreatedAt, &startedAt, &finishedAt,
	)
	if err != nil {
		return nil, err
	}
	run.Mode = models.Mode(mode)
	run.Status = models.Status(status)
	run.StartedAt = startedAt
	run.FinishedAt = finishedAt
	if optsJSON != "" {
		if err := json.Unmarshal([]byte(optsJSON), &run.Options); err != nil {
			return nil, err
		}
	}
	if resultJSON != "" {
		run.Result = json.RawMessage(resultJSON)
	}
	return &run, nil
}

func dbError(err error, op, message string) error {
	if httpkit.IsUndefinedTable(err) {
		return errors.WrapWithCode(err, errors.CodeUnavailable, op, "runs table missing; run migrations")
	}
	return errors.WrapWithCode(err, errors.CodeUnavailable, op, message)
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
