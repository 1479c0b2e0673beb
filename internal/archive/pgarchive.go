// Package archive is the caller-side durability wrapper around the
// in-memory engine: it periodically copies terminal instances and the
// aggregate statistics report into Postgres. Nothing is ever read back —
// the engine's contract stays memory-only and a restart starts empty.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/clinicore/orchestrator/internal/workflow"
)

type PGArchive struct {
	db *sql.DB
}

func NewPGArchive(dsn string) (*PGArchive, error) {
	if dsn == "" {
		return nil, fmt.Errorf("dsn is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	a := &PGArchive{db: db}
	if err := a.migrate(context.Background()); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *PGArchive) migrate(ctx context.Context) error {
	_, err := a.db.ExecContext(ctx, `
create table if not exists orchestrator_instances (
  id text primary key,
  workflow_id text not null,
  status text not null,
  payload jsonb not null,
  created_at timestamptz not null,
  completed_at timestamptz not null,
  archived_at timestamptz not null
);
create table if not exists orchestrator_statistics (
  id bigserial primary key,
  payload jsonb not null,
  captured_at timestamptz not null
);
`)
	return err
}

// SaveInstance upserts one terminal instance snapshot.
func (a *PGArchive) SaveInstance(ctx context.Context, inst workflow.Instance) error {
	payload, err := json.Marshal(inst)
	if err != nil {
		return err
	}
	_, err = a.db.ExecContext(ctx, `insert into orchestrator_instances
(id, workflow_id, status, payload, created_at, completed_at, archived_at)
values ($1, $2, $3, $4, $5, $6, now())
on conflict (id) do update set status = excluded.status, payload = excluded.payload, archived_at = now()`,
		inst.ID, inst.WorkflowID, inst.Status, payload, inst.CreatedAt, inst.CompletedAt)
	return err
}

// SaveStatistics appends one statistics snapshot.
func (a *PGArchive) SaveStatistics(ctx context.Context, stats workflow.Statistics) error {
	payload, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	_, err = a.db.ExecContext(ctx, `insert into orchestrator_statistics (payload, captured_at) values ($1, $2)`,
		payload, time.Now().UTC())
	return err
}

func (a *PGArchive) Close() error {
	return a.db.Close()
}
