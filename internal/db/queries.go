package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lucasnoah/skyflag/internal/flagger"
)

// Run represents a row in the flag_runs table.
type Run struct {
	ID            string `db:"id" json:"id"`
	Stage         string `db:"stage" json:"stage"`
	Artifact      string `db:"artifact" json:"artifact"`
	Shape         string `db:"shape" json:"shape"`
	Iterations    int    `db:"iterations" json:"iterations"`
	StopReason    string `db:"stop_reason" json:"stop_reason"`
	FlagCount     int    `db:"flag_count" json:"flag_count"`
	BeforeFlagged int    `db:"before_flagged" json:"before_flagged"`
	BeforeTotal   int    `db:"before_total" json:"before_total"`
	AfterFlagged  int    `db:"after_flagged" json:"after_flagged"`
	AfterTotal    int    `db:"after_total" json:"after_total"`
	CreatedAt     string `db:"created_at" json:"created_at"`
}

// CommandRow represents a row in the flag_commands table.
type CommandRow struct {
	RunID    string `db:"run_id" json:"run_id"`
	Seq      int    `db:"seq" json:"seq"`
	RuleName string `db:"rule_name" json:"rule_name"`
	Reason   string `db:"reason" json:"reason"`
	Spw      string `db:"spw" json:"spw"`
	Antenna  string `db:"antenna" json:"antenna"`
	Pol      string `db:"pol" json:"pol"`
	FlagCmd  string `db:"flagcmd" json:"flagcmd"`
}

// RuleCount is the number of commands a rule produced.
type RuleCount struct {
	RuleName string `db:"rule_name"`
	Count    int    `db:"n"`
}

// RecordRun stores a controller result and its commands in one
// transaction. A run ID is generated when runID is empty.
func (d *DB) RecordRun(ctx context.Context, runID, stage, shape string, res *flagger.Result) (*Run, error) {
	if runID == "" {
		runID = uuid.NewString()
	}
	run := &Run{
		ID:         runID,
		Stage:      stage,
		Artifact:   res.Artifact,
		Shape:      shape,
		Iterations: res.Iterations,
		StopReason: res.Stop,
		FlagCount:  len(res.Flags),
		CreatedAt:  time.Now().UTC().Format("2006-01-02T15:04:05.000000000Z"),
	}
	if res.Before != nil {
		run.BeforeFlagged, run.BeforeTotal = res.Before.Flagged, res.Before.Total
	}
	if res.After != nil {
		run.AfterFlagged, run.AfterTotal = res.After.Flagged, res.After.Total
	}

	tx, err := d.conn.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.NamedExecContext(ctx, `INSERT INTO flag_runs
		(id, stage, artifact, shape, iterations, stop_reason, flag_count,
		 before_flagged, before_total, after_flagged, after_total, created_at)
		VALUES (:id, :stage, :artifact, :shape, :iterations, :stop_reason, :flag_count,
		 :before_flagged, :before_total, :after_flagged, :after_total, :created_at)`, run)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}

	insert := tx.Rebind(`INSERT INTO flag_commands
		(run_id, seq, rule_name, reason, spw, antenna, pol, flagcmd) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	for i, c := range res.Flags {
		if _, err := tx.ExecContext(ctx, insert, runID, i, c.RuleName, c.Reason, c.Spw, c.Antenna, c.Pol, c.Text); err != nil {
			return nil, fmt.Errorf("insert command %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first. An empty stage
// lists every stage; limit <= 0 means no limit.
func (d *DB) ListRuns(ctx context.Context, stage string, limit int) ([]Run, error) {
	query := "SELECT * FROM flag_runs"
	var args []any
	if stage != "" {
		query += " WHERE stage = ?"
		args = append(args, stage)
	}
	query += " ORDER BY created_at DESC, id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var runs []Run
	if err := d.conn.SelectContext(ctx, &runs, d.conn.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// GetRun returns one run.
func (d *DB) GetRun(ctx context.Context, id string) (*Run, error) {
	var run Run
	if err := d.conn.GetContext(ctx, &run, d.conn.Rebind("SELECT * FROM flag_runs WHERE id = ?"), id); err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return &run, nil
}

// RunCommands returns the commands of a run in their original order.
func (d *DB) RunCommands(ctx context.Context, runID string) ([]CommandRow, error) {
	var rows []CommandRow
	err := d.conn.SelectContext(ctx, &rows,
		d.conn.Rebind("SELECT * FROM flag_commands WHERE run_id = ? ORDER BY seq"), runID)
	if err != nil {
		return nil, fmt.Errorf("run commands: %w", err)
	}
	return rows, nil
}

// RuleCounts returns how many commands each rule produced across the runs
// of a stage, most productive first.
func (d *DB) RuleCounts(ctx context.Context, stage string) ([]RuleCount, error) {
	var counts []RuleCount
	err := d.conn.SelectContext(ctx, &counts, d.conn.Rebind(`
		SELECT c.rule_name, COUNT(*) AS n
		FROM flag_commands c JOIN flag_runs r ON r.id = c.run_id
		WHERE r.stage = ?
		GROUP BY c.rule_name
		ORDER BY n DESC, c.rule_name`), stage)
	if err != nil {
		return nil, fmt.Errorf("rule counts: %w", err)
	}
	return counts, nil
}

// DeleteRun removes a run and its commands.
func (d *DB) DeleteRun(ctx context.Context, id string) error {
	if _, err := d.conn.ExecContext(ctx, d.conn.Rebind("DELETE FROM flag_commands WHERE run_id = ?"), id); err != nil {
		return fmt.Errorf("delete commands: %w", err)
	}
	res, err := d.conn.ExecContext(ctx, d.conn.Rebind("DELETE FROM flag_runs WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", id)
	}
	return nil
}
