package convert

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/nethalo/utf8mb4-convert/internal/parser"
	"golang.org/x/time/rate"
)

// DB is the subset of *sql.DB the pipeline uses.
type DB interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Recorder receives per-stage measurements. A nil Recorder is allowed.
type Recorder interface {
	QueryDone(stage string, elapsed time.Duration)
	StatementDone(stage string, executed bool)
	ProblemColumns(n int)
}

// StageReport summarizes one pipeline stage.
type StageReport struct {
	Name       string
	Rows       int
	Statements int
	Elapsed    time.Duration
}

// Report describes what a run did. It is returned even when the run fails
// part way, covering the stages that completed.
type Report struct {
	RunID          string
	Committed      bool
	BulkTable      bool
	Stages         []StageReport
	ProblemColumns []ProblemColumn
	Printed        int
	Executed       int
	Operations     map[parser.DDLOperation]int
	Duration       time.Duration
}

// Runner executes the conversion pipeline:
// databases, MyISAM tables, tables, problem-column check, columns.
type Runner struct {
	DB      DB
	Options Options
	Out     io.Writer
	Log     *Logger

	// Optional.
	RunID    string
	Limiter  *rate.Limiter
	Recorder Recorder
	Settings map[string]any

	report *Report
}

// NewRunner returns a Runner that prints statements to out.
func NewRunner(db DB, opts Options, out io.Writer, log *Logger) *Runner {
	return &Runner{DB: db, Options: opts, Out: out, Log: log}
}

// Run executes every stage in order and stops at the first failing query or
// statement. Statements already executed are left in place.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	r.report = &Report{
		RunID:      r.RunID,
		Committed:  r.Options.MakeItSo,
		BulkTable:  r.Options.BulkTable,
		Operations: map[parser.DDLOperation]int{},
	}
	defer func() { r.report.Duration = time.Since(start) }()

	if len(r.Settings) > 0 {
		if b, err := json.Marshal(r.Settings); err == nil {
			r.Log.Debug("settings", string(b))
		}
	}

	stages := []struct {
		name string
		run  func(context.Context, *StageReport) error
		skip bool
	}{
		{StageDatabases, r.convertDatabases, false},
		{StageMyISAM, r.convertEngines, !r.Options.MyISAMToInnoDB},
		{StageTables, r.convertTables, false},
		{StageProblemColumns, r.checkProblemColumns, false},
		{StageColumns, r.convertColumns, r.Options.BulkTable},
	}
	for _, s := range stages {
		if s.skip {
			continue
		}
		sr := StageReport{Name: s.name}
		stageStart := time.Now()
		err := s.run(ctx, &sr)
		sr.Elapsed = time.Since(stageStart)
		r.report.Stages = append(r.report.Stages, sr)
		if err != nil {
			return r.report, fmt.Errorf("%s stage: %w", s.name, err)
		}
	}

	r.Log.Debug("done")
	return r.report, nil
}

func (r *Runner) convertDatabases(ctx context.Context, sr *StageReport) error {
	var dbs []DatabaseRow
	err := r.selectAll(ctx, sr.Name, DatabasesQuery(r.Options), func(rows *sql.Rows) error {
		var d DatabaseRow
		if err := rows.Scan(&d.Schema); err != nil {
			return err
		}
		dbs = append(dbs, d)
		return nil
	})
	if err != nil {
		return err
	}
	sr.Rows = len(dbs)

	r.Log.Debugf("Altering %d databases", len(dbs))
	for _, d := range dbs {
		if err := r.alter(ctx, sr, AlterDatabaseDDL(d.Schema, r.Options.Collation)); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) convertEngines(ctx context.Context, sr *StageReport) error {
	r.Log.Debug("Converting MyISAM tables to InnoDB")
	tables, err := r.selectTables(ctx, sr.Name, MyISAMTablesQuery(r.Options))
	if err != nil {
		return err
	}
	sr.Rows = len(tables)

	r.Log.Debugf("Found %d MyISAM tables", len(tables))
	for _, t := range tables {
		if err := r.alter(ctx, sr, EngineDDL(t)); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) convertTables(ctx context.Context, sr *StageReport) error {
	tables, err := r.selectTables(ctx, sr.Name, TablesQuery(r.Options))
	if err != nil {
		return err
	}
	sr.Rows = len(tables)

	r.Log.Debugf("Altering %d tables", len(tables))
	for _, t := range tables {
		ddl := TableDefaultDDL(t, r.Options.Collation)
		if r.Options.BulkTable {
			ddl = ConvertTableDDL(t, r.Options.Collation)
		}
		if err := r.alter(ctx, sr, ddl); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) checkProblemColumns(ctx context.Context, sr *StageReport) error {
	var problems []ProblemColumn
	err := r.selectAll(ctx, sr.Name, ProblemColumnsQuery(r.Options), func(rows *sql.Rows) error {
		var (
			p                  ProblemColumn
			maxLength, subPart sql.NullInt64
		)
		if err := rows.Scan(&p.IndexName, &p.IndexType, &p.Schema, &p.Table, &p.Column,
			&p.DataType, &maxLength, &subPart); err != nil {
			return err
		}
		if maxLength.Valid {
			p.MaxLength = &maxLength.Int64
		}
		if subPart.Valid {
			p.SubPart = &subPart.Int64
		}
		problems = append(problems, p)
		return nil
	})
	if err != nil {
		return err
	}
	sr.Rows = len(problems)
	r.report.ProblemColumns = problems
	if r.Recorder != nil {
		r.Recorder.ProblemColumns(len(problems))
	}

	if len(problems) == 0 {
		r.Log.Debug("No problem columns detected")
		return nil
	}
	fmt.Fprintf(r.Out, "-- Problem columns (index prefix > %d characters)\n", MaxIndexPrefix)
	for _, p := range problems {
		fmt.Fprintf(r.Out, "--   %s\n", p)
	}
	return nil
}

func (r *Runner) convertColumns(ctx context.Context, sr *StageReport) error {
	var cols []ColumnRow
	err := r.selectAll(ctx, sr.Name, ColumnsQuery(r.Options), func(rows *sql.Rows) error {
		var c ColumnRow
		if err := rows.Scan(&c.Schema, &c.Table, &c.Column, &c.ColumnType, &c.IsNullable); err != nil {
			return err
		}
		cols = append(cols, c)
		return nil
	})
	if err != nil {
		return err
	}
	sr.Rows = len(cols)

	r.Log.Debugf("Altering %d columns", len(cols))
	for _, c := range cols {
		if err := r.alter(ctx, sr, ModifyColumnDDL(c, r.Options.Collation)); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) selectTables(ctx context.Context, stage string, q Query) ([]TableRow, error) {
	var tables []TableRow
	err := r.selectAll(ctx, stage, q, func(rows *sql.Rows) error {
		var t TableRow
		if err := rows.Scan(&t.Schema, &t.Table); err != nil {
			return err
		}
		tables = append(tables, t)
		return nil
	})
	return tables, err
}

// selectAll runs q and calls scan once per row. The logged timing covers
// fetching every row.
func (r *Runner) selectAll(ctx context.Context, stage string, q Query, scan func(*sql.Rows) error) error {
	query, args := q.SQL()
	r.Log.Debug(q.String())

	start := time.Now()
	defer func() {
		elapsed := time.Since(start)
		r.Log.Timing(elapsed)
		if r.Recorder != nil {
			r.Recorder.QueryDone(stage, elapsed)
		}
	}()

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("querying information_schema: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return fmt.Errorf("scanning row: %w", err)
		}
	}
	return rows.Err()
}

// alter prints ddl and, with MakeItSo set, executes it.
func (r *Runner) alter(ctx context.Context, sr *StageReport, ddl string) error {
	fmt.Fprintln(r.Out, ddl)
	sr.Statements++
	r.report.Printed++

	op, err := parser.Classify(ddl)
	if err != nil {
		r.Log.Debugf("could not classify statement: %v", err)
	}
	r.report.Operations[op]++

	if !r.Options.MakeItSo {
		if r.Recorder != nil {
			r.Recorder.StatementDone(sr.Name, false)
		}
		return nil
	}

	if r.Limiter != nil {
		if err := r.Limiter.Wait(ctx); err != nil {
			return fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	start := time.Now()
	_, err = r.DB.ExecContext(ctx, ddl)
	r.Log.Timing(time.Since(start))
	if err != nil {
		return fmt.Errorf("executing %q: %w", ddl, err)
	}
	r.report.Executed++
	if r.Recorder != nil {
		r.Recorder.StatementDone(sr.Name, true)
	}
	return nil
}
