package convert

import (
	"bytes"
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"golang.org/x/time/rate"

	"github.com/nethalo/utf8mb4-convert/internal/parser"
)

const (
	databasesSQL = `SELECT SCHEMA_NAME FROM information_schema.SCHEMATA`
	myisamSQL    = `SELECT TABLE_SCHEMA, TABLE_NAME FROM information_schema.TABLES WHERE ENGINE = \?`
	tablesSQL    = `FROM information_schema.COLLATION_CHARACTER_SET_APPLICABILITY CCSA`
	problemsSQL  = `JOIN information_schema.STATISTICS S`
	columnsSQL   = `SELECT C.TABLE_SCHEMA, C.TABLE_NAME, C.COLUMN_NAME, C.COLUMN_TYPE`
)

var (
	problemCols = []string{"INDEX_NAME", "INDEX_TYPE", "TABLE_SCHEMA", "TABLE_NAME", "COLUMN_NAME",
		"DATA_TYPE", "CHARACTER_MAXIMUM_LENGTH", "SUB_PART"}
	columnCols = []string{"TABLE_SCHEMA", "TABLE_NAME", "COLUMN_NAME", "COLUMN_TYPE", "IS_NULLABLE"}
)

type fakeRecorder struct {
	queries  map[string]int
	printed  int
	executed int
	problems int
}

func (f *fakeRecorder) QueryDone(stage string, _ time.Duration) {
	if f.queries == nil {
		f.queries = map[string]int{}
	}
	f.queries[stage]++
}

func (f *fakeRecorder) StatementDone(_ string, executed bool) {
	f.printed++
	if executed {
		f.executed++
	}
}

func (f *fakeRecorder) ProblemColumns(n int) { f.problems = n }

func newRunner(t *testing.T, s Settings) (*Runner, sqlmock.Sqlmock, *bytes.Buffer) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	opts, err := NewOptions(s)
	if err != nil {
		t.Fatalf("NewOptions() error = %v", err)
	}
	var out bytes.Buffer
	return NewRunner(db, opts, &out, NewLogger(&out, false)), mock, &out
}

// expectAppDB sets up one utf8 database with one table holding one nullable
// varchar column.
func expectAppDB(mock sqlmock.Sqlmock, commit bool) {
	mock.ExpectQuery(databasesSQL).
		WillReturnRows(sqlmock.NewRows([]string{"SCHEMA_NAME"}).AddRow("appdb"))
	if commit {
		mock.ExpectExec(regexp.QuoteMeta("ALTER DATABASE `appdb`")).WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectQuery(tablesSQL).
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_SCHEMA", "TABLE_NAME"}).AddRow("appdb", "users"))
	if commit {
		mock.ExpectExec(regexp.QuoteMeta("ALTER TABLE `appdb`.`users` DEFAULT")).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	mock.ExpectQuery(problemsSQL).WillReturnRows(sqlmock.NewRows(problemCols))
	mock.ExpectQuery(columnsSQL).
		WillReturnRows(sqlmock.NewRows(columnCols).AddRow("appdb", "users", "name", "varchar(100)", "YES"))
	if commit {
		mock.ExpectExec(regexp.QuoteMeta("ALTER TABLE `appdb`.`users` MODIFY `name`")).WillReturnResult(sqlmock.NewResult(0, 0))
	}
}

const appDBOutput = "ALTER DATABASE `appdb` CHARACTER SET = utf8mb4 COLLATE = utf8mb4_0900_ai_ci\n" +
	"ALTER TABLE `appdb`.`users` DEFAULT CHARACTER SET utf8mb4 COLLATE utf8mb4_0900_ai_ci\n" +
	"ALTER TABLE `appdb`.`users` MODIFY `name` varchar(100) CHARACTER SET utf8mb4 COLLATE utf8mb4_0900_ai_ci\n"

func TestRun_DryRun(t *testing.T) {
	r, mock, out := newRunner(t, Settings{})
	rec := &fakeRecorder{}
	r.Recorder = rec
	expectAppDB(mock, false)

	report, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if out.String() != appDBOutput {
		t.Errorf("output =\n%s\nwant\n%s", out.String(), appDBOutput)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations (a dry run must not execute): %v", err)
	}

	if report.Printed != 3 || report.Executed != 0 || report.Committed {
		t.Errorf("report = printed %d executed %d committed %v", report.Printed, report.Executed, report.Committed)
	}
	if report.Operations[parser.AlterDatabase] != 1 || report.Operations[parser.ModifyColumn] != 1 {
		t.Errorf("operations = %v", report.Operations)
	}
	if len(report.Stages) != 4 {
		t.Errorf("stages = %d, want 4 (myisam off)", len(report.Stages))
	}
	if rec.printed != 3 || rec.executed != 0 || rec.queries[StageColumns] != 1 {
		t.Errorf("recorder = %+v", rec)
	}
}

func TestRun_MakeItSo(t *testing.T) {
	r, mock, out := newRunner(t, Settings{MakeItSo: true})
	r.Limiter = rate.NewLimiter(rate.Inf, 1)
	expectAppDB(mock, true)

	report, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if out.String() != appDBOutput {
		t.Errorf("output =\n%s\nwant\n%s", out.String(), appDBOutput)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
	if report.Printed != report.Executed || report.Executed != 3 {
		t.Errorf("printed %d executed %d, want 3 each", report.Printed, report.Executed)
	}
}

func TestRun_BulkTable(t *testing.T) {
	r, mock, out := newRunner(t, Settings{BulkTable: true})
	mock.ExpectQuery(databasesSQL).WillReturnRows(sqlmock.NewRows([]string{"SCHEMA_NAME"}))
	mock.ExpectQuery(tablesSQL).
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_SCHEMA", "TABLE_NAME"}).AddRow("appdb", "users"))
	mock.ExpectQuery(problemsSQL).WillReturnRows(sqlmock.NewRows(problemCols))

	report, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
	want := "ALTER TABLE `appdb`.`users` CONVERT TO CHARACTER SET utf8mb4 COLLATE utf8mb4_0900_ai_ci\n"
	if out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
	if strings.Contains(out.String(), "MODIFY") {
		t.Error("bulk mode must not emit MODIFY statements")
	}
	if !report.BulkTable {
		t.Error("report should record bulk mode")
	}
}

func TestRun_NonBulkNeverConverts(t *testing.T) {
	r, mock, out := newRunner(t, Settings{})
	expectAppDB(mock, false)
	if _, err := r.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out.String(), "CONVERT TO") {
		t.Errorf("non-bulk output contains CONVERT TO:\n%s", out.String())
	}
}

func TestRun_MyISAM(t *testing.T) {
	r, mock, out := newRunner(t, Settings{MyISAMToInnoDB: true})
	mock.ExpectQuery(databasesSQL).WillReturnRows(sqlmock.NewRows([]string{"SCHEMA_NAME"}))
	mock.ExpectQuery(myisamSQL).WithArgs("MyISAM", "information_schema", "mysql", "performance_schema", "sys").
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_SCHEMA", "TABLE_NAME"}).AddRow("appdb", "legacy"))
	mock.ExpectQuery(tablesSQL).WillReturnRows(sqlmock.NewRows([]string{"TABLE_SCHEMA", "TABLE_NAME"}))
	mock.ExpectQuery(problemsSQL).WillReturnRows(sqlmock.NewRows(problemCols))
	mock.ExpectQuery(columnsSQL).WillReturnRows(sqlmock.NewRows(columnCols))

	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
	if want := "ALTER TABLE `appdb`.`legacy` ENGINE=InnoDB\n"; out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
}

func TestRun_ProblemColumns(t *testing.T) {
	r, mock, out := newRunner(t, Settings{})
	rec := &fakeRecorder{}
	r.Recorder = rec
	mock.ExpectQuery(databasesSQL).WillReturnRows(sqlmock.NewRows([]string{"SCHEMA_NAME"}))
	mock.ExpectQuery(tablesSQL).WillReturnRows(sqlmock.NewRows([]string{"TABLE_SCHEMA", "TABLE_NAME"}))
	mock.ExpectQuery(problemsSQL).WillReturnRows(sqlmock.NewRows(problemCols).
		AddRow("idx_email", "BTREE", "appdb", "users", "email", "varchar", int64(255), nil).
		AddRow("idx_bio", "BTREE", "appdb", "users", "bio", "text", int64(65535), int64(250)))
	mock.ExpectQuery(columnsSQL).WillReturnRows(sqlmock.NewRows(columnCols))

	report, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	want := "-- Problem columns (index prefix > 191 characters)\n" +
		"--   `appdb`.`users`.`email` (`idx_email` BTREE 255)\n" +
		"--   `appdb`.`users`.`bio` (`idx_bio` BTREE 250)\n"
	if out.String() != want {
		t.Errorf("output =\n%s\nwant\n%s", out.String(), want)
	}
	if len(report.ProblemColumns) != 2 || rec.problems != 2 {
		t.Errorf("problem columns: report %d recorder %d", len(report.ProblemColumns), rec.problems)
	}
}

func TestRun_VerboseNoProblems(t *testing.T) {
	r, mock, out := newRunner(t, Settings{})
	r.Log = NewLogger(out, true)
	r.Settings = map[string]any{"bulk_table": false}
	mock.ExpectQuery(databasesSQL).WillReturnRows(sqlmock.NewRows([]string{"SCHEMA_NAME"}))
	mock.ExpectQuery(tablesSQL).WillReturnRows(sqlmock.NewRows([]string{"TABLE_SCHEMA", "TABLE_NAME"}))
	mock.ExpectQuery(problemsSQL).WillReturnRows(sqlmock.NewRows(problemCols))
	mock.ExpectQuery(columnsSQL).WillReturnRows(sqlmock.NewRows(columnCols))

	if _, err := r.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		`-- settings {"bulk_table":false}`,
		"-- Altering 0 databases",
		"-- No problem columns detected",
		"-- done",
	} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("verbose output missing %q:\n%s", want, out.String())
		}
	}
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		if !strings.HasPrefix(line, "--") {
			t.Errorf("verbose line is not a comment: %q", line)
		}
	}
}

func TestRun_QueryErrorAbortsLaterStages(t *testing.T) {
	r, mock, out := newRunner(t, Settings{})
	boom := errors.New("lost connection")
	mock.ExpectQuery(databasesSQL).
		WillReturnRows(sqlmock.NewRows([]string{"SCHEMA_NAME"}).AddRow("appdb"))
	mock.ExpectQuery(tablesSQL).WillReturnError(boom)

	report, err := r.Run(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("Run() error = %v, want %v", err, boom)
	}
	if !strings.Contains(err.Error(), "tables stage") {
		t.Errorf("error should name the stage: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
	if report == nil || report.Printed != 1 || len(report.Stages) != 2 {
		t.Errorf("partial report = %+v", report)
	}
	if strings.Contains(out.String(), "MODIFY") {
		t.Error("columns stage ran after a failure")
	}
}

func TestRun_ExecErrorStops(t *testing.T) {
	r, mock, _ := newRunner(t, Settings{MakeItSo: true})
	boom := errors.New("ER_LOCK_WAIT_TIMEOUT")
	mock.ExpectQuery(databasesSQL).
		WillReturnRows(sqlmock.NewRows([]string{"SCHEMA_NAME"}).AddRow("d1").AddRow("d2"))
	mock.ExpectExec(regexp.QuoteMeta("ALTER DATABASE `d1`")).WillReturnError(boom)

	report, err := r.Run(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("Run() error = %v, want %v", err, boom)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
	if report.Executed != 0 || report.Printed != 1 {
		t.Errorf("printed %d executed %d", report.Printed, report.Executed)
	}
}
