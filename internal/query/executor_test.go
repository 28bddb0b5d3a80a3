package query

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open(filepath.Join(t.TempDir(), "query.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	stmts := []string{
		`CREATE TABLE data_codes (code TEXT, qty INTEGER, note TEXT)`,
		`INSERT INTO data_codes VALUES ('50%', 1, 'what?'), ('500', 2, NULL), ('50% off', 3, 'x')`,
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("exec %q: %v", stmt, err)
		}
	}
	return db
}

func TestExecuteKeepsPercentLiterals(t *testing.T) {
	exec := NewExecutor(openSQLite(t))

	res, err := exec.Execute(context.Background(), "SELECT code, qty FROM data_codes WHERE code LIKE '50%' ORDER BY qty")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(res.Columns) != 2 || res.Columns[0] != "code" {
		t.Fatalf("columns = %v", res.Columns)
	}
	// '50%' matches every code starting with 50.
	if len(res.Rows) != 3 {
		t.Fatalf("rows = %v", res.Rows)
	}

	res, err = exec.Execute(context.Background(), "SELECT qty FROM data_codes WHERE code = '50%' AND note = 'what?'")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(res.Rows) != 1 || res.Rows[0][0] != int64(1) {
		t.Fatalf("rows = %v", res.Rows)
	}
}

func TestExecuteEmptyResult(t *testing.T) {
	res, err := NewExecutor(openSQLite(t)).Execute(context.Background(), "SELECT code FROM data_codes WHERE qty > 100")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(res.Columns) != 1 || len(res.Rows) != 0 {
		t.Fatalf("result = %+v", res)
	}
}

func TestExecuteReportsStoreError(t *testing.T) {
	_, err := NewExecutor(openSQLite(t)).Execute(context.Background(), "SELECT missing_column FROM data_codes")
	var storeErr *StoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("Execute() error = %v, want StoreError", err)
	}
}

func TestExecuteCancelledIsNotStoreError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewExecutor(openSQLite(t)).Execute(ctx, "SELECT code FROM data_codes")
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		t.Fatalf("cancellation classified as store error: %v", err)
	}
}

func TestExecutePassesNoBindArgsToMySQL(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer sqlDB.Close()

	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		t.Fatalf("gorm.Open() error = %v", err)
	}

	stmt := "SELECT region, SUM(total) FROM data_sales WHERE region LIKE 'N%' AND note <> '?' GROUP BY region"
	mock.ExpectQuery(regexp.QuoteMeta(stmt)).
		WithoutArgs().
		WillReturnRows(sqlmock.NewRows([]string{"region", "SUM(total)"}).AddRow([]byte("north"), 10.5))

	res, err := NewExecutor(db).Execute(context.Background(), stmt)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Rows[0][0] != "north" {
		t.Fatalf("[]byte should be normalized to string, got %#v", res.Rows[0][0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestExecuteMySQLErrorIsStoreError(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer sqlDB.Close()
	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		t.Fatalf("gorm.Open() error = %v", err)
	}

	mock.ExpectQuery(regexp.QuoteMeta("SELECT nope FROM t")).WillReturnError(errors.New("Error 1054: Unknown column 'nope'"))

	_, err = NewExecutor(db).Execute(context.Background(), "SELECT nope FROM t")
	var storeErr *StoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("Execute() error = %v, want StoreError", err)
	}
}
