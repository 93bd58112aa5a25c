// Package sqlite implements the clipboard history store on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	sqlitedriver "modernc.org/sqlite"
)

// timeLayout is the fixed-width UTC form used for every timestamp column.
// Fixed width keeps string comparison equal to chronological comparison,
// which cursor pagination and retention rely on. It matches the
// millisecond ISO-8601 strings written by earlier versions of the app.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// Store provides SQLite-backed persistence for clipboard history.
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	// writeMu serializes writers. WAL lets readers proceed concurrently.
	writeMu sync.Mutex
}

var registerFuncs sync.Once

// Open creates or opens the SQLite store at the given path.
// It configures WAL mode, sets pragmas, and applies pending migrations.
func Open(path string, logger *slog.Logger) (*Store, error) {
	var regErr error
	registerFuncs.Do(func() {
		regErr = sqlitedriver.RegisterDeterministicScalarFunction("regexp", 2, regexpFunc)
	})
	if regErr != nil {
		return nil, fmt.Errorf("register regexp function: %w", regErr)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", pragma, err)
		}
	}

	s := &Store{db: db, logger: logger}

	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// exec runs a write statement under the writer lock.
func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.db.ExecContext(ctx, query, args...)
}

// withTx runs fn in a transaction under the writer lock.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// Patterns used by the regexp SQL function are memoized because a query
// evaluates the same pattern once per row. Keywords come from API callers, so
// the memo expires entries and is capped; no janitor goroutine is started.
const (
	patternTTL  = 10 * time.Minute
	maxPatterns = 256
)

var compiled = cache.New(patternTTL, 0)

// regexpFunc implements regexp(pattern, text) for SQLite.
func regexpFunc(_ *sqlitedriver.FunctionContext, args []driver.Value) (driver.Value, error) {
	pattern, ok := args[0].(string)
	if !ok {
		return int64(0), nil
	}

	var text string
	switch v := args[1].(type) {
	case string:
		text = v
	case []byte:
		text = string(v)
	default:
		return int64(0), nil
	}

	re, err := compilePattern(pattern)
	if err != nil {
		return nil, err
	}
	if re.MatchString(text) {
		return int64(1), nil
	}
	return int64(0), nil
}

func compilePattern(pattern string) (*regexp.Regexp, error) {
	if re, ok := compiled.Get(pattern); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	if compiled.ItemCount() >= maxPatterns {
		compiled.DeleteExpired()
		if compiled.ItemCount() >= maxPatterns {
			compiled.Flush()
		}
	}
	compiled.SetDefault(pattern, re)
	return re, nil
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// formatTime formats a time.Time for storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime parses a stored timestamp. Any RFC 3339 form is accepted so
// rows written by other tools still load.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}
