package save

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"lifesim/internal/config"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationFS embed.FS

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// SQLStore keeps blobs in a kv table on sqlite or postgres.
type SQLStore struct {
	dialect Dialect
	db      *sql.DB
}

// OpenFromSettings opens the store the settings describe.
func OpenFromSettings(ctx context.Context, s config.Settings) (*SQLStore, error) {
	dialect := Dialect(strings.TrimSpace(strings.ToLower(s.DBDialect)))
	if dialect == "" {
		dialect = DialectSQLite
	}
	var dsn string
	switch dialect {
	case DialectSQLite:
		dsn = strings.TrimSpace(s.SQLitePath)
		if dsn == "" {
			dsn = filepath.Join("tmp", "lifesim.sqlite")
		}
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
	case DialectPostgres:
		dsn = strings.TrimSpace(s.PostgresURL())
		if dsn == "" {
			return nil, errors.New("DB_DIALECT=postgres requires DB_POSTGRES_DSN or DATABASE_URL")
		}
	default:
		return nil, fmt.Errorf("unsupported DB_DIALECT %q", s.DBDialect)
	}
	return Open(ctx, dialect, dsn)
}

// Open connects, pings and migrates.
func Open(ctx context.Context, dialect Dialect, dsn string) (*SQLStore, error) {
	driver := "sqlite"
	if dialect == DialectPostgres {
		driver = "pgx"
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s database: %w", dialect, err)
	}
	s := &SQLStore{dialect: dialect, db: db}
	if err := s.applyMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) Dialect() Dialect { return s.dialect }

func (s *SQLStore) Close() error { return s.db.Close() }

func (s *SQLStore) bind(pos int) string {
	if s.dialect == DialectPostgres {
		return fmt.Sprintf("$%d", pos)
	}
	return "?"
}

func (s *SQLStore) applyMigrations(ctx context.Context) error {
	create := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL
		)
	`
	if _, err := s.db.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	applied := map[string]bool{}
	rows, err := s.db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return fmt.Errorf("read schema_migrations: %w", err)
	}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return fmt.Errorf("scan schema migration: %w", err)
		}
		applied[v] = true
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("iterate schema migrations: %w", err)
	}
	rows.Close()

	files, err := fs.Glob(migrationFS, fmt.Sprintf("migrations/%s/*.sql", s.dialect))
	if err != nil {
		return fmt.Errorf("glob migrations: %w", err)
	}
	sort.Strings(files)
	for _, file := range files {
		base := filepath.Base(file)
		if applied[base] {
			continue
		}
		body, err := migrationFS.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration tx %s: %w", file, err)
		}
		if _, err := tx.ExecContext(ctx, string(body)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %s: %w", file, err)
		}
		q := fmt.Sprintf("INSERT INTO schema_migrations (version, applied_at) VALUES (%s, %s)", s.bind(1), s.bind(2))
		if _, err := tx.ExecContext(ctx, q, base, time.Now().UTC()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", file, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", file, err)
		}
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, key string) ([]byte, error) {
	var v string
	q := "SELECT value FROM kv WHERE key = " + s.bind(1)
	err := s.db.QueryRowContext(ctx, q, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return []byte(v), nil
}

func (s *SQLStore) Put(ctx context.Context, key string, value []byte) error {
	q := fmt.Sprintf(`INSERT INTO kv (key, value, updated_at) VALUES (%s, %s, %s)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		s.bind(1), s.bind(2), s.bind(3))
	if _, err := s.db.ExecContext(ctx, q, key, string(value), time.Now().UTC()); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM kv WHERE key = "+s.bind(1), key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}
