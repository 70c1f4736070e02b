package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	_ "github.com/mattn/go-sqlite3"
)

// Store guarda configuración, estudiantes, libros e historial de anuncios en
// un único archivo sqlite.
type Store struct {
	db *sql.DB
}

func NewStore(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("sqlite: empty db path")
	}

	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: creating dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}

	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	log.Debug("sqlite: base lista", "path", dbPath)
	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	steps := []struct {
		name   string
		schema string
	}{
		{"settings", `
CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT,
	updated_at TIMESTAMP NOT NULL
);`},
		{"students", `
CREATE TABLE IF NOT EXISTS students (
	number TEXT PRIMARY KEY,
	full_name TEXT NOT NULL,
	grade TEXT NOT NULL,
	section TEXT,
	email TEXT,
	updated_at TIMESTAMP NOT NULL
);`},
		{"books", `
CREATE TABLE IF NOT EXISTS books (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	code TEXT UNIQUE,
	title TEXT NOT NULL,
	grade TEXT NOT NULL,
	subject TEXT NOT NULL,
	publisher TEXT,
	isbn TEXT,
	price TEXT NOT NULL,
	quantity INTEGER NOT NULL DEFAULT 0 CHECK (quantity >= 0),
	updated_at TIMESTAMP NOT NULL
);`},
		{"announcements", `
CREATE TABLE IF NOT EXISTS announcements (
	id TEXT PRIMARY KEY,
	type TEXT,
	text TEXT NOT NULL,
	status TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_announcements_created_at ON announcements(created_at DESC);`},
	}

	for _, step := range steps {
		if _, err := db.Exec(step.schema); err != nil {
			return fmt.Errorf("sqlite: migrate %s: %w", step.name, err)
		}
	}

	return nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) setSetting(ctx context.Context, key, value string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("sqlite: empty setting key")
	}

	const stmt = `
INSERT INTO settings (key, value, updated_at)
VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET
	value=excluded.value,
	updated_at=excluded.updated_at;
`

	if _, err := s.db.ExecContext(ctx, stmt, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("sqlite: set setting: %w", err)
	}
	return nil
}

// getSetting devuelve "" si la clave no existe.
func (s *Store) getSetting(ctx context.Context, key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("sqlite: empty setting key")
	}

	const query = `SELECT value FROM settings WHERE key = ? LIMIT 1;`

	var value sql.NullString
	if err := s.db.QueryRowContext(ctx, query, key).Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("sqlite: get setting: %w", err)
	}
	return value.String, nil
}

// existingKeys consulta en bloques para no pasar el límite de variables de sqlite.
func (s *Store) existingKeys(ctx context.Context, table, column string, keys []string) (map[string]bool, error) {
	const chunk = 500
	out := make(map[string]bool, len(keys))
	for start := 0; start < len(keys); start += chunk {
		end := min(start+chunk, len(keys))
		part := keys[start:end]

		args := make([]any, len(part))
		for i, k := range part {
			args[i] = k
		}
		query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s IN (?%s);`,
			column, table, column, strings.Repeat(",?", len(part)-1))

		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("sqlite: existing %s: %w", table, err)
		}
		for rows.Next() {
			var key string
			if err := rows.Scan(&key); err != nil {
				rows.Close()
				return nil, fmt.Errorf("sqlite: scan %s key: %w", table, err)
			}
			out[key] = true
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("sqlite: existing %s rows: %w", table, err)
		}
	}
	return out, nil
}

func nullString(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}
