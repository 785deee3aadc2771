package server

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/nomoresecretz/flymap/common/flyStruct"
)

var recorderSchema = []string{
	`CREATE TABLE IF NOT EXISTS positions (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		observed_at TEXT NOT NULL,
		kind        TEXT NOT NULL,
		entity      TEXT,
		x           REAL,
		y           REAL,
		z           REAL,
		rotation    REAL,
		is_spawn    INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS chats (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		observed_at TEXT NOT NULL,
		direction   TEXT NOT NULL,
		message     TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS diagnostics (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		observed_at TEXT NOT NULL,
		direction   TEXT NOT NULL,
		tag         TEXT NOT NULL,
		name        TEXT,
		kind        TEXT NOT NULL,
		pos         INTEGER,
		want        INTEGER,
		have        INTEGER,
		dump        TEXT
	)`,
}

// recorder writes every event and diagnostic to a SQLite file. It implements both
// flyStruct.Emitter and flyStruct.DiagnosticSink.
type recorder struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
	log  zerolog.Logger
}

func openRecorder(path string) (*recorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create recording directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open recording %s: %w", path, err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	r := &recorder{
		db:   db,
		path: path,
		log:  ComponentLogger("recorder"),
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		r.log.Warn().Err(err).Msg("failed to enable WAL mode")
	}

	for _, stmt := range recorderSchema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("recording schema: %w", err)
		}
	}

	r.log.Info().Str("path", path).Msg("recording events")

	return r, nil
}

func (r *recorder) Close() error {
	return r.db.Close()
}

func (r *recorder) exec(query string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.db.Exec(query, args...); err != nil {
		r.log.Error().Err(err).Msg("recording failed")
	}
}

func (r *recorder) position(e flyStruct.PositionEvent) {
	r.exec(`INSERT INTO positions (observed_at, kind, entity, x, y, z, rotation, is_spawn) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		stamp(e.ObservedAt), e.Kind.String(), e.ID, e.X, e.Y, e.Z, e.Rotation, e.IsSpawn)
}

func (r *recorder) OnUserPosition(e flyStruct.PositionEvent)    { r.position(e) }
func (r *recorder) OnMonsterPosition(e flyStruct.PositionEvent) { r.position(e) }
func (r *recorder) OnPlayerPosition(e flyStruct.PositionEvent)  { r.position(e) }

func (r *recorder) OnChatMessage(e flyStruct.ChatEvent) {
	r.exec(`INSERT INTO chats (observed_at, direction, message) VALUES (?, ?, ?)`,
		stamp(e.ObservedAt), e.Direction.String(), e.Message)
}

func (r *recorder) Record(p *flyStruct.Packet, d flyStruct.Diagnostic) {
	r.exec(`INSERT INTO diagnostics (observed_at, direction, tag, name, kind, pos, want, have, dump) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		stamp(p.ObservedAt), p.Direction.String(), d.Tag.String(), p.Name, d.Kind.String(), d.Offset, d.Want, d.Have, d.Dump)
}

// Counts returns the row count of each recording table.
func (r *recorder) Counts() (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]int, 3)
	for _, t := range []string{"positions", "chats", "diagnostics"} {
		var n int
		if err := r.db.QueryRow("SELECT COUNT(*) FROM " + t).Scan(&n); err != nil {
			return nil, err
		}
		out[t] = n
	}

	return out, nil
}

func stamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
