// Package audit keeps a local sqlite log of sandbox launches: what was
// run, where, and under which policy.
package audit

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Event is one recorded launch.
type Event struct {
	ID         string
	Time       time.Time
	Command    []string
	Cwd        string
	PolicyMode string
	Network    bool
	ParamCount int
}

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the audit database at dsn.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS launches (
		id TEXT PRIMARY KEY,
		at DATETIME NOT NULL,
		command TEXT NOT NULL,
		cwd TEXT NOT NULL,
		policy_mode TEXT NOT NULL,
		network INTEGER NOT NULL,
		param_count INTEGER NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("create launches table: %w", err)
	}
	return nil
}

// RecordLaunch inserts one event, filling in the id and timestamp when
// unset, and returns the id.
func (s *Store) RecordLaunch(ev Event) (string, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	command, err := json.Marshal(ev.Command)
	if err != nil {
		return "", fmt.Errorf("encode command: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO launches (id, at, command, cwd, policy_mode, network, param_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.Time.Format(time.RFC3339Nano), string(command),
		ev.Cwd, ev.PolicyMode, boolToInt(ev.Network), ev.ParamCount,
	)
	if err != nil {
		return "", fmt.Errorf("insert launch: %w", err)
	}
	return ev.ID, nil
}

// Recent returns up to n launches, newest first.
func (s *Store) Recent(n int) ([]Event, error) {
	rows, err := s.db.Query(
		`SELECT id, at, command, cwd, policy_mode, network, param_count
		 FROM launches ORDER BY at DESC, id LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query launches: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		var at, command string
		var network int
		if err := rows.Scan(&ev.ID, &at, &command, &ev.Cwd, &ev.PolicyMode, &network, &ev.ParamCount); err != nil {
			return nil, fmt.Errorf("scan launch: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, at); err == nil {
			ev.Time = t
		}
		if err := json.Unmarshal([]byte(command), &ev.Command); err != nil {
			return nil, fmt.Errorf("decode command: %w", err)
		}
		ev.Network = network != 0
		events = append(events, ev)
	}
	return events, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
