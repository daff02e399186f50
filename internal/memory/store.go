// Package memory hosts the Memory service: an append-only chat log
// backed by sqlite, with a short in-memory ring buffer of recent
// entries kept alongside it for fast chat-model context assembly.
// Grounded on service-memory/src/memory_db.rs's MemoryDb.
package memory

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hsiatein/helenium/internal/errors"
	"github.com/hsiatein/helenium/internal/proto"
)

const initSQL = `
CREATE TABLE IF NOT EXISTS memories (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	role TEXT NOT NULL,
	time DATETIME NOT NULL,
	content TEXT NOT NULL,
	embedding BLOB
);
CREATE INDEX IF NOT EXISTS idx_memories_time ON memories(time);
CREATE INDEX IF NOT EXISTS idx_memories_role ON memories(role);
`

// store wraps the sqlite-backed memories table. Grounded on MemoryDb's
// save_entry/save/delete_entry/get_display_messages.
type store struct {
	db *sql.DB
}

func openStore(path string) (*store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrIO, err)
	}
	if _, err := db.Exec(initSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %s", errors.ErrIO, err)
	}
	return &store{db: db}, nil
}

func (s *store) close() error {
	return s.db.Close()
}

// save inserts a new entry and returns it with its assigned ID and
// timestamp. Grounded on MemoryDb::save_entry.
func (s *store) save(role string, content json.RawMessage) (proto.MemoryEntry, error) {
	now := time.Now()
	res, err := s.db.Exec(`INSERT INTO memories (role, time, content) VALUES (?, ?, ?)`, role, now, string(content))
	if err != nil {
		return proto.MemoryEntry{}, fmt.Errorf("%w: %s", errors.ErrIO, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return proto.MemoryEntry{}, fmt.Errorf("%w: %s", errors.ErrIO, err)
	}
	return proto.MemoryEntry{ID: id, Role: role, Time: now, Content: content}, nil
}

// getDisplayMessages returns up to n entries with id < idUpperBound,
// in chronological order. idUpperBound <= 0 means unbounded. Grounded
// on MemoryDb::get_display_messages, which queries DESC then reverses
// for display order.
func (s *store) getDisplayMessages(idUpperBound int64, n int) ([]proto.MemoryEntry, error) {
	var rows *sql.Rows
	var err error
	if idUpperBound > 0 {
		rows, err = s.db.Query(`SELECT id, role, time, content FROM memories WHERE id < ? ORDER BY id DESC LIMIT ?`, idUpperBound, n)
	} else {
		rows, err = s.db.Query(`SELECT id, role, time, content FROM memories ORDER BY id DESC LIMIT ?`, n)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrIO, err)
	}
	defer rows.Close()

	var entries []proto.MemoryEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", errors.ErrIO, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrIO, err)
	}

	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// loadRecent loads the n most recent entries in chronological order,
// used to pre-load the short-term ring buffer on startup. Grounded on
// MemoryService::new's short_term preload.
func (s *store) loadRecent(n int) ([]proto.MemoryEntry, error) {
	return s.getDisplayMessages(0, n)
}

func (s *store) deleteEntry(id int64) error {
	_, err := s.db.Exec(`DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: %s", errors.ErrIO, err)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanEntry(row scannable) (proto.MemoryEntry, error) {
	var e proto.MemoryEntry
	var content string
	if err := row.Scan(&e.ID, &e.Role, &e.Time, &content); err != nil {
		return proto.MemoryEntry{}, err
	}
	e.Content = json.RawMessage(content)
	return e, nil
}
