package savegame

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/chazu/marionette/logic"
)

// ErrSaveNotFound indicates the requested save doesn't exist.
var ErrSaveNotFound = errors.New("save not found")

// SlotInfo describes a stored save without its payload.
type SlotInfo struct {
	ID        string
	Slot      int
	Label     string
	Chapter   uint8
	Time      uint32
	CreatedAt time.Time
	Size      int
}

// Store keeps saves in a SQLite database. Each Put adds a new row; a slot's
// current save is its most recent row.
type Store struct {
	db  *sql.DB
	mu  sync.Mutex
	now func() time.Time
}

// OpenStore opens (creating if needed) the save database at path.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening save database: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS saves (
		id TEXT PRIMARY KEY,
		slot INTEGER NOT NULL,
		label TEXT NOT NULL,
		chapter INTEGER NOT NULL,
		game_time INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		data BLOB NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}
	if _, err := db.Exec("CREATE INDEX IF NOT EXISTS saves_slot ON saves (slot, created_at)"); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating index: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Put stores data under slot and returns the new save id. data must carry a
// valid header.
func (s *Store) Put(ctx context.Context, slot int, label string, data []byte) (string, error) {
	h, err := ReadHeader(data)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO saves (id, slot, label, chapter, game_time, created_at, data) VALUES (?, ?, ?, ?, ?, ?, ?)",
		id, slot, label, int(h.Chapter), int64(h.Time), s.now().UnixNano(), data,
	)
	if err != nil {
		return "", fmt.Errorf("saving slot %d: %w", slot, err)
	}
	log.Infof("stored save %s in slot %d (%q)", id, slot, label)
	return id, nil
}

const selectSave = "SELECT id, slot, label, chapter, game_time, created_at, data FROM saves"

// Latest returns the most recent save in slot.
func (s *Store) Latest(ctx context.Context, slot int) ([]byte, *SlotInfo, error) {
	row := s.db.QueryRowContext(ctx, selectSave+" WHERE slot = ? ORDER BY created_at DESC, rowid DESC LIMIT 1", slot)
	return scanSave(row)
}

// Get returns the save with the given id.
func (s *Store) Get(ctx context.Context, id string) ([]byte, *SlotInfo, error) {
	row := s.db.QueryRowContext(ctx, selectSave+" WHERE id = ?", id)
	return scanSave(row)
}

func scanSave(row *sql.Row) ([]byte, *SlotInfo, error) {
	var (
		info    SlotInfo
		chapter int
		gt      int64
		created int64
		data    []byte
	)
	err := row.Scan(&info.ID, &info.Slot, &info.Label, &chapter, &gt, &created, &data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, ErrSaveNotFound
		}
		return nil, nil, fmt.Errorf("querying save: %w", err)
	}
	info.Chapter = uint8(chapter)
	info.Time = uint32(gt)
	info.CreatedAt = time.Unix(0, created)
	info.Size = len(data)
	return data, &info, nil
}

// List returns every stored save, newest first, without payloads.
func (s *Store) List(ctx context.Context) ([]SlotInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, slot, label, chapter, game_time, created_at, length(data) FROM saves ORDER BY created_at DESC, rowid DESC")
	if err != nil {
		return nil, fmt.Errorf("listing saves: %w", err)
	}
	defer rows.Close()

	var out []SlotInfo
	for rows.Next() {
		var (
			info    SlotInfo
			chapter int
			gt      int64
			created int64
		)
		if err := rows.Scan(&info.ID, &info.Slot, &info.Label, &chapter, &gt, &created, &info.Size); err != nil {
			return nil, fmt.Errorf("scanning save: %w", err)
		}
		info.Chapter = uint8(chapter)
		info.Time = uint32(gt)
		info.CreatedAt = time.Unix(0, created)
		out = append(out, info)
	}
	return out, rows.Err()
}

// Delete removes a save.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM saves WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting save: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrSaveNotFound
	}
	return nil
}

// SaveEngine encodes e and stores it in slot.
func (s *Store) SaveEngine(ctx context.Context, slot int, label string, e *logic.Engine) (string, error) {
	data, err := Encode(e)
	if err != nil {
		return "", err
	}
	return s.Put(ctx, slot, label, data)
}

// LoadEngine restores e from the latest save in slot. e is unchanged on
// error.
func (s *Store) LoadEngine(ctx context.Context, slot int, e *logic.Engine) (*SlotInfo, error) {
	data, info, err := s.Latest(ctx, slot)
	if err != nil {
		return nil, err
	}
	if err := Decode(data, e); err != nil {
		return nil, fmt.Errorf("loading slot %d: %w", slot, err)
	}
	return info, nil
}
