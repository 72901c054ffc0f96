package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dougsko/lorahat/pkg/logging"
	_ "github.com/mattn/go-sqlite3"
)

// FrameStore keeps sent and received frames in SQLite
type FrameStore struct {
	db        *sql.DB
	dbPath    string
	maxFrames int
}

// NewFrameStore opens or creates the database at dbPath. maxFrames <= 0
// keeps everything.
func NewFrameStore(dbPath string, maxFrames int) (*FrameStore, error) {
	store := &FrameStore{
		dbPath:    dbPath,
		maxFrames: maxFrames,
	}

	if err := store.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize frame store: %w", err)
	}

	return store, nil
}

func (fs *FrameStore) initialize() error {
	if fs.dbPath == "" {
		fs.dbPath = "./lorahat.db"
	}

	if err := os.MkdirAll(filepath.Dir(fs.dbPath), 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	connectionString := fs.dbPath + "?_busy_timeout=10000&_journal_mode=WAL"

	db, err := sql.Open("sqlite3", connectionString)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	fs.db = db

	if err := fs.createTables(); err != nil {
		db.Close()
		return fmt.Errorf("failed to create tables: %w", err)
	}

	if err := fs.createIndexes(); err != nil {
		db.Close()
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	logging.Infof("storage", "Frame store initialized: %s (max %d frames)", fs.dbPath, fs.maxFrames)
	return nil
}

func (fs *FrameStore) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS frames (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		direction TEXT NOT NULL CHECK (direction IN ('RX', 'TX')),
		source INTEGER NOT NULL,
		destination INTEGER NOT NULL DEFAULT 0,
		channel INTEGER NOT NULL,
		frequency_mhz INTEGER NOT NULL,
		payload BLOB NOT NULL,
		payload_text TEXT NOT NULL,
		rssi INTEGER,
		session TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS frame_stats (
		id INTEGER PRIMARY KEY,
		total_frames INTEGER NOT NULL DEFAULT 0,
		total_rx INTEGER NOT NULL DEFAULT 0,
		total_tx INTEGER NOT NULL DEFAULT 0,
		total_bytes INTEGER NOT NULL DEFAULT 0,
		last_cleanup DATETIME,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	INSERT OR IGNORE INTO frame_stats (id, total_frames, total_rx, total_tx, total_bytes)
	VALUES (1, 0, 0, 0, 0);
	`

	_, err := fs.db.Exec(schema)
	return err
}

func (fs *FrameStore) createIndexes() error {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_frames_timestamp ON frames(timestamp DESC)",
		"CREATE INDEX IF NOT EXISTS idx_frames_source ON frames(source)",
		"CREATE INDEX IF NOT EXISTS idx_frames_direction ON frames(direction)",
		"CREATE INDEX IF NOT EXISTS idx_frames_session ON frames(session)",
	}

	for _, indexSQL := range indexes {
		if _, err := fs.db.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

// Record stores a frame, updates the running totals and trims old rows
func (fs *FrameStore) Record(rec FrameRecord) error {
	if rec.Direction != DirectionRX && rec.Direction != DirectionTX {
		return fmt.Errorf("invalid direction %q", rec.Direction)
	}

	tx, err := fs.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var rssi sql.NullInt64
	if rec.RSSI != nil {
		rssi = sql.NullInt64{Int64: int64(*rec.RSSI), Valid: true}
	}

	payload := rec.Payload
	if payload == nil {
		payload = []byte{}
	}

	// stored as UTC so text comparison orders timestamps
	query := `
		INSERT INTO frames (
			timestamp, direction, source, destination, channel,
			frequency_mhz, payload, payload_text, rssi, session
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := tx.Exec(query,
		rec.Timestamp.UTC(), rec.Direction, rec.Source, rec.Destination, rec.Channel,
		rec.FrequencyMHz, payload, rec.Text, rssi, rec.Session,
	); err != nil {
		return fmt.Errorf("failed to insert frame: %w", err)
	}

	if err := fs.updateStats(tx, rec.Direction, len(payload)); err != nil {
		return fmt.Errorf("failed to update stats: %w", err)
	}

	if err := fs.cleanupOldFrames(tx); err != nil {
		logging.Warnf("storage", "failed to cleanup old frames: %v", err)
	}

	return tx.Commit()
}

func (fs *FrameStore) updateStats(tx *sql.Tx, direction string, size int) error {
	query := `
		UPDATE frame_stats SET
			total_frames = total_frames + 1,
			total_rx = CASE WHEN ? = 'RX' THEN total_rx + 1 ELSE total_rx END,
			total_tx = CASE WHEN ? = 'TX' THEN total_tx + 1 ELSE total_tx END,
			total_bytes = total_bytes + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = 1
	`
	_, err := tx.Exec(query, direction, direction, size)
	return err
}

// CleanupOldFrames trims the table to the configured maximum
func (fs *FrameStore) CleanupOldFrames() error {
	tx, err := fs.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fs.cleanupOldFrames(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (fs *FrameStore) cleanupOldFrames(tx *sql.Tx) error {
	if fs.maxFrames <= 0 {
		return nil
	}

	var count int
	if err := tx.QueryRow("SELECT COUNT(*) FROM frames").Scan(&count); err != nil {
		return err
	}
	if count <= fs.maxFrames {
		return nil
	}

	query := `
		DELETE FROM frames
		WHERE id IN (
			SELECT id FROM frames
			ORDER BY id ASC
			LIMIT ?
		)
	`
	if _, err := tx.Exec(query, count-fs.maxFrames); err != nil {
		return err
	}

	_, err := tx.Exec("UPDATE frame_stats SET last_cleanup = CURRENT_TIMESTAMP WHERE id = 1")
	return err
}

// Path returns the database file
func (fs *FrameStore) Path() string {
	return fs.dbPath
}

// Close closes the database connection
func (fs *FrameStore) Close() error {
	if fs.db != nil {
		return fs.db.Close()
	}
	return nil
}
