package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// FrameQuery represents query parameters for retrieving frames
type FrameQuery struct {
	Limit     int
	Offset    int
	Since     *time.Time
	Until     *time.Time
	Source    *int
	Direction string // "RX", "TX", or "" for both
	Session   string
}

// SourceSummary aggregates the frames heard from one address
type SourceSummary struct {
	Source   int       `json:"source"`
	Frames   int       `json:"frames"`
	LastSeen time.Time `json:"last_seen"`
	LastRSSI *int      `json:"last_rssi,omitempty"`
}

// FrameStats represents database statistics
type FrameStats struct {
	TotalFrames int        `json:"total_frames"`
	TotalRX     int        `json:"total_rx"`
	TotalTX     int        `json:"total_tx"`
	TotalBytes  int64      `json:"total_bytes"`
	LastCleanup *time.Time `json:"last_cleanup,omitempty"`
}

const frameColumns = `id, timestamp, direction, source, destination, channel,
	frequency_mhz, payload, payload_text, rssi, session`

// GetFrames retrieves frames newest first
func (fs *FrameStore) GetFrames(query FrameQuery) ([]FrameRecord, error) {
	var args []interface{}
	var conditions []string

	if query.Since != nil {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, query.Since.UTC())
	}
	if query.Until != nil {
		conditions = append(conditions, "timestamp <= ?")
		args = append(args, query.Until.UTC())
	}
	if query.Source != nil {
		conditions = append(conditions, "source = ?")
		args = append(args, *query.Source)
	}
	if query.Direction != "" {
		conditions = append(conditions, "direction = ?")
		args = append(args, query.Direction)
	}
	if query.Session != "" {
		conditions = append(conditions, "session = ?")
		args = append(args, query.Session)
	}

	sqlQuery := "SELECT " + frameColumns + " FROM frames"
	if len(conditions) > 0 {
		sqlQuery += " WHERE " + strings.Join(conditions, " AND ")
	}
	sqlQuery += " ORDER BY id DESC"

	switch {
	case query.Limit > 0:
		sqlQuery += " LIMIT ?"
		args = append(args, query.Limit)
	case query.Offset > 0:
		// SQLite only accepts OFFSET after a LIMIT
		sqlQuery += " LIMIT -1"
	}
	if query.Offset > 0 {
		sqlQuery += " OFFSET ?"
		args = append(args, query.Offset)
	}

	rows, err := fs.db.Query(sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query frames: %w", err)
	}
	defer rows.Close()

	return scanFrames(rows)
}

func scanFrames(rows *sql.Rows) ([]FrameRecord, error) {
	var frames []FrameRecord
	for rows.Next() {
		var rec FrameRecord
		var rssi sql.NullInt64
		if err := rows.Scan(
			&rec.ID,
			&rec.Timestamp,
			&rec.Direction,
			&rec.Source,
			&rec.Destination,
			&rec.Channel,
			&rec.FrequencyMHz,
			&rec.Payload,
			&rec.Text,
			&rssi,
			&rec.Session,
		); err != nil {
			return nil, fmt.Errorf("failed to scan frame: %w", err)
		}
		if rssi.Valid {
			v := int(rssi.Int64)
			rec.RSSI = &v
		}
		frames = append(frames, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating frames: %w", err)
	}
	return frames, nil
}

// GetRecentFrames returns the newest frames
func (fs *FrameStore) GetRecentFrames(limit int) ([]FrameRecord, error) {
	return fs.GetFrames(FrameQuery{Limit: limit})
}

// SearchFrames finds frames whose text contains term
func (fs *FrameStore) SearchFrames(term string, limit int) ([]FrameRecord, error) {
	sqlQuery := "SELECT " + frameColumns + " FROM frames WHERE payload_text LIKE ? ORDER BY id DESC"
	args := []interface{}{"%" + term + "%"}
	if limit > 0 {
		sqlQuery += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := fs.db.Query(sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search frames: %w", err)
	}
	defer rows.Close()

	return scanFrames(rows)
}

// GetSources summarizes received frames per source address. Bare columns
// next to MAX(id) come from the newest row of each group in SQLite.
func (fs *FrameStore) GetSources(limit int) ([]SourceSummary, error) {
	sqlQuery := `
		SELECT source, COUNT(*), MAX(id), timestamp, rssi
		FROM frames
		WHERE direction = 'RX'
		GROUP BY source
		ORDER BY MAX(id) DESC
	`
	var args []interface{}
	if limit > 0 {
		sqlQuery += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := fs.db.Query(sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}
	defer rows.Close()

	var summaries []SourceSummary
	for rows.Next() {
		var summary SourceSummary
		var lastID int64
		var rssi sql.NullInt64
		if err := rows.Scan(&summary.Source, &summary.Frames, &lastID, &summary.LastSeen, &rssi); err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		if rssi.Valid {
			v := int(rssi.Int64)
			summary.LastRSSI = &v
		}
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}

// GetFrameStats returns the running totals
func (fs *FrameStore) GetFrameStats() (*FrameStats, error) {
	var stats FrameStats
	var lastCleanup sql.NullTime

	err := fs.db.QueryRow(`
		SELECT total_frames, total_rx, total_tx, total_bytes, last_cleanup
		FROM frame_stats WHERE id = 1
	`).Scan(&stats.TotalFrames, &stats.TotalRX, &stats.TotalTX, &stats.TotalBytes, &lastCleanup)
	if err != nil {
		return nil, fmt.Errorf("failed to get frame stats: %w", err)
	}
	if lastCleanup.Valid {
		stats.LastCleanup = &lastCleanup.Time
	}
	return &stats, nil
}

// GetFrameCount returns the number of stored frames
func (fs *FrameStore) GetFrameCount() (int, error) {
	var count int
	err := fs.db.QueryRow("SELECT COUNT(*) FROM frames").Scan(&count)
	return count, err
}
