package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/dougsko/lorahat/pkg/radio"
)

// CSVTimeLayout is the timestamp format of CSV rows
const CSVTimeLayout = "2006-01-02T15:04:05"

var csvHeader = []string{"ts", "src_addr", "freq_mhz", "payload"}

// CSVSink appends received frames to a CSV file, one flushed row per frame
type CSVSink struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	writer *csv.Writer
}

// NewCSVSink opens path for append, writing the header only when the file
// is empty.
func NewCSVSink(path string) (*CSVSink, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create csv directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat csv %s: %w", path, err)
	}

	sink := &CSVSink{path: path, file: f, writer: csv.NewWriter(f)}
	if info.Size() == 0 {
		if err := sink.writeRow(csvHeader); err != nil {
			f.Close()
			return nil, err
		}
	}
	return sink, nil
}

func (s *CSVSink) writeRow(row []string) error {
	if err := s.writer.Write(row); err != nil {
		return fmt.Errorf("failed to write csv row: %w", err)
	}
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}

// Record appends one row
func (s *CSVSink) Record(rec FrameRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.writeRow([]string{
		rec.Timestamp.Format(CSVTimeLayout),
		strconv.Itoa(rec.Source),
		radio.FormatFrequency(rec.FrequencyMHz),
		rec.Text,
	})
}

// Path returns the file being written
func (s *CSVSink) Path() string {
	return s.path
}

// Close flushes and closes the file
func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.writer.Flush()
	return s.file.Close()
}
