package sink

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"ca-monitor/agent/internal/mentions"
	"ca-monitor/shared/logger"

	"go.uber.org/zap"
)

// Appender is the append-only record store boundary. One logical stream per
// (token, session start); the header is written on first append.
type Appender interface {
	Append(token string, sessionStart time.Time, batch []mentions.Mention) error
}

var header = []string{"id", "username", "text", "date", "likes", "replies", "retweets", "url", "verified"}

// CSVSink appends mention batches to per-session CSV files in a directory.
type CSVSink struct {
	dir string
	log *logger.Logger
	mu  sync.Mutex
}

func NewCSVSink(dir string, appLogger *logger.Logger) *CSVSink {
	return &CSVSink{dir: dir, log: appLogger}
}

func (s *CSVSink) filename(token string, sessionStart time.Time) string {
	return filepath.Join(s.dir, fmt.Sprintf("monitor_%s_%d.csv", token, sessionStart.Unix()))
}

// Append writes one row per mention, creating the file with a header row on
// the first batch of a session.
func (s *CSVSink) Append(token string, sessionStart time.Time, batch []mentions.Mention) error {
	if len(batch) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.filename(token, sessionStart)
	_, statErr := os.Stat(path)
	writeHeader := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open record sink file %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(header); err != nil {
			return fmt.Errorf("failed to write record sink header: %w", err)
		}
	}

	for _, m := range batch {
		row := []string{
			m.ID,
			m.Author,
			m.Text,
			m.PostedAt.Format(time.RFC3339),
			strconv.Itoa(m.Likes),
			strconv.Itoa(m.Replies),
			strconv.Itoa(m.Reposts),
			m.Permalink,
			strconv.FormatBool(m.Verified),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write record sink row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush record sink: %w", err)
	}

	s.log.Debug("Saved mention batch", zap.String("token", token), zap.Int("rows", len(batch)), zap.String("file", path))
	return nil
}
