package transfer

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AuditLog appends per-file failures to errors.log so a long run can
// be reconciled afterwards without scraping console output.
type AuditLog struct {
	mu    sync.Mutex
	path  string
	file  *os.File
	count int
}

// OpenAuditLog opens path for appending, creating parents as needed.
// An empty path yields a counting-only log.
func OpenAuditLog(path string) (*AuditLog, error) {
	log := &AuditLog{path: path}

	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("could not create log directory: %w", err)
		}
		file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("could not open log file: %w", err)
		}
		log.file = file
	}

	return log, nil
}

// Record logs a failure for one file.
func (l *AuditLog) Record(filePath string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.count++
	if l.file != nil {
		line := fmt.Sprintf("%s | %s | %v\n",
			time.Now().Format(time.RFC3339), filePath, err)
		l.file.WriteString(line)
	}
}

// Count returns the number of recorded failures.
func (l *AuditLog) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// Summary describes the log state in one line.
func (l *AuditLog) Summary() string {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.count == 0 {
		return "no errors"
	}
	return fmt.Sprintf("%d errors logged to %s", l.count, l.path)
}

// Close closes the underlying file.
func (l *AuditLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		return l.file.Close()
	}
	return nil
}
