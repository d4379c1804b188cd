package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/593496637/onchain-data-system/internal/model"
)

// JsonlSink appends records to JSONL files. Used for the raw-log audit
// trail and for decode failures.
type JsonlSink struct {
	path string
	mu   sync.Mutex
}

func NewJsonlSink(path string) *JsonlSink {
	return &JsonlSink{path: path}
}

// PutLogBatch appends a batch of log records as JSON lines.
func (s *JsonlSink) PutLogBatch(logs []model.LogRecord) error {
	if len(logs) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(logs))
	for _, record := range logs {
		values = append(values, record)
	}
	return s.appendLines(values)
}

// PutDecodeFailures appends decode-failure records as JSON lines.
func (s *JsonlSink) PutDecodeFailures(failures []model.DecodeFailure) error {
	if len(failures) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(failures))
	for _, failure := range failures {
		values = append(values, failure)
	}
	return s.appendLines(values)
}

func (s *JsonlSink) appendLines(values []interface{}) error {
	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, value := range values {
		line, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	return nil
}
