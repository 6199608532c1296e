package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-faster/errors"
)

// DefaultFilePath is the conventional log destination, relative to the workspace.
const DefaultFilePath = "logs/failed_reassignments.log"

// FileSink appends one JSON line per entry to a file opened with O_APPEND.
// Each line goes out in a single write under mu and is fsynced before Append returns.
type FileSink struct {
	mu   sync.Mutex
	f    *os.File
	path string
}

// OpenFile opens (creating if needed) the log file and its parent directory.
func OpenFile(path string) (*FileSink, error) {
	if path == "" {
		path = DefaultFilePath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "create audit log dir")
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, errors.Wrap(err, "open audit log")
	}
	return &FileSink{f: f, path: path}, nil
}

func (s *FileSink) Path() string { return s.path }

func (s *FileSink) Append(ctx context.Context, e Entry) error {
	line, err := e.MarshalLine()
	if err != nil {
		return errors.Wrap(err, "marshal audit entry")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return errors.New("audit log closed")
	}
	n, err := s.f.Write(line)
	if err != nil {
		return errors.Wrap(err, "write audit entry")
	}
	if n != len(line) {
		return fmt.Errorf("short write to audit log: %d of %d bytes", n, len(line))
	}
	if err := s.f.Sync(); err != nil {
		return errors.Wrap(err, "sync audit log")
	}
	return nil
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

// ReadFile parses every line of an audit log file. A missing file yields no entries.
func ReadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()
	var entries []Entry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return entries, fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
		entries = append(entries, e)
	}
	return entries, sc.Err()
}
