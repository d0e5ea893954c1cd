// Package convlog implements the append-only, per-session conversation log
// (spec component C2).
package convlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ainoob2025/AICore/internal/idsafe"
	"github.com/ainoob2025/AICore/internal/model"
)

// Log is an append-only JSONL conversation log rooted at a directory, one
// file per sanitized session id.
type Log struct {
	RootDir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a Log rooted at dir, creating the directory if needed.
func New(dir string) (*Log, error) {
	if dir == "" {
		dir = "data/memory"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("convlog: create root dir: %w", err)
	}
	return &Log{RootDir: dir, locks: make(map[string]*sync.Mutex)}, nil
}

func (l *Log) pathFor(sessionID string) string {
	safe := idsafe.Sanitize(sessionID, "default")
	return filepath.Join(l.RootDir, safe+".jsonl")
}

func (l *Log) lockFor(sessionID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[sessionID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[sessionID] = m
	}
	return m
}

// Append serializes msg and appends it as one JSONL line under the
// per-session lock.
func (l *Log) Append(sessionID string, msg model.Message) error {
	if msg.Timestamp == 0 {
		msg.Timestamp = float64(time.Now().UnixMilli()) / 1000.0
	}
	lock := l.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()

	f, err := os.OpenFile(l.pathFor(sessionID), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("convlog: open: %w", err)
	}
	defer f.Close()

	line, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("convlog: marshal: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("convlog: append: %w", err)
	}
	return nil
}

// GetConversation returns all turns for sessionID, or the last `limit`
// turns when limit > 0. Lines that fail to parse as a JSON Message are
// coerced to {role:user, content:line} for backward compatibility with
// legacy plain-text logs.
func (l *Log) GetConversation(sessionID string, limit int) ([]model.Message, error) {
	lock := l.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()

	f, err := os.Open(l.pathFor(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("convlog: open: %w", err)
	}
	defer f.Close()

	var out []model.Message
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		var msg model.Message
		if err := json.Unmarshal([]byte(line), &msg); err != nil || msg.Role == "" {
			msg = model.Message{Role: model.RoleUser, Content: line}
		}
		out = append(out, msg)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("convlog: scan: %w", err)
	}

	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// Clear removes the session's log file. It never returns an error; a
// missing file is not a failure.
func (l *Log) Clear(sessionID string) {
	lock := l.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()
	_ = os.Remove(l.pathFor(sessionID))
}
