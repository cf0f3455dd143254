// Package session keeps per-conversation history and routing context and
// stores them as JSONL files.
//
// File format:
//
//	Line 1:  {"_type":"metadata","key":"…","created_at":"…","updated_at":"…",
//	           "last_tool":"…","last_tool_result":"…","first_turn":true}
//	Line 2+: {"role":"user","content":"…"} one message per line
package session

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/crystaldolphin/murmur/internal/schema"
)

// Manager hands out sessions by key and persists them. A Manager with an
// empty directory keeps sessions in memory only.
type Manager struct {
	dir   string
	cache sync.Map // key → *Session
}

// NewManager creates a Manager storing files under dir, creating it if needed.
func NewManager(dir string) (*Manager, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sessions dir: %w", err)
		}
	}
	return &Manager{dir: dir}, nil
}

// GetOrCreate returns the cached session for key, loading it from disk if
// needed, or creating an empty one.
func (m *Manager) GetOrCreate(key string) *Session {
	if v, ok := m.cache.Load(key); ok {
		return v.(*Session)
	}

	s, err := m.load(key)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("session: load failed, starting fresh", "key", key, "err", err)
		}
		s = New(key)
	}

	actual, _ := m.cache.LoadOrStore(key, s)
	return actual.(*Session)
}

type metadataLine struct {
	Type           string `json:"_type"`
	Key            string `json:"key"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
	LastTool       string `json:"last_tool,omitempty"`
	LastToolResult string `json:"last_tool_result,omitempty"`
	FirstTurn      bool   `json:"first_turn"`
}

// Save writes the session to disk. It is a no-op for in-memory managers.
func (m *Manager) Save(s *Session) error {
	if m.dir == "" {
		return nil
	}

	s.mu.Lock()
	msgs := s.history.Clone()
	meta := metadataLine{
		Type:           "metadata",
		Key:            s.Key,
		CreatedAt:      s.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      s.UpdatedAt.UTC().Format(time.RFC3339),
		LastTool:       s.ctx.LastToolName,
		LastToolResult: s.ctx.LastToolResult,
		FirstTurn:      s.ctx.IsFirstTurn,
	}
	s.mu.Unlock()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(meta); err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	for _, msg := range msgs.Messages {
		if err := enc.Encode(msg); err != nil {
			return fmt.Errorf("encode message: %w", err)
		}
	}

	path := m.sessionPath(s.Key)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write session %s: %w", path, err)
	}
	return nil
}

// Reset clears the session for key and removes its file.
func (m *Manager) Reset(key string) {
	if v, ok := m.cache.Load(key); ok {
		v.(*Session).Clear()
	}
	if m.dir != "" {
		if err := os.Remove(m.sessionPath(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("session: remove failed", "key", key, "err", err)
		}
	}
}

// Info summarises a stored session.
type Info struct {
	Key       string
	UpdatedAt string
	Path      string
}

// ListSessions returns the stored sessions, newest first.
func (m *Manager) ListSessions() []Info {
	if m.dir == "" {
		return nil
	}
	paths, _ := filepath.Glob(filepath.Join(m.dir, "*.jsonl"))

	var out []Info
	for _, path := range paths {
		meta, _, err := readFile(path)
		if err != nil {
			continue
		}
		out = append(out, Info{Key: meta.Key, UpdatedAt: meta.UpdatedAt, Path: path})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt > out[j].UpdatedAt })
	return out
}

func (m *Manager) load(key string) (*Session, error) {
	if m.dir == "" {
		return nil, os.ErrNotExist
	}
	meta, msgs, err := readFile(m.sessionPath(key))
	if err != nil {
		return nil, err
	}

	created, _ := time.Parse(time.RFC3339, meta.CreatedAt)
	updated, _ := time.Parse(time.RFC3339, meta.UpdatedAt)

	s := New(key)
	s.restore(msgs, Context{
		LastToolName:   meta.LastTool,
		LastToolResult: meta.LastToolResult,
		IsFirstTurn:    meta.FirstTurn,
	}, created, updated)
	return s, nil
}

func readFile(path string) (metadataLine, schema.Messages, error) {
	var meta metadataLine
	f, err := os.Open(path)
	if err != nil {
		return meta, schema.Messages{}, err
	}
	defer f.Close()

	msgs := schema.NewMessages()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	first := true
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if first {
			first = false
			if err := json.Unmarshal(line, &meta); err != nil || meta.Type != "metadata" {
				return meta, msgs, fmt.Errorf("session %s: missing metadata line", path)
			}
			continue
		}
		var msg schema.Message
		if err := json.Unmarshal(line, &msg); err != nil {
			slog.Warn("session: skipping bad line", "path", path, "err", err)
			continue
		}
		msgs.Messages = append(msgs.Messages, msg)
	}
	if err := scanner.Err(); err != nil {
		return meta, msgs, err
	}
	if first {
		return meta, msgs, fmt.Errorf("session %s: empty file", path)
	}
	return meta, msgs, nil
}

// sessionPath maps a key like "cli:direct" to "cli_direct.jsonl".
func (m *Manager) sessionPath(key string) string {
	safe := strings.NewReplacer(":", "_", "/", "_", "\\", "_").Replace(key)
	return filepath.Join(m.dir, safe+".jsonl")
}
