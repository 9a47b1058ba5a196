// SPDX-License-Identifier: MPL-2.0

package journal

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// jsonlStore appends entries as one JSON object per line. Reads re-scan the
// file, which is fine for the short histories a local tool accumulates.
type jsonlStore struct {
	mu   sync.Mutex
	path string
	file *os.File
	next int64
}

func openJSONL(path string) (*jsonlStore, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal file: %w", err)
	}

	s := &jsonlStore{path: path, file: f, next: 1}

	// Continue the ID sequence from existing contents.
	existing, err := s.readAll()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	for _, e := range existing {
		if e.ID >= s.next {
			s.next = e.ID + 1
		}
	}
	return s, nil
}

func (s *jsonlStore) append(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e.ID = s.next
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode journal entry: %w", err)
	}
	data = append(data, '\n')
	if _, err := s.file.Write(data); err != nil {
		return fmt.Errorf("failed to append journal entry: %w", err)
	}
	s.next++
	return nil
}

func (s *jsonlStore) recent(_ context.Context, limit int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readAll()
	if err != nil {
		return nil, err
	}

	// Newest first.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *jsonlStore) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

// readAll parses every line of the journal file. Lines that fail to parse
// are skipped rather than poisoning the whole history.
func (s *jsonlStore) readAll() ([]Entry, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read journal file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan journal file: %w", err)
	}
	return entries, nil
}
