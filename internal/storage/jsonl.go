package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"dexscope/internal/model"
)

// JSONLStore keeps the pool catalog in a JSONL file, one descriptor per line.
type JSONLStore struct {
	path string
	mu   sync.Mutex
}

func NewJSONLStore(path string) *JSONLStore {
	return &JSONLStore{path: path}
}

// SavePools rewrites the catalog file with the given descriptors.
func (s *JSONLStore) SavePools(_ context.Context, pools []model.PoolDescriptor) error {
	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create catalog dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := s.path + ".tmp"
	file, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open catalog file: %w", err)
	}

	writer := bufio.NewWriter(file)
	for _, pool := range pools {
		line, err := json.Marshal(pool)
		if err != nil {
			file.Close()
			return fmt.Errorf("marshal pool: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			file.Close()
			return fmt.Errorf("write pool: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			file.Close()
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		file.Close()
		return fmt.Errorf("flush catalog: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close catalog: %w", err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace catalog: %w", err)
	}
	return nil
}

// LoadPools reads the catalog file. A missing file yields an empty catalog.
func (s *JSONLStore) LoadPools(_ context.Context) ([]model.PoolDescriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open catalog file: %w", err)
	}
	defer file.Close()

	var pools []model.PoolDescriptor
	scan := bufio.NewScanner(file)
	scan.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scan.Scan() {
		line := scan.Bytes()
		if len(line) == 0 {
			continue
		}
		var pool model.PoolDescriptor
		if err := json.Unmarshal(line, &pool); err != nil {
			return nil, fmt.Errorf("parse catalog line: %w", err)
		}
		pools = append(pools, pool)
	}
	if err := scan.Err(); err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return pools, nil
}
