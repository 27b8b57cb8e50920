package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore 将快照写入单个 JSON 文件,适合单节点部署。
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore 创建文件后端并确保父目录存在。
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("file store requires a path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache store directory: %w", err)
		}
	}
	return &FileStore{path: path}, nil
}

// Load 读出存储文件。文件不存在视为空状态。
func (s *FileStore) Load(ctx context.Context) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode cache store file: %w", err)
	}
	return records, nil
}

// Flush 以快照整体覆盖存储文件。
func (s *FileStore) Flush(ctx context.Context, records []Record) error {
	if records == nil {
		records = []Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// 原子写: 写入临时文件后重命名
	tempPath := s.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return err
	}
	return os.Rename(tempPath, s.path)
}

func (s *FileStore) Close() error { return nil }
