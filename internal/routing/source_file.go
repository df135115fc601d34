package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// FileSource reads the routing table from a JSON file:
//
//	[{"tenant_id":"tenant_abc","number_id":"num_1","phone_number":"+14255550100","active":true}, ...]
//
// The file's mtime (ns) doubles as the version marker, so edits are observed
// on the next lookup without a process restart.
type FileSource struct {
	Path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

func (s *FileSource) Version(_ context.Context) (string, error) {
	info, err := os.Stat(s.Path)
	if err != nil {
		return "", fmt.Errorf("routing file stat: %w", err)
	}
	return strconv.FormatInt(info.ModTime().UnixNano(), 10), nil
}

func (s *FileSource) Load(_ context.Context) ([]TenantRouting, error) {
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("routing file read: %w", err)
	}
	var rows []TenantRouting
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("routing file parse: %w", err)
	}
	return rows, nil
}
