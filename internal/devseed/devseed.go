// Package devseed loads fixture files used to pre-populate the in-memory
// File API for local development and tests.
package devseed

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileSeedEntry describes one file placed in the mock store at startup.
type FileSeedEntry struct {
	SiteID       int        `json:"site_id" yaml:"site_id"`
	FolderID     int        `json:"folder_id" yaml:"folder_id"`
	FolderPath   string     `json:"folder_path" yaml:"folder_path"`
	Name         string     `json:"name" yaml:"name"`
	Base64       string     `json:"base64" yaml:"base64"`
	Text         string     `json:"text" yaml:"text"`
	Description  string     `json:"description" yaml:"description"`
	LastModified *time.Time `json:"last_modified" yaml:"last_modified"`
}

// LoadFileSeed reads seed entries from a JSON or YAML file, chosen by
// extension (.yaml/.yml select YAML, anything else JSON).
func LoadFileSeed(path string) ([]FileSeedEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("devseed: read %s: %w", path, err)
	}
	return ParseFileSeed(data, filepath.Ext(path))
}

// ParseFileSeed decodes seed entries; ext is a file extension such as ".yaml".
func ParseFileSeed(data []byte, ext string) ([]FileSeedEntry, error) {
	var entries []FileSeedEntry
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("devseed: decode yaml: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("devseed: decode json: %w", err)
		}
	}
	for i, e := range entries {
		if strings.TrimSpace(e.Name) == "" {
			return nil, fmt.Errorf("devseed: entry %d: name is required", i)
		}
		if e.FolderID <= 0 && strings.TrimSpace(e.FolderPath) == "" {
			return nil, fmt.Errorf("devseed: entry %d (%s): folder_id or folder_path is required", i, e.Name)
		}
		if e.Base64 != "" && e.Text != "" {
			return nil, fmt.Errorf("devseed: entry %d (%s): base64 and text are mutually exclusive", i, e.Name)
		}
	}
	return entries, nil
}
