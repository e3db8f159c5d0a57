package shard

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"encoding/json/v2"

	"github.com/shelfwise/shelfwise-pipeline/internal/domain"
)

// FormatVersion is the output layout version. Increment major on breaking changes.
const FormatVersion = "1.0"

// ShardFile describes one finalized output file.
type ShardFile struct {
	Slug    string `json:"slug,omitempty"` // empty for the index stream
	Path    string `json:"path"`           // relative to the shop output dir
	Records int    `json:"records"`
	Bytes   int64  `json:"bytes"`
}

// Metadata is the run summary written next to the shards.
type Metadata struct {
	Version   string               `json:"version"`
	Shop      string               `json:"shop"`
	CreatedAt time.Time            `json:"created_at"`
	Stats     domain.ShardingStats `json:"stats"`
	Shards    []ShardFile          `json:"shards,omitempty"`
	Index     ShardFile            `json:"index,omitzero"`
}

// WriteMetadata writes the metadata document atomically: a temp file is
// renamed over the old document on success.
func WriteMetadata(path string, meta *Metadata) error {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create metadata file: %w", err)
	}
	defer os.Remove(tmpPath) // Clean up on failure

	if err := json.MarshalWrite(f, meta); err != nil {
		f.Close()
		return fmt.Errorf("write metadata: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close metadata file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace metadata: %w", err)
	}
	return nil
}

// ReadMetadata loads the metadata document from a shop output directory.
func ReadMetadata(dir string) (*Metadata, error) {
	f, err := os.Open(filepath.Join(dir, metadataFileName))
	if err != nil {
		return nil, fmt.Errorf("open metadata: %w", err)
	}
	defer f.Close()

	var meta Metadata
	if err := json.UnmarshalRead(f, &meta); err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}
	return &meta, nil
}
