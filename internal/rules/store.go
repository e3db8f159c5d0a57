// Package rules persists per-shop classification rule sets as JSON
// documents, one file per shop, rewritten wholesale whenever a rule is
// learned.
package rules

import (
	"encoding/json/v2"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/shelfwise/shelfwise-pipeline/internal/domain"
	domainerrors "github.com/shelfwise/shelfwise-pipeline/internal/errors"
)

const fileSuffix = ".rules.json"

// Store reads and writes rule documents under one directory.
type Store struct {
	dir string
}

// NewStore creates the rules directory if needed and returns a store over it.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, domainerrors.Validation("rules directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create rules dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the directory the store operates on.
func (s *Store) Dir() string {
	return s.dir
}

// Load returns the shop's rule set in priority order. A missing document is
// an empty rule set, not an error.
func (s *Store) Load(shop string) ([]domain.CategoryRule, error) {
	path, err := s.path(shop)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open rules for %s: %w", shop, err)
	}
	defer f.Close()

	var ruleSet []domain.CategoryRule
	if err := json.UnmarshalRead(f, &ruleSet); err != nil {
		return nil, fmt.Errorf("parse rules for %s: %w", shop, err)
	}
	return ruleSet, nil
}

// Save rewrites the shop's whole rule document. The write is atomic: a temp
// file is renamed over the old document on success.
func (s *Store) Save(shop string, ruleSet []domain.CategoryRule) error {
	path, err := s.path(shop)
	if err != nil {
		return err
	}

	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create rules file: %w", err)
	}
	defer os.Remove(tmpPath) // Clean up on failure

	if err := json.MarshalWrite(f, ruleSet); err != nil {
		f.Close()
		return fmt.Errorf("write rules for %s: %w", shop, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close rules file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace rules for %s: %w", shop, err)
	}
	return nil
}

// Shops lists every shop that has a rule document, sorted.
func (s *Store) Shops() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read rules dir: %w", err)
	}

	var shops []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		shops = append(shops, strings.TrimSuffix(name, fileSuffix))
	}
	sort.Strings(shops)
	return shops, nil
}

func (s *Store) path(shop string) (string, error) {
	if shop == "" {
		return "", domainerrors.Validation("shop is required")
	}
	if strings.ContainsAny(shop, `/\`) || shop != filepath.Base(shop) {
		return "", domainerrors.Validationf("invalid shop name %q", shop)
	}
	return filepath.Join(s.dir, shop+fileSuffix), nil
}
