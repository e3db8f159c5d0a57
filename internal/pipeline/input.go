package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"encoding/json/v2"

	domainerrors "github.com/shelfwise/shelfwise-pipeline/internal/errors"
	"github.com/shelfwise/shelfwise-pipeline/internal/normalizer"
)

// inputFiles lists the eligible export files for one shop, sorted by name.
// A missing directory and an empty one are both hard errors; a run over
// nothing is always a misconfiguration.
func inputFiles(inputDir, shop string) ([]string, error) {
	dir := filepath.Join(inputDir, shop)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domainerrors.InputMissingf("input directory %s does not exist", dir)
		}
		return nil, fmt.Errorf("read input dir: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !strings.EqualFold(filepath.Ext(entry.Name()), ".json") {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	if len(files) == 0 {
		return nil, domainerrors.InputMissingf("no .json input files in %s", dir)
	}
	sort.Strings(files)
	return files, nil
}

// readRecords parses one export file, a JSON array of raw vendor records.
func readRecords(path string) ([]normalizer.RawRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []normalizer.RawRecord
	if err := json.UnmarshalRead(f, &records); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return records, nil
}

// countRecords sizes each input file up front so progress and the dry-run
// summary have totals to report. Unreadable files count as zero here; the
// processing phase surfaces their errors.
func countRecords(files []string) map[string]int {
	counts := make(map[string]int, len(files))
	for _, file := range files {
		records, err := readRecords(file)
		if err != nil {
			continue
		}
		counts[filepath.Base(file)] = len(records)
	}
	return counts
}
