package shard

import (
	"bufio"
	"bytes"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"encoding/json/v2"

	"github.com/shelfwise/shelfwise-pipeline/internal/domain"
)

// rotationPattern matches the suffix rotated shard files carry.
var rotationPattern = regexp.MustCompile(`-(\d{8}T\d{6})-(\d+)\.jsonl$`)

// Reader reads shards and the catalog index back from a shop output
// directory.
type Reader struct {
	dir string
}

// NewReader creates a reader over one shop's output directory.
func NewReader(dir string) *Reader {
	return &Reader{dir: dir}
}

// ReadShard loads every record of a slug, base file first, rotations in
// order. A slug with no files on disk is empty, not an error.
func (r *Reader) ReadShard(slug string) ([]domain.CanonicalProduct, error) {
	var products []domain.CanonicalProduct
	for p, err := range r.StreamShard(slug) {
		if err != nil {
			return nil, fmt.Errorf("reading shard %s: %w", slug, err)
		}
		products = append(products, p)
	}
	return products, nil
}

// StreamShard yields a slug's records lazily across the base file and its
// rotations. Unparsable lines are yielded as errors and skipped; the
// sequence ends at end-of-file.
func (r *Reader) StreamShard(slug string) iter.Seq2[domain.CanonicalProduct, error] {
	return streamRecords[domain.CanonicalProduct](r.shardFiles(slug))
}

// ReadIndex loads the flat catalog index. Missing file means no products.
func (r *Reader) ReadIndex() ([]domain.IndexEntry, error) {
	var entries []domain.IndexEntry
	for e, err := range r.StreamIndex() {
		if err != nil {
			return nil, fmt.Errorf("reading index: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// StreamIndex yields catalog index entries lazily.
func (r *Reader) StreamIndex() iter.Seq2[domain.IndexEntry, error] {
	path := filepath.Join(r.dir, indexBase+shardExt)
	if _, err := os.Stat(path); err != nil {
		return streamRecords[domain.IndexEntry](nil)
	}
	return streamRecords[domain.IndexEntry]([]string{path})
}

// Metadata loads the run summary written at finalization.
func (r *Reader) Metadata() (*Metadata, error) {
	return ReadMetadata(r.dir)
}

// ShardInfo identifies one shard file on disk.
type ShardInfo struct {
	Slug string `json:"slug"`
	Path string `json:"path"` // relative to the output dir
}

// ListShards enumerates every shard file, rotations included, sorted by
// path. A missing output layout lists as empty.
func (r *Reader) ListShards() ([]ShardInfo, error) {
	root := filepath.Join(r.dir, byCategoryDir)

	var shards []ShardInfo
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), shardExt) {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		shards = append(shards, ShardInfo{
			Slug: slugFromFile(rel),
			Path: byCategoryDir + "/" + rel,
		})
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing shards: %w", err)
	}

	sort.Slice(shards, func(i, j int) bool { return shards[i].Path < shards[j].Path })
	return shards, nil
}

// slugFromFile recovers the slug from a file path relative to by-category.
func slugFromFile(rel string) string {
	if loc := rotationPattern.FindStringIndex(rel); loc != nil {
		return rel[:loc[0]]
	}
	return strings.TrimSuffix(rel, shardExt)
}

// shardFiles returns the slug's files in write order: the base file first,
// then rotations by sequence number.
func (r *Reader) shardFiles(slug string) []string {
	base := filepath.Join(r.dir, byCategoryDir, filepath.FromSlash(slug))

	var paths []string
	if _, err := os.Stat(base + shardExt); err == nil {
		paths = append(paths, base+shardExt)
	}

	type rotation struct {
		path string
		seq  int
	}
	var rotations []rotation

	stem := filepath.Base(base)
	entries, err := os.ReadDir(filepath.Dir(base))
	if err != nil {
		return paths
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			continue
		}
		m := rotationPattern.FindStringSubmatch(name)
		if m == nil || strings.TrimSuffix(name, m[0]) != stem {
			continue
		}
		seq, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		rotations = append(rotations, rotation{path: filepath.Join(filepath.Dir(base), name), seq: seq})
	}

	sort.Slice(rotations, func(i, j int) bool { return rotations[i].seq < rotations[j].seq })
	for _, rot := range rotations {
		paths = append(paths, rot.path)
	}
	return paths
}

// streamRecords yields typed records across a list of JSONL files. Empty
// lines are skipped; lines that fail to parse are yielded as errors and the
// scan continues with the next line.
func streamRecords[T any](paths []string) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for _, path := range paths {
			f, err := os.Open(path)
			if err != nil {
				var zero T
				if !yield(zero, err) {
					return
				}
				continue
			}
			if !scanLines(f, yield) {
				return
			}
		}
	}
}

func scanLines[T any](f *os.File, yield func(T, error) bool) bool {
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue // Skip empty lines
		}

		var entity T
		if err := json.UnmarshalRead(bytes.NewReader(line), &entity); err != nil {
			var zero T
			if !yield(zero, err) {
				return false
			}
			continue // Try next line on parse error
		}
		if !yield(entity, nil) {
			return false
		}
	}

	if err := scanner.Err(); err != nil {
		var zero T
		return yield(zero, err)
	}
	return true
}
