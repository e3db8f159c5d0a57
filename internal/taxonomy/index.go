package taxonomy

import (
	"sort"
	"strings"
)

// Entry is one resolved category exposed by the index.
type Entry struct {
	Name string   `json:"name"`
	Slug string   `json:"slug"`
	Path []string `json:"path"`
}

// Index is the flat lookup built from a taxonomy tree: any known display
// name or slug resolves to its full root-to-leaf path. Built once at startup
// and read-only afterward; every matching tier that needs to turn a
// canonical term into a path goes through it.
type Index struct {
	byName map[string][]string // lower-cased display name -> path
	bySlug map[string][]string // node slug -> path
	texts  []string            // every name and slug, for similarity scans
}

// NewIndex flattens tree into lookup tables. On duplicate names or slugs the
// first path encountered wins; walk order is sorted for determinism.
func NewIndex(tree Tree) *Index {
	ix := &Index{
		byName: make(map[string][]string),
		bySlug: make(map[string][]string),
	}

	names := sortedKeys(tree)
	for _, name := range names {
		ix.flatten(name, tree[name], nil)
	}

	sort.Strings(ix.texts)
	return ix
}

func (ix *Index) flatten(name string, node *Node, parents []string) {
	path := make([]string, 0, len(parents)+1)
	path = append(path, parents...)
	path = append(path, name)

	slug := node.Slug
	if slug == "" {
		slug = Slugify(name)
	}
	ix.add(name, slug, path)

	for _, childName := range sortedKeys(node.Children) {
		ix.flatten(childName, node.Children[childName], path)
	}
	for _, leaf := range node.Leaves {
		leafPath := append(append([]string{}, path...), leaf.Name)
		leafSlug := leaf.Slug
		if leafSlug == "" {
			leafSlug = Slugify(leaf.Name)
		}
		ix.add(leaf.Name, leafSlug, leafPath)
	}
}

func (ix *Index) add(name, slug string, path []string) {
	nameKey := strings.ToLower(name)
	if _, ok := ix.byName[nameKey]; !ok {
		ix.byName[nameKey] = path
		ix.texts = append(ix.texts, name)
	}
	if _, ok := ix.bySlug[slug]; !ok {
		ix.bySlug[slug] = path
		ix.texts = append(ix.texts, slug)
	}
}

// LookupName resolves a display name (case-insensitive) to its path.
func (ix *Index) LookupName(name string) ([]string, bool) {
	path, ok := ix.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, false
	}
	return clonePath(path), true
}

// LookupSlug resolves a node slug to its path.
func (ix *Index) LookupSlug(slug string) ([]string, bool) {
	path, ok := ix.bySlug[strings.TrimSpace(slug)]
	if !ok {
		return nil, false
	}
	return clonePath(path), true
}

// Lookup resolves a term by display name first, then by slug.
func (ix *Index) Lookup(term string) ([]string, bool) {
	if path, ok := ix.LookupName(term); ok {
		return path, true
	}
	return ix.LookupSlug(term)
}

// AllTexts returns every display name and slug the index knows, sorted. The
// fuzzy tier scans these; callers must not mutate the returned slice.
func (ix *Index) AllTexts() []string {
	return ix.texts
}

// Entries returns every category with its resolved path, sorted by slug
// path. Used by the read-only taxonomy listing.
func (ix *Index) Entries() []Entry {
	entries := make([]Entry, 0, len(ix.bySlug))
	for slug, path := range ix.bySlug {
		entries = append(entries, Entry{
			Name: path[len(path)-1],
			Slug: slug,
			Path: clonePath(path),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return SlugifyPath(entries[i].Path) < SlugifyPath(entries[j].Path)
	})
	return entries
}

// Size returns the number of distinct slugs in the index.
func (ix *Index) Size() int {
	return len(ix.bySlug)
}

func clonePath(path []string) []string {
	out := make([]string, len(path))
	copy(out, path)
	return out
}

func sortedKeys(m map[string]*Node) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
