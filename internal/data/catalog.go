package data

import (
	"fmt"
	"sort"
)

// Catalog is the process-wide, read-only content catalog. It is built once
// at startup and handed out by shared reference; after Freeze it is safe
// for lock-free concurrent reads from any goroutine.
//
// Every table is keyed by a non-negative integer id. Heterogeneity lives
// inside the entry value.
type Catalog struct {
	tables  map[string]*Table
	indexes map[string]*index
	frozen  bool
}

// Table holds one content table's entries plus a sorted id list for
// deterministic iteration.
type Table struct {
	name    string
	entries map[int64]any
	ids     []int64
}

type index struct {
	table string
	byKey map[string][]int64
}

// ErrNotFound is returned for missing tables, entries, and indexes.
var ErrNotFound = fmt.Errorf("catalog: not found")

func NewCatalog() *Catalog {
	return &Catalog{
		tables:  make(map[string]*Table),
		indexes: make(map[string]*index),
	}
}

// AddTable registers a table. Negative ids are rejected; duplicate ids keep
// the last entry, matching the loader's file order.
func (c *Catalog) AddTable(name string, entries map[int64]any) error {
	if c.frozen {
		return fmt.Errorf("catalog: add table %q after freeze", name)
	}
	t := &Table{name: name, entries: make(map[int64]any, len(entries))}
	for id, e := range entries {
		if id < 0 {
			return fmt.Errorf("catalog: table %q has negative id %d", name, id)
		}
		t.entries[id] = e
	}
	c.tables[name] = t
	return nil
}

// AddIndex builds a secondary index by grouping table entries on the key
// produced by extract. Entries for which extract reports ok=false (missing
// key value) are excluded from the index.
func (c *Catalog) AddIndex(indexName, table string, extract func(entry any) (key string, ok bool)) error {
	if c.frozen {
		return fmt.Errorf("catalog: add index %q after freeze", indexName)
	}
	t, ok := c.tables[table]
	if !ok {
		return fmt.Errorf("catalog: index %q references unknown table %q", indexName, table)
	}
	idx := &index{table: table, byKey: make(map[string][]int64)}
	for id, e := range t.entries {
		key, ok := extract(e)
		if !ok {
			continue
		}
		idx.byKey[key] = append(idx.byKey[key], id)
	}
	for _, ids := range idx.byKey {
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	}
	c.indexes[indexName] = idx
	return nil
}

// CompositeKey joins a tuple of field values into one index key.
func CompositeKey(parts ...string) string {
	key := ""
	for i, p := range parts {
		if i > 0 {
			key += "\x1f"
		}
		key += p
	}
	return key
}

// Freeze finishes catalog construction: id lists are sorted and further
// mutation is rejected.
func (c *Catalog) Freeze() {
	for _, t := range c.tables {
		t.ids = make([]int64, 0, len(t.entries))
		for id := range t.entries {
			t.ids = append(t.ids, id)
		}
		sort.Slice(t.ids, func(i, j int) bool { return t.ids[i] < t.ids[j] })
	}
	c.frozen = true
}

// Get returns the entry with the given primary id.
func (c *Catalog) Get(table string, id int64) (any, bool) {
	t, ok := c.tables[table]
	if !ok {
		return nil, false
	}
	e, ok := t.entries[id]
	return e, ok
}

// Len returns the number of entries in a table.
func (c *Catalog) Len(table string) int {
	t, ok := c.tables[table]
	if !ok {
		return 0
	}
	return len(t.entries)
}

// List returns a finite lazy sequence over (id, entry) in ascending id
// order. The catalog is immutable post-Freeze, so the sequence is stable.
func (c *Catalog) List(table string) func(yield func(int64, any) bool) {
	t := c.tables[table]
	return func(yield func(int64, any) bool) {
		if t == nil {
			return
		}
		for _, id := range t.ids {
			if !yield(id, t.entries[id]) {
				return
			}
		}
	}
}

// Continuation resumes a paginated listing. The zero value is invalid.
type Continuation struct {
	table string
	pos   int
	limit int
}

// ListPaginated returns the first batch of at most limit entries and a
// continuation. A nil continuation means the listing is complete.
func (c *Catalog) ListPaginated(table string, limit int) ([]any, *Continuation) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	return c.page(table, 0, limit)
}

// ListContinue returns the next batch for a continuation from
// ListPaginated.
func (c *Catalog) ListContinue(cont *Continuation) ([]any, *Continuation) {
	if cont == nil {
		return nil, nil
	}
	return c.page(cont.table, cont.pos, cont.limit)
}

// DefaultPageSize is the page size used when the caller passes none.
const DefaultPageSize = 100

func (c *Catalog) page(table string, pos, limit int) ([]any, *Continuation) {
	t, ok := c.tables[table]
	if !ok || pos >= len(t.ids) {
		return nil, nil
	}
	end := pos + limit
	if end > len(t.ids) {
		end = len(t.ids)
	}
	batch := make([]any, 0, end-pos)
	for _, id := range t.ids[pos:end] {
		batch = append(batch, t.entries[id])
	}
	if end >= len(t.ids) {
		return batch, nil
	}
	return batch, &Continuation{table: table, pos: end, limit: limit}
}

// IndexLookup returns the primary ids grouped under key in a secondary
// index, ascending. Missing index or key yields an empty slice.
func (c *Catalog) IndexLookup(indexName, key string) []int64 {
	idx, ok := c.indexes[indexName]
	if !ok {
		return nil
	}
	return idx.byKey[key]
}

// FetchByIDs resolves primary ids to entries, skipping missing ids.
func (c *Catalog) FetchByIDs(table string, ids []int64) []any {
	t, ok := c.tables[table]
	if !ok {
		return nil
	}
	out := make([]any, 0, len(ids))
	for _, id := range ids {
		if e, ok := t.entries[id]; ok {
			out = append(out, e)
		}
	}
	return out
}
