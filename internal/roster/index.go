package roster

import (
	"strings"
	"sync"

	"github.com/MAZGOURA/attestation-api/internal/models"
)

// Normalize trims, uppercases and collapses internal whitespace so that
// " el  hani " and "EL HANI" compare equal.
func Normalize(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), " "))
}

// indexEntry pairs a roster row with its lazily computed normalized name.
type indexEntry struct {
	entry models.RosterEntry

	once sync.Once
	norm string
}

func (e *indexEntry) normalized() string {
	e.once.Do(func() {
		e.norm = Normalize(e.entry.FullName)
	})
	return e.norm
}

// groupBucket holds one group's entries in roster order. The name map is
// built on first lookup and reused afterwards.
type groupBucket struct {
	entries []*indexEntry

	once   sync.Once
	byName map[string]*indexEntry
}

func (b *groupBucket) lookup(norm string) (*indexEntry, bool) {
	b.once.Do(func() {
		b.byName = make(map[string]*indexEntry, len(b.entries))
		for _, e := range b.entries {
			b.byName[e.normalized()] = e
		}
	})
	e, ok := b.byName[norm]
	return e, ok
}

// Index is a read-only in-memory view of the enrollment roster, keyed by
// (group, normalized full name). It is immutable after construction and
// therefore safe for concurrent readers.
type Index struct {
	groups map[string]*groupBucket
	order  []string
}

// NewIndex builds the index. Entry order within a group is preserved as
// loaded, which is the order suggestions are returned in.
func NewIndex(entries []models.RosterEntry) *Index {
	ix := &Index{groups: make(map[string]*groupBucket)}
	for _, entry := range entries {
		group := strings.TrimSpace(entry.GroupCode)
		bucket, ok := ix.groups[group]
		if !ok {
			bucket = &groupBucket{}
			ix.groups[group] = bucket
			ix.order = append(ix.order, group)
		}
		bucket.entries = append(bucket.entries, &indexEntry{entry: entry})
	}
	return ix
}

// LookupExact matches either name ordering ("first last" or "last first")
// against the normalized roster name within the given group.
func (ix *Index) LookupExact(firstName, lastName, group string) (*models.RosterEntry, bool) {
	bucket, ok := ix.groups[strings.TrimSpace(group)]
	if !ok {
		return nil, false
	}
	firstLast := Normalize(firstName + " " + lastName)
	lastFirst := Normalize(lastName + " " + firstName)

	if e, ok := bucket.lookup(firstLast); ok {
		entry := e.entry
		return &entry, true
	}
	if e, ok := bucket.lookup(lastFirst); ok {
		entry := e.entry
		return &entry, true
	}
	return nil, false
}

// EntriesInGroup returns the group's entries in roster order. The slice
// is a copy and safe for the caller to retain.
func (ix *Index) EntriesInGroup(group string) []models.RosterEntry {
	bucket, ok := ix.groups[strings.TrimSpace(group)]
	if !ok {
		return nil
	}
	entries := make([]models.RosterEntry, 0, len(bucket.entries))
	for _, e := range bucket.entries {
		entries = append(entries, e.entry)
	}
	return entries
}

// Groups lists known group codes in first-seen order.
func (ix *Index) Groups() []string {
	out := make([]string, len(ix.order))
	copy(out, ix.order)
	return out
}

// Size returns the total number of indexed entries.
func (ix *Index) Size() int {
	total := 0
	for _, bucket := range ix.groups {
		total += len(bucket.entries)
	}
	return total
}

// normalizedEntries exposes the lazily cached normalized names to the matcher.
func (ix *Index) normalizedEntries(group string) []*indexEntry {
	bucket, ok := ix.groups[strings.TrimSpace(group)]
	if !ok {
		return nil
	}
	return bucket.entries
}
