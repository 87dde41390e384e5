// Package availability merges the raw slots collected across all
// pagination walks into an index from (facility, date, time bucket) to
// the providers offering that bucket.
package availability

import (
	"fmt"
	"sort"
	"sync"

	"github.com/tomhatch/slotscope/pkg/timeslot"
)

// Index is a finished availability snapshot. Provider lists are sorted
// by NPI and hold each provider at most once per key.
type Index map[timeslot.SlotKey][]timeslot.ProviderRef

// Keys returns the index keys in structural order.
func (idx Index) Keys() []timeslot.SlotKey {
	keys := make([]timeslot.SlotKey, 0, len(idx))
	for key := range idx {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

// Dates returns the distinct dates present for a facility, sorted.
func (idx Index) Dates(facilityID string) []string {
	seen := make(map[string]bool)
	for key := range idx {
		if key.FacilityID == facilityID {
			seen[key.Date] = true
		}
	}
	dates := make([]string, 0, len(seen))
	for date := range seen {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	return dates
}

// Builder accumulates slots as task results stream in. Safe for
// concurrent use; the index under construction is the only mutable
// state shared across tasks.
type Builder struct {
	mu           sync.Mutex
	bucketWidth  int
	entries      map[timeslot.SlotKey][]timeslot.ProviderRef
	seen         map[string]bool // key.String() + "|" + NPI
	slotsMerged  int
	slotsDropped int
}

// NewBuilder creates a builder at the given bucket width. A width
// outside 1..60 falls back to the default.
func NewBuilder(bucketWidthMinutes int) *Builder {
	if bucketWidthMinutes <= 0 || bucketWidthMinutes > 60 {
		bucketWidthMinutes = timeslot.DefaultBucketMinutes
	}
	return &Builder{
		bucketWidth: bucketWidthMinutes,
		entries:     make(map[timeslot.SlotKey][]timeslot.ProviderRef),
		seen:        make(map[string]bool),
	}
}

// Add merges one task's slots for a provider into the index. A provider
// contributes to a given key at most once per run, even when pages
// straddle the same bucket. Returns an error only for a malformed slot
// time, which fails the whole batch without partial application.
func (b *Builder) Add(provider timeslot.ProviderRef, slots []timeslot.RawSlot) error {
	keys := make([]timeslot.SlotKey, len(slots))
	for i, slot := range slots {
		key, err := slot.Key(b.bucketWidth)
		if err != nil {
			return fmt.Errorf("slot %s %s for npi %s: %w", slot.Date, slot.Time, provider.NPI, err)
		}
		keys[i] = key
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, key := range keys {
		dedupKey := key.String() + "|" + provider.NPI
		if b.seen[dedupKey] {
			b.slotsDropped++
			continue
		}
		b.seen[dedupKey] = true
		b.entries[key] = append(b.entries[key], provider)
		b.slotsMerged++
	}
	return nil
}

// Len returns the number of distinct index keys so far.
func (b *Builder) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Stats returns the merged and duplicate-dropped slot counts so far.
func (b *Builder) Stats() (merged, dropped int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.slotsMerged, b.slotsDropped
}

// Index returns a finished snapshot with provider lists sorted by NPI.
// The snapshot is a copy; further Add calls do not affect it.
func (b *Builder) Index() Index {
	b.mu.Lock()
	defer b.mu.Unlock()

	snapshot := make(Index, len(b.entries))
	for key, providers := range b.entries {
		copied := make([]timeslot.ProviderRef, len(providers))
		copy(copied, providers)
		sort.Slice(copied, func(i, j int) bool { return copied[i].NPI < copied[j].NPI })
		snapshot[key] = copied
	}
	return snapshot
}
