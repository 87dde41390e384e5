package availability

import (
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"sync"
	"testing"

	"github.com/tomhatch/slotscope/pkg/timeslot"
)

func provider(npi, name string) timeslot.ProviderRef {
	return timeslot.ProviderRef{
		NPI:         npi,
		DisplayName: name,
		Degree:      "MD",
		FacilityID:  "13",
	}
}

func TestBuilder_MergesBothProvidersIntoOneBucket(t *testing.T) {
	providerA := provider("1111111111", "Alice Adams")
	providerB := provider("2222222222", "Bob Brown")

	builder := NewBuilder(15)
	if err := builder.Add(providerA, []timeslot.RawSlot{
		{FacilityID: "13", Date: "2026-09-01", Time: "09:05:00"},
		{FacilityID: "13", Date: "2026-09-01", Time: "09:12:00"},
	}); err != nil {
		t.Fatalf("Add A: %v", err)
	}
	if err := builder.Add(providerB, []timeslot.RawSlot{
		{FacilityID: "13", Date: "2026-09-01", Time: "09:05:00"},
	}); err != nil {
		t.Fatalf("Add B: %v", err)
	}

	index := builder.Index()
	key := timeslot.SlotKey{FacilityID: "13", Date: "2026-09-01", TimeBucket: "09:00"}
	entry := index[key]
	if len(entry) != 2 {
		t.Fatalf("entry for %s has %d providers, want 2 (each exactly once)", key, len(entry))
	}
	if entry[0].NPI != "1111111111" || entry[1].NPI != "2222222222" {
		t.Errorf("entry = %v, want both providers sorted by NPI", entry)
	}
}

func TestBuilder_DeduplicatesWithinBucket(t *testing.T) {
	providerA := provider("1111111111", "Alice Adams")

	builder := NewBuilder(15)
	// Same provider, same bucket, delivered across two separate pages.
	for _, rawTime := range []string{"09:05:00", "09:12:00"} {
		if err := builder.Add(providerA, []timeslot.RawSlot{
			{FacilityID: "13", Date: "2026-09-01", Time: rawTime},
		}); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	key := timeslot.SlotKey{FacilityID: "13", Date: "2026-09-01", TimeBucket: "09:00"}
	if entry := builder.Index()[key]; len(entry) != 1 {
		t.Errorf("entry for %s has %d providers, want 1", key, len(entry))
	}
	if merged, dropped := builder.Stats(); merged != 1 || dropped != 1 {
		t.Errorf("Stats() = (%d, %d), want (1, 1)", merged, dropped)
	}
}

func TestBuilder_OrderIndependent(t *testing.T) {
	type batch struct {
		provider timeslot.ProviderRef
		slots    []timeslot.RawSlot
	}
	batches := []batch{
		{provider("1111111111", "Alice Adams"), []timeslot.RawSlot{
			{FacilityID: "13", Date: "2026-09-01", Time: "09:05:00"},
			{FacilityID: "13", Date: "2026-09-01", Time: "10:40:00"},
		}},
		{provider("2222222222", "Bob Brown"), []timeslot.RawSlot{
			{FacilityID: "13", Date: "2026-09-01", Time: "09:14:00"},
		}},
		{provider("3333333333", "Carol Clark"), []timeslot.RawSlot{
			{FacilityID: "21", Date: "2026-09-02", Time: "14:00:00"},
			{FacilityID: "13", Date: "2026-09-01", Time: "09:00:00"},
		}},
	}

	build := func(order []int) Index {
		builder := NewBuilder(15)
		for _, i := range order {
			if err := builder.Add(batches[i].provider, batches[i].slots); err != nil {
				t.Fatalf("Add: %v", err)
			}
		}
		return builder.Index()
	}

	reference := build([]int{0, 1, 2})
	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 5; trial++ {
		order := rng.Perm(len(batches))
		if got := build(order); !reflect.DeepEqual(got, reference) {
			t.Errorf("order %v produced a different index:\ngot  %v\nwant %v", order, got, reference)
		}
	}
}

func TestBuilder_InvalidTimeFailsWholeBatch(t *testing.T) {
	providerA := provider("1111111111", "Alice Adams")

	builder := NewBuilder(15)
	err := builder.Add(providerA, []timeslot.RawSlot{
		{FacilityID: "13", Date: "2026-09-01", Time: "09:05:00"},
		{FacilityID: "13", Date: "2026-09-01", Time: "not-a-time"},
	})
	if !errors.Is(err, timeslot.ErrInvalidTimeFormat) {
		t.Fatalf("Add = %v, want ErrInvalidTimeFormat", err)
	}
	if builder.Len() != 0 {
		t.Errorf("Len() = %d after failed batch, want 0 (no partial application)", builder.Len())
	}
}

func TestBuilder_ConcurrentAdds(t *testing.T) {
	builder := NewBuilder(15)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := provider(fmt.Sprintf("%010d", i+1), fmt.Sprintf("Provider %d", i+1))
			slots := []timeslot.RawSlot{
				{FacilityID: "13", Date: "2026-09-01", Time: "09:05:00"},
				{FacilityID: "13", Date: "2026-09-01", Time: "11:20:00"},
			}
			if err := builder.Add(p, slots); err != nil {
				t.Errorf("Add: %v", err)
			}
		}(i)
	}
	wg.Wait()

	index := builder.Index()
	for _, bucket := range []string{"09:00", "11:15"} {
		key := timeslot.SlotKey{FacilityID: "13", Date: "2026-09-01", TimeBucket: bucket}
		if len(index[key]) != 16 {
			t.Errorf("entry for %s has %d providers, want 16", key, len(index[key]))
		}
	}
}

func TestBuilder_SnapshotIsolation(t *testing.T) {
	builder := NewBuilder(15)
	if err := builder.Add(provider("1111111111", "Alice Adams"), []timeslot.RawSlot{
		{FacilityID: "13", Date: "2026-09-01", Time: "09:05:00"},
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	snapshot := builder.Index()

	if err := builder.Add(provider("2222222222", "Bob Brown"), []timeslot.RawSlot{
		{FacilityID: "13", Date: "2026-09-01", Time: "09:05:00"},
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	key := timeslot.SlotKey{FacilityID: "13", Date: "2026-09-01", TimeBucket: "09:00"}
	if len(snapshot[key]) != 1 {
		t.Errorf("snapshot entry grew to %d providers after later Add, want 1", len(snapshot[key]))
	}
}

func TestIndex_KeysOrdered(t *testing.T) {
	builder := NewBuilder(15)
	slots := []timeslot.RawSlot{
		{FacilityID: "21", Date: "2026-09-01", Time: "08:00:00"},
		{FacilityID: "13", Date: "2026-09-02", Time: "08:00:00"},
		{FacilityID: "13", Date: "2026-09-01", Time: "10:00:00"},
		{FacilityID: "13", Date: "2026-09-01", Time: "08:00:00"},
	}
	if err := builder.Add(provider("1111111111", "Alice Adams"), slots); err != nil {
		t.Fatalf("Add: %v", err)
	}

	keys := builder.Index().Keys()
	want := []timeslot.SlotKey{
		{FacilityID: "13", Date: "2026-09-01", TimeBucket: "08:00"},
		{FacilityID: "13", Date: "2026-09-01", TimeBucket: "10:00"},
		{FacilityID: "13", Date: "2026-09-02", TimeBucket: "08:00"},
		{FacilityID: "21", Date: "2026-09-01", TimeBucket: "08:00"},
	}
	if !reflect.DeepEqual(keys, want) {
		t.Errorf("Keys() = %v, want %v", keys, want)
	}
}

func TestIndex_Dates(t *testing.T) {
	builder := NewBuilder(15)
	if err := builder.Add(provider("1111111111", "Alice Adams"), []timeslot.RawSlot{
		{FacilityID: "13", Date: "2026-09-02", Time: "08:00:00"},
		{FacilityID: "13", Date: "2026-09-01", Time: "08:00:00"},
		{FacilityID: "21", Date: "2026-09-03", Time: "08:00:00"},
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if got := builder.Index().Dates("13"); !reflect.DeepEqual(got, []string{"2026-09-01", "2026-09-02"}) {
		t.Errorf("Dates(13) = %v", got)
	}
	if got := builder.Index().Dates("99"); len(got) != 0 {
		t.Errorf("Dates(99) = %v, want empty", got)
	}
}
