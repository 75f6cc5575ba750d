package sqlitejournal

import (
	"testing"
	"time"

	"github.com/ericselin/httpintercept/cache"
)

func sampleEntry(primary, secondary string) *cache.Entry {
	now := time.Now()
	return &cache.Entry{
		PrimaryKey:            primary,
		SecondaryKey:          secondary,
		CreatedAt:             now,
		StatusCode:            200,
		ReasonPhrase:          "OK",
		Header:                make(map[string][]string),
		VarySnapshot:          make(map[string][]string),
		RequestTime:           now,
		ResponseTime:          now,
		LastAccessedAt:        now,
		PersistedResponseSize: 42,
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	j, err := Open("")
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()

	entry := sampleEntry("p1", "s1")
	if err := j.Put(entry); err != nil {
		t.Fatal(err)
	}

	got, ok := j.Get("p1", "s1")
	if !ok {
		t.Fatal("expected entry to be found")
	}
	if got.StatusCode != 200 || got.ReasonPhrase != "OK" {
		t.Fatalf("got = %+v", got)
	}
	if j.TotalSize() != 42 {
		t.Fatalf("TotalSize() = %d", j.TotalSize())
	}
}

func TestVariants(t *testing.T) {
	j, err := Open("")
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()

	j.Put(sampleEntry("p1", "s1"))
	j.Put(sampleEntry("p1", "s2"))
	j.Put(sampleEntry("p2", "s1"))

	variants := j.Variants("p1")
	if len(variants) != 2 {
		t.Fatalf("expected 2 variants, got %d", len(variants))
	}
}

func TestDeleteAll(t *testing.T) {
	j, err := Open("")
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()

	j.Put(sampleEntry("p1", "s1"))
	j.Put(sampleEntry("p1", "s2"))

	removed, err := j.DeleteAll("p1")
	if err != nil {
		t.Fatal(err)
	}
	if len(removed) != 2 {
		t.Fatalf("expected 2 removed entries, got %d", len(removed))
	}
	if variants := j.Variants("p1"); len(variants) != 0 {
		t.Fatalf("expected no variants after DeleteAll, got %d", len(variants))
	}
}

func TestOldestPicksLowestScore(t *testing.T) {
	j, err := Open("")
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()

	low := sampleEntry("p1", "low")
	low.HitCount = 1
	low.LastAccessedAt = time.Now().Add(-time.Hour)
	j.Put(low)

	high := sampleEntry("p2", "high")
	high.HitCount = 1000
	high.LastAccessedAt = time.Now()
	j.Put(high)

	oldest, ok := j.Oldest()
	if !ok {
		t.Fatal("expected an oldest entry")
	}
	if oldest.SecondaryKey != "low" {
		t.Fatalf("expected low-scoring entry, got %s", oldest.SecondaryKey)
	}
}
