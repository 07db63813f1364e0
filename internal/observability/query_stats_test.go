package observability

import (
	"sync"
	"testing"
	"time"
)

func TestRecordFilterConcurrent(t *testing.T) {
	qs := NewQueryStats(time.Hour)
	var wg sync.WaitGroup
	workers, perWorker := 8, 50

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				qs.RecordFilter("e.name", "customize")
				qs.RecordFilter("benchmarks_system.name", "manytable")
				qs.RecordJoin("benchmarks_solver", "customize")
			}
		}()
	}
	wg.Wait()

	filters := qs.GetTopFilters(10)
	if len(filters) != 2 {
		t.Fatalf("expected 2 filters, got %d", len(filters))
	}
	want := int64(workers * perWorker)
	for _, s := range filters {
		if s.Frequency != want {
			t.Errorf("expected frequency %d for %s, got %d", want, s.Column, s.Frequency)
		}
	}
	if joins := qs.GetTopJoins(10); len(joins) != 1 || joins[0].Frequency != want {
		t.Errorf("unexpected joins: %+v", joins)
	}
}

func TestGetTopFiltersOrdering(t *testing.T) {
	qs := NewQueryStats(time.Hour)
	for i := 0; i < 3; i++ {
		qs.RecordFilter("a.rcs", "customize")
	}
	for i := 0; i < 7; i++ {
		qs.RecordFilter("e.name", "customize")
	}
	qs.RecordFilter("b.name", "customize")
	qs.RecordFilter("a.num_runs", "customize")

	top := qs.GetTopFilters(3)
	if len(top) != 3 {
		t.Fatalf("expected 3 filters, got %d", len(top))
	}
	if top[0].Column != "e.name" || top[1].Column != "a.rcs" {
		t.Errorf("unexpected order: %s, %s", top[0].Column, top[1].Column)
	}
	// Equal counts sort by name.
	if top[2].Column != "a.num_runs" {
		t.Errorf("expected a.num_runs third, got %s", top[2].Column)
	}
}

func TestRecordJoinTracksBuilders(t *testing.T) {
	qs := NewQueryStats(time.Hour)
	for i := 0; i < 4; i++ {
		qs.RecordJoin("benchmarks_system", "customize")
	}
	qs.RecordJoin("benchmarks_system", "manytable")

	top := qs.GetTopJoins(1)
	if len(top) != 1 || top[0].Frequency != 5 {
		t.Fatalf("unexpected joins: %+v", top)
	}
	if top[0].Builders["customize"] != 4 || top[0].Builders["manytable"] != 1 {
		t.Errorf("unexpected builder counts: %v", top[0].Builders)
	}

	// Returned stats are copies.
	top[0].Builders["customize"] = 100
	if qs.GetTopJoins(1)[0].Builders["customize"] != 4 {
		t.Error("GetTopJoins must return a copy")
	}
}

func TestPruneRemovesOldEntries(t *testing.T) {
	window := 50 * time.Millisecond
	qs := NewQueryStats(window)
	qs.RecordFilter("a.rcs", "customize")
	qs.RecordJoin("benchmarks_solver", "customize")

	time.Sleep(window + 50*time.Millisecond)
	qs.Prune()

	if n := len(qs.GetTopFilters(10)); n != 0 {
		t.Errorf("expected 0 filters after prune, got %d", n)
	}
	if n := len(qs.GetTopJoins(10)); n != 0 {
		t.Errorf("expected 0 joins after prune, got %d", n)
	}
}

func TestGetTopEmpty(t *testing.T) {
	qs := NewQueryStats(time.Hour)
	if n := len(qs.GetTopFilters(10)); n != 0 {
		t.Errorf("expected 0 filters, got %d", n)
	}
	if n := len(qs.GetTopJoins(0)); n != 0 {
		t.Errorf("expected 0 joins, got %d", n)
	}
}
