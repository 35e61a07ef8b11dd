package battery

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/muurk/origctl/internal/protocol"
)

func reading(level int) Reading {
	return Reading{Level: level, Present: true}
}

func TestMergeKeepsCachedLevelOnZero(t *testing.T) {
	store := NewMemoryStore(Status{Left: reading(80)})
	cache := NewCache(store)
	if err := cache.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	live := FromReport(&protocol.BatteryReport{
		Left:  protocol.BatteryLevel{Level: 0},
		Right: protocol.BatteryLevel{Level: 55},
	})
	merged := cache.Merge(live)

	if merged.Left.Level != 80 || !merged.Left.Present {
		t.Errorf("Left = %+v, want cached 80", merged.Left)
	}
	if merged.Right.Level != 55 || !merged.Right.Present {
		t.Errorf("Right = %+v, want live 55", merged.Right)
	}
	if merged.Case.Present {
		t.Errorf("Case = %+v, want not present", merged.Case)
	}

	persisted, _ := store.Load()
	if persisted.Right.Level != 55 {
		t.Errorf("persisted Right = %d, want 55", persisted.Right.Level)
	}
	if persisted.Left.Level != 80 {
		t.Errorf("persisted Left = %d, want 80 (zero must not overwrite)", persisted.Left.Level)
	}
}

func TestMergeLiveOverridesCache(t *testing.T) {
	cache := NewCache(NewMemoryStore(Status{Left: reading(80), Case: reading(30)}))
	_ = cache.Load()

	merged := cache.Merge(Status{Left: reading(60), Case: Reading{Level: 31, Charging: true, Present: true}})

	if merged.Left.Level != 60 {
		t.Errorf("Left = %d, want 60", merged.Left.Level)
	}
	if merged.Case.Level != 31 || !merged.Case.Charging {
		t.Errorf("Case = %+v, want 31 charging", merged.Case)
	}
	if got := cache.Cached().Left.Level; got != 60 {
		t.Errorf("Cached().Left = %d, want 60", got)
	}
}

func TestMergeOnlyPersistsChanges(t *testing.T) {
	store := NewMemoryStore(Status{})
	cache := NewCache(store)

	cache.Merge(Status{Left: reading(70)})
	cache.Merge(Status{Left: reading(70)})
	cache.Merge(Status{})

	if store.Saves() != 1 {
		t.Errorf("Saves() = %d, want 1", store.Saves())
	}
}

func TestMergeToleratesPersistFailure(t *testing.T) {
	store := NewMemoryStore(Status{})
	store.FailWith(errors.New("disk full"))
	cache := NewCache(store)

	merged := cache.Merge(Status{Right: reading(42)})
	if merged.Right.Level != 42 {
		t.Errorf("Right = %d, want 42", merged.Right.Level)
	}
	if cache.Cached().Right.Level != 42 {
		t.Errorf("in-memory cache should still update on persist failure")
	}
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name   string
		status Status
		want   int
		wantOK bool
	}{
		{"both", Status{Left: reading(80), Right: reading(55)}, 55, true},
		{"left only", Status{Left: reading(80)}, 80, true},
		{"right only", Status{Right: reading(20)}, 20, true},
		{"case only", Status{Case: reading(90)}, 0, false},
		{"none", Status{}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.status.Aggregate()
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("Aggregate() = %d, %t, want %d, %t", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestHasValidEarbud(t *testing.T) {
	if (Status{Case: reading(50)}).HasValidEarbud() {
		t.Error("case alone should not count as a valid earbud reading")
	}
	if !(Status{Right: reading(1)}).HasValidEarbud() {
		t.Error("right earbud at 1% should count")
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), StoreFile)
	store := NewFileStore(path)

	empty, err := store.Load()
	if err != nil {
		t.Fatalf("Load() on missing file error = %v", err)
	}
	if empty.Left.Present || empty.Right.Present || empty.Case.Present {
		t.Errorf("missing file should load empty, got %s", empty)
	}

	saved := Status{Left: reading(80), Case: Reading{Level: 40, Charging: true, Present: true}}
	if err := store.Save(saved); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded != saved {
		t.Errorf("Load() = %s, want %s", loaded, saved)
	}

	if err := store.Remove(); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Remove() should delete the file")
	}
}

func TestFileStoreSurvivesReconnect(t *testing.T) {
	path := filepath.Join(t.TempDir(), StoreFile)

	first := NewCache(NewFileStore(path))
	first.Merge(Status{Left: reading(73), Right: reading(64)})

	// A fresh process reads the persisted readings before any live report
	second := NewCache(NewFileStore(path))
	if err := second.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	merged := second.Merge(Status{})
	if merged.Left.Level != 73 || merged.Right.Level != 64 {
		t.Errorf("merged = %s, want left 73 right 64", merged)
	}
}

func TestClear(t *testing.T) {
	store := NewMemoryStore(Status{Left: reading(10)})
	cache := NewCache(store)
	_ = cache.Load()

	if err := cache.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if cache.Cached().Left.Present {
		t.Error("Clear() should drop cached readings")
	}
	if s, _ := store.Load(); s.Left.Present {
		t.Error("Clear() should persist the empty cache")
	}
}
