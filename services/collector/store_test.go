package collector

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func f(v float64) *float64 { return &v }

func sample(i int) Sample {
	return Sample{
		Temp:   f(float64(i)),
		Hum:    f(float64(50 + i)),
		At:     time.Date(2025, 3, 1, 12, 0, i, 0, time.Local),
		Remote: "10.0.0.2",
	}
}

func checkStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := s.Latest(ctx); err != nil || ok {
		t.Fatalf("empty store Latest = %v, %v", ok, err)
	}
	for i := 1; i <= 5; i++ {
		if err := s.Add(ctx, sample(i)); err != nil {
			t.Fatalf("Add(%d): %v", i, err)
		}
	}
	latest, ok, err := s.Latest(ctx)
	if err != nil || !ok || *latest.Temp != 5 {
		t.Fatalf("Latest = %+v, %v, %v", latest, ok, err)
	}
	hist, err := s.History(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != 3 {
		t.Fatalf("history len = %d, want 3 (capacity)", len(hist))
	}
	for i, h := range hist {
		if want := float64(i + 3); *h.Temp != want {
			t.Fatalf("hist[%d].Temp = %v, want %v (oldest evicted first)", i, *h.Temp, want)
		}
	}
	if got := hist[0].Entry().Time; got != "12:00:03" {
		t.Fatalf("entry time = %q", got)
	}
}

func TestMemoryStoreRing(t *testing.T) {
	checkStore(t, NewMemoryStore(3))
}

func TestSQLiteStoreRing(t *testing.T) {
	s, err := OpenSQLite(":memory:", 3)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() {
		if err := s.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}()
	checkStore(t, s)
}

func TestSQLiteStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "history.db")
	ctx := context.Background()

	s, err := OpenSQLite(path, 10)
	if err != nil {
		t.Fatal(err)
	}
	nilHum := Sample{Temp: f(21), At: time.Now(), Remote: "a"}
	if err := s.Add(ctx, nilHum); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = OpenSQLite(path, 10)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	hist, err := s.History(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != 1 || *hist[0].Temp != 21 || hist[0].Hum != nil || hist[0].Remote != "a" {
		t.Fatalf("reopened history = %+v", hist)
	}
}

func TestMemoryStoreDefaultCapacity(t *testing.T) {
	if got := len(NewMemoryStore(0).buf); got != 10000 {
		t.Fatalf("default capacity = %d", got)
	}
}
