package store

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/chazu/garnet/asm"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "units.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutGet(t *testing.T) {
	s := openTemp(t)
	unit := asm.MustCompile("answer", "LOAD_CONST $42\nRETURN")

	hash, err := s.Put(unit)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if len(hash) != 64 {
		t.Errorf("hash %q is not a hex SHA-256", hash)
	}
	got, err := s.Get(hash)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if diff := cmp.Diff(unit, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("Get mismatch (-want +got):\n%s", diff)
	}
}

func TestPutDeduplicates(t *testing.T) {
	s := openTemp(t)
	h1, err := s.Put(asm.MustCompile("a", "LOAD_SELF\nRETURN"))
	if err != nil {
		t.Fatal(err)
	}
	h2, err := s.Put(asm.MustCompile("a", "LOAD_SELF\nRETURN"))
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Errorf("hashes differ: %s vs %s", h1, h2)
	}
	entries, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("List returned %d entries, want 1", len(entries))
	}
}

func TestResolve(t *testing.T) {
	s := openTemp(t)
	hash, err := s.Put(asm.MustCompile("one", "LOAD_CONST $1\nRETURN"))
	if err != nil {
		t.Fatal(err)
	}

	got, err := s.Resolve(hash[:8])
	if err != nil || got != hash {
		t.Errorf("Resolve(%s) = %q, %v; want %q", hash[:8], got, err, hash)
	}
	if _, err := s.Resolve("zz"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Resolve(zz) error = %v, want ErrNotFound", err)
	}
	if _, err := s.Resolve(""); !errors.Is(err, ErrNotFound) {
		t.Errorf("Resolve(\"\") error = %v, want ErrNotFound", err)
	}
}

func TestResolveAmbiguous(t *testing.T) {
	s := openTemp(t)
	// Every hex hash starts with one of sixteen digits; seventeen units
	// guarantee a shared first digit.
	seen := map[byte]bool{}
	var shared byte
	for i := 0; i < 17; i++ {
		h, err := s.Put(asm.MustCompile("u", fmt.Sprintf("LOAD_CONST $%d\nRETURN", i)))
		if err != nil {
			t.Fatal(err)
		}
		if seen[h[0]] {
			shared = h[0]
		}
		seen[h[0]] = true
	}
	if _, err := s.Resolve(string(shared)); !errors.Is(err, ErrAmbiguous) {
		t.Errorf("Resolve(%c) error = %v, want ErrAmbiguous", shared, err)
	}
}

func TestGetMissing(t *testing.T) {
	s := openTemp(t)
	if _, err := s.Get(Hash([]byte("nothing"))); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get error = %v, want ErrNotFound", err)
	}
}
