package store

import (
	"context"
	"reflect"
	"testing"

	"github.com/rushteam/blogrec/core"
)

func TestMemoryStore_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	defer s.Close()

	if _, err := s.Get(ctx, "missing"); !core.IsStoreNotFound(err) {
		t.Fatalf("Get missing: err = %v, want not found", err)
	}
	if err := s.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get(ctx, "k")
	if err != nil || string(got) != "v" {
		t.Fatalf("Get = %q, %v", got, err)
	}
	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, "k"); !core.IsStoreNotFound(err) {
		t.Errorf("after Delete: err = %v", err)
	}
}

func TestMemoryStore_ZRangeTies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	defer s.Close()

	for _, m := range []core.ScoredMember{{Member: "b", Score: 1}, {Member: "a", Score: 1}, {Member: "c", Score: 3}, {Member: "d", Score: 2}} {
		if err := s.ZAdd(ctx, "z", m.Score, m.Member); err != nil {
			t.Fatal(err)
		}
	}
	tests := []struct {
		name        string
		start, stop int64
		want        []string
	}{
		{"all", 0, -1, []string{"c", "d", "a", "b"}},
		{"prefix", 0, 1, []string{"c", "d"}},
		{"stop past end", 2, 10, []string{"a", "b"}},
		{"empty window", 3, 2, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ZRange(ctx, "z", tt.start, tt.stop)
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ZRange = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMemoryStore_ZReplace(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	defer s.Close()

	_ = s.ZAdd(ctx, "z", 9, "old")
	if err := s.ZReplace(ctx, "z", []core.ScoredMember{{Member: "x", Score: 2}, {Member: "y", Score: 1}}); err != nil {
		t.Fatal(err)
	}
	got, _ := s.ZRange(ctx, "z", 0, -1)
	if want := []string{"x", "y"}; !reflect.DeepEqual(got, want) {
		t.Errorf("ZRange after replace = %v, want %v", got, want)
	}
	if _, err := s.ZScore(ctx, "z", "old"); !core.IsStoreNotFound(err) {
		t.Errorf("old member still present: %v", err)
	}
	if score, err := s.ZScore(ctx, "z", "x"); err != nil || score != 2 {
		t.Errorf("ZScore(x) = %v, %v", score, err)
	}

	if err := s.ZReplace(ctx, "z", nil); err != nil {
		t.Fatal(err)
	}
	if got, _ := s.ZRange(ctx, "z", 0, -1); got != nil {
		t.Errorf("ZRange after clearing = %v", got)
	}
}
