package conv

import (
	"reflect"
	"testing"
)

func TestConfigGetInt64(t *testing.T) {
	cfg := map[string]any{"int": 3, "float": 7.0, "int64": int64(9), "str": "12", "bool": true}
	tests := []struct {
		key  string
		want int64
	}{
		{"int", 3},
		{"float", 7},
		{"int64", 9},
		{"str", -1},
		{"bool", -1},
		{"missing", -1},
	}
	for _, tt := range tests {
		if got := ConfigGetInt64(cfg, tt.key, -1); got != tt.want {
			t.Errorf("ConfigGetInt64(%q) = %d, want %d", tt.key, got, tt.want)
		}
	}
	if got := ConfigGetInt64(nil, "x", 5); got != 5 {
		t.Errorf("nil map = %d, want 5", got)
	}
}

func TestConfigGet(t *testing.T) {
	cfg := map[string]any{"name": "content", "dedup": false}
	if got := ConfigGet(cfg, "name", ""); got != "content" {
		t.Errorf("name = %q", got)
	}
	if got := ConfigGet(cfg, "dedup", true); got {
		t.Error("dedup should be false")
	}
	if got := ConfigGet(cfg, "name", 0); got != 0 {
		t.Errorf("type mismatch = %d, want default", got)
	}
}

func TestSliceAnyToInt64(t *testing.T) {
	got := SliceAnyToInt64([]any{1, int64(2), 3.0, "4", "x", nil})
	if want := []int64{1, 2, 3, 4}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if SliceAnyToInt64("not a slice") != nil {
		t.Error("non-slice should give nil")
	}
}
