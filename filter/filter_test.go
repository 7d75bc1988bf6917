package filter

import (
	"context"
	"reflect"
	"testing"

	"github.com/rushteam/blogrec/core"
	"github.com/rushteam/blogrec/store"
)

func items(ids ...int64) []*core.Item {
	out := make([]*core.Item, 0, len(ids))
	for _, id := range ids {
		out = append(out, core.NewItem(id))
	}
	return out
}

func ids(items []*core.Item) []int64 {
	out := make([]int64, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func TestFilterNode(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	defer kv.Close()

	if err := SaveIDs(ctx, kv, "blacklist", []int64{3}); err != nil {
		t.Fatal(err)
	}
	block := &UserBlockFilter{Store: kv, KeyPrefix: "blocked"}
	if err := SaveIDs(ctx, kv, block.Key(7), []int64{4}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		filters []Filter
		userID  int64
		want    []int64
	}{
		{"no filters", nil, 7, []int64{1, 2, 3, 4, 5}},
		{"static blacklist", []Filter{&BlacklistFilter{ItemIDs: []int64{1, 5}}}, 7, []int64{2, 3, 4}},
		{"stored blacklist", []Filter{&BlacklistFilter{Store: kv, Key: "blacklist"}}, 7, []int64{1, 2, 4, 5}},
		{"missing blacklist key", []Filter{&BlacklistFilter{Store: kv, Key: "nope"}}, 7, []int64{1, 2, 3, 4, 5}},
		{"user block", []Filter{block}, 7, []int64{1, 2, 3, 5}},
		{"other user unaffected", []Filter{block}, 8, []int64{1, 2, 3, 4, 5}},
		{"combined", []Filter{&BlacklistFilter{Store: kv, Key: "blacklist"}, block}, 7, []int64{1, 2, 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rctx := &core.RecommendContext{UserID: tt.userID}
			n := &FilterNode{Filters: tt.filters}
			got, err := n.Process(ctx, rctx, items(1, 2, 3, 4, 5))
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(ids(got), tt.want) {
				t.Errorf("kept %v, want %v", ids(got), tt.want)
			}
		})
	}
}

func TestFilterNode_RecordsReasons(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	defer kv.Close()
	block := &UserBlockFilter{Store: kv, KeyPrefix: "blocked"}
	if err := SaveIDs(ctx, kv, block.Key(7), []int64{4, 5}); err != nil {
		t.Fatal(err)
	}

	rctx := &core.RecommendContext{UserID: 7}
	n := &FilterNode{Filters: []Filter{&BlacklistFilter{ItemIDs: []int64{3}}, block}}
	if _, err := n.Process(ctx, rctx, items(1, 2, 3, 4, 5)); err != nil {
		t.Fatal(err)
	}
	lbl, ok := rctx.GetLabel("filtered")
	if !ok {
		t.Fatal("filtered label missing")
	}
	if got, want := lbl.Values(), []string{"filter.blacklist", "filter.user_block"}; !reflect.DeepEqual(got, want) {
		t.Errorf("filtered = %v, want %v", got, want)
	}

	// 没有过滤掉任何文章时不写标签
	clean := &core.RecommendContext{UserID: 8}
	if _, err := n.Process(ctx, clean, items(1, 2)); err != nil {
		t.Fatal(err)
	}
	if _, ok := clean.GetLabel("filtered"); ok {
		t.Error("unexpected filtered label")
	}
}

func TestFilterNode_CorruptListKeepsItems(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	defer kv.Close()
	_ = kv.Set(ctx, "blacklist", []byte("not json"))

	n := &FilterNode{Filters: []Filter{&BlacklistFilter{Store: kv, Key: "blacklist"}}}
	got, err := n.Process(ctx, &core.RecommendContext{}, items(1, 2))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("kept %v, want both items", ids(got))
	}
}

func TestExprFilter(t *testing.T) {
	ctx := context.Background()
	post := func(id int64, cat string) *core.Item {
		it := core.NewItem(id)
		it.SetPost(core.Post{ID: id, Title: "t", Category: cat})
		return it
	}
	rctx := &core.RecommendContext{UserID: 1, Preferences: []string{"Tech"}}

	tests := []struct {
		expr string
		want []int64
	}{
		{`item.category != "Sponsored"`, []int64{1, 3}},
		{`item.category in rctx.preferences`, []int64{1}},
		{`item.id > 1`, []int64{2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			f, err := NewExprFilter(tt.expr)
			if err != nil {
				t.Fatalf("NewExprFilter: %v", err)
			}
			n := &FilterNode{Filters: []Filter{f}}
			got, err := n.Process(ctx, rctx, []*core.Item{post(1, "Tech"), post(2, "Sponsored"), post(3, "Food")})
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(ids(got), tt.want) {
				t.Errorf("kept %v, want %v", ids(got), tt.want)
			}
		})
	}

	if _, err := NewExprFilter(`item.id +`); err == nil {
		t.Error("expected compile error")
	}
}
