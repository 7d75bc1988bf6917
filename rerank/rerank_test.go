package rerank

import (
	"context"
	"fmt"
	"reflect"
	"testing"

	"github.com/rushteam/blogrec/core"
	"github.com/rushteam/blogrec/filter"
	"github.com/rushteam/blogrec/recall"
)

func itemIDs(items []*core.Item) []int64 {
	out := make([]int64, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func newItems(ids ...int64) []*core.Item {
	out := make([]*core.Item, 0, len(ids))
	for _, id := range ids {
		out = append(out, core.NewItem(id))
	}
	return out
}

func seq(from, to int64) []int64 {
	var out []int64
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}

func TestTopNNode(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name   string
		n      int
		params map[string]any
		want   int
	}{
		{"truncate", 3, nil, 3},
		{"shorter than n", 10, nil, 5},
		{"no limit", 0, nil, 5},
		{"request cap wins", 3, map[string]any{core.ParamCap: 4}, 4},
		{"non-positive cap ignored", 2, map[string]any{core.ParamCap: 0}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &TopNNode{N: tt.n}
			got, err := n.Process(ctx, &core.RecommendContext{Params: tt.params}, newItems(1, 2, 3, 4, 5))
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != tt.want {
				t.Errorf("len = %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestSortByIDNode(t *testing.T) {
	in := newItems(5, 1, 3)
	got, err := (&SortByIDNode{}).Process(context.Background(), &core.RecommendContext{}, in)
	if err != nil {
		t.Fatal(err)
	}
	if want := []int64{1, 3, 5}; !reflect.DeepEqual(itemIDs(got), want) {
		t.Errorf("order = %v, want %v", itemIDs(got), want)
	}
	if in[0].ID != 5 {
		t.Error("input slice was reordered")
	}
}

func TestEnrichNode(t *testing.T) {
	d := core.NewDataset([]core.Post{
		{ID: 1, Title: "One", Content: "a", Category: "Tech"},
		{ID: 2, Title: "Two", Content: "b", Category: "Food"},
	}, nil, nil)
	got, err := (&EnrichNode{Posts: d}).Process(context.Background(), &core.RecommendContext{}, newItems(2, 9, 1))
	if err != nil {
		t.Fatal(err)
	}
	if want := []int64{2, 1}; !reflect.DeepEqual(itemIDs(got), want) {
		t.Fatalf("ids = %v, want %v", itemIDs(got), want)
	}
	if got[0].Title() != "Two" || got[0].Category() != "Food" {
		t.Errorf("meta = %+v", got[0].Meta)
	}
}

// backfillFixture 构造 40 篇文章：1-20 属于 Tech，21-40 属于 Food。
// 热门榜单依次为 40, 39, ..., 1。
func backfillFixture() (*core.Dataset, []recall.Ranked) {
	var posts []core.Post
	for id := int64(1); id <= 40; id++ {
		cat := "Tech"
		if id > 20 {
			cat = "Food"
		}
		posts = append(posts, core.Post{ID: id, Title: fmt.Sprintf("post %d", id), Content: fmt.Sprintf("body %d", id), Category: cat})
	}
	var ranked []recall.Ranked
	for id := int64(40); id >= 1; id-- {
		ranked = append(ranked, recall.Ranked{PostID: id, Mean: float64(id) / 10, Count: 1})
	}
	return core.NewDataset(posts, nil, []core.Preference{
		{UserID: 9, Categories: []string{" food "}},
		{UserID: 10, Categories: nil},
	}), ranked
}

func TestBackfillNode(t *testing.T) {
	ctx := context.Background()
	d, ranked := backfillFixture()

	tests := []struct {
		name string
		rctx *core.RecommendContext
		in   []int64
		cap  int
		want []int64
	}{
		{
			// 12 条候选 + 分类命中的热门文章，补足到 20 条
			name: "fills to cap from matching categories",
			rctx: &core.RecommendContext{UserID: 1, Preferences: []string{"Food"}},
			in:   seq(1, 12),
			cap:  20,
			want: append(seq(1, 12), 40, 39, 38, 37, 36, 35, 34, 33),
		},
		{
			name: "stored profile overrides request labels",
			rctx: &core.RecommendContext{UserID: 9, Preferences: []string{"Tech"}},
			in:   seq(1, 18),
			cap:  20,
			want: append(seq(1, 18), 40, 39),
		},
		{
			// 登记过但为空的偏好同样优先于请求标签
			name: "recorded empty profile overrides request labels",
			rctx: &core.RecommendContext{UserID: 10, Preferences: []string{"Food"}},
			in:   []int64{1},
			cap:  20,
			want: []int64{1},
		},
		{
			name: "skips posts already present",
			rctx: &core.RecommendContext{UserID: 1, Preferences: []string{"tech"}},
			in:   []int64{20, 19},
			cap:  5,
			want: []int64{20, 19, 18, 17, 16},
		},
		{
			name: "no target categories",
			rctx: &core.RecommendContext{UserID: 1},
			in:   []int64{1},
			cap:  20,
			want: []int64{1},
		},
		{
			name: "already full",
			rctx: &core.RecommendContext{UserID: 1, Preferences: []string{"Food"}},
			in:   seq(1, 20),
			cap:  20,
			want: seq(1, 20),
		},
		{
			name: "request cap",
			rctx: &core.RecommendContext{UserID: 1, Preferences: []string{"Food"}, Params: map[string]any{core.ParamCap: 3}},
			in:   []int64{1},
			cap:  20,
			want: []int64{1, 40, 39},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &BackfillNode{Cap: tt.cap, Ranked: ranked, Posts: d, Profiles: d}
			got, err := n.Process(ctx, tt.rctx, newItems(tt.in...))
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(itemIDs(got), tt.want) {
				t.Errorf("ids = %v, want %v", itemIDs(got), tt.want)
			}
			for _, it := range got[len(tt.in):] {
				if it.Category() == "" {
					t.Errorf("backfilled post %d has no category", it.ID)
				}
				if lbl, ok := it.Labels["recall_source"]; !ok || lbl.Value != recall.SourcePopularity {
					t.Errorf("backfilled post %d label = %+v", it.ID, lbl)
				}
			}
		})
	}
}

func TestBackfillNode_Filters(t *testing.T) {
	d, ranked := backfillFixture()
	n := &BackfillNode{
		Cap:      3,
		Ranked:   ranked,
		Posts:    d,
		Profiles: d,
		Filters:  []filter.Filter{&filter.BlacklistFilter{ItemIDs: []int64{40}}},
	}
	got, err := n.Process(context.Background(), &core.RecommendContext{UserID: 1, Preferences: []string{"Food"}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if want := []int64{39, 38, 37}; !reflect.DeepEqual(itemIDs(got), want) {
		t.Errorf("ids = %v, want %v", itemIDs(got), want)
	}
}

func TestDiversity(t *testing.T) {
	mk := func(id int64, cat string) *core.Item {
		it := core.NewItem(id)
		it.SetPost(core.Post{ID: id, Title: fmt.Sprintf("post %d", id), Category: cat})
		return it
	}
	in := []*core.Item{
		mk(1, "Tech"), mk(2, "tech "), mk(3, "Food"), mk(4, ""), mk(5, "TECH"), mk(6, "food"), mk(7, ""),
	}
	tests := []struct {
		name string
		max  int
		want []int64
	}{
		{"default one per category", 0, []int64{1, 3, 4, 7}},
		{"two per category", 2, []int64{1, 2, 3, 4, 6, 7}},
		{"large limit keeps all", 10, []int64{1, 2, 3, 4, 5, 6, 7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &Diversity{MaxPerCategory: tt.max}
			got, err := n.Process(context.Background(), &core.RecommendContext{}, in)
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(itemIDs(got), tt.want) {
				t.Errorf("ids = %v, want %v", itemIDs(got), tt.want)
			}
		})
	}
}
