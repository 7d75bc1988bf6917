package engine

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rushteam/blogrec/core"
	"github.com/rushteam/blogrec/filter"
	"github.com/rushteam/blogrec/pipeline"
	"github.com/rushteam/blogrec/pkg/textproc"
	"github.com/rushteam/blogrec/recall"
	"github.com/rushteam/blogrec/store"
)

func newTestEngine(src DataSource, opts ...Option) *Engine {
	base := []Option{WithNormalizer(textproc.New())}
	return New(src, append(base, opts...)...)
}

func postIDs(recs []Recommendation) []int64 {
	out := make([]int64, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.PostID)
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

// fusionFixture：
//   - 文章 1-12 为 Tech，21-35 为 Food
//   - 用户 2 登记偏好 Food，评过 1-12
//   - 用户 3 评过 21-35，分数从 5.0 递减到 3.6
//
// 用户 1 没有评分也没有登记偏好，请求时带 Food 标签：
// 偏好召回匹配到用户 2，得到 12 篇；再从热门里补 8 篇 Food 文章。
func fusionFixture() *StaticSource {
	var posts []core.Post
	for id := int64(1); id <= 12; id++ {
		posts = append(posts, core.Post{ID: id, Title: fmt.Sprintf("tech %d", id), Content: fmt.Sprintf("compilers topic%d", id), Category: "Tech"})
	}
	for id := int64(21); id <= 35; id++ {
		posts = append(posts, core.Post{ID: id, Title: fmt.Sprintf("food %d", id), Content: fmt.Sprintf("recipes dish%d", id), Category: "Food"})
	}
	var ratings []core.Rating
	for id := int64(1); id <= 12; id++ {
		ratings = append(ratings, core.Rating{UserID: 2, PostID: id, Score: 3})
	}
	for i, id := 0, int64(21); id <= 35; i, id = i+1, id+1 {
		ratings = append(ratings, core.Rating{UserID: 3, PostID: id, Score: 5 - float64(i)/10})
	}
	prefs := []core.Preference{{UserID: 2, Categories: []string{"Food"}}}
	return NewStaticSource(posts, ratings, prefs)
}

func TestEngine_BackfillToCap(t *testing.T) {
	e := newTestEngine(fusionFixture())
	resp, err := e.Recommend(context.Background(), Request{UserID: 1, Preferences: []string{"Food"}})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	want := append(seq(1, 12), seq(21, 28)...)
	if got := postIDs(resp.Items); !reflect.DeepEqual(got, want) {
		t.Fatalf("ids = %v, want %v", got, want)
	}
	if resp.Degraded || resp.Version != 1 {
		t.Errorf("Degraded = %v, Version = %d", resp.Degraded, resp.Version)
	}
	if got := resp.Items[0].Sources; !reflect.DeepEqual(got, []string{recall.SourcePreference}) {
		t.Errorf("first item sources = %v", got)
	}
	last := resp.Items[len(resp.Items)-1]
	if !reflect.DeepEqual(last.Sources, []string{recall.SourcePopularity}) || last.Category != "Food" || last.Title != "food 28" {
		t.Errorf("last item = %+v", last)
	}
	if err := resp.SignalErrors[recall.SourceCollaborative]; !errors.Is(err, core.ErrNoCollaborativeSignal) {
		t.Errorf("collaborative error = %v", err)
	}
}

func TestEngine_ColdStartEmpty(t *testing.T) {
	src := NewStaticSource([]core.Post{
		{ID: 1, Title: "a", Content: "golang channels"},
		{ID: 2, Title: "b", Content: "sourdough bread"},
	}, nil, nil)
	resp, err := newTestEngine(src).Recommend(context.Background(), Request{UserID: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Items) != 0 {
		t.Errorf("items = %v, want none", postIDs(resp.Items))
	}
}

func TestEngine_ContentSignal(t *testing.T) {
	src := NewStaticSource([]core.Post{
		{ID: 1, Title: "chan", Content: "golang channels goroutines", Category: "Tech"},
		{ID: 2, Title: "bread", Content: "baking sourdough bread", Category: "Food"},
		{ID: 3, Title: "sched", Content: "golang goroutines scheduler", Category: "Tech"},
	}, []core.Rating{{UserID: 1, PostID: 1, Score: 5}}, nil)
	resp, err := newTestEngine(src).Recommend(context.Background(), Request{UserID: 1})
	if err != nil {
		t.Fatal(err)
	}
	if got := postIDs(resp.Items); !reflect.DeepEqual(got, []int64{3}) {
		t.Fatalf("ids = %v, want [3]", got)
	}
	if !reflect.DeepEqual(resp.Items[0].Sources, []string{recall.SourceContent}) {
		t.Errorf("sources = %v", resp.Items[0].Sources)
	}
}

func TestEngine_RequestCap(t *testing.T) {
	e := newTestEngine(fusionFixture())
	resp, err := e.Recommend(context.Background(), Request{UserID: 1, Preferences: []string{"Food"}, Cap: 5})
	if err != nil {
		t.Fatal(err)
	}
	if got := postIDs(resp.Items); !reflect.DeepEqual(got, seq(1, 5)) {
		t.Errorf("ids = %v, want 1..5", got)
	}
}

func TestEngine_Deterministic(t *testing.T) {
	e := newTestEngine(fusionFixture())
	req := Request{UserID: 1, Preferences: []string{"Food", "Tech"}}
	first, err := e.Recommend(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := e.Recommend(context.Background(), req)
			if err != nil {
				errs <- err
				return
			}
			if !reflect.DeepEqual(resp.Items, first.Items) {
				errs <- fmt.Errorf("items differ: %v vs %v", postIDs(resp.Items), postIDs(first.Items))
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	seen := make(map[int64]bool)
	for _, r := range first.Items {
		if seen[r.PostID] {
			t.Errorf("duplicate post %d", r.PostID)
		}
		seen[r.PostID] = true
	}
	if len(first.Items) > e.Options().Cap {
		t.Errorf("len = %d exceeds cap", len(first.Items))
	}
}

func TestEngine_InvalidRequest(t *testing.T) {
	e := newTestEngine(fusionFixture())
	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"blank label", Request{UserID: 1, Preferences: []string{"  "}}, core.ErrInvalidPreferences},
		{"empty label", Request{UserID: 1, Preferences: []string{"Tech", ""}}, core.ErrInvalidPreferences},
		{"too long", Request{UserID: 1, Preferences: []string{strings.Repeat("x", MaxLabelLength+1)}}, core.ErrInvalidPreferences},
		{"control char", Request{UserID: 1, Preferences: []string{"Tech\x07"}}, core.ErrInvalidPreferences},
		{"user id", Request{UserID: 0}, core.ErrInvalidRequest},
		{"negative cap", Request{UserID: 1, Cap: -1}, core.ErrInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Recommend(context.Background(), tt.req)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if !core.IsInvalidInput(err) {
				t.Errorf("IsInvalidInput(%v) = false", err)
			}
		})
	}
	if e.Version() != 0 {
		t.Error("invalid requests must not build a snapshot")
	}
}

func TestEngine_IndexUnavailable(t *testing.T) {
	src := NewStaticSource([]core.Post{
		{ID: 1, Title: "x", Content: "!!", Category: "Tech"},
		{ID: 2, Title: "y", Content: "??", Category: "Tech"},
	}, []core.Rating{
		{UserID: 1, PostID: 1, Score: 5},
		{UserID: 2, PostID: 1, Score: 4},
		{UserID: 2, PostID: 2, Score: 4},
	}, nil)
	e := newTestEngine(src)
	resp, err := e.Recommend(context.Background(), Request{UserID: 1})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if err := resp.SignalErrors[recall.SourceContent]; !errors.Is(err, core.ErrIndexUnavailable) {
		t.Errorf("content error = %v, want index unavailable", err)
	}
	if got := postIDs(resp.Items); !reflect.DeepEqual(got, []int64{2}) {
		t.Errorf("ids = %v, want [2] from collaborative filtering", got)
	}
	snap, _ := e.Snapshot(context.Background())
	if snap.Index != nil || !core.IsUnavailable(snap.IndexErr) {
		t.Errorf("snapshot index = %v, err = %v", snap.Index, snap.IndexErr)
	}
}

func TestEngine_Invalidate(t *testing.T) {
	src := fusionFixture()
	e := newTestEngine(src)
	ctx := context.Background()

	resp, err := e.Recommend(ctx, Request{UserID: 4, Preferences: []string{"Food"}})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Version != 1 {
		t.Fatalf("version = %d, want 1", resp.Version)
	}

	// 没有失效信号时不会看到新数据
	src.AddRatings(core.Rating{UserID: 9, PostID: 35, Score: 5})
	resp, _ = e.Recommend(ctx, Request{UserID: 4, Preferences: []string{"Food"}})
	if resp.Version != 1 {
		t.Errorf("version = %d before invalidation", resp.Version)
	}

	e.Invalidate("rating written")
	resp, err = e.Recommend(ctx, Request{UserID: 4, Preferences: []string{"Food"}})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Version != 2 || e.Version() != 2 {
		t.Errorf("version = %d / %d, want 2", resp.Version, e.Version())
	}
	pop, err := e.Popular(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if got := postIDs(pop); !reflect.DeepEqual(got, []int64{21, 22, 23}) {
		t.Errorf("popular = %v", got)
	}
	if pop[0].Score != 5 {
		t.Errorf("top score = %v", pop[0].Score)
	}
}

func TestEngine_PreferenceToggle(t *testing.T) {
	e := newTestEngine(fusionFixture(), WithPreferenceRecall(false))
	resp, err := e.Recommend(context.Background(), Request{UserID: 1, Preferences: []string{"Food"}})
	if err != nil {
		t.Fatal(err)
	}
	if got := postIDs(resp.Items); !reflect.DeepEqual(got, seq(21, 35)) {
		t.Fatalf("ids = %v, want 21..35", got)
	}
	for _, r := range resp.Items {
		if !reflect.DeepEqual(r.Sources, []string{recall.SourcePopularity}) {
			t.Errorf("post %d sources = %v", r.PostID, r.Sources)
		}
	}
	if _, ok := resp.SignalErrors[recall.SourcePreference]; ok {
		t.Error("disabled preference recall must not report an error")
	}
}

func TestEngine_History(t *testing.T) {
	e := newTestEngine(fusionFixture())
	hist, err := e.History(context.Background(), 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != 15 || hist[0].PostID != 21 || hist[0].Score != 5 || hist[0].Category != "Food" {
		t.Errorf("history = %+v", hist)
	}
}

// slowSource 在 delay 为正时每次加载都先等待。
type slowSource struct {
	DataSource
	delay atomic.Int64
}

func (s *slowSource) LoadDataset(ctx context.Context) (*core.Dataset, error) {
	time.Sleep(time.Duration(s.delay.Load()))
	return s.DataSource.LoadDataset(ctx)
}

func TestEngine_DeadlineDegradesToPopularity(t *testing.T) {
	src := &slowSource{DataSource: fusionFixture()}
	e := newTestEngine(src, WithTimeout(30*time.Millisecond))
	ctx := context.Background()
	if err := e.Warm(ctx); err != nil {
		t.Fatal(err)
	}

	src.delay.Store(int64(300 * time.Millisecond))
	e.Invalidate("test")
	resp, err := e.Recommend(ctx, Request{UserID: 1, Preferences: []string{"Tech"}, Cap: 4})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if !resp.Degraded || resp.Version != 1 {
		t.Errorf("Degraded = %v, Version = %d", resp.Degraded, resp.Version)
	}
	// 分类过滤后的热门：Tech 文章平均分都是 3，按 ID 升序
	if got := postIDs(resp.Items); !reflect.DeepEqual(got, []int64{1, 2, 3, 4}) {
		t.Errorf("ids = %v", got)
	}

	resp, _ = e.Recommend(ctx, Request{UserID: 1, Cap: 2})
	if got := postIDs(resp.Items); !resp.Degraded || !reflect.DeepEqual(got, []int64{21, 22}) {
		t.Errorf("unfiltered degrade = %v (degraded %v)", got, resp.Degraded)
	}

	src.delay.Store(0)
	if err := e.Warm(ctx); err != nil {
		t.Fatal(err)
	}
	if e.Version() != 2 {
		t.Errorf("version after background rebuild = %d, want 2", e.Version())
	}
}

func TestEngine_DeadlineWithoutSnapshotReadsStore(t *testing.T) {
	kv := store.NewMemoryStore()
	defer kv.Close()
	ctx := context.Background()
	if err := recall.PublishPopularity(ctx, kv, store.PopularityKey, []recall.Ranked{
		{PostID: 7, Mean: 4}, {PostID: 3, Mean: 4}, {PostID: 9, Mean: 2},
	}); err != nil {
		t.Fatal(err)
	}

	src := &slowSource{DataSource: fusionFixture()}
	src.delay.Store(int64(300 * time.Millisecond))
	e := newTestEngine(src, WithTimeout(20*time.Millisecond), WithKeyValueStore(kv, ""))
	resp, err := e.Recommend(ctx, Request{UserID: 1, Cap: 2})
	if err != nil {
		t.Fatal(err)
	}
	if !resp.Degraded || resp.Version != 0 {
		t.Errorf("Degraded = %v, Version = %d", resp.Degraded, resp.Version)
	}
	if got := postIDs(resp.Items); !reflect.DeepEqual(got, []int64{7, 3}) {
		t.Errorf("ids = %v, want [7 3]", got)
	}

	// 后台重建完成后，新榜单被发布到 KV
	src.delay.Store(0)
	if err := e.Warm(ctx); err != nil {
		t.Fatal(err)
	}
	top, err := kv.ZRange(ctx, store.PopularityKey, 0, 0)
	if err != nil || !reflect.DeepEqual(top, []string{"21"}) {
		t.Errorf("published top = %v, %v", top, err)
	}
}

func TestEngine_CallerCancel(t *testing.T) {
	e := newTestEngine(fusionFixture())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Recommend(ctx, Request{UserID: 1}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestEngine_BlacklistAppliesToEveryPath(t *testing.T) {
	e := newTestEngine(fusionFixture(), WithBlacklist(1, 21))
	ctx := context.Background()

	resp, err := e.Recommend(ctx, Request{UserID: 1, Preferences: []string{"Food"}})
	if err != nil {
		t.Fatal(err)
	}
	// 并集 1-12 去掉 1，补足时跳过 21
	want := append(seq(2, 12), seq(22, 30)...)
	if got := postIDs(resp.Items); !reflect.DeepEqual(got, want) {
		t.Errorf("recommend ids = %v, want %v", got, want)
	}

	pop, err := e.Popular(ctx, 5)
	if err != nil {
		t.Fatal(err)
	}
	if got := postIDs(pop); !reflect.DeepEqual(got, seq(22, 26)) {
		t.Errorf("popular ids = %v", got)
	}
}

func mustPipeline(t *testing.T, yaml string) *pipeline.Config {
	t.Helper()
	cfg, err := pipeline.ParseYAML([]byte(yaml))
	if err != nil {
		t.Fatalf("ParseYAML: %v", err)
	}
	return cfg
}

func TestEngine_CustomPipeline(t *testing.T) {
	tests := []struct {
		name  string
		chain string
		prefs []string
		want  []int64
	}{
		{
			name: "filters before backfill apply to union and backfill",
			chain: `
pipeline:
  name: filtered
  nodes:
    - type: recall.fanout
      config:
        sources: [content, collaborative, {type: preference}]
    - type: postprocess.enrich
    - type: filter.expr
      config:
        expr: 'item.id != 22'
    - type: filter.blacklist
      config:
        item_ids: [2, 21]
    - type: rerank.sort_id
    - type: rerank.topn
    - type: rerank.backfill
    - type: rerank.topn
`,
			prefs: []string{"Food"},
			want:  append(append([]int64{1}, seq(3, 12)...), seq(23, 31)...),
		},
		{
			name: "category expression removes every backfill candidate",
			chain: `
pipeline:
  name: no-food
  nodes:
    - type: recall.fanout
      config:
        sources: [preference]
    - type: postprocess.enrich
    - type: filter.expr
      config:
        expr: 'item.category != "Food"'
    - type: rerank.sort_id
    - type: rerank.backfill
`,
			prefs: []string{"Food"},
			want:  seq(1, 12),
		},
		{
			name: "popularity with user block, stored blacklist and diversity",
			chain: `
pipeline:
  name: popular
  nodes:
    - type: recall.popularity
      config:
        limit: 10
    - type: postprocess.enrich
    - type: filter.user_block
    - type: filter.blacklist
      config:
        key: blogrec:hidden
    - type: rerank.diversity
      config:
        max_per_category: 2
`,
			want: []int64{22, 24},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			kv := store.NewMemoryStore()
			defer kv.Close()
			if err := filter.SaveIDs(ctx, kv, "blogrec:blocked:1", []int64{21}); err != nil {
				t.Fatal(err)
			}
			if err := filter.SaveIDs(ctx, kv, "blogrec:hidden", []int64{23}); err != nil {
				t.Fatal(err)
			}

			e := newTestEngine(fusionFixture(),
				WithPipeline(mustPipeline(t, tt.chain)),
				WithKeyValueStore(kv, ""),
			)
			resp, err := e.Recommend(ctx, Request{UserID: 1, Preferences: tt.prefs})
			if err != nil {
				t.Fatal(err)
			}
			if got := postIDs(resp.Items); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ids = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEngine_UnknownPipelineNode(t *testing.T) {
	e := newTestEngine(fusionFixture(), WithPipeline(mustPipeline(t, `
pipeline:
  nodes:
    - type: rerank.shuffle
`)))
	if _, err := e.Recommend(context.Background(), Request{UserID: 1}); err == nil || !strings.Contains(err.Error(), "rerank.shuffle") {
		t.Errorf("err = %v, want unknown node error", err)
	}
}
