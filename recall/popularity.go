package recall

import (
	"context"
	"sort"
	"strconv"

	"github.com/rushteam/blogrec/core"
	"github.com/rushteam/blogrec/pipeline"
)

// Ranked 是热门榜单中的一项。
type Ranked struct {
	PostID int64
	Mean   float64
	Count  int
}

// RankByMeanRating 按平均评分降序排列所有被评过分的文章，平均分相同时按文章 ID 升序。
// 没有评分的文章不进入榜单；只统计快照语料中存在的文章。
func RankByMeanRating(d *core.Dataset) []Ranked {
	if d == nil {
		return nil
	}
	type acc struct {
		sum   float64
		count int
	}
	byPost := make(map[int64]*acc)
	for _, r := range d.Ratings() {
		if _, ok := d.Post(r.PostID); !ok {
			continue
		}
		a := byPost[r.PostID]
		if a == nil {
			a = &acc{}
			byPost[r.PostID] = a
		}
		a.sum += r.Score
		a.count++
	}
	out := make([]Ranked, 0, len(byPost))
	for id, a := range byPost {
		out = append(out, Ranked{PostID: id, Mean: a.sum / float64(a.count), Count: a.count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Mean != out[j].Mean {
			return out[i].Mean > out[j].Mean
		}
		return out[i].PostID < out[j].PostID
	})
	return out
}

// Popularity 是热门召回源。
//   - Ranked 非空时直接使用快照算出的榜单
//   - 否则从 Store 的有序集合读取（ZRange，降序），用于没有快照时的降级
//
// Popularity 同时实现了 Source 和 Node 接口，可以直接在 Pipeline 中使用。
type Popularity struct {
	Ranked []Ranked
	Store  core.KeyValueStore
	Key    string // 有序集合 key，例如 "blogrec:popularity"
	Limit  int    // 最多返回多少条，<=0 时不限制（Store 读取时默认 100）
}

func (r *Popularity) Name() string        { return SourcePopularity }
func (r *Popularity) Kind() pipeline.Kind { return pipeline.KindRecall }

// Process 实现 Node 接口，直接调用 Recall
func (r *Popularity) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	return r.Recall(ctx, rctx)
}

// Recall 实现 Source 接口
func (r *Popularity) Recall(
	ctx context.Context,
	_ *core.RecommendContext,
) ([]*core.Item, error) {
	if len(r.Ranked) > 0 {
		ranked := r.Ranked
		if r.Limit > 0 && len(ranked) > r.Limit {
			ranked = ranked[:r.Limit]
		}
		out := make([]*core.Item, 0, len(ranked))
		for _, rk := range ranked {
			it := core.NewItem(rk.PostID)
			it.Score = rk.Mean
			out = append(out, it)
		}
		return out, nil
	}

	if r.Store == nil || r.Key == "" {
		return nil, nil
	}
	limit := r.Limit
	if limit <= 0 {
		limit = 100
	}
	members, err := r.Store.ZRange(ctx, r.Key, 0, int64(limit-1))
	if err != nil {
		return nil, err
	}
	out := make([]*core.Item, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, core.NewItem(id))
	}
	return out, nil
}

// PublishPopularity 把榜单整体替换写入有序集合，成员为文章 ID 的十进制字符串。
// 分数写的是名次（第一名分数最高），而不是平均分：
// 有序集合对同分成员按字典序排列，和榜单"文章 ID 升序"的并列规则不一致。
func PublishPopularity(ctx context.Context, kv core.KeyValueStore, key string, ranked []Ranked) error {
	members := make([]core.ScoredMember, 0, len(ranked))
	for i, rk := range ranked {
		members = append(members, core.ScoredMember{
			Member: strconv.FormatInt(rk.PostID, 10),
			Score:  float64(len(ranked) - i),
		})
	}
	return kv.ZReplace(ctx, key, members)
}
