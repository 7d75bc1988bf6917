package rerank

import (
	"context"

	"github.com/rushteam/blogrec/core"
	"github.com/rushteam/blogrec/filter"
	"github.com/rushteam/blogrec/pipeline"
	"github.com/rushteam/blogrec/pkg/utils"
	"github.com/rushteam/blogrec/recall"
)

// PostLookup 按 ID 查找文章，core.Dataset 实现了它。
type PostLookup interface {
	Post(id int64) (core.Post, bool)
}

// ProfileLookup 查找用户登记的偏好，core.Dataset 实现了它。
type ProfileLookup interface {
	PreferenceOf(userID int64) (core.Preference, bool)
}

// BackfillNode 在候选集不足 Cap 条时用热门榜单补足。
//
// 目标分类：用户登记过偏好时用登记的分类（登记为空也算登记过），否则用请求携带的偏好标签。
// 沿热门榜单顺序，只取分类命中目标集合、且不在候选集里的文章，直到凑满 Cap。
// 分类比较忽略大小写和首尾空白；目标集合为空时不补足。
type BackfillNode struct {
	Cap      int
	Ranked   []recall.Ranked
	Posts    PostLookup
	Profiles ProfileLookup
	// Filters 对补足的文章同样生效，可为空
	Filters []filter.Filter
}

func (n *BackfillNode) Name() string        { return "rerank.backfill" }
func (n *BackfillNode) Kind() pipeline.Kind { return pipeline.KindReRank }

func (n *BackfillNode) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	limit := rctx.Cap(n.Cap)
	if limit <= 0 || len(items) >= limit || len(n.Ranked) == 0 || n.Posts == nil {
		return items, nil
	}
	targets := n.TargetCategories(rctx)
	if len(targets) == 0 {
		return items, nil
	}

	seen := make(map[int64]struct{}, len(items))
	for _, it := range items {
		seen[it.ID] = struct{}{}
	}
	out := make([]*core.Item, len(items), limit)
	copy(out, items)
	for _, rk := range n.Ranked {
		if len(out) >= limit {
			break
		}
		if _, dup := seen[rk.PostID]; dup {
			continue
		}
		p, ok := n.Posts.Post(rk.PostID)
		if !ok {
			continue
		}
		if _, hit := targets[core.NormalizeCategory(p.Category)]; !hit {
			continue
		}
		it := core.NewItem(rk.PostID)
		it.Score = rk.Mean
		it.SetPost(p)
		it.PutLabel("recall_source", utils.Label{Value: recall.SourcePopularity, Source: "rerank"})
		if n.filtered(ctx, rctx, it) {
			continue
		}
		seen[rk.PostID] = struct{}{}
		out = append(out, it)
	}
	return out, nil
}

// TargetCategories 返回补足使用的目标分类集合（规范形式）。
func (n *BackfillNode) TargetCategories(rctx *core.RecommendContext) map[string]struct{} {
	cats := rctx.Preferences
	if n.Profiles != nil {
		if p, ok := n.Profiles.PreferenceOf(rctx.UserID); ok {
			cats = p.Categories
		}
	}
	out := make(map[string]struct{}, len(cats))
	for _, c := range cats {
		if k := core.NormalizeCategory(c); k != "" {
			out[k] = struct{}{}
		}
	}
	return out
}

func (n *BackfillNode) filtered(ctx context.Context, rctx *core.RecommendContext, it *core.Item) bool {
	for _, f := range n.Filters {
		if drop, err := f.ShouldFilter(ctx, rctx, it); err == nil && drop {
			return true
		}
	}
	return false
}
