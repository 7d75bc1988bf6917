package recall

import (
	"context"
	"errors"

	"github.com/rushteam/blogrec/core"
)

// SimilarityIndex 是内容召回依赖的索引能力，index.Index 实现了它。
type SimilarityIndex interface {
	ItemsAboveThreshold(itemID int64, threshold float64) ([]int64, error)
}

// ContentRecall 是基于内容的召回源（Content-based Recommendation）。
//
// 核心思想："喜欢某篇文章的人，也会喜欢内容相近的文章"
//
// 算法流程：
//  1. 取用户评分 >= SeedThreshold 的文章作为种子
//  2. 对每个种子，从索引中取相似度 > SimilarityThreshold 的文章
//  3. 排除种子本身，按"种子顺序、行号顺序"拼接，不去重、不按相似度重排
//
// 冷启动用户（没有高分文章）不产生内容信号。
type ContentRecall struct {
	// Index 为 nil 表示索引不可用，Recall 返回 core.ErrIndexUnavailable
	Index   SimilarityIndex
	Ratings RatingSource

	// SeedThreshold 种子评分下限（含），<=0 时使用默认 3.5
	SeedThreshold float64

	// SimilarityThreshold 相似度阈值（不含），<=0 时使用默认 0.2
	SimilarityThreshold float64

	Config core.RecallConfig
}

func (r *ContentRecall) Name() string { return SourceContent }

func (r *ContentRecall) Recall(
	ctx context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	if r.Index == nil {
		return nil, core.ErrIndexUnavailable
	}
	if r.Ratings == nil || rctx == nil {
		return nil, nil
	}
	cfg := core.Defaults(r.Config)
	seedThreshold := r.SeedThreshold
	if seedThreshold <= 0 {
		seedThreshold = cfg.DefaultSeedThreshold()
	}
	simThreshold := r.SimilarityThreshold
	if simThreshold <= 0 {
		simThreshold = cfg.DefaultSimilarityThreshold()
	}

	var seeds []int64
	seedSet := make(map[int64]struct{})
	for _, rt := range r.Ratings.UserRatings(rctx.UserID) {
		if rt.Score >= seedThreshold {
			if _, dup := seedSet[rt.PostID]; !dup {
				seeds = append(seeds, rt.PostID)
			}
			seedSet[rt.PostID] = struct{}{}
		}
	}
	if len(seeds) == 0 {
		return nil, nil
	}

	var out []*core.Item
	for _, seed := range seeds {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		similar, err := r.Index.ItemsAboveThreshold(seed, simThreshold)
		if err != nil {
			if errors.Is(err, core.ErrItemNotIndexed) {
				continue
			}
			return nil, err
		}
		for _, id := range similar {
			if _, isSeed := seedSet[id]; isSeed {
				continue
			}
			out = append(out, core.NewItem(id))
		}
	}
	return out, nil
}
