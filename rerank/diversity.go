package rerank

import (
	"context"

	"github.com/rushteam/blogrec/core"
	"github.com/rushteam/blogrec/pipeline"
)

// Diversity 限制同一分类的文章条数，超出的按出现顺序丢弃。
// 分类比较忽略大小写和首尾空白，没有分类的文章不受限制。
type Diversity struct {
	// MaxPerCategory 默认 1
	MaxPerCategory int
}

func (n *Diversity) Name() string        { return "rerank.diversity" }
func (n *Diversity) Kind() pipeline.Kind { return pipeline.KindReRank }

func (n *Diversity) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(items) == 0 {
		return items, nil
	}
	limit := n.MaxPerCategory
	if limit <= 0 {
		limit = 1
	}

	counts := make(map[string]int, 16)
	out := make([]*core.Item, 0, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		cat := core.NormalizeCategory(it.Category())
		if cat == "" {
			out = append(out, it)
			continue
		}
		if counts[cat] >= limit {
			continue
		}
		counts[cat]++
		out = append(out, it)
	}
	return out, nil
}
