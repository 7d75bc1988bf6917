package rerank

import (
	"context"
	"sort"

	"github.com/rushteam/blogrec/core"
	"github.com/rushteam/blogrec/pipeline"
)

// SortByIDNode 按文章 ID 升序排列候选集。
// 并集本身没有顺序，融合阶段用它得到确定性的截断结果。
type SortByIDNode struct{}

func (n *SortByIDNode) Name() string        { return "rerank.sort_id" }
func (n *SortByIDNode) Kind() pipeline.Kind { return pipeline.KindReRank }

func (n *SortByIDNode) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	out := make([]*core.Item, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
