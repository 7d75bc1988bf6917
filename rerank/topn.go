package rerank

import (
	"context"

	"github.com/rushteam/blogrec/core"
	"github.com/rushteam/blogrec/pipeline"
)

// TopNNode 是截断节点，保证结果不超过 N 条。
// 请求里带了 cap 参数时以请求为准（见 core.RecommendContext.Cap）。
//
// 示例：
//
//	pipeline := &pipeline.Pipeline{
//	    Nodes: []pipeline.Node{
//	        &recall.Fanout{...},
//	        &rerank.SortByIDNode{},
//	        &rerank.TopNNode{N: 20},
//	    },
//	}
type TopNNode struct {
	// N 要保留的物品数量；N <= 0 且请求未指定 cap 时不截断
	N int
}

func (n *TopNNode) Name() string {
	return "rerank.topn"
}

func (n *TopNNode) Kind() pipeline.Kind {
	return pipeline.KindReRank
}

func (n *TopNNode) Process(
	_ context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	limit := rctx.Cap(n.N)
	if limit <= 0 || len(items) <= limit {
		return items, nil
	}
	return items[:limit], nil
}
