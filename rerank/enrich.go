package rerank

import (
	"context"

	"github.com/rushteam/blogrec/core"
	"github.com/rushteam/blogrec/pipeline"
)

// EnrichNode 从快照中补充标题和分类；快照里找不到的文章被丢弃。
type EnrichNode struct {
	Posts PostLookup
}

func (n *EnrichNode) Name() string        { return "postprocess.enrich" }
func (n *EnrichNode) Kind() pipeline.Kind { return pipeline.KindPostProcess }

func (n *EnrichNode) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if n.Posts == nil {
		return items, nil
	}
	out := make([]*core.Item, 0, len(items))
	for _, it := range items {
		p, ok := n.Posts.Post(it.ID)
		if !ok {
			continue
		}
		it.SetPost(p)
		out = append(out, it)
	}
	return out, nil
}
