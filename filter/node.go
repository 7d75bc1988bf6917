package filter

import (
	"context"

	"github.com/rushteam/blogrec/core"
	"github.com/rushteam/blogrec/pipeline"
	"github.com/rushteam/blogrec/pkg/logging"
	"github.com/rushteam/blogrec/pkg/utils"
)

// FilterNode 是过滤 Node，可以组合多个过滤器进行过滤。
// 如果任何一个过滤器返回 true，该物品就会被过滤掉；过滤器出错时记录日志并保留物品。
type FilterNode struct {
	Filters []Filter
}

func (n *FilterNode) Name() string {
	return "filter.node"
}

func (n *FilterNode) Kind() pipeline.Kind {
	return pipeline.KindFilter
}

func (n *FilterNode) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(n.Filters) == 0 || len(items) == 0 {
		return items, nil
	}

	out := make([]*core.Item, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		reason := ""
		for _, f := range n.Filters {
			ok, err := f.ShouldFilter(ctx, rctx, item)
			if err != nil {
				logging.FromContext(ctx).Warn().Err(err).
					Str("filter", f.Name()).
					Int64("post_id", item.ID).
					Msg("filter failed, keeping item")
				continue
			}
			if ok {
				reason = f.Name()
				break
			}
		}
		if reason != "" {
			rctx.PutLabel("filtered", utils.Label{Value: reason, Source: "filter"})
			continue
		}
		out = append(out, item)
	}
	return out, nil
}
