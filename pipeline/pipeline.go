package pipeline

import (
	"context"

	"github.com/rushteam/blogrec/core"
)

// Pipeline 把推荐逻辑拆成可组合的 Node 链：召回 → 过滤 → 截断/补足。
type Pipeline struct {
	Nodes []Node
}

// Run 依次执行各个 Node。每个 Node 开始前检查 ctx，截止时间到了就立即返回。
func (p *Pipeline) Run(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	cur := items
	for _, node := range p.Nodes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next, err := node.Process(ctx, rctx, cur)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

// NodeNames 返回各个 Node 的名称，便于日志输出。
func (p *Pipeline) NodeNames() []string {
	out := make([]string, 0, len(p.Nodes))
	for _, n := range p.Nodes {
		out = append(out, n.Name())
	}
	return out
}
