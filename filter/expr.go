package filter

import (
	"context"

	"github.com/rushteam/blogrec/core"
	"github.com/rushteam/blogrec/pkg/dsl"
)

// ExprFilter 用 CEL 表达式描述保留条件：表达式为 false 的文章被过滤。
//
// 例如 `item.category != "Sponsored"`。
type ExprFilter struct {
	program *dsl.Program
}

// NewExprFilter 编译表达式。
func NewExprFilter(expr string) (*ExprFilter, error) {
	p, err := dsl.Compile(expr)
	if err != nil {
		return nil, err
	}
	return &ExprFilter{program: p}, nil
}

func (f *ExprFilter) Name() string {
	return "filter.expr"
}

func (f *ExprFilter) ShouldFilter(
	_ context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	keep, err := f.program.Eval(item, rctx)
	if err != nil {
		return false, err
	}
	return !keep, nil
}
