package recall

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rushteam/blogrec/core"
	"github.com/rushteam/blogrec/pipeline"
	"github.com/rushteam/blogrec/pkg/logging"
	"github.com/rushteam/blogrec/pkg/utils"
)

// Fanout 是一个 Recall Node：并发执行多个召回源，全部结束后再合并结果。
// 支持单源超时、限流和合并策略。
//
// 单个召回源失败（包括超时）不会中断其他召回源，失败原因记录到
// RecommendContext.SourceErrors 中，由调用方决定如何对外暴露。
type Fanout struct {
	Sources       []Source
	Dedup         bool
	Timeout       time.Duration // 每个召回源的超时时间
	MaxConcurrent int           // 最大并发数（0 表示无限制）
	MergeStrategy MergeStrategy // 为 nil 时使用 FirstMergeStrategy
	// OnSourceDone 在每个召回源结束时回调（用于打点），可为 nil
	OnSourceDone func(source string, items int, err error)
}

func (n *Fanout) Name() string        { return "recall.fanout" }
func (n *Fanout) Kind() pipeline.Kind { return pipeline.KindRecall }

type sourceResult struct {
	items []*core.Item
	err   error
}

func (n *Fanout) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	if len(n.Sources) == 0 {
		return nil, nil
	}

	var (
		mu      sync.Mutex
		results = make([]sourceResult, len(n.Sources))
		eg, _   = errgroup.WithContext(ctx)
	)
	if n.MaxConcurrent > 0 {
		eg.SetLimit(n.MaxConcurrent)
	}

	for i, src := range n.Sources {
		eg.Go(func() error {
			recallCtx := ctx
			if n.Timeout > 0 {
				var cancel context.CancelFunc
				recallCtx, cancel = context.WithTimeout(ctx, n.Timeout)
				defer cancel()
			}

			items, err := src.Recall(recallCtx, rctx)
			if err == nil {
				// 记录召回来源 label，方便 explain / 观测
				for _, it := range items {
					it.PutLabel("recall_source", utils.Label{Value: src.Name(), Source: "recall"})
					it.PutLabel("recall_priority", utils.Label{Value: strconv.Itoa(i), Source: "recall"})
				}
			}
			mu.Lock()
			results[i] = sourceResult{items: items, err: err}
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log := logging.FromContext(ctx)
	all := make([]*core.Item, 0)
	for i, res := range results {
		name := n.Sources[i].Name()
		if n.OnSourceDone != nil {
			n.OnSourceDone(name, len(res.items), res.err)
		}
		if res.err != nil {
			rctx.RecordSourceError(name, res.err)
			ev := log.Warn()
			if core.IsNoSignal(res.err) {
				ev = log.Debug()
			}
			ev.Err(res.err).Str("source", name).Int64("user_id", rctx.UserID).Msg("recall source failed")
			continue
		}
		all = append(all, res.items...)
	}

	strategy := n.MergeStrategy
	if strategy == nil {
		strategy = &FirstMergeStrategy{}
	}
	return strategy.Merge(all, n.Dedup), nil
}
