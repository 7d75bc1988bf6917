package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/rushteam/blogrec/core"
	"github.com/rushteam/blogrec/filter"
	"github.com/rushteam/blogrec/metrics"
	"github.com/rushteam/blogrec/pipeline"
	"github.com/rushteam/blogrec/pkg/conv"
	"github.com/rushteam/blogrec/recall"
	"github.com/rushteam/blogrec/rerank"
)

// nodeBuilder 把 Pipeline 配置中的节点绑定到某个快照上。
// 过滤节点按配置顺序累积，之后的补足节点对补进来的文章应用同样的过滤。
type nodeBuilder struct {
	snap    *Snapshot
	opts    *Options
	filters []filter.Filter
	// static 是 Options.Blacklist 对应的过滤器，没有配置时为 nil
	static *filter.BlacklistFilter
}

// buildPipeline 按配置构建绑定在快照上的 Pipeline。
// 配置了 Options.Blacklist 时，在最后一个召回节点之后插入黑名单过滤，补足节点同样应用它。
func buildPipeline(snap *Snapshot, opts *Options) (*pipeline.Pipeline, error) {
	b := newNodeBuilder(snap, opts)
	p, err := opts.Pipeline.BuildPipeline(b.factory())
	if err != nil {
		return nil, err
	}
	if b.static != nil {
		p.Nodes = insertAfterRecall(p.Nodes, &filter.FilterNode{Filters: []filter.Filter{b.static}})
	}
	return p, nil
}

// insertAfterRecall 把 node 插到最后一个召回节点之后；没有召回节点时放在最前面。
func insertAfterRecall(nodes []pipeline.Node, node pipeline.Node) []pipeline.Node {
	at := 0
	for i, n := range nodes {
		if n.Kind() == pipeline.KindRecall {
			at = i + 1
		}
	}
	out := make([]pipeline.Node, 0, len(nodes)+1)
	out = append(out, nodes[:at]...)
	out = append(out, node)
	return append(out, nodes[at:]...)
}

func newNodeBuilder(snap *Snapshot, opts *Options) *nodeBuilder {
	b := &nodeBuilder{snap: snap, opts: opts}
	if len(opts.Blacklist) > 0 {
		ids := append([]int64(nil), opts.Blacklist...)
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		b.static = &filter.BlacklistFilter{ItemIDs: ids}
		b.filters = append(b.filters, b.static)
	}
	return b
}

// factory 返回绑定在快照上的 NodeFactory。
//
// 支持的节点类型：
//   - recall.fanout：sources 为 content / collaborative / preference / popularity
//   - postprocess.enrich
//   - filter.blacklist / filter.user_block / filter.expr
//   - rerank.sort_id / rerank.topn / rerank.backfill / rerank.diversity
func (b *nodeBuilder) factory() *pipeline.NodeFactory {
	snap, opts := b.snap, b.opts
	f := pipeline.NewNodeFactory()

	f.Register("recall.fanout", b.fanout)
	f.Register("recall.popularity", b.popularityNode)
	f.Register("postprocess.enrich", func(map[string]any) (pipeline.Node, error) {
		return &rerank.EnrichNode{Posts: snap.Dataset}, nil
	})

	f.Register("filter.blacklist", b.blacklist)
	f.Register("filter.user_block", b.userBlock)
	f.Register("filter.expr", b.expr)

	f.Register("rerank.sort_id", func(map[string]any) (pipeline.Node, error) {
		return &rerank.SortByIDNode{}, nil
	})
	f.Register("rerank.topn", func(config map[string]any) (pipeline.Node, error) {
		return &rerank.TopNNode{N: int(conv.ConfigGetInt64(config, "n", int64(opts.Cap)))}, nil
	})
	f.Register("rerank.backfill", b.backfill)
	f.Register("rerank.diversity", func(config map[string]any) (pipeline.Node, error) {
		return &rerank.Diversity{MaxPerCategory: int(conv.ConfigGetInt64(config, "max_per_category", 1))}, nil
	})
	return f
}

func (b *nodeBuilder) fanout(config map[string]any) (pipeline.Node, error) {
	raw, ok := config["sources"].([]any)
	if !ok || len(raw) == 0 {
		return nil, fmt.Errorf("sources not found or invalid")
	}

	sources := make([]recall.Source, 0, len(raw))
	for _, sc := range raw {
		var name string
		switch v := sc.(type) {
		case string:
			name = v
		case map[string]any:
			name = conv.ConfigGet[string](v, "type", "")
		}
		src, err := b.source(name)
		if err != nil {
			return nil, err
		}
		if src != nil {
			sources = append(sources, src)
		}
	}

	fanout := &recall.Fanout{
		Sources:       sources,
		Dedup:         conv.ConfigGet[bool](config, "dedup", true),
		Timeout:       b.opts.SourceTimeout,
		MaxConcurrent: b.opts.MaxConcurrent,
		OnSourceDone: func(source string, items int, err error) {
			code := ""
			if de := core.GetDomainError(err); de != nil {
				code = de.Code
			} else if err != nil {
				code = core.ErrorCodeInternalError
			}
			metrics.ObserveRecall(source, items, code)
		},
	}
	if ms := conv.ConfigGetInt64(config, "timeout_ms", 0); ms > 0 {
		fanout.Timeout = time.Duration(ms) * time.Millisecond
	}
	if n := conv.ConfigGetInt64(config, "max_concurrent", 0); n > 0 {
		fanout.MaxConcurrent = int(n)
	}
	switch conv.ConfigGet[string](config, "merge_strategy", "") {
	case "priority":
		fanout.MergeStrategy = &recall.PriorityMergeStrategy{}
	case "union":
		fanout.MergeStrategy = &recall.UnionMergeStrategy{}
	default:
		fanout.MergeStrategy = &recall.FirstMergeStrategy{}
	}
	return fanout, nil
}

// source 按名称构建召回源；偏好召回关闭时返回 (nil, nil)。
func (b *nodeBuilder) source(name string) (recall.Source, error) {
	s, o := b.snap, b.opts
	switch name {
	case recall.SourceContent:
		return &recall.ContentRecall{Index: s.similarityIndex(), Ratings: s.Dataset, Config: o}, nil
	case recall.SourceCollaborative:
		return &recall.UserBasedCF{Matrix: s.Matrix, StrictUnrated: o.StrictUnrated, Config: o}, nil
	case recall.SourcePreference:
		if !o.PreferenceEnabled {
			return nil, nil
		}
		return &recall.PreferenceRecall{
			Space:     s.Preferences,
			Ratings:   s.Dataset,
			Profiles:  s.Dataset,
			ZeroMatch: !o.StrictUnrated,
		}, nil
	case recall.SourcePopularity:
		return &recall.Popularity{Ranked: s.Popularity, Limit: o.Cap}, nil
	default:
		return nil, fmt.Errorf("unknown source type: %q", name)
	}
}

func (b *nodeBuilder) popularityNode(config map[string]any) (pipeline.Node, error) {
	return &recall.Popularity{
		Ranked: b.snap.Popularity,
		Limit:  int(conv.ConfigGetInt64(config, "limit", int64(b.opts.Cap))),
	}, nil
}

func (b *nodeBuilder) blacklist(config map[string]any) (pipeline.Node, error) {
	// Options.Blacklist 已经由 static 过滤，这里只处理节点自己的配置
	ids := conv.SliceAnyToInt64(config["item_ids"])
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	f := &filter.BlacklistFilter{ItemIDs: ids}
	if key := conv.ConfigGet[string](config, "key", ""); key != "" && b.opts.KV != nil {
		f.Store = b.opts.KV
		f.Key = key
	}
	return b.addFilter(f), nil
}

func (b *nodeBuilder) userBlock(config map[string]any) (pipeline.Node, error) {
	if b.opts.KV == nil {
		return nil, nil
	}
	return b.addFilter(&filter.UserBlockFilter{
		Store:     b.opts.KV,
		KeyPrefix: conv.ConfigGet[string](config, "key_prefix", "blogrec:blocked"),
	}), nil
}

func (b *nodeBuilder) expr(config map[string]any) (pipeline.Node, error) {
	f, err := filter.NewExprFilter(conv.ConfigGet[string](config, "expr", ""))
	if err != nil {
		return nil, err
	}
	return b.addFilter(f), nil
}

func (b *nodeBuilder) addFilter(f filter.Filter) pipeline.Node {
	b.filters = append(b.filters, f)
	return &filter.FilterNode{Filters: []filter.Filter{f}}
}

func (b *nodeBuilder) backfill(config map[string]any) (pipeline.Node, error) {
	filters := make([]filter.Filter, len(b.filters))
	copy(filters, b.filters)
	return &rerank.BackfillNode{
		Cap:      int(conv.ConfigGetInt64(config, "cap", int64(b.opts.Cap))),
		Ranked:   b.snap.Popularity,
		Posts:    b.snap.Dataset,
		Profiles: b.snap.Dataset,
		Filters:  filters,
	}, nil
}
