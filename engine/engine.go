// Package engine 是混合推荐的入口：维护只读快照，按 Pipeline 融合内容、协同过滤、偏好三路信号，
// 不足 cap 条时用热门补足；超过截止时间时退化为热门结果。
package engine

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/rushteam/blogrec/core"
	"github.com/rushteam/blogrec/filter"
	"github.com/rushteam/blogrec/metrics"
	"github.com/rushteam/blogrec/pkg/logging"
	"github.com/rushteam/blogrec/pkg/textproc"
	"github.com/rushteam/blogrec/recall"
	"github.com/rushteam/blogrec/rerank"
)

// degradeStoreTimeout 是退化路径读取 KV 热门榜单的时间上限
const degradeStoreTimeout = 200 * time.Millisecond

// Request 是一次推荐请求。
type Request struct {
	UserID int64 `validate:"gt=0"`
	// Preferences 是本次提交的偏好分类标签，可为空
	Preferences []string `validate:"max=32,dive,label"`
	// Cap 覆盖结果条数上限，0 表示使用引擎配置
	Cap int `validate:"gte=0,lte=500"`
}

// Recommendation 是一条推荐结果。
type Recommendation struct {
	PostID   int64
	Title    string
	Category string
	// Sources 是产生该结果的信号：content / collaborative / preference / popularity
	Sources []string
	// Score 依来源而定：相似度、近邻平均分、评分或热门平均分
	Score float64
}

// Response 是一次推荐的结果。
type Response struct {
	Items []Recommendation
	// Version 是产生结果的快照版本，KV 退化时为 0
	Version uint64
	// Degraded 为 true 表示超过截止时间，结果来自热门榜单
	Degraded bool
	// SignalErrors 记录本次没有贡献结果的召回源及原因
	SignalErrors map[string]error
}

// Engine 是并发安全的推荐引擎。
type Engine struct {
	opts  Options
	cache *SnapshotCache
	log   zerolog.Logger
}

// New 创建引擎。快照在第一次请求（或 Warm）时构建。
func New(src DataSource, opts ...Option) *Engine {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	o.applyDefaults()
	log := o.Logger.With().Str("component", "engine").Logger()
	if o.Normalizer == nil {
		pre, err := textproc.Default()
		if err != nil {
			log.Warn().Err(err).Msg("lemmatizer unavailable, normalizing without it")
			pre = textproc.New(textproc.WithStopwords(textproc.SnowballStopwords()))
		}
		o.Normalizer = pre
	}

	e := &Engine{opts: o, log: log}
	e.cache = newSnapshotCache(src, e.build, log)
	e.cache.onPublish = e.publishPopularity
	return e
}

func (e *Engine) build(ctx context.Context, d *core.Dataset, version uint64) (*Snapshot, error) {
	return buildSnapshot(ctx, d, version, &e.opts)
}

// publishPopularity 把新快照的热门榜单写入 KV，供没有快照的进程退化时读取。
func (e *Engine) publishPopularity(ctx context.Context, s *Snapshot) {
	if e.opts.KV == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := recall.PublishPopularity(ctx, e.opts.KV, e.opts.PopularityKey, s.Popularity); err != nil {
		e.log.Warn().Err(err).Str("store", e.opts.KV.Name()).Msg("publish popularity failed")
	}
}

// Options 返回生效的参数。
func (e *Engine) Options() Options { return e.opts }

// Warm 立即构建快照。
func (e *Engine) Warm(ctx context.Context) error {
	_, err := e.cache.Current(ctx)
	return err
}

// Invalidate 使当前快照失效。文章或评分发生变化后调用。
func (e *Engine) Invalidate(reason string) {
	e.cache.Invalidate(reason)
}

// Version 返回当前快照版本。
func (e *Engine) Version() uint64 { return e.cache.Version() }

// Snapshot 返回当前有效的快照，必要时重建。
func (e *Engine) Snapshot(ctx context.Context) (*Snapshot, error) {
	return e.cache.Current(ctx)
}

type runResult struct {
	snap  *Snapshot
	items []*core.Item
	err   error
}

// Recommend 为用户生成推荐。
//
// 请求非法时返回 core.ErrInvalidPreferences / core.ErrInvalidRequest；
// 超过截止时间时返回 Degraded 的热门结果而不是错误；调用方取消时返回 ctx.Err()。
func (e *Engine) Recommend(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	defer func() { metrics.RecommendDuration.Observe(time.Since(start).Seconds()) }()

	if err := validateRequest(&req); err != nil {
		metrics.RecommendRequestsTotal.WithLabelValues(metrics.OutcomeInvalid).Inc()
		return nil, err
	}
	limit := req.Cap
	if limit <= 0 {
		limit = e.opts.Cap
	}

	log := e.log.With().Int64("user_id", req.UserID).Logger()
	parent := ctx
	ctx, cancel := context.WithTimeout(logging.WithContext(ctx, log), e.opts.Timeout)
	defer cancel()

	rctx := &core.RecommendContext{
		UserID:      req.UserID,
		Preferences: req.Preferences,
		Params:      map[string]any{core.ParamCap: limit},
	}

	done := make(chan runResult, 1)
	go func() {
		snap, err := e.cache.Current(ctx)
		if err != nil {
			done <- runResult{err: err}
			return
		}
		items, err := snap.Pipeline.Run(ctx, rctx, nil)
		done <- runResult{snap: snap, items: items, err: err}
	}()

	var res runResult
	select {
	case <-ctx.Done():
		res.err = ctx.Err()
	case res = <-done:
	}

	if res.err != nil {
		if parent.Err() == nil && errors.Is(res.err, context.DeadlineExceeded) {
			return e.degrade(parent, &req, limit, log)
		}
		metrics.RecommendRequestsTotal.WithLabelValues(metrics.OutcomeError).Inc()
		log.Error().Err(res.err).Msg("recommend failed")
		return nil, res.err
	}

	resp := &Response{
		Items:        toRecommendations(res.items, limit),
		Version:      res.snap.Version,
		SignalErrors: rctx.SourceErrors(),
	}
	metrics.RecommendRequestsTotal.WithLabelValues(metrics.OutcomeOK).Inc()
	var filteredBy []string
	if lbl, ok := rctx.GetLabel("filtered"); ok {
		filteredBy = lbl.Values()
	}
	log.Debug().
		Uint64("version", resp.Version).
		Int("items", len(resp.Items)).
		Strs("filtered_by", filteredBy).
		Strs("failed_sources", rctx.FailedSources()).
		Dur("took", time.Since(start)).
		Msg("recommend done")
	return resp, nil
}

// degrade 在超时后给出热门结果：
//  1. 有快照时，先按目标分类过滤热门榜单；过滤后为空则取不过滤的榜单
//  2. 没有快照时，从 KV 读取发布过的热门榜单（只有文章 ID）
func (e *Engine) degrade(parent context.Context, req *Request, limit int, log zerolog.Logger) (*Response, error) {
	metrics.RecommendRequestsTotal.WithLabelValues(metrics.OutcomeDegraded).Inc()
	resp := &Response{Degraded: true}

	if snap := e.cache.Last(); snap != nil {
		resp.Version = snap.Version
		resp.Items = e.popularFromSnapshot(parent, snap, req, limit)
		log.Warn().Uint64("version", snap.Version).Int("items", len(resp.Items)).Msg("deadline exceeded, serving popularity")
		return resp, nil
	}

	if e.opts.KV == nil {
		log.Warn().Msg("deadline exceeded before first snapshot, no popularity store")
		return resp, nil
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), degradeStoreTimeout)
	defer cancel()
	src := &recall.Popularity{Store: e.opts.KV, Key: e.opts.PopularityKey, Limit: limit}
	items, err := src.Recall(ctx, &core.RecommendContext{UserID: req.UserID})
	if err != nil {
		log.Warn().Err(err).Msg("deadline exceeded, popularity store unavailable")
		return resp, nil
	}
	hidden := e.hidden()
	for _, it := range items {
		if _, ok := hidden[it.ID]; ok {
			continue
		}
		resp.Items = append(resp.Items, Recommendation{PostID: it.ID, Sources: []string{recall.SourcePopularity}})
	}
	log.Warn().Int("items", len(resp.Items)).Msg("deadline exceeded, serving popularity from store")
	return resp, nil
}

func (e *Engine) popularFromSnapshot(ctx context.Context, snap *Snapshot, req *Request, limit int) []Recommendation {
	rctx := &core.RecommendContext{
		UserID:      req.UserID,
		Preferences: req.Preferences,
		Params:      map[string]any{core.ParamCap: limit},
	}
	bf := &rerank.BackfillNode{
		Cap:      limit,
		Ranked:   snap.Popularity,
		Posts:    snap.Dataset,
		Profiles: snap.Dataset,
	}
	if len(e.opts.Blacklist) > 0 {
		bf.Filters = []filter.Filter{&filter.BlacklistFilter{ItemIDs: e.opts.Blacklist}}
	}
	items, _ := bf.Process(context.WithoutCancel(ctx), rctx, nil)
	if len(items) > 0 {
		return toRecommendations(items, limit)
	}
	return e.popular(snap, limit)
}

// Popular 返回当前快照的热门榜单（按平均分降序、文章 ID 升序），不做分类过滤。
func (e *Engine) Popular(ctx context.Context, limit int) ([]Recommendation, error) {
	snap, err := e.cache.Current(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = e.opts.Cap
	}
	return e.popular(snap, limit), nil
}

// hidden 返回 Options.Blacklist 的集合。
func (e *Engine) hidden() map[int64]struct{} {
	out := make(map[int64]struct{}, len(e.opts.Blacklist))
	for _, id := range e.opts.Blacklist {
		out[id] = struct{}{}
	}
	return out
}

func (e *Engine) popular(snap *Snapshot, limit int) []Recommendation {
	hidden := e.hidden()
	out := make([]Recommendation, 0, limit)
	for _, rk := range snap.Popularity {
		if len(out) >= limit {
			break
		}
		if _, ok := hidden[rk.PostID]; ok {
			continue
		}
		p, ok := snap.Dataset.Post(rk.PostID)
		if !ok {
			continue
		}
		out = append(out, Recommendation{
			PostID:   rk.PostID,
			Title:    p.Title,
			Category: p.Category,
			Sources:  []string{recall.SourcePopularity},
			Score:    rk.Mean,
		})
	}
	return out
}

// History 返回用户评过分的文章（当前快照）。
func (e *Engine) History(ctx context.Context, userID int64) ([]Recommendation, error) {
	snap, err := e.cache.Current(ctx)
	if err != nil {
		return nil, err
	}
	return snap.History(userID), nil
}

// toRecommendations 转换结果并做最后的去重和截断。
func toRecommendations(items []*core.Item, limit int) []Recommendation {
	out := make([]Recommendation, 0, min(len(items), limit))
	seen := make(map[int64]struct{}, len(items))
	for _, it := range items {
		if len(out) >= limit {
			break
		}
		if _, dup := seen[it.ID]; dup {
			continue
		}
		seen[it.ID] = struct{}{}
		var sources []string
		if lbl, ok := it.Labels["recall_source"]; ok {
			sources = lbl.Values()
			sort.Strings(sources)
		}
		out = append(out, Recommendation{
			PostID:   it.ID,
			Title:    it.Title(),
			Category: it.Category(),
			Sources:  sources,
			Score:    it.Score,
		})
	}
	return out
}
