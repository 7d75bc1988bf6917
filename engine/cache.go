package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/rushteam/blogrec/core"
	"github.com/rushteam/blogrec/metrics"
)

// buildFunc 用数据集构建指定版本的快照。
type buildFunc func(ctx context.Context, d *core.Dataset, version uint64) (*Snapshot, error)

// SnapshotCache 持有当前快照（写时复制）。
//
//   - Current 在快照有效时直接返回；失效后第一个调用方触发重建，重建完成前的调用方共享同一次重建
//   - 重建在与请求无关的 context 上进行，请求超时只是不再等待，重建照常完成并发布
//   - 重建失败时保留上一个快照继续服务，下次 Current 再试
//   - 旧快照从不被修改，持有它的请求可以安全地读完
type SnapshotCache struct {
	source DataSource
	build  buildFunc
	log    zerolog.Logger

	cur     atomic.Pointer[Snapshot]
	gen     atomic.Uint64 // 每次失效加一
	version atomic.Uint64
	group   singleflight.Group

	// onPublish 在新快照发布后调用，可为 nil
	onPublish func(ctx context.Context, s *Snapshot)
}

func newSnapshotCache(src DataSource, build buildFunc, log zerolog.Logger) *SnapshotCache {
	return &SnapshotCache{source: src, build: build, log: log}
}

// Current 返回可用的快照，必要时重建。
func (c *SnapshotCache) Current(ctx context.Context) (*Snapshot, error) {
	if s := c.cur.Load(); s != nil && s.gen >= c.gen.Load() {
		return s, nil
	}
	ch := c.group.DoChan("snapshot", func() (any, error) {
		return c.rebuild(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Snapshot), nil
	}
}

func (c *SnapshotCache) rebuild(ctx context.Context) (*Snapshot, error) {
	// 快照记录开始构建时的代数：构建期间到达的失效信号会让它一发布就过期
	gen := c.gen.Load()
	start := time.Now()

	s, err := c.load(ctx)
	metrics.SnapshotBuildDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SnapshotBuildsTotal.WithLabelValues("error").Inc()
		prev := c.cur.Load()
		if prev == nil {
			c.log.Error().Err(err).Msg("snapshot build failed")
			return nil, err
		}
		c.log.Warn().Err(err).Uint64("serving_version", prev.Version).Msg("snapshot build failed, serving previous snapshot")
		return prev, nil
	}

	s.gen = gen
	c.version.Store(s.Version)
	c.cur.Store(s)
	metrics.SnapshotBuildsTotal.WithLabelValues("ok").Inc()
	metrics.SnapshotVersion.Set(float64(s.Version))
	ev := c.log.Info().
		Uint64("version", s.Version).
		Int("posts", len(s.Dataset.Posts())).
		Int("ratings", len(s.Dataset.Ratings())).
		Dur("took", time.Since(start))
	if s.IndexErr != nil {
		ev = ev.AnErr("index_error", s.IndexErr)
	}
	ev.Msg("snapshot published")

	if c.onPublish != nil {
		c.onPublish(ctx, s)
	}
	return s, nil
}

func (c *SnapshotCache) load(ctx context.Context) (*Snapshot, error) {
	if c.source == nil {
		return nil, errors.New("snapshot: no data source")
	}
	d, err := c.source.LoadDataset(ctx)
	if err != nil {
		return nil, err
	}
	if d == nil {
		d = core.NewDataset(nil, nil, nil)
	}
	// 重建由 singleflight 串行化，版本号只在成功发布后推进
	return c.build(ctx, d, c.version.Load()+1)
}

// Invalidate 标记当前快照过期，下一次 Current 会重建。
func (c *SnapshotCache) Invalidate(reason string) {
	c.gen.Add(1)
	c.log.Debug().Str("reason", reason).Msg("snapshot invalidated")
}

// Last 返回最近一次发布的快照，不触发重建；从未构建过时返回 nil。
func (c *SnapshotCache) Last() *Snapshot {
	return c.cur.Load()
}

// Stale 报告当前快照是否已失效。
func (c *SnapshotCache) Stale() bool {
	s := c.cur.Load()
	return s == nil || s.gen < c.gen.Load()
}

// Version 返回最近一次发布的快照版本，从未构建过时为 0。
func (c *SnapshotCache) Version() uint64 {
	if s := c.cur.Load(); s != nil {
		return s.Version
	}
	return 0
}
