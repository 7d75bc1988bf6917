package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rushteam/blogrec/core"
	"github.com/rushteam/blogrec/index"
	"github.com/rushteam/blogrec/pipeline"
	"github.com/rushteam/blogrec/recall"
)

// Snapshot 是某一时刻数据的只读视图：数据表、相似度索引、评分矩阵、偏好空间、热门榜单，
// 以及绑定在这些结构上的 Pipeline。构建完成后不再修改，可被任意多个请求并发读取。
type Snapshot struct {
	Version uint64
	BuiltAt time.Time

	Dataset *core.Dataset

	// Index 为 nil 时 IndexErr 说明原因（通常是 core.ErrIndexUnavailable）
	Index    *index.Index
	IndexErr error

	Matrix      *recall.UserItemMatrix
	Preferences *recall.PreferenceSpace
	Popularity  []recall.Ranked

	Pipeline *pipeline.Pipeline

	gen uint64
}

// buildSnapshot 从数据集构建所有派生结构。索引失败不影响快照本身，只让内容召回失效。
func buildSnapshot(ctx context.Context, d *core.Dataset, version uint64, opts *Options) (*Snapshot, error) {
	s := &Snapshot{
		Version:     version,
		BuiltAt:     time.Now(),
		Dataset:     d,
		Matrix:      recall.NewUserItemMatrix(d.Ratings()),
		Preferences: recall.NewPreferenceSpace(d.Preferences()),
		Popularity:  recall.RankByMeanRating(d),
	}

	var buildOpts []index.BuildOption
	if opts.Parallelism > 0 {
		buildOpts = append(buildOpts, index.WithParallelism(opts.Parallelism))
	}
	s.Index, s.IndexErr = index.Build(ctx, d.Posts(), opts.Normalizer, buildOpts...)
	if s.IndexErr != nil && !core.IsUnavailable(s.IndexErr) {
		return nil, s.IndexErr
	}

	p, err := buildPipeline(s, opts)
	if err != nil {
		return nil, fmt.Errorf("build pipeline: %w", err)
	}
	s.Pipeline = p
	return s, nil
}

// similarityIndex 避免把 nil *index.Index 装进非 nil 接口。
func (s *Snapshot) similarityIndex() recall.SimilarityIndex {
	if s.Index == nil {
		return nil
	}
	return s.Index
}

// History 返回用户在该快照中的评分记录，附带文章标题和分类。
func (s *Snapshot) History(userID int64) []Recommendation {
	ratings := s.Dataset.UserRatings(userID)
	out := make([]Recommendation, 0, len(ratings))
	for _, r := range ratings {
		p, ok := s.Dataset.Post(r.PostID)
		if !ok {
			continue
		}
		out = append(out, Recommendation{
			PostID:   r.PostID,
			Title:    p.Title,
			Category: p.Category,
			Score:    r.Score,
		})
	}
	return out
}
