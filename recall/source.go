package recall

import (
	"context"

	"github.com/rushteam/blogrec/core"
)

// 召回源名称，同时作为结果里的 recall_source 标签值
const (
	SourceContent       = "content"
	SourceCollaborative = "collaborative"
	SourcePreference    = "preference"
	SourcePopularity    = "popularity"
)

// Source 表示一个可复用的召回源（内容/协同/偏好/热门）。
// 你可以把它理解为"可并发 fan-out 的策略单元"。
type Source interface {
	Name() string
	Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error)
}

// RatingSource 提供某用户的评分，按快照顺序。core.Dataset 实现了它。
type RatingSource interface {
	UserRatings(userID int64) []core.Rating
}
