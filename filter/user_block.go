package filter

import (
	"context"
	"strconv"

	"github.com/rushteam/blogrec/core"
)

// UserBlockFilter 是用户屏蔽过滤器，过滤掉用户自己隐藏的文章。
type UserBlockFilter struct {
	// Store 用于读取用户屏蔽列表（JSON 数组）
	Store core.Store

	// KeyPrefix 是 Store 中的 key 前缀，实际 key 为 {KeyPrefix}:{UserID}
	KeyPrefix string
}

func (f *UserBlockFilter) Name() string {
	return "filter.user_block"
}

// Key 返回某用户屏蔽列表的 key。
func (f *UserBlockFilter) Key(userID int64) string {
	return f.KeyPrefix + ":" + strconv.FormatInt(userID, 10)
}

func (f *UserBlockFilter) ShouldFilter(
	ctx context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	if item == nil {
		return true, nil
	}
	if f.Store == nil || rctx == nil {
		return false, nil
	}
	set, err := loadIDs(ctx, f.Store, f.Key(rctx.UserID))
	if err != nil {
		return false, err
	}
	_, hit := set[item.ID]
	return hit, nil
}
