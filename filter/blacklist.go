package filter

import (
	"context"

	"github.com/rushteam/blogrec/core"
)

// BlacklistFilter 是全局黑名单过滤器，过滤掉下架/隐藏的文章。
type BlacklistFilter struct {
	// ItemIDs 是内存中的黑名单
	ItemIDs []int64

	// Store 用于从存储中读取黑名单（JSON 数组），可选
	Store core.Store

	// Key 是 Store 中的黑名单 key，可选
	Key string
}

func (f *BlacklistFilter) Name() string {
	return "filter.blacklist"
}

func (f *BlacklistFilter) ShouldFilter(
	ctx context.Context,
	_ *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	if item == nil {
		return true, nil
	}
	for _, id := range f.ItemIDs {
		if item.ID == id {
			return true, nil
		}
	}
	if f.Store == nil || f.Key == "" {
		return false, nil
	}
	set, err := loadIDs(ctx, f.Store, f.Key)
	if err != nil {
		return false, err
	}
	_, hit := set[item.ID]
	return hit, nil
}
