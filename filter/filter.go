package filter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rushteam/blogrec/core"
)

// Filter 是过滤器的抽象接口，用于判断一个 Item 是否应该被过滤掉。
// 返回 true 表示应该过滤（移除），false 表示保留。
type Filter interface {
	// Name 返回过滤器名称
	Name() string

	// ShouldFilter 判断 item 是否应该被过滤
	ShouldFilter(ctx context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error)
}

// loadIDs 从 Store 读取 JSON 数组形式的文章 ID 列表；key 不存在时返回空。
func loadIDs(ctx context.Context, s core.Store, key string) (map[int64]struct{}, error) {
	data, err := s.Get(ctx, key)
	if err != nil {
		if core.IsStoreNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var ids []int64
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("decode id list %s: %w", key, err)
	}
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// SaveIDs 把文章 ID 列表以 JSON 数组写入 Store，供 BlacklistFilter / UserBlockFilter 读取。
func SaveIDs(ctx context.Context, s core.Store, key string, ids []int64) error {
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return s.Set(ctx, key, data)
}
