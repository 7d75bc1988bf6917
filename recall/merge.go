package recall

import (
	"strconv"

	"github.com/rushteam/blogrec/core"
)

// MergeStrategy 决定 Fanout 如何合并多路召回的结果。
// all 按召回源顺序拼接；实现必须是确定性的。
type MergeStrategy interface {
	Merge(all []*core.Item, dedup bool) []*core.Item
}

// FirstMergeStrategy 按 ID 去重，保留第一次出现的 Item，并把后续同 ID 的 labels 合并进来。
type FirstMergeStrategy struct{}

func (FirstMergeStrategy) Merge(all []*core.Item, dedup bool) []*core.Item {
	if !dedup {
		return all
	}
	seen := make(map[int64]*core.Item, len(all))
	out := make([]*core.Item, 0, len(all))
	for _, it := range all {
		if it == nil {
			continue
		}
		if old, ok := seen[it.ID]; ok {
			for k, v := range it.Labels {
				old.PutLabel(k, v)
			}
			continue
		}
		seen[it.ID] = it
		out = append(out, it)
	}
	return out
}

// UnionMergeStrategy 原样保留所有结果，不去重。
type UnionMergeStrategy struct{}

func (UnionMergeStrategy) Merge(all []*core.Item, _ bool) []*core.Item {
	return all
}

// PriorityMergeStrategy 相同 ID 时保留优先级更高（recall_priority 更小）的 Item 的分数，
// labels 全部合并；输出顺序为每个 ID 第一次出现的位置。
type PriorityMergeStrategy struct{}

func (PriorityMergeStrategy) Merge(all []*core.Item, dedup bool) []*core.Item {
	if !dedup {
		return all
	}
	pos := make(map[int64]int, len(all))
	out := make([]*core.Item, 0, len(all))
	for _, it := range all {
		if it == nil {
			continue
		}
		i, exists := pos[it.ID]
		if !exists {
			pos[it.ID] = len(out)
			out = append(out, it)
			continue
		}
		old := out[i]
		keep, other := old, it
		if priorityOf(it) < priorityOf(old) {
			keep, other = it, old
		}
		for k, v := range other.Labels {
			keep.PutLabel(k, v)
		}
		out[i] = keep
	}
	return out
}

func priorityOf(it *core.Item) int {
	lbl, ok := it.Labels["recall_priority"]
	if !ok {
		return 1 << 30
	}
	vals := lbl.Values()
	if len(vals) == 0 {
		return 1 << 30
	}
	p, err := strconv.Atoi(vals[0])
	if err != nil {
		return 1 << 30
	}
	return p
}
