package core

import "github.com/rushteam/blogrec/pkg/utils"

// Meta 中的标准字段
const (
	MetaTitle    = "title"
	MetaCategory = "category"
)

// Item 是推荐链路中的统一承载结构：文章 ID、分数、展示元信息、标签。
// Labels 用于解释召回来源；Score 只在单路召回内部有意义，融合阶段不按它排序。
type Item struct {
	ID     int64
	Score  float64
	Meta   map[string]any
	Labels map[string]utils.Label
}

func NewItem(id int64) *Item {
	return &Item{
		ID:     id,
		Meta:   make(map[string]any),
		Labels: make(map[string]utils.Label),
	}
}

// PutLabel 写入 Label；若已存在同名 key，则按默认 Merge 规则累积。
func (it *Item) PutLabel(key string, lbl utils.Label) {
	if it.Labels == nil {
		it.Labels = make(map[string]utils.Label)
	}
	if old, ok := it.Labels[key]; ok {
		it.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	it.Labels[key] = lbl
}

// SetPost 把文章的展示字段写入 Meta。
func (it *Item) SetPost(p Post) {
	if it.Meta == nil {
		it.Meta = make(map[string]any)
	}
	it.Meta[MetaTitle] = p.Title
	it.Meta[MetaCategory] = p.Category
}

// Title 返回 Meta 中的标题，没有时返回空串。
func (it *Item) Title() string {
	s, _ := it.Meta[MetaTitle].(string)
	return s
}

// Category 返回 Meta 中的分类，没有时返回空串。
func (it *Item) Category() string {
	s, _ := it.Meta[MetaCategory].(string)
	return s
}
