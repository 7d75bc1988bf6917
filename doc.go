// Package blogrec 是一个博客文章混合推荐引擎。
//
// 设计要点：
// - 三路召回取并集：内容相似度（TF-IDF 余弦）、用户协同过滤（余弦 kNN）、偏好分类匹配
// - 不足 cap 时按热门榜单、在用户偏好分类内补足
// - 数据集、索引和 Pipeline 打包成不可变快照，写入后失效、按需重建
// - 超过截止时间时退化为热门榜单
package blogrec

import (
	"github.com/rushteam/blogrec/engine"
	"github.com/rushteam/blogrec/pipeline"
)

// 轻量 facade：便于直接 import "blogrec" 使用核心抽象。
type (
	Engine         = engine.Engine
	Request        = engine.Request
	Response       = engine.Response
	Recommendation = engine.Recommendation
	Option         = engine.Option
	DataSource     = engine.DataSource
)

type Pipeline = pipeline.Pipeline
type Node = pipeline.Node
type Kind = pipeline.Kind

const (
	KindRecall      = pipeline.KindRecall
	KindFilter      = pipeline.KindFilter
	KindReRank      = pipeline.KindReRank
	KindPostProcess = pipeline.KindPostProcess
)

// New 创建推荐引擎，见 engine.New。
func New(src DataSource, opts ...Option) *Engine {
	return engine.New(src, opts...)
}
