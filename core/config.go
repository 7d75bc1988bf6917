package core

import "time"

// RecallConfig 是召回相关的配置接口，用于在字段未设置时提供默认值。
type RecallConfig interface {
	// DefaultSeedThreshold 返回内容召回选种子的最低评分
	DefaultSeedThreshold() float64

	// DefaultSimilarityThreshold 返回内容相似度阈值（严格大于）
	DefaultSimilarityThreshold() float64

	// DefaultNeighbors 返回协同过滤的近邻数（不含用户自身）
	DefaultNeighbors() int

	// DefaultCollaborativeTopK 返回协同过滤最多返回的物品数
	DefaultCollaborativeTopK() int

	// DefaultCap 返回融合结果的条数上限
	DefaultCap() int

	// DefaultTimeout 返回一次推荐的默认截止时间
	DefaultTimeout() time.Duration
}

// DefaultRecallConfig 是默认的召回配置实现。
type DefaultRecallConfig struct{}

func (c *DefaultRecallConfig) DefaultSeedThreshold() float64 {
	return 3.5
}

func (c *DefaultRecallConfig) DefaultSimilarityThreshold() float64 {
	return 0.2
}

func (c *DefaultRecallConfig) DefaultNeighbors() int {
	return 5
}

func (c *DefaultRecallConfig) DefaultCollaborativeTopK() int {
	return 5
}

func (c *DefaultRecallConfig) DefaultCap() int {
	return 20
}

func (c *DefaultRecallConfig) DefaultTimeout() time.Duration {
	return 2 * time.Second
}

// recallDefaults 供本包之外的零值配置使用
var recallDefaults RecallConfig = &DefaultRecallConfig{}

// Defaults 返回 cfg，cfg 为 nil 时返回默认配置。
func Defaults(cfg RecallConfig) RecallConfig {
	if cfg == nil {
		return recallDefaults
	}
	return cfg
}
