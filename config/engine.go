package config

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rushteam/blogrec/core"
	"github.com/rushteam/blogrec/engine"
	"github.com/rushteam/blogrec/index"
	"github.com/rushteam/blogrec/pipeline"
	"github.com/rushteam/blogrec/pkg/textproc"
)

// Normalizer 按 Text 配置构建文本预处理器。
// 词典加载失败时退化为 snowball 停用词表，stem 打开时再加 snowball 词干。
func (c *Config) Normalizer(log zerolog.Logger) index.Normalizer {
	t := c.Text
	res, err := textproc.SharedResources()
	if err == nil {
		return res.Preprocessor(t.RemoveStopwords, t.Lemmatize, t.Stem)
	}
	log.Warn().Err(err).Msg("lemmatizer dictionary unavailable, falling back to snowball")
	var opts []textproc.Option
	if t.RemoveStopwords {
		opts = append(opts, textproc.WithStopwords(textproc.SnowballStopwords()))
	}
	if t.Stem || t.Lemmatize {
		opts = append(opts, textproc.WithStemmer(textproc.SnowballStemmer()))
	}
	return textproc.New(opts...)
}

// EngineOptions 把配置转换成 engine.Option。kv 为 nil 时不发布热门榜单。
func (c *Config) EngineOptions(log zerolog.Logger, kv core.KeyValueStore) ([]engine.Option, error) {
	e := c.Engine
	opts := []engine.Option{
		engine.WithCap(e.Cap),
		engine.WithTimeout(e.Timeout),
		engine.WithThresholds(e.SeedThreshold, e.SimilarityThreshold),
		engine.WithNeighbors(e.Neighbors, e.CollaborativeTopK),
		engine.WithPreferenceRecall(e.PreferenceEnabled),
		engine.WithStrictUnrated(e.StrictUnrated),
		engine.WithParallelism(e.Parallelism),
		engine.WithNormalizer(c.Normalizer(log)),
		engine.WithLogger(log),
		func(o *engine.Options) {
			o.SourceTimeout = e.SourceTimeout
			o.MaxConcurrent = e.MaxConcurrent
		},
	}
	if len(e.Blacklist) > 0 {
		opts = append(opts, engine.WithBlacklist(e.Blacklist...))
	}
	if kv != nil {
		opts = append(opts, engine.WithKeyValueStore(kv, c.Store.PopularityKey))
	}
	if c.Pipeline != "" {
		pc, err := pipeline.Load(c.Pipeline)
		if err != nil {
			return nil, fmt.Errorf("load pipeline %s: %w", c.Pipeline, err)
		}
		opts = append(opts, engine.WithPipeline(pc))
	}
	return opts, nil
}
