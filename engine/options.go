package engine

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/rushteam/blogrec/core"
	"github.com/rushteam/blogrec/index"
	"github.com/rushteam/blogrec/pipeline"
	"github.com/rushteam/blogrec/store"
)

// Options 是引擎的全部可调参数。零值字段在 New 中取默认值。
// Options 同时实现了 core.RecallConfig，召回源从这里读取默认阈值。
type Options struct {
	Cap                 int
	SeedThreshold       float64
	SimilarityThreshold float64
	Neighbors           int
	CollaborativeTopK   int
	Timeout             time.Duration

	// PreferenceEnabled 控制偏好召回是否参与融合
	PreferenceEnabled bool
	// StrictUnrated 为 true 时协同过滤用评分掩码区分"评了 0 分"和"没评过"，
	// 丢弃近邻平均分为 0 的列，偏好匹配要求相似度大于 0
	StrictUnrated bool

	// Parallelism 是相似度矩阵构建的并发度，<=0 时为 GOMAXPROCS
	Parallelism int
	// SourceTimeout 是单个召回源的超时，0 表示只受整体截止时间约束
	SourceTimeout time.Duration
	MaxConcurrent int

	// Pipeline 为 nil 时使用 pipeline.DefaultConfig()
	Pipeline *pipeline.Config

	// Normalizer 为 nil 时使用 textproc 的默认预处理（去停用词 + 词形还原）
	Normalizer index.Normalizer

	// KV 用于发布热门榜单、读取黑名单和用户屏蔽列表，可为 nil
	KV            core.KeyValueStore
	PopularityKey string

	// Blacklist 是静态隐藏的文章
	Blacklist []int64

	Logger zerolog.Logger
}

// Option 修改 Options。
type Option func(*Options)

// DefaultOptions 返回默认参数：cap 20、种子阈值 3.5、相似度阈值 0.2、5 个近邻、
// 协同过滤取前 5、截止时间 2 秒、偏好召回开启。
func DefaultOptions() Options {
	def := &core.DefaultRecallConfig{}
	return Options{
		Cap:                 def.DefaultCap(),
		SeedThreshold:       def.DefaultSeedThreshold(),
		SimilarityThreshold: def.DefaultSimilarityThreshold(),
		Neighbors:           def.DefaultNeighbors(),
		CollaborativeTopK:   def.DefaultCollaborativeTopK(),
		Timeout:             def.DefaultTimeout(),
		PreferenceEnabled:   true,
		PopularityKey:       store.PopularityKey,
		Logger:              zerolog.Nop(),
	}
}

func (o *Options) applyDefaults() {
	def := DefaultOptions()
	if o.Cap <= 0 {
		o.Cap = def.Cap
	}
	if o.SeedThreshold <= 0 {
		o.SeedThreshold = def.SeedThreshold
	}
	if o.SimilarityThreshold <= 0 {
		o.SimilarityThreshold = def.SimilarityThreshold
	}
	if o.Neighbors <= 0 {
		o.Neighbors = def.Neighbors
	}
	if o.CollaborativeTopK <= 0 {
		o.CollaborativeTopK = def.CollaborativeTopK
	}
	if o.Timeout <= 0 {
		o.Timeout = def.Timeout
	}
	if o.PopularityKey == "" {
		o.PopularityKey = def.PopularityKey
	}
	if o.Pipeline == nil {
		o.Pipeline = pipeline.DefaultConfig()
	}
}

func (o Options) DefaultSeedThreshold() float64       { return o.SeedThreshold }
func (o Options) DefaultSimilarityThreshold() float64 { return o.SimilarityThreshold }
func (o Options) DefaultNeighbors() int               { return o.Neighbors }
func (o Options) DefaultCollaborativeTopK() int       { return o.CollaborativeTopK }
func (o Options) DefaultCap() int                     { return o.Cap }
func (o Options) DefaultTimeout() time.Duration       { return o.Timeout }

var _ core.RecallConfig = Options{}

func WithCap(n int) Option { return func(o *Options) { o.Cap = n } }

func WithTimeout(d time.Duration) Option { return func(o *Options) { o.Timeout = d } }

func WithThresholds(seed, similarity float64) Option {
	return func(o *Options) {
		o.SeedThreshold = seed
		o.SimilarityThreshold = similarity
	}
}

func WithNeighbors(neighbors, topK int) Option {
	return func(o *Options) {
		o.Neighbors = neighbors
		o.CollaborativeTopK = topK
	}
}

// WithPreferenceRecall 打开或关闭偏好召回。
func WithPreferenceRecall(enabled bool) Option {
	return func(o *Options) { o.PreferenceEnabled = enabled }
}

func WithStrictUnrated(strict bool) Option {
	return func(o *Options) { o.StrictUnrated = strict }
}

func WithParallelism(n int) Option { return func(o *Options) { o.Parallelism = n } }

func WithPipeline(cfg *pipeline.Config) Option { return func(o *Options) { o.Pipeline = cfg } }

func WithNormalizer(n index.Normalizer) Option { return func(o *Options) { o.Normalizer = n } }

// WithKeyValueStore 设置热门榜单发布用的存储和 key（key 为空时用 store.PopularityKey）。
func WithKeyValueStore(kv core.KeyValueStore, key string) Option {
	return func(o *Options) {
		o.KV = kv
		o.PopularityKey = key
	}
}

func WithBlacklist(ids ...int64) Option {
	return func(o *Options) { o.Blacklist = append(o.Blacklist, ids...) }
}

func WithLogger(l zerolog.Logger) Option { return func(o *Options) { o.Logger = l } }
