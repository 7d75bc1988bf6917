// Package config 加载 blogrec 的运行配置。
//
// 优先级：环境变量 > 配置文件 > 内置默认值。
//
//	engine:
//	  cap: 20
//	  timeout: 2s
//	  preference_enabled: true
//	store:
//	  sqlite_path: blogrec.db
//	logging:
//	  level: info
//
// 环境变量以 BLOGREC_ 开头，第一个下划线对应一级分组：
// BLOGREC_ENGINE_CAP → engine.cap，BLOGREC_STORE_REDIS_ADDR → store.redis_addr。
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/rushteam/blogrec/core"
	"github.com/rushteam/blogrec/pkg/logging"
	"github.com/rushteam/blogrec/store"
)

// EnvPrefix 是环境变量前缀。
const EnvPrefix = "BLOGREC_"

// ConfigPathEnvVar 可以指定配置文件路径。
const ConfigPathEnvVar = "BLOGREC_CONFIG"

// DefaultConfigPaths 是未指定路径时依次查找的配置文件。
var DefaultConfigPaths = []string{
	"blogrec.yaml",
	"blogrec.yml",
	"/etc/blogrec/config.yaml",
}

type Config struct {
	Engine  EngineConfig   `koanf:"engine"`
	Text    TextConfig     `koanf:"text"`
	Store   StoreConfig    `koanf:"store"`
	Logging logging.Config `koanf:"logging"`
	// Pipeline 是 Pipeline 配置文件（YAML/JSON）路径，为空时使用内置链路
	Pipeline string `koanf:"pipeline"`
}

type EngineConfig struct {
	Cap                 int           `koanf:"cap" validate:"gte=1,lte=500"`
	SeedThreshold       float64       `koanf:"seed_threshold" validate:"gte=0,lte=5"`
	SimilarityThreshold float64       `koanf:"similarity_threshold" validate:"gte=0,lt=1"`
	Neighbors           int           `koanf:"neighbors" validate:"gte=1"`
	CollaborativeTopK   int           `koanf:"cf_top_k" validate:"gte=1"`
	Timeout             time.Duration `koanf:"timeout" validate:"gt=0"`
	PreferenceEnabled   bool          `koanf:"preference_enabled"`
	StrictUnrated       bool          `koanf:"strict_unrated"`
	Parallelism         int           `koanf:"parallelism" validate:"gte=0"`
	SourceTimeout       time.Duration `koanf:"source_timeout" validate:"gte=0"`
	MaxConcurrent       int           `koanf:"max_concurrent" validate:"gte=0"`
	Blacklist           []int64       `koanf:"blacklist"`
}

type TextConfig struct {
	RemoveStopwords bool `koanf:"remove_stopwords"`
	Lemmatize       bool `koanf:"lemmatize"`
	Stem            bool `koanf:"stem"`
}

type StoreConfig struct {
	SQLitePath string `koanf:"sqlite_path" validate:"required"`
	// RedisAddr 为空时热门榜单发布到进程内存
	RedisAddr     string `koanf:"redis_addr" validate:"omitempty,hostname_port"`
	RedisDB       int    `koanf:"redis_db" validate:"gte=0"`
	PopularityKey string `koanf:"popularity_key"`
}

// Default 返回内置默认配置。
func Default() *Config {
	def := &core.DefaultRecallConfig{}
	return &Config{
		Engine: EngineConfig{
			Cap:                 def.DefaultCap(),
			SeedThreshold:       def.DefaultSeedThreshold(),
			SimilarityThreshold: def.DefaultSimilarityThreshold(),
			Neighbors:           def.DefaultNeighbors(),
			CollaborativeTopK:   def.DefaultCollaborativeTopK(),
			Timeout:             def.DefaultTimeout(),
			PreferenceEnabled:   true,
		},
		Text: TextConfig{
			RemoveStopwords: true,
			Lemmatize:       true,
		},
		Store: StoreConfig{
			SQLitePath:    "blogrec.db",
			PopularityKey: store.PopularityKey,
		},
		Logging: logging.Config{Level: "info", Format: "json"},
	}
}

// Load 依次叠加默认值、配置文件和环境变量。path 为空时查找 BLOGREC_CONFIG 和 DefaultConfigPaths，
// 都不存在时只用默认值和环境变量。
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}
	if err := splitList(k, "engine.blacklist"); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envTransform: BLOGREC_ENGINE_CF_TOP_K → engine.cf_top_k。BLOGREC_CONFIG 不是配置项。
func envTransform(key string) string {
	if key == ConfigPathEnvVar {
		return ""
	}
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	section, rest, ok := strings.Cut(key, "_")
	if !ok {
		return key
	}
	return section + "." + rest
}

// splitList 把环境变量里逗号分隔的字符串转成列表。
func splitList(k *koanf.Koanf, path string) error {
	s, ok := k.Get(path).(string)
	if !ok {
		return nil
	}
	var parts []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if err := k.Set(path, parts); err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	return nil
}

// ApplyDefaults 为零值字段补上默认值。
func (c *Config) ApplyDefaults() {
	def := Default()
	if c.Engine.Cap == 0 {
		c.Engine.Cap = def.Engine.Cap
	}
	if c.Engine.SeedThreshold == 0 {
		c.Engine.SeedThreshold = def.Engine.SeedThreshold
	}
	if c.Engine.SimilarityThreshold == 0 {
		c.Engine.SimilarityThreshold = def.Engine.SimilarityThreshold
	}
	if c.Engine.Neighbors == 0 {
		c.Engine.Neighbors = def.Engine.Neighbors
	}
	if c.Engine.CollaborativeTopK == 0 {
		c.Engine.CollaborativeTopK = def.Engine.CollaborativeTopK
	}
	if c.Engine.Timeout == 0 {
		c.Engine.Timeout = def.Engine.Timeout
	}
	if c.Store.SQLitePath == "" {
		c.Store.SQLitePath = def.Store.SQLitePath
	}
	if c.Store.PopularityKey == "" {
		c.Store.PopularityKey = def.Store.PopularityKey
	}
	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = def.Logging.Format
	}
}

// Validate 校验配置取值。
func (c *Config) Validate() error {
	err := validator.New(validator.WithRequiredStructEnabled()).Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s=%s (got %v)", fe.Namespace(), fe.Tag(), fe.Param(), fe.Value()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s: failed %s", fe.Namespace(), fe.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}
