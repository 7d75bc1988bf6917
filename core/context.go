package core

import (
	"sort"
	"sync"

	"github.com/rushteam/blogrec/pkg/conv"
	"github.com/rushteam/blogrec/pkg/utils"
)

// ParamCap 是 Params 中覆盖结果条数上限的 key
const ParamCap = "cap"

// RecommendContext 承载一次推荐请求的用户信息，贯穿整个 Pipeline 透传。
type RecommendContext struct {
	UserID int64

	// Preferences 是调用方本次提交的偏好分类标签（已校验）
	Preferences []string

	// Labels 是请求级标签，例如过滤节点记录的 "filtered"
	Labels map[string]utils.Label

	// Params 请求级参数，例如 cap
	Params map[string]any

	mu           sync.Mutex
	sourceErrors map[string]error
}

// PutLabel 写入请求级 Label，同名 Label 合并。
func (rctx *RecommendContext) PutLabel(key string, lbl utils.Label) {
	if rctx.Labels == nil {
		rctx.Labels = make(map[string]utils.Label)
	}
	if old, ok := rctx.Labels[key]; ok {
		rctx.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	rctx.Labels[key] = lbl
}

// GetLabel 获取请求级 Label。
func (rctx *RecommendContext) GetLabel(key string) (utils.Label, bool) {
	if rctx == nil || rctx.Labels == nil {
		return utils.Label{}, false
	}
	lbl, ok := rctx.Labels[key]
	return lbl, ok
}

// Cap 返回本次请求的结果上限；Params 中没有 cap 时返回 def。
func (rctx *RecommendContext) Cap(def int) int {
	if rctx == nil {
		return def
	}
	if n := conv.ConfigGetInt64(rctx.Params, ParamCap, 0); n > 0 {
		return int(n)
	}
	return def
}

// RecordSourceError 记录某一路召回的失败原因，不中断请求。
func (rctx *RecommendContext) RecordSourceError(source string, err error) {
	if err == nil {
		return
	}
	rctx.mu.Lock()
	defer rctx.mu.Unlock()
	if rctx.sourceErrors == nil {
		rctx.sourceErrors = make(map[string]error)
	}
	rctx.sourceErrors[source] = err
}

// SourceErrors 返回各召回源记录下来的错误的拷贝。
func (rctx *RecommendContext) SourceErrors() map[string]error {
	rctx.mu.Lock()
	defer rctx.mu.Unlock()
	if len(rctx.sourceErrors) == 0 {
		return nil
	}
	out := make(map[string]error, len(rctx.sourceErrors))
	for k, v := range rctx.sourceErrors {
		out[k] = v
	}
	return out
}

// FailedSources 返回记录过错误的召回源名称，按字母序。
func (rctx *RecommendContext) FailedSources() []string {
	errs := rctx.SourceErrors()
	out := make([]string, 0, len(errs))
	for k := range errs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
