package core

import "errors"

// DomainError 是领域层的统一错误类型。
//
// 设计原则：
//   - 所有领域层错误都使用此类型
//   - 提供错误代码（Code）和消息（Message）
//   - 支持错误检查函数（IsXXX），可穿透 fmt.Errorf("%w") 包装
//
// 使用场景：
//   - Store 错误：NOT_FOUND, NOT_SUPPORTED
//   - Index 错误：UNAVAILABLE（语料为空、词表为空）
//   - Recall 错误：NO_SIGNAL（用户不在评分矩阵中）
//   - Engine 错误：INVALID_INPUT（偏好标签非法）
type DomainError struct {
	Code    string // 错误代码（如 "NOT_FOUND", "NO_SIGNAL"）
	Message string // 错误消息
	Module  string // 模块名称（如 "store", "index", "recall"）
}

func (e *DomainError) Error() string {
	return e.Message
}

// IsDomainError 检查错误链上是否存在 DomainError
func IsDomainError(err error) bool {
	return GetDomainError(err) != nil
}

// GetDomainError 获取错误链上的第一个 DomainError，如果没有则返回 nil
func GetDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// NewDomainError 创建新的领域错误
func NewDomainError(module, code, message string) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
	}
}

// 错误代码常量
const (
	ErrorCodeNotFound      = "NOT_FOUND"      // 资源不存在
	ErrorCodeNotSupported  = "NOT_SUPPORTED"  // 操作不支持
	ErrorCodeUnavailable   = "UNAVAILABLE"    // 索引/服务不可用
	ErrorCodeInvalidInput  = "INVALID_INPUT"  // 输入无效
	ErrorCodeNoSignal      = "NO_SIGNAL"      // 某一路召回没有可用信号
	ErrorCodeInternalError = "INTERNAL_ERROR" // 内部错误
)

// 模块名称常量
const (
	ModuleStore  = "store"
	ModuleIndex  = "index"
	ModuleRecall = "recall"
	ModuleEngine = "engine"
)

// 推荐链路的错误定义
var (
	// ErrIndexUnavailable 表示内容相似度索引无法构建（语料为空或词表为空）。
	// 融合阶段仍然可以只依赖协同过滤和热门补足给出结果。
	ErrIndexUnavailable = NewDomainError(ModuleIndex, ErrorCodeUnavailable, "index: content similarity index unavailable")

	// ErrItemNotIndexed 表示物品不在索引的行映射中
	ErrItemNotIndexed = NewDomainError(ModuleIndex, ErrorCodeNotFound, "index: item not indexed")

	// ErrNoCollaborativeSignal 表示目标用户在评分矩阵中没有行（从未评分）
	ErrNoCollaborativeSignal = NewDomainError(ModuleRecall, ErrorCodeNoSignal, "recall: no collaborative signal available")

	// ErrInvalidPreferences 表示偏好标签输入非法，在任何计算之前返回
	ErrInvalidPreferences = NewDomainError(ModuleEngine, ErrorCodeInvalidInput, "engine: invalid preference labels")

	// ErrInvalidRequest 表示请求的其他字段非法（用户 ID、cap 等）
	ErrInvalidRequest = NewDomainError(ModuleEngine, ErrorCodeInvalidInput, "engine: invalid request")
)

// 通用错误检查函数

// IsNotFound 检查错误是否为 NOT_FOUND
func IsNotFound(err error) bool {
	return hasCode(err, ErrorCodeNotFound)
}

// IsNotSupported 检查错误是否为 NOT_SUPPORTED
func IsNotSupported(err error) bool {
	return hasCode(err, ErrorCodeNotSupported)
}

// IsUnavailable 检查错误是否为 UNAVAILABLE
func IsUnavailable(err error) bool {
	return hasCode(err, ErrorCodeUnavailable)
}

// IsInvalidInput 检查错误是否为 INVALID_INPUT
func IsInvalidInput(err error) bool {
	return hasCode(err, ErrorCodeInvalidInput)
}

// IsNoSignal 检查错误是否为 NO_SIGNAL
func IsNoSignal(err error) bool {
	return hasCode(err, ErrorCodeNoSignal)
}

func hasCode(err error, code string) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == code
	}
	return false
}
