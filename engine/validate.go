package engine

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/rushteam/blogrec/core"
)

// MaxLabelLength 是单个偏好标签允许的最大字符数。
const MaxLabelLength = 64

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// getValidator 返回进程内共享的 validator，注册了自定义的 label 规则。
func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("label", validateLabel)
	})
	return validate
}

// validateLabel：去掉首尾空白后非空、不超过 MaxLabelLength 个字符、全部可打印。
func validateLabel(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if !utf8.ValidString(s) {
		return false
	}
	t := strings.TrimSpace(s)
	if t == "" || utf8.RuneCountInString(t) > MaxLabelLength {
		return false
	}
	for _, r := range t {
		if !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}

// validateRequest 在任何计算之前校验请求。偏好标签的问题返回 core.ErrInvalidPreferences，
// 其他字段返回 core.ErrInvalidRequest。
func validateRequest(req *Request) error {
	err := getValidator().Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", core.ErrInvalidRequest, err)
	}
	var prefMsgs, otherMsgs []string
	for _, fe := range verrs {
		msg := fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag())
		if fe.Param() != "" {
			msg = fmt.Sprintf("%s failed %q (%s)", fe.Field(), fe.Tag(), fe.Param())
		}
		if strings.HasPrefix(fe.StructField(), "Preferences") {
			prefMsgs = append(prefMsgs, msg)
		} else {
			otherMsgs = append(otherMsgs, msg)
		}
	}
	if len(prefMsgs) > 0 {
		return fmt.Errorf("%w: %s", core.ErrInvalidPreferences, strings.Join(prefMsgs, "; "))
	}
	return fmt.Errorf("%w: %s", core.ErrInvalidRequest, strings.Join(otherMsgs, "; "))
}
