// Package validation 提供表单字段校验和提交前的输入转义。
// 所有函数都是纯函数，不触发任何副作用，方便在提交和实时反馈两个场景复用。
package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

type ErrorType string

const (
	ErrRequired  ErrorType = "required"
	ErrMinLength ErrorType = "minLength"
	ErrMaxLength ErrorType = "maxLength"
	ErrInvalid   ErrorType = "invalid"
	ErrRateLimit ErrorType = "rateLimit"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// FieldError 是一次校验产出的结构化错误。
type FieldError struct {
	Message  string    `json:"message"`
	Type     ErrorType `json:"type"`
	Severity Severity  `json:"severity"`
}

// Result 校验结果。Error 为 nil 或 severity 非 error 时允许提交。
type Result struct {
	IsValid        bool
	Error          *FieldError
	SanitizedValue string
}

type FieldType string

const (
	FieldTitle    FieldType = "title"
	FieldBody     FieldType = "body"
	FieldComment  FieldType = "comment"
	FieldUsername FieldType = "username"
)

type fieldConfig struct {
	label     string
	minLength int
	maxLength int
	required  bool
}

var fieldConfigs = map[FieldType]fieldConfig{
	FieldTitle:    {label: "标题", minLength: 1, maxLength: 120, required: true},
	FieldBody:     {label: "正文", minLength: 1, maxLength: 4000, required: true},
	FieldComment:  {label: "评论", minLength: 1, maxLength: 4000, required: true},
	FieldUsername: {label: "昵称", minLength: 0, maxLength: 40, required: false},
}

// 接近上限的提示阈值：长度达到上限的 90% 时给出非阻断警告
const warnThreshold = 0.9

var sanitizer = strings.NewReplacer(
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
	"/", "&#x2F;",
)

// Sanitize 把 < > " ' / 五个字符转义为 HTML 实体并去掉首尾空白。
// 注意不转义 &，已含实体的输入再次过此函数会被二次转义。
func Sanitize(input string) string {
	return strings.TrimSpace(sanitizer.Replace(input))
}

// ValidateField 按字段配置校验一个值。
// touched 为 false 且值为空时直接放行，避免用户还没碰过表单就看到错误。
// required/minLength 按去空白后的长度判断，maxLength 和接近上限的警告
// 按原始长度判断，与计数器显示保持一致。长度以字符（rune）计。
func ValidateField(value string, field FieldType, touched bool) Result {
	config, ok := fieldConfigs[field]
	if !ok {
		return Result{IsValid: true, SanitizedValue: Sanitize(value)}
	}

	trimmed := strings.TrimSpace(value)
	trimmedLen := utf8.RuneCountInString(trimmed)
	rawLen := utf8.RuneCountInString(value)
	sanitized := Sanitize(value)

	if !touched && trimmedLen == 0 {
		return Result{IsValid: true, SanitizedValue: sanitized}
	}

	if config.required && trimmedLen == 0 {
		return Result{
			IsValid: false,
			Error: &FieldError{
				Message:  fmt.Sprintf("请输入%s", config.label),
				Type:     ErrRequired,
				Severity: SeverityError,
			},
			SanitizedValue: sanitized,
		}
	}

	if trimmedLen > 0 && trimmedLen < config.minLength {
		return Result{
			IsValid: false,
			Error: &FieldError{
				Message:  fmt.Sprintf("%s不能少于%d个字符", config.label, config.minLength),
				Type:     ErrMinLength,
				Severity: SeverityError,
			},
			SanitizedValue: sanitized,
		}
	}

	if rawLen > config.maxLength {
		return Result{
			IsValid: false,
			Error: &FieldError{
				Message:  fmt.Sprintf("%s不能超过%d个字符", config.label, config.maxLength),
				Type:     ErrMaxLength,
				Severity: SeverityError,
			},
			SanitizedValue: sanitized,
		}
	}

	// 接近上限时提示剩余字数，不阻断提交
	usage := float64(rawLen) / float64(config.maxLength)
	if usage >= warnThreshold && usage < 1.0 {
		return Result{
			IsValid: true,
			Error: &FieldError{
				Message:  fmt.Sprintf("还可输入%d个字符", config.maxLength-rawLen),
				Type:     ErrInvalid,
				Severity: SeverityWarning,
			},
			SanitizedValue: sanitized,
		}
	}

	return Result{IsValid: true, SanitizedValue: sanitized}
}

// MaxLength 暴露字段的长度上限，供模板渲染字数统计。
func MaxLength(field FieldType) int {
	return fieldConfigs[field].maxLength
}
