package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateFieldUntouchedEmpty(t *testing.T) {
	res := ValidateField("", FieldTitle, false)
	require.True(t, res.IsValid)
	require.Nil(t, res.Error)
}

func TestValidateFieldRequired(t *testing.T) {
	res := ValidateField("", FieldTitle, true)
	require.False(t, res.IsValid)
	require.Equal(t, ErrRequired, res.Error.Type)
	require.Equal(t, SeverityError, res.Error.Severity)

	// 纯空白等价于空
	res = ValidateField("   \n\t", FieldBody, true)
	require.False(t, res.IsValid)
	require.Equal(t, ErrRequired, res.Error.Type)
}

func TestValidateFieldMaxLengthBoundary(t *testing.T) {
	// 恰好 4000 字符通过
	res := ValidateField(strings.Repeat("あ", 4000), FieldComment, true)
	require.True(t, res.IsValid)

	// 4001 字符被拒绝
	res = ValidateField(strings.Repeat("あ", 4001), FieldComment, true)
	require.False(t, res.IsValid)
	require.Equal(t, ErrMaxLength, res.Error.Type)

	// 标题上限 120
	res = ValidateField(strings.Repeat("x", 121), FieldTitle, true)
	require.False(t, res.IsValid)
	require.Equal(t, ErrMaxLength, res.Error.Type)
}

func TestValidateFieldApproachingLimitWarning(t *testing.T) {
	// 90% 上限进入警告区间：有 Error 但不阻断
	res := ValidateField(strings.Repeat("a", 3600), FieldBody, true)
	require.True(t, res.IsValid)
	require.NotNil(t, res.Error)
	require.Equal(t, ErrInvalid, res.Error.Type)
	require.Equal(t, SeverityWarning, res.Error.Severity)

	// 89% 仍是安静区
	res = ValidateField(strings.Repeat("a", 3560), FieldBody, true)
	require.True(t, res.IsValid)
	require.Nil(t, res.Error)
}

func TestValidateFieldOptionalUsername(t *testing.T) {
	res := ValidateField("", FieldUsername, true)
	require.True(t, res.IsValid)
	require.Nil(t, res.Error)

	res = ValidateField(strings.Repeat("x", 41), FieldUsername, true)
	require.False(t, res.IsValid)
	require.Equal(t, ErrMaxLength, res.Error.Type)
}

func TestValidateFieldPure(t *testing.T) {
	// 同样输入多次调用，结果一致
	first := ValidateField("hello <b>", FieldTitle, true)
	for i := 0; i < 5; i++ {
		again := ValidateField("hello <b>", FieldTitle, true)
		require.Equal(t, first, again)
	}
}

func TestSanitize(t *testing.T) {
	require.Equal(t, "&lt;script&gt;", Sanitize("<script>"))
	require.Equal(t, "a&quot;b&#x27;c&#x2F;d", Sanitize(`a"b'c/d`))
	require.Equal(t, "abc", Sanitize("  abc  "))
}

func TestSanitizeDoubleEscape(t *testing.T) {
	// 已知限制：不转义 &，二次调用会把第一次产生的实体再转义一遍。
	once := Sanitize("<p>")
	require.Equal(t, "&lt;p&gt;", once)
	twice := Sanitize(once)
	require.Equal(t, "&lt;p&gt;", twice) // 产出的实体不含五个目标字符，再过一遍保持稳定

	onceSlash := Sanitize("</p>")
	require.Equal(t, "&lt;&#x2F;p&gt;", onceSlash)
	require.Equal(t, onceSlash, Sanitize(onceSlash))

	// 二次转义风险落在用户自己输入的 & 序列上
	require.Equal(t, "&amp;lt;", Sanitize("&amp;lt;"))
}
