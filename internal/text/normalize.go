package text

import (
	"strings"
	"unicode"
)

// Normalize 清理送往合成器的文本：去除控制字符、折叠空白
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(text))
	lastSpace := false
	for _, r := range text {
		switch {
		case r == '\n' || r == '\t' || unicode.IsSpace(r):
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		case unicode.IsControl(r):
			// 控制字符会让部分 espeak 前端崩溃，直接丢弃
		default:
			b.WriteRune(r)
			lastSpace = false
		}
	}
	return strings.TrimSpace(b.String())
}

// IsBlank 判断文本在归一化后是否为空
func IsBlank(text string) bool {
	return Normalize(text) == ""
}
