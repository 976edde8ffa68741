package service

import (
	"html"
	"sort"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ValidationError 汇总字段级校验失败信息，Fields 的键为字段名，值为面向用户的提示。
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return "validation failed"
	}

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add 记录字段错误，同一字段只保留第一条提示。
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, exists := e.Fields[field]; exists {
		return
	}
	e.Fields[field] = message
}

// Err 在没有任何字段错误时返回 nil。
func (e *ValidationError) Err() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// plainText 去除用户输入中的所有 HTML 标签。
var plainText = bluemonday.StrictPolicy()

// cleanText 返回去除标签后的纯文本，其余字符保持用户输入原样，渲染时再统一转义。
// 输入中的 & 先转义为 &amp;，这样字面的 "&amp;" 经过 StrictPolicy 与还原后仍是 "&amp;"。
func cleanText(value string) string {
	escaped := strings.ReplaceAll(strings.TrimSpace(value), "&", "&amp;")
	return strings.TrimSpace(html.UnescapeString(plainText.Sanitize(escaped)))
}

func normalizePage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

func normalizePerPage(perPage, fallback int) int {
	if perPage <= 0 {
		return fallback
	}
	if perPage > 100 {
		return 100
	}
	return perPage
}

func calculateTotalPages(total int64, perPage int) int {
	if perPage <= 0 {
		return 1
	}
	if total == 0 {
		return 1
	}
	return int((total + int64(perPage) - 1) / int64(perPage))
}
