package workflow

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

var validatorUtil = validator.New()

// 辅助函数：替代 String 和 Bool
func String(s string) *string { return &s }
func Bool(b bool) *bool       { return &b }

// FoldText 文本过滤前统一转换大小写, 存储和内存过滤都用它
func FoldText(s string) string {
	return strings.ToLower(s)
}

// UniqueStr 去重, 保持第一次出现的顺序
func UniqueStr(arr []string) []string {
	ret := make([]string, 0, len(arr))
	arrItemMap := make(map[string]struct{}, len(arr))
	for _, v := range arr {
		if _, ok := arrItemMap[v]; !ok {
			ret = append(ret, v)
			arrItemMap[v] = struct{}{}
		}
	}
	return ret
}

// removeStr 删除所有等于target的元素, 返回是否删除过
func removeStr(arr []string, target string) ([]string, bool) {
	ret := make([]string, 0, len(arr))
	removed := false
	for _, v := range arr {
		if v == target {
			removed = true
			continue
		}
		ret = append(ret, v)
	}
	return ret, removed
}
