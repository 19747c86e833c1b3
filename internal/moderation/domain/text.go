package domain

import (
	"strings"
	"unicode"
)

// 违禁词表，本地语与英语并列。匹配按大小写折叠后的子串进行。
var prohibitedTerms = []string{
	// English
	"weapon", "firearm", "ammunition", "narcotic", "counterfeit",
	"stolen", "ivory", "bushmeat", "pesticide-banned",
	// Swahili
	"silaha", "bunduki", "risasi", "bangi", "gongo",
	"bandia", "wizi", "pembe za ndovu", "nyamapori",
}

// 情感词表，粗粒度计数用
var positiveTerms = []string{
	"fresh", "quality", "organic", "clean", "new",
	"safi", "bora", "nzuri", "mpya", "asili",
}

var negativeTerms = []string{
	"fake", "expired", "rotten", "damaged", "broken",
	"mbovu", "bandia", "chakavu", "imeharibika", "feki",
}

// FindProhibitedTerms 返回文本中出现的违禁词（按词表顺序）
func FindProhibitedTerms(text string) []string {
	folded := strings.ToLower(text)
	var found []string
	for _, term := range prohibitedTerms {
		if strings.Contains(folded, term) {
			found = append(found, term)
		}
	}
	return found
}

// ScriptAllowed 检查字符是否落在允许的文字/标点集合内。
// 允许拉丁字母（含扩展）、数字、空白与常用标点。
func ScriptAllowed(text string) bool {
	for _, r := range text {
		switch {
		case unicode.IsSpace(r) || unicode.IsDigit(r):
		case unicode.Is(unicode.Latin, r):
		case strings.ContainsRune(`.,;:!?'"()-/+%&@#*`, r):
		default:
			return false
		}
	}
	return true
}

// SentimentDelta 正负情感词计数差
func SentimentDelta(text string) int {
	folded := strings.ToLower(text)
	delta := 0
	for _, term := range positiveTerms {
		delta += strings.Count(folded, term)
	}
	for _, term := range negativeTerms {
		delta -= strings.Count(folded, term)
	}
	return delta
}

// StronglyNegative 情感差达到强负面阈值
func StronglyNegative(delta int) bool {
	return delta <= -2
}
