package model

import (
	"regexp"
	"strings"
)

var phonePattern = regexp.MustCompile(`^\+?[0-9]{8,15}$`)

// 空白・ハイフン・括弧を除いて正規化。形式が不正ならfalse
func NormalizePhone(s string) (string, bool) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, strings.TrimSpace(s))
	if !phonePattern.MatchString(cleaned) {
		return "", false
	}
	return cleaned, true
}

// プロバイダに渡すMSISDN（先頭の+無し）
func MSISDN(phone string) string {
	return strings.TrimPrefix(phone, "+")
}
