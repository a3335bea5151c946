// Package sanitizer вырезает персональные данные и секреты из текста
// перед записью в журнал и БД.
package sanitizer

import (
	"regexp"
	"strings"
)

const Filtered = "[FILTERED]"

// Rule - одно правило очистки.
type Rule interface {
	Sanitize(text string) string
}

type replacement struct {
	re   *regexp.Regexp
	repl string
}

// patternRule применяет замены по очереди.
type patternRule []replacement

func (r patternRule) Sanitize(text string) string {
	for _, p := range r {
		text = p.re.ReplaceAllString(text, p.repl)
	}
	return text
}

type DataSanitizer struct {
	rules []Rule
}

// New собирает стандартный набор правил. extra выполняются после стандартных.
func New(extra ...Rule) *DataSanitizer {
	rules := []Rule{
		passwordRule,
		secretRule,
		cookieRule,
		cardRule,
		emailRule,
		phoneRule,
		addressRule,
	}
	return &DataSanitizer{rules: append(rules, extra...)}
}

func (s *DataSanitizer) Sanitize(text string) string {
	if text == "" {
		return text
	}
	for _, rule := range s.rules {
		text = rule.Sanitize(text)
	}
	return text
}

var (
	sensitiveWords = []string{
		"password", "пароль", "token", "токен", "api", "secret",
		"card", "карт", "cvv", "cvc", "expir", "session",
		"email", "почт", "phone", "телефон", "address", "адрес",
	}
	tokenLike = regexp.MustCompile(`^[a-zA-Z0-9_-]{21,}$`)
)

// SanitizeValue очищает значение, которое агент вводит в поле.
// Короткое значение с признаками секрета заменяется целиком.
func (s *DataSanitizer) SanitizeValue(value string) string {
	if value == "" {
		return value
	}
	if len(value) <= 50 && looksSensitive(value) {
		return Filtered
	}
	return s.Sanitize(value)
}

func looksSensitive(value string) bool {
	lower := strings.ToLower(value)
	for _, w := range sensitiveWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return tokenLike.MatchString(value)
}
