package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"browserPilot/internal/action"
)

var ErrDecisionParse = errors.New("не удалось разобрать ответ модели")

type DecisionSource string

const (
	SourceFenced    DecisionSource = "fenced"
	SourceBraces    DecisionSource = "braces"
	SourceHeuristic DecisionSource = "heuristic"
	SourceFallback  DecisionSource = "fallback"
)

// Decision - разобранный ответ модели. Action всегда корректно;
// при SourceFallback это done(success=false), а Err оборачивает ErrDecisionParse.
type Decision struct {
	Action action.Action
	Source DecisionSource
	Err    error
}

var (
	fencedBlock = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)```")

	locatorPattern = regexp.MustCompile(`(?i)\b([a-z][a-z0-9-]*\[\d+\](?:/[a-z][a-z0-9-]*\[\d+\])*)`)
	quotedPattern  = regexp.MustCompile(`"([^"]+)"|«([^»]+)»|'([^']+)'`)
	secondsPattern = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*(?:s\b|sec|сек)`)
	numberPattern  = regexp.MustCompile(`\d+(?:[.,]\d+)?`)

	inputWords   = []string{"input_text", "type ", "typing", "enter text", "fill", "введи", "ввести", "напечата"}
	clickWords   = []string{"click", "press", "tap", "клик", "нажм", "нажать"}
	scrollWords  = []string{"scroll", "прокрут", "листа"}
	waitWords    = []string{"wait", "sleep", "подожд", "ждать", "ожида"}
	extractWords = []string{"extract", "извлеч", "собери", "прочитай"}
)

const maxExcerpt = 200

// ParseDecision извлекает действие из текста модели. Порядок: блок кода,
// затем фигурные скобки верхнего уровня, затем эвристика по ключевым словам.
// Если ничего не подошло, возвращается done с неуспехом. Функция не паникует.
func ParseDecision(raw string) Decision {
	var lastErr error

	for _, m := range fencedBlock.FindAllStringSubmatch(raw, -1) {
		a, err := decodeDecision(m[1])
		if err == nil {
			return Decision{Action: a, Source: SourceFenced}
		}
		lastErr = err
		for _, obj := range topLevelObjects(m[1]) {
			if a, err := decodeDecision(obj); err == nil {
				return Decision{Action: a, Source: SourceFenced}
			}
		}
	}

	for _, obj := range topLevelObjects(raw) {
		a, err := decodeDecision(obj)
		if err == nil {
			return Decision{Action: a, Source: SourceBraces}
		}
		lastErr = err
	}

	if a, ok := salvage(raw); ok {
		return Decision{Action: a, Source: SourceHeuristic}
	}

	err := ErrDecisionParse
	if lastErr != nil {
		err = fmt.Errorf("%w: %v", ErrDecisionParse, lastErr)
	}
	msg := "Ответ модели не содержит корректного действия"
	if ex := excerpt(raw); ex != "" {
		msg += ": " + ex
	}
	return Decision{Action: action.NewDone(false, msg), Source: SourceFallback, Err: err}
}

// decodeDecision принимает {"action": {...}}, {"action": "click", ...} и голый объект действия.
func decodeDecision(text string) (action.Action, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &fields); err != nil {
		return action.Action{}, err
	}

	if inner, ok := fields["action"]; ok {
		var nested map[string]json.RawMessage
		if err := json.Unmarshal(inner, &nested); err == nil {
			fields = nested
		} else {
			var name string
			if err := json.Unmarshal(inner, &name); err == nil {
				delete(fields, "action")
				fields["type"] = inner
			}
		}
	}

	a, err := action.FromMap(fields)
	if err != nil {
		return action.Action{}, err
	}
	if err := a.Validate(); err != nil {
		return action.Action{}, err
	}
	return a, nil
}

// topLevelObjects возвращает сбалансированные {...} верхнего уровня с учётом строк.
func topLevelObjects(s string) []string {
	var out []string
	depth, start := 0, -1
	inString, escaped := false, false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				out = append(out, s[start:i+1])
			}
		}
	}
	return out
}

// salvage - последний рубеж. Порядок проверок фиксирован:
// ввод, клик, прокрутка, ожидание, извлечение.
func salvage(raw string) (action.Action, bool) {
	lower := strings.ToLower(raw)
	if strings.TrimSpace(lower) == "" {
		return action.Action{}, false
	}
	locator := findLocator(raw)

	if containsAny(lower, inputWords) && locator != "" {
		if text := findQuoted(raw, locator); text != "" {
			return action.Action{Type: action.Input, XPath: locator, Text: text}, true
		}
	}
	if containsAny(lower, clickWords) && locator != "" {
		return action.Action{Type: action.Click, XPath: locator}, true
	}
	if containsAny(lower, scrollWords) {
		dir := action.DirectionDown
		if strings.Contains(lower, " up") || strings.Contains(lower, "вверх") {
			dir = action.DirectionUp
		}
		return action.Action{Type: action.Scroll, Direction: dir}, true
	}
	if containsAny(lower, waitWords) {
		secs := 1.0
		if m := secondsPattern.FindStringSubmatch(lower); m != nil {
			secs = parseNumber(m[1], secs)
		} else if m := numberPattern.FindString(lower); m != "" {
			secs = parseNumber(m, secs)
		}
		return action.Action{Type: action.Wait, Seconds: secs}, true
	}
	if containsAny(lower, extractWords) {
		goal := "text"
		if q := findQuoted(raw, ""); q != "" {
			goal = q
		}
		return action.Action{Type: action.Extract, Goal: goal}, true
	}
	return action.Action{}, false
}

func findLocator(raw string) string {
	m := locatorPattern.FindStringSubmatch(raw)
	if m == nil {
		return ""
	}
	return strings.ToLower(m[1])
}

func findQuoted(raw, skip string) string {
	for _, m := range quotedPattern.FindAllStringSubmatch(raw, -1) {
		for _, g := range m[1:] {
			if strings.TrimSpace(g) == "" || (skip != "" && strings.Contains(strings.ToLower(g), skip)) {
				continue
			}
			return g
		}
	}
	return ""
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func parseNumber(s string, def float64) float64 {
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil || f <= 0 {
		return def
	}
	return f
}

func excerpt(raw string) string {
	s := strings.Join(strings.Fields(raw), " ")
	if utf8.RuneCountInString(s) > maxExcerpt {
		s = string([]rune(s)[:maxExcerpt]) + "..."
	}
	return s
}
