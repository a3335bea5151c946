package action

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Старый словарь действий адресовал элементы по номеру и называл их иначе.
// Здесь он приводится к каноническому виду и дальше нигде не встречается.
var typeAliases = map[string]Type{
	"click":           Click,
	"click_element":   Click,
	"tap":             Click,
	"type":            Input,
	"input":           Input,
	"input_text":      Input,
	"fill":            Input,
	"extract":         Extract,
	"extract_content": Extract,
	"scroll":          Scroll,
	"scroll_down":     Scroll,
	"scroll_up":       Scroll,
	"wait":            Wait,
	"sleep":           Wait,
	"done":            Done,
	"complete":        Done,
	"finish":          Done,
}

// FromMap собирает Action из произвольного JSON-объекта.
// Поддерживается и вложенная форма {"click_element": {"index": 3}}.
func FromMap(fields map[string]json.RawMessage) (Action, error) {
	name := str(fields, "type", "action_type", "name")
	if name == "" && len(fields) == 1 {
		for k, v := range fields {
			var inner map[string]json.RawMessage
			if err := json.Unmarshal(v, &inner); err == nil {
				name, fields = k, inner
			} else if _, ok := typeAliases[strings.ToLower(k)]; ok {
				name, fields = k, map[string]json.RawMessage{}
			}
		}
	}

	name = strings.ToLower(strings.TrimSpace(name))
	t, ok := typeAliases[name]
	if !ok {
		if name == "" {
			return Action{}, fmt.Errorf("%w: не указан тип", ErrMalformedAction)
		}
		return Action{}, fmt.Errorf("%w: неизвестный тип %q", ErrMalformedAction, name)
	}

	a := Action{
		Type:      t,
		XPath:     str(fields, "xpath", "locator", "selector"),
		Text:      str(fields, "text", "value"),
		Goal:      str(fields, "goal", "query"),
		Direction: strings.ToLower(str(fields, "direction")),
		Message:   str(fields, "message", "result", "summary"),
	}
	if idx, ok := integer(fields, "index", "element_index"); ok {
		a.Index = &idx
	}
	if n, ok := integer(fields, "amount", "pixels"); ok {
		a.Amount = n
	}
	if s, ok := number(fields, "seconds", "duration"); ok {
		a.Seconds = s
	} else if ms, ok := number(fields, "ms", "milliseconds"); ok {
		a.Seconds = ms / 1000
	}
	if b, ok := boolean(fields, "success"); ok {
		a.Success = b
	}

	switch name {
	case "scroll_down":
		a.Direction = DirectionDown
	case "scroll_up":
		a.Direction = DirectionUp
	}
	if a.Type == Scroll && a.Direction == "" {
		a.Direction = DirectionDown
	}
	if a.Type == Done {
		if a.Message == "" {
			a.Message = a.Text
		}
		a.Text = ""
		if _, ok := fields["success"]; !ok {
			a.Success = true
		}
	}
	return a, nil
}

func str(fields map[string]json.RawMessage, keys ...string) string {
	for _, k := range keys {
		raw, ok := fields[k]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
		var n json.Number
		if err := json.Unmarshal(raw, &n); err == nil {
			return n.String()
		}
	}
	return ""
}

func number(fields map[string]json.RawMessage, keys ...string) (float64, bool) {
	for _, k := range keys {
		raw, ok := fields[k]
		if !ok {
			continue
		}
		var f float64
		if err := json.Unmarshal(raw, &f); err == nil {
			return f, true
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

func integer(fields map[string]json.RawMessage, keys ...string) (int, bool) {
	f, ok := number(fields, keys...)
	if !ok {
		return 0, false
	}
	return int(f), true
}

func boolean(fields map[string]json.RawMessage, keys ...string) (bool, bool) {
	for _, k := range keys {
		raw, ok := fields[k]
		if !ok {
			continue
		}
		var b bool
		if err := json.Unmarshal(raw, &b); err == nil {
			return b, true
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			v, err := strconv.ParseBool(strings.TrimSpace(s))
			return v, err == nil
		}
	}
	return false, false
}
