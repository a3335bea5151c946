package dom

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Атрибуты состояния, которые попадают в вывод всегда, если присутствуют.
var activeStateAttrs = []string{
	"aria-selected",
	"aria-checked",
	"aria-pressed",
	"aria-expanded",
	"aria-current",
	"checked",
	"selected",
	"disabled",
}

var activeClass = regexp.MustCompile(`(?i)(^|[-_])(active|selected|current|open|checked)($|[-_])`)

// Render сериализует снимок: одна строка на элемент вида [index][locator]<tag attrs>text</tag>.
func (s *Snapshot) Render(include []string) string {
	if s == nil || len(s.Elements) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, el := range s.Elements {
		sb.WriteString(renderElement(el, include))
		sb.WriteByte('\n')
	}
	return strings.TrimRight(sb.String(), "\n")
}

func renderElement(el *ElementNode, include []string) string {
	type pair struct{ k, v string }
	var attrs []pair
	seen := make(map[string]bool)
	add := func(k, v string) {
		if seen[k] {
			return
		}
		seen[k] = true
		attrs = append(attrs, pair{k, v})
	}

	for _, name := range include {
		if name == "value" {
			continue
		}
		if v, ok := el.Attrs[name]; ok {
			add(name, v)
		}
	}
	for _, name := range activeStateAttrs {
		if v, ok := el.Attrs[name]; ok {
			add(name, v)
		}
	}

	classes := strings.Fields(el.Attrs["class"])
	if len(classes) > 0 {
		add("class", strings.Join(classes, " "))
		for _, c := range classes {
			if activeClass.MatchString(c) {
				add("data-state", "active")
				break
			}
		}
	}

	if v := displayValue(el); v != "" {
		add("value", v)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%d][%s]<%s", el.Index, el.Locator, el.Tag)
	for _, a := range attrs {
		if a.v == "" {
			fmt.Fprintf(&sb, " %s", a.k)
			continue
		}
		fmt.Fprintf(&sb, " %s=%s", a.k, strconv.Quote(truncateRunes(a.v, maxValueRunes)))
	}
	sb.WriteByte('>')
	sb.WriteString(el.Text)
	fmt.Fprintf(&sb, "</%s>", el.Tag)
	return sb.String()
}

func displayValue(el *ElementNode) string {
	if el.Value == "" {
		return ""
	}
	if t := strings.ToLower(el.Attrs["type"]); el.Tag == "input" && t == "password" {
		return "***"
	}
	return truncateRunes(el.Value, maxValueRunes)
}
