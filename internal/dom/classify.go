package dom

import (
	"strconv"
	"strings"
)

var deniedTags = map[string]bool{
	"script":   true,
	"style":    true,
	"link":     true,
	"meta":     true,
	"noscript": true,
	"template": true,
	"svg":      true,
	"head":     true,
	"title":    true,
	"base":     true,
}

var interactiveTags = map[string]bool{
	"a":        true,
	"button":   true,
	"details":  true,
	"embed":    true,
	"input":    true,
	"label":    true,
	"menu":     true,
	"menuitem": true,
	"object":   true,
	"select":   true,
	"textarea": true,
	"summary":  true,
}

var interactiveRoles = map[string]bool{
	"button":           true,
	"link":             true,
	"menu":             true,
	"menuitem":         true,
	"menuitemcheckbox": true,
	"menuitemradio":    true,
	"checkbox":         true,
	"radio":            true,
	"switch":           true,
	"slider":           true,
	"spinbutton":       true,
	"tab":              true,
	"textbox":          true,
	"searchbox":        true,
	"combobox":         true,
	"listbox":          true,
	"option":           true,
	"treeitem":         true,
	"gridcell":         true,
	"scrollbar":        true,
	"dropdown":         true,
}

var clickBindings = []string{
	"onclick",
	"ng-click",
	"data-ng-click",
	"@click",
	"v-on:click",
	"(click)",
	"x-on:click",
	"data-action",
}

var stateAttrs = []string{
	"aria-expanded",
	"aria-pressed",
	"aria-selected",
	"aria-checked",
}

func denied(n *RawNode) bool {
	if deniedTags[n.Tag] {
		return true
	}
	id, _ := n.Attr("id")
	return id == OverlayContainerID
}

func visible(n *RawNode) bool {
	return !n.Box.Empty() && !n.Style.hidden()
}

// inViewport - бокс пересекает окно, расширенное на margin пикселей. margin -1 отключает проверку.
func inViewport(box, viewport Rect, margin int) bool {
	if margin == -1 {
		return true
	}
	m := float64(margin)
	if box.Bottom() < viewport.Y-m || box.Y > viewport.Bottom()+m {
		return false
	}
	if box.Right() < viewport.X-m || box.X > viewport.Right()+m {
		return false
	}
	return true
}

// interactive проверяет сигнатуру интерактивности. parentCursor - курсор родителя:
// pointer учитывается только у элемента, который его вводит, а не у наследников.
func interactive(n *RawNode, parentCursor string) bool {
	if interactiveTags[n.Tag] {
		if n.Tag == "input" {
			if t, _ := n.Attr("type"); strings.EqualFold(t, "hidden") {
				return false
			}
		}
		return true
	}

	if role, ok := n.Attr("role"); ok {
		for _, r := range strings.Fields(strings.ToLower(role)) {
			if interactiveRoles[r] {
				return true
			}
		}
	}

	if ti, ok := n.Attr("tabindex"); ok {
		if v, err := strconv.Atoi(strings.TrimSpace(ti)); err == nil && v >= 0 {
			return true
		}
	}

	if n.Style.Cursor == "pointer" && parentCursor != "pointer" {
		return true
	}

	if n.Listener {
		return true
	}
	for _, b := range clickBindings {
		if _, ok := n.Attr(b); ok {
			return true
		}
	}

	for _, a := range stateAttrs {
		if _, ok := n.Attr(a); ok {
			return true
		}
	}
	if v, _ := n.Attr("draggable"); v == "true" {
		return true
	}
	if v, ok := n.Attr("contenteditable"); ok && v != "false" {
		return true
	}
	return false
}

func editable(n *RawNode) bool {
	switch n.Tag {
	case "input", "textarea", "select":
		return true
	}
	v, ok := n.Attr("contenteditable")
	return ok && v != "false"
}
