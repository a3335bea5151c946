package dom

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

const (
	lineHeight  = 20.0
	frameHeight = 150.0
)

var defaultViewport = Rect{Width: 1280, Height: 720}

var replacedTags = map[string]bool{
	"input":    true,
	"button":   true,
	"select":   true,
	"textarea": true,
	"img":      true,
	"iframe":   true,
	"embed":    true,
	"object":   true,
}

// ParseHTML строит документ из статического HTML с простой блочной раскладкой:
// каждый элемент занимает строку высотой 20px, атрибут data-box="x,y,w,h" задаёт
// абсолютный бокс. Поддерживаются inline-стили, <template shadowrootmode> и <iframe srcdoc>.
// Используется в тестах и для офлайн-команды snapshot.
func ParseHTML(r io.Reader, viewport Rect) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("ошибка разбора HTML: %w", err)
	}
	if viewport.Empty() {
		viewport = defaultViewport
	}
	p := &staticParser{}
	doc, err := p.document(root)
	if err != nil {
		return nil, err
	}
	doc.Viewport = viewport
	layout(doc.Root, viewport.X, viewport.Y, viewport.Width, false)
	return doc, nil
}

func ParseHTMLString(s string, viewport Rect) (*Document, error) {
	return ParseHTML(strings.NewReader(s), viewport)
}

type staticParser struct {
	nextID int
}

func (p *staticParser) document(root *html.Node) (*Document, error) {
	var htmlEl *html.Node
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "html" {
			htmlEl = c
			break
		}
	}
	if htmlEl == nil {
		return nil, fmt.Errorf("в документе нет корневого элемента html")
	}

	doc := &Document{}
	doc.Root = p.convert(htmlEl, Style{})
	doc.Title = findTitle(htmlEl)
	return doc, nil
}

func (p *staticParser) convert(n *html.Node, parent Style) *RawNode {
	p.nextID++
	node := &RawNode{
		ID:    p.nextID,
		Type:  NodeElement,
		Tag:   strings.ToLower(n.Data),
		Attrs: make(map[string]string, len(n.Attr)),
	}
	for _, a := range n.Attr {
		node.Attrs[strings.ToLower(a.Key)] = a.Val
	}
	node.Style = computeStyle(node, parent)

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			p.nextID++
			node.Children = append(node.Children, &RawNode{ID: p.nextID, Type: NodeText, Text: c.Data})
		case html.ElementNode:
			if c.Data == "template" && hasAttr(c, "shadowrootmode") {
				shadow := &RawNode{Type: NodeElement, Tag: "#shadow-root"}
				tmpl := p.convert(c, node.Style)
				shadow.Children = tmpl.Children
				node.Shadow = shadow
				continue
			}
			node.Children = append(node.Children, p.convert(c, node.Style))
		}
	}

	switch node.Tag {
	case "textarea":
		node.Value = textContent(n)
	case "input":
		node.Value = node.Attrs["value"]
	case "select":
		node.Value = selectedOption(n)
	case "iframe":
		p.frame(node)
	}
	return node
}

func (p *staticParser) frame(node *RawNode) {
	if reason, ok := node.Attrs["data-frame-error"]; ok {
		if reason == "" {
			reason = "доступ к документу запрещён"
		}
		node.FrameError = reason
		return
	}
	src, ok := node.Attrs["srcdoc"]
	if !ok {
		return
	}
	root, err := html.Parse(strings.NewReader(src))
	if err != nil {
		node.FrameError = err.Error()
		return
	}
	doc, err := p.document(root)
	if err != nil {
		node.FrameError = err.Error()
		return
	}
	node.Frame = doc
}

func computeStyle(n *RawNode, parent Style) Style {
	st := Style{
		Cursor:     parent.Cursor,
		Visibility: parent.Visibility,
	}
	if deniedTags[n.Tag] {
		st.Display = "none"
	}
	if _, ok := n.Attrs["hidden"]; ok {
		st.Display = "none"
	}
	if n.Tag == "input" && strings.EqualFold(n.Attrs["type"], "hidden") {
		st.Display = "none"
	}

	for _, decl := range strings.Split(n.Attrs["style"], ";") {
		k, v, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		k = strings.ToLower(strings.TrimSpace(k))
		v = strings.ToLower(strings.TrimSpace(v))
		switch k {
		case "display":
			st.Display = v
		case "visibility":
			st.Visibility = v
		case "opacity":
			st.Opacity = v
		case "cursor":
			st.Cursor = v
		case "z-index":
			if z, err := strconv.Atoi(v); err == nil {
				st.ZIndex = z
			}
		}
	}
	return st
}

// layout раскладывает узел в потоке и возвращает занятую им высоту.
func layout(n *RawNode, x, y, width float64, hidden bool) float64 {
	if !n.IsElement() {
		if hidden || collapseSpaces(n.Text) == "" {
			n.Box = Rect{}
			return 0
		}
		n.Box = Rect{X: x, Y: y, Width: width, Height: lineHeight}
		return lineHeight
	}

	hidden = hidden || n.Style.Display == "none"
	abs, isAbs := explicitBox(n)
	ox, oy, w := x, y, width
	if isAbs {
		ox, oy, w = abs.X, abs.Y, abs.Width
	}

	h := 0.0
	if n.Shadow != nil {
		for _, c := range n.Shadow.Children {
			h += layout(c, ox, oy+h, w, hidden)
		}
	}
	for _, c := range n.Children {
		h += layout(c, ox, oy+h, w, hidden)
	}
	if n.Tag == "iframe" {
		h = frameHeight
	} else if h == 0 && replacedTags[n.Tag] {
		h = lineHeight
	}

	if hidden {
		n.Box = Rect{}
		return 0
	}

	consumed := h
	if isAbs {
		n.Box = abs
		consumed = 0
	} else {
		n.Box = Rect{X: ox, Y: oy, Width: w, Height: h}
	}

	if n.Frame != nil && n.Frame.Root != nil {
		n.Frame.Viewport = n.Box
		layout(n.Frame.Root, n.Box.X, n.Box.Y, n.Box.Width, false)
	}
	return consumed
}

func explicitBox(n *RawNode) (Rect, bool) {
	v, ok := n.Attrs["data-box"]
	if !ok {
		return Rect{}, false
	}
	parts := strings.Split(v, ",")
	if len(parts) != 4 {
		return Rect{}, false
	}
	var f [4]float64
	for i, p := range parts {
		x, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Rect{}, false
		}
		f[i] = x
	}
	return Rect{X: f[0], Y: f[1], Width: f[2], Height: f[3]}, true
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func selectedOption(n *html.Node) string {
	first := ""
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || c.Data != "option" {
			continue
		}
		text := collapseSpaces(textContent(c))
		if first == "" {
			first = text
		}
		if hasAttr(c, "selected") {
			return text
		}
	}
	return first
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		return collapseSpaces(textContent(n))
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}
