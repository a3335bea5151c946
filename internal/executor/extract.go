package executor

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"browserPilot/internal/dom"
)

const maxExtractRunes = 4000

type extractKind string

const (
	kindTitle  extractKind = "title"
	kindText   extractKind = "text"
	kindLinks  extractKind = "links"
	kindImages extractKind = "images"
	kindTables extractKind = "tables"
)

var goalKeywords = []struct {
	kind  extractKind
	words []string
}{
	{kindTitle, []string{"title", "heading", "header", "заголов"}},
	{kindLinks, []string{"link", "href", "url", "ссылк"}},
	{kindImages, []string{"image", "img", "picture", "photo", "изображ", "картин", "фото"}},
	{kindTables, []string{"table", "row", "column", "таблиц", "строк"}},
	{kindText, []string{"text", "content", "body", "paragraph", "article", "текст", "содерж"}},
}

// goalKinds определяет, что извлекать, по ключевым словам цели. Без совпадений извлекается текст.
func goalKinds(goal string) []extractKind {
	goal = strings.ToLower(goal)
	var kinds []extractKind
	for _, g := range goalKeywords {
		for _, w := range g.words {
			if strings.Contains(goal, w) {
				kinds = append(kinds, g.kind)
				break
			}
		}
	}
	if len(kinds) == 0 {
		kinds = append(kinds, kindText)
	}
	return kinds
}

type Link struct {
	Text string `json:"text"`
	Href string `json:"href"`
}

type Image struct {
	Src string `json:"src"`
	Alt string `json:"alt,omitempty"`
}

// extractContent собирает данные только из видимой в окне части документа.
func extractContent(doc *dom.Document, goal string) (map[string]any, string) {
	kinds := goalKinds(goal)
	data := make(map[string]any, len(kinds))
	var summary []string

	for _, k := range kinds {
		switch k {
		case kindTitle:
			headings := collectHeadings(doc)
			data["title"] = doc.Title
			data["headings"] = headings
			summary = append(summary, fmt.Sprintf("заголовок %q, подзаголовков %d", doc.Title, len(headings)))
		case kindLinks:
			links := collectLinks(doc)
			data["links"] = links
			summary = append(summary, fmt.Sprintf("ссылок %d", len(links)))
		case kindImages:
			images := collectImages(doc)
			data["images"] = images
			summary = append(summary, fmt.Sprintf("изображений %d", len(images)))
		case kindTables:
			tables := collectTables(doc)
			data["tables"] = tables
			summary = append(summary, fmt.Sprintf("таблиц %d", len(tables)))
		case kindText:
			text := capRunes(visibleText(doc, doc.Root), maxExtractRunes)
			data["text"] = text
			summary = append(summary, fmt.Sprintf("текст %d символов", utf8.RuneCountInString(text)))
		}
	}
	return data, "Извлечено: " + strings.Join(summary, ", ")
}

func shown(doc *dom.Document, n *dom.RawNode) bool {
	if !n.Visible() {
		return false
	}
	vp := doc.Viewport
	if vp.Empty() {
		return true
	}
	b := n.Box
	return b.Right() > vp.X && b.X < vp.Right() && b.Bottom() > vp.Y && b.Y < vp.Bottom()
}

func eachShown(doc *dom.Document, tags map[string]bool, fn func(n *dom.RawNode)) {
	doc.Walk(func(n *dom.RawNode) bool {
		if n.IsElement() && tags[n.Tag] && shown(doc, n) {
			fn(n)
		}
		return true
	})
}

func collectHeadings(doc *dom.Document) []string {
	out := []string{}
	eachShown(doc, map[string]bool{"h1": true, "h2": true, "h3": true}, func(n *dom.RawNode) {
		if t := visibleText(doc, n); t != "" {
			out = append(out, t)
		}
	})
	return out
}

func collectLinks(doc *dom.Document) []Link {
	out := []Link{}
	eachShown(doc, map[string]bool{"a": true}, func(n *dom.RawNode) {
		href, ok := n.Attr("href")
		if !ok || href == "" {
			return
		}
		out = append(out, Link{Text: visibleText(doc, n), Href: href})
	})
	return out
}

func collectImages(doc *dom.Document) []Image {
	out := []Image{}
	eachShown(doc, map[string]bool{"img": true}, func(n *dom.RawNode) {
		src, _ := n.Attr("src")
		alt, _ := n.Attr("alt")
		if src == "" && alt == "" {
			return
		}
		out = append(out, Image{Src: src, Alt: alt})
	})
	return out
}

func collectTables(doc *dom.Document) [][][]string {
	out := [][][]string{}
	eachShown(doc, map[string]bool{"table": true}, func(table *dom.RawNode) {
		var rows [][]string
		var walk func(n *dom.RawNode)
		walk = func(n *dom.RawNode) {
			for _, c := range n.Children {
				if !c.IsElement() {
					continue
				}
				if c.Tag == "tr" {
					var cells []string
					for _, cell := range c.Children {
						if cell.IsElement() && (cell.Tag == "td" || cell.Tag == "th") {
							cells = append(cells, visibleText(doc, cell))
						}
					}
					if len(cells) > 0 {
						rows = append(rows, cells)
					}
					continue
				}
				walk(c)
			}
		}
		walk(table)
		out = append(out, rows)
	})
	return out
}

// visibleText собирает текстовые узлы, родитель которых виден и попадает в окно.
func visibleText(doc *dom.Document, root *dom.RawNode) string {
	if root == nil {
		return ""
	}
	var parts []string
	var walk func(n *dom.RawNode)
	walk = func(n *dom.RawNode) {
		vis := shown(doc, n)
		for _, c := range n.Children {
			if !c.IsElement() {
				if vis && !c.Box.Empty() {
					if t := strings.Join(strings.Fields(c.Text), " "); t != "" {
						parts = append(parts, t)
					}
				}
				continue
			}
			walk(c)
		}
		if n.Shadow != nil {
			for _, c := range n.Shadow.Children {
				if c.IsElement() {
					walk(c)
				}
			}
		}
	}
	walk(root)
	return strings.Join(parts, " ")
}

func capRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
