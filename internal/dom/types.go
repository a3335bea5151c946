package dom

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	NodeElement = "element"
	NodeText    = "text"
)

// OverlayContainerID - id контейнера подсветки, сам контейнер в снимок не попадает.
const OverlayContainerID = "browser-pilot-highlight-container"

type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

func (r Rect) Center() (float64, float64) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x < r.X+r.Width && y >= r.Y && y < r.Y+r.Height
}

func (r Rect) Bottom() float64 { return r.Y + r.Height }
func (r Rect) Right() float64  { return r.X + r.Width }

// Style - вычисленные стили, нужные для проверок видимости и интерактивности.
type Style struct {
	Display    string `json:"display,omitempty"`
	Visibility string `json:"visibility,omitempty"`
	Opacity    string `json:"opacity,omitempty"`
	Cursor     string `json:"cursor,omitempty"`
	ZIndex     int    `json:"zIndex,omitempty"`
}

func (s Style) hidden() bool {
	if s.Display == "none" {
		return true
	}
	if s.Visibility == "hidden" || s.Visibility == "collapse" {
		return true
	}
	if s.Opacity != "" {
		if v, err := strconv.ParseFloat(strings.TrimSpace(s.Opacity), 64); err == nil && v == 0 {
			return true
		}
	}
	return false
}

// RawNode - узел живого документа в том виде, в каком его снимает страница.
// Координаты всех узлов (включая вложенные документы) приведены к окну верхнего уровня.
type RawNode struct {
	ID       int               `json:"id"`
	Type     string            `json:"type"`
	Tag      string            `json:"tag,omitempty"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	Text     string            `json:"text,omitempty"`
	Box      Rect              `json:"box"`
	Style    Style             `json:"style"`
	Value    string            `json:"value,omitempty"`
	Listener bool              `json:"listener,omitempty"`
	// HitID - id элемента, который браузер вернул для точки в центре бокса. 0, если неизвестно.
	HitID      int        `json:"hit,omitempty"`
	Children   []*RawNode `json:"children,omitempty"`
	Shadow     *RawNode   `json:"shadow,omitempty"`
	Frame      *Document  `json:"frame,omitempty"`
	FrameError string     `json:"frameError,omitempty"`
}

func (n *RawNode) Attr(name string) (string, bool) {
	if n.Attrs == nil {
		return "", false
	}
	v, ok := n.Attrs[name]
	return v, ok
}

func (n *RawNode) IsElement() bool { return n.Type != NodeText }

type Document struct {
	URL      string   `json:"url"`
	Title    string   `json:"title"`
	Viewport Rect     `json:"viewport"`
	Root     *RawNode `json:"root"`
}

// Options - настройки построителя, приходят в updateConfig.
type Options struct {
	HighlightElements  bool     `json:"highlightElements"`
	ViewportExpansion  int      `json:"viewportExpansion"`
	IncludedAttributes []string `json:"includedAttributes"`
	Debug              bool     `json:"debug"`
}

func DefaultOptions() Options {
	return Options{
		HighlightElements: true,
		ViewportExpansion: 0,
		IncludedAttributes: []string{
			"title", "type", "name", "role", "href", "tabindex",
			"aria-label", "placeholder", "value", "alt", "aria-haspopup",
		},
	}
}

func (o Options) Validate() error {
	if o.ViewportExpansion < -1 {
		return fmt.Errorf("viewportExpansion должен быть >= -1, получено %d", o.ViewportExpansion)
	}
	return nil
}

const (
	BoundaryShadow = "shadow"
	BoundaryFrame  = "frame"
)

// Boundary - граница встраивания, внутри которой находится элемент.
// HostPath - локатор хоста в области видимости предыдущей границы.
type Boundary struct {
	Kind     string `json:"kind"`
	HostPath string `json:"hostPath"`
}

type ElementNode struct {
	Index       int               `json:"index"`
	Locator     string            `json:"xpath"`
	Tag         string            `json:"tag"`
	Attrs       map[string]string `json:"attrs,omitempty"`
	Text        string            `json:"text,omitempty"`
	Value       string            `json:"value,omitempty"`
	Box         Rect              `json:"box"`
	Visible     bool              `json:"visible"`
	InViewport  bool              `json:"inViewport"`
	Topmost     bool              `json:"topmost"`
	Interactive bool              `json:"interactive"`
	Context     []Boundary        `json:"context,omitempty"`
}

type Overlay struct {
	Index int    `json:"index"`
	Box   Rect   `json:"box"`
	Color string `json:"color"`
	Label string `json:"label"`
}

type Stats struct {
	Visited   int            `json:"visited"`
	Excluded  map[string]int `json:"excluded"`
	Failures  []string       `json:"failures,omitempty"`
	ElapsedMs int64          `json:"elapsedMs"`
}

type Snapshot struct {
	URL      string         `json:"url"`
	Title    string         `json:"title"`
	Elements []*ElementNode `json:"elements"`
	Count    int            `json:"count"`
	Text     string         `json:"text"`
	Overlays []Overlay      `json:"overlays,omitempty"`
	Stats    Stats          `json:"stats"`
}

// Element возвращает элемент по индексу снимка.
func (s *Snapshot) Element(index int) (*ElementNode, bool) {
	if s == nil || index < 0 || index >= len(s.Elements) {
		return nil, false
	}
	return s.Elements[index], true
}

// Lookup ищет элемент по локатору, первый в порядке обхода.
func (s *Snapshot) Lookup(locator string) (*ElementNode, bool) {
	if s == nil {
		return nil, false
	}
	locator = NormalizeLocator(locator)
	for _, el := range s.Elements {
		if el.Locator == locator {
			return el, true
		}
	}
	return nil, false
}

// TraversalError - не удалось заглянуть во вложенный документ или shadow-область.
type TraversalError struct {
	Boundary string
	Host     string
	Reason   string
}

func (e *TraversalError) Error() string {
	return fmt.Sprintf("обход %s (%s) пропущен: %s", e.Boundary, e.Host, e.Reason)
}

// Visible - ненулевой бокс и элемент не скрыт стилями.
func (n *RawNode) Visible() bool { return visible(n) }

// Walk обходит узлы документа в прямом порядке, заходя в shadow-области и вложенные документы.
// Обход поддерева прекращается, если fn возвращает false.
func (d *Document) Walk(fn func(n *RawNode) bool) {
	if d == nil || d.Root == nil {
		return
	}
	var walk func(n *RawNode)
	walk = func(n *RawNode) {
		if n == nil || !fn(n) {
			return
		}
		if n.Shadow != nil {
			for _, c := range n.Shadow.Children {
				walk(c)
			}
		}
		for _, c := range n.Children {
			walk(c)
		}
		if n.Frame != nil {
			n.Frame.Walk(fn)
		}
	}
	walk(d.Root)
}
