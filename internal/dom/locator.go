package dom

import (
	"fmt"
	"strconv"
	"strings"
)

// Segment - один шаг локатора: n-й (с 1) потомок с данным тегом.
type Segment struct {
	Tag string
	N   int
}

func (s Segment) String() string {
	return fmt.Sprintf("%s[%d]", s.Tag, s.N)
}

func ParseLocator(locator string) ([]Segment, error) {
	locator = strings.TrimSpace(locator)
	locator = strings.TrimPrefix(locator, "xpath=")
	locator = strings.Trim(locator, "/")
	if locator == "" {
		return nil, fmt.Errorf("пустой локатор")
	}

	parts := strings.Split(locator, "/")
	segs := make([]Segment, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, fmt.Errorf("пустой шаг в локаторе %q", locator)
		}
		tag, n := p, 1
		if i := strings.IndexByte(p, '['); i >= 0 {
			if !strings.HasSuffix(p, "]") {
				return nil, fmt.Errorf("некорректный шаг %q", p)
			}
			v, err := strconv.Atoi(p[i+1 : len(p)-1])
			if err != nil || v < 1 {
				return nil, fmt.Errorf("некорректный номер в шаге %q", p)
			}
			tag, n = p[:i], v
		}
		if tag == "" {
			return nil, fmt.Errorf("пустой тег в шаге %q", p)
		}
		segs = append(segs, Segment{Tag: strings.ToLower(tag), N: n})
	}
	return segs, nil
}

func FormatLocator(segs []Segment) string {
	parts := make([]string, len(segs))
	for i, s := range segs {
		parts[i] = s.String()
	}
	return strings.Join(parts, "/")
}

// NormalizeLocator приводит локатор к каноническому виду html[1]/body[1]/....
func NormalizeLocator(locator string) string {
	segs, err := ParseLocator(locator)
	if err != nil {
		return strings.TrimSpace(locator)
	}
	return FormatLocator(segs)
}

func childSegment(siblings []*RawNode, node *RawNode) Segment {
	n := 0
	for _, s := range siblings {
		if !s.IsElement() || s.Tag != node.Tag {
			continue
		}
		n++
		if s == node {
			break
		}
	}
	return Segment{Tag: node.Tag, N: n}
}

func joinLocator(parent string, seg Segment) string {
	if parent == "" {
		return seg.String()
	}
	return parent + "/" + seg.String()
}

func findInScope(top []*RawNode, segs []Segment) *RawNode {
	var cur *RawNode
	list := top
	for _, seg := range segs {
		cur = nil
		n := 0
		for _, c := range list {
			if !c.IsElement() || c.Tag != seg.Tag {
				continue
			}
			n++
			if n == seg.N {
				cur = c
				break
			}
		}
		if cur == nil {
			return nil
		}
		list = cur.Children
	}
	return cur
}

// Find находит узел по локатору с учётом цепочки границ встраивания.
func (d *Document) Find(locator string, chain []Boundary) (*RawNode, error) {
	if d == nil || d.Root == nil {
		return nil, fmt.Errorf("документ пуст")
	}

	top := []*RawNode{d.Root}
	for _, b := range chain {
		segs, err := ParseLocator(b.HostPath)
		if err != nil {
			return nil, err
		}
		host := findInScope(top, segs)
		if host == nil {
			return nil, fmt.Errorf("хост %s не найден", b.HostPath)
		}
		switch b.Kind {
		case BoundaryShadow:
			if host.Shadow == nil {
				return nil, fmt.Errorf("у %s нет shadow-области", b.HostPath)
			}
			top = host.Shadow.Children
		case BoundaryFrame:
			if host.Frame == nil || host.Frame.Root == nil {
				return nil, fmt.Errorf("вложенный документ %s недоступен", b.HostPath)
			}
			top = []*RawNode{host.Frame.Root}
		default:
			return nil, fmt.Errorf("неизвестная граница %q", b.Kind)
		}
	}

	segs, err := ParseLocator(locator)
	if err != nil {
		return nil, err
	}
	node := findInScope(top, segs)
	if node == nil {
		return nil, fmt.Errorf("элемент %s не найден", locator)
	}
	return node, nil
}
