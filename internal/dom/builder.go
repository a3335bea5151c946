package dom

import (
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

const (
	maxExcerptRunes = 100
	maxValueRunes   = 100
)

// Builder превращает снятый документ в индексированный снимок интерактивных элементов.
type Builder struct {
	mu   sync.RWMutex
	opts Options
	log  *zap.Logger
}

func NewBuilder(opts Options, log *zap.Logger) *Builder {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.ViewportExpansion < -1 {
		opts.ViewportExpansion = -1
	}
	return &Builder{opts: opts, log: log}
}

func (b *Builder) Options() Options {
	b.mu.RLock()
	defer b.mu.RUnlock()
	o := b.opts
	o.IncludedAttributes = append([]string(nil), b.opts.IncludedAttributes...)
	return o
}

func (b *Builder) SetOptions(opts Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	b.mu.Lock()
	b.opts = opts
	b.mu.Unlock()
	return nil
}

// Build обходит документ в прямом порядке и назначает индексы с нуля.
// Повторный вызов на неизменном документе даёт тот же снимок.
func (b *Builder) Build(doc *Document) *Snapshot {
	opts := b.Options()
	start := time.Now()

	st := &buildState{
		opts: opts,
		log:  b.log,
		snap: &Snapshot{
			Elements: []*ElementNode{},
			Stats:    Stats{Excluded: make(map[string]int)},
		},
	}
	if doc != nil {
		st.snap.URL = doc.URL
		st.snap.Title = doc.Title
		st.viewport = doc.Viewport
		st.hits = newHitIndex(doc)
		if doc.Root != nil {
			top := []*RawNode{doc.Root}
			st.walk(doc.Root, top, "", nil, true, "")
		}
	}

	snap := st.snap
	snap.Count = len(snap.Elements)
	snap.Text = snap.Render(opts.IncludedAttributes)
	if opts.HighlightElements {
		snap.Overlays = Overlays(snap)
	}
	snap.Stats.ElapsedMs = time.Since(start).Milliseconds()

	if opts.Debug {
		b.log.Info("Статистика построения снимка",
			zap.String("url", snap.URL),
			zap.Int("visited", snap.Stats.Visited),
			zap.Int("elements", snap.Count),
			zap.Any("excluded", snap.Stats.Excluded),
			zap.Strings("failures", snap.Stats.Failures),
			zap.Int64("elapsed_ms", snap.Stats.ElapsedMs),
		)
	}
	return snap
}

type buildState struct {
	opts     Options
	log      *zap.Logger
	viewport Rect
	hits     *hitIndex
	snap     *Snapshot
}

// walk возвращает видимый текст поддерева, не принадлежащий вложенным индексированным элементам.
func (s *buildState) walk(n *RawNode, siblings []*RawNode, parentPath string, chain []Boundary, parentVisible bool, parentCursor string) string {
	if n == nil {
		return ""
	}
	s.snap.Stats.Visited++

	if !n.IsElement() {
		text := collapseSpaces(n.Text)
		if text == "" || n.Box.Empty() || !parentVisible {
			return ""
		}
		return text
	}

	if denied(n) {
		s.snap.Stats.Excluded["denylist"]++
		return ""
	}

	path := joinLocator(parentPath, childSegment(siblings, n))
	vis := visible(n)

	var el *ElementNode
	switch {
	case !vis:
		s.snap.Stats.Excluded["hidden"]++
	case !inViewport(n.Box, s.viewport, s.opts.ViewportExpansion):
		s.snap.Stats.Excluded["viewport"]++
	case !s.hits.topmost(n):
		s.snap.Stats.Excluded["occluded"]++
	case !interactive(n, parentCursor):
		s.snap.Stats.Excluded["not_interactive"]++
	default:
		el = s.newElement(n, path, chain)
	}

	var parts []string
	for _, c := range n.Children {
		if t := s.walk(c, n.Children, path, chain, vis, n.Style.Cursor); t != "" {
			parts = append(parts, t)
		}
	}

	if n.Shadow != nil {
		inner := withBoundary(chain, Boundary{Kind: BoundaryShadow, HostPath: path})
		for _, c := range n.Shadow.Children {
			if t := s.walk(c, n.Shadow.Children, "", inner, vis, n.Style.Cursor); t != "" {
				parts = append(parts, t)
			}
		}
	}

	switch {
	case n.FrameError != "":
		s.skip(&TraversalError{Boundary: BoundaryFrame, Host: path, Reason: n.FrameError})
	case n.Frame != nil && n.Frame.Root != nil:
		inner := withBoundary(chain, Boundary{Kind: BoundaryFrame, HostPath: path})
		s.walk(n.Frame.Root, []*RawNode{n.Frame.Root}, "", inner, true, "")
	}

	text := strings.Join(parts, " ")
	if el != nil {
		el.Text = truncateRunes(text, maxExcerptRunes)
		return ""
	}
	return text
}

func (s *buildState) newElement(n *RawNode, path string, chain []Boundary) *ElementNode {
	attrs := make(map[string]string, len(n.Attrs))
	for k, v := range n.Attrs {
		attrs[k] = v
	}

	value := ""
	if editable(n) {
		value = n.Value
		if value == "" && n.Tag != "select" {
			value = attrs["value"]
		}
	}

	el := &ElementNode{
		Index:       len(s.snap.Elements),
		Locator:     path,
		Tag:         n.Tag,
		Attrs:       attrs,
		Value:       value,
		Box:         n.Box,
		Visible:     true,
		InViewport:  true,
		Topmost:     true,
		Interactive: true,
		Context:     append([]Boundary(nil), chain...),
	}
	s.snap.Elements = append(s.snap.Elements, el)
	return el
}

func (s *buildState) skip(err *TraversalError) {
	s.snap.Stats.Failures = append(s.snap.Stats.Failures, err.Error())
	s.log.Debug("Вложенный документ пропущен", zap.Error(err))
}

func withBoundary(chain []Boundary, b Boundary) []Boundary {
	out := make([]Boundary, 0, len(chain)+1)
	out = append(out, chain...)
	return append(out, b)
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit]) + "..."
}
