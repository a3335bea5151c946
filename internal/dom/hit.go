package dom

type hitEntry struct {
	node *RawNode
	z    int
}

// hitIndex хранит порядок отрисовки в каждой изолированной области
// (документ, shadow-область, вложенный документ) для проверки верхнего элемента.
type hitIndex struct {
	parent  map[*RawNode]*RawNode
	scopeOf map[*RawNode]int
	scopes  [][]hitEntry
	byID    map[int]*RawNode
}

func newHitIndex(doc *Document) *hitIndex {
	h := &hitIndex{
		parent:  make(map[*RawNode]*RawNode),
		scopeOf: make(map[*RawNode]int),
		byID:    make(map[int]*RawNode),
	}
	if doc != nil && doc.Root != nil {
		h.addScope([]*RawNode{doc.Root})
	}
	return h
}

func (h *hitIndex) addScope(top []*RawNode) {
	id := len(h.scopes)
	h.scopes = append(h.scopes, nil)
	for _, n := range top {
		h.walk(n, nil, id, 0)
	}
}

func (h *hitIndex) walk(n *RawNode, parent *RawNode, scope, parentZ int) {
	if n == nil || !n.IsElement() {
		return
	}
	h.parent[n] = parent
	h.scopeOf[n] = scope
	if n.ID != 0 {
		h.byID[n.ID] = n
	}

	z := parentZ
	if n.Style.ZIndex != 0 {
		z = n.Style.ZIndex
	}
	if visible(n) {
		h.scopes[scope] = append(h.scopes[scope], hitEntry{node: n, z: z})
	}

	for _, c := range n.Children {
		h.walk(c, n, scope, z)
	}
	if n.Shadow != nil {
		h.addScope(n.Shadow.Children)
	}
	if n.Frame != nil && n.Frame.Root != nil {
		h.addScope([]*RawNode{n.Frame.Root})
	}
}

func (h *hitIndex) descends(node, ancestor *RawNode) bool {
	for cur := node; cur != nil; cur = h.parent[cur] {
		if cur == ancestor {
			return true
		}
	}
	return false
}

// topmost - является ли элемент (или его потомок) верхним в центре своего бокса.
func (h *hitIndex) topmost(n *RawNode) bool {
	if n.HitID != 0 {
		hit, ok := h.byID[n.HitID]
		return ok && h.descends(hit, n)
	}

	scope, ok := h.scopeOf[n]
	if !ok {
		return false
	}
	cx, cy := n.Box.Center()
	var best *hitEntry
	for i := range h.scopes[scope] {
		e := &h.scopes[scope][i]
		if !e.node.Box.Contains(cx, cy) {
			continue
		}
		if best == nil || e.z >= best.z {
			best = e
		}
	}
	return best != nil && h.descends(best.node, n)
}
