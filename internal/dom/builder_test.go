package dom

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const basicPage = `<html><head><title>Demo</title><script>var x = 1</script></head><body>
<nav><button id="menu">Menu</button><button>Search</button><a href="/login">Login</a></nav>
<div>plain text</div>
<div style="display:none"><button>Hidden</button></div>
<input type="text" name="q" value="hello">
<input type="hidden" name="csrf" value="x">
<div role="tab" aria-selected="true" class="tab is-active">Tab</div>
<span onclick="go()">Go</span>
<div style="cursor:pointer">Card <span>inner</span></div>
</body></html>`

func parse(t *testing.T, src string) *Document {
	t.Helper()
	doc, err := ParseHTMLString(src, Rect{Width: 1280, Height: 720})
	require.NoError(t, err)
	return doc
}

func build(t *testing.T, doc *Document, opts Options) *Snapshot {
	t.Helper()
	return NewBuilder(opts, zaptest.NewLogger(t)).Build(doc)
}

func TestBuild_IndexesInteractiveElementsInPreOrder(t *testing.T) {
	snap := build(t, parse(t, basicPage), DefaultOptions())

	want := []struct {
		tag     string
		locator string
		text    string
	}{
		{"button", "html[1]/body[1]/nav[1]/button[1]", "Menu"},
		{"button", "html[1]/body[1]/nav[1]/button[2]", "Search"},
		{"a", "html[1]/body[1]/nav[1]/a[1]", "Login"},
		{"input", "html[1]/body[1]/input[1]", ""},
		{"div", "html[1]/body[1]/div[3]", "Tab"},
		{"span", "html[1]/body[1]/span[1]", "Go"},
		{"div", "html[1]/body[1]/div[4]", "Card inner"},
	}

	require.Equal(t, len(want), snap.Count)
	require.Len(t, snap.Elements, snap.Count)
	for i, w := range want {
		el := snap.Elements[i]
		assert.Equal(t, i, el.Index)
		assert.Equal(t, w.tag, el.Tag, "index %d", i)
		assert.Equal(t, w.locator, el.Locator, "index %d", i)
		assert.Equal(t, w.text, el.Text, "index %d", i)
	}
	assert.Equal(t, "Demo", snap.Title)
}

func TestBuild_IsIdempotent(t *testing.T) {
	doc := parse(t, basicPage)
	b := NewBuilder(DefaultOptions(), zaptest.NewLogger(t))

	first := b.Build(doc)
	second := b.Build(doc)

	require.Equal(t, first.Count, second.Count)
	for i := range first.Elements {
		assert.Equal(t, first.Elements[i].Tag, second.Elements[i].Tag)
		assert.Equal(t, first.Elements[i].Locator, second.Elements[i].Locator)
	}
	assert.Equal(t, first.Text, second.Text)
}

func TestBuild_EveryElementPassesAllChecks(t *testing.T) {
	pages := []string{basicPage, occludedPage, shadowPage, framePage}
	for i, src := range pages {
		t.Run(fmt.Sprintf("page_%d", i), func(t *testing.T) {
			doc := parse(t, src)
			opts := DefaultOptions()
			snap := build(t, doc, opts)
			hits := newHitIndex(doc)

			for _, el := range snap.Elements {
				n, err := doc.Find(el.Locator, el.Context)
				require.NoError(t, err, el.Locator)
				assert.True(t, visible(n), el.Locator)
				assert.True(t, inViewport(n.Box, doc.Viewport, opts.ViewportExpansion), el.Locator)
				assert.True(t, hits.topmost(n), el.Locator)
				assert.True(t, interactive(n, ""), el.Locator)
			}
		})
	}
}

func TestBuild_ViewportExpansion(t *testing.T) {
	src := `<html><body>
<button data-box="10,10,100,20">Top</button>
<button data-box="10,920,100,20">Below</button>
</body></html>`
	doc := parse(t, src)

	opts := DefaultOptions()
	opts.ViewportExpansion = 50
	snap := build(t, doc, opts)
	require.Equal(t, 1, snap.Count)
	assert.Equal(t, "Top", snap.Elements[0].Text)
	assert.Equal(t, 1, snap.Stats.Excluded["viewport"])

	opts.ViewportExpansion = 250
	snap = build(t, doc, opts)
	assert.Equal(t, 2, snap.Count)

	opts.ViewportExpansion = -1
	snap = build(t, doc, opts)
	require.Equal(t, 2, snap.Count)
	assert.Equal(t, "Below", snap.Elements[1].Text)
}

const occludedPage = `<html><body>
<button data-box="10,10,100,20">Under</button>
<div data-box="0,0,300,300" style="z-index: 10">modal</div>
<button data-box="400,10,100,20">Free</button>
</body></html>`

func TestBuild_ExcludesOccludedElements(t *testing.T) {
	snap := build(t, parse(t, occludedPage), DefaultOptions())

	require.Equal(t, 1, snap.Count)
	assert.Equal(t, "Free", snap.Elements[0].Text)
	assert.Equal(t, 1, snap.Stats.Excluded["occluded"])
}

func TestBuild_UsesLiveHitResult(t *testing.T) {
	btn := &RawNode{ID: 3, Type: NodeElement, Tag: "button", Box: Rect{X: 0, Y: 0, Width: 50, Height: 20}, HitID: 4}
	cover := &RawNode{ID: 4, Type: NodeElement, Tag: "div", Box: Rect{X: 0, Y: 0, Width: 10, Height: 10}}
	free := &RawNode{ID: 5, Type: NodeElement, Tag: "button", Box: Rect{X: 100, Y: 0, Width: 50, Height: 20}, HitID: 5}
	body := &RawNode{ID: 2, Type: NodeElement, Tag: "body", Box: Rect{Width: 200, Height: 20}, Children: []*RawNode{btn, cover, free}}
	doc := &Document{
		Viewport: Rect{Width: 200, Height: 100},
		Root:     &RawNode{ID: 1, Type: NodeElement, Tag: "html", Box: Rect{Width: 200, Height: 20}, Children: []*RawNode{body}},
	}

	snap := build(t, doc, DefaultOptions())

	require.Equal(t, 1, snap.Count)
	assert.Equal(t, "html[1]/body[1]/button[2]", snap.Elements[0].Locator)
}

func TestBuild_InvisibleStyles(t *testing.T) {
	src := `<html><body>
<button style="visibility:hidden">A</button>
<button style="opacity: 0">B</button>
<div style="visibility:hidden"><button style="visibility:visible">C</button></div>
<button hidden>D</button>
</body></html>`

	snap := build(t, parse(t, src), DefaultOptions())

	require.Equal(t, 1, snap.Count)
	assert.Equal(t, "C", snap.Elements[0].Text)
}

func TestBuild_CursorPointerCountsOnlyWhereIntroduced(t *testing.T) {
	src := `<html><body><div style="cursor:pointer"><span>one</span><span>two</span></div></body></html>`

	snap := build(t, parse(t, src), DefaultOptions())

	require.Equal(t, 1, snap.Count)
	assert.Equal(t, "div", snap.Elements[0].Tag)
	assert.Equal(t, "one two", snap.Elements[0].Text)
}

func TestBuild_InteractivitySignatures(t *testing.T) {
	cases := map[string]string{
		"tabindex":        `<div tabindex="0">x</div>`,
		"vue binding":     `<div @click="open">x</div>`,
		"angular binding": `<div ng-click="open()">x</div>`,
		"alpine binding":  `<div x-on:click="open">x</div>`,
		"expanded":        `<div aria-expanded="false">x</div>`,
		"draggable":       `<div draggable="true">x</div>`,
		"contenteditable": `<div contenteditable="true">x</div>`,
		"role":            `<div role="menuitem">x</div>`,
		"summary":         `<details><summary>x</summary></details>`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			snap := build(t, parse(t, "<html><body>"+body+"</body></html>"), DefaultOptions())
			assert.GreaterOrEqual(t, snap.Count, 1)
		})
	}

	negative := `<html><body><div tabindex="-1">x</div><div draggable="false">y</div><p>z</p></body></html>`
	snap := build(t, parse(t, negative), DefaultOptions())
	assert.Equal(t, 0, snap.Count)
}

func TestBuild_ExcerptStopsAtNestedIndexedElements(t *testing.T) {
	src := `<html><body><div role="button">Outer <button>Inner</button> tail</div></body></html>`

	snap := build(t, parse(t, src), DefaultOptions())

	require.Equal(t, 2, snap.Count)
	assert.Equal(t, "Outer tail", snap.Elements[0].Text)
	assert.Equal(t, "Inner", snap.Elements[1].Text)
}

func TestBuild_ExcerptIsCapped(t *testing.T) {
	long := strings.Repeat("a", 300)
	snap := build(t, parse(t, "<html><body><button>"+long+"</button></body></html>"), DefaultOptions())

	require.Equal(t, 1, snap.Count)
	assert.Equal(t, strings.Repeat("a", maxExcerptRunes)+"...", snap.Elements[0].Text)
}

const shadowPage = `<html><body>
<div id="host"><template shadowrootmode="open"><button>Inside</button></template></div>
<button>Outside</button>
</body></html>`

func TestBuild_ShadowContentResetsLocator(t *testing.T) {
	snap := build(t, parse(t, shadowPage), DefaultOptions())

	require.Equal(t, 2, snap.Count)
	inside := snap.Elements[0]
	assert.Equal(t, "button[1]", inside.Locator)
	assert.Equal(t, []Boundary{{Kind: BoundaryShadow, HostPath: "html[1]/body[1]/div[1]"}}, inside.Context)
	assert.Equal(t, "Inside", inside.Text)

	outside := snap.Elements[1]
	assert.Equal(t, "html[1]/body[1]/button[1]", outside.Locator)
	assert.Empty(t, outside.Context)
}

const framePage = `<html><body>
<iframe srcdoc="<html><body><a href='/x'>Frame link</a></body></html>"></iframe>
<iframe data-frame-error="cross-origin"></iframe>
<button>After</button>
</body></html>`

func TestBuild_SubDocumentsAndSwallowedFailures(t *testing.T) {
	snap := build(t, parse(t, framePage), DefaultOptions())

	require.Equal(t, 2, snap.Count)
	link := snap.Elements[0]
	assert.Equal(t, "a", link.Tag)
	assert.Equal(t, "html[1]/body[1]/a[1]", link.Locator)
	assert.Equal(t, []Boundary{{Kind: BoundaryFrame, HostPath: "html[1]/body[1]/iframe[1]"}}, link.Context)

	assert.Equal(t, "After", snap.Elements[1].Text)
	assert.Len(t, snap.Stats.Failures, 1)
	assert.Contains(t, snap.Stats.Failures[0], "cross-origin")
}

func TestBuild_NilDocument(t *testing.T) {
	snap := NewBuilder(DefaultOptions(), nil).Build(nil)
	assert.Equal(t, 0, snap.Count)
	assert.Empty(t, snap.Text)
}

func TestBuild_Overlays(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("<html><body>")
	for i := 0; i < 13; i++ {
		fmt.Fprintf(&sb, "<button>b%d</button>", i)
	}
	sb.WriteString("</body></html>")
	doc := parse(t, sb.String())

	snap := build(t, doc, DefaultOptions())
	require.Len(t, snap.Overlays, 13)
	assert.Equal(t, palette[0], snap.Overlays[12].Color)
	assert.Equal(t, "12", snap.Overlays[12].Label)
	assert.Equal(t, snap.Elements[3].Box, snap.Overlays[3].Box)

	opts := DefaultOptions()
	opts.HighlightElements = false
	assert.Empty(t, build(t, doc, opts).Overlays)
}

func TestBuilder_SetOptionsValidates(t *testing.T) {
	b := NewBuilder(DefaultOptions(), nil)

	err := b.SetOptions(Options{ViewportExpansion: -2})
	require.Error(t, err)

	require.NoError(t, b.SetOptions(Options{ViewportExpansion: -1, Debug: true}))
	assert.Equal(t, -1, b.Options().ViewportExpansion)
	assert.True(t, b.Options().Debug)
}
