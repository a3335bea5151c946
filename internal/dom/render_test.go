package dom

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_LineFormat(t *testing.T) {
	snap := build(t, parse(t, basicPage), DefaultOptions())
	lines := strings.Split(snap.Text, "\n")
	require.Len(t, lines, snap.Count)

	assert.Equal(t, `[2][html[1]/body[1]/nav[1]/a[1]]<a href="/login">Login</a>`, lines[2])
	assert.Equal(t, `[3][html[1]/body[1]/input[1]]<input type="text" name="q" value="hello"></input>`, lines[3])
	assert.Equal(t,
		`[4][html[1]/body[1]/div[3]]<div role="tab" aria-selected="true" class="tab is-active" data-state="active">Tab</div>`,
		lines[4])
	assert.Equal(t, `[5][html[1]/body[1]/span[1]]<span>Go</span>`, lines[5])
}

func TestRender_CallerAllowlist(t *testing.T) {
	snap := build(t, parse(t, basicPage), DefaultOptions())

	out := snap.Render([]string{"id"})
	assert.Contains(t, out, `[0][html[1]/body[1]/nav[1]/button[1]]<button id="menu">Menu</button>`)
	assert.NotContains(t, out, `href=`)
}

func TestRender_MasksPasswordsAndCapsValues(t *testing.T) {
	long := strings.Repeat("x", 150)
	src := `<html><body><input type="password" value="secret"><textarea>` + long + `</textarea></body></html>`

	snap := build(t, parse(t, src), DefaultOptions())
	require.Equal(t, 2, snap.Count)

	assert.Contains(t, snap.Text, `value="***"`)
	assert.NotContains(t, snap.Text, "secret")
	assert.Contains(t, snap.Text, `value="`+strings.Repeat("x", maxValueRunes)+`..."`)
}

func TestRender_EmptySnapshot(t *testing.T) {
	var snap *Snapshot
	assert.Equal(t, "", snap.Render(nil))
	assert.Equal(t, "", (&Snapshot{}).Render(nil))
}

func TestSnapshot_LookupAndElement(t *testing.T) {
	snap := build(t, parse(t, basicPage), DefaultOptions())

	el, ok := snap.Lookup("/html/body/nav/a")
	require.True(t, ok)
	assert.Equal(t, 2, el.Index)

	_, ok = snap.Lookup("html[1]/body[1]/table[1]")
	assert.False(t, ok)

	el, ok = snap.Element(0)
	require.True(t, ok)
	assert.Equal(t, "Menu", el.Text)

	_, ok = snap.Element(-1)
	assert.False(t, ok)
	_, ok = snap.Element(snap.Count)
	assert.False(t, ok)
}

func TestParseLocator(t *testing.T) {
	segs, err := ParseLocator("xpath=/HTML/body[1]/div[2]")
	require.NoError(t, err)
	assert.Equal(t, []Segment{{"html", 1}, {"body", 1}, {"div", 2}}, segs)
	assert.Equal(t, "html[1]/body[1]/div[2]", FormatLocator(segs))

	for _, bad := range []string{"", "/", "div[0]", "div[x]", "div[2", "a//b", "[1]"} {
		_, err := ParseLocator(bad)
		assert.Error(t, err, bad)
	}
}

func TestDocumentFind(t *testing.T) {
	doc := parse(t, shadowPage)

	n, err := doc.Find("button[1]", []Boundary{{Kind: BoundaryShadow, HostPath: "html[1]/body[1]/div[1]"}})
	require.NoError(t, err)
	assert.Equal(t, "button", n.Tag)

	_, err = doc.Find("button[1]", []Boundary{{Kind: BoundaryFrame, HostPath: "html[1]/body[1]/div[1]"}})
	assert.Error(t, err)

	_, err = doc.Find("html[1]/body[1]/button[5]", nil)
	assert.Error(t, err)
}
