package extractor

import (
	"errors"
	"testing"

	"browserPilot/internal/dom"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const captured = `{
	"url": "https://example.com/",
	"title": "Пример",
	"viewport": {"x": 0, "y": 0, "width": 800, "height": 600},
	"root": {"id": 1, "type": "element", "tag": "html", "box": {"x": 0, "y": 0, "width": 800, "height": 600},
		"style": {"display": "block", "visibility": "visible", "opacity": "1"}, "hit": 0,
		"children": [
			{"id": 2, "type": "element", "tag": "body", "box": {"x": 0, "y": 0, "width": 800, "height": 600},
				"style": {"display": "block", "visibility": "visible", "opacity": "1"},
				"children": [
					{"id": 3, "type": "element", "tag": "button", "attrs": {"id": "go"},
						"box": {"x": 10, "y": 10, "width": 100, "height": 30},
						"style": {"display": "inline-block", "visibility": "visible", "opacity": "1", "cursor": "pointer"},
						"hit": 3,
						"children": [{"id": 0, "type": "text", "text": "Go", "box": {"x": 12, "y": 12, "width": 20, "height": 16}}]},
					{"id": 8, "type": "element", "tag": "button",
						"box": {"x": 400, "y": 10, "width": 100, "height": 30},
						"style": {"display": "inline-block", "visibility": "visible", "opacity": "1"},
						"hit": 2},
					{"id": 5, "type": "element", "tag": "my-widget",
						"box": {"x": 10, "y": 50, "width": 200, "height": 40},
						"style": {"display": "block", "visibility": "visible", "opacity": "1"}, "hit": 5,
						"shadow": {"id": 0, "type": "element", "tag": "#shadow-root", "children": [
							{"id": 6, "type": "element", "tag": "input", "attrs": {"type": "text", "name": "q"},
								"box": {"x": 12, "y": 52, "width": 150, "height": 20},
								"style": {"display": "inline-block", "visibility": "visible", "opacity": "1"},
								"value": "abc", "hit": 6}
						]}},
					{"id": 7, "type": "element", "tag": "iframe", "attrs": {"src": "https://other.example"},
						"box": {"x": 0, "y": 100, "width": 300, "height": 200},
						"style": {"display": "inline", "visibility": "visible", "opacity": "1"}, "hit": 7,
						"frameError": "вложенный документ недоступен"}
				]}
		]}
}`

type fakeEvaluator struct {
	result any
	err    error
	args   []any
}

func (f *fakeEvaluator) Evaluate(_ string, arg ...interface{}) (interface{}, error) {
	f.args = arg
	return f.result, f.err
}

func TestDecode_BuildsSnapshot(t *testing.T) {
	doc, err := Decode([]byte(captured))
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/", doc.URL)
	assert.Equal(t, 800.0, doc.Viewport.Width)

	snap := dom.NewBuilder(dom.DefaultOptions(), zaptest.NewLogger(t)).Build(doc)
	require.Equal(t, 2, snap.Count)

	btn := snap.Elements[0]
	assert.Equal(t, "button", btn.Tag)
	assert.Equal(t, "html[1]/body[1]/button[1]", btn.Locator)
	assert.Equal(t, "Go", btn.Text)
	assert.Equal(t, 1, snap.Stats.Excluded["occluded"], "вторая кнопка перекрыта")

	in := snap.Elements[1]
	assert.Equal(t, "input", in.Tag)
	assert.Equal(t, "input[1]", in.Locator)
	require.Len(t, in.Context, 1)
	assert.Equal(t, dom.BoundaryShadow, in.Context[0].Kind)
	assert.Equal(t, "html[1]/body[1]/my-widget[1]", in.Context[0].HostPath)
	assert.Equal(t, "abc", in.Value)

	require.Len(t, snap.Stats.Failures, 1)
}

func TestCapture(t *testing.T) {
	ev := &fakeEvaluator{result: captured}
	doc, err := Capture(ev)
	require.NoError(t, err)
	assert.Equal(t, "Пример", doc.Title)
	assert.Equal(t, []any{dom.OverlayContainerID}, ev.args)

	_, err = Capture(&fakeEvaluator{result: 42})
	assert.Error(t, err)

	boom := errors.New("target closed")
	_, err = Capture(&fakeEvaluator{err: boom})
	assert.ErrorIs(t, err, boom)

	_, err = Decode([]byte(`{"url": "x"}`))
	assert.Error(t, err)
}
