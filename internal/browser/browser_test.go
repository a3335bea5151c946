package browser

import (
	"context"
	"testing"
	"time"

	"browserPilot/internal/action"
	"browserPilot/internal/dom"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNew_Defaults(t *testing.T) {
	b := New(Config{Headless: true}, nil)
	assert.Equal(t, 30*time.Second, b.cfg.Timeout)
	assert.Equal(t, 60*time.Second, b.cfg.NavigateTimeout)
	assert.Equal(t, 10*time.Second, b.cfg.ActionTimeout)

	b = New(Config{ActionTimeout: time.Second}, zaptest.NewLogger(t))
	assert.Equal(t, time.Second, b.cfg.ActionTimeout)
}

func TestNotLaunched(t *testing.T) {
	b := New(Config{}, zaptest.NewLogger(t))
	ctx := context.Background()

	assert.ErrorIs(t, b.PressAt(ctx, 1, 1), ErrNotLaunched)
	assert.ErrorIs(t, b.ScrollBy(ctx, 100), ErrNotLaunched)
	_, err := b.ViewportHeight(ctx)
	assert.ErrorIs(t, err, ErrNotLaunched)
	_, err = b.Capture(ctx)
	assert.ErrorIs(t, err, ErrNotLaunched)
	assert.ErrorIs(t, b.Navigate(ctx, "https://example.com"), ErrNotLaunched)
	assert.ErrorIs(t, b.Highlight(ctx, nil), ErrNotLaunched)
	assert.Equal(t, "", b.URL())
	assert.NoError(t, b.Close())
}

func TestParseLoadState(t *testing.T) {
	assert.Equal(t, playwright.LoadStateNetworkidle, parseLoadState("NetworkIdle"))
	assert.Equal(t, playwright.LoadStateDomcontentloaded, parseLoadState("domcontentloaded"))
	assert.Equal(t, playwright.LoadStateLoad, parseLoadState("load"))
	assert.Equal(t, playwright.LoadStateLoad, parseLoadState("что-то"))
}

func TestToFloat(t *testing.T) {
	for _, v := range []interface{}{720, int64(720), 720.0, float32(720)} {
		f, ok := toFloat(v)
		require.True(t, ok, "%T", v)
		assert.Equal(t, 720.0, f)
	}
	_, ok := toFloat("720")
	assert.False(t, ok)
}

const framedPage = `<html><body>
<nav><a href="/a">A</a><a href="/b">B</a></nav>
<iframe srcdoc="<html><body><button>Внутри</button></body></html>"></iframe>
</body></html>`

func buildSnapshot(t *testing.T) *dom.Snapshot {
	t.Helper()
	doc, err := dom.ParseHTMLString(framedPage, dom.Rect{Width: 1280, Height: 720})
	require.NoError(t, err)
	return dom.NewBuilder(dom.DefaultOptions(), zaptest.NewLogger(t)).Build(doc)
}

func TestPlanTarget(t *testing.T) {
	snap := buildSnapshot(t)

	t.Run("локатор из снимка", func(t *testing.T) {
		tg, err := planTarget(snap, "/html/body/nav/a[2]", nil)
		require.NoError(t, err)
		assert.Equal(t, "html[1]/body[1]/nav[1]/a[2]", tg.Locator)
		assert.Empty(t, tg.Chain)
		assert.Equal(t, []dom.Segment{{Tag: "html", N: 1}, {Tag: "body", N: 1}, {Tag: "nav", N: 1}, {Tag: "a", N: 2}}, tg.steps)
	})

	t.Run("индекс внутри вложенного документа", func(t *testing.T) {
		var idx = -1
		for _, el := range snap.Elements {
			if el.Tag == "button" {
				idx = el.Index
			}
		}
		require.GreaterOrEqual(t, idx, 0, "кнопка во фрейме должна попасть в снимок")

		tg, err := planTarget(snap, "", &idx)
		require.NoError(t, err)
		require.Len(t, tg.Chain, 1)
		assert.Equal(t, dom.BoundaryFrame, tg.Chain[0].Kind)
		require.Len(t, tg.hosts, 1)

		arg := tg.arg()
		assert.Equal(t, dom.OverlayContainerID, arg["overlayId"])
		chain := arg["chain"].([]interface{})
		require.Len(t, chain, 1)
		assert.Equal(t, dom.BoundaryFrame, chain[0].(map[string]interface{})["kind"])
	})

	t.Run("локатора нет в снимке", func(t *testing.T) {
		tg, err := planTarget(snap, "html/body/main/div[3]", nil)
		require.NoError(t, err)
		assert.Equal(t, "html[1]/body[1]/main[1]/div[3]", tg.Locator)
		assert.Empty(t, tg.Chain)
	})

	t.Run("ошибки", func(t *testing.T) {
		missing := 999
		_, err := planTarget(snap, "", &missing)
		assert.ErrorIs(t, err, action.ErrElementNotFound)

		_, err = planTarget(snap, "", nil)
		assert.ErrorIs(t, err, action.ErrElementNotFound)

		_, err = planTarget(snap, "html/body/a[0]", nil)
		assert.ErrorIs(t, err, action.ErrElementNotFound)
	})
}

func TestOverlayArg(t *testing.T) {
	arg := overlayArg([]dom.Overlay{{Index: 0, Box: dom.Rect{X: 1, Y: 2, Width: 3, Height: 4}, Color: "#FF0000", Label: "0"}})
	assert.Equal(t, dom.OverlayContainerID, arg["id"])
	items := arg["overlays"].([]interface{})
	require.Len(t, items, 1)
	item := items[0].(map[string]interface{})
	assert.Equal(t, 3.0, item["width"])
	assert.Equal(t, "#FF0000", item["color"])
}

func TestObserverScriptMentionsBinding(t *testing.T) {
	assert.Contains(t, observerScript, mutationBinding)
	assert.Contains(t, observerScript, dom.OverlayContainerID)
}
