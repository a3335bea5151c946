package browser

import (
	"context"

	"browserPilot/internal/dom"

	"github.com/playwright-community/playwright-go"
)

// highlightScript пересоздаёт контейнер подсветки с рамками и номерами.
// Контейнер не перехватывает события указателя и не попадает в снимок.
const highlightScript = `
(arg) => {
	const old = document.getElementById(arg.id);
	if (old) old.remove();
	const box = document.createElement('div');
	box.id = arg.id;
	box.style.position = 'fixed';
	box.style.left = '0';
	box.style.top = '0';
	box.style.width = '0';
	box.style.height = '0';
	box.style.pointerEvents = 'none';
	box.style.zIndex = '2147483647';
	for (const o of arg.overlays) {
		const frame = document.createElement('div');
		frame.style.position = 'fixed';
		frame.style.left = o.x + 'px';
		frame.style.top = o.y + 'px';
		frame.style.width = o.width + 'px';
		frame.style.height = o.height + 'px';
		frame.style.border = '2px solid ' + o.color;
		frame.style.backgroundColor = o.color + '1A';
		frame.style.boxSizing = 'border-box';
		frame.style.pointerEvents = 'none';

		const label = document.createElement('div');
		label.textContent = o.label;
		label.style.position = 'absolute';
		label.style.top = '-2px';
		label.style.right = '-2px';
		label.style.background = o.color;
		label.style.color = 'white';
		label.style.font = 'bold 11px sans-serif';
		label.style.padding = '1px 4px';
		label.style.borderRadius = '3px';
		frame.appendChild(label);
		box.appendChild(frame);
	}
	(document.body || document.documentElement).appendChild(box);
}
`

const clearHighlightScript = `
(id) => {
	const box = document.getElementById(id);
	if (box) box.remove();
}
`

func overlayArg(overlays []dom.Overlay) map[string]interface{} {
	items := make([]interface{}, len(overlays))
	for i, o := range overlays {
		items[i] = map[string]interface{}{
			"x":      o.Box.X,
			"y":      o.Box.Y,
			"width":  o.Box.Width,
			"height": o.Box.Height,
			"color":  o.Color,
			"label":  o.Label,
		}
	}
	return map[string]interface{}{"id": dom.OverlayContainerID, "overlays": items}
}

// Highlight рисует рамки поверх страницы. Пустой список убирает подсветку.
func (b *PlaywrightBrowser) Highlight(ctx context.Context, overlays []dom.Overlay) error {
	if len(overlays) == 0 {
		return b.ClearHighlight(ctx)
	}
	return b.do(ctx, "подсветка элементов", func(page playwright.Page) error {
		_, err := page.Evaluate(highlightScript, overlayArg(overlays))
		return err
	})
}

func (b *PlaywrightBrowser) ClearHighlight(ctx context.Context) error {
	return b.do(ctx, "снятие подсветки", func(page playwright.Page) error {
		_, err := page.Evaluate(clearHighlightScript, dom.OverlayContainerID)
		return err
	})
}
