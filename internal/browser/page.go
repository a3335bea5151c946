package browser

import (
	"context"

	"browserPilot/internal/dom"
	"browserPilot/internal/executor"
	"browserPilot/internal/extractor"

	"github.com/playwright-community/playwright-go"
)

var _ executor.Page = (*PlaywrightBrowser)(nil)

// PressAt нажимает мышью в точке окна.
func (b *PlaywrightBrowser) PressAt(ctx context.Context, x, y float64) error {
	return b.do(ctx, "нажатие в точке", func(page playwright.Page) error {
		return page.Mouse().Click(x, y)
	})
}

// Capture снимает сырое дерево текущего документа.
func (b *PlaywrightBrowser) Capture(ctx context.Context) (*dom.Document, error) {
	var doc *dom.Document
	err := b.withTimeout(ctx, b.cfg.Timeout, "снятие документа", func(page playwright.Page) error {
		d, err := extractor.Capture(page)
		if err != nil {
			return err
		}
		doc = d
		return nil
	})
	return doc, err
}
