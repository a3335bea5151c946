package browser

import (
	"context"
	"strings"

	"github.com/playwright-community/playwright-go"
)

func parseLoadState(state string) *playwright.LoadState {
	switch strings.ToLower(state) {
	case "domcontentloaded":
		return playwright.LoadStateDomcontentloaded
	case "networkidle":
		return playwright.LoadStateNetworkidle
	default:
		return playwright.LoadStateLoad
	}
}

func (b *PlaywrightBrowser) WaitForLoadState(ctx context.Context, state string) error {
	opts := playwright.PageWaitForLoadStateOptions{
		State:   parseLoadState(state),
		Timeout: playwright.Float(float64(b.cfg.Timeout.Milliseconds())),
	}
	return b.withTimeout(ctx, b.cfg.Timeout, "ожидание "+state, func(page playwright.Page) error {
		return page.WaitForLoadState(opts)
	})
}
