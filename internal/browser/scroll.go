package browser

import (
	"context"
	"fmt"

	"github.com/playwright-community/playwright-go"
)

// ScrollBy прокручивает окно по вертикали. Положительное dy - вниз.
func (b *PlaywrightBrowser) ScrollBy(ctx context.Context, dy float64) error {
	return b.do(ctx, "прокрутка", func(page playwright.Page) error {
		_, err := page.Evaluate(`(dy) => {
			window.scrollBy({ top: dy, left: 0, behavior: 'auto' });
		}`, dy)
		return err
	})
}

func (b *PlaywrightBrowser) ViewportHeight(ctx context.Context) (float64, error) {
	var height float64
	err := b.do(ctx, "высота окна", func(page playwright.Page) error {
		if size := page.ViewportSize(); size != nil && size.Height > 0 {
			height = float64(size.Height)
			return nil
		}
		v, err := page.Evaluate(`() => window.innerHeight || document.documentElement.clientHeight`)
		if err != nil {
			return err
		}
		h, ok := toFloat(v)
		if !ok {
			return fmt.Errorf("неожиданный тип высоты окна: %T", v)
		}
		height = h
		return nil
	})
	return height, err
}

// scrollIntoView - запасной путь, когда ScrollIntoViewIfNeeded не сработал.
func scrollIntoView(el playwright.ElementHandle) error {
	_, err := el.Evaluate(`el => {
		el.scrollIntoView({
			behavior: 'auto',
			block: 'center',
			inline: 'center'
		});
	}`)
	return err
}

// toFloat приводит число из Evaluate: целые значения приходят как int.
func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
