package browser

import (
	"context"
	"fmt"

	"browserPilot/internal/executor"

	"github.com/playwright-community/playwright-go"
)

// element - живой элемент страницы поверх ElementHandle.
type element struct {
	b      *PlaywrightBrowser
	handle playwright.ElementHandle
}

var _ executor.Element = (*element)(nil)

func (e *element) timeout() *float64 {
	return playwright.Float(float64(e.b.cfg.ActionTimeout.Milliseconds()))
}

func (e *element) ScrollIntoView(ctx context.Context) error {
	return e.b.do(ctx, "прокрутка к элементу", func(playwright.Page) error {
		err := e.handle.ScrollIntoViewIfNeeded(playwright.ElementHandleScrollIntoViewIfNeededOptions{
			Timeout: playwright.Float(5000),
		})
		if err != nil {
			return scrollIntoView(e.handle)
		}
		return nil
	})
}

func (e *element) Click(ctx context.Context) error {
	return e.b.do(ctx, "клик", func(playwright.Page) error {
		return e.handle.Click(playwright.ElementHandleClickOptions{Timeout: e.timeout()})
	})
}

func (e *element) DispatchClick(ctx context.Context) error {
	return e.b.do(ctx, "событие click", func(playwright.Page) error {
		return e.handle.DispatchEvent("click")
	})
}

func (e *element) Center(ctx context.Context) (float64, float64, error) {
	var x, y float64
	err := e.b.do(ctx, "координаты элемента", func(playwright.Page) error {
		box, err := e.handle.BoundingBox()
		if err != nil {
			return err
		}
		if box == nil || box.Width <= 0 || box.Height <= 0 {
			return fmt.Errorf("элемент не отображается")
		}
		x = box.X + box.Width/2
		y = box.Y + box.Height/2
		return nil
	})
	return x, y, err
}

func (e *element) Focus(ctx context.Context) error {
	return e.b.do(ctx, "фокус", func(playwright.Page) error {
		return e.handle.Focus()
	})
}

func (e *element) Clear(ctx context.Context) error {
	return e.b.do(ctx, "очистка поля", func(playwright.Page) error {
		return e.handle.Fill("", playwright.ElementHandleFillOptions{Timeout: e.timeout()})
	})
}

// AppendText печатает фрагмент в элемент с фокусом, браузер сам генерирует input.
func (e *element) AppendText(ctx context.Context, text string) error {
	return e.b.do(ctx, "ввод текста", func(page playwright.Page) error {
		return page.Keyboard().Type(text)
	})
}

func (e *element) EmitChange(ctx context.Context) error {
	return e.b.do(ctx, "событие change", func(playwright.Page) error {
		return e.handle.DispatchEvent("change")
	})
}
