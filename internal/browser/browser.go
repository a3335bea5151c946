package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
)

var ErrNotLaunched = errors.New("браузер не запущен")

func New(cfg Config, log *zap.Logger) *PlaywrightBrowser {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.NavigateTimeout == 0 {
		cfg.NavigateTimeout = 60 * time.Second // Navigate обычно дольше
	}
	if cfg.ActionTimeout == 0 {
		cfg.ActionTimeout = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &PlaywrightBrowser{
		cfg: cfg,
		log: log.Named("browser"),
	}
}

func (b *PlaywrightBrowser) getPage() playwright.Page {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.page
}

func (b *PlaywrightBrowser) setPage(page playwright.Page) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.page = page
}

// do выполняет синхронный вызов playwright, не дольше ActionTimeout и не дольше ctx.
// Вызов, брошенный по таймауту, дорабатывает в фоне: отменить его playwright не позволяет.
func (b *PlaywrightBrowser) do(ctx context.Context, op string, fn func(page playwright.Page) error) error {
	return b.withTimeout(ctx, b.cfg.ActionTimeout, op, fn)
}

func (b *PlaywrightBrowser) withTimeout(ctx context.Context, timeout time.Duration, op string, fn func(page playwright.Page) error) error {
	page := b.getPage()
	if page == nil {
		return ErrNotLaunched
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- fn(page)
	}()

	select {
	case <-opCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s: таймаут %v", op, timeout)
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	}
}

var viewport = &playwright.Size{Width: 1280, Height: 720}

// env пробрасывает DISPLAY в процесс браузера для режима с окном.
func (b *PlaywrightBrowser) env() map[string]string {
	if b.cfg.Display == "" {
		return nil
	}
	return map[string]string{"DISPLAY": b.cfg.Display}
}

// launchPersistent сохраняет профиль (куки, вход на сайты) в UserDataDir между запусками.
func (b *PlaywrightBrowser) launchPersistent(pw *playwright.Playwright) (playwright.Page, error) {
	bctx, err := pw.Firefox.LaunchPersistentContext(b.cfg.UserDataDir, playwright.BrowserTypeLaunchPersistentContextOptions{
		Headless: playwright.Bool(b.cfg.Headless),
		Args:     []string{"--no-sandbox"},
		Env:      b.env(),
		Viewport: viewport,
	})
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	b.context = bctx
	b.mu.Unlock()

	if pages := bctx.Pages(); len(pages) > 0 {
		return pages[0], nil
	}
	return bctx.NewPage()
}

func (b *PlaywrightBrowser) launchStandard(pw *playwright.Playwright) (playwright.Page, error) {
	browser, err := pw.Firefox.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(b.cfg.Headless),
		Args:     []string{"--no-sandbox"},
		Env:      b.env(),
	})
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	b.browser = browser
	b.mu.Unlock()

	return browser.NewPage(playwright.BrowserNewPageOptions{Viewport: viewport})
}

// Launch запускает Firefox. Обработчики events подключаются до первой навигации.
func (b *PlaywrightBrowser) Launch(ctx context.Context, events Events) error {
	if b.cfg.BrowsersPath != "" {
		if err := os.Setenv("PLAYWRIGHT_BROWSERS_PATH", b.cfg.BrowsersPath); err != nil {
			return fmt.Errorf("ошибка установки PLAYWRIGHT_BROWSERS_PATH: %w", err)
		}
	}

	pw, err := playwright.Run()
	if err != nil {
		return fmt.Errorf("ошибка запуска playwright: %w", err)
	}
	b.mu.Lock()
	b.pw = pw
	b.mu.Unlock()

	var page playwright.Page
	if b.cfg.UserDataDir != "" {
		page, err = b.launchPersistent(pw)
	} else {
		page, err = b.launchStandard(pw)
	}
	if err != nil {
		return fmt.Errorf("ошибка запуска браузера: %w", err)
	}
	page.SetDefaultTimeout(float64(b.cfg.Timeout.Milliseconds()))
	b.setPage(page)

	if err := b.observe(page, events); err != nil {
		return fmt.Errorf("ошибка подключения наблюдателя: %w", err)
	}

	b.log.Info("Браузер запущен",
		zap.Bool("headless", b.cfg.Headless),
		zap.Bool("persistent", b.cfg.UserDataDir != ""))
	return nil
}

func (b *PlaywrightBrowser) Navigate(ctx context.Context, url string) error {
	page := b.getPage()
	if page == nil {
		return ErrNotLaunched
	}

	navCtx, cancel := context.WithTimeout(ctx, b.cfg.NavigateTimeout)
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		_, err := page.Goto(url, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateDomcontentloaded,
			Timeout:   playwright.Float(float64(b.cfg.NavigateTimeout.Milliseconds())),
		})
		errChan <- err
	}()

	select {
	case <-navCtx.Done():
		return fmt.Errorf("navigate timeout after %v", b.cfg.NavigateTimeout)
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("ошибка перехода на %s: %w", url, err)
		}
	}

	// networkidle на живых сайтах может не наступить никогда, это не ошибка перехода.
	if err := b.WaitForLoadState(ctx, "networkidle"); err != nil {
		b.log.Debug("Сеть не успокоилась после перехода", zap.String("url", url), zap.Error(err))
	}
	return nil
}

// URL - адрес текущей страницы.
func (b *PlaywrightBrowser) URL() string {
	page := b.getPage()
	if page == nil {
		return ""
	}
	return page.URL()
}

func (b *PlaywrightBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.context != nil {
		if err := b.context.Close(); err != nil {
			return err
		}
	}
	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			return err
		}
	}
	if b.pw != nil {
		return b.pw.Stop()
	}
	return nil
}
