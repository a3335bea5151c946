package browser

import (
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
)

type PlaywrightBrowser struct {
	mu      sync.RWMutex
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
	cfg     Config
	log     *zap.Logger
}

type Config struct {
	Headless        bool
	UserDataDir     string
	BrowsersPath    string
	Display         string
	Timeout         time.Duration
	NavigateTimeout time.Duration
	ActionTimeout   time.Duration
}

// Events - обработчики событий живой страницы.
// Вызываются из горутин playwright, поэтому не должны блокироваться.
type Events struct {
	OnMutation   func()
	OnNavigation func(url string)
}
