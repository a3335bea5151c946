package browser

import (
	"fmt"

	"browserPilot/internal/dom"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
)

const mutationBinding = "__browserPilotMutation"

// observerScript ставит MutationObserver в каждый документ. Изменения внутри
// контейнера подсветки игнорируются, иначе подсветка вызывала бы саму себя.
// Серия изменений склеивается в один вызов за 50 мс, окончательное подавление дребезга в Go.
var observerScript = fmt.Sprintf(`
(() => {
	if (window.__browserPilotObserver) return;
	const overlayId = %q;
	const binding = %q;
	const inOverlay = (node) => {
		for (let n = node; n; n = n.parentNode) {
			if (n.id === overlayId) return true;
		}
		return false;
	};
	const onlyOverlay = (r) => {
		const nodes = [...r.addedNodes, ...r.removedNodes];
		return nodes.length > 0 && nodes.every((n) => n.id === overlayId);
	};
	let pending = false;
	const observer = new MutationObserver((records) => {
		if (!records.some((r) => !inOverlay(r.target) && !onlyOverlay(r))) return;
		if (pending || typeof window[binding] !== 'function') return;
		pending = true;
		setTimeout(() => {
			pending = false;
			window[binding]();
		}, 50);
	});
	observer.observe(document, { childList: true, subtree: true, attributes: true, characterData: true });
	window.__browserPilotObserver = observer;
})()
`, dom.OverlayContainerID, mutationBinding)

// observe подключает наблюдение за изменениями документа и навигацией главного фрейма.
func (b *PlaywrightBrowser) observe(page playwright.Page, events Events) error {
	if events.OnMutation != nil {
		err := page.ExposeFunction(mutationBinding, func(args ...interface{}) interface{} {
			events.OnMutation()
			return nil
		})
		if err != nil {
			return fmt.Errorf("ошибка регистрации %s: %w", mutationBinding, err)
		}
		if err := page.AddInitScript(playwright.Script{Content: playwright.String(observerScript)}); err != nil {
			return fmt.Errorf("ошибка установки наблюдателя: %w", err)
		}
		// Init-скрипт действует со следующей навигации, текущему документу ставим вручную.
		if _, err := page.Evaluate(observerScript); err != nil {
			b.log.Debug("Наблюдатель не установлен в текущий документ", zap.Error(err))
		}
	}

	if events.OnNavigation != nil {
		page.OnFrameNavigated(func(frame playwright.Frame) {
			if frame.ParentFrame() != nil {
				return
			}
			b.log.Debug("Переход главного фрейма", zap.String("url", frame.URL()))
			events.OnNavigation(frame.URL())
		})
	}
	return nil
}
