// Package extractor снимает сырое дерево живого документа одним скриптом в странице.
// Классификация и индексация выполняются уже в Go (пакет dom).
package extractor

import (
	"encoding/json"
	"fmt"

	"browserPilot/internal/dom"

	"github.com/playwright-community/playwright-go"
)

// CaptureScript обходит документ, shadow-области и доступные вложенные документы.
// Координаты вложенных документов сдвигаются к окну верхнего уровня.
// Для центра каждого элемента запоминается id узла, который вернул elementFromPoint.
const CaptureScript = `
(overlayId) => {
	const SKIP = new Set(['script', 'style', 'noscript', 'template']);
	const ids = new WeakMap();
	let nextId = 1;
	const idOf = (el) => {
		let id = ids.get(el);
		if (!id) {
			id = nextId++;
			ids.set(el, id);
		}
		return id;
	};

	const hitOf = (root, rect, ox, oy, view) => {
		if (rect.width <= 0 || rect.height <= 0) return 0;
		const cx = rect.left + rect.width / 2;
		const cy = rect.top + rect.height / 2;
		if (cx < 0 || cy < 0 || cx >= view.innerWidth || cy >= view.innerHeight) return 0;
		try {
			const hit = root.elementFromPoint(cx, cy);
			return hit ? idOf(hit) : 0;
		} catch (e) {
			return 0;
		}
	};

	const valueOf = (el) => {
		const tag = el.tagName.toLowerCase();
		if (tag === 'input' || tag === 'textarea' || tag === 'select') {
			return el.value == null ? '' : String(el.value);
		}
		return '';
	};

	const walk = (node, root, ox, oy, view) => {
		if (node.nodeType === Node.TEXT_NODE) {
			const text = node.textContent;
			if (!text || !text.trim()) return null;
			const range = node.ownerDocument.createRange();
			range.selectNodeContents(node);
			const r = range.getBoundingClientRect();
			return { id: 0, type: 'text', text: text, box: { x: r.left + ox, y: r.top + oy, width: r.width, height: r.height } };
		}
		if (node.nodeType !== Node.ELEMENT_NODE) return null;

		const tag = node.tagName.toLowerCase();
		if (SKIP.has(tag) || node.id === overlayId) return null;

		const rect = node.getBoundingClientRect();
		const style = view.getComputedStyle(node);
		const z = parseInt(style.zIndex, 10);
		const attrs = {};
		for (const a of node.attributes) attrs[a.name] = a.value;

		const out = {
			id: idOf(node),
			type: 'element',
			tag: tag,
			attrs: attrs,
			box: { x: rect.left + ox, y: rect.top + oy, width: rect.width, height: rect.height },
			style: {
				display: style.display,
				visibility: style.visibility,
				opacity: style.opacity,
				cursor: style.cursor,
				zIndex: isNaN(z) ? 0 : z,
			},
			value: valueOf(node),
			listener: typeof node.onclick === 'function',
			hit: hitOf(root, rect, ox, oy, view),
			children: [],
		};

		for (const child of node.childNodes) {
			const c = walk(child, root, ox, oy, view);
			if (c) out.children.push(c);
		}

		if (node.shadowRoot) {
			const shadow = { id: 0, type: 'element', tag: '#shadow-root', children: [] };
			for (const child of node.shadowRoot.childNodes) {
				const c = walk(child, node.shadowRoot, ox, oy, view);
				if (c) shadow.children.push(c);
			}
			out.shadow = shadow;
		}

		if (tag === 'iframe' || tag === 'frame') {
			try {
				const doc = node.contentDocument;
				const win = node.contentWindow;
				if (!doc || !doc.documentElement || !win) {
					out.frameError = 'вложенный документ недоступен';
				} else {
					const fx = rect.left + ox + node.clientLeft;
					const fy = rect.top + oy + node.clientTop;
					out.frame = {
						url: String(doc.location && doc.location.href || ''),
						title: doc.title || '',
						viewport: { x: fx, y: fy, width: win.innerWidth, height: win.innerHeight },
						root: walk(doc.documentElement, doc, fx, fy, win),
					};
				}
			} catch (e) {
				out.frameError = String(e && e.message || e);
			}
		}
		return out;
	};

	const doc = {
		url: location.href,
		title: document.title,
		viewport: { x: 0, y: 0, width: window.innerWidth, height: window.innerHeight },
		root: walk(document.documentElement, document, 0, 0, window),
	};
	return JSON.stringify(doc);
}
`

// Evaluator - часть playwright.Page, нужная для снятия документа.
type Evaluator interface {
	Evaluate(expression string, arg ...interface{}) (interface{}, error)
}

var _ Evaluator = (playwright.Page)(nil)

// Capture выполняет CaptureScript и разбирает результат.
func Capture(page Evaluator) (*dom.Document, error) {
	result, err := page.Evaluate(CaptureScript, dom.OverlayContainerID)
	if err != nil {
		return nil, fmt.Errorf("ошибка выполнения JavaScript: %w", err)
	}
	raw, ok := result.(string)
	if !ok {
		return nil, fmt.Errorf("неверный формат снимка: %T", result)
	}
	return Decode([]byte(raw))
}

// Decode разбирает JSON, который возвращает CaptureScript.
func Decode(raw []byte) (*dom.Document, error) {
	var doc dom.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("ошибка разбора снимка: %w", err)
	}
	if doc.Root == nil {
		return nil, fmt.Errorf("в документе нет корневого элемента")
	}
	return &doc, nil
}
