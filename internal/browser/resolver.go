package browser

import (
	"context"
	"fmt"

	"browserPilot/internal/action"
	"browserPilot/internal/dom"
	"browserPilot/internal/executor"

	"github.com/playwright-community/playwright-go"
)

// resolveScript проходит цепочку границ встраивания и находит элемент по шагам локатора.
// Счёт шагов совпадает с dom: n-й потомок-элемент с тем же тегом, контейнер подсветки не считается.
const resolveScript = `
(arg) => {
	const find = (top, steps) => {
		let list = top;
		let cur = null;
		for (const step of steps) {
			cur = null;
			let n = 0;
			for (const el of list) {
				if (el.id === arg.overlayId) continue;
				if (el.tagName.toLowerCase() !== step.tag) continue;
				n++;
				if (n === step.n) {
					cur = el;
					break;
				}
			}
			if (!cur) return null;
			list = Array.from(cur.children);
		}
		return cur;
	};

	let top = [document.documentElement];
	for (const b of arg.chain) {
		const host = find(top, b.host);
		if (!host) return null;
		if (b.kind === 'shadow') {
			if (!host.shadowRoot) return null;
			top = Array.from(host.shadowRoot.children);
		} else {
			let doc = null;
			try {
				doc = host.contentDocument;
			} catch (e) {
				return null;
			}
			if (!doc || !doc.documentElement) return null;
			top = [doc.documentElement];
		}
	}
	return find(top, arg.target);
}
`

// target - что искать в живой странице: цепочка хостов и локатор внутри последней области.
type target struct {
	Locator string
	Chain   []dom.Boundary
	steps   []dom.Segment
	hosts   [][]dom.Segment
}

// planTarget переводит адрес действия в шаги поиска по снимку, на котором принималось решение.
// Локатор, которого нет в снимке, ищется от корня документа.
func planTarget(snap *dom.Snapshot, xpath string, index *int) (*target, error) {
	t := &target{}
	switch {
	case xpath != "":
		t.Locator = dom.NormalizeLocator(xpath)
		if el, ok := snap.Lookup(xpath); ok {
			t.Locator = el.Locator
			t.Chain = el.Context
		}
	case index != nil:
		el, ok := snap.Element(*index)
		if !ok {
			return nil, fmt.Errorf("%w: элемента с индексом %d нет в снимке", action.ErrElementNotFound, *index)
		}
		t.Locator = el.Locator
		t.Chain = el.Context
	default:
		return nil, fmt.Errorf("%w: не задан адрес элемента", action.ErrElementNotFound)
	}

	steps, err := dom.ParseLocator(t.Locator)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", action.ErrElementNotFound, err)
	}
	t.steps = steps
	for _, b := range t.Chain {
		host, err := dom.ParseLocator(b.HostPath)
		if err != nil {
			return nil, fmt.Errorf("%w: хост %q: %v", action.ErrElementNotFound, b.HostPath, err)
		}
		t.hosts = append(t.hosts, host)
	}
	return t, nil
}

func stepsArg(segs []dom.Segment) []interface{} {
	out := make([]interface{}, len(segs))
	for i, s := range segs {
		out[i] = map[string]interface{}{"tag": s.Tag, "n": s.N}
	}
	return out
}

// arg - аргумент resolveScript.
func (t *target) arg() map[string]interface{} {
	chain := make([]interface{}, len(t.Chain))
	for i, b := range t.Chain {
		chain[i] = map[string]interface{}{"kind": b.Kind, "host": stepsArg(t.hosts[i])}
	}
	return map[string]interface{}{
		"overlayId": dom.OverlayContainerID,
		"chain":     chain,
		"target":    stepsArg(t.steps),
	}
}

type resolver struct {
	b    *PlaywrightBrowser
	snap *dom.Snapshot
}

// Resolver разрешает адреса действий относительно снимка snap.
func (b *PlaywrightBrowser) Resolver(snap *dom.Snapshot) executor.Resolver {
	return &resolver{b: b, snap: snap}
}

func (r *resolver) Resolve(ctx context.Context, xpath string, index *int) (executor.Element, error) {
	t, err := planTarget(r.snap, xpath, index)
	if err != nil {
		return nil, err
	}

	var handle playwright.ElementHandle
	err = r.b.do(ctx, "поиск элемента", func(page playwright.Page) error {
		h, err := page.EvaluateHandle(resolveScript, t.arg())
		if err != nil {
			return err
		}
		handle = h.AsElement()
		if handle == nil {
			_ = h.Dispose()
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", action.ErrElementNotFound, t.Locator, err)
	}
	if handle == nil {
		return nil, fmt.Errorf("%w: %s", action.ErrElementNotFound, t.Locator)
	}
	return &element{b: r.b, handle: handle}, nil
}
