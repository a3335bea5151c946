package commands

import (
	"context"
	"fmt"
	"io"

	"browserPilot/internal/agent"
	"browserPilot/internal/cli/ui"
	"browserPilot/internal/conversation"
	"browserPilot/internal/dom"
	"browserPilot/internal/llm"
)

// samplePage - страница для пробного запроса к модели.
const samplePage = `<html><head><title>Пример</title></head><body>
<input type="search" name="q" placeholder="Поиск">
<button>Найти</button>
</body></html>`

// LLMHandler обрабатывает команды тестирования LLM
type LLMHandler struct {
	gen llm.Generator
	out io.Writer
}

func NewLLMHandler(gen llm.Generator, out io.Writer) *LLMHandler {
	return &LLMHandler{
		gen: gen,
		out: out,
	}
}

// TestPlan отправляет модели задачу с учебной страницей и показывает разобранное решение.
func (h *LLMHandler) TestPlan(ctx context.Context, taskText string) {
	if h.gen == nil {
		printError(h.out, "LLM клиент не инициализирован")
		return
	}

	doc, err := dom.ParseHTMLString(samplePage, dom.Rect{})
	if err != nil {
		printError(h.out, "Ошибка: %v", err)
		return
	}
	conv := conversation.NewManager(conversation.Config{}, nil, nil)
	conv.AddTask(taskText)
	conv.AddObservation(dom.NewBuilder(dom.DefaultOptions(), nil).Build(doc))

	fmt.Fprintln(h.out, ui.ColorCyan+ui.IconRobot+" Запрос к модели..."+ui.ColorReset)
	reply, err := h.gen.Generate(ctx, conv.Entries())
	if err != nil {
		printError(h.out, "Ошибка: %v", err)
		return
	}

	d := agent.ParseDecision(reply)
	printOK(h.out, "Получено решение:")
	fmt.Fprintf(h.out, "  "+ui.ColorCyan+"Действие:"+ui.ColorReset+" %s\n", d.Action.String())
	fmt.Fprintf(h.out, "  "+ui.ColorCyan+"Разбор:"+ui.ColorReset+" %s\n", d.Source)
	if d.Err != nil {
		fmt.Fprintf(h.out, "  "+ui.ColorYellow+"Ошибка разбора:"+ui.ColorReset+" %v\n", d.Err)
	}
}
