package commands

import (
	"fmt"
	"io"
	"strings"

	"browserPilot/internal/cli/ui"

	"go.uber.org/zap"
)

// ShowHandler обрабатывает команды просмотра деталей
type ShowHandler struct {
	history History
	out     io.Writer
	log     *zap.Logger
}

func NewShowHandler(history History, out io.Writer, log *zap.Logger) *ShowHandler {
	return &ShowHandler{
		history: history,
		out:     out,
		log:     log,
	}
}

// Show выводит детали задачи со всеми шагами
func (h *ShowHandler) Show(idStr string) {
	if h.history == nil {
		noHistory(h.out)
		return
	}
	id, err := parseID(idStr)
	if err != nil {
		printError(h.out, "%v", err)
		return
	}
	task, err := h.history.GetTaskByID(id)
	if err != nil {
		printError(h.out, "Задача не найдена")
		return
	}

	_, _, statusText := ui.FormatStatus(task.Status)

	fmt.Fprintf(h.out, "\n"+ui.ColorBold+"=== Задача #%d ==="+ui.ColorReset+"\n", task.ID)
	fmt.Fprintf(h.out, ui.ColorCyan+ui.IconDocument+" Описание:"+ui.ColorReset+" %s\n", task.UserInput)
	fmt.Fprintf(h.out, ui.ColorCyan+ui.IconChart+" Статус:"+ui.ColorReset+" %s\n", statusText)
	fmt.Fprintf(h.out, ui.ColorCyan+ui.IconTime+" Создана:"+ui.ColorReset+" %s\n", task.CreatedAt.Format("2006-01-02 15:04:05"))
	if task.ResultSummary != "" {
		fmt.Fprintf(h.out, ui.ColorCyan+ui.IconChat+" Результат:"+ui.ColorReset+" %s\n", task.ResultSummary)
	}

	steps, err := h.history.ListSteps(task.ID)
	if err != nil {
		h.log.Error("Ошибка получения шагов", zap.Error(err))
		printError(h.out, "Ошибка получения шагов")
		return
	}

	if len(steps) == 0 {
		fmt.Fprintln(h.out, "\n"+ui.ColorGray+"Шаги не найдены"+ui.ColorReset)
		fmt.Fprintln(h.out)
		return
	}

	fmt.Fprintf(h.out, "\n"+ui.ColorYellow+ui.IconLoop+" Шаги выполнения (%d):"+ui.ColorReset+"\n", len(steps))
	for _, step := range steps {
		fmt.Fprintf(h.out, "\n"+ui.ColorBold+"[Шаг %d]"+ui.ColorReset+" "+ui.ColorCyan+"%s"+ui.ColorReset+"\n", step.StepNo, step.ActionType)
		if step.TargetSelector != "" {
			fmt.Fprintf(h.out, "  "+ui.ColorGray+"Локатор:"+ui.ColorReset+" %s\n", step.TargetSelector)
		}
		if step.Reasoning != "" {
			fmt.Fprintf(h.out, "  "+ui.ColorGray+"Действие:"+ui.ColorReset+" %s\n", step.Reasoning)
		}
		if step.Result != "" {
			resultColor := ui.ColorGreen
			if strings.Contains(step.Result, "ошибка") || strings.Contains(step.Result, "Ошибка") {
				resultColor = ui.ColorRed
			}
			fmt.Fprintf(h.out, "  %sРезультат:"+ui.ColorReset+" %s\n", resultColor, step.Result)
		}
		fmt.Fprintf(h.out, "  "+ui.ColorGray+ui.IconTime+" %s"+ui.ColorReset+"\n", step.CreatedAt.Format("15:04:05"))
	}
	fmt.Fprintln(h.out)
}
