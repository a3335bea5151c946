package commands

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"browserPilot/internal/agent"
	"browserPilot/internal/cli/ui"
	"browserPilot/internal/transport"

	"go.uber.org/zap"
)

// TaskHandler обрабатывает команды связанные с задачами
type TaskHandler struct {
	ctl     Control
	history History
	out     io.Writer
	log     *zap.Logger
}

func NewTaskHandler(ctl Control, history History, out io.Writer, log *zap.Logger) *TaskHandler {
	return &TaskHandler{
		ctl:     ctl,
		history: history,
		out:     out,
		log:     log,
	}
}

// Start запускает задачу на подключенной странице. Итог печатает Finished.
func (h *TaskHandler) Start(userInput string) {
	s, err := h.ctl.ExecuteTask(userInput)
	switch {
	case err == nil:
	case errors.Is(err, agent.ErrEmptyTask):
		printError(h.out, "Укажите текст задачи")
		return
	case transport.IsChannelError(err):
		printError(h.out, "Нет подключения к странице, выполните connect")
		return
	default:
		h.log.Error("Ошибка запуска задачи", zap.Error(err))
		printError(h.out, "Ошибка: %v", err)
		return
	}

	fmt.Fprintf(h.out, ui.ColorCyan+ui.IconPlay+" Задача запущена"+ui.ColorReset+" %s\n", s.Task)
	if s.TaskID != nil {
		fmt.Fprintf(h.out, "  "+ui.ColorGray+"└─ #%d, сессия %s"+ui.ColorReset+"\n", *s.TaskID, s.ID)
	} else {
		fmt.Fprintf(h.out, "  "+ui.ColorGray+"└─ сессия %s"+ui.ColorReset+"\n", s.ID)
	}
}

// Finished печатает итог задачи.
func (h *TaskHandler) Finished(st agent.SessionStatus) {
	fmt.Fprintln(h.out)
	if st.Success {
		printOK(h.out, "Задача выполнена за %d шаг(ов): %s", st.Step, st.Message)
	} else {
		printError(h.out, "Задача не выполнена (шаг %d): %s", st.Step, st.Message)
	}
}

// List выводит список последних задач
func (h *TaskHandler) List() {
	if h.history == nil {
		noHistory(h.out)
		return
	}
	tasks, err := h.history.ListTasks(50, 0)
	if err != nil {
		h.log.Error("Ошибка чтения задач", zap.Error(err))
		printError(h.out, "Ошибка чтения задач")
		return
	}
	fmt.Fprintln(h.out, "\n"+ui.ColorBold+ui.IconList+" Список задач:"+ui.ColorReset)
	fmt.Fprintln(h.out)
	if len(tasks) == 0 {
		fmt.Fprintln(h.out, ui.ColorGray+"Задач пока нет"+ui.ColorReset)
		return
	}
	for _, t := range tasks {
		icon, color, text := ui.FormatStatus(t.Status)
		fmt.Fprintf(h.out, "  "+ui.ColorBold+"#%d"+ui.ColorReset+" %s%s %s"+ui.ColorReset+"\n", t.ID, color, icon, text)
		fmt.Fprintf(h.out, "  "+ui.ColorGray+"└─"+ui.ColorReset+" %s\n", t.UserInput)
		fmt.Fprintln(h.out)
	}
}

func parseID(idStr string) (uint, error) {
	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("неверный ID задачи: %q", idStr)
	}
	return uint(id), nil
}
